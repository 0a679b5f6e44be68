package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListServiceTypes(ctx context.Context, db *gorm.DB, activeOnly bool) ([]ServiceType, error)
	FindEffective(ctx context.Context, db *gorm.DB, category ServiceCategory, on time.Time) ([]PriceSchedule, error)
	ListOverlapping(ctx context.Context, db *gorm.DB, category ServiceCategory, start time.Time, end *time.Time) ([]PriceSchedule, error)
	List(ctx context.Context, db *gorm.DB, category *ServiceCategory) ([]PriceSchedule, error)
	ListTiers(ctx context.Context, db *gorm.DB, scheduleIDs []snowflake.ID) ([]PriceTier, error)
	Insert(ctx context.Context, db *gorm.DB, schedule *PriceSchedule) error
	CloseOpen(ctx context.Context, db *gorm.DB, category ServiceCategory, endDate time.Time, updatedAt time.Time) (int64, error)
}
