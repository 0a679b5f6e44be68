package domain

import (
	"context"
	"time"
)

type Service interface {
	ListCategories(ctx context.Context) ([]ServiceCategory, error)
	ResolveActivePrice(ctx context.Context, category ServiceCategory, on time.Time) (*PriceSchedule, error)
	CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*PriceSchedule, error)
	ListSchedules(ctx context.Context, category string) ([]PriceSchedule, error)
}

type CreateScheduleRequest struct {
	Category      string        `json:"category"`
	Model         string        `json:"model"`
	UnitPrice     string        `json:"unit_price"`
	StartDate     string        `json:"start_date"`
	EndDate       *string       `json:"end_date"`
	Description   string        `json:"description"`
	Tiers         []TierRequest `json:"tiers"`
	ClosePrevious bool          `json:"close_previous"`
}

type TierRequest struct {
	Label     string  `json:"label"`
	MinUsage  string  `json:"min_usage"`
	MaxUsage  *string `json:"max_usage"`
	UnitPrice string  `json:"unit_price"`
}
