package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("apartment_not_found")
	ErrInvalidVehicleClass = errors.New("invalid_vehicle_class")
)

type Repository interface {
	// ListWithResidents returns every apartment that has at least one resident,
	// with its active vehicle inventory, ordered by building and room.
	ListWithResidents(ctx context.Context, db *gorm.DB) ([]Snapshot, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Snapshot, error)
	ListVehicleClasses(ctx context.Context, db *gorm.DB, apartmentIDs []snowflake.ID) (map[snowflake.ID][]VehicleClass, error)
}
