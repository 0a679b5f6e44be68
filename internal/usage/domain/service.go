package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	"gorm.io/gorm"
)

// ReadingInput is one imported row. A nil OldIndex carries over the previous period's NewIndex.
type ReadingInput struct {
	ApartmentID string  `json:"apartment_id"`
	Category    string  `json:"category"`
	OldIndex    *string `json:"old_index,omitempty"`
	NewIndex    string  `json:"new_index"`
	ReadingDate string  `json:"reading_date,omitempty"`
}

type RecordReadingsRequest struct {
	Month    int            `json:"month"`
	Year     int            `json:"year"`
	Readings []ReadingInput `json:"readings"`
}

type ListReadingsRequest struct {
	Month    int    `json:"month"`
	Year     int    `json:"year"`
	Category string `json:"category"`
}

type Service interface {
	RecordReadings(context.Context, RecordReadingsRequest) ([]MeterReading, error)
	ListReadings(context.Context, ListReadingsRequest) ([]MeterReading, error)
	FindReading(ctx context.Context, apartmentID snowflake.ID, category pricedomain.ServiceCategory, month, year int) (*MeterReading, error)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, category pricedomain.ServiceCategory, month, year int) (*MeterReading, error)
	ListForPeriod(ctx context.Context, db *gorm.DB, month, year int, category *pricedomain.ServiceCategory) ([]MeterReading, error)
	Upsert(ctx context.Context, db *gorm.DB, readings []MeterReading) error
}

var (
	ErrInvalidPeriod    = errors.New("invalid_period")
	ErrInvalidApartment = errors.New("invalid_apartment")
	ErrInvalidCategory  = errors.New("invalid_metered_category")
	ErrInvalidIndex     = errors.New("invalid_meter_index")
	ErrIndexRegression  = errors.New("meter_index_regression")
	ErrDuplicateReading = errors.New("duplicate_reading")
	ErrEmptyImport      = errors.New("empty_import")
)
