package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateRequest struct {
	ApartmentID string         `json:"apartment_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Quantity    string         `json:"quantity"`
	UnitPrice   string         `json:"unit_price"`
	FeeDate     string         `json:"fee_date"`
	Metadata    map[string]any `json:"metadata"`
}

type Service interface {
	Create(context.Context, CreateRequest) (*ExtraFee, error)
	Get(ctx context.Context, id string) (*ExtraFee, error)
	Search(ctx context.Context, keyword string) ([]Summary, error)
	ListUnbilled(ctx context.Context, apartmentID snowflake.ID) ([]ExtraFee, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, fee *ExtraFee) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ExtraFee, error)
	Search(ctx context.Context, db *gorm.DB, keyword string) ([]Summary, error)
	ListUnbilled(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID) ([]ExtraFee, error)
	// ListUnbilledByApartment returns unbilled fees for every apartment, keyed by apartment.
	ListUnbilledByApartment(ctx context.Context, db *gorm.DB) (map[snowflake.ID][]ExtraFee, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]ExtraFee, error)
	// SetBilled flips the billed flag on rows currently holding the opposite value
	// and returns the number of rows changed.
	SetBilled(ctx context.Context, db *gorm.DB, ids []snowflake.ID, billed bool, updatedAt time.Time) (int64, error)
}

var (
	ErrNotFound         = errors.New("extra_fee_not_found")
	ErrInvalidID        = errors.New("invalid_extra_fee_id")
	ErrInvalidApartment = errors.New("invalid_apartment")
	ErrInvalidTitle     = errors.New("invalid_title")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidUnitPrice = errors.New("invalid_unit_price")
	ErrInvalidFeeDate   = errors.New("invalid_fee_date")
)
