// Package domain contains the per-category line-item calculators' contracts.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	"github.com/smallbiznis/bluemoon/pkg/money"
)

// BreakdownEntry is one sub-amount of a line item: a tier touched or a vehicle class charged.
type BreakdownEntry struct {
	Label     string          `json:"label"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    money.Money     `json:"amount"`
}

// LineItem is a priced charge. Amount is authoritative; Quantity and UnitPrice may be
// zero for tiered items.
type LineItem struct {
	Category      pricedomain.ServiceCategory `json:"category"`
	Quantity      decimal.Decimal             `json:"quantity"`
	UnitPrice     decimal.Decimal             `json:"unit_price"`
	Amount        money.Money                 `json:"amount"`
	UsageRecordID *snowflake.ID               `json:"usage_record_id,omitempty"`
	ReferenceID   *snowflake.ID               `json:"reference_id,omitempty"`
	OldIndex      decimal.NullDecimal         `json:"old_index"`
	NewIndex      decimal.NullDecimal         `json:"new_index"`
	Description   string                      `json:"description"`
	Breakdown     []BreakdownEntry            `json:"breakdown,omitempty"`
}

const WarningMissingReading = "missing_reading"

// Warning is a non-fatal condition raised while pricing one apartment.
type Warning struct {
	ApartmentID snowflake.ID                `json:"apartment_id"`
	Category    pricedomain.ServiceCategory `json:"category"`
	Code        string                      `json:"code"`
	Message     string                      `json:"message"`
}

// Outcome is what a calculator produced for one apartment. No items means nothing to charge.
type Outcome struct {
	Items    []LineItem
	Warnings []Warning
}

type Request struct {
	Apartment apartmentdomain.Snapshot
	Month     int
	Year      int
}

// Sources are the read-only inputs calculators pull from.
type Sources interface {
	ActivePrice(ctx context.Context, category pricedomain.ServiceCategory) (*pricedomain.PriceSchedule, error)
	Reading(ctx context.Context, apartmentID snowflake.ID, category pricedomain.ServiceCategory, month, year int) (*usagedomain.MeterReading, error)
	UnbilledFees(ctx context.Context, apartmentID snowflake.ID) ([]extrafeedomain.ExtraFee, error)
}

// Calculator prices one service category.
type Calculator interface {
	Category() pricedomain.ServiceCategory
	Calculate(ctx context.Context, req Request, src Sources) (Outcome, error)
}

type Service interface {
	Calculate(ctx context.Context, category pricedomain.ServiceCategory, req Request, src Sources) (Outcome, error)
	Categories() []pricedomain.ServiceCategory
}
