// Package domain contains meter readings consumed by billing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
)

type ReadingStatus string

const (
	ReadingStatusRecorded ReadingStatus = "RECORDED"
	ReadingStatusVerified ReadingStatus = "VERIFIED"
)

// MeterReading is one apartment's metered consumption for a period.
// Quantity is always NewIndex - OldIndex.
type MeterReading struct {
	ID          snowflake.ID                `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID                `json:"apartment_id" gorm:"not null;uniqueIndex:ux_usage_records_period,priority:1"`
	Category    pricedomain.ServiceCategory `json:"category" gorm:"type:text;not null;uniqueIndex:ux_usage_records_period,priority:2"`
	Month       int                         `json:"month" gorm:"not null;uniqueIndex:ux_usage_records_period,priority:3"`
	Year        int                         `json:"year" gorm:"not null;uniqueIndex:ux_usage_records_period,priority:4"`
	OldIndex    decimal.Decimal             `json:"old_index" gorm:"type:numeric(14,2);not null"`
	NewIndex    decimal.Decimal             `json:"new_index" gorm:"type:numeric(14,2);not null"`
	Quantity    decimal.Decimal             `json:"quantity" gorm:"type:numeric(14,2);not null"`
	ReadingDate time.Time                   `json:"reading_date" gorm:"not null"`
	Status      ReadingStatus               `json:"status" gorm:"type:text;not null;default:'RECORDED'"`
	CreatedAt   time.Time                   `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time                   `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MeterReading) TableName() string { return "usage_records" }

// Consumption returns the reading's quantity, derived from the indexes.
func (r MeterReading) Consumption() decimal.Decimal {
	return r.NewIndex.Sub(r.OldIndex)
}

// PreviousPeriod returns the (month, year) before the given one.
func PreviousPeriod(month, year int) (int, int) {
	if month <= 1 {
		return 12, year - 1
	}
	return month - 1, year
}
