// Package domain contains staff-entered one-off charges folded into the next invoice.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"gorm.io/datatypes"
)

const MaxTitleLength = 100

// ExtraFee is billed exactly once: IsBilled flips together with the invoice that carries it.
type ExtraFee struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID      `json:"apartment_id" gorm:"not null;index:idx_extra_fees_apartment_billed,priority:1"`
	Title       string            `json:"title" gorm:"type:varchar(100);not null"`
	Description string            `json:"description,omitempty" gorm:"type:text"`
	Quantity    decimal.Decimal   `json:"quantity" gorm:"type:numeric(10,2);not null"`
	UnitPrice   decimal.Decimal   `json:"unit_price" gorm:"type:numeric(20,2);not null"`
	Amount      money.Money       `json:"amount" gorm:"type:numeric(20,2);not null"`
	FeeDate     time.Time         `json:"fee_date" gorm:"not null"`
	IsBilled    bool              `json:"is_billed" gorm:"column:is_billed;not null;default:false;index:idx_extra_fees_apartment_billed,priority:2"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ExtraFee) TableName() string { return "extra_fees" }

// Summary is the list projection of a fee with its apartment label.
type Summary struct {
	ID             snowflake.ID `json:"id"`
	ApartmentID    snowflake.ID `json:"apartment_id"`
	Title          string       `json:"title"`
	Amount         money.Money  `json:"amount"`
	FeeDate        time.Time    `json:"fee_date"`
	IsBilled       bool         `json:"is_billed"`
	ApartmentLabel string       `json:"apartment_label"`
}
