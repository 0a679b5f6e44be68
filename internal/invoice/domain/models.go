// Package domain contains persistence models for apartment invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	ratingdomain "github.com/smallbiznis/bluemoon/internal/rating/domain"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusUnpaid  InvoiceStatus = "UNPAID"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// Finalized reports whether the invoice has left the regenerable draft state.
func (s InvoiceStatus) Finalized() bool {
	return s != InvoiceStatusPending
}

// Receivable reports whether the invoice is published and still owed.
func (s InvoiceStatus) Receivable() bool {
	return s == InvoiceStatusUnpaid || s == InvoiceStatusPartial || s == InvoiceStatusOverdue
}

// Invoice is one apartment's bill for a (month, year) period.
type Invoice struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID  `json:"apartment_id" gorm:"not null;uniqueIndex:ux_invoices_apartment_period,priority:1"`
	Month       int           `json:"month" gorm:"not null;uniqueIndex:ux_invoices_apartment_period,priority:2;index:idx_invoices_period,priority:2"`
	Year        int           `json:"year" gorm:"not null;uniqueIndex:ux_invoices_apartment_period,priority:3;index:idx_invoices_period,priority:1"`
	Status      InvoiceStatus `json:"status" gorm:"type:varchar(10);not null;default:'PENDING'"`
	TotalAmount money.Money   `json:"total_amount" gorm:"type:numeric(20,2);not null;default:0"`
	PaidAmount  money.Money   `json:"paid_amount" gorm:"type:numeric(20,2);not null;default:0"`
	CreatedDate time.Time     `json:"created_date" gorm:"not null"`
	OverdueDate *time.Time    `json:"overdue_date,omitempty"`
	BatchID     string        `json:"batch_id" gorm:"type:varchar(26)"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items []InvoiceItem `json:"items,omitempty" gorm:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Outstanding is what remains to be paid.
func (i Invoice) Outstanding() money.Money {
	return i.TotalAmount.Sub(i.PaidAmount)
}

// InvoiceItem represents a line on an invoice.
type InvoiceItem struct {
	ID            snowflake.ID                                     `json:"id" gorm:"primaryKey"`
	InvoiceID     snowflake.ID                                     `json:"invoice_id" gorm:"not null;index"`
	Category      pricedomain.ServiceCategory                      `json:"category" gorm:"type:text;not null"`
	Quantity      decimal.Decimal                                  `json:"quantity" gorm:"type:numeric(14,2);not null;default:0"`
	UnitPrice     decimal.Decimal                                  `json:"unit_price" gorm:"type:numeric(20,2);not null;default:0"`
	Amount        money.Money                                      `json:"amount" gorm:"type:numeric(20,2);not null"`
	UsageRecordID *snowflake.ID                                    `json:"usage_record_id,omitempty" gorm:"index"`
	ReferenceID   *snowflake.ID                                    `json:"reference_id,omitempty" gorm:"index"`
	OldIndex      decimal.NullDecimal                              `json:"old_index" gorm:"type:numeric(14,2)"`
	NewIndex      decimal.NullDecimal                              `json:"new_index" gorm:"type:numeric(14,2)"`
	Description   string                                           `json:"description" gorm:"type:text"`
	Breakdown     datatypes.JSONSlice[ratingdomain.BreakdownEntry] `json:"breakdown,omitempty" gorm:"type:jsonb"`
	Position      int                                              `json:"position" gorm:"not null;default:0"`
	CreatedAt     time.Time                                        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// Summary is the reporting projection of an invoice.
type Summary struct {
	ID             snowflake.ID  `json:"id"`
	ApartmentID    snowflake.ID  `json:"apartment_id"`
	ApartmentLabel string        `json:"apartment_label"`
	Month          int           `json:"month"`
	Year           int           `json:"year"`
	TotalAmount    money.Money   `json:"total_amount"`
	PaidAmount     money.Money   `json:"paid_amount"`
	Status         InvoiceStatus `json:"status"`
	CreatedDate    time.Time     `json:"created_date"`
	OverdueDate    *time.Time    `json:"overdue_date,omitempty"`
}

// Detail is an invoice with its items and apartment label.
type Detail struct {
	Invoice
	ApartmentLabel string `json:"apartment_label"`
}

// Fault is a per-apartment, per-category failure isolated during a batch.
type Fault struct {
	ApartmentID    snowflake.ID                `json:"apartment_id"`
	ApartmentLabel string                      `json:"apartment_label"`
	Category       pricedomain.ServiceCategory `json:"category"`
	Reason         string                      `json:"reason"`
	Message        string                      `json:"message"`
}

// BatchResult reports one generation run.
type BatchResult struct {
	BatchID   string                 `json:"batch_id"`
	Month     int                    `json:"month"`
	Year      int                    `json:"year"`
	Invoices  []Summary              `json:"invoices"`
	Warnings  []ratingdomain.Warning `json:"warnings"`
	Faults    []Fault                `json:"faults"`
	Replaced  int                    `json:"replaced"`
	Discarded int                    `json:"discarded"`
}

type StatusTotal struct {
	Status InvoiceStatus
	Count  int64
	Total  money.Money
	Paid   money.Money
}

type AgingBucket struct {
	Label  string      `json:"label"`
	Count  int64       `json:"count"`
	Amount money.Money `json:"amount"`
}

type Dashboard struct {
	Revenue         money.Money   `json:"revenue"`
	RevenueCount    int64         `json:"revenue_count"`
	Receivable      money.Money   `json:"receivable"`
	ReceivableCount int64         `json:"receivable_count"`
	Pending         money.Money   `json:"pending"`
	PendingCount    int64         `json:"pending_count"`
	TotalCount      int64         `json:"total_count"`
	Aging           []AgingBucket `json:"aging"`
}

type RevenuePoint struct {
	Month int         `json:"month"`
	Total money.Money `json:"total"`
	Paid  money.Money `json:"paid"`
}
