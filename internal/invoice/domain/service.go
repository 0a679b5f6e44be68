package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type SummaryFilter struct {
	Month *int
	Year  *int
}

type Service interface {
	// GenerateBatch regenerates every PENDING invoice of a period in one commit.
	GenerateBatch(ctx context.Context, month, year int) (*BatchResult, error)
	ListSummaries(ctx context.Context, filter SummaryFilter) ([]Summary, error)
	GetInvoice(ctx context.Context, id string) (*Detail, error)
	RenderStatement(ctx context.Context, id string) ([]byte, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
	RevenueByMonth(ctx context.Context, year int) ([]RevenuePoint, error)
}

type Repository interface {
	FindForPeriod(ctx context.Context, db *gorm.DB, month, year int) ([]Invoice, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) ([]InvoiceItem, error)
	// DeleteInvoices removes invoices and their items.
	DeleteInvoices(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error
	// SaveInvoices inserts invoices with their items.
	SaveInvoices(ctx context.Context, db *gorm.DB, invoices []Invoice) error
	ListSummaries(ctx context.Context, db *gorm.DB, filter SummaryFilter) ([]Summary, error)
	StatusTotals(ctx context.Context, db *gorm.DB) ([]StatusTotal, error)
	ListReceivable(ctx context.Context, db *gorm.DB, dueBefore time.Time) ([]Invoice, error)
	RevenueByMonth(ctx context.Context, db *gorm.DB, year int) ([]RevenuePoint, error)
}

var (
	ErrInvalidPeriod        = errors.New("invalid_period")
	ErrPeriodFinalized      = errors.New("period_finalized")
	ErrGenerationInProgress = errors.New("generation_in_progress")
	ErrInvalidID            = errors.New("invalid_invoice_id")
	ErrNotFound             = errors.New("invoice_not_found")
	ErrInvalidYear          = errors.New("invalid_year")
)
