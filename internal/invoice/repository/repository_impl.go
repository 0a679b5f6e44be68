package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
	"github.com/smallbiznis/bluemoon/pkg/db/option"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"github.com/smallbiznis/bluemoon/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) FindForPeriod(ctx context.Context, db *gorm.DB, month, year int) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("month = ? AND year = ?", month, year).
		Order("id ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return repository.ProvideStore[invoicedomain.Invoice](db).
		FindOne(ctx, nil, option.ApplyOperator(option.Condition{Field: "id", Operator: option.EQ, Value: id}))
}

var itemSortColumns = map[string]bool{"position": true}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) ([]invoicedomain.InvoiceItem, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}
	items, err := repository.ProvideStore[invoicedomain.InvoiceItem](db).Find(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "invoice_id", Operator: option.IN, Value: invoiceIDs}),
		option.WithSortBy(option.WithQuerySortBy("position", "asc", itemSortColumns)),
	)
	if err != nil {
		return nil, err
	}
	out := make([]invoicedomain.InvoiceItem, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *repo) DeleteInvoices(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repository.ProvideStore[invoicedomain.InvoiceItem](db).DeleteWhere(ctx,
		option.ApplyOperator(option.Condition{Field: "invoice_id", Operator: option.IN, Value: ids}),
	); err != nil {
		return err
	}
	_, err := repository.ProvideStore[invoicedomain.Invoice](db).DeleteWhere(ctx,
		option.ApplyOperator(option.Condition{Field: "id", Operator: option.IN, Value: ids}),
	)
	return err
}

func (r *repo) SaveInvoices(ctx context.Context, db *gorm.DB, invoices []invoicedomain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	headers := make([]*invoicedomain.Invoice, 0, len(invoices))
	var items []*invoicedomain.InvoiceItem
	for i := range invoices {
		headers = append(headers, &invoices[i])
		for j := range invoices[i].Items {
			items = append(items, &invoices[i].Items[j])
		}
	}
	if err := repository.ProvideStore[invoicedomain.Invoice](db).BatchCreate(ctx, headers); err != nil {
		return err
	}
	return repository.ProvideStore[invoicedomain.InvoiceItem](db).BatchCreate(ctx, items)
}

type summaryRow struct {
	ID           snowflake.ID
	ApartmentID  snowflake.ID
	Month        int
	Year         int
	TotalAmount  money.Money
	PaidAmount   money.Money
	Status       invoicedomain.InvoiceStatus
	CreatedDate  time.Time
	OverdueDate  *time.Time
	RoomNumber   int
	BuildingName string
}

// ListSummaries returns invoices newest period first, optionally narrowed by month and year.
func (r *repo) ListSummaries(ctx context.Context, db *gorm.DB, filter invoicedomain.SummaryFilter) ([]invoicedomain.Summary, error) {
	stmt := db.WithContext(ctx).
		Table("invoices AS i").
		Select("i.id, i.apartment_id, i.month, i.year, i.total_amount, i.paid_amount, i.status, i.created_date, i.overdue_date, a.room_number, b.name AS building_name").
		Joins("JOIN apartments a ON a.id = i.apartment_id").
		Joins("JOIN buildings b ON b.id = a.building_id")
	if filter.Month != nil {
		stmt = stmt.Where("i.month = ?", *filter.Month)
	}
	if filter.Year != nil {
		stmt = stmt.Where("i.year = ?", *filter.Year)
	}

	var rows []summaryRow
	err := stmt.
		Order("i.year DESC").Order("i.month DESC").
		Order("b.name ASC").Order("a.room_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]invoicedomain.Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, invoicedomain.Summary{
			ID:             row.ID,
			ApartmentID:    row.ApartmentID,
			ApartmentLabel: apartmentdomain.FormatLabel(row.RoomNumber, row.BuildingName),
			Month:          row.Month,
			Year:           row.Year,
			TotalAmount:    row.TotalAmount,
			PaidAmount:     row.PaidAmount,
			Status:         row.Status,
			CreatedDate:    row.CreatedDate,
			OverdueDate:    row.OverdueDate,
		})
	}
	return out, nil
}

func (r *repo) StatusTotals(ctx context.Context, db *gorm.DB) ([]invoicedomain.StatusTotal, error) {
	var rows []invoicedomain.StatusTotal
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS count,
			COALESCE(SUM(total_amount), 0) AS total,
			COALESCE(SUM(paid_amount), 0) AS paid
		FROM invoices
		GROUP BY status
		ORDER BY status`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListReceivable returns published, unsettled invoices whose overdue date is before dueBefore.
func (r *repo) ListReceivable(ctx context.Context, db *gorm.DB, dueBefore time.Time) ([]invoicedomain.Invoice, error) {
	var invoices []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("status IN ?", []invoicedomain.InvoiceStatus{
			invoicedomain.InvoiceStatusUnpaid,
			invoicedomain.InvoiceStatusPartial,
			invoicedomain.InvoiceStatusOverdue,
		}).
		Where("overdue_date IS NOT NULL AND overdue_date < ?", dueBefore).
		Order("overdue_date ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) RevenueByMonth(ctx context.Context, db *gorm.DB, year int) ([]invoicedomain.RevenuePoint, error) {
	var rows []invoicedomain.RevenuePoint
	err := db.WithContext(ctx).Raw(
		`SELECT month,
			COALESCE(SUM(total_amount), 0) AS total,
			COALESCE(SUM(paid_amount), 0) AS paid
		FROM invoices
		WHERE year = ? AND status <> ?
		GROUP BY month
		ORDER BY month`,
		year, invoicedomain.InvoiceStatusPending,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
