package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	"github.com/smallbiznis/bluemoon/internal/config"
	"github.com/smallbiznis/bluemoon/internal/invoice/format"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
	"github.com/smallbiznis/bluemoon/internal/providers/pdf"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"go.uber.org/zap"
)

func (s *Service) ListSummaries(ctx context.Context, filter invoicedomain.SummaryFilter) ([]invoicedomain.Summary, error) {
	if filter.Month != nil && (*filter.Month < 1 || *filter.Month > 12) {
		return nil, fmt.Errorf("%w: month %d", invoicedomain.ErrInvalidPeriod, *filter.Month)
	}
	if filter.Year != nil && *filter.Year <= 0 {
		return nil, fmt.Errorf("%w: year %d", invoicedomain.ErrInvalidPeriod, *filter.Year)
	}
	return s.repo.ListSummaries(ctx, s.db, filter)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*invoicedomain.Detail, error) {
	detail, _, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) loadDetail(ctx context.Context, id string) (*invoicedomain.Detail, *apartmentdomain.Snapshot, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID <= 0 {
		return nil, nil, invoicedomain.ErrInvalidID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if invoice == nil {
		return nil, nil, invoicedomain.ErrNotFound
	}

	items, err := s.repo.ListItems(ctx, s.db, []snowflake.ID{invoice.ID})
	if err != nil {
		return nil, nil, err
	}
	invoice.Items = items

	apartment, err := s.apartments.FindByID(ctx, s.db, invoice.ApartmentID)
	if err != nil {
		return nil, nil, err
	}
	detail := &invoicedomain.Detail{Invoice: *invoice}
	if apartment != nil {
		detail.ApartmentLabel = apartment.Label()
	}
	return detail, apartment, nil
}

// RenderStatement produces the PDF statement of one invoice.
func (s *Service) RenderStatement(ctx context.Context, id string) ([]byte, error) {
	detail, apartment, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if apartment == nil {
		return nil, fmt.Errorf("%w: apartment %s", apartmentdomain.ErrNotFound, detail.ApartmentID)
	}

	number, err := format.FormatStatementNumber(format.DefaultStatementNumberTemplate, detail.Month, detail.Year, apartment.RoomNumber)
	if err != nil {
		return nil, err
	}

	data := pdf.StatementData{
		BuildingName:    apartment.BuildingName,
		StatementNumber: number,
		Period:          format.Period(detail.Month, detail.Year),
		IssueDate:       format.Date(detail.CreatedDate),
		Status:          string(detail.Status),
		ApartmentLabel:  detail.ApartmentLabel,
		Total:           format.Amount(detail.TotalAmount),
		Paid:            format.Amount(detail.PaidAmount),
		Outstanding:     format.Amount(detail.Outstanding()),
	}
	if detail.OverdueDate != nil {
		data.DueDate = format.Date(*detail.OverdueDate)
	}
	for _, item := range detail.Items {
		line := pdf.StatementItem{
			Description: item.Description,
			Quantity:    format.Quantity(item.Quantity),
			Amount:      format.Amount(item.Amount),
		}
		if !item.UnitPrice.IsZero() {
			line.UnitPrice = format.Amount(money.New(item.UnitPrice))
		}
		for _, entry := range item.Breakdown {
			line.Details = append(line.Details, fmt.Sprintf("%s: %s x %s = %s",
				entry.Label,
				format.Quantity(entry.Quantity),
				format.Amount(money.New(entry.UnitPrice)),
				format.Amount(entry.Amount),
			))
		}
		data.Items = append(data.Items, line)
	}

	doc, err := s.statements.RenderStatement(ctx, data)
	if err != nil {
		s.log.Error("render statement failed", zap.String("invoice_id", detail.ID.String()), zap.Error(err))
		return nil, err
	}
	return doc, nil
}

// Dashboard summarizes invoices by lifecycle state and ages the receivables.
func (s *Service) Dashboard(ctx context.Context) (*invoicedomain.Dashboard, error) {
	totals, err := s.repo.StatusTotals(ctx, s.db)
	if err != nil {
		return nil, err
	}

	out := &invoicedomain.Dashboard{
		Revenue:    money.Zero,
		Receivable: money.Zero,
		Pending:    money.Zero,
	}
	for _, t := range totals {
		out.TotalCount += t.Count
		switch {
		case t.Status == invoicedomain.InvoiceStatusPaid:
			out.Revenue = out.Revenue.Add(t.Total)
			out.RevenueCount += t.Count
		case t.Status.Receivable():
			out.Receivable = out.Receivable.Add(t.Total.Sub(t.Paid))
			out.ReceivableCount += t.Count
		case t.Status == invoicedomain.InvoiceStatusPending:
			out.Pending = out.Pending.Add(t.Total)
			out.PendingCount += t.Count
		}
	}

	now := s.clock.Now()
	receivables, err := s.repo.ListReceivable(ctx, s.db, now)
	if err != nil {
		return nil, err
	}
	out.Aging = AgeReceivables(s.billingConfig.Get().AgingBuckets, receivables, now)
	return out, nil
}

// AgeReceivables places each invoice in the bucket matching its whole days past due.
// Invoices outside every bucket are ignored.
func AgeReceivables(buckets []config.AgingBucket, invoices []invoicedomain.Invoice, now time.Time) []invoicedomain.AgingBucket {
	out := lo.Map(buckets, func(b config.AgingBucket, _ int) invoicedomain.AgingBucket {
		return invoicedomain.AgingBucket{Label: b.Label, Amount: money.Zero}
	})
	for _, inv := range invoices {
		if inv.OverdueDate == nil {
			continue
		}
		days := int(now.Sub(*inv.OverdueDate) / (24 * time.Hour))
		if days < 0 {
			continue
		}
		for i, b := range buckets {
			if days < b.MinDays || (b.MaxDays != nil && days > *b.MaxDays) {
				continue
			}
			out[i].Count++
			out[i].Amount = out[i].Amount.Add(inv.Outstanding())
			break
		}
	}
	return out
}

// RevenueByMonth returns billed and collected amounts for each month of year,
// zero-filled for months without published invoices.
func (s *Service) RevenueByMonth(ctx context.Context, year int) ([]invoicedomain.RevenuePoint, error) {
	if year <= 0 {
		return nil, fmt.Errorf("%w: %d", invoicedomain.ErrInvalidYear, year)
	}
	rows, err := s.repo.RevenueByMonth(ctx, s.db, year)
	if err != nil {
		return nil, err
	}
	byMonth := lo.KeyBy(rows, func(p invoicedomain.RevenuePoint) int { return p.Month })

	out := make([]invoicedomain.RevenuePoint, 0, 12)
	for month := 1; month <= 12; month++ {
		point, ok := byMonth[month]
		if !ok {
			point = invoicedomain.RevenuePoint{Month: month, Total: money.Zero, Paid: money.Zero}
		}
		out = append(out, point)
	}
	return out, nil
}
