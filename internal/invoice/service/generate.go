package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	"github.com/smallbiznis/bluemoon/internal/config"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
	obscontext "github.com/smallbiznis/bluemoon/internal/observability/context"
	"github.com/smallbiznis/bluemoon/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bluemoon/internal/observability/metrics"
	"github.com/smallbiznis/bluemoon/internal/observability/tracing"
	"github.com/smallbiznis/bluemoon/internal/periodlock"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	ratingdomain "github.com/smallbiznis/bluemoon/internal/rating/domain"
	dbutil "github.com/smallbiznis/bluemoon/pkg/db"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"github.com/smallbiznis/bluemoon/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// draft is one apartment's in-memory result before commit.
type draft struct {
	apartment apartmentdomain.Snapshot
	items     []ratingdomain.LineItem
	warnings  []ratingdomain.Warning
	faults    []invoicedomain.Fault
}

// staged is everything a run intends to write, computed without touching stored state.
type staged struct {
	pendingIDs []snowflake.ID
	released   []snowflake.ID
	consumed   []snowflake.ID
	invoices   []invoicedomain.Invoice
	labels     map[snowflake.ID]string
	warnings   []ratingdomain.Warning
	faults     []invoicedomain.Fault
	discarded  int
}

// GenerateBatch replaces the PENDING invoices of (month, year) with freshly computed ones.
// Nothing is written unless every step up to the commit succeeds.
func (s *Service) GenerateBatch(ctx context.Context, month, year int) (*invoicedomain.BatchResult, error) {
	if err := validatePeriod(month, year); err != nil {
		return nil, err
	}

	cfg := s.billingConfig.Get()
	now := s.clock.Now()
	batchID := correlation.NewBatchIDAt(now)

	ctx = obscontext.WithBatchID(ctx, batchID)
	ctx, span := s.tracer.Start(ctx, "invoice.generate_batch")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("batch_id", batchID),
		attribute.Int("billing.month", month),
		attribute.Int("billing.year", year),
	)...)

	log := logger.WithContext(ctx, s.log).With(zap.Int("month", month), zap.Int("year", year))

	started := time.Now()
	result, err := s.generate(ctx, log, cfg, batchID, month, year, now)
	s.billingMetrics.ObserveBatchDuration(time.Since(started))
	if err != nil {
		label := batchResultLabel(err)
		s.billingMetrics.IncBatchRun(label)
		if label == obsmetrics.BatchResultFailed {
			s.billingMetrics.IncBatchFailure(err)
			log.Error("invoice generation failed", zap.Error(err))
		} else {
			log.Warn("invoice generation refused", zap.String("result", label), zap.Error(err))
		}
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "invoice generation failed")
		return nil, err
	}

	span.SetAttributes(tracing.SafeAttributes(
		attribute.Int("billing.invoices", len(result.Invoices)),
		attribute.Int("billing.faults", len(result.Faults)),
		attribute.Int("billing.warnings", len(result.Warnings)),
	)...)
	s.billingMetrics.IncBatchRun(obsmetrics.BatchResultSuccess)
	s.billingMetrics.RecordBatchOutcome(len(result.Invoices), result.Replaced, result.Discarded)

	log.Info("invoice generation completed",
		zap.Int("invoices", len(result.Invoices)),
		zap.Int("replaced", result.Replaced),
		zap.Int("discarded", result.Discarded),
		zap.Int("warnings", len(result.Warnings)),
		zap.Int("faults", len(result.Faults)),
	)
	return result, nil
}

func (s *Service) generate(
	ctx context.Context,
	log *zap.Logger,
	cfg config.BillingConfig,
	batchID string,
	month, year int,
	now time.Time,
) (*invoicedomain.BatchResult, error) {
	key := periodlock.PeriodKey(month, year)
	lockStart := time.Now()
	token, ok, err := s.locker.TryLock(ctx, key, cfg.LockTTL)
	s.billingMetrics.ObserveLockWait(time.Since(lockStart))
	if err != nil {
		return nil, fmt.Errorf("acquire period lock: %w", err)
	}
	if !ok {
		return nil, invoicedomain.ErrGenerationInProgress
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn("release period lock failed", zap.Error(err))
		}
	}()

	existing, err := s.repo.FindForPeriod(ctx, s.db, month, year)
	if err != nil {
		return nil, err
	}
	if err := ensureRegenerable(existing); err != nil {
		return nil, err
	}

	plan, err := s.stage(ctx, log, cfg, batchID, month, year, now, existing)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, month, year, now, plan); err != nil {
		return nil, err
	}

	s.recordCommitted(ctx, plan)

	summaries := make([]invoicedomain.Summary, 0, len(plan.invoices))
	for _, inv := range plan.invoices {
		summaries = append(summaries, invoicedomain.Summary{
			ID:             inv.ID,
			ApartmentID:    inv.ApartmentID,
			ApartmentLabel: plan.labels[inv.ApartmentID],
			Month:          inv.Month,
			Year:           inv.Year,
			TotalAmount:    inv.TotalAmount,
			PaidAmount:     inv.PaidAmount,
			Status:         inv.Status,
			CreatedDate:    inv.CreatedDate,
			OverdueDate:    inv.OverdueDate,
		})
	}

	return &invoicedomain.BatchResult{
		BatchID:   batchID,
		Month:     month,
		Year:      year,
		Invoices:  summaries,
		Warnings:  plan.warnings,
		Faults:    plan.faults,
		Replaced:  len(plan.pendingIDs),
		Discarded: plan.discarded,
	}, nil
}

// stage loads every input, computes all apartments and assembles the invoices to write.
func (s *Service) stage(
	ctx context.Context,
	log *zap.Logger,
	cfg config.BillingConfig,
	batchID string,
	month, year int,
	now time.Time,
	existing []invoicedomain.Invoice,
) (*staged, error) {
	plan := &staged{
		pendingIDs: lo.Map(existing, func(inv invoicedomain.Invoice, _ int) snowflake.ID { return inv.ID }),
		labels:     make(map[snowflake.ID]string),
	}

	pendingItems, err := s.repo.ListItems(ctx, s.db, plan.pendingIDs)
	if err != nil {
		return nil, err
	}
	plan.released = feeReferences(pendingItems)

	apartments, err := s.apartments.ListWithResidents(ctx, s.db)
	if err != nil {
		return nil, err
	}
	categories, err := s.prices.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	readings, err := s.usage.ListForPeriod(ctx, s.db, month, year, nil)
	if err != nil {
		return nil, err
	}
	unbilled, err := s.fees.ListUnbilledByApartment(ctx, s.db)
	if err != nil {
		return nil, err
	}
	releasedFees, err := s.fees.ListByIDs(ctx, s.db, plan.released)
	if err != nil {
		return nil, err
	}

	priceDate := PriceDate(cfg.PriceDatePolicy, month, year, now)
	src := newBatchSources(s.prices, priceDate, s.billingMetrics, readings, unbilled, releasedFees)
	log.Debug("invoice generation staged",
		zap.String("price_date", priceDate.Format(time.DateOnly)),
		zap.Int("apartments", len(apartments)),
		zap.Int("categories", len(categories)),
		zap.Int("pending", len(plan.pendingIDs)),
		zap.Int("released_fees", len(plan.released)),
	)

	drafts := make([]*draft, len(apartments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, apartment := range apartments {
		g.Go(func() error {
			d, err := s.computeApartment(gctx, src, categories, apartment, month, year)
			if err != nil {
				return err
			}
			drafts[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	overdue := now.AddDate(0, 0, cfg.OverdueAfterDays)
	for _, d := range drafts {
		for _, w := range d.warnings {
			log.Warn("line item skipped",
				zap.String("apartment_id", w.ApartmentID.String()),
				zap.String("category", string(w.Category)),
				zap.String("code", w.Code),
				zap.String("detail", w.Message),
			)
			s.billingMetrics.IncCalculationWarning(string(w.Category), w.Code)
		}
		for _, f := range d.faults {
			log.Error("line item calculation failed",
				zap.String("apartment_id", f.ApartmentID.String()),
				zap.String("category", string(f.Category)),
				zap.String("reason", f.Reason),
				zap.String("detail", f.Message),
			)
			s.billingMetrics.IncCalculationFault(string(f.Category), f.Reason)
		}
		plan.warnings = append(plan.warnings, d.warnings...)
		plan.faults = append(plan.faults, d.faults...)

		total := money.Sum(lo.Map(d.items, func(item ratingdomain.LineItem, _ int) money.Money { return item.Amount })...)
		if !total.IsPositive() {
			plan.discarded++
			continue
		}

		invoice := invoicedomain.Invoice{
			ID:          s.genID.Generate(),
			ApartmentID: d.apartment.ID,
			Month:       month,
			Year:        year,
			Status:      invoicedomain.InvoiceStatusPending,
			TotalAmount: total,
			PaidAmount:  money.Zero,
			CreatedDate: now,
			OverdueDate: &overdue,
			BatchID:     batchID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for pos, item := range d.items {
			invoice.Items = append(invoice.Items, invoicedomain.InvoiceItem{
				ID:            s.genID.Generate(),
				InvoiceID:     invoice.ID,
				Category:      item.Category,
				Quantity:      item.Quantity,
				UnitPrice:     item.UnitPrice,
				Amount:        item.Amount,
				UsageRecordID: item.UsageRecordID,
				ReferenceID:   item.ReferenceID,
				OldIndex:      item.OldIndex,
				NewIndex:      item.NewIndex,
				Description:   item.Description,
				Breakdown:     datatypes.JSONSlice[ratingdomain.BreakdownEntry](item.Breakdown),
				Position:      pos + 1,
				CreatedAt:     now,
			})
		}
		plan.consumed = append(plan.consumed, feeReferences(invoice.Items)...)
		plan.labels[d.apartment.ID] = d.apartment.Label()
		plan.invoices = append(plan.invoices, invoice)
	}

	return plan, nil
}

// computeApartment prices every category for one apartment. Configuration and input
// faults are isolated to the category; anything else aborts the run.
func (s *Service) computeApartment(
	ctx context.Context,
	src ratingdomain.Sources,
	categories []pricedomain.ServiceCategory,
	apartment apartmentdomain.Snapshot,
	month, year int,
) (*draft, error) {
	d := &draft{apartment: apartment}
	req := ratingdomain.Request{Apartment: apartment, Month: month, Year: year}
	for _, category := range categories {
		outcome, err := s.rating.Calculate(ctx, category, req, src)
		if err != nil {
			reason, isolated := faultReason(err)
			if !isolated {
				return nil, fmt.Errorf("apartment %s %s: %w", apartment.ID, category, err)
			}
			d.faults = append(d.faults, invoicedomain.Fault{
				ApartmentID:    apartment.ID,
				ApartmentLabel: apartment.Label(),
				Category:       category,
				Reason:         reason,
				Message:        err.Error(),
			})
			continue
		}
		d.items = append(d.items, outcome.Items...)
		d.warnings = append(d.warnings, outcome.Warnings...)
	}
	return d, nil
}

// commit applies the staged run in one transaction.
func (s *Service) commit(ctx context.Context, month, year int, now time.Time, plan *staged) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindForPeriod(ctx, tx, month, year)
		if err != nil {
			return err
		}
		if err := ensureRegenerable(current); err != nil {
			return err
		}
		if !sameIDs(current, plan.pendingIDs) {
			return fmt.Errorf("%w: period changed while computing", invoicedomain.ErrGenerationInProgress)
		}

		if _, err := s.fees.SetBilled(ctx, tx, plan.released, false, now); err != nil {
			return fmt.Errorf("release extra fees: %w", err)
		}
		if err := s.repo.DeleteInvoices(ctx, tx, plan.pendingIDs); err != nil {
			return fmt.Errorf("delete pending invoices: %w", err)
		}
		if err := s.repo.SaveInvoices(ctx, tx, plan.invoices); err != nil {
			if dbutil.IsDuplicateKeyErr(err) {
				return fmt.Errorf("%w: %v", invoicedomain.ErrGenerationInProgress, err)
			}
			return fmt.Errorf("save invoices: %w", err)
		}
		billed, err := s.fees.SetBilled(ctx, tx, plan.consumed, true, now)
		if err != nil {
			return fmt.Errorf("mark extra fees billed: %w", err)
		}
		// a fee billed by another period since staging leaves the count short
		if billed != int64(len(plan.consumed)) {
			return fmt.Errorf("%w: %d of %d extra fees already billed", invoicedomain.ErrGenerationInProgress, int64(len(plan.consumed))-billed, len(plan.consumed))
		}
		return nil
	})
}

func (s *Service) recordCommitted(ctx context.Context, plan *staged) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordInvoicesGenerated(ctx, len(plan.invoices))
	s.metrics.RecordExtraFeesBilled(ctx, len(plan.consumed))
	for _, inv := range plan.invoices {
		for _, item := range inv.Items {
			s.metrics.RecordLineItem(ctx, string(item.Category))
		}
	}
}

func validatePeriod(month, year int) error {
	if month < 1 || month > 12 || year <= 0 {
		return fmt.Errorf("%w: %d/%d", invoicedomain.ErrInvalidPeriod, month, year)
	}
	return nil
}

func ensureRegenerable(invoices []invoicedomain.Invoice) error {
	for _, inv := range invoices {
		if inv.Status.Finalized() {
			return fmt.Errorf("%w: invoice %s is %s", invoicedomain.ErrPeriodFinalized, inv.ID, inv.Status)
		}
	}
	return nil
}

func sameIDs(invoices []invoicedomain.Invoice, ids []snowflake.ID) bool {
	if len(invoices) != len(ids) {
		return false
	}
	want := lo.SliceToMap(ids, func(id snowflake.ID) (snowflake.ID, struct{}) { return id, struct{}{} })
	for _, inv := range invoices {
		if _, ok := want[inv.ID]; !ok {
			return false
		}
	}
	return true
}

// feeReferences returns the extra fee ids carried by EXTRA items.
func feeReferences(items []invoicedomain.InvoiceItem) []snowflake.ID {
	refs := lo.FilterMap(items, func(item invoicedomain.InvoiceItem, _ int) (snowflake.ID, bool) {
		if item.Category != pricedomain.CategoryExtra || item.ReferenceID == nil {
			return 0, false
		}
		return *item.ReferenceID, true
	})
	return lo.Uniq(refs)
}

// faultReason classifies errors that stay local to one apartment and category.
func faultReason(err error) (string, bool) {
	switch {
	case errors.Is(err, pricedomain.ErrNoActivePrice):
		return "no_active_price", true
	case errors.Is(err, pricedomain.ErrAmbiguousPrice):
		return "ambiguous_active_price", true
	case errors.Is(err, pricedomain.ErrInvalidTiers):
		return "invalid_price_tiers", true
	case errors.Is(err, pricedomain.ErrUnexpectedModel):
		return "unexpected_price_model", true
	case errors.Is(err, pricedomain.ErrTierNotFound):
		return "price_tier_not_found", true
	case errors.Is(err, ratingdomain.ErrInvalidInput):
		return "invalid_input", true
	case errors.Is(err, ratingdomain.ErrUnknownCategory):
		return "unknown_category", true
	default:
		return "", false
	}
}

func batchResultLabel(err error) string {
	switch {
	case errors.Is(err, invoicedomain.ErrPeriodFinalized):
		return obsmetrics.BatchResultFinalized
	case errors.Is(err, invoicedomain.ErrGenerationInProgress):
		return obsmetrics.BatchResultInProgress
	default:
		return obsmetrics.BatchResultFailed
	}
}
