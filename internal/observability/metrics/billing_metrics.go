package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	BatchResultSuccess    = "success"
	BatchResultFinalized  = "finalized"
	BatchResultInProgress = "in_progress"
	BatchResultFailed     = "failed"
)

const (
	FailureReasonDeadlineExceeded     = "deadline_exceeded"
	FailureReasonDBLockTimeout        = "db_lock_timeout"
	FailureReasonSerializationFailure = "serialization_failure"
	FailureReasonUniqueViolation      = "unique_violation"
	FailureReasonDB                   = "db"
	FailureReasonUnknown              = "unknown"
)

// BillingMetrics captures invoice generation health signals.
type BillingMetrics struct {
	batchRuns       *prometheus.CounterVec
	batchDuration   prometheus.Observer
	batchFailures   *prometheus.CounterVec
	batchInvoices   prometheus.Counter
	batchDiscarded  prometheus.Counter
	batchReplaced   prometheus.Counter
	calcFaults      *prometheus.CounterVec
	calcWarnings    *prometheus.CounterVec
	lockWait        prometheus.Observer
	resultCounters  map[string]prometheus.Counter
	priceLookupTime prometheus.Observer
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	return BillingWithConfig(Config{})
}

// BillingWithConfig returns the singleton billing metrics registry using config labels.
func BillingWithConfig(cfg Config) *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return billingMetrics
}

// NewBillingMetrics registers billing metrics on a caller-owned registerer.
func NewBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	return newBillingMetrics(registerer, cfg)
}

func newBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "bluemoon"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	batchRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bluemoon_invoice_batch_runs_total",
		Help:        "Invoice generation runs by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "bluemoon_invoice_batch_duration_seconds",
		Help:        "Invoice generation latency from lock to commit.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	batchFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bluemoon_invoice_batch_failures_total",
		Help:        "Invoice generation failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	batchInvoices := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "bluemoon_invoice_batch_invoices_total",
		Help:        "PENDING invoices committed by generation runs.",
		ConstLabels: constLabels,
	})
	batchDiscarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "bluemoon_invoice_batch_discarded_total",
		Help:        "Apartments skipped because their invoice total was zero.",
		ConstLabels: constLabels,
	})
	batchReplaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "bluemoon_invoice_batch_replaced_total",
		Help:        "PENDING invoices deleted and regenerated.",
		ConstLabels: constLabels,
	})
	calcFaults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bluemoon_invoice_calculation_faults_total",
		Help:        "Per-apartment line item faults isolated during generation.",
		ConstLabels: constLabels,
	}, []string{"category", "reason"})
	calcWarnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bluemoon_invoice_calculation_warnings_total",
		Help:        "Non-fatal calculation warnings such as missing meter readings.",
		ConstLabels: constLabels,
	}, []string{"category", "code"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "bluemoon_invoice_period_lock_wait_seconds",
		Help:        "Time spent acquiring the period lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	})
	priceLookupTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "bluemoon_price_resolution_seconds",
		Help:        "Active price resolution latency per category lookup.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		batchRuns,
		batchDuration,
		batchFailures,
		batchInvoices,
		batchDiscarded,
		batchReplaced,
		calcFaults,
		calcWarnings,
		lockWait,
		priceLookupTime,
	)

	resultCounters := map[string]prometheus.Counter{}
	for _, result := range []string{
		BatchResultSuccess,
		BatchResultFinalized,
		BatchResultInProgress,
		BatchResultFailed,
	} {
		resultCounters[result] = batchRuns.WithLabelValues(result)
	}

	return &BillingMetrics{
		batchRuns:       batchRuns,
		batchDuration:   batchDuration,
		batchFailures:   batchFailures,
		batchInvoices:   batchInvoices,
		batchDiscarded:  batchDiscarded,
		batchReplaced:   batchReplaced,
		calcFaults:      calcFaults,
		calcWarnings:    calcWarnings,
		lockWait:        lockWait,
		resultCounters:  resultCounters,
		priceLookupTime: priceLookupTime,
	}
}

// IncBatchRun counts a generation run by its result label.
func (m *BillingMetrics) IncBatchRun(result string) {
	if m == nil {
		return
	}
	if counter, ok := m.resultCounters[result]; ok {
		counter.Inc()
		return
	}
	m.batchRuns.WithLabelValues(result).Inc()
}

func (m *BillingMetrics) ObserveBatchDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(duration.Seconds())
}

// IncBatchFailure classifies and counts a failed generation run.
func (m *BillingMetrics) IncBatchFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.batchFailures.WithLabelValues(ClassifyFailureReason(err)).Inc()
}

// RecordBatchOutcome adds the committed counts of one successful run.
func (m *BillingMetrics) RecordBatchOutcome(invoices, replaced, discarded int) {
	if m == nil {
		return
	}
	if invoices > 0 {
		m.batchInvoices.Add(float64(invoices))
	}
	if replaced > 0 {
		m.batchReplaced.Add(float64(replaced))
	}
	if discarded > 0 {
		m.batchDiscarded.Add(float64(discarded))
	}
}

func (m *BillingMetrics) IncCalculationFault(category, reason string) {
	if m == nil {
		return
	}
	m.calcFaults.WithLabelValues(category, reason).Inc()
}

func (m *BillingMetrics) IncCalculationWarning(category, code string) {
	if m == nil {
		return
	}
	m.calcWarnings.WithLabelValues(category, code).Inc()
}

func (m *BillingMetrics) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

func (m *BillingMetrics) ObservePriceLookup(duration time.Duration) {
	if m == nil {
		return
	}
	m.priceLookupTime.Observe(duration.Seconds())
}

// ClassifyFailureReason maps infrastructure errors to low-cardinality reasons.
func ClassifyFailureReason(err error) string {
	if err == nil {
		return FailureReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureReasonDeadlineExceeded
	}
	if isDBLockTimeout(err) {
		return FailureReasonDBLockTimeout
	}
	if isSerializationFailure(err) {
		return FailureReasonSerializationFailure
	}
	if isUniqueViolation(err) {
		return FailureReasonUniqueViolation
	}
	if IsDBError(err) {
		return FailureReasonDB
	}
	return FailureReasonUnknown
}

func isDBLockTimeout(err error) bool {
	return hasPGCode(err, "55P03")
}

func isSerializationFailure(err error) bool {
	return hasPGCode(err, "40001")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// IsDBError reports whether err originates from the database layer.
func IsDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrInvalidValue) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
