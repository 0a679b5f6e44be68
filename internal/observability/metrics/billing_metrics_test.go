package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyFailureReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: FailureReasonDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: FailureReasonDBLockTimeout,
		},
		{
			name: "serialization_failure wrapped",
			err:  fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}),
			want: FailureReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: FailureReasonUniqueViolation,
		},
		{
			name: "other pg error",
			err:  &pgconn.PgError{Code: "42P01"},
			want: FailureReasonDB,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: FailureReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyFailureReason(tc.err))
		})
	}
}

func TestBillingMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewBillingMetrics(registry, Config{ServiceName: "bluemoon", Environment: "test"})

	m.IncBatchRun(BatchResultSuccess)
	m.IncBatchRun(BatchResultSuccess)
	m.IncBatchRun(BatchResultFinalized)
	m.RecordBatchOutcome(5, 2, 1)
	m.IncCalculationFault("WATER", "no_active_price")
	m.IncCalculationWarning("ELECTRICITY", "missing_reading")
	m.IncBatchFailure(&pgconn.PgError{Code: "40001"})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.batchRuns.WithLabelValues(BatchResultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchRuns.WithLabelValues(BatchResultFinalized)))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.batchInvoices))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.batchReplaced))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchDiscarded))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calcFaults.WithLabelValues("WATER", "no_active_price")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calcWarnings.WithLabelValues("ELECTRICITY", "missing_reading")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchFailures.WithLabelValues(FailureReasonSerializationFailure)))
}

func TestBillingMetricsNilSafe(t *testing.T) {
	var m *BillingMetrics
	assert.NotPanics(t, func() {
		m.IncBatchRun(BatchResultSuccess)
		m.ObserveBatchDuration(time.Second)
		m.IncBatchFailure(errors.New("boom"))
		m.RecordBatchOutcome(1, 1, 1)
		m.IncCalculationFault("WATER", "x")
		m.IncCalculationWarning("WATER", "x")
		m.ObserveLockWait(time.Millisecond)
		m.ObservePriceLookup(time.Millisecond)
	})
}
