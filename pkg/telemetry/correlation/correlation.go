package correlation

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewBatchIDAt returns a sortable identifier for one invoice generation run started at t.
// Identifiers created within the same millisecond still sort in creation order.
func NewBatchIDAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// BatchStartedAt recovers the start time encoded in a batch identifier.
func BatchStartedAt(batchID string) (time.Time, error) {
	id, err := ulid.ParseStrict(batchID)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()).UTC(), nil
}
