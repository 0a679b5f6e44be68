// Package periodlock serializes invoice generation runs per billing period.
package periodlock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const keyInvoiceBatch = "bluemoon:invoice-batch:%04d-%02d"

var (
	ErrEmptyKey   = errors.New("lock key is empty")
	ErrInvalidTTL = errors.New("lock ttl must be positive")
)

// Locker grants a single holder per key until Release or TTL expiry.
type Locker interface {
	// TryLock returns ok=false without error when the key is already held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release is a no-op unless token still owns key.
	Release(ctx context.Context, key, token string) error
}

// PeriodKey names the lock guarding one (month, year) generation run.
func PeriodKey(month, year int) string {
	return fmt.Sprintf(keyInvoiceBatch, year, month)
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
