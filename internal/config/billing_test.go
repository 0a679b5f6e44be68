package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBillingConfigHolderDefaults(t *testing.T) {
	holder, err := NewBillingConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, PriceDateExecution, cfg.PriceDatePolicy)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.LockTTL)
	assert.Len(t, cfg.AgingBuckets, 3)
}

func TestValidateBillingConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*BillingConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*BillingConfig) {}},
		{name: "period start policy", mutate: func(c *BillingConfig) { c.PriceDatePolicy = PriceDatePeriodStart }},
		{name: "unknown policy", mutate: func(c *BillingConfig) { c.PriceDatePolicy = "nearest" }, wantErr: true},
		{name: "zero concurrency", mutate: func(c *BillingConfig) { c.Concurrency = 0 }, wantErr: true},
		{name: "zero lock ttl", mutate: func(c *BillingConfig) { c.LockTTL = 0 }, wantErr: true},
		{name: "no buckets", mutate: func(c *BillingConfig) { c.AgingBuckets = nil }, wantErr: true},
		{
			name: "open bucket not last",
			mutate: func(c *BillingConfig) {
				c.AgingBuckets = []AgingBucket{{Label: "all", MinDays: 0}, {Label: "late", MinDays: 10, MaxDays: intPtr(20)}}
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultBillingConfig()
			tc.mutate(&cfg)
			err := validateBillingConfig(cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStaticHolder(t *testing.T) {
	cfg := DefaultBillingConfig()
	cfg.Concurrency = 9
	holder := NewStaticBillingConfigHolder(cfg)
	assert.Equal(t, 9, holder.Get().Concurrency)
}
