package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Price lookup policies for a generation run.
const (
	PriceDateExecution   = "execution_date"
	PriceDatePeriodStart = "period_start"
)

type BillingConfig struct {
	PriceDatePolicy  string        `mapstructure:"priceDatePolicy"`
	Concurrency      int           `mapstructure:"concurrency"`
	LockTTL          time.Duration `mapstructure:"lockTTL"`
	OverdueAfterDays int           `mapstructure:"overdueAfterDays"`
	AgingBuckets     []AgingBucket `mapstructure:"agingBuckets"`
}

// AgingBucket groups receivables by days past their overdue date. A nil MaxDays is open-ended.
type AgingBucket struct {
	Label   string `mapstructure:"label" json:"label"`
	MinDays int    `mapstructure:"minDays" json:"min_days"`
	MaxDays *int   `mapstructure:"maxDays" json:"max_days,omitempty"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		PriceDatePolicy:  PriceDateExecution,
		Concurrency:      4,
		LockTTL:          5 * time.Minute,
		OverdueAfterDays: 15,
		AgingBuckets: []AgingBucket{
			{Label: "0-30", MinDays: 0, MaxDays: intPtr(30)},
			{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
			{Label: "60+", MinDays: 61, MaxDays: nil},
		},
	}
}

func intPtr(v int) *int { return &v }

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder wraps a fixed configuration.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/bluemoon/config")
	v.AddConfigPath("/etc/bluemoon")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BLUEMOON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.priceDatePolicy", defaults.PriceDatePolicy)
	v.SetDefault("billing.concurrency", defaults.Concurrency)
	v.SetDefault("billing.lockTTL", defaults.LockTTL)
	v.SetDefault("billing.overdueAfterDays", defaults.OverdueAfterDays)
	v.SetDefault("billing.agingBuckets", defaults.AgingBuckets)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)

	if fileFound && getenvBool("BILLING_CONFIG_WATCH", true) {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				zap.L().Warn("billing config reload failed", zap.Error(err))
				return
			}
			if err := validateBillingConfig(updated); err != nil {
				zap.L().Warn("invalid billing config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			zap.L().Info("billing config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	switch cfg.PriceDatePolicy {
	case PriceDateExecution, PriceDatePeriodStart:
	default:
		return fmt.Errorf("billing.priceDatePolicy %q is not supported", cfg.PriceDatePolicy)
	}
	if cfg.Concurrency < 1 {
		return errors.New("billing.concurrency must be at least 1")
	}
	if cfg.LockTTL <= 0 {
		return errors.New("billing.lockTTL must be positive")
	}
	if cfg.OverdueAfterDays < 0 {
		return errors.New("billing.overdueAfterDays cannot be negative")
	}
	if len(cfg.AgingBuckets) == 0 {
		return errors.New("billing.agingBuckets cannot be empty")
	}
	for i, bucket := range cfg.AgingBuckets {
		if bucket.MaxDays == nil && i != len(cfg.AgingBuckets)-1 {
			return errors.New("billing.agingBuckets only the last bucket may be open-ended")
		}
		if bucket.MaxDays != nil && *bucket.MaxDays < bucket.MinDays {
			return fmt.Errorf("billing.agingBuckets %q has maxDays below minDays", bucket.Label)
		}
	}
	return nil
}
