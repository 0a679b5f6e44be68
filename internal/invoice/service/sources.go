package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/bluemoon/internal/config"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	obsmetrics "github.com/smallbiznis/bluemoon/internal/observability/metrics"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
)

// PriceDate is the date active prices are resolved at for a run of (month, year).
func PriceDate(policy string, month, year int, now time.Time) time.Time {
	if policy == config.PriceDatePeriodStart {
		return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	}
	return pricedomain.DateOf(now)
}

type readingKey struct {
	apartmentID snowflake.ID
	category    pricedomain.ServiceCategory
	month       int
	year        int
}

type priceEntry struct {
	once     sync.Once
	schedule *pricedomain.PriceSchedule
	err      error
}

// batchSources serves calculators from data loaded once per run. Each category's
// price is resolved at most once, errors included.
type batchSources struct {
	prices  pricedomain.Service
	on      time.Time
	metrics *obsmetrics.BillingMetrics

	mu       sync.Mutex
	resolved map[pricedomain.ServiceCategory]*priceEntry

	readings map[readingKey]usagedomain.MeterReading
	fees     map[snowflake.ID][]extrafeedomain.ExtraFee
}

func newBatchSources(
	prices pricedomain.Service,
	on time.Time,
	metrics *obsmetrics.BillingMetrics,
	readings []usagedomain.MeterReading,
	unbilled map[snowflake.ID][]extrafeedomain.ExtraFee,
	released []extrafeedomain.ExtraFee,
) *batchSources {
	byKey := make(map[readingKey]usagedomain.MeterReading, len(readings))
	for _, r := range readings {
		byKey[readingKey{apartmentID: r.ApartmentID, category: r.Category, month: r.Month, year: r.Year}] = r
	}

	fees := make(map[snowflake.ID][]extrafeedomain.ExtraFee, len(unbilled))
	for apartmentID, list := range unbilled {
		fees[apartmentID] = append(fees[apartmentID], list...)
	}
	for _, fee := range released {
		fees[fee.ApartmentID] = append(fees[fee.ApartmentID], fee)
	}
	for apartmentID, list := range fees {
		list = lo.UniqBy(list, func(f extrafeedomain.ExtraFee) snowflake.ID { return f.ID })
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].FeeDate.Equal(list[j].FeeDate) {
				return list[i].FeeDate.Before(list[j].FeeDate)
			}
			return list[i].ID < list[j].ID
		})
		fees[apartmentID] = list
	}

	return &batchSources{
		prices:   prices,
		on:       on,
		metrics:  metrics,
		resolved: make(map[pricedomain.ServiceCategory]*priceEntry),
		readings: byKey,
		fees:     fees,
	}
}

func (s *batchSources) ActivePrice(ctx context.Context, category pricedomain.ServiceCategory) (*pricedomain.PriceSchedule, error) {
	s.mu.Lock()
	entry, ok := s.resolved[category]
	if !ok {
		entry = &priceEntry{}
		s.resolved[category] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		start := time.Now()
		entry.schedule, entry.err = s.prices.ResolveActivePrice(ctx, category, s.on)
		s.metrics.ObservePriceLookup(time.Since(start))
	})
	return entry.schedule, entry.err
}

func (s *batchSources) Reading(_ context.Context, apartmentID snowflake.ID, category pricedomain.ServiceCategory, month, year int) (*usagedomain.MeterReading, error) {
	reading, ok := s.readings[readingKey{apartmentID: apartmentID, category: category, month: month, year: year}]
	if !ok {
		return nil, nil
	}
	return &reading, nil
}

func (s *batchSources) UnbilledFees(_ context.Context, apartmentID snowflake.ID) ([]extrafeedomain.ExtraFee, error) {
	return s.fees[apartmentID], nil
}
