package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	"github.com/smallbiznis/bluemoon/internal/clock"
	obsmetrics "github.com/smallbiznis/bluemoon/internal/observability/metrics"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          usagedomain.Repository
	ApartmentRepo apartmentdomain.Repository
	Clock         clock.Clock
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          usagedomain.Repository
	apartmentRepo apartmentdomain.Repository
	clock         clock.Clock
	metrics       *obsmetrics.Metrics
}

func New(p Params) usagedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("usage.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		apartmentRepo: p.ApartmentRepo,
		clock:         p.Clock,
		metrics:       p.Metrics,
	}
}

type readingKey struct {
	apartmentID snowflake.ID
	category    pricedomain.ServiceCategory
}

// RecordReadings imports one period's meter readings. The whole import is rejected
// if any row is invalid.
func (s *Service) RecordReadings(ctx context.Context, req usagedomain.RecordReadingsRequest) ([]usagedomain.MeterReading, error) {
	if req.Month < 1 || req.Month > 12 || req.Year <= 0 {
		return nil, usagedomain.ErrInvalidPeriod
	}
	if len(req.Readings) == 0 {
		return nil, usagedomain.ErrEmptyImport
	}

	now := s.clock.Now()
	seen := make(map[readingKey]struct{}, len(req.Readings))
	readings := make([]usagedomain.MeterReading, 0, len(req.Readings))

	for i, input := range req.Readings {
		reading, err := s.buildReading(ctx, req.Month, req.Year, input, now)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		key := readingKey{apartmentID: reading.ApartmentID, category: reading.Category}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("row %d: %w", i+1, usagedomain.ErrDuplicateReading)
		}
		seen[key] = struct{}{}
		readings = append(readings, reading)
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Upsert(ctx, tx, readings)
	}); err != nil {
		return nil, err
	}

	for category, group := range lo.GroupBy(readings, func(r usagedomain.MeterReading) pricedomain.ServiceCategory { return r.Category }) {
		s.metrics.RecordReadingsImported(ctx, string(category), len(group))
	}
	s.log.Info("recorded meter readings",
		zap.Int("month", req.Month),
		zap.Int("year", req.Year),
		zap.Int("count", len(readings)),
	)
	return readings, nil
}

func (s *Service) buildReading(ctx context.Context, month, year int, input usagedomain.ReadingInput, now time.Time) (usagedomain.MeterReading, error) {
	var reading usagedomain.MeterReading

	apartmentID, err := snowflake.ParseString(strings.TrimSpace(input.ApartmentID))
	if err != nil {
		return reading, usagedomain.ErrInvalidApartment
	}
	apartment, err := s.apartmentRepo.FindByID(ctx, s.db, apartmentID)
	if err != nil {
		return reading, err
	}
	if apartment == nil {
		return reading, usagedomain.ErrInvalidApartment
	}

	category, err := pricedomain.ParseCategory(input.Category)
	if err != nil || !category.Metered() {
		return reading, usagedomain.ErrInvalidCategory
	}

	newIndex, err := parseIndex(input.NewIndex)
	if err != nil {
		return reading, err
	}

	var oldIndex decimal.Decimal
	if input.OldIndex != nil && strings.TrimSpace(*input.OldIndex) != "" {
		if oldIndex, err = parseIndex(*input.OldIndex); err != nil {
			return reading, err
		}
	} else {
		prevMonth, prevYear := usagedomain.PreviousPeriod(month, year)
		previous, err := s.repo.Find(ctx, s.db, apartmentID, category, prevMonth, prevYear)
		if err != nil {
			return reading, err
		}
		if previous != nil {
			oldIndex = previous.NewIndex
		}
	}
	if newIndex.LessThan(oldIndex) {
		return reading, fmt.Errorf("%w: new index %s is below old index %s", usagedomain.ErrIndexRegression, newIndex, oldIndex)
	}

	readingDate := now
	if raw := strings.TrimSpace(input.ReadingDate); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return reading, fmt.Errorf("%w: reading_date", usagedomain.ErrInvalidIndex)
		}
		readingDate = parsed.UTC()
	}

	reading = usagedomain.MeterReading{
		ID:          s.genID.Generate(),
		ApartmentID: apartmentID,
		Category:    category,
		Month:       month,
		Year:        year,
		OldIndex:    oldIndex,
		NewIndex:    newIndex,
		Quantity:    newIndex.Sub(oldIndex),
		ReadingDate: readingDate,
		Status:      usagedomain.ReadingStatusRecorded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	existing, err := s.repo.Find(ctx, s.db, apartmentID, category, month, year)
	if err != nil {
		return reading, err
	}
	if existing != nil {
		reading.ID = existing.ID
		reading.CreatedAt = existing.CreatedAt
	}
	return reading, nil
}

func (s *Service) ListReadings(ctx context.Context, req usagedomain.ListReadingsRequest) ([]usagedomain.MeterReading, error) {
	if req.Month < 1 || req.Month > 12 || req.Year <= 0 {
		return nil, usagedomain.ErrInvalidPeriod
	}
	var filter *pricedomain.ServiceCategory
	if strings.TrimSpace(req.Category) != "" {
		category, err := pricedomain.ParseCategory(req.Category)
		if err != nil || !category.Metered() {
			return nil, usagedomain.ErrInvalidCategory
		}
		filter = &category
	}
	return s.repo.ListForPeriod(ctx, s.db, req.Month, req.Year, filter)
}

func (s *Service) FindReading(ctx context.Context, apartmentID snowflake.ID, category pricedomain.ServiceCategory, month, year int) (*usagedomain.MeterReading, error) {
	return s.repo.Find(ctx, s.db, apartmentID, category, month, year)
}

func parseIndex(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || value.IsNegative() {
		return decimal.Zero, usagedomain.ErrInvalidIndex
	}
	return value, nil
}
