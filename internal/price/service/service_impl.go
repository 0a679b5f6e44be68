package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bluemoon/internal/clock"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  pricedomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  pricedomain.Repository
	clock clock.Clock
}

func New(p Params) pricedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("price.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

// ListCategories returns the active service categories in billing order.
func (s *Service) ListCategories(ctx context.Context) ([]pricedomain.ServiceCategory, error) {
	types, err := s.repo.ListServiceTypes(ctx, s.db, true)
	if err != nil {
		return nil, err
	}
	active := make(map[pricedomain.ServiceCategory]struct{}, len(types))
	for _, t := range types {
		if !t.Code.Valid() {
			s.log.Warn("ignoring unknown service type", zap.String("code", string(t.Code)))
			continue
		}
		active[t.Code] = struct{}{}
	}

	out := make([]pricedomain.ServiceCategory, 0, len(active))
	for _, c := range pricedomain.Categories {
		if _, ok := active[c]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ResolveActivePrice returns the single schedule covering on. Zero or several matches
// are configuration errors; tiers are validated for the way the category uses them.
func (s *Service) ResolveActivePrice(ctx context.Context, category pricedomain.ServiceCategory, on time.Time) (*pricedomain.PriceSchedule, error) {
	if !category.Priced() {
		return nil, pricedomain.ErrInvalidCategory
	}

	schedules, err := s.repo.FindEffective(ctx, s.db, category, on)
	if err != nil {
		return nil, err
	}
	switch len(schedules) {
	case 0:
		return nil, fmt.Errorf("%w: category %s on %s", pricedomain.ErrNoActivePrice, category, on.Format(dateLayout))
	case 1:
	default:
		return nil, fmt.Errorf("%w: category %s has %d schedules on %s", pricedomain.ErrAmbiguousPrice, category, len(schedules), on.Format(dateLayout))
	}

	schedule := schedules[0]
	if err := validateScheduleShape(schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (s *Service) CreateSchedule(ctx context.Context, req pricedomain.CreateScheduleRequest) (*pricedomain.PriceSchedule, error) {
	category, err := pricedomain.ParseCategory(req.Category)
	if err != nil || !category.Priced() {
		return nil, pricedomain.ErrInvalidCategory
	}
	model := pricedomain.PriceModel(strings.ToUpper(strings.TrimSpace(req.Model)))
	if model != pricedomain.ModelFlat && model != pricedomain.ModelTiered {
		return nil, pricedomain.ErrInvalidModel
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		return nil, pricedomain.ErrInvalidDateRange
	}
	var end *time.Time
	if req.EndDate != nil && strings.TrimSpace(*req.EndDate) != "" {
		parsed, err := parseDate(*req.EndDate)
		if err != nil || !parsed.After(start) {
			return nil, pricedomain.ErrInvalidDateRange
		}
		end = &parsed
	}

	unitPrice := decimal.Zero
	if strings.TrimSpace(req.UnitPrice) != "" {
		unitPrice, err = decimal.NewFromString(strings.TrimSpace(req.UnitPrice))
		if err != nil || unitPrice.IsNegative() {
			return nil, pricedomain.ErrInvalidUnitPrice
		}
	}

	now := s.clock.Now()
	schedule := pricedomain.PriceSchedule{
		ID:          s.genID.Generate(),
		Category:    category,
		Model:       model,
		UnitPrice:   unitPrice,
		StartDate:   start,
		EndDate:     end,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, tierReq := range req.Tiers {
		tier, err := s.buildTier(schedule.ID, tierReq, now)
		if err != nil {
			return nil, err
		}
		schedule.Tiers = append(schedule.Tiers, tier)
	}
	if err := validateScheduleShape(schedule); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.ClosePrevious {
			closed, err := s.repo.CloseOpen(ctx, tx, category, start, now)
			if err != nil {
				return err
			}
			if closed > 0 {
				s.log.Info("closed previous price schedule",
					zap.String("category", string(category)),
					zap.Time("end_date", start),
				)
			}
		}

		overlapping, err := s.repo.ListOverlapping(ctx, tx, category, start, end)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return fmt.Errorf("%w: category %s already priced from %s", pricedomain.ErrOverlappingSchedule, category, overlapping[0].StartDate.Format(dateLayout))
		}
		return s.repo.Insert(ctx, tx, &schedule)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("created price schedule",
		zap.String("schedule_id", schedule.ID.String()),
		zap.String("category", string(category)),
		zap.String("model", string(model)),
		zap.Int("tiers", len(schedule.Tiers)),
	)
	return &schedule, nil
}

func (s *Service) ListSchedules(ctx context.Context, category string) ([]pricedomain.PriceSchedule, error) {
	var filter *pricedomain.ServiceCategory
	if strings.TrimSpace(category) != "" {
		parsed, err := pricedomain.ParseCategory(category)
		if err != nil {
			return nil, err
		}
		filter = &parsed
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) buildTier(scheduleID snowflake.ID, req pricedomain.TierRequest, now time.Time) (pricedomain.PriceTier, error) {
	tier := pricedomain.PriceTier{
		ID:         s.genID.Generate(),
		ScheduleID: scheduleID,
		Label:      strings.TrimSpace(req.Label),
		CreatedAt:  now,
	}

	var err error
	if strings.TrimSpace(req.MinUsage) != "" {
		if tier.MinUsage, err = decimal.NewFromString(strings.TrimSpace(req.MinUsage)); err != nil {
			return tier, fmt.Errorf("%w: min_usage", pricedomain.ErrInvalidTiers)
		}
	}
	if req.MaxUsage != nil && strings.TrimSpace(*req.MaxUsage) != "" {
		maxUsage, err := decimal.NewFromString(strings.TrimSpace(*req.MaxUsage))
		if err != nil {
			return tier, fmt.Errorf("%w: max_usage", pricedomain.ErrInvalidTiers)
		}
		tier.MaxUsage = decimal.NewNullDecimal(maxUsage)
	}
	if tier.UnitPrice, err = decimal.NewFromString(strings.TrimSpace(req.UnitPrice)); err != nil {
		return tier, fmt.Errorf("%w: unit_price", pricedomain.ErrInvalidTiers)
	}
	return tier, nil
}

// validateScheduleShape checks a schedule against the way its category consumes it.
func validateScheduleShape(schedule pricedomain.PriceSchedule) error {
	switch schedule.Category {
	case pricedomain.CategoryManagement:
		if schedule.Model != pricedomain.ModelFlat {
			return fmt.Errorf("%w: %s must be flat", pricedomain.ErrUnexpectedModel, schedule.Category)
		}
		if schedule.UnitPrice.IsNegative() {
			return pricedomain.ErrInvalidUnitPrice
		}
		return nil
	case pricedomain.CategoryParking:
		if schedule.Model != pricedomain.ModelTiered {
			return fmt.Errorf("%w: %s must be tiered", pricedomain.ErrUnexpectedModel, schedule.Category)
		}
		return pricedomain.ValidateRateTable(schedule.Tiers)
	case pricedomain.CategoryElectricity, pricedomain.CategoryWater:
		if schedule.Model != pricedomain.ModelTiered {
			return fmt.Errorf("%w: %s must be tiered", pricedomain.ErrUnexpectedModel, schedule.Category)
		}
		return pricedomain.ValidateLadder(schedule.Tiers)
	default:
		return pricedomain.ErrInvalidCategory
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if parsed, err := time.Parse(dateLayout, raw); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return pricedomain.DateOf(parsed), nil
}
