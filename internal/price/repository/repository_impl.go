package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	"gorm.io/gorm"
)

const scheduleColumns = `id, category, model, unit_price, start_date, end_date, description, created_at, updated_at`

type repo struct{}

func Provide() pricedomain.Repository {
	return &repo{}
}

func (r *repo) ListServiceTypes(ctx context.Context, db *gorm.DB, activeOnly bool) ([]pricedomain.ServiceType, error) {
	var items []pricedomain.ServiceType
	stmt := db.WithContext(ctx).Model(&pricedomain.ServiceType{})
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if err := stmt.Order("code ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindEffective(ctx context.Context, db *gorm.DB, category pricedomain.ServiceCategory, on time.Time) ([]pricedomain.PriceSchedule, error) {
	on = pricedomain.DateOf(on)
	var schedules []pricedomain.PriceSchedule
	err := db.WithContext(ctx).Raw(
		`SELECT `+scheduleColumns+`
		 FROM service_prices
		 WHERE category = ?
		   AND start_date <= ?
		   AND (end_date IS NULL OR end_date > ?)
		 ORDER BY start_date DESC, id ASC`,
		category, on, on,
	).Scan(&schedules).Error
	if err != nil {
		return nil, err
	}
	return r.attachTiers(ctx, db, schedules)
}

func (r *repo) ListOverlapping(ctx context.Context, db *gorm.DB, category pricedomain.ServiceCategory, start time.Time, end *time.Time) ([]pricedomain.PriceSchedule, error) {
	stmt := db.WithContext(ctx).
		Model(&pricedomain.PriceSchedule{}).
		Where("category = ?", category).
		Where("(end_date IS NULL OR end_date > ?)", pricedomain.DateOf(start))
	if end != nil {
		stmt = stmt.Where("start_date < ?", pricedomain.DateOf(*end))
	}

	var schedules []pricedomain.PriceSchedule
	if err := stmt.Order("start_date ASC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, category *pricedomain.ServiceCategory) ([]pricedomain.PriceSchedule, error) {
	stmt := db.WithContext(ctx).Model(&pricedomain.PriceSchedule{})
	if category != nil {
		stmt = stmt.Where("category = ?", *category)
	}

	var schedules []pricedomain.PriceSchedule
	if err := stmt.Order("category ASC").Order("start_date DESC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return r.attachTiers(ctx, db, schedules)
}

func (r *repo) ListTiers(ctx context.Context, db *gorm.DB, scheduleIDs []snowflake.ID) ([]pricedomain.PriceTier, error) {
	if len(scheduleIDs) == 0 {
		return nil, nil
	}
	var tiers []pricedomain.PriceTier
	err := db.WithContext(ctx).Raw(
		`SELECT id, schedule_id, label, min_usage, max_usage, unit_price, created_at
		 FROM price_tiers
		 WHERE schedule_id IN ?
		 ORDER BY schedule_id ASC, min_usage ASC`,
		scheduleIDs,
	).Scan(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, schedule *pricedomain.PriceSchedule) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO service_prices (`+scheduleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID,
		schedule.Category,
		schedule.Model,
		schedule.UnitPrice,
		schedule.StartDate,
		schedule.EndDate,
		schedule.Description,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	).Error
	if err != nil {
		return err
	}
	if len(schedule.Tiers) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&schedule.Tiers).Error
}

func (r *repo) CloseOpen(ctx context.Context, db *gorm.DB, category pricedomain.ServiceCategory, endDate time.Time, updatedAt time.Time) (int64, error) {
	endDate = pricedomain.DateOf(endDate)
	result := db.WithContext(ctx).Exec(
		`UPDATE service_prices
		 SET end_date = ?, updated_at = ?
		 WHERE category = ? AND end_date IS NULL AND start_date < ?`,
		endDate, updatedAt, category, endDate,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) attachTiers(ctx context.Context, db *gorm.DB, schedules []pricedomain.PriceSchedule) ([]pricedomain.PriceSchedule, error) {
	if len(schedules) == 0 {
		return schedules, nil
	}
	ids := lo.Map(schedules, func(s pricedomain.PriceSchedule, _ int) snowflake.ID { return s.ID })
	tiers, err := r.ListTiers(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	bySchedule := lo.GroupBy(tiers, func(t pricedomain.PriceTier) snowflake.ID { return t.ScheduleID })
	for i := range schedules {
		schedules[i].Tiers = bySchedule[schedules[i].ID]
	}
	return schedules, nil
}
