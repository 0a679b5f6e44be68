package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID, category pricedomain.ServiceCategory, month, year int) (*usagedomain.MeterReading, error) {
	var readings []usagedomain.MeterReading
	err := db.WithContext(ctx).Raw(
		`SELECT id, apartment_id, category, month, year, old_index, new_index, quantity, reading_date, status, created_at, updated_at
		 FROM usage_records
		 WHERE apartment_id = ? AND category = ? AND month = ? AND year = ?`,
		apartmentID, category, month, year,
	).Scan(&readings).Error
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

func (r *repo) ListForPeriod(ctx context.Context, db *gorm.DB, month, year int, category *pricedomain.ServiceCategory) ([]usagedomain.MeterReading, error) {
	stmt := db.WithContext(ctx).
		Model(&usagedomain.MeterReading{}).
		Where("month = ? AND year = ?", month, year)
	if category != nil {
		stmt = stmt.Where("category = ?", *category)
	}

	var readings []usagedomain.MeterReading
	if err := stmt.Order("apartment_id ASC").Order("category ASC").Find(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}

// Upsert writes readings keyed by (apartment, category, month, year), replacing indexes of existing rows.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, readings []usagedomain.MeterReading) error {
	if len(readings) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "apartment_id"},
				{Name: "category"},
				{Name: "month"},
				{Name: "year"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"old_index",
				"new_index",
				"quantity",
				"reading_date",
				"status",
				"updated_at",
			}),
		}).
		Create(&readings).Error
}
