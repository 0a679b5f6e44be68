package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() extrafeedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, fee *extrafeedomain.ExtraFee) error {
	return db.WithContext(ctx).Create(fee).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*extrafeedomain.ExtraFee, error) {
	var fees []extrafeedomain.ExtraFee
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&fees).Error; err != nil {
		return nil, err
	}
	if len(fees) == 0 {
		return nil, nil
	}
	return &fees[0], nil
}

type summaryRow struct {
	ID           snowflake.ID
	ApartmentID  snowflake.ID
	Title        string
	Amount       money.Money
	FeeDate      time.Time
	IsBilled     bool
	RoomNumber   int
	BuildingName string
}

// Search matches keyword against title, description, room number and building name.
// An empty keyword lists every fee.
func (r *repo) Search(ctx context.Context, db *gorm.DB, keyword string) ([]extrafeedomain.Summary, error) {
	stmt := db.WithContext(ctx).
		Table("extra_fees AS e").
		Select("e.id, e.apartment_id, e.title, e.amount, e.fee_date, e.is_billed, a.room_number, b.name AS building_name").
		Joins("JOIN apartments a ON a.id = e.apartment_id").
		Joins("JOIN buildings b ON b.id = a.building_id")

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword != "" {
		pattern := "%" + keyword + "%"
		cond := db.Where("LOWER(e.title) LIKE ?", pattern).
			Or("LOWER(e.description) LIKE ?", pattern).
			Or("LOWER(b.name) LIKE ?", pattern)
		if room, err := strconv.Atoi(keyword); err == nil {
			cond = cond.Or("a.room_number = ?", room)
		}
		stmt = stmt.Where(cond)
	}

	var rows []summaryRow
	if err := stmt.Order("e.fee_date DESC").Order("e.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]extrafeedomain.Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, extrafeedomain.Summary{
			ID:             row.ID,
			ApartmentID:    row.ApartmentID,
			Title:          row.Title,
			Amount:         row.Amount,
			FeeDate:        row.FeeDate,
			IsBilled:       row.IsBilled,
			ApartmentLabel: apartmentdomain.FormatLabel(row.RoomNumber, row.BuildingName),
		})
	}
	return out, nil
}

func (r *repo) ListUnbilled(ctx context.Context, db *gorm.DB, apartmentID snowflake.ID) ([]extrafeedomain.ExtraFee, error) {
	var fees []extrafeedomain.ExtraFee
	err := db.WithContext(ctx).
		Where("apartment_id = ? AND is_billed = ?", apartmentID, false).
		Order("fee_date ASC").Order("id ASC").
		Find(&fees).Error
	if err != nil {
		return nil, err
	}
	return fees, nil
}

func (r *repo) ListUnbilledByApartment(ctx context.Context, db *gorm.DB) (map[snowflake.ID][]extrafeedomain.ExtraFee, error) {
	var fees []extrafeedomain.ExtraFee
	err := db.WithContext(ctx).
		Where("is_billed = ?", false).
		Order("apartment_id ASC").Order("fee_date ASC").Order("id ASC").
		Find(&fees).Error
	if err != nil {
		return nil, err
	}
	out := make(map[snowflake.ID][]extrafeedomain.ExtraFee)
	for _, fee := range fees {
		out[fee.ApartmentID] = append(out[fee.ApartmentID], fee)
	}
	return out, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]extrafeedomain.ExtraFee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var fees []extrafeedomain.ExtraFee
	if err := db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&fees).Error; err != nil {
		return nil, err
	}
	return fees, nil
}

func (r *repo) SetBilled(ctx context.Context, db *gorm.DB, ids []snowflake.ID, billed bool, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE extra_fees SET is_billed = ?, updated_at = ? WHERE id IN ? AND is_billed = ?`,
		billed, updatedAt.UTC(), ids, !billed,
	)
	return result.RowsAffected, result.Error
}
