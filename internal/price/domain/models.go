package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ServiceCategory is the billing dimension a line item belongs to.
type ServiceCategory string

const (
	CategoryManagement  ServiceCategory = "MANAGEMENT"
	CategoryParking     ServiceCategory = "PARKING"
	CategoryElectricity ServiceCategory = "ELECTRICITY"
	CategoryWater       ServiceCategory = "WATER"
	CategoryExtra       ServiceCategory = "EXTRA"
)

// Categories lists every category in billing order.
var Categories = []ServiceCategory{
	CategoryManagement,
	CategoryParking,
	CategoryElectricity,
	CategoryWater,
	CategoryExtra,
}

func (c ServiceCategory) Valid() bool {
	switch c {
	case CategoryManagement, CategoryParking, CategoryElectricity, CategoryWater, CategoryExtra:
		return true
	default:
		return false
	}
}

// Metered reports whether the category is priced from meter readings.
func (c ServiceCategory) Metered() bool {
	return c == CategoryElectricity || c == CategoryWater
}

// Priced reports whether the category needs an active price schedule.
func (c ServiceCategory) Priced() bool {
	return c.Valid() && c != CategoryExtra
}

func ParseCategory(raw string) (ServiceCategory, error) {
	c := ServiceCategory(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

type PriceModel string

const (
	ModelFlat   PriceModel = "FLAT"
	ModelTiered PriceModel = "TIERED"
)

// ServiceType is the catalog entry that turns a category on or off.
type ServiceType struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	Code      ServiceCategory `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name      string          `json:"name" gorm:"type:text;not null"`
	Unit      string          `json:"unit" gorm:"type:text;not null"`
	Active    bool            `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"not null"`
}

func (ServiceType) TableName() string { return "service_types" }

// PriceSchedule is the price configuration of one category over [StartDate, EndDate).
// A nil EndDate leaves the schedule open.
type PriceSchedule struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	Category    ServiceCategory `json:"category" gorm:"type:text;not null;index:idx_service_prices_category_start,priority:1"`
	Model       PriceModel      `json:"model" gorm:"type:text;not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(20,2);not null;default:0"`
	StartDate   time.Time       `json:"start_date" gorm:"not null;index:idx_service_prices_category_start,priority:2"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	Description string          `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null"`

	Tiers []PriceTier `json:"tiers,omitempty" gorm:"-"`
}

func (PriceSchedule) TableName() string { return "service_prices" }

// Covers reports whether on falls inside the schedule's validity range.
func (s PriceSchedule) Covers(on time.Time) bool {
	on = DateOf(on)
	if on.Before(DateOf(s.StartDate)) {
		return false
	}
	return s.EndDate == nil || on.Before(DateOf(*s.EndDate))
}

// SortedTiers returns a copy of the tiers ordered by MinUsage.
func (s PriceSchedule) SortedTiers() []PriceTier {
	tiers := make([]PriceTier, len(s.Tiers))
	copy(tiers, s.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinUsage.LessThan(tiers[j].MinUsage)
	})
	return tiers
}

// TierByLabel finds a tier by its label, ignoring case.
func (s PriceSchedule) TierByLabel(label string) (PriceTier, bool) {
	for _, tier := range s.Tiers {
		if strings.EqualFold(strings.TrimSpace(tier.Label), strings.TrimSpace(label)) {
			return tier, true
		}
	}
	return PriceTier{}, false
}

// PriceTier is a usage band [MinUsage, MaxUsage) priced at UnitPrice. An invalid MaxUsage is unbounded.
// Parking schedules reuse tiers as a rate table keyed by Label.
type PriceTier struct {
	ID         snowflake.ID        `json:"id" gorm:"primaryKey"`
	ScheduleID snowflake.ID        `json:"schedule_id" gorm:"column:schedule_id;not null;index"`
	Label      string              `json:"label" gorm:"type:text;not null"`
	MinUsage   decimal.Decimal     `json:"min_usage" gorm:"type:numeric(20,4);not null;default:0"`
	MaxUsage   decimal.NullDecimal `json:"max_usage" gorm:"type:numeric(20,4)"`
	UnitPrice  decimal.Decimal     `json:"unit_price" gorm:"type:numeric(20,2);not null"`
	CreatedAt  time.Time           `json:"created_at" gorm:"not null"`
}

func (PriceTier) TableName() string { return "price_tiers" }

// Unbounded reports whether the tier has no upper limit.
func (t PriceTier) Unbounded() bool {
	return !t.MaxUsage.Valid
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
