package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bluemoon/internal/clock"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	"github.com/smallbiznis/bluemoon/internal/price/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&pricedomain.ServiceType{},
		&pricedomain.PriceSchedule{},
		&pricedomain.PriceTier{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (*Service, *snowflake.Node) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)),
	}).(*Service)
	return svc, node
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(v string) *string { return &v }

func waterRequest(start string) pricedomain.CreateScheduleRequest {
	return pricedomain.CreateScheduleRequest{
		Category:  "water",
		Model:     "tiered",
		StartDate: start,
		Tiers: []pricedomain.TierRequest{
			{Label: "T1", MinUsage: "0", MaxUsage: strPtr("50"), UnitPrice: "2000"},
			{Label: "T2", MinUsage: "50", MaxUsage: strPtr("100"), UnitPrice: "3000"},
			{Label: "T3", MinUsage: "100", UnitPrice: "4000"},
		},
	}
}

func TestResolveActivePrice(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	_, err := svc.ResolveActivePrice(ctx, pricedomain.CategoryWater, date(2024, 3, 10))
	require.ErrorIs(t, err, pricedomain.ErrNoActivePrice)
	assert.True(t, pricedomain.IsConfigurationError(err))

	req := waterRequest("2024-01-01")
	req.EndDate = strPtr("2024-04-01")
	created, err := svc.CreateSchedule(ctx, req)
	require.NoError(t, err)

	got, err := svc.ResolveActivePrice(ctx, pricedomain.CategoryWater, date(2024, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, got.Tiers, 3)
	assert.True(t, got.SortedTiers()[2].Unbounded())

	_, err = svc.ResolveActivePrice(ctx, pricedomain.CategoryWater, date(2024, 4, 1))
	assert.ErrorIs(t, err, pricedomain.ErrNoActivePrice, "end date is exclusive")

	_, err = svc.ResolveActivePrice(ctx, pricedomain.CategoryWater, date(2023, 12, 31))
	assert.ErrorIs(t, err, pricedomain.ErrNoActivePrice)
}

func TestResolveActivePriceAmbiguous(t *testing.T) {
	db := setupTestDB(t)
	svc, node := newTestService(t, db)
	ctx := context.Background()
	repo := repository.Provide()

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Insert(ctx, db, &pricedomain.PriceSchedule{
			ID:        node.Generate(),
			Category:  pricedomain.CategoryManagement,
			Model:     pricedomain.ModelFlat,
			UnitPrice: decimal.NewFromInt(15000),
			StartDate: date(2024, 1, 1),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}))
	}

	_, err := svc.ResolveActivePrice(ctx, pricedomain.CategoryManagement, date(2024, 2, 1))
	require.ErrorIs(t, err, pricedomain.ErrAmbiguousPrice)
	assert.True(t, pricedomain.IsConfigurationError(err))
}

func TestResolveActivePriceRejectsGappedLadder(t *testing.T) {
	db := setupTestDB(t)
	svc, node := newTestService(t, db)
	ctx := context.Background()

	scheduleID := node.Generate()
	schedule := &pricedomain.PriceSchedule{
		ID:        scheduleID,
		Category:  pricedomain.CategoryElectricity,
		Model:     pricedomain.ModelTiered,
		StartDate: date(2024, 1, 1),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Tiers: []pricedomain.PriceTier{
			{ID: node.Generate(), ScheduleID: scheduleID, Label: "T1", MinUsage: decimal.Zero, MaxUsage: decimal.NewNullDecimal(decimal.NewFromInt(50)), UnitPrice: decimal.NewFromInt(1800)},
			{ID: node.Generate(), ScheduleID: scheduleID, Label: "T2", MinUsage: decimal.NewFromInt(60), UnitPrice: decimal.NewFromInt(2500)},
		},
	}
	require.NoError(t, repository.Provide().Insert(ctx, db, schedule))

	_, err := svc.ResolveActivePrice(ctx, pricedomain.CategoryElectricity, date(2024, 3, 1))
	require.ErrorIs(t, err, pricedomain.ErrInvalidTiers)
	assert.True(t, pricedomain.IsConfigurationError(err))
}

func TestCreateScheduleValidation(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	cases := []struct {
		name string
		req  pricedomain.CreateScheduleRequest
		want error
	}{
		{
			name: "unknown category",
			req:  pricedomain.CreateScheduleRequest{Category: "GAS", Model: "FLAT", StartDate: "2024-01-01"},
			want: pricedomain.ErrInvalidCategory,
		},
		{
			name: "extra fees are not priced",
			req:  pricedomain.CreateScheduleRequest{Category: "EXTRA", Model: "FLAT", StartDate: "2024-01-01"},
			want: pricedomain.ErrInvalidCategory,
		},
		{
			name: "end before start",
			req:  pricedomain.CreateScheduleRequest{Category: "MANAGEMENT", Model: "FLAT", UnitPrice: "15000", StartDate: "2024-02-01", EndDate: strPtr("2024-01-01")},
			want: pricedomain.ErrInvalidDateRange,
		},
		{
			name: "tiered management",
			req:  pricedomain.CreateScheduleRequest{Category: "MANAGEMENT", Model: "TIERED", StartDate: "2024-01-01"},
			want: pricedomain.ErrUnexpectedModel,
		},
		{
			name: "negative price",
			req:  pricedomain.CreateScheduleRequest{Category: "MANAGEMENT", Model: "FLAT", UnitPrice: "-1", StartDate: "2024-01-01"},
			want: pricedomain.ErrInvalidUnitPrice,
		},
		{
			name: "ladder not starting at zero",
			req: pricedomain.CreateScheduleRequest{Category: "WATER", Model: "TIERED", StartDate: "2024-01-01", Tiers: []pricedomain.TierRequest{
				{Label: "T1", MinUsage: "10", UnitPrice: "2000"},
			}},
			want: pricedomain.ErrInvalidTiers,
		},
		{
			name: "duplicate parking rate",
			req: pricedomain.CreateScheduleRequest{Category: "PARKING", Model: "TIERED", StartDate: "2024-01-01", Tiers: []pricedomain.TierRequest{
				{Label: "CAR", UnitPrice: "100000"},
				{Label: "car", UnitPrice: "120000"},
			}},
			want: pricedomain.ErrInvalidTiers,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSchedule(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateScheduleRejectsOverlapUnlessClosingPrevious(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	first, err := svc.CreateSchedule(ctx, waterRequest("2024-01-01"))
	require.NoError(t, err)

	_, err = svc.CreateSchedule(ctx, waterRequest("2024-06-01"))
	require.ErrorIs(t, err, pricedomain.ErrOverlappingSchedule)

	req := waterRequest("2024-06-01")
	req.ClosePrevious = true
	second, err := svc.CreateSchedule(ctx, req)
	require.NoError(t, err)

	got, err := svc.ResolveActivePrice(ctx, pricedomain.CategoryWater, date(2024, 5, 31))
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = svc.ResolveActivePrice(ctx, pricedomain.CategoryWater, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	all, err := svc.ListSchedules(ctx, "WATER")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListCategories(t *testing.T) {
	db := setupTestDB(t)
	svc, node := newTestService(t, db)
	ctx := context.Background()

	now := time.Now()
	for _, st := range []pricedomain.ServiceType{
		{ID: node.Generate(), Code: pricedomain.CategoryWater, Name: "Water", Unit: "m3", Active: true},
		{ID: node.Generate(), Code: pricedomain.CategoryManagement, Name: "Management", Unit: "m2", Active: true},
		{ID: node.Generate(), Code: pricedomain.CategoryParking, Name: "Parking", Unit: "vehicle", Active: false},
		{ID: node.Generate(), Code: pricedomain.CategoryExtra, Name: "Extra", Unit: "item", Active: true},
	} {
		st.CreatedAt, st.UpdatedAt = now, now
		require.NoError(t, db.Create(&st).Error)
	}
	// gorm skips zero-value bools on create, so deactivate explicitly.
	require.NoError(t, db.Model(&pricedomain.ServiceType{}).Where("code = ?", pricedomain.CategoryParking).Update("active", false).Error)

	got, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []pricedomain.ServiceCategory{
		pricedomain.CategoryManagement,
		pricedomain.CategoryWater,
		pricedomain.CategoryExtra,
	}, got)
}
