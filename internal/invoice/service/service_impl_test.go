package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	apartmentrepo "github.com/smallbiznis/bluemoon/internal/apartment/repository"
	"github.com/smallbiznis/bluemoon/internal/clock"
	"github.com/smallbiznis/bluemoon/internal/config"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	extrafeerepo "github.com/smallbiznis/bluemoon/internal/extrafee/repository"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/bluemoon/internal/invoice/repository"
	"github.com/smallbiznis/bluemoon/internal/periodlock"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	pricerepo "github.com/smallbiznis/bluemoon/internal/price/repository"
	pricesvc "github.com/smallbiznis/bluemoon/internal/price/service"
	ratingsvc "github.com/smallbiznis/bluemoon/internal/rating/service"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	usagerepo "github.com/smallbiznis/bluemoon/internal/usage/repository"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	locker *periodlock.LocalLocker
	prices pricedomain.Service
	svc    *Service

	room101 apartmentdomain.Apartment
	room102 apartmentdomain.Apartment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&apartmentdomain.Building{},
		&apartmentdomain.Apartment{},
		&apartmentdomain.Resident{},
		&apartmentdomain.Vehicle{},
		&pricedomain.ServiceType{},
		&pricedomain.PriceSchedule{},
		&pricedomain.PriceTier{},
		&usagedomain.MeterReading{},
		&extrafeedomain.ExtraFee{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	f := &fixture{
		db:     db,
		node:   node,
		clock:  fake,
		locker: periodlock.NewLocalLocker(fake),
	}

	now := fake.Now()
	for _, category := range pricedomain.Categories {
		require.NoError(t, db.Create(&pricedomain.ServiceType{
			ID:        node.Generate(),
			Code:      category,
			Name:      string(category),
			Unit:      "unit",
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error)
	}

	building := apartmentdomain.Building{ID: node.Generate(), Name: "A1"}
	require.NoError(t, db.Create(&building).Error)
	f.room101 = apartmentdomain.Apartment{ID: node.Generate(), BuildingID: building.ID, RoomNumber: 101, Floor: 1, Area: decimal.RequireFromString("75.5")}
	f.room102 = apartmentdomain.Apartment{ID: node.Generate(), BuildingID: building.ID, RoomNumber: 102, Floor: 1, Area: decimal.NewFromInt(60)}
	vacant := apartmentdomain.Apartment{ID: node.Generate(), BuildingID: building.ID, RoomNumber: 103, Floor: 1, Area: decimal.NewFromInt(90)}
	for _, apt := range []*apartmentdomain.Apartment{&f.room101, &f.room102, &vacant} {
		require.NoError(t, db.Create(apt).Error)
	}

	alice := apartmentdomain.Resident{ID: node.Generate(), ApartmentID: f.room101.ID, FullName: "Alice"}
	bob := apartmentdomain.Resident{ID: node.Generate(), ApartmentID: f.room102.ID, FullName: "Bob"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)
	for _, class := range []apartmentdomain.VehicleClass{apartmentdomain.VehicleBicycle, apartmentdomain.VehicleBicycle, apartmentdomain.VehicleCar} {
		require.NoError(t, db.Create(&apartmentdomain.Vehicle{ID: node.Generate(), ResidentID: alice.ID, Class: class, Active: true}).Error)
	}

	f.prices = pricesvc.New(pricesvc.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  pricerepo.Provide(),
		Clock: fake,
	})

	f.svc = New(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Repo:          invoicerepo.Provide(),
		ApartmentRepo: apartmentrepo.Provide(),
		UsageRepo:     usagerepo.Provide(),
		ExtraFeeRepo:  extrafeerepo.Provide(),
		Prices:        f.prices,
		Rating:        ratingsvc.New(ratingsvc.Params{Log: log}),
		Locker:        f.locker,
		Clock:         fake,
		BillingConfig: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	}).(*Service)
	return f
}

func strPtr(v string) *string { return &v }

func ladder() []pricedomain.TierRequest {
	return []pricedomain.TierRequest{
		{Label: "T1", MinUsage: "0", MaxUsage: strPtr("50"), UnitPrice: "2000"},
		{Label: "T2", MinUsage: "50", MaxUsage: strPtr("100"), UnitPrice: "3000"},
		{Label: "T3", MinUsage: "100", UnitPrice: "4000"},
	}
}

// seedPrices opens a schedule from 2024-01-01 for each category given.
func (f *fixture) seedPrices(t *testing.T, categories ...pricedomain.ServiceCategory) {
	t.Helper()
	for _, category := range categories {
		req := pricedomain.CreateScheduleRequest{Category: string(category), StartDate: "2024-01-01"}
		switch category {
		case pricedomain.CategoryManagement:
			req.Model = "flat"
			req.UnitPrice = "15000"
		case pricedomain.CategoryParking:
			req.Model = "tiered"
			req.Tiers = []pricedomain.TierRequest{
				{Label: "BICYCLE", UnitPrice: "10000"},
				{Label: "MOTORBIKE", UnitPrice: "70000"},
				{Label: "CAR", UnitPrice: "100000"},
			}
		default:
			req.Model = "tiered"
			req.Tiers = ladder()
		}
		_, err := f.prices.CreateSchedule(context.Background(), req)
		require.NoError(t, err)
	}
}

func (f *fixture) seedReading(t *testing.T, apt apartmentdomain.Apartment, category pricedomain.ServiceCategory, month, year int, oldIndex, newIndex int64) usagedomain.MeterReading {
	t.Helper()
	reading := usagedomain.MeterReading{
		ID:          f.node.Generate(),
		ApartmentID: apt.ID,
		Category:    category,
		Month:       month,
		Year:        year,
		OldIndex:    decimal.NewFromInt(oldIndex),
		NewIndex:    decimal.NewFromInt(newIndex),
		Quantity:    decimal.NewFromInt(newIndex - oldIndex),
		ReadingDate: f.clock.Now(),
		Status:      usagedomain.ReadingStatusRecorded,
	}
	require.NoError(t, f.db.Create(&reading).Error)
	return reading
}

func (f *fixture) seedFee(t *testing.T, apt apartmentdomain.Apartment, title string, amount int64) extrafeedomain.ExtraFee {
	t.Helper()
	fee := extrafeedomain.ExtraFee{
		ID:          f.node.Generate(),
		ApartmentID: apt.ID,
		Title:       title,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.NewFromInt(amount),
		Amount:      money.FromInt(amount),
		FeeDate:     f.clock.Now(),
	}
	require.NoError(t, f.db.Create(&fee).Error)
	return fee
}

func (f *fixture) invoicesFor(t *testing.T, month, year int) map[snowflake.ID]invoicedomain.Invoice {
	t.Helper()
	var invoices []invoicedomain.Invoice
	require.NoError(t, f.db.Where("month = ? AND year = ?", month, year).Find(&invoices).Error)
	return lo.KeyBy(invoices, func(inv invoicedomain.Invoice) snowflake.ID { return inv.ApartmentID })
}

func (f *fixture) itemsOf(t *testing.T, invoiceID snowflake.ID) []invoicedomain.InvoiceItem {
	t.Helper()
	items, err := invoicerepo.Provide().ListItems(context.Background(), f.db, []snowflake.ID{invoiceID})
	require.NoError(t, err)
	return items
}

func (f *fixture) feeBilled(t *testing.T, id snowflake.ID) bool {
	t.Helper()
	var fee extrafeedomain.ExtraFee
	require.NoError(t, f.db.First(&fee, "id = ?", id).Error)
	return fee.IsBilled
}

func allCategories() []pricedomain.ServiceCategory {
	return []pricedomain.ServiceCategory{
		pricedomain.CategoryManagement,
		pricedomain.CategoryParking,
		pricedomain.CategoryElectricity,
		pricedomain.CategoryWater,
	}
}

func TestGenerateBatchPricesEveryOccupiedApartment(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	water := f.seedReading(t, f.room101, pricedomain.CategoryWater, 3, 2024, 100, 220)

	result, err := f.svc.GenerateBatch(context.Background(), 3, 2024)
	require.NoError(t, err)

	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, 0, result.Replaced)
	assert.Equal(t, 0, result.Discarded)
	assert.Empty(t, result.Faults)
	require.Len(t, result.Invoices, 2)
	// electricity is missing for both, water for 102
	assert.Len(t, result.Warnings, 3)

	stored := f.invoicesFor(t, 3, 2024)
	require.Len(t, stored, 2)

	inv101 := stored[f.room101.ID]
	assert.Equal(t, invoicedomain.InvoiceStatusPending, inv101.Status)
	assert.Equal(t, "1582500", inv101.TotalAmount.String())
	assert.True(t, inv101.PaidAmount.IsZero())
	assert.Equal(t, result.BatchID, inv101.BatchID)
	require.NotNil(t, inv101.OverdueDate)
	assert.True(t, inv101.OverdueDate.Equal(f.clock.Now().AddDate(0, 0, 15)))

	items := f.itemsOf(t, inv101.ID)
	require.Len(t, items, 3)
	assert.Equal(t, pricedomain.CategoryManagement, items[0].Category)
	assert.Equal(t, "1132500", items[0].Amount.String())
	assert.Equal(t, 1, items[0].Position)

	assert.Equal(t, pricedomain.CategoryParking, items[1].Category)
	assert.Equal(t, "120000", items[1].Amount.String())
	require.Len(t, items[1].Breakdown, 2)
	assert.Equal(t, "BICYCLE", items[1].Breakdown[0].Label)
	assert.Equal(t, "CAR", items[1].Breakdown[1].Label)

	assert.Equal(t, pricedomain.CategoryWater, items[2].Category)
	assert.Equal(t, "330000", items[2].Amount.String())
	require.NotNil(t, items[2].UsageRecordID)
	assert.Equal(t, water.ID, *items[2].UsageRecordID)
	assert.Len(t, items[2].Breakdown, 3)

	inv102 := stored[f.room102.ID]
	assert.Equal(t, "900000", inv102.TotalAmount.String())

	summary, ok := lo.Find(result.Invoices, func(s invoicedomain.Summary) bool { return s.ApartmentID == f.room101.ID })
	require.True(t, ok)
	assert.Equal(t, "Apartment 101 - A1", summary.ApartmentLabel)
}

func TestGenerateBatchIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	f.seedReading(t, f.room101, pricedomain.CategoryWater, 3, 2024, 100, 220)
	ctx := context.Background()

	first, err := f.svc.GenerateBatch(ctx, 3, 2024)
	require.NoError(t, err)
	before := f.invoicesFor(t, 3, 2024)

	f.clock.Advance(time.Hour)
	second, err := f.svc.GenerateBatch(ctx, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Replaced)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	after := f.invoicesFor(t, 3, 2024)
	require.Len(t, after, 2)
	for apartmentID, inv := range after {
		assert.NotEqual(t, before[apartmentID].ID, inv.ID)
		assert.True(t, before[apartmentID].TotalAmount.Equal(inv.TotalAmount))
	}

	var itemCount int64
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceItem{}).Count(&itemCount).Error)
	assert.Equal(t, int64(4), itemCount)
}

func TestGenerateBatchRefusesFinalizedPeriod(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	ctx := context.Background()

	_, err := f.svc.GenerateBatch(ctx, 3, 2024)
	require.NoError(t, err)
	before := f.invoicesFor(t, 3, 2024)
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", before[f.room101.ID].ID).
		Update("status", invoicedomain.InvoiceStatusUnpaid).Error)

	fee := f.seedFee(t, f.room102, "Key replacement", 50000)

	_, err = f.svc.GenerateBatch(ctx, 3, 2024)
	require.ErrorIs(t, err, invoicedomain.ErrPeriodFinalized)

	after := f.invoicesFor(t, 3, 2024)
	require.Len(t, after, 2)
	assert.Equal(t, before[f.room102.ID].ID, after[f.room102.ID].ID)
	assert.False(t, f.feeBilled(t, fee.ID))
}

func TestGenerateBatchBillsExtraFeesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	fee := f.seedFee(t, f.room102, "Key replacement", 50000)
	ctx := context.Background()

	_, err := f.svc.GenerateBatch(ctx, 3, 2024)
	require.NoError(t, err)
	assert.True(t, f.feeBilled(t, fee.ID))
	assert.Equal(t, "950000", f.invoicesFor(t, 3, 2024)[f.room102.ID].TotalAmount.String())

	// regenerating releases and re-consumes the same fee
	_, err = f.svc.GenerateBatch(ctx, 3, 2024)
	require.NoError(t, err)
	assert.True(t, f.feeBilled(t, fee.ID))
	march := f.invoicesFor(t, 3, 2024)[f.room102.ID]
	assert.Equal(t, "950000", march.TotalAmount.String())

	items := f.itemsOf(t, march.ID)
	extra, ok := lo.Find(items, func(item invoicedomain.InvoiceItem) bool { return item.Category == pricedomain.CategoryExtra })
	require.True(t, ok)
	require.NotNil(t, extra.ReferenceID)
	assert.Equal(t, fee.ID, *extra.ReferenceID)
	assert.Equal(t, "Key replacement", extra.Description)

	_, err = f.svc.GenerateBatch(ctx, 4, 2024)
	require.NoError(t, err)
	april := f.invoicesFor(t, 4, 2024)[f.room102.ID]
	assert.Equal(t, "900000", april.TotalAmount.String())

	var refs int64
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceItem{}).Where("reference_id = ?", fee.ID).Count(&refs).Error)
	assert.Equal(t, int64(1), refs)
}

func TestCommitRefusesFeeBilledByAnotherPeriod(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	fee := f.seedFee(t, f.room102, "Key replacement", 50000)
	ctx := context.Background()
	log := zap.NewNop()
	cfg := f.svc.billingConfig.Get()
	now := f.clock.Now()

	march, err := f.svc.stage(ctx, log, cfg, "batch-march", 3, 2024, now, nil)
	require.NoError(t, err)
	april, err := f.svc.stage(ctx, log, cfg, "batch-april", 4, 2024, now, nil)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{fee.ID}, march.consumed)
	assert.Equal(t, []snowflake.ID{fee.ID}, april.consumed)

	require.NoError(t, f.svc.commit(ctx, 3, 2024, now, march))
	err = f.svc.commit(ctx, 4, 2024, now, april)
	require.ErrorIs(t, err, invoicedomain.ErrGenerationInProgress)

	assert.True(t, f.feeBilled(t, fee.ID))
	assert.Len(t, f.invoicesFor(t, 3, 2024), 2)
	assert.Empty(t, f.invoicesFor(t, 4, 2024))

	var refs int64
	require.NoError(t, f.db.Model(&invoicedomain.InvoiceItem{}).Where("reference_id = ?", fee.ID).Count(&refs).Error)
	assert.Equal(t, int64(1), refs)

	// a fresh April run no longer sees the fee
	_, err = f.svc.GenerateBatch(ctx, 4, 2024)
	require.NoError(t, err)
	assert.Equal(t, "900000", f.invoicesFor(t, 4, 2024)[f.room102.ID].TotalAmount.String())
}

func TestGenerateBatchRollsBackOnCommitFailure(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	billed := f.seedFee(t, f.room102, "Key replacement", 50000)
	ctx := context.Background()

	_, err := f.svc.GenerateBatch(ctx, 3, 2024)
	require.NoError(t, err)
	before := f.invoicesFor(t, 3, 2024)
	require.Len(t, before, 2)
	itemsBefore := f.itemsOf(t, before[f.room102.ID].ID)

	pending := f.seedFee(t, f.room101, "Pest control", 20000)
	require.NoError(t, f.db.Exec(`CREATE TRIGGER abort_invoice_items BEFORE INSERT ON invoice_items
BEGIN SELECT RAISE(ABORT, 'boom'); END`).Error)

	_, err = f.svc.GenerateBatch(ctx, 3, 2024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save invoices")

	after := f.invoicesFor(t, 3, 2024)
	require.Len(t, after, 2)
	for apartmentID, inv := range before {
		assert.Equal(t, inv.ID, after[apartmentID].ID)
		assert.Equal(t, inv.TotalAmount.String(), after[apartmentID].TotalAmount.String())
	}
	assert.Len(t, f.itemsOf(t, before[f.room102.ID].ID), len(itemsBefore))
	assert.True(t, f.feeBilled(t, billed.ID))
	assert.False(t, f.feeBilled(t, pending.ID))
}

func TestGenerateBatchIsolatesMissingPrice(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, pricedomain.CategoryManagement, pricedomain.CategoryParking, pricedomain.CategoryWater)
	f.seedReading(t, f.room101, pricedomain.CategoryElectricity, 3, 2024, 1000, 1010)
	f.seedReading(t, f.room101, pricedomain.CategoryWater, 3, 2024, 100, 220)

	result, err := f.svc.GenerateBatch(context.Background(), 3, 2024)
	require.NoError(t, err)

	require.Len(t, result.Faults, 1)
	fault := result.Faults[0]
	assert.Equal(t, f.room101.ID, fault.ApartmentID)
	assert.Equal(t, pricedomain.CategoryElectricity, fault.Category)
	assert.Equal(t, "no_active_price", fault.Reason)

	stored := f.invoicesFor(t, 3, 2024)
	require.Len(t, stored, 2)
	assert.Equal(t, "1582500", stored[f.room101.ID].TotalAmount.String())
	assert.Equal(t, "900000", stored[f.room102.ID].TotalAmount.String())
}

func TestGenerateBatchDiscardsZeroTotal(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	require.NoError(t, f.db.Model(&apartmentdomain.Apartment{}).
		Where("id = ?", f.room102.ID).
		Update("area", decimal.Zero).Error)

	result, err := f.svc.GenerateBatch(context.Background(), 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Discarded)
	require.Len(t, result.Invoices, 1)
	assert.Equal(t, f.room101.ID, result.Invoices[0].ApartmentID)

	stored := f.invoicesFor(t, 3, 2024)
	assert.Len(t, stored, 1)
	_, ok := stored[f.room102.ID]
	assert.False(t, ok)
}

func TestGenerateBatchRejectsConcurrentRun(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	ctx := context.Background()

	key := periodlock.PeriodKey(3, 2024)
	token, ok, err := f.locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.GenerateBatch(ctx, 3, 2024)
	require.ErrorIs(t, err, invoicedomain.ErrGenerationInProgress)
	assert.Empty(t, f.invoicesFor(t, 3, 2024))

	// other periods are not blocked
	_, err = f.svc.GenerateBatch(ctx, 4, 2024)
	require.NoError(t, err)

	require.NoError(t, f.locker.Release(ctx, key, token))
	_, err = f.svc.GenerateBatch(ctx, 3, 2024)
	require.NoError(t, err)
	assert.Len(t, f.invoicesFor(t, 3, 2024), 2)
}

func TestGenerateBatchValidatesPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tc := range []struct {
		month, year int
	}{
		{0, 2024},
		{13, 2024},
		{3, 0},
	} {
		_, err := f.svc.GenerateBatch(ctx, tc.month, tc.year)
		assert.ErrorIs(t, err, invoicedomain.ErrInvalidPeriod, "%d/%d", tc.month, tc.year)
	}
}

func TestPriceDate(t *testing.T) {
	now := time.Date(2024, 3, 31, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), PriceDate(config.PriceDateExecution, 2, 2024, now))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), PriceDate(config.PriceDatePeriodStart, 2, 2024, now))
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), PriceDate("", 2, 2024, now))
}

func TestGenerateBatchPeriodStartPolicy(t *testing.T) {
	f := newFixture(t)
	f.seedPrices(t, allCategories()...)
	cfg := config.DefaultBillingConfig()
	cfg.PriceDatePolicy = config.PriceDatePeriodStart
	f.svc.billingConfig = config.NewStaticBillingConfigHolder(cfg)

	// no schedule covers 2023-12-01
	result, err := f.svc.GenerateBatch(context.Background(), 12, 2023)
	require.NoError(t, err)
	assert.Empty(t, result.Invoices)
	assert.Equal(t, 2, result.Discarded)
	reasons := lo.CountValues(lo.Map(result.Faults, func(f invoicedomain.Fault, _ int) string { return f.Reason }))
	assert.Equal(t, 3, reasons["no_active_price"])
}
