package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	ratingdomain "github.com/smallbiznis/bluemoon/internal/rating/domain"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	"github.com/smallbiznis/bluemoon/pkg/money"
)

// Calculators returns one calculator per service category.
func Calculators() []ratingdomain.Calculator {
	return []ratingdomain.Calculator{
		managementCalculator{},
		parkingCalculator{},
		meteredCalculator{category: pricedomain.CategoryElectricity, unit: "kWh"},
		meteredCalculator{category: pricedomain.CategoryWater, unit: "m3"},
		extraCalculator{},
	}
}

type managementCalculator struct{}

func (managementCalculator) Category() pricedomain.ServiceCategory {
	return pricedomain.CategoryManagement
}

func (c managementCalculator) Calculate(ctx context.Context, req ratingdomain.Request, src ratingdomain.Sources) (ratingdomain.Outcome, error) {
	area := req.Apartment.Area
	if area.IsNegative() {
		return ratingdomain.Outcome{}, fmt.Errorf("%w: %s", ratingdomain.ErrNegativeArea, area)
	}
	if area.IsZero() {
		return ratingdomain.Outcome{}, nil
	}
	schedule, err := src.ActivePrice(ctx, c.Category())
	if err != nil {
		return ratingdomain.Outcome{}, err
	}
	item, err := ManagementItem(area, schedule)
	if err != nil || item == nil {
		return ratingdomain.Outcome{}, err
	}
	return ratingdomain.Outcome{Items: []ratingdomain.LineItem{*item}}, nil
}

// ManagementItem charges area at the schedule's flat unit price.
func ManagementItem(area decimal.Decimal, schedule *pricedomain.PriceSchedule) (*ratingdomain.LineItem, error) {
	if area.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ratingdomain.ErrNegativeArea, area)
	}
	if schedule.Model != pricedomain.ModelFlat {
		return nil, fmt.Errorf("%w: management schedule is %s", pricedomain.ErrUnexpectedModel, schedule.Model)
	}
	amount := money.Multiply(area, schedule.UnitPrice)
	if amount.IsZero() {
		return nil, nil
	}
	return &ratingdomain.LineItem{
		Category:    pricedomain.CategoryManagement,
		Quantity:    area,
		UnitPrice:   schedule.UnitPrice,
		Amount:      amount,
		Description: fmt.Sprintf("Management fee: %s m2 x %s", area.String(), money.New(schedule.UnitPrice).Format()),
	}, nil
}

type parkingCalculator struct{}

func (parkingCalculator) Category() pricedomain.ServiceCategory {
	return pricedomain.CategoryParking
}

func (c parkingCalculator) Calculate(ctx context.Context, req ratingdomain.Request, src ratingdomain.Sources) (ratingdomain.Outcome, error) {
	vehicles := 0
	for _, class := range apartmentdomain.VehicleClasses {
		vehicles += req.Apartment.VehicleCount(class)
	}
	if vehicles == 0 {
		return ratingdomain.Outcome{}, nil
	}
	schedule, err := src.ActivePrice(ctx, c.Category())
	if err != nil {
		return ratingdomain.Outcome{}, err
	}
	item, err := ParkingItem(req.Apartment.Vehicles, schedule)
	if err != nil || item == nil {
		return ratingdomain.Outcome{}, err
	}
	return ratingdomain.Outcome{Items: []ratingdomain.LineItem{*item}}, nil
}

// ParkingItem prices vehicle counts against the schedule's per-class rate table.
// Classes with no vehicles add no breakdown entry.
func ParkingItem(vehicles map[apartmentdomain.VehicleClass]int, schedule *pricedomain.PriceSchedule) (*ratingdomain.LineItem, error) {
	if schedule.Model != pricedomain.ModelTiered {
		return nil, fmt.Errorf("%w: parking schedule is %s", pricedomain.ErrUnexpectedModel, schedule.Model)
	}

	total := money.Zero
	count := 0
	parts := make([]string, 0, len(apartmentdomain.VehicleClasses))
	breakdown := make([]ratingdomain.BreakdownEntry, 0, len(apartmentdomain.VehicleClasses))
	for _, class := range apartmentdomain.VehicleClasses {
		n := vehicles[class]
		if n < 0 {
			return nil, fmt.Errorf("%w: %d %s", ratingdomain.ErrNegativeQuantity, n, class)
		}
		if n == 0 {
			continue
		}
		rate, ok := schedule.TierByLabel(string(class))
		if !ok {
			return nil, fmt.Errorf("%w: no parking rate for %s", pricedomain.ErrTierNotFound, class)
		}

		quantity := decimal.NewFromInt(int64(n))
		amount := money.Multiply(quantity, rate.UnitPrice)
		total = total.Add(amount)
		count += n
		parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(string(class))))
		breakdown = append(breakdown, ratingdomain.BreakdownEntry{
			Label:     string(class),
			Quantity:  quantity,
			UnitPrice: rate.UnitPrice,
			Amount:    amount,
		})
	}
	if len(breakdown) == 0 {
		return nil, nil
	}

	return &ratingdomain.LineItem{
		Category:    pricedomain.CategoryParking,
		Quantity:    decimal.NewFromInt(int64(count)),
		UnitPrice:   decimal.Zero,
		Amount:      total,
		Description: "Parking: " + strings.Join(parts, ", "),
		Breakdown:   breakdown,
	}, nil
}

type meteredCalculator struct {
	category pricedomain.ServiceCategory
	unit     string
}

func (c meteredCalculator) Category() pricedomain.ServiceCategory {
	return c.category
}

func (c meteredCalculator) Calculate(ctx context.Context, req ratingdomain.Request, src ratingdomain.Sources) (ratingdomain.Outcome, error) {
	reading, err := src.Reading(ctx, req.Apartment.ID, c.category, req.Month, req.Year)
	if err != nil {
		return ratingdomain.Outcome{}, err
	}
	if reading == nil {
		return ratingdomain.Outcome{Warnings: []ratingdomain.Warning{{
			ApartmentID: req.Apartment.ID,
			Category:    c.category,
			Code:        ratingdomain.WarningMissingReading,
			Message:     fmt.Sprintf("no %s reading for %s in %02d/%d", strings.ToLower(string(c.category)), req.Apartment.Label(), req.Month, req.Year),
		}}}, nil
	}
	if err := checkReading(*reading); err != nil {
		return ratingdomain.Outcome{}, err
	}
	if reading.Quantity.IsZero() {
		return ratingdomain.Outcome{}, nil
	}

	schedule, err := src.ActivePrice(ctx, c.category)
	if err != nil {
		return ratingdomain.Outcome{}, err
	}
	item, err := MeteredItem(c.category, c.unit, *reading, schedule)
	if err != nil || item == nil {
		return ratingdomain.Outcome{}, err
	}
	return ratingdomain.Outcome{Items: []ratingdomain.LineItem{*item}}, nil
}

// MeteredItem prices a reading's consumption on the schedule's tier ladder.
func MeteredItem(category pricedomain.ServiceCategory, unit string, reading usagedomain.MeterReading, schedule *pricedomain.PriceSchedule) (*ratingdomain.LineItem, error) {
	if err := checkReading(reading); err != nil {
		return nil, err
	}
	if schedule.Model != pricedomain.ModelTiered {
		return nil, fmt.Errorf("%w: %s schedule is %s", pricedomain.ErrUnexpectedModel, category, schedule.Model)
	}

	amount, breakdown, err := ComputeTieredAmount(reading.Quantity, schedule.Tiers)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() && len(breakdown) == 0 {
		return nil, nil
	}

	readingID := reading.ID
	name := strings.ToUpper(string(category)[:1]) + strings.ToLower(string(category)[1:])
	return &ratingdomain.LineItem{
		Category:      category,
		Quantity:      reading.Quantity,
		UnitPrice:     decimal.Zero,
		Amount:        amount,
		UsageRecordID: &readingID,
		OldIndex:      decimal.NewNullDecimal(reading.OldIndex),
		NewIndex:      decimal.NewNullDecimal(reading.NewIndex),
		Description:   fmt.Sprintf("%s: index %s - %s (%s %s)", name, reading.OldIndex, reading.NewIndex, reading.Quantity, unit),
		Breakdown:     breakdown,
	}, nil
}

func checkReading(reading usagedomain.MeterReading) error {
	if reading.NewIndex.LessThan(reading.OldIndex) {
		return fmt.Errorf("%w: %s < %s", ratingdomain.ErrIndexRegression, reading.NewIndex, reading.OldIndex)
	}
	if reading.Quantity.IsNegative() {
		return fmt.Errorf("%w: %s", ratingdomain.ErrNegativeQuantity, reading.Quantity)
	}
	return nil
}

type extraCalculator struct{}

func (extraCalculator) Category() pricedomain.ServiceCategory {
	return pricedomain.CategoryExtra
}

func (extraCalculator) Calculate(ctx context.Context, req ratingdomain.Request, src ratingdomain.Sources) (ratingdomain.Outcome, error) {
	fees, err := src.UnbilledFees(ctx, req.Apartment.ID)
	if err != nil {
		return ratingdomain.Outcome{}, err
	}
	items := make([]ratingdomain.LineItem, 0, len(fees))
	for _, fee := range fees {
		item, err := ExtraItem(fee)
		if err != nil {
			return ratingdomain.Outcome{}, err
		}
		items = append(items, item)
	}
	return ratingdomain.Outcome{Items: items}, nil
}

// ExtraItem turns one unbilled fee into its own line item, referencing the fee.
func ExtraItem(fee extrafeedomain.ExtraFee) (ratingdomain.LineItem, error) {
	if fee.Quantity.IsNegative() || fee.Amount.IsNegative() {
		return ratingdomain.LineItem{}, fmt.Errorf("%w: extra fee %s", ratingdomain.ErrNegativeQuantity, fee.ID)
	}
	feeID := fee.ID
	description := fee.Title
	if fee.Description != "" {
		description += ": " + fee.Description
	}
	return ratingdomain.LineItem{
		Category:    pricedomain.CategoryExtra,
		Quantity:    fee.Quantity,
		UnitPrice:   fee.UnitPrice,
		Amount:      fee.Amount,
		ReferenceID: &feeID,
		Description: description,
	}, nil
}
