package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	ratingdomain "github.com/smallbiznis/bluemoon/internal/rating/domain"
	"github.com/smallbiznis/bluemoon/pkg/money"
)

// ComputeTieredAmount splits quantity across tiers in ascending order and prices each
// slice at its tier's unit price. Each slice is rounded once; the total is their exact sum.
// The breakdown holds one entry per tier actually touched.
func ComputeTieredAmount(quantity decimal.Decimal, tiers []pricedomain.PriceTier) (money.Money, []ratingdomain.BreakdownEntry, error) {
	if quantity.IsNegative() {
		return money.Zero, nil, fmt.Errorf("%w: %s", ratingdomain.ErrNegativeQuantity, quantity)
	}
	if quantity.IsZero() {
		return money.Zero, nil, nil
	}
	if len(tiers) == 0 {
		return money.Zero, nil, fmt.Errorf("%w: no tiers", pricedomain.ErrInvalidTiers)
	}

	sorted := pricedomain.PriceSchedule{Tiers: tiers}.SortedTiers()
	total := money.Zero
	remaining := quantity
	breakdown := make([]ratingdomain.BreakdownEntry, 0, len(sorted))

	for _, tier := range sorted {
		if !remaining.IsPositive() {
			break
		}
		chargeable := remaining
		if !tier.Unbounded() {
			chargeable = decimal.Min(remaining, tier.MaxUsage.Decimal.Sub(tier.MinUsage))
		}
		if !chargeable.IsPositive() {
			continue
		}

		amount := money.Multiply(chargeable, tier.UnitPrice)
		total = total.Add(amount)
		remaining = remaining.Sub(chargeable)
		breakdown = append(breakdown, ratingdomain.BreakdownEntry{
			Label:     tier.Label,
			Quantity:  chargeable,
			UnitPrice: tier.UnitPrice,
			Amount:    amount,
		})
	}

	if remaining.IsPositive() {
		return money.Zero, nil, fmt.Errorf("%w: %s units above the last tier", pricedomain.ErrInvalidTiers, remaining)
	}
	return total, breakdown, nil
}
