package service

import (
	"testing"

	"github.com/shopspring/decimal"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	ratingdomain "github.com/smallbiznis/bluemoon/internal/rating/domain"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tier(label string, min int64, max *int64, price string) pricedomain.PriceTier {
	t := pricedomain.PriceTier{
		Label:     label,
		MinUsage:  decimal.NewFromInt(min),
		UnitPrice: decimal.RequireFromString(price),
	}
	if max != nil {
		t.MaxUsage = decimal.NewNullDecimal(decimal.NewFromInt(*max))
	}
	return t
}

func i64(v int64) *int64 { return &v }

func ladder() []pricedomain.PriceTier {
	// Deliberately unsorted; the calculator orders by MinUsage.
	return []pricedomain.PriceTier{
		tier("T3", 100, nil, "4000"),
		tier("T1", 0, i64(50), "2000"),
		tier("T2", 50, i64(100), "3000"),
	}
}

func TestComputeTieredAmountThreeTiers(t *testing.T) {
	amount, breakdown, err := ComputeTieredAmount(decimal.NewFromInt(120), ladder())
	require.NoError(t, err)
	assert.True(t, amount.Equal(money.FromInt(330000)), amount.String())

	require.Len(t, breakdown, 3)
	want := []struct {
		label  string
		qty    int64
		amount int64
	}{
		{"T1", 50, 100000},
		{"T2", 50, 150000},
		{"T3", 20, 80000},
	}
	for i, w := range want {
		assert.Equal(t, w.label, breakdown[i].Label)
		assert.True(t, breakdown[i].Quantity.Equal(decimal.NewFromInt(w.qty)))
		assert.True(t, breakdown[i].Amount.Equal(money.FromInt(w.amount)))
	}
}

func TestComputeTieredAmountEdges(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		amount, breakdown, err := ComputeTieredAmount(decimal.Zero, ladder())
		require.NoError(t, err)
		assert.True(t, amount.IsZero())
		assert.Empty(t, breakdown)
	})

	t.Run("negative is rejected, not clamped", func(t *testing.T) {
		_, _, err := ComputeTieredAmount(decimal.NewFromInt(-3), ladder())
		assert.ErrorIs(t, err, ratingdomain.ErrNegativeQuantity)
		assert.ErrorIs(t, err, ratingdomain.ErrInvalidInput)
	})

	t.Run("stops inside first tier", func(t *testing.T) {
		amount, breakdown, err := ComputeTieredAmount(decimal.NewFromInt(30), ladder())
		require.NoError(t, err)
		assert.True(t, amount.Equal(money.FromInt(60000)))
		assert.Len(t, breakdown, 1)
	})

	t.Run("exact boundary touches two tiers", func(t *testing.T) {
		amount, breakdown, err := ComputeTieredAmount(decimal.NewFromInt(100), ladder())
		require.NoError(t, err)
		assert.True(t, amount.Equal(money.FromInt(250000)))
		assert.Len(t, breakdown, 2)
	})

	t.Run("single unbounded tier is a blended rate", func(t *testing.T) {
		q := decimal.RequireFromString("37.25")
		amount, _, err := ComputeTieredAmount(q, []pricedomain.PriceTier{tier("ALL", 0, nil, "1500")})
		require.NoError(t, err)
		assert.True(t, amount.Equal(money.Multiply(q, decimal.NewFromInt(1500))))
	})

	t.Run("fractional slices round once each", func(t *testing.T) {
		// 10.5 x 1001 = 10510.5 -> 10511; 0.25 x 1333 = 333.25 -> 333
		tiers := []pricedomain.PriceTier{
			tier("A", 0, i64(10), "1001"),
			tier("B", 10, nil, "1001"),
		}
		tiers[0].MaxUsage = decimal.NewNullDecimal(decimal.RequireFromString("10.5"))
		tiers[1].MinUsage = decimal.RequireFromString("10.5")
		tiers[1].UnitPrice = decimal.NewFromInt(1333)
		amount, breakdown, err := ComputeTieredAmount(decimal.RequireFromString("10.75"), tiers)
		require.NoError(t, err)
		require.Len(t, breakdown, 2)
		assert.True(t, breakdown[0].Amount.Equal(money.FromInt(10511)))
		assert.True(t, breakdown[1].Amount.Equal(money.FromInt(333)))
		assert.True(t, amount.Equal(money.FromInt(10844)))
	})

	t.Run("bounded last tier cannot absorb overflow", func(t *testing.T) {
		_, _, err := ComputeTieredAmount(decimal.NewFromInt(80), []pricedomain.PriceTier{tier("T1", 0, i64(50), "2000")})
		assert.ErrorIs(t, err, pricedomain.ErrInvalidTiers)
	})

	t.Run("no tiers", func(t *testing.T) {
		_, _, err := ComputeTieredAmount(decimal.NewFromInt(1), nil)
		assert.ErrorIs(t, err, pricedomain.ErrInvalidTiers)
	})
}

func TestComputeTieredAmountPartitionsQuantity(t *testing.T) {
	quantities := []string{"0.5", "1", "49.99", "50", "50.01", "99.5", "100", "100.001", "1234.56"}
	for _, raw := range quantities {
		t.Run(raw, func(t *testing.T) {
			q := decimal.RequireFromString(raw)
			amount, breakdown, err := ComputeTieredAmount(q, ladder())
			require.NoError(t, err)

			sumQty := decimal.Zero
			sumAmount := money.Zero
			for _, entry := range breakdown {
				assert.True(t, entry.Quantity.IsPositive())
				sumQty = sumQty.Add(entry.Quantity)
				sumAmount = sumAmount.Add(entry.Amount)
			}
			assert.True(t, sumQty.Equal(q), "quantity %s split into %s", q, sumQty)
			assert.True(t, sumAmount.Equal(amount))
		})
	}
}
