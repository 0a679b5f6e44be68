package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every amount (VND has no minor unit).
const Scale int32 = 0

// RatioScale is the precision used for non-monetary ratios.
const RatioScale int32 = 4

// Currency is the single local currency amounts are expressed in.
const Currency = "VND"

const currencySymbol = "VNĐ"

// Money is an immutable amount rounded half-up to Scale.
// Every constructor rounds, so arithmetic between two Money values never re-rounds.
type Money struct {
	amount decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{amount: decimal.Zero}

// New rounds d half-up to Scale.
func New(d decimal.Decimal) Money {
	return Money{amount: d.Round(Scale)}
}

// FromInt builds an amount from whole currency units.
func FromInt(v int64) Money {
	return Money{amount: decimal.NewFromInt(v)}
}

// Parse reads a decimal string and rounds it.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return New(d), nil
}

// Multiply prices a quantity at a unit price, rounding the product once.
func Multiply(quantity, unitPrice decimal.Decimal) Money {
	return New(quantity.Mul(unitPrice))
}

// Divide splits m by divisor. A zero divisor yields Zero.
func Divide(m Money, divisor decimal.Decimal) Money {
	if divisor.IsZero() {
		return Zero
	}
	return New(m.amount.Div(divisor))
}

// Ratio returns part/whole at RatioScale, or zero when whole is zero.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.DivRound(whole, RatioScale)
}

// Sum adds amounts in order.
func Sum(values ...Money) Money {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

func (m Money) IntPart() int64 {
	return m.amount.IntPart()
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

// Format renders the amount with '.' thousands separators, e.g. "1.132.500 VNĐ".
func (m Money) Format() string {
	return FormatDecimal(m.amount) + " " + currencySymbol
}

// FormatDecimal groups the integer digits of d by thousands using '.'.
func FormatDecimal(d decimal.Decimal) string {
	raw := d.Round(Scale).StringFixed(Scale)
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	var b strings.Builder
	lead := len(raw) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(raw[:lead])
	for i := lead; i < len(raw); i += 3 {
		b.WriteByte('.')
		b.WriteString(raw[i : i+3])
	}
	if negative && raw != "0" {
		return "-" + b.String()
	}
	return b.String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = New(d)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(value any) error {
	var d decimal.Decimal
	if value == nil {
		*m = Zero
		return nil
	}
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = New(d)
	return nil
}
