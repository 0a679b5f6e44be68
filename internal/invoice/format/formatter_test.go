package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatStatementNumber(t *testing.T) {
	cases := []struct {
		name     string
		template string
		want     string
	}{
		{name: "default", template: DefaultStatementNumberTemplate, want: "HD-202403-0101"},
		{name: "short year", template: "{YY}{MM}/{ROOM}", want: "2403/101"},
		{name: "wide room", template: "{ROOM6}", want: "000101"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormatStatementNumber(tc.template, 3, 2024, 101)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatStatementNumberErrors(t *testing.T) {
	_, err := FormatStatementNumber("", 3, 2024, 1)
	assert.Error(t, err)
	_, err = FormatStatementNumber("HD-{MM}", 13, 2024, 1)
	assert.Error(t, err)
	_, err = FormatStatementNumber("HD-{SEQ}", 3, 2024, 1)
	assert.Error(t, err)
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "1.132.500 VNĐ", Amount(money.FromInt(1132500)))
	assert.Equal(t, "0 VNĐ", Amount(money.Zero))
}

func TestQuantity(t *testing.T) {
	cases := map[string]string{
		"75.50":   "75,5",
		"120":     "120",
		"1234.25": "1.234,25",
		"0":       "0",
		"0.5":     "0,5",
	}
	for in, want := range cases {
		assert.Equal(t, want, Quantity(decimal.RequireFromString(in)), in)
	}
}

func TestPeriodAndDate(t *testing.T) {
	assert.Equal(t, "03/2024", Period(3, 2024))
	assert.Equal(t, "16/03/2024", Date(time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", Date(time.Time{}))
}
