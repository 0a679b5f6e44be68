package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bluemoon/pkg/money"
)

var (
	roomPadRe = regexp.MustCompile(`\{ROOM(\d+)\}`)
)

const DefaultStatementNumberTemplate = "HD-{YYYY}{MM}-{ROOM4}"

// FormatStatementNumber renders a human-readable statement number for an
// apartment's invoice in a billing period. Tokens: {YYYY} {YY} {MM} {ROOM} {ROOMn}.
func FormatStatementNumber(template string, month, year, room int) (string, error) {
	if template == "" {
		return "", fmt.Errorf("statement number template is empty")
	}
	if month < 1 || month > 12 || year <= 0 {
		return "", fmt.Errorf("invalid billing period: %d/%d", month, year)
	}
	if room < 0 {
		return "", fmt.Errorf("invalid room number: %d", room)
	}

	period := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	out := template
	out = strings.ReplaceAll(out, "{YYYY}", period.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", period.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", period.Format("01"))
	out = strings.ReplaceAll(out, "{ROOM}", strconv.Itoa(room))

	out = roomPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := roomPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, room)
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in statement format: %s", out)
	}
	return out, nil
}

// Amount renders money as "1.132.500 VNĐ".
func Amount(m money.Money) string {
	return m.Format()
}

// Quantity renders a quantity with '.' thousands grouping and a ',' decimal mark.
// Trailing fractional zeros are dropped: 75.50 becomes "75,5".
func Quantity(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	intPart := d.Truncate(0)
	grouped := money.FormatDecimal(intPart)
	if intPart.IsZero() && d.IsNegative() {
		grouped = "-0"
	}

	frac := d.Sub(intPart).Abs()
	if frac.IsZero() {
		return grouped
	}
	digits := strings.TrimPrefix(frac.String(), "0.")
	return grouped + "," + digits
}

// Period renders a billing period as "03/2024".
func Period(month, year int) string {
	return fmt.Sprintf("%02d/%d", month, year)
}

// Date renders a calendar date as "02/01/2006".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("02/01/2006")
}
