package server

import (
	"fmt"
	"strconv"
	"strings"
)

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalMonth accepts an empty value or a month number between 1 and 12.
func parseOptionalMonth(value string) (*int, error) {
	month, err := parseOptionalInt(value)
	if err != nil {
		return nil, newValidationError("month", "invalid_month", "invalid month")
	}
	if month != nil && (*month < 1 || *month > 12) {
		return nil, newValidationError("month", "invalid_month", "month must be between 1 and 12")
	}
	return month, nil
}

func parseOptionalYear(value string) (*int, error) {
	year, err := parseOptionalInt(value)
	if err != nil {
		return nil, newValidationError("year", "invalid_year", "invalid year")
	}
	if year != nil && *year <= 0 {
		return nil, newValidationError("year", "invalid_year", "year must be positive")
	}
	return year, nil
}

func parseRequiredMonth(value string) (int, error) {
	month, err := parseOptionalMonth(value)
	if err != nil {
		return 0, err
	}
	if month == nil {
		return 0, newValidationError("month", "invalid_month", "month is required")
	}
	return *month, nil
}

func parseRequiredYear(value string) (int, error) {
	year, err := parseOptionalYear(value)
	if err != nil {
		return 0, err
	}
	if year == nil {
		return 0, newValidationError("year", "invalid_year", "year is required")
	}
	return *year, nil
}

func billingPeriod(month, year int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
