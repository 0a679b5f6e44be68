package domain

import "errors"

var (
	ErrInvalidCategory     = errors.New("invalid_category")
	ErrInvalidModel        = errors.New("invalid_model")
	ErrInvalidDateRange    = errors.New("invalid_date_range")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrOverlappingSchedule = errors.New("overlapping_schedule")
	ErrNotFound            = errors.New("not_found")

	// Configuration errors stop pricing of one category for one apartment.
	ErrNoActivePrice   = errors.New("no_active_price")
	ErrAmbiguousPrice  = errors.New("ambiguous_active_price")
	ErrInvalidTiers    = errors.New("invalid_price_tiers")
	ErrUnexpectedModel = errors.New("unexpected_price_model")
	ErrTierNotFound    = errors.New("price_tier_not_found")
)

// IsConfigurationError reports whether err stems from missing or inconsistent price data.
func IsConfigurationError(err error) bool {
	switch {
	case errors.Is(err, ErrNoActivePrice),
		errors.Is(err, ErrAmbiguousPrice),
		errors.Is(err, ErrInvalidTiers),
		errors.Is(err, ErrUnexpectedModel),
		errors.Is(err, ErrTierNotFound):
		return true
	default:
		return false
	}
}
