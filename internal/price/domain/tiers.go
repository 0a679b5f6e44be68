package domain

import (
	"fmt"
	"strings"
)

// ValidateLadder checks that tiers form a consumption ladder: starting at zero,
// contiguous (min[i+1] == max[i]), non-overlapping, with only the last tier unbounded.
func ValidateLadder(tiers []PriceTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: no tiers", ErrInvalidTiers)
	}
	sorted := PriceSchedule{Tiers: tiers}.SortedTiers()
	if !sorted[0].MinUsage.IsZero() {
		return fmt.Errorf("%w: first tier starts at %s", ErrInvalidTiers, sorted[0].MinUsage)
	}
	for i, tier := range sorted {
		if tier.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: tier %q has a negative unit price", ErrInvalidTiers, tier.Label)
		}
		last := i == len(sorted)-1
		if tier.Unbounded() {
			if !last {
				return fmt.Errorf("%w: tier %q is unbounded but not last", ErrInvalidTiers, tier.Label)
			}
			continue
		}
		if last {
			return fmt.Errorf("%w: last tier %q must be unbounded", ErrInvalidTiers, tier.Label)
		}
		if !tier.MaxUsage.Decimal.GreaterThan(tier.MinUsage) {
			return fmt.Errorf("%w: tier %q is empty", ErrInvalidTiers, tier.Label)
		}
		next := sorted[i+1]
		if !next.MinUsage.Equal(tier.MaxUsage.Decimal) {
			return fmt.Errorf("%w: gap or overlap between %s and %s", ErrInvalidTiers, tier.MaxUsage.Decimal, next.MinUsage)
		}
	}
	return nil
}

// ValidateRateTable checks tiers used as a labeled rate table.
func ValidateRateTable(tiers []PriceTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: no rates", ErrInvalidTiers)
	}
	seen := make(map[string]struct{}, len(tiers))
	for _, tier := range tiers {
		label := strings.ToUpper(strings.TrimSpace(tier.Label))
		if label == "" {
			return fmt.Errorf("%w: rate without label", ErrInvalidTiers)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("%w: duplicate rate %q", ErrInvalidTiers, label)
		}
		if tier.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: rate %q has a negative unit price", ErrInvalidTiers, label)
		}
		seen[label] = struct{}{}
	}
	return nil
}
