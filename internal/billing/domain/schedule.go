package billing

import "github.com/shopspring/decimal"

// RateSchedule holds the tiered water rates for one usage class.
//
// Tier 1 (1-5 m3) is covered by the flat minimum charge; tiers 2-5 are
// per-cubic-meter rates for the bands 6-10, 11-20, 21-50 and 51+.
type RateSchedule struct {
	MinimumCharge decimal.Decimal
	Tier2Rate     decimal.Decimal
	Tier3Rate     decimal.Decimal
	Tier4Rate     decimal.Decimal
	Tier5Rate     decimal.Decimal
}

// Validate checks that no rate is negative.
func (s RateSchedule) Validate() error {
	for _, rate := range []decimal.Decimal{s.MinimumCharge, s.Tier2Rate, s.Tier3Rate, s.Tier4Rate, s.Tier5Rate} {
		if rate.IsNegative() {
			return ErrNegativeRate
		}
	}
	return nil
}

// DefaultRateSchedule returns the hardcoded fallback schedule for a usage
// class, used when no settings row exists. Business continuity: billing keeps
// working with the published default rates rather than failing.
func DefaultRateSchedule(class UsageClass) RateSchedule {
	if class == UsageCommercial {
		return RateSchedule{
			MinimumCharge: decimal.NewFromInt(100),
			Tier2Rate:     decimal.NewFromInt(18),
			Tier3Rate:     decimal.NewFromInt(20),
			Tier4Rate:     decimal.NewFromInt(22),
			Tier5Rate:     decimal.NewFromInt(24),
		}
	}
	return RateSchedule{
		MinimumCharge: decimal.NewFromInt(75),
		Tier2Rate:     decimal.NewFromInt(15),
		Tier3Rate:     decimal.NewFromInt(16),
		Tier4Rate:     decimal.NewFromInt(17),
		Tier5Rate:     decimal.NewFromInt(18),
	}
}
