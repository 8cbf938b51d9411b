package billing

import "github.com/shopspring/decimal"

// Tier band sizes. Tier 1 covers the first 5 units under the minimum charge,
// tier 5 is open-ended.
const (
	tier1Units = 5
	tier2Units = 5
	tier3Units = 10
	tier4Units = 30
)

// Breakdown is the per-tier audit trail of a bill calculation. It is kept for
// display and persisted on the bill; nothing downstream branches on it.
type Breakdown struct {
	Consumption   int
	UsageClass    UsageClass
	MinimumCharge decimal.Decimal

	Tier1Units  int
	Tier1Amount decimal.Decimal

	Tier2Units  int
	Tier2Rate   decimal.Decimal
	Tier2Amount decimal.Decimal

	Tier3Units  int
	Tier3Rate   decimal.Decimal
	Tier3Amount decimal.Decimal

	Tier4Units  int
	Tier4Rate   decimal.Decimal
	Tier4Amount decimal.Decimal

	Tier5Units  int
	Tier5Rate   decimal.Decimal
	Tier5Amount decimal.Decimal
}

// Charge is the result of a tiered bill calculation.
type Charge struct {
	Total       decimal.Decimal
	AverageRate decimal.Decimal
	Breakdown   Breakdown
}

// ComputeBill calculates a water bill using the progressive tier structure.
//
// The billing is cumulative: the minimum charge covers the first 5 units and
// each subsequent band adds units x rate until consumption is exhausted.
// Example (Residential defaults), 25 m3:
//
//	tier 1  75.00 (minimum) + tier 2 5x15 + tier 3 10x16 + tier 4 5x17 = 395.00
//
// Consumption at or below zero still bills the minimum charge. A nil schedule
// falls back to the hardcoded defaults for the class. The average rate is the
// only rounded figure (2 dp, half up); tier amounts are exact.
func ComputeBill(consumption int, class UsageClass, schedule *RateSchedule) Charge {
	rates := DefaultRateSchedule(class)
	if schedule != nil {
		rates = *schedule
	}

	breakdown := Breakdown{
		Consumption:   consumption,
		UsageClass:    class,
		MinimumCharge: rates.MinimumCharge,
		Tier2Rate:     rates.Tier2Rate,
		Tier3Rate:     rates.Tier3Rate,
		Tier4Rate:     rates.Tier4Rate,
		Tier5Rate:     rates.Tier5Rate,
	}

	total := rates.MinimumCharge
	breakdown.Tier1Amount = rates.MinimumCharge

	switch {
	case consumption <= 0:
		// Zero consumption still pays the minimum.
	case consumption <= tier1Units:
		breakdown.Tier1Units = consumption
	default:
		breakdown.Tier1Units = tier1Units
		remaining := consumption - tier1Units

		if remaining > 0 {
			units := min(remaining, tier2Units)
			amount := decimal.NewFromInt(int64(units)).Mul(rates.Tier2Rate)
			breakdown.Tier2Units = units
			breakdown.Tier2Amount = amount
			total = total.Add(amount)
			remaining -= units
		}
		if remaining > 0 {
			units := min(remaining, tier3Units)
			amount := decimal.NewFromInt(int64(units)).Mul(rates.Tier3Rate)
			breakdown.Tier3Units = units
			breakdown.Tier3Amount = amount
			total = total.Add(amount)
			remaining -= units
		}
		if remaining > 0 {
			units := min(remaining, tier4Units)
			amount := decimal.NewFromInt(int64(units)).Mul(rates.Tier4Rate)
			breakdown.Tier4Units = units
			breakdown.Tier4Amount = amount
			total = total.Add(amount)
			remaining -= units
		}
		if remaining > 0 {
			amount := decimal.NewFromInt(int64(remaining)).Mul(rates.Tier5Rate)
			breakdown.Tier5Units = remaining
			breakdown.Tier5Amount = amount
			total = total.Add(amount)
		}
	}

	averageRate := decimal.Zero
	if consumption > 0 {
		averageRate = total.Div(decimal.NewFromInt(int64(consumption))).Round(2)
	}

	return Charge{Total: total, AverageRate: averageRate, Breakdown: breakdown}
}
