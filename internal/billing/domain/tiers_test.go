package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func residentialTestSchedule() *RateSchedule {
	return &RateSchedule{
		MinimumCharge: decimal.NewFromInt(75),
		Tier2Rate:     decimal.NewFromInt(15),
		Tier3Rate:     decimal.NewFromInt(16),
		Tier4Rate:     decimal.NewFromInt(17),
		Tier5Rate:     decimal.NewFromInt(50),
	}
}

func TestComputeBillWorkedExample(t *testing.T) {
	// 25 m3: minimum 75 + 5x15 + 10x16 + 5x17 = 395.00
	charge := ComputeBill(25, UsageResidential, residentialTestSchedule())

	if got, want := charge.Total.StringFixed(2), "395.00"; got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}
	if got, want := charge.AverageRate.StringFixed(2), "15.80"; got != want {
		t.Fatalf("average rate = %s, want %s", got, want)
	}
	b := charge.Breakdown
	if b.Tier1Units != 5 || b.Tier2Units != 5 || b.Tier3Units != 10 || b.Tier4Units != 5 || b.Tier5Units != 0 {
		t.Fatalf("tier units = %d/%d/%d/%d/%d, want 5/5/10/5/0",
			b.Tier1Units, b.Tier2Units, b.Tier3Units, b.Tier4Units, b.Tier5Units)
	}
	if got, want := b.Tier3Amount.StringFixed(2), "160.00"; got != want {
		t.Fatalf("tier 3 amount = %s, want %s", got, want)
	}
}

func TestComputeBillFlatTierBoundaries(t *testing.T) {
	schedule := residentialTestSchedule()

	one := ComputeBill(1, UsageResidential, schedule)
	five := ComputeBill(5, UsageResidential, schedule)
	if !one.Total.Equal(five.Total) || !one.Total.Equal(schedule.MinimumCharge) {
		t.Fatalf("1 m3 = %s, 5 m3 = %s, want both equal minimum %s",
			one.Total, five.Total, schedule.MinimumCharge)
	}
	if one.Breakdown.Tier1Units != 1 || five.Breakdown.Tier1Units != 5 {
		t.Fatalf("tier 1 display units = %d and %d, want 1 and 5",
			one.Breakdown.Tier1Units, five.Breakdown.Tier1Units)
	}

	six := ComputeBill(6, UsageResidential, schedule)
	want := schedule.MinimumCharge.Add(schedule.Tier2Rate)
	if !six.Total.Equal(want) {
		t.Fatalf("6 m3 = %s, want minimum + tier2 = %s", six.Total, want)
	}
}

func TestComputeBillZeroConsumption(t *testing.T) {
	charge := ComputeBill(0, UsageCommercial, nil)

	if !charge.Total.Equal(DefaultRateSchedule(UsageCommercial).MinimumCharge) {
		t.Fatalf("zero consumption total = %s, want commercial minimum", charge.Total)
	}
	if !charge.AverageRate.IsZero() {
		t.Fatalf("zero consumption average rate = %s, want 0", charge.AverageRate)
	}
	if charge.Breakdown.Tier1Units != 0 {
		t.Fatalf("tier 1 units = %d, want 0", charge.Breakdown.Tier1Units)
	}
}

func TestComputeBillNonDecreasing(t *testing.T) {
	schedule := residentialTestSchedule()
	minimum := schedule.MinimumCharge

	previous := decimal.Zero
	for consumption := 0; consumption <= 120; consumption++ {
		charge := ComputeBill(consumption, UsageResidential, schedule)
		if charge.Total.LessThan(minimum) {
			t.Fatalf("total %s at %d m3 below minimum charge %s", charge.Total, consumption, minimum)
		}
		if charge.Total.LessThan(previous) {
			t.Fatalf("total decreased at %d m3: %s < %s", consumption, charge.Total, previous)
		}
		previous = charge.Total
	}
}

func TestComputeBillAllTiers(t *testing.T) {
	// 60 m3: 75 + 5x15 + 10x16 + 30x17 + 10x50 = 1320.00
	charge := ComputeBill(60, UsageResidential, residentialTestSchedule())

	if got, want := charge.Total.StringFixed(2), "1320.00"; got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}
	if charge.Breakdown.Tier5Units != 10 {
		t.Fatalf("tier 5 units = %d, want 10", charge.Breakdown.Tier5Units)
	}
	if got, want := charge.AverageRate.StringFixed(2), "22.00"; got != want {
		t.Fatalf("average rate = %s, want %s", got, want)
	}
}

func TestComputeBillDefaultFallback(t *testing.T) {
	withDefaults := ComputeBill(25, UsageResidential, nil)

	defaults := DefaultRateSchedule(UsageResidential)
	explicit := ComputeBill(25, UsageResidential, &defaults)
	if !withDefaults.Total.Equal(explicit.Total) {
		t.Fatalf("nil schedule total %s differs from explicit defaults %s",
			withDefaults.Total, explicit.Total)
	}
	// Residential defaults: 75 + 75 + 160 + 85 = 395
	if got, want := withDefaults.Total.StringFixed(2), "395.00"; got != want {
		t.Fatalf("default total = %s, want %s", got, want)
	}
}

func TestRateScheduleValidate(t *testing.T) {
	schedule := DefaultRateSchedule(UsageResidential)
	if err := schedule.Validate(); err != nil {
		t.Fatalf("default schedule invalid: %v", err)
	}

	schedule.Tier3Rate = decimal.NewFromInt(-1)
	if err := schedule.Validate(); err != ErrNegativeRate {
		t.Fatalf("expected ErrNegativeRate, got %v", err)
	}
}
