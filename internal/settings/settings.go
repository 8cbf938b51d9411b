// Package settings holds the system-wide configuration record: tiered water
// rates per usage class, the penalty policy, and the monthly billing cycle
// days. The record is a singleton row maintained by an administrator; the
// calculators receive it as an explicit pointer and fall back to hardcoded
// defaults when it is absent.
package settings

import (
	"errors"
	"time"

	billing "waterworks/internal/billing/domain"
)

var (
	// ErrInvalidCycleDay is returned when a billing-cycle day is outside 1-28.
	ErrInvalidCycleDay = errors.New("settings: cycle day must be between 1 and 28")
	// ErrInvalidGracePeriod is returned for a negative grace period.
	ErrInvalidGracePeriod = errors.New("settings: negative grace period")
	// ErrInvalidPenaltyType is returned for an unknown penalty type.
	ErrInvalidPenaltyType = errors.New("settings: unknown penalty type")
)

// Settings is the system configuration record.
type Settings struct {
	Residential billing.RateSchedule
	Commercial  billing.RateSchedule
	Penalty     billing.PenaltyPolicy

	// Reading window for field staff submissions, days of month.
	ReadingStartDay int
	ReadingEndDay   int
	// Dates stamped on generated bills.
	BillingDayOfMonth int
	DueDayOfMonth     int

	UpdatedAt time.Time
}

// Default returns the settings used when no row has been saved yet.
func Default() Settings {
	return Settings{
		Residential:       billing.DefaultRateSchedule(billing.UsageResidential),
		Commercial:        billing.DefaultRateSchedule(billing.UsageCommercial),
		Penalty:           billing.DefaultPenaltyPolicy(),
		ReadingStartDay:   1,
		ReadingEndDay:     10,
		BillingDayOfMonth: 1,
		DueDayOfMonth:     20,
	}
}

// Validate checks rate and cycle constraints.
func (s Settings) Validate() error {
	if err := s.Residential.Validate(); err != nil {
		return err
	}
	if err := s.Commercial.Validate(); err != nil {
		return err
	}
	for _, day := range []int{s.ReadingStartDay, s.ReadingEndDay, s.BillingDayOfMonth, s.DueDayOfMonth} {
		if day < 1 || day > 28 {
			return ErrInvalidCycleDay
		}
	}
	if s.Penalty.GracePeriodDays < 0 {
		return ErrInvalidGracePeriod
	}
	switch s.Penalty.Type {
	case billing.PenaltyPercentage, billing.PenaltyFixed:
	default:
		return ErrInvalidPenaltyType
	}
	if s.Penalty.Rate.IsNegative() || s.Penalty.FixedAmount.IsNegative() || s.Penalty.MaxAmount.IsNegative() {
		return billing.ErrNegativeRate
	}
	return nil
}

// ScheduleFor returns the rate schedule for a usage class, or nil when the
// settings record itself is absent so the calculator applies its defaults.
func (s *Settings) ScheduleFor(class billing.UsageClass) *billing.RateSchedule {
	if s == nil {
		return nil
	}
	if class == billing.UsageCommercial {
		return &s.Commercial
	}
	return &s.Residential
}

// PenaltyPolicy returns the penalty policy, or nil when absent.
func (s *Settings) PenaltyPolicy() *billing.PenaltyPolicy {
	if s == nil {
		return nil
	}
	return &s.Penalty
}
