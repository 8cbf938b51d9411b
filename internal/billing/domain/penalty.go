package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PenaltyType selects how a late-payment penalty is computed.
type PenaltyType string

const (
	PenaltyPercentage PenaltyType = "percentage"
	PenaltyFixed      PenaltyType = "fixed"
)

// PenaltyPolicy holds the late-payment penalty settings.
type PenaltyPolicy struct {
	Enabled         bool
	Type            PenaltyType
	Rate            decimal.Decimal // percentage points, Type == percentage
	FixedAmount     decimal.Decimal // Type == fixed
	GracePeriodDays int
	MaxAmount       decimal.Decimal // 0 means uncapped
}

// DefaultPenaltyPolicy is the fallback when no settings row exists:
// 10% of the bill, no grace period, capped at 500, 50 fixed fallback.
func DefaultPenaltyPolicy() PenaltyPolicy {
	return PenaltyPolicy{
		Enabled:     true,
		Type:        PenaltyPercentage,
		Rate:        decimal.NewFromInt(10),
		FixedAmount: decimal.NewFromInt(50),
		MaxAmount:   decimal.NewFromInt(500),
	}
}

// seniorDiscountRate is the senior-citizen discount applied on penalties (5%).
var seniorDiscountRate = decimal.NewFromInt(5)

// ComputePenalty calculates the penalty for a bill as of today.
//
// Rules are evaluated in order, first match wins: nil bill, already paid,
// penalties disabled, waived, not yet due, within grace period. Past those the
// raw penalty is the policy percentage of the bill total (rounded half up to
// 2 dp) or the fixed amount, then the cap is applied. The explanation string
// is an audit trail, including the pre-cap value when capping occurred.
// A nil policy falls back to DefaultPenaltyPolicy.
func ComputePenalty(bill *Bill, policy *PenaltyPolicy, today time.Time) (decimal.Decimal, int, string) {
	if bill == nil {
		return decimal.Zero, 0, "No penalty applied"
	}
	if bill.Status == StatusPaid {
		return decimal.Zero, 0, "Bill is already paid - no penalty"
	}

	effective := DefaultPenaltyPolicy()
	if policy != nil {
		effective = *policy
	}

	if !effective.Enabled {
		return decimal.Zero, 0, "Penalties are disabled in system settings"
	}
	if bill.PenaltyWaived {
		reason := bill.PenaltyWaivedReason
		if reason == "" {
			reason = "No reason provided"
		}
		return decimal.Zero, 0, "Penalty waived: " + reason
	}
	if !dateOf(today).After(dateOf(bill.DueDate)) {
		return decimal.Zero, 0, fmt.Sprintf("Bill not yet due (due date: %s)", bill.DueDate.Format("2006-01-02"))
	}

	daysOverdue := DaysBetween(bill.DueDate, today)
	if daysOverdue <= effective.GracePeriodDays {
		return decimal.Zero, daysOverdue,
			fmt.Sprintf("Within grace period (%d of %d days)", daysOverdue, effective.GracePeriodDays)
	}

	var penalty decimal.Decimal
	var details string
	if effective.Type == PenaltyFixed {
		penalty = effective.FixedAmount
		details = fmt.Sprintf("Fixed penalty: %s (%d days overdue, grace period: %d days)",
			FormatPeso(penalty), daysOverdue, effective.GracePeriodDays)
	} else {
		penalty = bill.TotalAmount.Mul(effective.Rate).Div(decimal.NewFromInt(100)).Round(2)
		details = fmt.Sprintf("Percentage penalty: %s%% of %s = %s (%d days overdue, grace period: %d days)",
			effective.Rate.String(), FormatPeso(bill.TotalAmount), FormatPeso(penalty),
			daysOverdue, effective.GracePeriodDays)
	}

	if effective.MaxAmount.IsPositive() && penalty.GreaterThan(effective.MaxAmount) {
		details += fmt.Sprintf(" | Capped from %s to %s", FormatPeso(penalty), FormatPeso(effective.MaxAmount))
		penalty = effective.MaxAmount
	}

	return penalty, daysOverdue, details
}

// UpdateBillPenalty refreshes the penalty fields on a bill for the given day.
//
// The update is idempotent: repeated calls with the same today converge on the
// same stored values and report changed=false once stable, so it is safe to
// run on every page view, before every payment and from the bulk sweep. The
// senior-citizen discount (5% of the penalty) is recomputed alongside, and
// PenaltyAppliedAt is stamped the first time a penalty appears and never
// overwritten afterward.
func UpdateBillPenalty(bill *Bill, policy *PenaltyPolicy, today time.Time, senior bool) (bool, string) {
	if bill == nil {
		return false, "No bill to update"
	}
	if bill.Status == StatusPaid {
		return false, "Bill is already paid"
	}
	if bill.PenaltyWaived {
		return false, "Penalty has been waived"
	}

	penalty, daysOverdue, _ := ComputePenalty(bill, policy, today)
	if bill.PenaltyAmount.Equal(penalty) && bill.DaysOverdue == daysOverdue {
		return false, "No changes to penalty"
	}

	oldPenalty := bill.PenaltyAmount
	bill.PenaltyAmount = penalty
	bill.DaysOverdue = daysOverdue

	if senior && penalty.IsPositive() {
		bill.SeniorCitizenDiscount = penalty.Mul(seniorDiscountRate).Div(decimal.NewFromInt(100)).Round(2)
	} else {
		bill.SeniorCitizenDiscount = decimal.Zero
	}

	if penalty.IsPositive() && bill.PenaltyAppliedAt == nil {
		applied := dateOf(today)
		bill.PenaltyAppliedAt = &applied
	}

	switch {
	case penalty.GreaterThan(oldPenalty):
		return true, fmt.Sprintf("Penalty increased from %s to %s", FormatPeso(oldPenalty), FormatPeso(penalty))
	case penalty.LessThan(oldPenalty):
		return true, fmt.Sprintf("Penalty decreased from %s to %s", FormatPeso(oldPenalty), FormatPeso(penalty))
	default:
		return true, fmt.Sprintf("Days overdue updated to %d", daysOverdue)
	}
}

// Waive permanently zeroes the billable penalty for one bill. The computed
// penalty amount is kept on the bill as an audit record of what was waived.
func Waive(bill *Bill, actor, reason string, now time.Time) (bool, string) {
	if bill == nil {
		return false, "No bill to waive"
	}
	if bill.Status == StatusPaid {
		return false, "Cannot waive penalty on a paid bill"
	}
	if bill.PenaltyWaived {
		return false, "Penalty has already been waived"
	}
	if !bill.PenaltyAmount.IsPositive() {
		return false, "No penalty to waive"
	}

	waivedAt := now.UTC()
	bill.PenaltyWaived = true
	bill.PenaltyWaivedBy = actor
	bill.PenaltyWaivedReason = reason
	bill.PenaltyWaivedAt = &waivedAt

	return true, fmt.Sprintf("Penalty of %s has been waived", FormatPeso(bill.PenaltyAmount))
}
