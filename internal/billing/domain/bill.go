package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is the lifecycle state of a bill.
type BillStatus string

const (
	StatusPending BillStatus = "Pending"
	StatusPaid    BillStatus = "Paid"
	StatusOverdue BillStatus = "Overdue"
)

// Bill is one billing-cycle charge for a consumer. The charge fields are
// immutable after creation; only the status and penalty fields change, and
// only through UpdateBillPenalty, Waive or payment processing.
type Bill struct {
	ID         string
	ConsumerID string

	BillingPeriod time.Time
	DueDate       time.Time

	Consumption  int
	RatePerCubic decimal.Decimal
	FixedCharge  decimal.Decimal
	TotalAmount  decimal.Decimal
	Breakdown    Breakdown

	PenaltyAmount         decimal.Decimal
	DaysOverdue           int
	PenaltyAppliedAt      *time.Time
	PenaltyWaived         bool
	PenaltyWaivedBy       string
	PenaltyWaivedReason   string
	PenaltyWaivedAt       *time.Time
	SeniorCitizenDiscount decimal.Decimal

	Status    BillStatus
	CreatedAt time.Time
}

// IsOverdue reports whether the bill is unpaid past its due date.
func (b *Bill) IsOverdue(today time.Time) bool {
	if b == nil || b.Status == StatusPaid {
		return false
	}
	return dateOf(today).After(dateOf(b.DueDate))
}

// EffectivePenalty returns the billable penalty, zero when waived.
func (b *Bill) EffectivePenalty() decimal.Decimal {
	if b == nil || b.PenaltyWaived {
		return decimal.Zero
	}
	return b.PenaltyAmount
}

// EffectiveSeniorDiscount returns the billable senior-citizen discount. The
// discount is a percentage of the penalty, so it falls away with the penalty
// when waived; the stored amount stays as an audit record like PenaltyAmount.
func (b *Bill) EffectiveSeniorDiscount() decimal.Decimal {
	if b == nil || b.PenaltyWaived {
		return decimal.Zero
	}
	return b.SeniorCitizenDiscount
}

// AmountDue is the grand total: charge plus effective penalty minus the
// effective senior-citizen discount. A waived bill collects exactly the
// charge total.
func (b *Bill) AmountDue() decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}
	return b.TotalAmount.Add(b.EffectivePenalty()).Sub(b.EffectiveSeniorDiscount())
}

// dateOf truncates a timestamp to its calendar date in UTC.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole calendar days from a to b (negative when b is
// earlier).
func DaysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}
