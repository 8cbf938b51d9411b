package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PenaltySummary aggregates penalty state across a consumer's bill and
// payment history. Outstanding always equals TotalCharged - Waived - Paid.
type PenaltySummary struct {
	TotalCharged decimal.Decimal
	Waived       decimal.Decimal
	Paid         decimal.Decimal
	Outstanding  decimal.Decimal
	OverdueCount int
}

// SummarizePenalties recomputes the penalty summary from scratch on each call;
// nothing is cached.
func SummarizePenalties(bills []Bill, payments []Payment, today time.Time) PenaltySummary {
	var summary PenaltySummary
	summary.TotalCharged = decimal.Zero
	summary.Waived = decimal.Zero
	summary.Paid = decimal.Zero

	for i := range bills {
		bill := &bills[i]
		summary.TotalCharged = summary.TotalCharged.Add(bill.PenaltyAmount)
		if bill.PenaltyWaived {
			summary.Waived = summary.Waived.Add(bill.PenaltyAmount)
		}
		if bill.IsOverdue(today) {
			summary.OverdueCount++
		}
	}
	for _, payment := range payments {
		summary.Paid = summary.Paid.Add(payment.PenaltyAmount)
	}

	summary.Outstanding = summary.TotalCharged.Sub(summary.Waived).Sub(summary.Paid)
	return summary
}
