package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records a settled bill: the bill total at payment time, the penalty
// that was collected (or waived), and the cash handling details. ORNumber is
// the official receipt number allocated at processing time.
type Payment struct {
	ID     string
	BillID string

	OriginalBillAmount decimal.Decimal
	PenaltyAmount      decimal.Decimal
	PenaltyWaived      bool
	DaysOverdueAtPay   int

	AmountPaid     decimal.Decimal
	ReceivedAmount decimal.Decimal
	Change         decimal.Decimal

	ORNumber    string
	ProcessedBy string
	Remarks     string
	PaidAt      time.Time
}

// TotalWithPenalty is the bill total plus the penalty collected with it.
func (p Payment) TotalWithPenalty() decimal.Decimal {
	return p.OriginalBillAmount.Add(p.PenaltyAmount)
}
