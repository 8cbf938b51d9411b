package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func pendingBill(total string, dueDate time.Time) *Bill {
	return &Bill{
		ID:          "bill-1",
		ConsumerID:  "consumer-1",
		DueDate:     dueDate,
		TotalAmount: decimal.RequireFromString(total),
		Status:      StatusPending,
	}
}

func percentagePolicy(rate string, graceDays int, cap string) *PenaltyPolicy {
	return &PenaltyPolicy{
		Enabled:         true,
		Type:            PenaltyPercentage,
		Rate:            decimal.RequireFromString(rate),
		FixedAmount:     decimal.NewFromInt(50),
		GracePeriodDays: graceDays,
		MaxAmount:       decimal.RequireFromString(cap),
	}
}

func TestComputePenaltyShortCircuits(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	today := due.AddDate(0, 0, 10)
	policy := percentagePolicy("10", 0, "0")

	penalty, days, details := ComputePenalty(nil, policy, today)
	if !penalty.IsZero() || days != 0 || details != "No penalty applied" {
		t.Fatalf("nil bill: got (%s, %d, %q)", penalty, days, details)
	}

	paid := pendingBill("500.00", due)
	paid.Status = StatusPaid
	penalty, _, details = ComputePenalty(paid, policy, today)
	if !penalty.IsZero() || !strings.Contains(details, "already paid") {
		t.Fatalf("paid bill: got (%s, %q)", penalty, details)
	}

	disabled := *policy
	disabled.Enabled = false
	penalty, _, details = ComputePenalty(pendingBill("500.00", due), &disabled, today)
	if !penalty.IsZero() || !strings.Contains(details, "disabled") {
		t.Fatalf("disabled policy: got (%s, %q)", penalty, details)
	}

	waived := pendingBill("500.00", due)
	waived.PenaltyWaived = true
	waived.PenaltyWaivedReason = "calamity relief"
	penalty, _, details = ComputePenalty(waived, policy, today)
	if !penalty.IsZero() || !strings.Contains(details, "calamity relief") {
		t.Fatalf("waived bill: got (%s, %q)", penalty, details)
	}

	penalty, days, details = ComputePenalty(pendingBill("500.00", due), policy, due)
	if !penalty.IsZero() || days != 0 || !strings.Contains(details, "not yet due") {
		t.Fatalf("on due date: got (%s, %d, %q)", penalty, days, details)
	}
}

func TestComputePenaltyGraceBoundary(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	policy := percentagePolicy("10", 3, "0")
	bill := pendingBill("400.00", due)

	penalty, days, details := ComputePenalty(bill, policy, due.AddDate(0, 0, 3))
	if !penalty.IsZero() || days != 3 || !strings.Contains(details, "grace period") {
		t.Fatalf("at grace boundary: got (%s, %d, %q)", penalty, days, details)
	}

	penalty, days, _ = ComputePenalty(bill, policy, due.AddDate(0, 0, 4))
	if got, want := penalty.StringFixed(2), "40.00"; got != want {
		t.Fatalf("past grace: penalty = %s, want %s", got, want)
	}
	if days != 4 {
		t.Fatalf("days overdue = %d, want 4", days)
	}
}

func TestComputePenaltyFixedType(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	policy := &PenaltyPolicy{
		Enabled:     true,
		Type:        PenaltyFixed,
		Rate:        decimal.NewFromInt(10),
		FixedAmount: decimal.RequireFromString("75.50"),
	}

	penalty, _, details := ComputePenalty(pendingBill("1000.00", due), policy, due.AddDate(0, 0, 1))
	if got, want := penalty.StringFixed(2), "75.50"; got != want {
		t.Fatalf("fixed penalty = %s, want %s", got, want)
	}
	if !strings.Contains(details, "Fixed penalty") {
		t.Fatalf("details = %q, want fixed penalty explanation", details)
	}
}

func TestComputePenaltyCap(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	policy := percentagePolicy("25", 0, "150.00")

	// 25% of 1000 = 250, capped at 150.
	penalty, _, details := ComputePenalty(pendingBill("1000.00", due), policy, due.AddDate(0, 0, 5))
	if got, want := penalty.StringFixed(2), "150.00"; got != want {
		t.Fatalf("capped penalty = %s, want %s", got, want)
	}
	if !strings.Contains(details, "Capped from ₱250.00 to ₱150.00") {
		t.Fatalf("details = %q, want pre-cap value recorded", details)
	}
}

func TestComputePenaltyDefaultPolicy(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	// Defaults: 10%, zero grace, cap 500.
	penalty, days, _ := ComputePenalty(pendingBill("320.00", due), nil, due.AddDate(0, 0, 1))
	if got, want := penalty.StringFixed(2), "32.00"; got != want {
		t.Fatalf("default policy penalty = %s, want %s", got, want)
	}
	if days != 1 {
		t.Fatalf("days overdue = %d, want 1", days)
	}

	// Large bill hits the default 500 cap.
	penalty, _, _ = ComputePenalty(pendingBill("10000.00", due), nil, due.AddDate(0, 0, 1))
	if got, want := penalty.StringFixed(2), "500.00"; got != want {
		t.Fatalf("default cap penalty = %s, want %s", got, want)
	}
}

func TestComputePenaltyRoundsHalfUp(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	policy := percentagePolicy("10", 0, "0")

	// 10% of 100.25 = 10.025 -> 10.03 half up.
	penalty, _, _ := ComputePenalty(pendingBill("100.25", due), policy, due.AddDate(0, 0, 1))
	if got, want := penalty.StringFixed(2), "10.03"; got != want {
		t.Fatalf("rounded penalty = %s, want %s", got, want)
	}
}

func TestUpdateBillPenaltyIdempotent(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	today := due.AddDate(0, 0, 10)
	policy := percentagePolicy("10", 0, "0")
	bill := pendingBill("400.00", due)

	changed, _ := UpdateBillPenalty(bill, policy, today, false)
	if !changed {
		t.Fatal("first update should report a change")
	}
	if got, want := bill.PenaltyAmount.StringFixed(2), "40.00"; got != want {
		t.Fatalf("penalty = %s, want %s", got, want)
	}
	if bill.DaysOverdue != 10 {
		t.Fatalf("days overdue = %d, want 10", bill.DaysOverdue)
	}
	firstApplied := bill.PenaltyAppliedAt
	if firstApplied == nil {
		t.Fatal("penalty applied date not set")
	}

	changed, message := UpdateBillPenalty(bill, policy, today, false)
	if changed {
		t.Fatalf("second update with same day changed the bill: %s", message)
	}
	if bill.PenaltyAppliedAt != firstApplied {
		t.Fatal("penalty applied date must not move on repeated updates")
	}

	// A later day changes days overdue but keeps the first-applied date.
	changed, _ = UpdateBillPenalty(bill, policy, today.AddDate(0, 0, 5), false)
	if !changed || bill.DaysOverdue != 15 {
		t.Fatalf("later update: changed=%v days=%d, want true/15", changed, bill.DaysOverdue)
	}
	if !bill.PenaltyAppliedAt.Equal(*firstApplied) {
		t.Fatal("penalty applied date overwritten on later update")
	}
}

func TestUpdateBillPenaltySeniorDiscount(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	policy := percentagePolicy("10", 0, "0")
	bill := pendingBill("400.00", due)

	UpdateBillPenalty(bill, policy, due.AddDate(0, 0, 10), true)
	// 5% of the 40.00 penalty.
	if got, want := bill.SeniorCitizenDiscount.StringFixed(2), "2.00"; got != want {
		t.Fatalf("senior discount = %s, want %s", got, want)
	}
	if got, want := bill.AmountDue().StringFixed(2), "438.00"; got != want {
		t.Fatalf("amount due = %s, want %s", got, want)
	}
}

func TestUpdateBillPenaltySkipsTerminalBills(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	policy := percentagePolicy("10", 0, "0")

	paid := pendingBill("400.00", due)
	paid.Status = StatusPaid
	if changed, _ := UpdateBillPenalty(paid, policy, due.AddDate(0, 0, 10), false); changed {
		t.Fatal("paid bill must not be updated")
	}

	waived := pendingBill("400.00", due)
	waived.PenaltyWaived = true
	if changed, _ := UpdateBillPenalty(waived, policy, due.AddDate(0, 0, 10), false); changed {
		t.Fatal("waived bill must not be updated")
	}
}

func TestWaiveOneWay(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	bill := pendingBill("400.00", due)
	bill.PenaltyAmount = decimal.NewFromInt(40)

	ok, message := Waive(bill, "admin-1", "first offense", now)
	if !ok {
		t.Fatalf("waive failed: %s", message)
	}
	if !bill.PenaltyWaived || bill.PenaltyWaivedBy != "admin-1" || bill.PenaltyWaivedAt == nil {
		t.Fatal("waiver details not recorded")
	}
	if got, want := bill.PenaltyAmount.StringFixed(2), "40.00"; got != want {
		t.Fatalf("penalty amount = %s, want original %s kept for audit", got, want)
	}
	if !bill.EffectivePenalty().IsZero() {
		t.Fatalf("effective penalty = %s, want 0 after waiver", bill.EffectivePenalty())
	}

	if ok, _ := Waive(bill, "admin-2", "again", now); ok {
		t.Fatal("second waive must fail")
	}
}

func TestWaiveDropsSeniorDiscountFromAmountDue(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	bill := pendingBill("395.00", due)

	UpdateBillPenalty(bill, nil, due.AddDate(0, 0, 10), true)
	// Default 10% penalty 39.50, 5% senior discount 1.98.
	if got, want := bill.AmountDue().StringFixed(2), "432.52"; got != want {
		t.Fatalf("amount due before waive = %s, want %s", got, want)
	}

	ok, message := Waive(bill, "admin-1", "calamity relief", due.AddDate(0, 0, 11))
	if !ok {
		t.Fatalf("waive failed: %s", message)
	}
	// A waived bill collects the full charge; the discount tracked the
	// penalty and falls away with it.
	if got, want := bill.AmountDue().StringFixed(2), "395.00"; got != want {
		t.Fatalf("amount due after waive = %s, want %s", got, want)
	}
	if !bill.EffectiveSeniorDiscount().IsZero() {
		t.Fatalf("effective discount = %s, want 0 after waiver", bill.EffectiveSeniorDiscount())
	}
	if got, want := bill.SeniorCitizenDiscount.StringFixed(2), "1.98"; got != want {
		t.Fatalf("stored discount = %s, want %s kept for audit", got, want)
	}
}

func TestWaiveIneligibleBills(t *testing.T) {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 10)

	paid := pendingBill("400.00", due)
	paid.Status = StatusPaid
	paid.PenaltyAmount = decimal.NewFromInt(40)
	if ok, _ := Waive(paid, "admin-1", "", now); ok {
		t.Fatal("waive on paid bill must fail")
	}

	noPenalty := pendingBill("400.00", due)
	if ok, _ := Waive(noPenalty, "admin-1", "", now); ok {
		t.Fatal("waive with zero penalty must fail")
	}
}
