package http

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "waterworks/internal/billing/domain"
)

func overdueSeniorBill() *billing.Bill {
	due := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	charge := billing.ComputeBill(25, billing.UsageResidential, nil)
	return &billing.Bill{
		ID:                    "BILL-202608-000001",
		ConsumerID:            "con-1",
		BillingPeriod:         time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		DueDate:               due,
		Consumption:           25,
		RatePerCubic:          charge.AverageRate,
		TotalAmount:           charge.Total,
		Breakdown:             charge.Breakdown,
		PenaltyAmount:         decimal.RequireFromString("39.50"),
		DaysOverdue:           10,
		SeniorCitizenDiscount: decimal.RequireFromString("1.98"),
		Status:                billing.StatusOverdue,
	}
}

func TestBreakdownPayloadItemizesDueAmounts(t *testing.T) {
	bill := overdueSeniorBill()
	payload := toBreakdownPayload(bill, "Percentage penalty")

	if payload.Consumption != 25 || payload.UsageClass != "Residential" {
		t.Fatalf("header = %d/%s, want 25/Residential", payload.Consumption, payload.UsageClass)
	}
	if got, want := payload.Total, "395.00"; got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}
	if got, want := payload.PenaltyAmount, "39.50"; got != want {
		t.Fatalf("penalty = %s, want %s", got, want)
	}
	if payload.DaysOverdue != 10 {
		t.Fatalf("days overdue = %d, want 10", payload.DaysOverdue)
	}
	if got, want := payload.SeniorDisc, "1.98"; got != want {
		t.Fatalf("discount = %s, want %s", got, want)
	}
	if got, want := payload.AmountDue, "432.52"; got != want {
		t.Fatalf("amount due = %s, want %s", got, want)
	}
	if len(payload.Tiers) != 5 {
		t.Fatalf("expected 5 tier lines, got %d", len(payload.Tiers))
	}
	if payload.Penalty != "Percentage penalty" {
		t.Fatalf("explanation = %q", payload.Penalty)
	}
}

func TestBreakdownPayloadWaivedBill(t *testing.T) {
	bill := overdueSeniorBill()
	bill.PenaltyWaived = true

	payload := toBreakdownPayload(bill, "Penalty waived: calamity relief")
	if got, want := payload.PenaltyAmount, "0.00"; got != want {
		t.Fatalf("waived penalty = %s, want %s", got, want)
	}
	if got, want := payload.SeniorDisc, "0.00"; got != want {
		t.Fatalf("waived discount = %s, want %s", got, want)
	}
	if got, want := payload.AmountDue, "395.00"; got != want {
		t.Fatalf("amount due after waive = %s, want full charge %s", got, want)
	}
}
