package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	billing "waterworks/internal/billing/domain"
)

type stubORNumbers struct {
	next int
}

func (s *stubORNumbers) NextORNumber(ctx context.Context, day time.Time) (string, error) {
	_ = ctx
	s.next++
	return fmt.Sprintf("OR-%s-%06d", day.Format("20060102"), s.next), nil
}

func newPaymentFixture(t *testing.T) (*billingFixture, *PaymentService) {
	t.Helper()
	f := newBillingFixture(t)
	service, err := NewPaymentService(f.bills, f.payments, f.service, &stubORNumbers{}, f.clock, nil)
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	return f, service
}

func TestPaymentService_ProcessPayment(t *testing.T) {
	f, payments := newPaymentFixture(t)
	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	payment, err := payments.ProcessPayment(context.Background(), ProcessPaymentRequest{
		BillID:         bill.ID,
		ReceivedAmount: "400",
		ProcessedBy:    "cashier-1",
	})
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if got, want := payment.AmountPaid.StringFixed(2), "395.00"; got != want {
		t.Fatalf("amount paid = %s, want %s", got, want)
	}
	if got, want := payment.Change.StringFixed(2), "5.00"; got != want {
		t.Fatalf("change = %s, want %s", got, want)
	}
	if payment.ORNumber != "OR-20250301-000001" {
		t.Fatalf("unexpected OR number %s", payment.ORNumber)
	}

	settled, err := f.bills.Get(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if settled.Status != billing.StatusPaid {
		t.Fatalf("bill status = %s, want Paid", settled.Status)
	}
}

func TestPaymentService_ProcessPaymentCollectsPenalty(t *testing.T) {
	f, payments := newPaymentFixture(t)
	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	// Pay 10 days late: 395.00 + 39.50 penalty.
	f.clock.now = time.Date(2025, time.March, 30, 8, 0, 0, 0, time.UTC)
	payment, err := payments.ProcessPayment(context.Background(), ProcessPaymentRequest{
		BillID:         bill.ID,
		ReceivedAmount: "434.50",
		ProcessedBy:    "cashier-1",
	})
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if got, want := payment.PenaltyAmount.StringFixed(2), "39.50"; got != want {
		t.Fatalf("penalty = %s, want %s", got, want)
	}
	if got, want := payment.AmountPaid.StringFixed(2), "434.50"; got != want {
		t.Fatalf("amount paid = %s, want %s", got, want)
	}
	if payment.DaysOverdueAtPay != 10 {
		t.Fatalf("days overdue = %d, want 10", payment.DaysOverdueAtPay)
	}
	if !payment.Change.IsZero() {
		t.Fatalf("change = %s, want 0", payment.Change)
	}
}

func TestPaymentService_ProcessPaymentInsufficient(t *testing.T) {
	f, payments := newPaymentFixture(t)
	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	_, err = payments.ProcessPayment(context.Background(), ProcessPaymentRequest{
		BillID:         bill.ID,
		ReceivedAmount: "394.99",
	})
	if err != billing.ErrInsufficientPayment {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
}

func TestPaymentService_ProcessPaymentTwice(t *testing.T) {
	f, payments := newPaymentFixture(t)
	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	if _, err := payments.ProcessPayment(context.Background(), ProcessPaymentRequest{
		BillID:         bill.ID,
		ReceivedAmount: "395",
	}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	_, err = payments.ProcessPayment(context.Background(), ProcessPaymentRequest{
		BillID:         bill.ID,
		ReceivedAmount: "395",
	})
	if err != billing.ErrBillAlreadyPaid {
		t.Fatalf("expected ErrBillAlreadyPaid, got %v", err)
	}
}

func TestPaymentService_ProcessPaymentBadAmount(t *testing.T) {
	_, payments := newPaymentFixture(t)
	for _, amount := range []string{"", "abc", "-10"} {
		_, err := payments.ProcessPayment(context.Background(), ProcessPaymentRequest{
			BillID:         "bill-1",
			ReceivedAmount: amount,
		})
		if err != ErrInvalidAmount {
			t.Fatalf("amount %q: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestPaymentService_PenaltySummaryAfterPayment(t *testing.T) {
	f, payments := newPaymentFixture(t)
	summarySvc, err := NewSummaryService(f.bills, f.payments, f.clock)
	if err != nil {
		t.Fatalf("new summary service: %v", err)
	}

	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	f.clock.now = time.Date(2025, time.March, 30, 8, 0, 0, 0, time.UTC)
	if _, err := payments.ProcessPayment(context.Background(), ProcessPaymentRequest{
		BillID:         bill.ID,
		ReceivedAmount: "500",
	}); err != nil {
		t.Fatalf("process payment: %v", err)
	}

	summary, err := summarySvc.PenaltySummary(context.Background(),
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got, want := summary.Paid.StringFixed(2), "39.50"; got != want {
		t.Fatalf("paid penalties = %s, want %s", got, want)
	}
	identity := summary.TotalCharged.Sub(summary.Waived).Sub(summary.Paid)
	if !summary.Outstanding.Equal(identity) {
		t.Fatalf("outstanding %s != charged - waived - paid %s", summary.Outstanding, identity)
	}
}
