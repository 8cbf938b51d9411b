package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "waterworks/internal/billing/domain"
	memoryrepo "waterworks/internal/billing/infrastructure/memory"
	registry "waterworks/internal/registry/domain"
	"waterworks/internal/settings"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type stubSettingsLoader struct {
	cfg *settings.Settings
	err error
}

func (s *stubSettingsLoader) Load(ctx context.Context) (*settings.Settings, error) {
	_ = ctx
	return s.cfg, s.err
}

type stubConsumers struct {
	data map[string]*registry.Consumer
}

func (s *stubConsumers) Get(ctx context.Context, id string) (*registry.Consumer, error) {
	_ = ctx
	return s.data[id], nil
}

type stubBillNumbers struct {
	next int
}

func (s *stubBillNumbers) NextBillNumber(ctx context.Context, period time.Time) (string, error) {
	_ = ctx
	s.next++
	return fmt.Sprintf("BILL-%s-%06d", period.Format("200601"), s.next), nil
}

type billingFixture struct {
	bills     *memoryrepo.BillRepository
	payments  *memoryrepo.PaymentRepository
	consumers *stubConsumers
	loader    *stubSettingsLoader
	clock     *fixedClock
	service   *BillingService
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	f := &billingFixture{
		bills:    memoryrepo.NewBillRepository(),
		payments: memoryrepo.NewPaymentRepository(),
		consumers: &stubConsumers{data: map[string]*registry.Consumer{
			"con-1": {
				ID:         "con-1",
				UsageClass: billing.UsageResidential,
				Status:     registry.StatusActive,
			},
			"con-senior": {
				ID:            "con-senior",
				UsageClass:    billing.UsageResidential,
				SeniorCitizen: true,
				Status:        registry.StatusActive,
			},
			"con-cut": {
				ID:         "con-cut",
				UsageClass: billing.UsageCommercial,
				Status:     registry.StatusDisconnected,
			},
		}},
		loader: &stubSettingsLoader{},
		clock:  &fixedClock{now: time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)},
	}
	service, err := NewBillingService(f.bills, f.consumers, f.loader, &stubBillNumbers{}, f.clock, nil)
	if err != nil {
		t.Fatalf("new billing service: %v", err)
	}
	f.service = service
	return f
}

func TestBillingService_CreateBill(t *testing.T) {
	f := newBillingFixture(t)

	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if got, want := bill.TotalAmount.StringFixed(2), "395.00"; got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}
	if got, want := bill.RatePerCubic.StringFixed(2), "15.80"; got != want {
		t.Fatalf("average rate = %s, want %s", got, want)
	}
	// Default cycle: billed on the 1st, due on the 20th.
	if bill.BillingPeriod.Day() != 1 || bill.DueDate.Day() != 20 {
		t.Fatalf("unexpected cycle dates: period %s due %s", bill.BillingPeriod, bill.DueDate)
	}
	if bill.Status != billing.StatusPending {
		t.Fatalf("status = %s, want Pending", bill.Status)
	}
}

func TestBillingService_CreateBillIdempotentPeriod(t *testing.T) {
	f := newBillingFixture(t)
	req := CreateBillRequest{ConsumerID: "con-1", Consumption: 10, Period: f.clock.now}

	first, err := f.service.CreateBill(context.Background(), req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	req.Consumption = 99
	second, err := f.service.CreateBill(context.Background(), req)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing bill %s, got %s", first.ID, second.ID)
	}
	if second.Consumption != 10 {
		t.Fatalf("existing bill must not be recharged, consumption = %d", second.Consumption)
	}
}

func TestBillingService_CreateBillNegativeConsumption(t *testing.T) {
	f := newBillingFixture(t)
	_, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: -3,
	})
	if err != billing.ErrNegativeConsumption {
		t.Fatalf("expected ErrNegativeConsumption, got %v", err)
	}
}

func TestBillingService_CreateBillDisconnected(t *testing.T) {
	f := newBillingFixture(t)
	_, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-cut",
		Consumption: 5,
	})
	if err != ErrConsumerInactive {
		t.Fatalf("expected ErrConsumerInactive, got %v", err)
	}
}

func TestBillingService_CreateBillCustomRates(t *testing.T) {
	f := newBillingFixture(t)
	cfg := settings.Default()
	cfg.Residential.MinimumCharge = decimal.NewFromInt(80)
	f.loader.cfg = &cfg

	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 3,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if got, want := bill.TotalAmount.StringFixed(2), "80.00"; got != want {
		t.Fatalf("total = %s, want %s", got, want)
	}
}

func TestBillingService_RefreshPenaltyMarksOverdue(t *testing.T) {
	f := newBillingFixture(t)
	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	// 10 days past the due date.
	f.clock.now = time.Date(2025, time.March, 30, 8, 0, 0, 0, time.UTC)
	changed, err := f.service.RefreshPenalty(context.Background(), bill)
	if err != nil {
		t.Fatalf("refresh penalty: %v", err)
	}
	if !changed {
		t.Fatal("expected bill to change")
	}
	if bill.Status != billing.StatusOverdue {
		t.Fatalf("status = %s, want Overdue", bill.Status)
	}
	// 10% of 395.00 by default policy.
	if got, want := bill.PenaltyAmount.StringFixed(2), "39.50"; got != want {
		t.Fatalf("penalty = %s, want %s", got, want)
	}
	if bill.DaysOverdue != 10 {
		t.Fatalf("days overdue = %d, want 10", bill.DaysOverdue)
	}
}

func TestBillingService_RefreshPenaltySeniorDiscount(t *testing.T) {
	f := newBillingFixture(t)
	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-senior",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	f.clock.now = time.Date(2025, time.March, 30, 8, 0, 0, 0, time.UTC)
	if _, err := f.service.RefreshPenalty(context.Background(), bill); err != nil {
		t.Fatalf("refresh penalty: %v", err)
	}
	// 5% of the 39.50 penalty.
	if got, want := bill.SeniorCitizenDiscount.StringFixed(2), "1.98"; got != want {
		t.Fatalf("senior discount = %s, want %s", got, want)
	}
	if got, want := bill.AmountDue().StringFixed(2), "432.52"; got != want {
		t.Fatalf("amount due = %s, want %s", got, want)
	}
}

func TestBillingService_WaivePenalty(t *testing.T) {
	f := newBillingFixture(t)
	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	f.clock.now = time.Date(2025, time.March, 30, 8, 0, 0, 0, time.UTC)
	waived, message, err := f.service.WaivePenalty(context.Background(), bill.ID, "admin", "calamity relief")
	if err != nil {
		t.Fatalf("waive: %v", err)
	}
	if !waived.PenaltyWaived {
		t.Fatal("expected waived flag")
	}
	if message != "Penalty of ₱39.50 has been waived" {
		t.Fatalf("unexpected message %q", message)
	}
	if !waived.AmountDue().Equal(waived.TotalAmount) {
		t.Fatalf("amount due %s should equal bill total %s after waive", waived.AmountDue(), waived.TotalAmount)
	}

	// A second waive is refused.
	if _, _, err := f.service.WaivePenalty(context.Background(), bill.ID, "admin", "again"); err == nil {
		t.Fatal("expected error on second waive")
	}
}

func TestBillingService_WaiveWithoutPenalty(t *testing.T) {
	f := newBillingFixture(t)
	bill, err := f.service.CreateBill(context.Background(), CreateBillRequest{
		ConsumerID:  "con-1",
		Consumption: 25,
		Period:      f.clock.now,
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if _, _, err := f.service.WaivePenalty(context.Background(), bill.ID, "admin", "nothing due"); err == nil {
		t.Fatal("expected error waiving a bill with no penalty")
	}
}
