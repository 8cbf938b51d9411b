package application

import (
	"context"
	"testing"
	"time"

	billingapp "waterworks/internal/billing/application"
	billing "waterworks/internal/billing/domain"
	readings "waterworks/internal/readings/domain"
	memoryrepo "waterworks/internal/readings/infrastructure/memory"
	registry "waterworks/internal/registry/domain"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type stubConsumers struct {
	data map[string]*registry.Consumer
}

func (s *stubConsumers) Get(ctx context.Context, id string) (*registry.Consumer, error) {
	_ = ctx
	return s.data[id], nil
}

type stubBillCreator struct {
	requests []billingapp.CreateBillRequest
}

func (s *stubBillCreator) CreateBill(ctx context.Context, req billingapp.CreateBillRequest) (*billing.Bill, error) {
	_ = ctx
	s.requests = append(s.requests, req)
	return &billing.Bill{ID: "bill-1", ConsumerID: req.ConsumerID, Consumption: req.Consumption}, nil
}

type readingFixture struct {
	repo    *memoryrepo.ReadingRepository
	bills   *stubBillCreator
	clock   *fixedClock
	service *ReadingService
}

func newReadingFixture(t *testing.T) *readingFixture {
	t.Helper()
	f := &readingFixture{
		repo:  memoryrepo.NewReadingRepository(),
		bills: &stubBillCreator{},
		clock: &fixedClock{now: time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC)},
	}
	consumers := &stubConsumers{data: map[string]*registry.Consumer{
		"con-1": {ID: "con-1", UsageClass: billing.UsageResidential, Status: registry.StatusActive},
	}}
	service, err := NewReadingService(f.repo, consumers, f.bills, f.clock, nil)
	if err != nil {
		t.Fatalf("new reading service: %v", err)
	}
	f.service = service
	return f
}

func TestReadingService_SubmitAndConfirmFirstReading(t *testing.T) {
	f := newReadingFixture(t)

	reading, err := f.service.Submit(context.Background(), SubmitRequest{
		ConsumerID:  "con-1",
		Value:       120,
		SubmittedBy: "reader-1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if reading.Status != readings.StatusPending {
		t.Fatalf("status = %s, want pending", reading.Status)
	}
	if reading.Source != readings.SourceManual {
		t.Fatalf("source = %s, want manual", reading.Source)
	}

	result, err := f.service.Confirm(context.Background(), reading.ID, "cashier-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// First confirmed reading bills the full register value.
	if result.Consumption != 120 {
		t.Fatalf("consumption = %d, want 120", result.Consumption)
	}
	if result.Reading.Status != readings.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", result.Reading.Status)
	}
	if len(f.bills.requests) != 1 {
		t.Fatalf("expected one bill request, got %d", len(f.bills.requests))
	}
}

func TestReadingService_ConfirmDerivesConsumption(t *testing.T) {
	f := newReadingFixture(t)

	first, err := f.service.Submit(context.Background(), SubmitRequest{ConsumerID: "con-1", Value: 100})
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	if _, err := f.service.Confirm(context.Background(), first.ID, "cashier-1"); err != nil {
		t.Fatalf("confirm first: %v", err)
	}

	f.clock.now = f.clock.now.AddDate(0, 1, 0)
	second, err := f.service.Submit(context.Background(), SubmitRequest{ConsumerID: "con-1", Value: 125})
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	result, err := f.service.Confirm(context.Background(), second.ID, "cashier-1")
	if err != nil {
		t.Fatalf("confirm second: %v", err)
	}
	if result.Consumption != 25 {
		t.Fatalf("consumption = %d, want 25", result.Consumption)
	}
}

func TestReadingService_SubmitRollbackRejected(t *testing.T) {
	f := newReadingFixture(t)

	first, err := f.service.Submit(context.Background(), SubmitRequest{ConsumerID: "con-1", Value: 100})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.service.Confirm(context.Background(), first.ID, "cashier-1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	f.clock.now = f.clock.now.AddDate(0, 1, 0)
	_, err = f.service.Submit(context.Background(), SubmitRequest{ConsumerID: "con-1", Value: 90})
	if err != readings.ErrReadingRollback {
		t.Fatalf("expected ErrReadingRollback, got %v", err)
	}
}

func TestReadingService_SubmitUnknownConsumer(t *testing.T) {
	f := newReadingFixture(t)
	_, err := f.service.Submit(context.Background(), SubmitRequest{ConsumerID: "con-x", Value: 10})
	if err != registry.ErrConsumerNotFound {
		t.Fatalf("expected ErrConsumerNotFound, got %v", err)
	}
}

func TestReadingService_Reject(t *testing.T) {
	f := newReadingFixture(t)
	reading, err := f.service.Submit(context.Background(), SubmitRequest{ConsumerID: "con-1", Value: 50})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	rejected, err := f.service.Reject(context.Background(), reading.ID, "cashier-1", "blurry photo")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != readings.StatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if rejected.RejectNote != "blurry photo" {
		t.Fatalf("note = %q", rejected.RejectNote)
	}
	if len(f.bills.requests) != 0 {
		t.Fatal("rejected reading must not create a bill")
	}

	// Terminal states cannot be re-reviewed.
	if _, err := f.service.Confirm(context.Background(), reading.ID, "cashier-1"); err != readings.ErrReadingNotPending {
		t.Fatalf("expected ErrReadingNotPending, got %v", err)
	}
}

func TestReadingService_ListPending(t *testing.T) {
	f := newReadingFixture(t)
	for _, value := range []int{10, 20} {
		if _, err := f.service.Submit(context.Background(), SubmitRequest{ConsumerID: "con-1", Value: value}); err != nil {
			t.Fatalf("submit: %v", err)
		}
		f.clock.now = f.clock.now.Add(time.Hour)
	}

	pending, err := f.service.ListPending(context.Background(), 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Value != 10 {
		t.Fatalf("expected oldest first, got value %d", pending[0].Value)
	}
}
