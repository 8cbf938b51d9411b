package application

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	billingapp "waterworks/internal/billing/application"
	billing "waterworks/internal/billing/domain"
	"waterworks/internal/observability/metrics"
	readings "waterworks/internal/readings/domain"
	registry "waterworks/internal/registry/domain"
)

// BillCreator turns confirmed consumption into a bill.
type BillCreator interface {
	CreateBill(ctx context.Context, req billingapp.CreateBillRequest) (*billing.Bill, error)
}

// ConsumerDirectory resolves consumers for reading validation.
type ConsumerDirectory interface {
	Get(ctx context.Context, id string) (*registry.Consumer, error)
}

// ReadingService runs the submit/confirm/reject workflow for meter readings.
type ReadingService struct {
	repo      readings.ReadingRepository
	consumers ConsumerDirectory
	bills     BillCreator
	clock     billingapp.Clock
	logger    *log.Logger
}

// NewReadingService constructs a reading service.
func NewReadingService(
	repo readings.ReadingRepository,
	consumers ConsumerDirectory,
	bills BillCreator,
	clock billingapp.Clock,
	logger *log.Logger,
) (*ReadingService, error) {
	if repo == nil {
		return nil, errors.New("readings: nil repo")
	}
	if consumers == nil {
		return nil, errors.New("readings: nil consumer directory")
	}
	if bills == nil {
		return nil, errors.New("readings: nil bill creator")
	}
	if clock == nil {
		clock = billingapp.SystemClock{}
	}
	return &ReadingService{
		repo:      repo,
		consumers: consumers,
		bills:     bills,
		clock:     clock,
		logger:    logger,
	}, nil
}

// SubmitRequest records a new meter reading for review.
type SubmitRequest struct {
	ConsumerID  string  `json:"consumer_id"`
	Value       int     `json:"value"`
	Source      string  `json:"source"`
	SubmittedBy string  `json:"submitted_by"`
	PhotoRef    string  `json:"photo_ref"`
	Confidence  float64 `json:"confidence"`
}

// Submit stores a pending reading. The value must be at or above the last
// confirmed register value; a cumulative meter cannot run backwards.
func (s *ReadingService) Submit(ctx context.Context, req SubmitRequest) (*readings.MeterReading, error) {
	if req.Value < 0 {
		return nil, readings.ErrNegativeReading
	}
	consumer, err := s.consumers.Get(ctx, req.ConsumerID)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, registry.ErrConsumerNotFound
	}

	now := s.clock.Now()
	previous, err := s.repo.LatestConfirmed(ctx, consumer.ID, now)
	if err != nil {
		return nil, err
	}
	if previous != nil && req.Value < previous.Value {
		return nil, readings.ErrReadingRollback
	}

	source := readings.ReadingSource(req.Source)
	switch source {
	case readings.SourceManual, readings.SourceMobile, readings.SourceAI, readings.SourceSmartMeter:
	case "":
		source = readings.SourceManual
	default:
		return nil, errors.New("readings: unknown source")
	}

	reading := &readings.MeterReading{
		ID:          "read-" + uuid.NewString(),
		ConsumerID:  consumer.ID,
		Value:       req.Value,
		ReadAt:      now,
		Source:      source,
		Status:      readings.StatusPending,
		SubmittedBy: req.SubmittedBy,
		PhotoRef:    req.PhotoRef,
		Confidence:  req.Confidence,
		CreatedAt:   now,
	}
	if err := s.repo.Save(ctx, reading); err != nil {
		return nil, err
	}
	metrics.IncReadingEvent("submitted")
	if s.logger != nil {
		s.logger.Printf("reading %s submitted for consumer %s: %d (%s)",
			reading.ID, consumer.ID, reading.Value, reading.Source)
	}
	return reading, nil
}

// ConfirmResult is the outcome of confirming a reading.
type ConfirmResult struct {
	Reading     *readings.MeterReading
	Bill        *billing.Bill
	Consumption int
}

// Confirm accepts a pending reading and generates the bill for the derived
// consumption. The first confirmed reading for a consumer bills the full
// register value.
func (s *ReadingService) Confirm(ctx context.Context, id, reviewer string) (*ConfirmResult, error) {
	reading, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reading == nil {
		return nil, readings.ErrReadingNotFound
	}

	previous, err := s.repo.LatestConfirmed(ctx, reading.ConsumerID, reading.ReadAt)
	if err != nil {
		return nil, err
	}
	consumption := reading.Value
	if previous != nil {
		consumption = reading.Value - previous.Value
	}
	if consumption < 0 {
		return nil, readings.ErrReadingRollback
	}

	if err := reading.Confirm(reviewer, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, reading); err != nil {
		return nil, err
	}
	metrics.IncReadingEvent("confirmed")

	bill, err := s.bills.CreateBill(ctx, billingapp.CreateBillRequest{
		ConsumerID:  reading.ConsumerID,
		Consumption: consumption,
		Period:      reading.ReadAt,
	})
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("reading %s confirmed by %s: %d m3 -> bill %s",
			reading.ID, reviewer, consumption, bill.ID)
	}
	return &ConfirmResult{Reading: reading, Bill: bill, Consumption: consumption}, nil
}

// Reject declines a pending reading with a note.
func (s *ReadingService) Reject(ctx context.Context, id, reviewer, note string) (*readings.MeterReading, error) {
	reading, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reading == nil {
		return nil, readings.ErrReadingNotFound
	}
	if err := reading.Reject(reviewer, note, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, reading); err != nil {
		return nil, err
	}
	metrics.IncReadingEvent("rejected")
	return reading, nil
}

// ListPending lists readings awaiting review, oldest first.
func (s *ReadingService) ListPending(ctx context.Context, limit int) ([]readings.MeterReading, error) {
	return s.repo.ListByStatus(ctx, readings.StatusPending, limit)
}

// ListByConsumer lists a consumer's readings, newest first.
func (s *ReadingService) ListByConsumer(ctx context.Context, consumerID string, limit int) ([]readings.MeterReading, error) {
	return s.repo.ListByConsumer(ctx, consumerID, limit)
}
