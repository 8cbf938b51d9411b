package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	billing "waterworks/internal/billing/domain"
	"waterworks/internal/notify"
	"waterworks/internal/observability/metrics"
)

// ORAllocator hands out official receipt numbers.
type ORAllocator interface {
	NextORNumber(ctx context.Context, day time.Time) (string, error)
}

// PaymentService settles bills over the counter.
type PaymentService struct {
	bills    billing.BillRepository
	payments billing.PaymentRepository
	billing  *BillingService
	or       ORAllocator
	clock    Clock
	logger   *log.Logger
	notifier notify.Notifier
}

// PaymentOption configures optional service collaborators.
type PaymentOption func(*PaymentService)

// WithPaymentNotifier announces settled payments on a webhook.
func WithPaymentNotifier(notifier notify.Notifier) PaymentOption {
	return func(s *PaymentService) {
		s.notifier = notifier
	}
}

// NewPaymentService constructs a payment service.
func NewPaymentService(
	bills billing.BillRepository,
	payments billing.PaymentRepository,
	billingService *BillingService,
	or ORAllocator,
	clock Clock,
	logger *log.Logger,
	opts ...PaymentOption,
) (*PaymentService, error) {
	if bills == nil {
		return nil, errors.New("payments: nil bill repo")
	}
	if payments == nil {
		return nil, errors.New("payments: nil payment repo")
	}
	if billingService == nil {
		return nil, errors.New("payments: nil billing service")
	}
	if or == nil {
		return nil, errors.New("payments: nil or allocator")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	service := &PaymentService{
		bills:    bills,
		payments: payments,
		billing:  billingService,
		or:       or,
		clock:    clock,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// ProcessPaymentRequest settles one bill in cash.
type ProcessPaymentRequest struct {
	BillID         string `json:"bill_id"`
	ReceivedAmount string `json:"received_amount"`
	ProcessedBy    string `json:"processed_by"`
	Remarks        string `json:"remarks"`
}

// ProcessPayment refreshes the bill's penalty, verifies the tendered cash
// covers the amount due, allocates an OR number and marks the bill paid.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*billing.Payment, error) {
	start := s.clock.Now()
	payment, err := s.processPayment(ctx, req)
	if err != nil {
		metrics.ObservePayment(metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObservePayment(metrics.ResultSuccess, time.Since(start))
	return payment, nil
}

func (s *PaymentService) processPayment(ctx context.Context, req ProcessPaymentRequest) (*billing.Payment, error) {
	received, err := parseAmount(req.ReceivedAmount)
	if err != nil {
		return nil, err
	}

	bill, err := s.bills.Get(ctx, req.BillID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billing.ErrBillNotFound
	}
	if bill.Status == billing.StatusPaid {
		return nil, billing.ErrBillAlreadyPaid
	}

	// Penalty state must be current before the amount due is checked.
	if _, err := s.billing.RefreshPenalty(ctx, bill); err != nil {
		return nil, err
	}

	amountDue := bill.AmountDue()
	if received.LessThan(amountDue) {
		return nil, billing.ErrInsufficientPayment
	}

	now := s.clock.Now()
	orNumber, err := s.or.NextORNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	payment := &billing.Payment{
		ID:                 "pay-" + uuid.NewString(),
		BillID:             bill.ID,
		OriginalBillAmount: bill.TotalAmount,
		PenaltyAmount:      bill.EffectivePenalty(),
		PenaltyWaived:      bill.PenaltyWaived,
		DaysOverdueAtPay:   bill.DaysOverdue,
		AmountPaid:         amountDue,
		ReceivedAmount:     received,
		Change:             received.Sub(amountDue),
		ORNumber:           orNumber,
		ProcessedBy:        strings.TrimSpace(req.ProcessedBy),
		Remarks:            strings.TrimSpace(req.Remarks),
		PaidAt:             now,
	}
	if err := s.payments.Save(ctx, payment); err != nil {
		return nil, err
	}

	bill.Status = billing.StatusPaid
	if err := s.bills.Save(ctx, bill); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("payment %s settled bill %s: due %s, received %s, change %s",
			payment.ORNumber, bill.ID,
			billing.FormatPeso(payment.AmountPaid),
			billing.FormatPeso(payment.ReceivedAmount),
			billing.FormatPeso(payment.Change))
	}
	if s.notifier != nil {
		// Delivery is best effort; a dead webhook must not fail the payment.
		if err := s.notifier.Notify(ctx, notify.Message{
			Title: "Payment received",
			Details: map[string]any{
				"or_number":   payment.ORNumber,
				"bill_id":     bill.ID,
				"amount_paid": payment.AmountPaid.StringFixed(2),
				"penalty":     payment.PenaltyAmount.StringFixed(2),
			},
		}); err != nil && s.logger != nil {
			s.logger.Printf("payment notification error: %v", err)
		}
	}
	return payment, nil
}

// GetPayment loads a payment by id.
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	payment, err := s.payments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, billing.ErrPaymentNotFound
	}
	return payment, nil
}

// GetPaymentForBill loads the payment that settled a bill.
func (s *PaymentService) GetPaymentForBill(ctx context.Context, billID string) (*billing.Payment, error) {
	payment, err := s.payments.GetByBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, billing.ErrPaymentNotFound
	}
	return payment, nil
}

// ListPayments lists payments received in [from, to).
func (s *PaymentService) ListPayments(ctx context.Context, from, to time.Time) ([]billing.Payment, error) {
	return s.payments.ListByPeriod(ctx, from, to)
}
