package application

import (
	"context"
	"errors"
	"time"

	billing "waterworks/internal/billing/domain"
)

// SummaryService aggregates penalty figures for the admin dashboard.
type SummaryService struct {
	bills    billing.BillRepository
	payments billing.PaymentRepository
	clock    Clock
}

// NewSummaryService constructs a summary service.
func NewSummaryService(bills billing.BillRepository, payments billing.PaymentRepository, clock Clock) (*SummaryService, error) {
	if bills == nil {
		return nil, errors.New("summary: nil bill repo")
	}
	if payments == nil {
		return nil, errors.New("summary: nil payment repo")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SummaryService{bills: bills, payments: payments, clock: clock}, nil
}

// PenaltySummary totals penalties charged, waived, collected and outstanding
// across unpaid bills and the payments received in [from, to).
func (s *SummaryService) PenaltySummary(ctx context.Context, from, to time.Time) (billing.PenaltySummary, error) {
	bills, err := s.bills.ListUnpaid(ctx)
	if err != nil {
		return billing.PenaltySummary{}, err
	}
	payments, err := s.payments.ListByPeriod(ctx, from, to)
	if err != nil {
		return billing.PenaltySummary{}, err
	}
	return billing.SummarizePenalties(bills, payments, s.clock.Now()), nil
}

// ConsumerPenaltySummary totals penalty figures across one consumer's full
// bill and payment history.
func (s *SummaryService) ConsumerPenaltySummary(ctx context.Context, consumerID string) (billing.PenaltySummary, error) {
	bills, err := s.bills.ListByConsumer(ctx, consumerID, 0)
	if err != nil {
		return billing.PenaltySummary{}, err
	}
	var payments []billing.Payment
	for i := range bills {
		payment, err := s.payments.GetByBill(ctx, bills[i].ID)
		if err != nil {
			return billing.PenaltySummary{}, err
		}
		if payment != nil {
			payments = append(payments, *payment)
		}
	}
	return billing.SummarizePenalties(bills, payments, s.clock.Now()), nil
}
