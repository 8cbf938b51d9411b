package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	billing "waterworks/internal/billing/domain"
)

// PaymentRepository is an in-memory repository for demo/testing.
type PaymentRepository struct {
	mu   sync.RWMutex
	data map[string]*billing.Payment
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{data: make(map[string]*billing.Payment)}
}

// Get loads a payment by id.
func (r *PaymentRepository) Get(ctx context.Context, id string) (*billing.Payment, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("memory payment repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	payment := r.data[id]
	if payment == nil {
		return nil, nil
	}
	clone := *payment
	return &clone, nil
}

// GetByBill loads the payment that settled a bill.
func (r *PaymentRepository) GetByBill(ctx context.Context, billID string) (*billing.Payment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *billing.Payment
	for _, payment := range r.data {
		if payment.BillID != billID {
			continue
		}
		if latest == nil || payment.PaidAt.After(latest.PaidAt) {
			latest = payment
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

// ListByPeriod lists payments received in [from, to).
func (r *PaymentRepository) ListByPeriod(ctx context.Context, from, to time.Time) ([]billing.Payment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []billing.Payment
	for _, payment := range r.data {
		if payment.PaidAt.Before(from) || !payment.PaidAt.Before(to) {
			continue
		}
		result = append(result, *payment)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PaidAt.Before(result[j].PaidAt)
	})
	return result, nil
}

// Save persists a payment.
func (r *PaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	_ = ctx
	if payment == nil {
		return errors.New("memory payment repo: nil payment")
	}
	if payment.ID == "" {
		return errors.New("memory payment repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *payment
	r.data[payment.ID] = &clone
	return nil
}
