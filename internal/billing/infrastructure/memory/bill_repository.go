package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	billing "waterworks/internal/billing/domain"
)

// BillRepository is an in-memory repository for demo/testing.
type BillRepository struct {
	mu   sync.RWMutex
	data map[string]*billing.Bill
}

// NewBillRepository constructs a repository.
func NewBillRepository() *BillRepository {
	return &BillRepository{data: make(map[string]*billing.Bill)}
}

// Get loads a bill by id.
func (r *BillRepository) Get(ctx context.Context, id string) (*billing.Bill, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("memory bill repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	bill := r.data[id]
	if bill == nil {
		return nil, nil
	}
	clone := *bill
	return &clone, nil
}

// GetByConsumerPeriod loads the bill for a consumer's billing period.
func (r *BillRepository) GetByConsumerPeriod(ctx context.Context, consumerID string, period time.Time) (*billing.Bill, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, bill := range r.data {
		if bill.ConsumerID == consumerID && bill.BillingPeriod.Equal(period) {
			clone := *bill
			return &clone, nil
		}
	}
	return nil, nil
}

// ListByConsumer lists a consumer's bills, newest period first.
func (r *BillRepository) ListByConsumer(ctx context.Context, consumerID string, limit int) ([]billing.Bill, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []billing.Bill
	for _, bill := range r.data {
		if bill.ConsumerID == consumerID {
			result = append(result, *bill)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BillingPeriod.After(result[j].BillingPeriod)
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// ListUnpaid lists all bills that are not paid.
func (r *BillRepository) ListUnpaid(ctx context.Context) ([]billing.Bill, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []billing.Bill
	for _, bill := range r.data {
		if bill.Status != billing.StatusPaid {
			result = append(result, *bill)
		}
	}
	sortByDueDate(result)
	return result, nil
}

// ListOverdue lists unpaid bills past their due date.
func (r *BillRepository) ListOverdue(ctx context.Context, today time.Time) ([]billing.Bill, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []billing.Bill
	for _, bill := range r.data {
		if bill.IsOverdue(today) {
			result = append(result, *bill)
		}
	}
	sortByDueDate(result)
	return result, nil
}

// Save persists a bill.
func (r *BillRepository) Save(ctx context.Context, bill *billing.Bill) error {
	_ = ctx
	if bill == nil {
		return billing.ErrNilBill
	}
	if bill.ID == "" {
		return errors.New("memory bill repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *bill
	r.data[bill.ID] = &clone
	return nil
}

func sortByDueDate(bills []billing.Bill) {
	sort.Slice(bills, func(i, j int) bool {
		return bills[i].DueDate.Before(bills[j].DueDate)
	})
}
