package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	registry "waterworks/internal/registry/domain"
)

// ConsumerRepository is an in-memory repository for demo/testing.
type ConsumerRepository struct {
	mu   sync.RWMutex
	data map[string]*registry.Consumer
}

// NewConsumerRepository constructs a repository.
func NewConsumerRepository() *ConsumerRepository {
	return &ConsumerRepository{data: make(map[string]*registry.Consumer)}
}

// Get loads a consumer by id.
func (r *ConsumerRepository) Get(ctx context.Context, id string) (*registry.Consumer, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("memory consumer repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	consumer := r.data[id]
	if consumer == nil {
		return nil, nil
	}
	clone := *consumer
	return &clone, nil
}

// GetByAccountNumber loads a consumer by account number.
func (r *ConsumerRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*registry.Consumer, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, consumer := range r.data {
		if consumer.AccountNumber == accountNumber {
			clone := *consumer
			return &clone, nil
		}
	}
	return nil, nil
}

// GetByMeterSerial loads the consumer a meter is installed at.
func (r *ConsumerRepository) GetByMeterSerial(ctx context.Context, meterSerial string) (*registry.Consumer, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, consumer := range r.data {
		if consumer.MeterSerial != "" && consumer.MeterSerial == meterSerial {
			clone := *consumer
			return &clone, nil
		}
	}
	return nil, nil
}

// List returns consumers matching the filter.
func (r *ConsumerRepository) List(ctx context.Context, filter registry.ListFilter) ([]registry.Consumer, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var result []registry.Consumer
	for _, consumer := range r.data {
		if filter.UsageClass != "" && consumer.UsageClass != filter.UsageClass {
			continue
		}
		if filter.Status != "" && consumer.Status != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(consumer, search) {
			continue
		}
		result = append(result, *consumer)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Save persists a consumer.
func (r *ConsumerRepository) Save(ctx context.Context, consumer *registry.Consumer) error {
	_ = ctx
	if consumer == nil {
		return errors.New("memory consumer repo: nil consumer")
	}
	if consumer.ID == "" {
		return errors.New("memory consumer repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *consumer
	r.data[consumer.ID] = &clone
	return nil
}

func matchesSearch(consumer *registry.Consumer, search string) bool {
	return strings.Contains(strings.ToLower(consumer.FirstName), search) ||
		strings.Contains(strings.ToLower(consumer.LastName), search) ||
		strings.Contains(strings.ToLower(consumer.AccountNumber), search) ||
		strings.Contains(strings.ToLower(consumer.Address), search)
}
