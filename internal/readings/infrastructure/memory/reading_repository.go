package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	readings "waterworks/internal/readings/domain"
)

// ReadingRepository is an in-memory repository for demo/testing.
type ReadingRepository struct {
	mu   sync.RWMutex
	data map[string]*readings.MeterReading
}

// NewReadingRepository constructs a repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{data: make(map[string]*readings.MeterReading)}
}

// Get loads a reading by id.
func (r *ReadingRepository) Get(ctx context.Context, id string) (*readings.MeterReading, error) {
	_ = ctx
	if id == "" {
		return nil, errors.New("memory reading repo: empty id")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	reading := r.data[id]
	if reading == nil {
		return nil, nil
	}
	clone := *reading
	return &clone, nil
}

// LatestConfirmed returns the most recent confirmed reading before a time.
func (r *ReadingRepository) LatestConfirmed(ctx context.Context, consumerID string, before time.Time) (*readings.MeterReading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *readings.MeterReading
	for _, reading := range r.data {
		if reading.ConsumerID != consumerID || reading.Status != readings.StatusConfirmed {
			continue
		}
		if !reading.ReadAt.Before(before) {
			continue
		}
		if latest == nil || reading.ReadAt.After(latest.ReadAt) {
			latest = reading
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

// ListByStatus lists readings with a given status, oldest first.
func (r *ReadingRepository) ListByStatus(ctx context.Context, status readings.ReadingStatus, limit int) ([]readings.MeterReading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []readings.MeterReading
	for _, reading := range r.data {
		if reading.Status == status {
			result = append(result, *reading)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReadAt.Before(result[j].ReadAt)
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// ListByConsumer lists a consumer's readings, newest first.
func (r *ReadingRepository) ListByConsumer(ctx context.Context, consumerID string, limit int) ([]readings.MeterReading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []readings.MeterReading
	for _, reading := range r.data {
		if reading.ConsumerID == consumerID {
			result = append(result, *reading)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReadAt.After(result[j].ReadAt)
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Save persists a reading.
func (r *ReadingRepository) Save(ctx context.Context, reading *readings.MeterReading) error {
	_ = ctx
	if reading == nil {
		return errors.New("memory reading repo: nil reading")
	}
	if reading.ID == "" {
		return errors.New("memory reading repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *reading
	r.data[reading.ID] = &clone
	return nil
}
