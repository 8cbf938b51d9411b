package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	billing "waterworks/internal/billing/domain"
	registry "waterworks/internal/registry/domain"
)

// AccountNumberAllocator hands out consumer account numbers.
type AccountNumberAllocator interface {
	NextAccountNumber(ctx context.Context) (string, error)
}

// CreateConsumerRequest registers a new service connection.
type CreateConsumerRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	MeterSerial   string `json:"meter_serial"`
	UsageClass    string `json:"usage_class"`
	SeniorCitizen bool   `json:"senior_citizen"`
}

// UpdateConsumerRequest edits an existing consumer record.
type UpdateConsumerRequest struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Address       *string `json:"address"`
	Phone         *string `json:"phone"`
	MeterSerial   *string `json:"meter_serial"`
	UsageClass    *string `json:"usage_class"`
	SeniorCitizen *bool   `json:"senior_citizen"`
}

// ConsumerService manages the consumer registry.
type ConsumerService struct {
	repo      registry.ConsumerRepository
	allocator AccountNumberAllocator
}

// NewConsumerService constructs a consumer service.
func NewConsumerService(repo registry.ConsumerRepository, allocator AccountNumberAllocator) (*ConsumerService, error) {
	if repo == nil {
		return nil, errors.New("registry: nil repo")
	}
	if allocator == nil {
		return nil, errors.New("registry: nil allocator")
	}
	return &ConsumerService{repo: repo, allocator: allocator}, nil
}

// Create registers a consumer and assigns an account number.
func (s *ConsumerService) Create(ctx context.Context, req CreateConsumerRequest) (*registry.Consumer, error) {
	usageClass, ok := billing.NormalizeUsageClass(req.UsageClass)
	if !ok {
		return nil, registry.ErrInvalidUsageClass
	}
	accountNumber, err := s.allocator.NextAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	consumer := &registry.Consumer{
		ID:            "con-" + uuid.NewString(),
		AccountNumber: accountNumber,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Address:       strings.TrimSpace(req.Address),
		Phone:         strings.TrimSpace(req.Phone),
		MeterSerial:   strings.TrimSpace(req.MeterSerial),
		UsageClass:    usageClass,
		SeniorCitizen: req.SeniorCitizen,
		Status:        registry.StatusActive,
		ConnectedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := consumer.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, consumer); err != nil {
		return nil, err
	}
	return consumer, nil
}

// Update applies partial edits to a consumer.
func (s *ConsumerService) Update(ctx context.Context, id string, req UpdateConsumerRequest) (*registry.Consumer, error) {
	consumer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, registry.ErrConsumerNotFound
	}

	if req.FirstName != nil {
		consumer.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		consumer.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Address != nil {
		consumer.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		consumer.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.MeterSerial != nil {
		consumer.MeterSerial = strings.TrimSpace(*req.MeterSerial)
	}
	if req.UsageClass != nil {
		usageClass, ok := billing.NormalizeUsageClass(*req.UsageClass)
		if !ok {
			return nil, registry.ErrInvalidUsageClass
		}
		consumer.UsageClass = usageClass
	}
	if req.SeniorCitizen != nil {
		consumer.SeniorCitizen = *req.SeniorCitizen
	}

	if err := consumer.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, consumer); err != nil {
		return nil, err
	}
	return consumer, nil
}

// Get loads one consumer.
func (s *ConsumerService) Get(ctx context.Context, id string) (*registry.Consumer, error) {
	consumer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, registry.ErrConsumerNotFound
	}
	return consumer, nil
}

// GetByMeterSerial resolves the consumer a smart meter reports for.
func (s *ConsumerService) GetByMeterSerial(ctx context.Context, meterSerial string) (*registry.Consumer, error) {
	consumer, err := s.repo.GetByMeterSerial(ctx, meterSerial)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, registry.ErrConsumerNotFound
	}
	return consumer, nil
}

// List returns consumers matching a filter.
func (s *ConsumerService) List(ctx context.Context, filter registry.ListFilter) ([]registry.Consumer, error) {
	return s.repo.List(ctx, filter)
}

// Disconnect cuts off a consumer's service connection.
func (s *ConsumerService) Disconnect(ctx context.Context, id, reason string) (*registry.Consumer, error) {
	consumer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, registry.ErrConsumerNotFound
	}
	if !consumer.Disconnect(time.Now().UTC(), reason) {
		return nil, registry.ErrAlreadyCutOff
	}
	if err := s.repo.Save(ctx, consumer); err != nil {
		return nil, err
	}
	return consumer, nil
}

// Reconnect restores a consumer's service connection.
func (s *ConsumerService) Reconnect(ctx context.Context, id string) (*registry.Consumer, error) {
	consumer, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, registry.ErrConsumerNotFound
	}
	if !consumer.Reconnect(time.Now().UTC()) {
		return nil, registry.ErrAlreadyActive
	}
	if err := s.repo.Save(ctx, consumer); err != nil {
		return nil, err
	}
	return consumer, nil
}
