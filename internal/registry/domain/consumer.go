package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	billing "waterworks/internal/billing/domain"
)

// ConsumerStatus tracks a service connection state.
type ConsumerStatus string

const (
	StatusActive       ConsumerStatus = "Active"
	StatusDisconnected ConsumerStatus = "Disconnected"
)

var (
	ErrConsumerNotFound  = errors.New("registry: consumer not found")
	ErrDuplicateAccount  = errors.New("registry: duplicate account number")
	ErrAlreadyActive     = errors.New("registry: consumer already active")
	ErrAlreadyCutOff     = errors.New("registry: consumer already disconnected")
	ErrInvalidUsageClass = errors.New("registry: invalid usage class")
)

// Consumer is a billed water service connection.
type Consumer struct {
	ID            string
	AccountNumber string
	FirstName     string
	LastName      string
	Address       string
	Phone         string
	MeterSerial   string
	UsageClass    billing.UsageClass
	SeniorCitizen bool
	Status        ConsumerStatus
	ConnectedAt   time.Time
	CutOffAt      *time.Time
	CutOffReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FullName joins first and last names for display and receipts.
func (c *Consumer) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Validate checks consumer invariants.
func (c *Consumer) Validate() error {
	if c == nil {
		return errors.New("registry: nil consumer")
	}
	if strings.TrimSpace(c.FirstName) == "" && strings.TrimSpace(c.LastName) == "" {
		return errors.New("registry: empty name")
	}
	if strings.TrimSpace(c.Address) == "" {
		return errors.New("registry: empty address")
	}
	if _, ok := billing.NormalizeUsageClass(string(c.UsageClass)); !ok {
		return ErrInvalidUsageClass
	}
	return nil
}

// Active reports whether the connection is billable.
func (c *Consumer) Active() bool {
	return c != nil && c.Status == StatusActive
}

// Disconnect cuts off service. Returns false when already cut off.
func (c *Consumer) Disconnect(now time.Time, reason string) bool {
	if c == nil || c.Status == StatusDisconnected {
		return false
	}
	at := now.UTC()
	c.Status = StatusDisconnected
	c.CutOffAt = &at
	c.CutOffReason = strings.TrimSpace(reason)
	c.UpdatedAt = at
	return true
}

// Reconnect restores service. Returns false when already active.
func (c *Consumer) Reconnect(now time.Time) bool {
	if c == nil || c.Status == StatusActive {
		return false
	}
	c.Status = StatusActive
	c.CutOffAt = nil
	c.CutOffReason = ""
	c.UpdatedAt = now.UTC()
	return true
}

// ConsumerRepository manages consumer persistence.
type ConsumerRepository interface {
	Get(ctx context.Context, id string) (*Consumer, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*Consumer, error)
	GetByMeterSerial(ctx context.Context, meterSerial string) (*Consumer, error)
	List(ctx context.Context, filter ListFilter) ([]Consumer, error)
	Save(ctx context.Context, consumer *Consumer) error
}

// ListFilter narrows consumer listings.
type ListFilter struct {
	Search     string
	UsageClass billing.UsageClass
	Status     ConsumerStatus
	Limit      int
	Offset     int
}
