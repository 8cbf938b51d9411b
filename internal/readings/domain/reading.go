package readings

import (
	"context"
	"errors"
	"time"
)

// ReadingStatus tracks the confirmation lifecycle of a meter reading.
type ReadingStatus string

const (
	StatusPending   ReadingStatus = "pending"
	StatusConfirmed ReadingStatus = "confirmed"
	StatusRejected  ReadingStatus = "rejected"
)

// ReadingSource records how a reading entered the system.
type ReadingSource string

const (
	SourceManual     ReadingSource = "manual"
	SourceMobile     ReadingSource = "mobile"
	SourceAI         ReadingSource = "ai"
	SourceSmartMeter ReadingSource = "smart_meter"
)

var (
	ErrReadingNotFound   = errors.New("readings: reading not found")
	ErrReadingNotPending = errors.New("readings: reading is not pending")
	ErrNegativeReading   = errors.New("readings: reading value cannot be negative")
	ErrReadingRollback   = errors.New("readings: reading is below previous confirmed value")
)

// MeterReading is a cumulative meter register value captured for a
// consumer during a reading period.
type MeterReading struct {
	ID          string
	ConsumerID  string
	Value       int
	ReadAt      time.Time
	Source      ReadingSource
	Status      ReadingStatus
	SubmittedBy string
	ReviewedBy  string
	ReviewedAt  *time.Time
	RejectNote  string
	PhotoRef    string
	Confidence  float64
	CreatedAt   time.Time
}

// Validate checks reading invariants.
func (m *MeterReading) Validate() error {
	if m == nil {
		return errors.New("readings: nil reading")
	}
	if m.ConsumerID == "" {
		return errors.New("readings: empty consumer id")
	}
	if m.Value < 0 {
		return ErrNegativeReading
	}
	return nil
}

// Confirm marks a pending reading as confirmed.
func (m *MeterReading) Confirm(reviewer string, now time.Time) error {
	if m.Status != StatusPending {
		return ErrReadingNotPending
	}
	at := now.UTC()
	m.Status = StatusConfirmed
	m.ReviewedBy = reviewer
	m.ReviewedAt = &at
	return nil
}

// Reject marks a pending reading as rejected with a note.
func (m *MeterReading) Reject(reviewer, note string, now time.Time) error {
	if m.Status != StatusPending {
		return ErrReadingNotPending
	}
	at := now.UTC()
	m.Status = StatusRejected
	m.ReviewedBy = reviewer
	m.ReviewedAt = &at
	m.RejectNote = note
	return nil
}

// ReadingRepository manages meter reading persistence.
type ReadingRepository interface {
	Get(ctx context.Context, id string) (*MeterReading, error)
	LatestConfirmed(ctx context.Context, consumerID string, before time.Time) (*MeterReading, error)
	ListByStatus(ctx context.Context, status ReadingStatus, limit int) ([]MeterReading, error)
	ListByConsumer(ctx context.Context, consumerID string, limit int) ([]MeterReading, error)
	Save(ctx context.Context, reading *MeterReading) error
}
