package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the back office.
const (
	ActionBillCreated      = "bill_created"
	ActionPaymentProcessed = "payment_processed"
	ActionPenaltyWaived    = "penalty_waived"
	ActionPenaltySweep     = "penalty_sweep"
	ActionReadingConfirmed = "reading_confirmed"
	ActionReadingRejected  = "reading_rejected"
	ActionConsumerCreated  = "consumer_created"
	ActionConsumerUpdated  = "consumer_updated"
	ActionSettingsUpdated  = "system_settings_updated"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	ConsumerID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
