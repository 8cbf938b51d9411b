package billing

import (
	"context"
	"time"
)

// BillRepository manages bill persistence.
type BillRepository interface {
	Get(ctx context.Context, id string) (*Bill, error)
	GetByConsumerPeriod(ctx context.Context, consumerID string, period time.Time) (*Bill, error)
	ListByConsumer(ctx context.Context, consumerID string, limit int) ([]Bill, error)
	ListUnpaid(ctx context.Context) ([]Bill, error)
	ListOverdue(ctx context.Context, today time.Time) ([]Bill, error)
	Save(ctx context.Context, bill *Bill) error
}

// PaymentRepository manages payment persistence.
type PaymentRepository interface {
	Get(ctx context.Context, id string) (*Payment, error)
	GetByBill(ctx context.Context, billID string) (*Payment, error)
	ListByPeriod(ctx context.Context, from, to time.Time) ([]Payment, error)
	Save(ctx context.Context, payment *Payment) error
}
