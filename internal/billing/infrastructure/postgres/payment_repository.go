package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	billing "waterworks/internal/billing/domain"
)

const defaultPaymentsTable = "payments"

// PaymentRepository is a Postgres implementation for payments.
type PaymentRepository struct {
	db    *sql.DB
	table string
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository(db *sql.DB, opts ...PaymentOption) *PaymentRepository {
	repo := &PaymentRepository{db: db, table: defaultPaymentsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// PaymentOption configures the repository.
type PaymentOption func(*PaymentRepository)

// WithPaymentsTable overrides the default table name.
func WithPaymentsTable(table string) PaymentOption {
	return func(repo *PaymentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const paymentColumns = `id, bill_id, original_bill_amount, penalty_amount, penalty_waived,
	days_overdue_at_pay, amount_paid, received_amount, change_given,
	or_number, processed_by, remarks, paid_at`

// Get loads a payment by id.
func (r *PaymentRepository) Get(ctx context.Context, id string) (*billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	if id == "" {
		return nil, errors.New("payment repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, paymentColumns, r.table)
	return scanPayment(r.db.QueryRowContext(ctx, query, id))
}

// GetByBill loads the payment that settled a bill.
func (r *PaymentRepository) GetByBill(ctx context.Context, billID string) (*billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	if billID == "" {
		return nil, errors.New("payment repo: empty bill id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE bill_id = $1
ORDER BY paid_at DESC
LIMIT 1`, paymentColumns, r.table)
	return scanPayment(r.db.QueryRowContext(ctx, query, billID))
}

// ListByPeriod lists payments received in [from, to).
func (r *PaymentRepository) ListByPeriod(ctx context.Context, from, to time.Time) ([]billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE paid_at >= $1 AND paid_at < $2
ORDER BY paid_at ASC`, paymentColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			result = append(result, *payment)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save inserts a payment. Payments are immutable once recorded.
func (r *PaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	if r == nil || r.db == nil {
		return errors.New("payment repo: nil db")
	}
	if payment == nil {
		return errors.New("payment repo: nil payment")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, bill_id, original_bill_amount, penalty_amount, penalty_waived,
	days_overdue_at_pay, amount_paid, received_amount, change_given,
	or_number, processed_by, remarks, paid_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.BillID,
		payment.OriginalBillAmount,
		payment.PenaltyAmount,
		payment.PenaltyWaived,
		payment.DaysOverdueAtPay,
		payment.AmountPaid,
		payment.ReceivedAmount,
		payment.Change,
		payment.ORNumber,
		payment.ProcessedBy,
		payment.Remarks,
		payment.PaidAt.UTC(),
	)
	return err
}

func scanPayment(row rowScanner) (*billing.Payment, error) {
	var payment billing.Payment
	var remarks sql.NullString
	err := row.Scan(
		&payment.ID,
		&payment.BillID,
		&payment.OriginalBillAmount,
		&payment.PenaltyAmount,
		&payment.PenaltyWaived,
		&payment.DaysOverdueAtPay,
		&payment.AmountPaid,
		&payment.ReceivedAmount,
		&payment.Change,
		&payment.ORNumber,
		&payment.ProcessedBy,
		&remarks,
		&payment.PaidAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if remarks.Valid {
		payment.Remarks = remarks.String
	}
	payment.PaidAt = payment.PaidAt.UTC()
	return &payment, nil
}
