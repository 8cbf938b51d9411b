package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	billing "waterworks/internal/billing/domain"
)

const defaultBillsTable = "bills"

// BillRepository is a Postgres implementation for bills.
type BillRepository struct {
	db    *sql.DB
	table string
}

// NewBillRepository constructs a repository.
func NewBillRepository(db *sql.DB, opts ...BillOption) *BillRepository {
	repo := &BillRepository{db: db, table: defaultBillsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// BillOption configures the repository.
type BillOption func(*BillRepository)

// WithBillsTable overrides the default table name.
func WithBillsTable(table string) BillOption {
	return func(repo *BillRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const billColumns = `id, consumer_id, billing_period, due_date, consumption,
	rate_per_cubic, fixed_charge, total_amount, breakdown,
	penalty_amount, days_overdue, penalty_applied_at,
	penalty_waived, penalty_waived_by, penalty_waived_reason, penalty_waived_at,
	senior_citizen_discount, status, created_at`

// Get loads a bill by id.
func (r *BillRepository) Get(ctx context.Context, id string) (*billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	if id == "" {
		return nil, errors.New("bill repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, billColumns, r.table)
	return scanBill(r.db.QueryRowContext(ctx, query, id))
}

// GetByConsumerPeriod loads the bill for a consumer's billing period.
func (r *BillRepository) GetByConsumerPeriod(ctx context.Context, consumerID string, period time.Time) (*billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	if consumerID == "" {
		return nil, errors.New("bill repo: empty consumer id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE consumer_id = $1 AND billing_period = $2
LIMIT 1`, billColumns, r.table)
	return scanBill(r.db.QueryRowContext(ctx, query, consumerID, period.UTC()))
}

// ListByConsumer lists a consumer's bills, newest period first.
func (r *BillRepository) ListByConsumer(ctx context.Context, consumerID string, limit int) ([]billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	if consumerID == "" {
		return nil, errors.New("bill repo: empty consumer id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE consumer_id = $1
ORDER BY billing_period DESC`, billColumns, r.table)
	args := []any{consumerID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryBills(ctx, query, args...)
}

// ListUnpaid lists all bills that are not paid.
func (r *BillRepository) ListUnpaid(ctx context.Context) ([]billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE status != $1
ORDER BY due_date ASC`, billColumns, r.table)
	return r.queryBills(ctx, query, string(billing.StatusPaid))
}

// ListOverdue lists unpaid bills past their due date.
func (r *BillRepository) ListOverdue(ctx context.Context, today time.Time) ([]billing.Bill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE status != $1 AND due_date < $2
ORDER BY due_date ASC`, billColumns, r.table)
	return r.queryBills(ctx, query, string(billing.StatusPaid), today.UTC())
}

// Save upserts a bill.
func (r *BillRepository) Save(ctx context.Context, bill *billing.Bill) error {
	if r == nil || r.db == nil {
		return errors.New("bill repo: nil db")
	}
	if bill == nil {
		return billing.ErrNilBill
	}

	breakdown, err := json.Marshal(toBreakdownRecord(bill.Breakdown))
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, consumer_id, billing_period, due_date, consumption,
	rate_per_cubic, fixed_charge, total_amount, breakdown,
	penalty_amount, days_overdue, penalty_applied_at,
	penalty_waived, penalty_waived_by, penalty_waived_reason, penalty_waived_at,
	senior_citizen_discount, status
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
)
ON CONFLICT (id)
DO UPDATE SET
	penalty_amount = EXCLUDED.penalty_amount,
	days_overdue = EXCLUDED.days_overdue,
	penalty_applied_at = EXCLUDED.penalty_applied_at,
	penalty_waived = EXCLUDED.penalty_waived,
	penalty_waived_by = EXCLUDED.penalty_waived_by,
	penalty_waived_reason = EXCLUDED.penalty_waived_reason,
	penalty_waived_at = EXCLUDED.penalty_waived_at,
	senior_citizen_discount = EXCLUDED.senior_citizen_discount,
	status = EXCLUDED.status`, r.table)

	var penaltyAppliedAt, penaltyWaivedAt sql.NullTime
	if bill.PenaltyAppliedAt != nil {
		penaltyAppliedAt = sql.NullTime{Time: bill.PenaltyAppliedAt.UTC(), Valid: true}
	}
	if bill.PenaltyWaivedAt != nil {
		penaltyWaivedAt = sql.NullTime{Time: bill.PenaltyWaivedAt.UTC(), Valid: true}
	}

	_, err = r.db.ExecContext(
		ctx,
		query,
		bill.ID,
		bill.ConsumerID,
		bill.BillingPeriod.UTC(),
		bill.DueDate.UTC(),
		bill.Consumption,
		bill.RatePerCubic,
		bill.FixedCharge,
		bill.TotalAmount,
		breakdown,
		bill.PenaltyAmount,
		bill.DaysOverdue,
		penaltyAppliedAt,
		bill.PenaltyWaived,
		bill.PenaltyWaivedBy,
		bill.PenaltyWaivedReason,
		penaltyWaivedAt,
		bill.SeniorCitizenDiscount,
		string(bill.Status),
	)
	if err != nil {
		return err
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (r *BillRepository) queryBills(ctx context.Context, query string, args ...any) ([]billing.Bill, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		if bill != nil {
			result = append(result, *bill)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*billing.Bill, error) {
	var bill billing.Bill
	var status string
	var breakdown []byte
	var penaltyAppliedAt, penaltyWaivedAt sql.NullTime
	var waivedBy, waivedReason sql.NullString
	err := row.Scan(
		&bill.ID,
		&bill.ConsumerID,
		&bill.BillingPeriod,
		&bill.DueDate,
		&bill.Consumption,
		&bill.RatePerCubic,
		&bill.FixedCharge,
		&bill.TotalAmount,
		&breakdown,
		&bill.PenaltyAmount,
		&bill.DaysOverdue,
		&penaltyAppliedAt,
		&bill.PenaltyWaived,
		&waivedBy,
		&waivedReason,
		&penaltyWaivedAt,
		&bill.SeniorCitizenDiscount,
		&status,
		&bill.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	bill.Status = billing.BillStatus(status)
	if len(breakdown) > 0 {
		var record breakdownRecord
		if err := json.Unmarshal(breakdown, &record); err != nil {
			return nil, err
		}
		bill.Breakdown = record.toDomain()
	}
	if penaltyAppliedAt.Valid {
		at := penaltyAppliedAt.Time.UTC()
		bill.PenaltyAppliedAt = &at
	}
	if waivedBy.Valid {
		bill.PenaltyWaivedBy = waivedBy.String
	}
	if waivedReason.Valid {
		bill.PenaltyWaivedReason = waivedReason.String
	}
	if penaltyWaivedAt.Valid {
		at := penaltyWaivedAt.Time.UTC()
		bill.PenaltyWaivedAt = &at
	}
	bill.BillingPeriod = bill.BillingPeriod.UTC()
	bill.DueDate = bill.DueDate.UTC()
	bill.CreatedAt = bill.CreatedAt.UTC()
	return &bill, nil
}

// breakdownRecord is the JSON shape stored in the breakdown column.
type breakdownRecord struct {
	Consumption   int             `json:"consumption"`
	UsageClass    string          `json:"usage_class"`
	MinimumCharge decimal.Decimal `json:"minimum_charge"`

	Tier1Units  int             `json:"tier1_units"`
	Tier1Amount decimal.Decimal `json:"tier1_amount"`

	Tier2Units  int             `json:"tier2_units"`
	Tier2Rate   decimal.Decimal `json:"tier2_rate"`
	Tier2Amount decimal.Decimal `json:"tier2_amount"`

	Tier3Units  int             `json:"tier3_units"`
	Tier3Rate   decimal.Decimal `json:"tier3_rate"`
	Tier3Amount decimal.Decimal `json:"tier3_amount"`

	Tier4Units  int             `json:"tier4_units"`
	Tier4Rate   decimal.Decimal `json:"tier4_rate"`
	Tier4Amount decimal.Decimal `json:"tier4_amount"`

	Tier5Units  int             `json:"tier5_units"`
	Tier5Rate   decimal.Decimal `json:"tier5_rate"`
	Tier5Amount decimal.Decimal `json:"tier5_amount"`
}

func toBreakdownRecord(b billing.Breakdown) breakdownRecord {
	return breakdownRecord{
		Consumption:   b.Consumption,
		UsageClass:    string(b.UsageClass),
		MinimumCharge: b.MinimumCharge,
		Tier1Units:    b.Tier1Units,
		Tier1Amount:   b.Tier1Amount,
		Tier2Units:    b.Tier2Units,
		Tier2Rate:     b.Tier2Rate,
		Tier2Amount:   b.Tier2Amount,
		Tier3Units:    b.Tier3Units,
		Tier3Rate:     b.Tier3Rate,
		Tier3Amount:   b.Tier3Amount,
		Tier4Units:    b.Tier4Units,
		Tier4Rate:     b.Tier4Rate,
		Tier4Amount:   b.Tier4Amount,
		Tier5Units:    b.Tier5Units,
		Tier5Rate:     b.Tier5Rate,
		Tier5Amount:   b.Tier5Amount,
	}
}

func (r breakdownRecord) toDomain() billing.Breakdown {
	return billing.Breakdown{
		Consumption:   r.Consumption,
		UsageClass:    billing.UsageClass(r.UsageClass),
		MinimumCharge: r.MinimumCharge,
		Tier1Units:    r.Tier1Units,
		Tier1Amount:   r.Tier1Amount,
		Tier2Units:    r.Tier2Units,
		Tier2Rate:     r.Tier2Rate,
		Tier2Amount:   r.Tier2Amount,
		Tier3Units:    r.Tier3Units,
		Tier3Rate:     r.Tier3Rate,
		Tier3Amount:   r.Tier3Amount,
		Tier4Units:    r.Tier4Units,
		Tier4Rate:     r.Tier4Rate,
		Tier4Amount:   r.Tier4Amount,
		Tier5Units:    r.Tier5Units,
		Tier5Rate:     r.Tier5Rate,
		Tier5Amount:   r.Tier5Amount,
	}
}
