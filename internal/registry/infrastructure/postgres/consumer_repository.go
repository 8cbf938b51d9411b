package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	billing "waterworks/internal/billing/domain"
	registry "waterworks/internal/registry/domain"
)

const defaultConsumersTable = "consumers"

// ConsumerRepository is a Postgres implementation for consumers.
type ConsumerRepository struct {
	db    *sql.DB
	table string
}

// NewConsumerRepository constructs a repository.
func NewConsumerRepository(db *sql.DB, opts ...ConsumerOption) *ConsumerRepository {
	repo := &ConsumerRepository{db: db, table: defaultConsumersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ConsumerOption configures the repository.
type ConsumerOption func(*ConsumerRepository)

// WithConsumersTable overrides the default table name.
func WithConsumersTable(table string) ConsumerOption {
	return func(repo *ConsumerRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const consumerColumns = `id, account_number, first_name, last_name, address, phone, meter_serial,
	usage_class, senior_citizen, status, connected_at, cut_off_at, cut_off_reason, created_at, updated_at`

// Get loads a consumer by id.
func (r *ConsumerRepository) Get(ctx context.Context, id string) (*registry.Consumer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("consumer repo: nil db")
	}
	if id == "" {
		return nil, errors.New("consumer repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, consumerColumns, r.table)
	return scanConsumer(r.db.QueryRowContext(ctx, query, id))
}

// GetByAccountNumber loads a consumer by account number.
func (r *ConsumerRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*registry.Consumer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("consumer repo: nil db")
	}
	if accountNumber == "" {
		return nil, errors.New("consumer repo: empty account number")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE account_number = $1
LIMIT 1`, consumerColumns, r.table)
	return scanConsumer(r.db.QueryRowContext(ctx, query, accountNumber))
}

// GetByMeterSerial loads the consumer a meter is installed at.
func (r *ConsumerRepository) GetByMeterSerial(ctx context.Context, meterSerial string) (*registry.Consumer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("consumer repo: nil db")
	}
	if meterSerial == "" {
		return nil, errors.New("consumer repo: empty meter serial")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE meter_serial = $1
LIMIT 1`, consumerColumns, r.table)
	return scanConsumer(r.db.QueryRowContext(ctx, query, meterSerial))
}

// List returns consumers matching the filter, newest first.
func (r *ConsumerRepository) List(ctx context.Context, filter registry.ListFilter) ([]registry.Consumer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("consumer repo: nil db")
	}

	var conditions []string
	var args []any
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR account_number ILIKE $%d OR address ILIKE $%d)",
			idx, idx, idx, idx))
	}
	if filter.UsageClass != "" {
		args = append(args, string(filter.UsageClass))
		conditions = append(conditions, fmt.Sprintf("usage_class = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", consumerColumns, r.table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []registry.Consumer
	for rows.Next() {
		consumer, err := scanConsumer(rows)
		if err != nil {
			return nil, err
		}
		if consumer != nil {
			result = append(result, *consumer)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a consumer.
func (r *ConsumerRepository) Save(ctx context.Context, consumer *registry.Consumer) error {
	if r == nil || r.db == nil {
		return errors.New("consumer repo: nil db")
	}
	if consumer == nil {
		return errors.New("consumer repo: nil consumer")
	}
	if err := consumer.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, account_number, first_name, last_name, address, phone, meter_serial,
	usage_class, senior_citizen, status, connected_at, cut_off_at, cut_off_reason
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
ON CONFLICT (id)
DO UPDATE SET
	account_number = EXCLUDED.account_number,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	address = EXCLUDED.address,
	phone = EXCLUDED.phone,
	meter_serial = EXCLUDED.meter_serial,
	usage_class = EXCLUDED.usage_class,
	senior_citizen = EXCLUDED.senior_citizen,
	status = EXCLUDED.status,
	connected_at = EXCLUDED.connected_at,
	cut_off_at = EXCLUDED.cut_off_at,
	cut_off_reason = EXCLUDED.cut_off_reason,
	updated_at = NOW()`, r.table)

	var cutOff sql.NullTime
	if consumer.CutOffAt != nil {
		cutOff = sql.NullTime{Time: consumer.CutOffAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(
		ctx,
		query,
		consumer.ID,
		consumer.AccountNumber,
		consumer.FirstName,
		consumer.LastName,
		consumer.Address,
		consumer.Phone,
		consumer.MeterSerial,
		string(consumer.UsageClass),
		consumer.SeniorCitizen,
		string(consumer.Status),
		consumer.ConnectedAt,
		cutOff,
		consumer.CutOffReason,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if consumer.CreatedAt.IsZero() {
		consumer.CreatedAt = now
	}
	consumer.UpdatedAt = now
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConsumer(row rowScanner) (*registry.Consumer, error) {
	var consumer registry.Consumer
	var usageClass string
	var status string
	var cutOff sql.NullTime
	err := row.Scan(
		&consumer.ID,
		&consumer.AccountNumber,
		&consumer.FirstName,
		&consumer.LastName,
		&consumer.Address,
		&consumer.Phone,
		&consumer.MeterSerial,
		&usageClass,
		&consumer.SeniorCitizen,
		&status,
		&consumer.ConnectedAt,
		&cutOff,
		&consumer.CutOffReason,
		&consumer.CreatedAt,
		&consumer.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	consumer.UsageClass = billing.UsageClass(usageClass)
	consumer.Status = registry.ConsumerStatus(status)
	if cutOff.Valid {
		at := cutOff.Time.UTC()
		consumer.CutOffAt = &at
	}
	consumer.ConnectedAt = consumer.ConnectedAt.UTC()
	consumer.CreatedAt = consumer.CreatedAt.UTC()
	consumer.UpdatedAt = consumer.UpdatedAt.UTC()
	return &consumer, nil
}
