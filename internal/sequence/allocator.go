// Package sequence allocates gapless document numbers from a
// database-backed counter table.
package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultCountersTable = "sequence_counters"

// Allocator hands out monotonically increasing numbers per scope.
// The counter row is upserted and incremented in a single statement,
// so concurrent callers serialize on the row lock and never observe
// the same value twice.
type Allocator struct {
	db    *sql.DB
	table string
}

// NewAllocator constructs an allocator.
func NewAllocator(db *sql.DB, opts ...Option) (*Allocator, error) {
	if db == nil {
		return nil, errors.New("sequence: nil db")
	}
	alloc := &Allocator{db: db, table: defaultCountersTable}
	for _, opt := range opts {
		opt(alloc)
	}
	return alloc, nil
}

// Option configures the allocator.
type Option func(*Allocator)

// WithCountersTable overrides the default table name.
func WithCountersTable(table string) Option {
	return func(alloc *Allocator) {
		if table != "" {
			alloc.table = table
		}
	}
}

// Next returns the next value for a scope, starting at 1.
func (a *Allocator) Next(ctx context.Context, scope string) (int64, error) {
	if a == nil || a.db == nil {
		return 0, errors.New("sequence: nil db")
	}
	if scope == "" {
		return 0, errors.New("sequence: empty scope")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (scope, value)
VALUES ($1, 1)
ON CONFLICT (scope)
DO UPDATE SET value = %s.value + 1, updated_at = NOW()
RETURNING value`, a.table, a.table)

	var value int64
	if err := a.db.QueryRowContext(ctx, query, scope).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

// NextAccountNumber allocates a zero-padded consumer account number.
func (a *Allocator) NextAccountNumber(ctx context.Context) (string, error) {
	value, err := a.Next(ctx, "account")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%05d", value), nil
}

// NextORNumber allocates an official receipt number for the given day.
// Numbering restarts each day because the scope embeds the date.
func (a *Allocator) NextORNumber(ctx context.Context, day time.Time) (string, error) {
	stamp := day.UTC().Format("20060102")
	value, err := a.Next(ctx, "or:"+stamp)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("OR-%s-%06d", stamp, value), nil
}

// NextBillNumber allocates a bill number for a billing period.
func (a *Allocator) NextBillNumber(ctx context.Context, period time.Time) (string, error) {
	stamp := period.UTC().Format("200601")
	value, err := a.Next(ctx, "bill:"+stamp)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BILL-%s-%06d", stamp, value), nil
}
