package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	readings "waterworks/internal/readings/domain"
)

const defaultReadingsTable = "meter_readings"

// ReadingRepository is a Postgres implementation for meter readings.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB, opts ...Option) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Option configures the repository.
type Option func(*ReadingRepository)

// WithReadingsTable overrides the default table name.
func WithReadingsTable(table string) Option {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const readingColumns = `id, consumer_id, value, read_at, source, status,
	submitted_by, reviewed_by, reviewed_at, reject_note, photo_ref, confidence, created_at`

// Get loads a reading by id.
func (r *ReadingRepository) Get(ctx context.Context, id string) (*readings.MeterReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if id == "" {
		return nil, errors.New("reading repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, readingColumns, r.table)
	return scanReading(r.db.QueryRowContext(ctx, query, id))
}

// LatestConfirmed returns the most recent confirmed reading before a time.
func (r *ReadingRepository) LatestConfirmed(ctx context.Context, consumerID string, before time.Time) (*readings.MeterReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if consumerID == "" {
		return nil, errors.New("reading repo: empty consumer id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE consumer_id = $1 AND status = $2 AND read_at < $3
ORDER BY read_at DESC
LIMIT 1`, readingColumns, r.table)
	return scanReading(r.db.QueryRowContext(ctx, query, consumerID, string(readings.StatusConfirmed), before.UTC()))
}

// ListByStatus lists readings with a given status, oldest first.
func (r *ReadingRepository) ListByStatus(ctx context.Context, status readings.ReadingStatus, limit int) ([]readings.MeterReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE status = $1
ORDER BY read_at ASC`, readingColumns, r.table)
	args := []any{string(status)}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryReadings(ctx, query, args...)
}

// ListByConsumer lists a consumer's readings, newest first.
func (r *ReadingRepository) ListByConsumer(ctx context.Context, consumerID string, limit int) ([]readings.MeterReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if consumerID == "" {
		return nil, errors.New("reading repo: empty consumer id")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE consumer_id = $1
ORDER BY read_at DESC`, readingColumns, r.table)
	args := []any{consumerID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryReadings(ctx, query, args...)
}

// Save upserts a reading.
func (r *ReadingRepository) Save(ctx context.Context, reading *readings.MeterReading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	if err := reading.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, consumer_id, value, read_at, source, status,
	submitted_by, reviewed_by, reviewed_at, reject_note, photo_ref, confidence
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
)
ON CONFLICT (id)
DO UPDATE SET
	status = EXCLUDED.status,
	reviewed_by = EXCLUDED.reviewed_by,
	reviewed_at = EXCLUDED.reviewed_at,
	reject_note = EXCLUDED.reject_note`, r.table)

	var reviewedAt sql.NullTime
	if reading.ReviewedAt != nil {
		reviewedAt = sql.NullTime{Time: reading.ReviewedAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(
		ctx,
		query,
		reading.ID,
		reading.ConsumerID,
		reading.Value,
		reading.ReadAt.UTC(),
		string(reading.Source),
		string(reading.Status),
		reading.SubmittedBy,
		reading.ReviewedBy,
		reviewedAt,
		reading.RejectNote,
		reading.PhotoRef,
		reading.Confidence,
	)
	if err != nil {
		return err
	}
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (r *ReadingRepository) queryReadings(ctx context.Context, query string, args ...any) ([]readings.MeterReading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []readings.MeterReading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		if reading != nil {
			result = append(result, *reading)
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

func scanReading(row rowScanner) (*readings.MeterReading, error) {
	var reading readings.MeterReading
	var source string
	var status string
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	var rejectNote sql.NullString
	var photoRef sql.NullString
	err := row.Scan(
		&reading.ID,
		&reading.ConsumerID,
		&reading.Value,
		&reading.ReadAt,
		&source,
		&status,
		&reading.SubmittedBy,
		&reviewedBy,
		&reviewedAt,
		&rejectNote,
		&photoRef,
		&reading.Confidence,
		&reading.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	reading.Source = readings.ReadingSource(source)
	reading.Status = readings.ReadingStatus(status)
	if reviewedBy.Valid {
		reading.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		at := reviewedAt.Time.UTC()
		reading.ReviewedAt = &at
	}
	if rejectNote.Valid {
		reading.RejectNote = rejectNote.String
	}
	if photoRef.Valid {
		reading.PhotoRef = photoRef.String
	}
	reading.ReadAt = reading.ReadAt.UTC()
	reading.CreatedAt = reading.CreatedAt.UTC()
	return &reading, nil
}
