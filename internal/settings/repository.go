package settings

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	billing "waterworks/internal/billing/domain"
)

// Repository persists the singleton settings row.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Load returns the saved settings, or nil when no row exists yet.
func (r *Repository) Load(ctx context.Context) (*Settings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settings repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT residential_minimum_charge, residential_tier2_rate, residential_tier3_rate,
	residential_tier4_rate, residential_tier5_rate,
	commercial_minimum_charge, commercial_tier2_rate, commercial_tier3_rate,
	commercial_tier4_rate, commercial_tier5_rate,
	penalty_enabled, penalty_type, penalty_rate, fixed_penalty_amount,
	penalty_grace_period_days, max_penalty_amount,
	reading_start_day, reading_end_day, billing_day_of_month, due_day_of_month,
	updated_at
FROM system_settings
WHERE id = 1`)

	var s Settings
	var resMin, res2, res3, res4, res5 string
	var comMin, com2, com3, com4, com5 string
	var penaltyType string
	var penaltyRate, fixedAmount, maxAmount string
	err := row.Scan(
		&resMin, &res2, &res3, &res4, &res5,
		&comMin, &com2, &com3, &com4, &com5,
		&s.Penalty.Enabled, &penaltyType, &penaltyRate, &fixedAmount,
		&s.Penalty.GracePeriodDays, &maxAmount,
		&s.ReadingStartDay, &s.ReadingEndDay, &s.BillingDayOfMonth, &s.DueDayOfMonth,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.Residential, err = scanSchedule(resMin, res2, res3, res4, res5)
	if err != nil {
		return nil, err
	}
	s.Commercial, err = scanSchedule(comMin, com2, com3, com4, com5)
	if err != nil {
		return nil, err
	}
	s.Penalty.Type = billing.PenaltyType(penaltyType)
	if s.Penalty.Rate, err = decimal.NewFromString(penaltyRate); err != nil {
		return nil, err
	}
	if s.Penalty.FixedAmount, err = decimal.NewFromString(fixedAmount); err != nil {
		return nil, err
	}
	if s.Penalty.MaxAmount, err = decimal.NewFromString(maxAmount); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save upserts the singleton row.
func (r *Repository) Save(ctx context.Context, s Settings) error {
	if r == nil || r.db == nil {
		return errors.New("settings repo: nil db")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO system_settings (
	id,
	residential_minimum_charge, residential_tier2_rate, residential_tier3_rate,
	residential_tier4_rate, residential_tier5_rate,
	commercial_minimum_charge, commercial_tier2_rate, commercial_tier3_rate,
	commercial_tier4_rate, commercial_tier5_rate,
	penalty_enabled, penalty_type, penalty_rate, fixed_penalty_amount,
	penalty_grace_period_days, max_penalty_amount,
	reading_start_day, reading_end_day, billing_day_of_month, due_day_of_month,
	updated_at
) VALUES (
	1, $1,$2,$3,$4,$5, $6,$7,$8,$9,$10, $11,$12,$13,$14,$15,$16, $17,$18,$19,$20, NOW()
)
ON CONFLICT (id) DO UPDATE SET
	residential_minimum_charge = EXCLUDED.residential_minimum_charge,
	residential_tier2_rate = EXCLUDED.residential_tier2_rate,
	residential_tier3_rate = EXCLUDED.residential_tier3_rate,
	residential_tier4_rate = EXCLUDED.residential_tier4_rate,
	residential_tier5_rate = EXCLUDED.residential_tier5_rate,
	commercial_minimum_charge = EXCLUDED.commercial_minimum_charge,
	commercial_tier2_rate = EXCLUDED.commercial_tier2_rate,
	commercial_tier3_rate = EXCLUDED.commercial_tier3_rate,
	commercial_tier4_rate = EXCLUDED.commercial_tier4_rate,
	commercial_tier5_rate = EXCLUDED.commercial_tier5_rate,
	penalty_enabled = EXCLUDED.penalty_enabled,
	penalty_type = EXCLUDED.penalty_type,
	penalty_rate = EXCLUDED.penalty_rate,
	fixed_penalty_amount = EXCLUDED.fixed_penalty_amount,
	penalty_grace_period_days = EXCLUDED.penalty_grace_period_days,
	max_penalty_amount = EXCLUDED.max_penalty_amount,
	reading_start_day = EXCLUDED.reading_start_day,
	reading_end_day = EXCLUDED.reading_end_day,
	billing_day_of_month = EXCLUDED.billing_day_of_month,
	due_day_of_month = EXCLUDED.due_day_of_month,
	updated_at = NOW()`,
		s.Residential.MinimumCharge, s.Residential.Tier2Rate, s.Residential.Tier3Rate,
		s.Residential.Tier4Rate, s.Residential.Tier5Rate,
		s.Commercial.MinimumCharge, s.Commercial.Tier2Rate, s.Commercial.Tier3Rate,
		s.Commercial.Tier4Rate, s.Commercial.Tier5Rate,
		s.Penalty.Enabled, string(s.Penalty.Type), s.Penalty.Rate, s.Penalty.FixedAmount,
		s.Penalty.GracePeriodDays, s.Penalty.MaxAmount,
		s.ReadingStartDay, s.ReadingEndDay, s.BillingDayOfMonth, s.DueDayOfMonth,
	)
	return err
}

func scanSchedule(minimum, tier2, tier3, tier4, tier5 string) (billing.RateSchedule, error) {
	var schedule billing.RateSchedule
	var err error
	if schedule.MinimumCharge, err = decimal.NewFromString(minimum); err != nil {
		return schedule, err
	}
	if schedule.Tier2Rate, err = decimal.NewFromString(tier2); err != nil {
		return schedule, err
	}
	if schedule.Tier3Rate, err = decimal.NewFromString(tier3); err != nil {
		return schedule, err
	}
	if schedule.Tier4Rate, err = decimal.NewFromString(tier4); err != nil {
		return schedule, err
	}
	if schedule.Tier5Rate, err = decimal.NewFromString(tier5); err != nil {
		return schedule, err
	}
	return schedule, nil
}
