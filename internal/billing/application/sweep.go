package application

import (
	"context"
	"errors"
	"log"
	"time"

	billing "waterworks/internal/billing/domain"
	"waterworks/internal/notify"
	"waterworks/internal/observability/metrics"
)

// SweepResult reports the outcome of a penalty sweep.
type SweepResult struct {
	Total   int       `json:"total"`
	Updated int       `json:"updated"`
	RanAt   time.Time `json:"ran_at"`
}

// SweepService recalculates penalties across all unpaid bills. It backs the
// nightly cron job and the manual sweep endpoint.
type SweepService struct {
	bills    billing.BillRepository
	billing  *BillingService
	notifier notify.Notifier
	clock    Clock
	logger   *log.Logger
}

// NewSweepService constructs a sweep service. The notifier is optional.
func NewSweepService(
	bills billing.BillRepository,
	billingService *BillingService,
	notifier notify.Notifier,
	clock Clock,
	logger *log.Logger,
) (*SweepService, error) {
	if bills == nil {
		return nil, errors.New("sweep: nil bill repo")
	}
	if billingService == nil {
		return nil, errors.New("sweep: nil billing service")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SweepService{
		bills:    bills,
		billing:  billingService,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Run refreshes the penalty on every unpaid bill. Individual bill failures
// abort the sweep so a partially applied run is visible in the error.
func (s *SweepService) Run(ctx context.Context) (SweepResult, error) {
	start := s.clock.Now()
	result, err := s.run(ctx)
	if err != nil {
		metrics.ObservePenaltySweep(metrics.ResultError, result.Updated, time.Since(start))
		return result, err
	}
	metrics.ObservePenaltySweep(metrics.ResultSuccess, result.Updated, time.Since(start))
	return result, nil
}

func (s *SweepService) run(ctx context.Context) (SweepResult, error) {
	result := SweepResult{RanAt: s.clock.Now()}

	bills, err := s.bills.ListUnpaid(ctx)
	if err != nil {
		return result, err
	}
	result.Total = len(bills)

	for i := range bills {
		bill := bills[i]
		changed, err := s.billing.RefreshPenalty(ctx, &bill)
		if err != nil {
			return result, err
		}
		if changed {
			result.Updated++
		}
	}

	if s.logger != nil {
		s.logger.Printf("penalty sweep: %d of %d bills updated", result.Updated, result.Total)
	}
	s.notifySweep(ctx, result)
	return result, nil
}

func (s *SweepService) notifySweep(ctx context.Context, result SweepResult) {
	if s.notifier == nil || result.Updated == 0 {
		return
	}
	err := s.notifier.Notify(ctx, notify.Message{
		Title: "Penalty sweep completed",
		Details: map[string]any{
			"total":   result.Total,
			"updated": result.Updated,
			"ran_at":  result.RanAt.Format(time.RFC3339),
		},
	})
	if err != nil && s.logger != nil {
		s.logger.Printf("sweep notify failed: %v", err)
	}
}
