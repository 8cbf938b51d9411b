package application

import (
	"context"
	"errors"
	"log"
	"time"

	billing "waterworks/internal/billing/domain"
	"waterworks/internal/notify"
	"waterworks/internal/observability/metrics"
	registry "waterworks/internal/registry/domain"
	"waterworks/internal/settings"
)

// SettingsLoader reads the system settings record. A nil record means no
// row has been saved and the hardcoded defaults apply.
type SettingsLoader interface {
	Load(ctx context.Context) (*settings.Settings, error)
}

// ConsumerDirectory resolves consumers for billing decisions.
type ConsumerDirectory interface {
	Get(ctx context.Context, id string) (*registry.Consumer, error)
}

// BillNumberAllocator hands out bill document numbers.
type BillNumberAllocator interface {
	NextBillNumber(ctx context.Context, period time.Time) (string, error)
}

// ErrConsumerInactive is returned when billing a disconnected consumer.
var ErrConsumerInactive = errors.New("billing: consumer is disconnected")

// BillingService creates bills and keeps their penalty state current.
type BillingService struct {
	bills          billing.BillRepository
	consumers      ConsumerDirectory
	settingsLoader SettingsLoader
	allocator      BillNumberAllocator
	clock          Clock
	logger         *log.Logger
	notifier       notify.Notifier
}

// BillingOption configures optional service collaborators.
type BillingOption func(*BillingService)

// WithBillingNotifier announces newly created bills on a webhook.
func WithBillingNotifier(notifier notify.Notifier) BillingOption {
	return func(s *BillingService) {
		s.notifier = notifier
	}
}

// NewBillingService constructs a billing service.
func NewBillingService(
	bills billing.BillRepository,
	consumers ConsumerDirectory,
	settingsLoader SettingsLoader,
	allocator BillNumberAllocator,
	clock Clock,
	logger *log.Logger,
	opts ...BillingOption,
) (*BillingService, error) {
	if bills == nil {
		return nil, errors.New("billing: nil bill repo")
	}
	if consumers == nil {
		return nil, errors.New("billing: nil consumer directory")
	}
	if settingsLoader == nil {
		return nil, errors.New("billing: nil settings loader")
	}
	if allocator == nil {
		return nil, errors.New("billing: nil allocator")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	service := &BillingService{
		bills:          bills,
		consumers:      consumers,
		settingsLoader: settingsLoader,
		allocator:      allocator,
		clock:          clock,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateBillRequest generates a bill from confirmed consumption.
type CreateBillRequest struct {
	ConsumerID  string
	Consumption int
	// Period is any timestamp inside the billing month.
	Period time.Time
}

// CreateBill computes the tiered charge and persists a bill for the period.
// Creating the same consumer+period twice returns the existing bill.
func (s *BillingService) CreateBill(ctx context.Context, req CreateBillRequest) (*billing.Bill, error) {
	start := s.clock.Now()
	bill, err := s.createBill(ctx, req)
	if err != nil {
		metrics.ObserveBillGenerate(metrics.ResultError, time.Since(start))
		return nil, err
	}
	metrics.ObserveBillGenerate(metrics.ResultSuccess, time.Since(start))
	return bill, nil
}

func (s *BillingService) createBill(ctx context.Context, req CreateBillRequest) (*billing.Bill, error) {
	if req.Consumption < 0 {
		return nil, billing.ErrNegativeConsumption
	}
	consumer, err := s.consumers.Get(ctx, req.ConsumerID)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, registry.ErrConsumerNotFound
	}
	if !consumer.Active() {
		return nil, ErrConsumerInactive
	}

	cfg, err := s.settingsLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	effective := settings.Default()
	if cfg != nil {
		effective = *cfg
	}

	period := req.Period
	if period.IsZero() {
		period = s.clock.Now()
	}
	billingPeriod := monthDay(period, effective.BillingDayOfMonth)
	dueDate := monthDay(period, effective.DueDayOfMonth)

	existing, err := s.bills.GetByConsumerPeriod(ctx, consumer.ID, billingPeriod)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	charge := billing.ComputeBill(req.Consumption, consumer.UsageClass, cfg.ScheduleFor(consumer.UsageClass))

	id, err := s.allocator.NextBillNumber(ctx, billingPeriod)
	if err != nil {
		return nil, err
	}

	bill := &billing.Bill{
		ID:            id,
		ConsumerID:    consumer.ID,
		BillingPeriod: billingPeriod,
		DueDate:       dueDate,
		Consumption:   req.Consumption,
		RatePerCubic:  charge.AverageRate,
		TotalAmount:   charge.Total,
		Breakdown:     charge.Breakdown,
		Status:        billing.StatusPending,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.bills.Save(ctx, bill); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("bill %s created for consumer %s: %d m3, %s",
			bill.ID, consumer.ID, bill.Consumption, billing.FormatPeso(bill.TotalAmount))
	}
	if s.notifier != nil {
		// Delivery is best effort; a dead webhook must not fail billing.
		if err := s.notifier.Notify(ctx, notify.Message{
			Title: "Bill generated",
			Details: map[string]any{
				"bill_id":        bill.ID,
				"account_number": consumer.AccountNumber,
				"consumption":    bill.Consumption,
				"total_amount":   bill.TotalAmount.StringFixed(2),
				"due_date":       bill.DueDate.Format("2006-01-02"),
			},
		}); err != nil && s.logger != nil {
			s.logger.Printf("bill notification error: %v", err)
		}
	}
	return bill, nil
}

// GetBill loads a bill with its penalty state refreshed for today.
func (s *BillingService) GetBill(ctx context.Context, id string) (*billing.Bill, error) {
	bill, err := s.bills.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billing.ErrBillNotFound
	}
	if _, err := s.RefreshPenalty(ctx, bill); err != nil {
		return nil, err
	}
	return bill, nil
}

// ListBills lists a consumer's bills.
func (s *BillingService) ListBills(ctx context.Context, consumerID string, limit int) ([]billing.Bill, error) {
	return s.bills.ListByConsumer(ctx, consumerID, limit)
}

// RefreshPenalty recalculates the bill's penalty in place and persists any
// change. It returns whether the stored bill changed.
func (s *BillingService) RefreshPenalty(ctx context.Context, bill *billing.Bill) (bool, error) {
	if bill == nil {
		return false, billing.ErrNilBill
	}
	cfg, err := s.settingsLoader.Load(ctx)
	if err != nil {
		return false, err
	}
	senior, err := s.isSenior(ctx, bill.ConsumerID)
	if err != nil {
		return false, err
	}

	today := s.clock.Now()
	changed, _ := billing.UpdateBillPenalty(bill, cfg.PenaltyPolicy(), today, senior)
	if bill.Status == billing.StatusPending && bill.IsOverdue(today) {
		bill.Status = billing.StatusOverdue
		changed = true
	}
	if !changed {
		return false, nil
	}
	if err := s.bills.Save(ctx, bill); err != nil {
		return false, err
	}
	return true, nil
}

// WaivePenalty permanently waives the penalty on a bill.
func (s *BillingService) WaivePenalty(ctx context.Context, billID, actor, reason string) (*billing.Bill, string, error) {
	bill, err := s.bills.Get(ctx, billID)
	if err != nil {
		return nil, "", err
	}
	if bill == nil {
		return nil, "", billing.ErrBillNotFound
	}
	if _, err := s.RefreshPenalty(ctx, bill); err != nil {
		return nil, "", err
	}

	ok, message := billing.Waive(bill, actor, reason, s.clock.Now())
	if !ok {
		metrics.IncPenaltyWaive(metrics.ResultError)
		return bill, message, errors.New("billing: " + message)
	}
	if err := s.bills.Save(ctx, bill); err != nil {
		return nil, "", err
	}
	metrics.IncPenaltyWaive(metrics.ResultSuccess)
	if s.logger != nil {
		s.logger.Printf("penalty waived on bill %s by %s: %s", bill.ID, actor, reason)
	}
	return bill, message, nil
}

// PenaltyExplanation returns the audit explanation for a bill's penalty.
func (s *BillingService) PenaltyExplanation(ctx context.Context, bill *billing.Bill) (string, error) {
	cfg, err := s.settingsLoader.Load(ctx)
	if err != nil {
		return "", err
	}
	_, _, explanation := billing.ComputePenalty(bill, cfg.PenaltyPolicy(), s.clock.Now())
	return explanation, nil
}

func (s *BillingService) isSenior(ctx context.Context, consumerID string) (bool, error) {
	consumer, err := s.consumers.Get(ctx, consumerID)
	if err != nil {
		return false, err
	}
	return consumer != nil && consumer.SeniorCitizen, nil
}

// monthDay returns the given day of t's month, clamped to 1-28, in UTC.
func monthDay(t time.Time, day int) time.Time {
	if day < 1 {
		day = 1
	}
	if day > 28 {
		day = 28
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, time.UTC)
}
