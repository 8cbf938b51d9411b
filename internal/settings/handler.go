package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"waterworks/internal/audit"
	"waterworks/internal/auth"
	billing "waterworks/internal/billing/domain"
)

// Handler serves GET/PUT /api/v1/settings.
type Handler struct {
	repo   *Repository
	audit  audit.Logger
	logger *log.Logger
}

// NewHandler constructs a settings handler.
func NewHandler(repo *Repository, auditLogger audit.Logger, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("settings handler: nil repo")
	}
	return &Handler{repo: repo, audit: auditLogger, logger: logger}, nil
}

type schedulePayload struct {
	MinimumCharge decimal.Decimal `json:"minimum_charge"`
	Tier2Rate     decimal.Decimal `json:"tier2_rate"`
	Tier3Rate     decimal.Decimal `json:"tier3_rate"`
	Tier4Rate     decimal.Decimal `json:"tier4_rate"`
	Tier5Rate     decimal.Decimal `json:"tier5_rate"`
}

type payload struct {
	Residential schedulePayload `json:"residential"`
	Commercial  schedulePayload `json:"commercial"`

	PenaltyEnabled     bool            `json:"penalty_enabled"`
	PenaltyType        string          `json:"penalty_type"`
	PenaltyRate        decimal.Decimal `json:"penalty_rate"`
	FixedPenaltyAmount decimal.Decimal `json:"fixed_penalty_amount"`
	GracePeriodDays    int             `json:"grace_period_days"`
	MaxPenaltyAmount   decimal.Decimal `json:"max_penalty_amount"`

	ReadingStartDay   int `json:"reading_start_day"`
	ReadingEndDay     int `json:"reading_end_day"`
	BillingDayOfMonth int `json:"billing_day_of_month"`
	DueDayOfMonth     int `json:"due_day_of_month"`

	Defaulted bool      `json:"defaulted"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ServeHTTP routes settings requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.repo == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPut:
		h.handlePut(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	saved, err := h.repo.Load(r.Context())
	if err != nil {
		http.Error(w, "load settings error", http.StatusInternalServerError)
		return
	}

	current := Default()
	defaulted := saved == nil
	if saved != nil {
		current = *saved
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPayload(current, defaulted))
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var body payload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	updated := fromPayload(body)
	if err := updated.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.Save(r.Context(), updated); err != nil {
		if h.logger != nil {
			h.logger.Printf("settings save error: %v", err)
		}
		http.Error(w, "save settings error", http.StatusInternalServerError)
		return
	}
	h.logAudit(r.Context(), r)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toPayload(updated, false))
}

func (h *Handler) logAudit(ctx context.Context, r *http.Request) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Log(ctx, audit.Entry{
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       audit.ActionSettingsUpdated,
		ResourceType: "system_settings",
		ResourceID:   "1",
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
}

func toPayload(s Settings, defaulted bool) payload {
	return payload{
		Residential:        toSchedulePayload(s.Residential),
		Commercial:         toSchedulePayload(s.Commercial),
		PenaltyEnabled:     s.Penalty.Enabled,
		PenaltyType:        string(s.Penalty.Type),
		PenaltyRate:        s.Penalty.Rate,
		FixedPenaltyAmount: s.Penalty.FixedAmount,
		GracePeriodDays:    s.Penalty.GracePeriodDays,
		MaxPenaltyAmount:   s.Penalty.MaxAmount,
		ReadingStartDay:    s.ReadingStartDay,
		ReadingEndDay:      s.ReadingEndDay,
		BillingDayOfMonth:  s.BillingDayOfMonth,
		DueDayOfMonth:      s.DueDayOfMonth,
		Defaulted:          defaulted,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toSchedulePayload(s billing.RateSchedule) schedulePayload {
	return schedulePayload{
		MinimumCharge: s.MinimumCharge,
		Tier2Rate:     s.Tier2Rate,
		Tier3Rate:     s.Tier3Rate,
		Tier4Rate:     s.Tier4Rate,
		Tier5Rate:     s.Tier5Rate,
	}
}

func fromPayload(p payload) Settings {
	return Settings{
		Residential: billing.RateSchedule{
			MinimumCharge: p.Residential.MinimumCharge,
			Tier2Rate:     p.Residential.Tier2Rate,
			Tier3Rate:     p.Residential.Tier3Rate,
			Tier4Rate:     p.Residential.Tier4Rate,
			Tier5Rate:     p.Residential.Tier5Rate,
		},
		Commercial: billing.RateSchedule{
			MinimumCharge: p.Commercial.MinimumCharge,
			Tier2Rate:     p.Commercial.Tier2Rate,
			Tier3Rate:     p.Commercial.Tier3Rate,
			Tier4Rate:     p.Commercial.Tier4Rate,
			Tier5Rate:     p.Commercial.Tier5Rate,
		},
		Penalty: billing.PenaltyPolicy{
			Enabled:         p.PenaltyEnabled,
			Type:            billing.PenaltyType(p.PenaltyType),
			Rate:            p.PenaltyRate,
			FixedAmount:     p.FixedPenaltyAmount,
			GracePeriodDays: p.GracePeriodDays,
			MaxAmount:       p.MaxPenaltyAmount,
		},
		ReadingStartDay:   p.ReadingStartDay,
		ReadingEndDay:     p.ReadingEndDay,
		BillingDayOfMonth: p.BillingDayOfMonth,
		DueDayOfMonth:     p.DueDayOfMonth,
	}
}
