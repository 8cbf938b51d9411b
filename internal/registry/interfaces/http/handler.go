package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"waterworks/internal/audit"
	"waterworks/internal/auth"
	billing "waterworks/internal/billing/domain"
	registryapp "waterworks/internal/registry/application"
	registry "waterworks/internal/registry/domain"
)

// PenaltySummarizer aggregates penalty figures for one consumer.
type PenaltySummarizer interface {
	ConsumerPenaltySummary(ctx context.Context, consumerID string) (billing.PenaltySummary, error)
}

// Handler provides consumer registry HTTP endpoints.
type Handler struct {
	service     *registryapp.ConsumerService
	summarizer  PenaltySummarizer
	auditLogger audit.Logger
}

// NewHandler constructs a handler. The summarizer is optional; without it the
// penalty summary endpoint responds 503.
func NewHandler(service *registryapp.ConsumerService, summarizer PenaltySummarizer, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("registry handler: nil service")
	}
	return &Handler{service: service, summarizer: summarizer, auditLogger: auditLogger}, nil
}

type consumerPayload struct {
	ID            string     `json:"id"`
	AccountNumber string     `json:"account_number"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	FullName      string     `json:"full_name"`
	Address       string     `json:"address"`
	Phone         string     `json:"phone,omitempty"`
	MeterSerial   string     `json:"meter_serial,omitempty"`
	UsageClass    string     `json:"usage_class"`
	SeniorCitizen bool       `json:"senior_citizen"`
	Status        string     `json:"status"`
	ConnectedAt   time.Time  `json:"connected_at"`
	CutOffAt      *time.Time `json:"cut_off_at,omitempty"`
	CutOffReason  string     `json:"cut_off_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toPayload(consumer *registry.Consumer) consumerPayload {
	return consumerPayload{
		ID:            consumer.ID,
		AccountNumber: consumer.AccountNumber,
		FirstName:     consumer.FirstName,
		LastName:      consumer.LastName,
		FullName:      consumer.FullName(),
		Address:       consumer.Address,
		Phone:         consumer.Phone,
		MeterSerial:   consumer.MeterSerial,
		UsageClass:    string(consumer.UsageClass),
		SeniorCitizen: consumer.SeniorCitizen,
		Status:        string(consumer.Status),
		ConnectedAt:   consumer.ConnectedAt,
		CutOffAt:      consumer.CutOffAt,
		CutOffReason:  consumer.CutOffReason,
		CreatedAt:     consumer.CreatedAt,
		UpdatedAt:     consumer.UpdatedAt,
	}
}

// ServeHTTP routes /api/v1/consumers requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/consumers")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	default:
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			h.handleGet(w, r, parts[0])
		case len(parts) == 1 && r.Method == http.MethodPut:
			h.handleUpdate(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "disconnect" && r.Method == http.MethodPost:
			h.handleDisconnect(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "reconnect" && r.Method == http.MethodPost:
			h.handleReconnect(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "penalty-summary" && r.Method == http.MethodGet:
			h.handlePenaltySummary(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := registry.ListFilter{
		Search: r.URL.Query().Get("search"),
	}
	if class := r.URL.Query().Get("usage_class"); class != "" {
		normalized, ok := billing.NormalizeUsageClass(class)
		if !ok {
			http.Error(w, "invalid usage_class", http.StatusBadRequest)
			return
		}
		filter.UsageClass = normalized
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = registry.ConsumerStatus(status)
	}

	consumers, err := h.service.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	payloads := make([]consumerPayload, 0, len(consumers))
	for i := range consumers {
		payloads = append(payloads, toPayload(&consumers[i]))
	}
	respondJSON(w, payloads)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req registryapp.CreateConsumerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	consumer, err := h.service.Create(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toPayload(consumer))

	h.logAudit(r, audit.ActionConsumerCreated, consumer)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	consumer, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondConsumerError(w, err)
		return
	}
	respondJSON(w, toPayload(consumer))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req registryapp.UpdateConsumerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	consumer, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		respondConsumerError(w, err)
		return
	}
	respondJSON(w, toPayload(consumer))

	h.logAudit(r, audit.ActionConsumerUpdated, consumer)
}

func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request, id string) {
	// The reason body is optional; a bare POST records no reason.
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	defer r.Body.Close()

	consumer, err := h.service.Disconnect(r.Context(), id, req.Reason)
	if err != nil {
		respondConsumerError(w, err)
		return
	}
	respondJSON(w, toPayload(consumer))

	h.logAudit(r, audit.ActionConsumerUpdated, consumer)
}

func (h *Handler) handleReconnect(w http.ResponseWriter, r *http.Request, id string) {
	consumer, err := h.service.Reconnect(r.Context(), id)
	if err != nil {
		respondConsumerError(w, err)
		return
	}
	respondJSON(w, toPayload(consumer))

	h.logAudit(r, audit.ActionConsumerUpdated, consumer)
}

func (h *Handler) handlePenaltySummary(w http.ResponseWriter, r *http.Request, id string) {
	if h.summarizer == nil {
		http.Error(w, "penalty summary unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		respondConsumerError(w, err)
		return
	}
	summary, err := h.summarizer.ConsumerPenaltySummary(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{
		"consumer_id":   id,
		"total_charged": summary.TotalCharged.StringFixed(2),
		"waived":        summary.Waived.StringFixed(2),
		"paid":          summary.Paid.StringFixed(2),
		"outstanding":   summary.Outstanding.StringFixed(2),
		"overdue_count": summary.OverdueCount,
	})
}

func (h *Handler) logAudit(r *http.Request, action string, consumer *registry.Consumer) {
	if h.auditLogger == nil || consumer == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"account_number": consumer.AccountNumber,
		"status":         string(consumer.Status),
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "consumer",
		ResourceID:   consumer.ID,
		ConsumerID:   consumer.ID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func respondConsumerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrConsumerNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, registry.ErrInvalidUsageClass):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, registry.ErrAlreadyActive),
		errors.Is(err, registry.ErrAlreadyCutOff):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
