package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"waterworks/internal/audit"
	"waterworks/internal/auth"
	"waterworks/internal/observability/metrics"
	readingsapp "waterworks/internal/readings/application"
	readings "waterworks/internal/readings/domain"
	registry "waterworks/internal/registry/domain"
	"waterworks/internal/vision"
)

// MeterReader extracts a register value from a meter photo.
type MeterReader interface {
	ReadMeter(ctx context.Context, imageBase64 string) (vision.ReadResult, error)
}

// Handler provides meter reading HTTP endpoints.
type Handler struct {
	service     *readingsapp.ReadingService
	reader      MeterReader
	auditLogger audit.Logger
}

// NewHandler constructs a handler. The meter reader is optional; without it
// the AI endpoint answers 503.
func NewHandler(service *readingsapp.ReadingService, reader MeterReader, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("readings handler: nil service")
	}
	return &Handler{service: service, reader: reader, auditLogger: auditLogger}, nil
}

type readingPayload struct {
	ID          string     `json:"id"`
	ConsumerID  string     `json:"consumer_id"`
	Value       int        `json:"value"`
	ReadAt      time.Time  `json:"read_at"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	SubmittedBy string     `json:"submitted_by,omitempty"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	RejectNote  string     `json:"reject_note,omitempty"`
	PhotoRef    string     `json:"photo_ref,omitempty"`
	Confidence  float64    `json:"confidence,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toPayload(reading *readings.MeterReading) readingPayload {
	return readingPayload{
		ID:          reading.ID,
		ConsumerID:  reading.ConsumerID,
		Value:       reading.Value,
		ReadAt:      reading.ReadAt,
		Source:      string(reading.Source),
		Status:      string(reading.Status),
		SubmittedBy: reading.SubmittedBy,
		ReviewedBy:  reading.ReviewedBy,
		ReviewedAt:  reading.ReviewedAt,
		RejectNote:  reading.RejectNote,
		PhotoRef:    reading.PhotoRef,
		Confidence:  reading.Confidence,
		CreatedAt:   reading.CreatedAt,
	}
}

// ServeHTTP routes /api/v1/readings requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/readings")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.handleSubmit(w, r)
	case rest == "ai" && r.Method == http.MethodPost:
		h.handleAISubmit(w, r)
	default:
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 2 && parts[1] == "confirm" && r.Method == http.MethodPost:
			h.handleConfirm(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "reject" && r.Method == http.MethodPost:
			h.handleReject(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var (
		list []readings.MeterReading
		err  error
	)
	if consumerID := r.URL.Query().Get("consumer_id"); consumerID != "" {
		list, err = h.service.ListByConsumer(r.Context(), consumerID, limit)
	} else {
		list, err = h.service.ListPending(r.Context(), limit)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payloads := make([]readingPayload, 0, len(list))
	for i := range list {
		payloads = append(payloads, toPayload(&list[i]))
	}
	respondJSON(w, payloads)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req readingsapp.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.SubmittedBy == "" {
		req.SubmittedBy = auth.SubjectFromContext(r.Context())
	}

	reading, err := h.service.Submit(r.Context(), req)
	if err != nil {
		respondReadingError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toPayload(reading))
}

type aiSubmitRequest struct {
	ConsumerID string `json:"consumer_id"`
	Image      string `json:"image"`
	PhotoRef   string `json:"photo_ref"`
}

type aiSubmitResponse struct {
	Reading    readingPayload `json:"reading"`
	Confidence float64        `json:"confidence"`
	RawText    string         `json:"raw_text,omitempty"`
}

func (h *Handler) handleAISubmit(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		http.Error(w, "ai reading not configured", http.StatusServiceUnavailable)
		return
	}
	var req aiSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.ConsumerID == "" || req.Image == "" {
		http.Error(w, "consumer_id and image are required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	result, err := h.reader.ReadMeter(r.Context(), req.Image)
	if err != nil {
		metrics.ObserveAIRead(metrics.ResultError, time.Since(start))
		if errors.Is(err, vision.ErrUnreadable) {
			http.Error(w, "meter not readable", http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, "recognition failed", http.StatusBadGateway)
		return
	}
	metrics.ObserveAIRead(metrics.ResultSuccess, time.Since(start))

	reading, err := h.service.Submit(r.Context(), readingsapp.SubmitRequest{
		ConsumerID:  req.ConsumerID,
		Value:       result.Value,
		Source:      string(readings.SourceAI),
		SubmittedBy: auth.SubjectFromContext(r.Context()),
		PhotoRef:    req.PhotoRef,
		Confidence:  result.Confidence,
	})
	if err != nil {
		respondReadingError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(aiSubmitResponse{
		Reading:    toPayload(reading),
		Confidence: result.Confidence,
		RawText:    result.RawText,
	})
}

type confirmResponse struct {
	Reading     readingPayload `json:"reading"`
	Consumption int            `json:"consumption"`
	BillID      string         `json:"bill_id,omitempty"`
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.service.Confirm(r.Context(), id, auth.SubjectFromContext(r.Context()))
	if err != nil {
		respondReadingError(w, err)
		return
	}

	resp := confirmResponse{
		Reading:     toPayload(result.Reading),
		Consumption: result.Consumption,
	}
	if result.Bill != nil {
		resp.BillID = result.Bill.ID
	}
	respondJSON(w, resp)

	h.logAudit(r, audit.ActionReadingConfirmed, result.Reading, map[string]any{
		"consumption": result.Consumption,
		"bill_id":     resp.BillID,
	})
}

type rejectRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request, id string) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	reading, err := h.service.Reject(r.Context(), id, auth.SubjectFromContext(r.Context()), req.Note)
	if err != nil {
		respondReadingError(w, err)
		return
	}
	respondJSON(w, toPayload(reading))

	h.logAudit(r, audit.ActionReadingRejected, reading, map[string]any{
		"note": req.Note,
	})
}

func (h *Handler) logAudit(r *http.Request, action string, reading *readings.MeterReading, meta map[string]any) {
	if h.auditLogger == nil || reading == nil {
		return
	}
	encoded, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "meter_reading",
		ResourceID:   reading.ID,
		ConsumerID:   reading.ConsumerID,
		Metadata:     encoded,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func respondReadingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, readings.ErrReadingNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, registry.ErrConsumerNotFound):
		http.Error(w, "consumer not found", http.StatusNotFound)
	case errors.Is(err, readings.ErrReadingRollback),
		errors.Is(err, readings.ErrNegativeReading):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, readings.ErrReadingNotPending):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
