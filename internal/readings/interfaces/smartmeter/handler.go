// Package smartmeter handles reading ingestion from networked water meters.
package smartmeter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"waterworks/internal/observability/metrics"
	readingsapp "waterworks/internal/readings/application"
	readings "waterworks/internal/readings/domain"
	registry "waterworks/internal/registry/domain"
)

// MeterResolver maps a meter serial to its consumer.
type MeterResolver interface {
	GetByMeterSerial(ctx context.Context, meterSerial string) (*registry.Consumer, error)
}

// IngestHandler handles smart meter webhook ingestion.
type IngestHandler struct {
	service  *readingsapp.ReadingService
	resolver MeterResolver
	logger   *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service *readingsapp.ReadingService, resolver MeterResolver, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("smartmeter ingest: nil service")
	}
	if resolver == nil {
		return nil, errors.New("smartmeter ingest: nil resolver")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{service: service, resolver: resolver, logger: logger}, nil
}

type ingestRequest struct {
	MeterSerial string `json:"meter_serial"`
	Value       int    `json:"value"`
}

// ServeHTTP ingests one smart meter reading.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, start, "read_body", "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.fail(w, start, "decode", "invalid json", http.StatusBadRequest)
		return
	}
	if req.MeterSerial == "" {
		h.fail(w, start, "missing_serial", "missing meter_serial", http.StatusBadRequest)
		return
	}

	consumer, err := h.resolver.GetByMeterSerial(r.Context(), req.MeterSerial)
	if err != nil {
		if errors.Is(err, registry.ErrConsumerNotFound) {
			h.fail(w, start, "unknown_meter", "unknown meter", http.StatusNotFound)
			return
		}
		h.logger.Printf("smartmeter ingest: resolve %s: %v", req.MeterSerial, err)
		h.fail(w, start, "resolve", "resolve error", http.StatusInternalServerError)
		return
	}

	reading, err := h.service.Submit(r.Context(), readingsapp.SubmitRequest{
		ConsumerID:  consumer.ID,
		Value:       req.Value,
		Source:      string(readings.SourceSmartMeter),
		SubmittedBy: "meter:" + req.MeterSerial,
	})
	if err != nil {
		switch {
		case errors.Is(err, readings.ErrNegativeReading):
			h.fail(w, start, "negative_value", "negative value", http.StatusBadRequest)
		case errors.Is(err, readings.ErrReadingRollback):
			h.fail(w, start, "rollback", "value below last confirmed reading", http.StatusBadRequest)
		default:
			h.logger.Printf("smartmeter ingest: submit for %s: %v", req.MeterSerial, err)
			h.fail(w, start, "submit", "submit error", http.StatusInternalServerError)
		}
		return
	}

	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"reading_id": reading.ID,
		"status":     string(reading.Status),
	})
}

func (h *IngestHandler) fail(w http.ResponseWriter, start time.Time, reason, msg string, code int) {
	metrics.ObserveIngest(metrics.ResultError, time.Since(start))
	metrics.IncIngestError(reason)
	http.Error(w, msg, code)
}
