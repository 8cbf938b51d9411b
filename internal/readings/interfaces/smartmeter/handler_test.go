package smartmeter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	billingapp "waterworks/internal/billing/application"
	billing "waterworks/internal/billing/domain"
	readingsapp "waterworks/internal/readings/application"
	memoryrepo "waterworks/internal/readings/infrastructure/memory"
	registry "waterworks/internal/registry/domain"
)

type stubResolver struct {
	consumers map[string]*registry.Consumer
}

func (s *stubResolver) GetByMeterSerial(ctx context.Context, serial string) (*registry.Consumer, error) {
	_ = ctx
	consumer := s.consumers[serial]
	if consumer == nil {
		return nil, registry.ErrConsumerNotFound
	}
	return consumer, nil
}

func (s *stubResolver) Get(ctx context.Context, id string) (*registry.Consumer, error) {
	_ = ctx
	for _, consumer := range s.consumers {
		if consumer.ID == id {
			return consumer, nil
		}
	}
	return nil, nil
}

type noopBillCreator struct{}

func (noopBillCreator) CreateBill(ctx context.Context, req billingapp.CreateBillRequest) (*billing.Bill, error) {
	_ = ctx
	return &billing.Bill{ID: "bill-1", ConsumerID: req.ConsumerID}, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newIngestHandler(t *testing.T) *IngestHandler {
	t.Helper()
	resolver := &stubResolver{consumers: map[string]*registry.Consumer{
		"WM-001": {ID: "con-1", MeterSerial: "WM-001", Status: registry.StatusActive},
	}}
	service, err := readingsapp.NewReadingService(
		memoryrepo.NewReadingRepository(),
		resolver,
		noopBillCreator{},
		fixedClock{now: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)},
		nil,
	)
	if err != nil {
		t.Fatalf("new reading service: %v", err)
	}
	handler, err := NewIngestHandler(service, resolver, nil)
	if err != nil {
		t.Fatalf("new ingest handler: %v", err)
	}
	return handler
}

func TestIngestHandler_AcceptsReading(t *testing.T) {
	handler := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest/smart-meter",
		strings.NewReader(`{"meter_serial":"WM-001","value":42}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "pending") {
		t.Fatalf("expected pending reading, got %s", rec.Body.String())
	}
}

func TestIngestHandler_UnknownMeter(t *testing.T) {
	handler := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest/smart-meter",
		strings.NewReader(`{"meter_serial":"WM-404","value":42}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestIngestHandler_RejectsInvalid(t *testing.T) {
	handler := newIngestHandler(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing serial", `{"value":10}`, http.StatusBadRequest},
		{"negative value", `{"meter_serial":"WM-001","value":-1}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/ingest/smart-meter", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestIngestHandler_MethodNotAllowed(t *testing.T) {
	handler := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/ingest/smart-meter", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
