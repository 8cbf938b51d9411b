package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	billingapp "waterworks/internal/billing/application"
	billing "waterworks/internal/billing/domain"
	"waterworks/internal/observability/metrics"
	registry "waterworks/internal/registry/domain"
)

// ConsumerDirectory resolves consumers for report rows.
type ConsumerDirectory interface {
	Get(ctx context.Context, id string) (*registry.Consumer, error)
}

// Handler serves /api/v1/exports.
type Handler struct {
	bills     billing.BillRepository
	billing   *billingapp.BillingService
	payments  *billingapp.PaymentService
	consumers ConsumerDirectory
	clock     billingapp.Clock
}

// NewHandler constructs an export handler.
func NewHandler(
	bills billing.BillRepository,
	billingService *billingapp.BillingService,
	payments *billingapp.PaymentService,
	consumers ConsumerDirectory,
	clock billingapp.Clock,
) (*Handler, error) {
	if bills == nil {
		return nil, errors.New("export handler: nil bill repo")
	}
	if billingService == nil {
		return nil, errors.New("export handler: nil billing service")
	}
	if payments == nil {
		return nil, errors.New("export handler: nil payment service")
	}
	if consumers == nil {
		return nil, errors.New("export handler: nil consumer directory")
	}
	if clock == nil {
		clock = billingapp.SystemClock{}
	}
	return &Handler{
		bills:     bills,
		billing:   billingService,
		payments:  payments,
		consumers: consumers,
		clock:     clock,
	}, nil
}

// ServeHTTP routes /api/v1/exports requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/exports")
	rest = strings.Trim(rest, "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[0] == "receipts" && strings.HasSuffix(parts[1], ".pdf"):
		h.handleReceipt(w, r, strings.TrimSuffix(parts[1], ".pdf"))
	case rest == "delinquents.xlsx":
		h.handleDelinquent(w, r)
	case rest == "collections.csv":
		h.handleCollections(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request, paymentID string) {
	start := h.clock.Now()

	payment, err := h.payments.GetPayment(r.Context(), paymentID)
	if err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(start))
		if errors.Is(err, billing.ErrPaymentNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Receipt context is best effort; a missing bill or consumer still
	// produces a receipt from the payment record alone.
	bill, _ := h.billing.GetBill(r.Context(), payment.BillID)
	var consumer *registry.Consumer
	if bill != nil {
		consumer, _ = h.consumers.Get(r.Context(), bill.ConsumerID)
	}

	data, err := BuildReceiptPDF(payment, bill, consumer)
	if err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "receipt-"+payment.ORNumber+".pdf"))
	_, _ = w.Write(data)
}

func (h *Handler) handleDelinquent(w http.ResponseWriter, r *http.Request) {
	start := h.clock.Now()
	today := h.clock.Now()

	overdue, err := h.bills.ListOverdue(r.Context(), today)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rows := make([]DelinquentRow, 0, len(overdue))
	for i := range overdue {
		bill := &overdue[i]
		if _, err := h.billing.RefreshPenalty(r.Context(), bill); err != nil {
			metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		row := DelinquentRow{
			BillID:        bill.ID,
			BillingPeriod: bill.BillingPeriod,
			DueDate:       bill.DueDate,
			DaysOverdue:   bill.DaysOverdue,
			TotalAmount:   bill.TotalAmount.StringFixed(2),
			Penalty:       bill.EffectivePenalty().StringFixed(2),
			AmountDue:     bill.AmountDue().StringFixed(2),
		}
		if consumer, err := h.consumers.Get(r.Context(), bill.ConsumerID); err == nil && consumer != nil {
			row.AccountNumber = consumer.AccountNumber
			row.ConsumerName = consumer.FullName()
			row.Address = consumer.Address
		}
		rows = append(rows, row)
	}

	data, err := BuildDelinquentXLSX(rows, today)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "delinquent-"+today.Format("2006-01-02")+".xlsx"))
	_, _ = w.Write(data)
}

func (h *Handler) handleCollections(w http.ResponseWriter, r *http.Request) {
	start := h.clock.Now()

	from, to, err := parsePeriod(r, h.clock.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payments, err := h.payments.ListPayments(r.Context(), from, to)
	if err != nil {
		metrics.ObserveExport("csv", metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := BuildCollectionsCSV(payments)
	if err != nil {
		metrics.ObserveExport("csv", metrics.ResultError, time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("csv", metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "collections-"+from.Format("2006-01-02")+".csv"))
	_, _ = w.Write(data)
}

func parsePeriod(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from date")
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to date")
		}
		to = parsed
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}
