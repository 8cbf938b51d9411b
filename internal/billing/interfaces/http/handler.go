package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"waterworks/internal/audit"
	"waterworks/internal/auth"
	billingapp "waterworks/internal/billing/application"
	billing "waterworks/internal/billing/domain"
	registry "waterworks/internal/registry/domain"
)

// Handler provides billing, payment and penalty HTTP endpoints.
type Handler struct {
	billing     *billingapp.BillingService
	payments    *billingapp.PaymentService
	summary     *billingapp.SummaryService
	sweep       *billingapp.SweepService
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(
	billingService *billingapp.BillingService,
	payments *billingapp.PaymentService,
	summary *billingapp.SummaryService,
	sweep *billingapp.SweepService,
	auditLogger audit.Logger,
) (*Handler, error) {
	if billingService == nil {
		return nil, errors.New("billing handler: nil billing service")
	}
	if payments == nil {
		return nil, errors.New("billing handler: nil payment service")
	}
	if summary == nil {
		return nil, errors.New("billing handler: nil summary service")
	}
	if sweep == nil {
		return nil, errors.New("billing handler: nil sweep service")
	}
	return &Handler{
		billing:     billingService,
		payments:    payments,
		summary:     summary,
		sweep:       sweep,
		auditLogger: auditLogger,
	}, nil
}

type billPayload struct {
	ID            string     `json:"id"`
	ConsumerID    string     `json:"consumer_id"`
	BillingPeriod time.Time  `json:"billing_period"`
	DueDate       time.Time  `json:"due_date"`
	Consumption   int        `json:"consumption"`
	RatePerCubic  string     `json:"rate_per_cubic"`
	TotalAmount   string     `json:"total_amount"`
	PenaltyAmount string     `json:"penalty_amount"`
	DaysOverdue   int        `json:"days_overdue"`
	PenaltyWaived bool       `json:"penalty_waived"`
	SeniorDisc    string     `json:"senior_citizen_discount"`
	AmountDue     string     `json:"amount_due"`
	Status        string     `json:"status"`
	WaivedBy      string     `json:"penalty_waived_by,omitempty"`
	WaivedReason  string     `json:"penalty_waived_reason,omitempty"`
	WaivedAt      *time.Time `json:"penalty_waived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toBillPayload(bill *billing.Bill) billPayload {
	return billPayload{
		ID:            bill.ID,
		ConsumerID:    bill.ConsumerID,
		BillingPeriod: bill.BillingPeriod,
		DueDate:       bill.DueDate,
		Consumption:   bill.Consumption,
		RatePerCubic:  bill.RatePerCubic.StringFixed(2),
		TotalAmount:   bill.TotalAmount.StringFixed(2),
		PenaltyAmount: bill.PenaltyAmount.StringFixed(2),
		DaysOverdue:   bill.DaysOverdue,
		PenaltyWaived: bill.PenaltyWaived,
		SeniorDisc:    bill.SeniorCitizenDiscount.StringFixed(2),
		AmountDue:     bill.AmountDue().StringFixed(2),
		Status:        string(bill.Status),
		WaivedBy:      bill.PenaltyWaivedBy,
		WaivedReason:  bill.PenaltyWaivedReason,
		WaivedAt:      bill.PenaltyWaivedAt,
		CreatedAt:     bill.CreatedAt,
	}
}

type tierLine struct {
	Units  int    `json:"units"`
	Rate   string `json:"rate,omitempty"`
	Amount string `json:"amount"`
}

type breakdownPayload struct {
	Consumption   int        `json:"consumption"`
	UsageClass    string     `json:"usage_class"`
	MinimumCharge string     `json:"minimum_charge"`
	FixedCharge   string     `json:"fixed_charge"`
	Tiers         []tierLine `json:"tiers"`
	Total         string     `json:"total"`
	PenaltyAmount string     `json:"penalty_amount"`
	DaysOverdue   int        `json:"days_overdue"`
	SeniorDisc    string     `json:"senior_citizen_discount"`
	AmountDue     string     `json:"amount_due"`
	Penalty       string     `json:"penalty_explanation,omitempty"`
}

func toBreakdownPayload(bill *billing.Bill, explanation string) breakdownPayload {
	b := bill.Breakdown
	return breakdownPayload{
		Consumption:   b.Consumption,
		UsageClass:    string(b.UsageClass),
		MinimumCharge: b.MinimumCharge.StringFixed(2),
		FixedCharge:   bill.FixedCharge.StringFixed(2),
		Tiers: []tierLine{
			{Units: b.Tier1Units, Amount: b.Tier1Amount.StringFixed(2)},
			{Units: b.Tier2Units, Rate: b.Tier2Rate.StringFixed(2), Amount: b.Tier2Amount.StringFixed(2)},
			{Units: b.Tier3Units, Rate: b.Tier3Rate.StringFixed(2), Amount: b.Tier3Amount.StringFixed(2)},
			{Units: b.Tier4Units, Rate: b.Tier4Rate.StringFixed(2), Amount: b.Tier4Amount.StringFixed(2)},
			{Units: b.Tier5Units, Rate: b.Tier5Rate.StringFixed(2), Amount: b.Tier5Amount.StringFixed(2)},
		},
		Total:         bill.TotalAmount.StringFixed(2),
		PenaltyAmount: bill.EffectivePenalty().StringFixed(2),
		DaysOverdue:   bill.DaysOverdue,
		SeniorDisc:    bill.EffectiveSeniorDiscount().StringFixed(2),
		AmountDue:     bill.AmountDue().StringFixed(2),
		Penalty:       explanation,
	}
}

type paymentPayload struct {
	ID                 string    `json:"id"`
	BillID             string    `json:"bill_id"`
	ORNumber           string    `json:"or_number"`
	OriginalBillAmount string    `json:"original_bill_amount"`
	PenaltyAmount      string    `json:"penalty_amount"`
	PenaltyWaived      bool      `json:"penalty_waived"`
	DaysOverdueAtPay   int       `json:"days_overdue_at_pay"`
	AmountPaid         string    `json:"amount_paid"`
	ReceivedAmount     string    `json:"received_amount"`
	Change             string    `json:"change"`
	ProcessedBy        string    `json:"processed_by,omitempty"`
	Remarks            string    `json:"remarks,omitempty"`
	PaidAt             time.Time `json:"paid_at"`
}

func toPaymentPayload(payment *billing.Payment) paymentPayload {
	return paymentPayload{
		ID:                 payment.ID,
		BillID:             payment.BillID,
		ORNumber:           payment.ORNumber,
		OriginalBillAmount: payment.OriginalBillAmount.StringFixed(2),
		PenaltyAmount:      payment.PenaltyAmount.StringFixed(2),
		PenaltyWaived:      payment.PenaltyWaived,
		DaysOverdueAtPay:   payment.DaysOverdueAtPay,
		AmountPaid:         payment.AmountPaid.StringFixed(2),
		ReceivedAmount:     payment.ReceivedAmount.StringFixed(2),
		Change:             payment.Change.StringFixed(2),
		ProcessedBy:        payment.ProcessedBy,
		Remarks:            payment.Remarks,
		PaidAt:             payment.PaidAt,
	}
}

// Bills routes /api/v1/bills requests.
func (h *Handler) Bills(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bills")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.handleListBills(w, r)
	default:
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			h.handleGetBill(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "breakdown" && r.Method == http.MethodGet:
			h.handleBreakdown(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "waive-penalty" && r.Method == http.MethodPost:
			h.handleWaive(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// Payments routes /api/v1/payments requests.
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/payments")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.handleProcessPayment(w, r)
	case rest == "" && r.Method == http.MethodGet:
		h.handleListPayments(w, r)
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodGet:
		h.handleGetPayment(w, r, rest)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Penalties routes /api/v1/penalties requests.
func (h *Handler) Penalties(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/penalties")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "sweep" && r.Method == http.MethodPost:
		h.handleSweep(w, r)
	case rest == "summary" && r.Method == http.MethodGet:
		h.handleSummary(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleListBills(w http.ResponseWriter, r *http.Request) {
	consumerID := r.URL.Query().Get("consumer_id")
	if consumerID == "" {
		http.Error(w, "consumer_id is required", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	bills, err := h.billing.ListBills(r.Context(), consumerID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	payloads := make([]billPayload, 0, len(bills))
	for i := range bills {
		payloads = append(payloads, toBillPayload(&bills[i]))
	}
	respondJSON(w, payloads)
}

func (h *Handler) handleGetBill(w http.ResponseWriter, r *http.Request, id string) {
	bill, err := h.billing.GetBill(r.Context(), id)
	if err != nil {
		respondBillingError(w, err)
		return
	}
	respondJSON(w, toBillPayload(bill))
}

func (h *Handler) handleBreakdown(w http.ResponseWriter, r *http.Request, id string) {
	bill, err := h.billing.GetBill(r.Context(), id)
	if err != nil {
		respondBillingError(w, err)
		return
	}
	explanation, err := h.billing.PenaltyExplanation(r.Context(), bill)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, toBreakdownPayload(bill, explanation))
}

type waiveRequest struct {
	Reason string `json:"reason"`
}

type waiveResponse struct {
	Bill    billPayload `json:"bill"`
	Message string      `json:"message"`
}

func (h *Handler) handleWaive(w http.ResponseWriter, r *http.Request, id string) {
	var req waiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if strings.TrimSpace(req.Reason) == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}

	actor := auth.SubjectFromContext(r.Context())
	bill, message, err := h.billing.WaivePenalty(r.Context(), id, actor, req.Reason)
	if err != nil {
		if errors.Is(err, billing.ErrBillNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		// Waive refusals carry the explanation in the message.
		if message != "" {
			http.Error(w, message, http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, waiveResponse{Bill: toBillPayload(bill), Message: message})

	h.logAudit(r, audit.Entry{
		Action:       audit.ActionPenaltyWaived,
		ResourceType: "bill",
		ResourceID:   bill.ID,
		ConsumerID:   bill.ConsumerID,
	}, map[string]any{
		"reason":  req.Reason,
		"penalty": bill.PenaltyAmount.StringFixed(2),
	})
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req billingapp.ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.ProcessedBy == "" {
		req.ProcessedBy = auth.SubjectFromContext(r.Context())
	}

	payment, err := h.payments.ProcessPayment(r.Context(), req)
	if err != nil {
		respondBillingError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toPaymentPayload(payment))

	h.logAudit(r, audit.Entry{
		Action:       audit.ActionPaymentProcessed,
		ResourceType: "payment",
		ResourceID:   payment.ID,
	}, map[string]any{
		"bill_id":     payment.BillID,
		"or_number":   payment.ORNumber,
		"amount_paid": payment.AmountPaid.StringFixed(2),
	})
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request, id string) {
	payment, err := h.payments.GetPayment(r.Context(), id)
	if err != nil {
		respondBillingError(w, err)
		return
	}
	respondJSON(w, toPaymentPayload(payment))
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	from, to, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payments, err := h.payments.ListPayments(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	payloads := make([]paymentPayload, 0, len(payments))
	for i := range payments {
		payloads = append(payloads, toPaymentPayload(&payments[i]))
	}
	respondJSON(w, payloads)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweep.Run(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, result)

	h.logAudit(r, audit.Entry{
		Action:       audit.ActionPenaltySweep,
		ResourceType: "penalty_sweep",
	}, map[string]any{
		"total":   result.Total,
		"updated": result.Updated,
	})
}

type summaryPayload struct {
	TotalCharged string `json:"total_charged"`
	Waived       string `json:"waived"`
	Paid         string `json:"paid"`
	Outstanding  string `json:"outstanding"`
	OverdueCount int    `json:"overdue_count"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.summary.PenaltySummary(r.Context(), from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, summaryPayload{
		TotalCharged: summary.TotalCharged.StringFixed(2),
		Waived:       summary.Waived.StringFixed(2),
		Paid:         summary.Paid.StringFixed(2),
		Outstanding:  summary.Outstanding.StringFixed(2),
		OverdueCount: summary.OverdueCount,
	})
}

// parsePeriod reads from/to query dates (YYYY-MM-DD). Defaults to the current
// month when absent; to is exclusive.
func parsePeriod(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

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

func (h *Handler) logAudit(r *http.Request, entry audit.Entry, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	encoded, _ := json.Marshal(meta)
	entry.Actor = auth.SubjectFromContext(r.Context())
	entry.Role = string(auth.RoleFromContext(r.Context()))
	entry.Metadata = encoded
	entry.IP = audit.ClientIP(r)
	entry.UserAgent = r.UserAgent()
	_ = h.auditLogger.Log(r.Context(), entry)
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func respondBillingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrBillNotFound),
		errors.Is(err, billing.ErrPaymentNotFound),
		errors.Is(err, registry.ErrConsumerNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, billing.ErrBillAlreadyPaid):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, billing.ErrInsufficientPayment),
		errors.Is(err, billingapp.ErrInvalidAmount),
		errors.Is(err, billing.ErrNegativeConsumption),
		errors.Is(err, billingapp.ErrConsumerInactive):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
