package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elite-furniture/api/internal/platform/httpx"
	"github.com/elite-furniture/api/internal/services"
)

// WebhookHandlers ingests gateway callbacks. Signature validation happens in
// the webhook middleware group; payloads are still never trusted for payment
// state, the payment service re-verifies against the gateway API.
type WebhookHandlers struct {
	payments services.PaymentService
}

const maxWebhookBodySize = 256 * 1024

// NewWebhookHandlers constructs handlers for the /webhooks endpoints.
func NewWebhookHandlers(payments services.PaymentService) *WebhookHandlers {
	return &WebhookHandlers{payments: payments}
}

// Routes wires the gateway callback endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/paystack", h.paystack)
	r.Post("/flutterwave", h.flutterwave)
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

func (h *WebhookHandlers) paystack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var event paystackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	kind := services.GatewayEventChargeFailed
	if event.Event == "charge.success" {
		kind = services.GatewayEventChargeSucceeded
	}

	occurredAt, _ := time.Parse(time.RFC3339, event.Data.PaidAt)
	if err := h.payments.HandleGatewayEvent(ctx, services.GatewayEvent{
		Kind:       kind,
		Reference:  strings.TrimSpace(event.Data.Reference),
		Amount:     event.Data.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(event.Data.Currency)),
		OccurredAt: occurredAt,
	}); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process event", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		TxRef    string  `json:"tx_ref"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
	} `json:"data"`
}

func (h *WebhookHandlers) flutterwave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var event flutterwaveEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	kind := services.GatewayEventChargeFailed
	if event.Event == "charge.completed" && strings.EqualFold(event.Data.Status, "successful") {
		kind = services.GatewayEventChargeSucceeded
	}

	// Flutterwave reports amounts in major units; internal amounts are kobo.
	amount := int64(math.Round(event.Data.Amount * 100))
	if err := h.payments.HandleGatewayEvent(ctx, services.GatewayEvent{
		Kind:      kind,
		Reference: strings.TrimSpace(event.Data.TxRef),
		Amount:    amount,
		Currency:  strings.ToUpper(strings.TrimSpace(event.Data.Currency)),
	}); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process event", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
