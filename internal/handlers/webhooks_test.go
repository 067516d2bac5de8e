package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elite-furniture/api/internal/services"
)

func TestWebhookPaystackNormalisesSuccessEvent(t *testing.T) {
	payments := &stubPaymentService{}
	handler := NewWebhookHandlers(payments)
	router := NewRouter(WithWebhookRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", jsonBody(t, map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": "tr-TEST",
			"amount":    4_500_000,
			"currency":  "ngn",
			"paid_at":   "2026-03-01T10:05:00Z",
		},
	}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(payments.events) != 1 {
		t.Fatalf("expected one event, got %d", len(payments.events))
	}
	event := payments.events[0]
	if event.Kind != services.GatewayEventChargeSucceeded {
		t.Fatalf("expected success kind, got %q", event.Kind)
	}
	if event.Reference != "tr-TEST" || event.Amount != 4_500_000 || event.Currency != "NGN" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.OccurredAt.IsZero() {
		t.Fatal("expected paid_at to be parsed")
	}
}

func TestWebhookPaystackFailedCharge(t *testing.T) {
	payments := &stubPaymentService{}
	handler := NewWebhookHandlers(payments)
	router := NewRouter(WithWebhookRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", jsonBody(t, map[string]any{
		"event": "charge.failed",
		"data":  map[string]any{"reference": "tr-TEST"},
	}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(payments.events) != 1 || payments.events[0].Kind != services.GatewayEventChargeFailed {
		t.Fatalf("expected failed kind, got %+v", payments.events)
	}
}

func TestWebhookFlutterwaveConvertsMajorUnits(t *testing.T) {
	payments := &stubPaymentService{}
	handler := NewWebhookHandlers(payments)
	router := NewRouter(WithWebhookRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/flutterwave", jsonBody(t, map[string]any{
		"event": "charge.completed",
		"data": map[string]any{
			"tx_ref":   "tr-TEST",
			"amount":   45000.00,
			"currency": "NGN",
			"status":   "successful",
		},
	}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(payments.events) != 1 {
		t.Fatalf("expected one event, got %d", len(payments.events))
	}
	event := payments.events[0]
	if event.Kind != services.GatewayEventChargeSucceeded {
		t.Fatalf("expected success kind, got %q", event.Kind)
	}
	if event.Amount != 4_500_000 {
		t.Fatalf("expected amount in kobo, got %d", event.Amount)
	}
}

func TestWebhookFlutterwaveUnsuccessfulStatus(t *testing.T) {
	payments := &stubPaymentService{}
	handler := NewWebhookHandlers(payments)
	router := NewRouter(WithWebhookRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/flutterwave", jsonBody(t, map[string]any{
		"event": "charge.completed",
		"data": map[string]any{
			"tx_ref": "tr-TEST",
			"status": "failed",
		},
	}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(payments.events) != 1 || payments.events[0].Kind != services.GatewayEventChargeFailed {
		t.Fatalf("expected failed kind, got %+v", payments.events)
	}
}

func TestWebhookServiceErrorReturns500(t *testing.T) {
	payments := &stubPaymentService{
		eventFn: func(context.Context, services.GatewayEvent) error {
			return errors.New("backend down")
		},
	}
	handler := NewWebhookHandlers(payments)
	router := NewRouter(WithWebhookRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", jsonBody(t, map[string]any{
		"event": "charge.success",
		"data":  map[string]any{"reference": "tr-TEST"},
	}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	handler := NewWebhookHandlers(&stubPaymentService{})
	router := NewRouter(WithWebhookRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
