package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/platform/auth"
	"github.com/elite-furniture/api/internal/platform/httpx"
	"github.com/elite-furniture/api/internal/services"
)

// CheckoutHandlers drives the checkout attempt lifecycle for the current user.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

const maxCheckoutBodySize = 16 * 1024

// NewCheckoutHandlers constructs handlers for the /checkout endpoints.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.begin)
	r.Get("/{reference}", h.getAttempt)
	r.Post("/{reference}/confirm", h.confirm)
}

type beginCheckoutRequest struct {
	Email           string `json:"email"`
	CustomerName    string `json:"customerName"`
	ShippingAddress string `json:"shippingAddress"`
	Phone           string `json:"phone"`
	Notes           string `json:"notes"`
	Method          string `json:"method"`
	CallbackURL     string `json:"callbackUrl"`
}

type checkoutSessionPayload struct {
	Reference   string `json:"reference"`
	State       string `json:"state"`
	Method      string `json:"method"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

func buildCheckoutSessionPayload(session services.CheckoutSession) checkoutSessionPayload {
	return checkoutSessionPayload{
		Reference:   session.Reference,
		State:       string(session.State),
		Method:      string(session.Method),
		Amount:      session.Amount,
		Currency:    session.Currency,
		RedirectURL: session.RedirectURL,
		OrderID:     session.OrderID,
		ExpiresAt:   formatTime(session.ExpiresAt),
	}
}

func (h *CheckoutHandlers) begin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req beginCheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	session, err := h.checkout.Begin(ctx, services.BeginCheckoutInput{
		UserID:          identity.UID,
		Email:           strings.TrimSpace(req.Email),
		CustomerName:    strings.TrimSpace(req.CustomerName),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Phone:           strings.TrimSpace(req.Phone),
		Notes:           strings.TrimSpace(req.Notes),
		Method:          domain.PaymentMethod(strings.TrimSpace(req.Method)),
		CallbackURL:     strings.TrimSpace(req.CallbackURL),
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]checkoutSessionPayload{"session": buildCheckoutSessionPayload(session)})
}

func (h *CheckoutHandlers) getAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	attempt, err := h.checkout.GetAttempt(ctx, identity.UID, reference)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	payload := checkoutSessionPayload{
		Reference:   attempt.Reference,
		State:       string(attempt.State),
		Method:      string(attempt.Method),
		Amount:      attempt.Amount,
		Currency:    attempt.Currency,
		RedirectURL: attempt.RedirectURL,
		OrderID:     attempt.OrderID,
		ExpiresAt:   formatTime(attempt.ExpiresAt),
	}
	writeJSONResponse(w, http.StatusOK, map[string]checkoutSessionPayload{"session": payload})
}

func (h *CheckoutHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	order, err := h.checkout.Confirm(ctx, identity.UID, reference)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

func (h *CheckoutHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutAttemptNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_not_found", "checkout attempt not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutPaymentPending):
		httpx.WriteError(ctx, w, httpx.NewError("payment_pending", "payment has not completed yet", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutAttemptFailed):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_failed", "checkout attempt has failed", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCartProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "a cart item is no longer available", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout", http.StatusInternalServerError))
	}
}
