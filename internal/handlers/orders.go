package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/platform/auth"
	"github.com/elite-furniture/api/internal/platform/httpx"
	"github.com/elite-furniture/api/internal/platform/pagination"
	"github.com/elite-furniture/api/internal/services"
)

// OrderHandlers exposes the authenticated order history plus the
// bank-transfer evidence upload.
type OrderHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	payments services.PaymentService
	uploads  *uploadLimiter
}

const (
	maxOrderBodySize      = 16 * 1024
	maxReceiptUploadSize  = 5 << 20
	receiptUploadLimit    = 5
	receiptUploadWindow   = time.Hour
	ordersDefaultPageSize = 20
	ordersMaxPageSize     = 50
)

// OrderHandlersOption customises the order handlers.
type OrderHandlersOption func(*OrderHandlers)

// WithUploadLimiter overrides the receipt upload limiter, mainly for tests.
func WithUploadLimiter(limiter *uploadLimiter) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.uploads = limiter
	}
}

// NewOrderHandlers constructs handlers for the /orders endpoints.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, payments services.PaymentService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:    authn,
		orders:   orders,
		payments: payments,
		uploads:  newUploadLimiter(receiptUploadLimit, receiptUploadWindow, nil),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
	r.Post("/{orderID}/transfer-evidence", h.submitTransferEvidence)
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: ordersDefaultPageSize,
		MaxPageSize:     ordersMaxPageSize,
	})
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	page, err := h.orders.ListUserOrders(ctx, identity.UID, domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	payloads := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		payloads = append(payloads, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Orders:        payloads,
		NextPageToken: page.NextPageToken,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.GetUserOrder(ctx, identity.UID, orderID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))

	// Ownership gate: cancellation itself is keyed by order ID only.
	if _, err := h.orders.GetUserOrder(ctx, identity.UID, orderID); err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	var req cancelOrderRequest
	if body, err := readLimitedBody(r, maxOrderBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.CancelOrder(ctx, orderID, strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

type paymentAttemptPayload struct {
	ID          string `json:"id"`
	OrderID     string `json:"orderId"`
	Amount      int64  `json:"amount"`
	Method      string `json:"method"`
	Status      string `json:"status"`
	ReceiptPath string `json:"receiptPath,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

func buildPaymentAttemptPayload(attempt domain.PaymentAttempt) paymentAttemptPayload {
	return paymentAttemptPayload{
		ID:          attempt.ID,
		OrderID:     attempt.OrderID,
		Amount:      attempt.Amount,
		Method:      string(attempt.Method),
		Status:      string(attempt.Status),
		ReceiptPath: attempt.ReceiptPath,
		CreatedAt:   formatTime(attempt.CreatedAt),
	}
}

func (h *OrderHandlers) submitTransferEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if !h.uploads.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("too_many_uploads", "too many receipt uploads; try again later", http.StatusTooManyRequests))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptUploadSize)
	if err := r.ParseMultipartForm(maxReceiptUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "receipt exceeds the allowed size", http.StatusRequestEntityTooLarge))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected a multipart form with a receipt file", http.StatusBadRequest))
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "receipt file is required", http.StatusBadRequest))
		return
	}
	defer file.Close()

	attempt, err := h.payments.SubmitTransferEvidence(ctx, services.TransferEvidenceInput{
		OrderID:     strings.TrimSpace(chi.URLParam(r, "orderID")),
		UserID:      identity.UID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.writePaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]paymentAttemptPayload{"attempt": buildPaymentAttemptPayload(attempt)})
}

func (h *OrderHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_order_state", "order cannot change to the requested state", http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to load order", http.StatusInternalServerError))
	}
}

func (h *OrderHandlers) writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentAttemptNotFound), errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentNotEligible):
		httpx.WriteError(ctx, w, httpx.NewError("not_eligible", "order does not accept transfer evidence", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentDuplicatePending):
		httpx.WriteError(ctx, w, httpx.NewError("evidence_pending", "evidence for this order is already awaiting review", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to record payment evidence", http.StatusInternalServerError))
	}
}
