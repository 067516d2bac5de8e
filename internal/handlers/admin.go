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
	"github.com/elite-furniture/api/internal/platform/pagination"
	"github.com/elite-furniture/api/internal/services"
)

// AdminHandlers groups the back-office surfaces: catalog CRUD, order
// lifecycle, transfer-evidence review, and review moderation.
type AdminHandlers struct {
	authn    *auth.Authenticator
	catalog  services.CatalogService
	orders   services.OrderService
	payments services.PaymentService
	reviews  services.ReviewService
}

const maxAdminBodySize = 64 * 1024

// NewAdminHandlers constructs the admin handlers.
func NewAdminHandlers(authn *auth.Authenticator, catalog services.CatalogService, orders services.OrderService, payments services.PaymentService, reviews services.ReviewService) *AdminHandlers {
	return &AdminHandlers{
		authn:    authn,
		catalog:  catalog,
		orders:   orders,
		payments: payments,
		reviews:  reviews,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAdmin())
	}

	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Patch("/products/{productID}/stock", h.setStock)
	r.Patch("/products/{productID}/featured", h.setFeatured)

	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
	r.Post("/orders/{orderID}/cancel", h.cancelOrder)

	r.Get("/payments", h.listPaymentAttempts)
	r.Post("/payments/{attemptID}/verify", h.verifyPayment)
	r.Post("/payments/{attemptID}/reject", h.rejectPayment)
	r.Get("/payments/{attemptID}/receipt-url", h.receiptURL)

	r.Get("/reviews/pending", h.listPendingReviews)
	r.Post("/reviews/{reviewID}/approve", h.approveReview)
	r.Post("/reviews/{reviewID}/reject", h.rejectReview)
}

type productRequest struct {
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       int64    `json:"price"`
	Currency    string   `json:"currency"`
	Images      []string `json:"images"`
	Sizes       []string `json:"sizes"`
	Colors      []string `json:"colors"`
	Tags        []string `json:"tags"`
	Features    []string `json:"features"`
	Stock       int      `json:"stock"`
	IsFeatured  bool     `json:"isFeatured"`
	IsPublished bool     `json:"isPublished"`
}

func (req productRequest) toInput() services.ProductInput {
	return services.ProductInput{
		SKU:         strings.TrimSpace(req.SKU),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price,
		Currency:    strings.TrimSpace(req.Currency),
		Images:      req.Images,
		Sizes:       req.Sizes,
		Colors:      req.Colors,
		Tags:        req.Tags,
		Features:    req.Features,
		Stock:       req.Stock,
		IsFeatured:  req.IsFeatured,
		IsPublished: req.IsPublished,
	}
}

func (h *AdminHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: catalogDefaultPageSize,
		MaxPageSize:     catalogMaxPageSize,
		AllowedSorts:    catalogAllowedSorts,
	})
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	query := services.CatalogQuery{
		Category:           strings.TrimSpace(r.URL.Query().Get("category")),
		Search:             strings.TrimSpace(r.URL.Query().Get("search")),
		IncludeUnpublished: true,
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	if len(params.Sorts) > 0 {
		query.Sort = domain.ProductSort(params.Sorts[0].Field)
		if params.Sorts[0].Desc {
			query.Order = domain.SortDesc
		} else {
			query.Order = domain.SortAsc
		}
	}

	page, err := h.catalog.ListProducts(ctx, query)
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Products:      buildProductPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	req, ok := decodeProductRequest(ctx, w, r)
	if !ok {
		return
	}

	product, err := h.catalog.CreateProduct(ctx, req.toInput())
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]productPayload{"product": buildProductPayload(product)})
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	req, ok := decodeProductRequest(ctx, w, r)
	if !ok {
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	product, err := h.catalog.UpdateProduct(ctx, productID, req.toInput())
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]productPayload{"product": buildProductPayload(product)})
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if err := h.catalog.DeleteProduct(ctx, productID); err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setStockRequest struct {
	Stock int `json:"stock"`
}

func (h *AdminHandlers) setStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req setStockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	product, err := h.catalog.SetStock(ctx, productID, req.Stock)
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]productPayload{"product": buildProductPayload(product)})
}

type setFeaturedRequest struct {
	Featured bool `json:"featured"`
}

func (h *AdminHandlers) setFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req setFeaturedRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	product, err := h.catalog.SetFeatured(ctx, productID, req.Featured)
	if err != nil {
		writeAdminCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]productPayload{"product": buildProductPayload(product)})
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
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

	query := services.OrderQuery{
		Status:        domain.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		PaymentStatus: domain.PaymentStatus(strings.TrimSpace(r.URL.Query().Get("paymentStatus"))),
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}

	page, err := h.orders.ListOrders(ctx, query)
	if err != nil {
		writeAdminOrderError(ctx, w, err)
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

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateOrderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.UpdateStatus(ctx, orderID, domain.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		writeAdminOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

func (h *AdminHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req cancelOrderRequest
	if body, err := readLimitedBody(r, maxAdminBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.CancelOrder(ctx, orderID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeAdminOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]orderPayload{"order": buildOrderPayload(order)})
}

type paymentAttemptListResponse struct {
	Attempts      []paymentAttemptPayload `json:"attempts"`
	NextPageToken string                  `json:"nextPageToken,omitempty"`
}

func (h *AdminHandlers) listPaymentAttempts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
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

	status := domain.PaymentAttemptStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	page, err := h.payments.ListAttempts(ctx, status, domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeAdminPaymentError(ctx, w, err)
		return
	}

	payloads := make([]paymentAttemptPayload, 0, len(page.Items))
	for _, attempt := range page.Items {
		payloads = append(payloads, buildPaymentAttemptPayload(attempt))
	}
	writeJSONResponse(w, http.StatusOK, paymentAttemptListResponse{
		Attempts:      payloads,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
	attempt, err := h.payments.VerifyAttempt(ctx, attemptID, admin.UID)
	if err != nil {
		writeAdminPaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]paymentAttemptPayload{"attempt": buildPaymentAttemptPayload(attempt)})
}

func (h *AdminHandlers) rejectPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
	attempt, err := h.payments.RejectAttempt(ctx, attemptID, admin.UID)
	if err != nil {
		writeAdminPaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]paymentAttemptPayload{"attempt": buildPaymentAttemptPayload(attempt)})
}

func (h *AdminHandlers) receiptURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	attemptID := strings.TrimSpace(chi.URLParam(r, "attemptID"))
	url, err := h.payments.ReceiptDownloadURL(ctx, attemptID)
	if err != nil {
		writeAdminPaymentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}

func (h *AdminHandlers) listPendingReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := h.requireAdmin(ctx, w); !ok {
		return
	}
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
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

	page, err := h.reviews.ListPendingReviews(ctx, domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, reviewListResponse{
		Reviews:       buildReviewPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminHandlers) approveReview(w http.ResponseWriter, r *http.Request) {
	h.moderateReview(w, r, true)
}

func (h *AdminHandlers) rejectReview(w http.ResponseWriter, r *http.Request) {
	h.moderateReview(w, r, false)
}

func (h *AdminHandlers) moderateReview(w http.ResponseWriter, r *http.Request, approve bool) {
	ctx := r.Context()
	admin, ok := h.requireAdmin(ctx, w)
	if !ok {
		return
	}
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}

	reviewID := strings.TrimSpace(chi.URLParam(r, "reviewID"))
	review, err := h.reviews.Moderate(ctx, reviewID, approve, admin.UID)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]reviewPayload{"review": buildReviewPayload(review)})
}

func (h *AdminHandlers) requireAdmin(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeAdminCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductConflict):
		httpx.WriteError(ctx, w, httpx.NewError("product_conflict", "product conflicts with an existing entry", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to update catalog", http.StatusInternalServerError))
	}
}

func writeAdminOrderError(ctx context.Context, w http.ResponseWriter, err error) {
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
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to update order", http.StatusInternalServerError))
	}
}

func writeAdminPaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentAttemptNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("attempt_not_found", "payment attempt not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentAttemptSettled):
		httpx.WriteError(ctx, w, httpx.NewError("attempt_settled", "payment attempt has already been settled", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payments_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to update payment attempt", http.StatusInternalServerError))
	}
}

func decodeProductRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (productRequest, bool) {
	var req productRequest
	body, err := readLimitedBody(r, maxAdminBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return req, false
	}
	return req, true
}
