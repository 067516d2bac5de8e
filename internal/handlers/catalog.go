package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/platform/httpx"
	"github.com/elite-furniture/api/internal/platform/pagination"
	"github.com/elite-furniture/api/internal/services"
)

// CatalogHandlers exposes the public product catalog.
type CatalogHandlers struct {
	catalog services.CatalogService
	reviews services.ReviewService
}

const (
	catalogDefaultPageSize = 20
	catalogMaxPageSize     = 50
)

var catalogAllowedSorts = []string{
	string(domain.ProductSortCreatedAt),
	string(domain.ProductSortPrice),
	string(domain.ProductSortRating),
}

// NewCatalogHandlers constructs the public catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService, reviews services.ReviewService) *CatalogHandlers {
	return &CatalogHandlers{
		catalog: catalog,
		reviews: reviews,
	}
}

// Routes wires the catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/products/{productID}/reviews", h.listProductReviews)
	r.Get("/categories", h.listCategories)
}

type productListResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
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
		Category:     strings.TrimSpace(r.URL.Query().Get("category")),
		Search:       strings.TrimSpace(r.URL.Query().Get("search")),
		FeaturedOnly: r.URL.Query().Get("featured") == "true",
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
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productListResponse{
		Products:      buildProductPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	idOrSlug := strings.TrimSpace(chi.URLParam(r, "productID"))
	product, err := h.catalog.GetProduct(ctx, idOrSlug)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]productPayload{"product": buildProductPayload(product)})
}

type reviewListResponse struct {
	Reviews       []reviewPayload `json:"reviews"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

func (h *CatalogHandlers) listProductReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reviews_unavailable", "review service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: catalogDefaultPageSize,
		MaxPageSize:     catalogMaxPageSize,
	})
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	page, err := h.reviews.ListProductReviews(ctx, productID, domain.Pagination{
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

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImagePath   string `json:"imagePath,omitempty"`
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	payloads := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		payloads = append(payloads, categoryPayload{
			ID:          category.ID,
			Name:        category.Name,
			Description: category.Description,
			ImagePath:   category.ImagePath,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string][]categoryPayload{"categories": payloads})
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load catalog data", http.StatusInternalServerError))
	}
}

func writePaginationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pagination.ErrInvalidPageSize):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_page_size", "pageSize must be a positive integer within the allowed range", http.StatusBadRequest))
	case errors.Is(err, pagination.ErrInvalidPageToken):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_page_token", "pageToken is malformed", http.StatusBadRequest))
	case errors.Is(err, pagination.ErrInvalidSort):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_sort", "sort references an unsupported field", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}
