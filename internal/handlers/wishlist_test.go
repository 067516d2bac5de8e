package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/services"
)

type stubWishlistService struct {
	listFn   func(context.Context, string) ([]domain.Product, error)
	addFn    func(context.Context, string, string) error
	removeFn func(context.Context, string, string) error
}

func (s *stubWishlistService) List(ctx context.Context, userID string) ([]domain.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubWishlistService) Add(ctx context.Context, userID string, productID string) error {
	if s.addFn != nil {
		return s.addFn(ctx, userID, productID)
	}
	return nil
}

func (s *stubWishlistService) Remove(ctx context.Context, userID string, productID string) error {
	if s.removeFn != nil {
		return s.removeFn(ctx, userID, productID)
	}
	return nil
}

func TestWishlistListReturnsProducts(t *testing.T) {
	service := &stubWishlistService{
		listFn: func(_ context.Context, userID string) ([]domain.Product, error) {
			if userID != "user-3" {
				t.Fatalf("unexpected user %q", userID)
			}
			return []domain.Product{sampleProduct("prd_1")}, nil
		},
	}
	handler := NewWishlistHandlers(nil, service)
	router := NewRouter(WithWishlistRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wishlist/", nil)
	req = asUser(req, "user-3")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Products []productPayload `json:"products"`
	}
	decodeBody(t, rr.Body.Bytes(), &body)
	if len(body.Products) != 1 || body.Products[0].ID != "prd_1" {
		t.Fatalf("unexpected products: %+v", body.Products)
	}
}

func TestWishlistAddUnknownProduct(t *testing.T) {
	service := &stubWishlistService{
		addFn: func(context.Context, string, string) error {
			return services.ErrWishlistProductNotFound
		},
	}
	handler := NewWishlistHandlers(nil, service)
	router := NewRouter(WithWishlistRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/wishlist/prd_missing", nil)
	req = asUser(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestWishlistRemoveIsIdempotent(t *testing.T) {
	var removed string
	service := &stubWishlistService{
		removeFn: func(_ context.Context, _ string, productID string) error {
			removed = productID
			return nil
		},
	}
	handler := NewWishlistHandlers(nil, service)
	router := NewRouter(WithWishlistRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/wishlist/prd_1", nil)
	req = asUser(req, "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if removed != "prd_1" {
		t.Fatalf("expected removal of prd_1, got %q", removed)
	}
}

func TestWishlistRequiresIdentity(t *testing.T) {
	handler := NewWishlistHandlers(nil, &stubWishlistService{})
	router := NewRouter(WithWishlistRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wishlist/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
