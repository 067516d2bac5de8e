package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/services"
)

func TestReviewCreateForwardsIdentityAndProduct(t *testing.T) {
	var captured services.CreateReviewInput
	reviews := &stubReviewService{
		createFn: func(_ context.Context, input services.CreateReviewInput) (domain.Review, error) {
			captured = input
			return domain.Review{
				ID:        "rev_1",
				ProductID: input.ProductID,
				UserID:    input.UserID,
				Rating:    input.Rating,
				Status:    domain.ReviewStatusPending,
			}, nil
		},
	}
	handler := NewReviewHandlers(nil, reviews)
	router := NewRouter(WithReviewRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/prd_1/reviews", jsonBody(t, map[string]any{
		"rating":  5,
		"title":   "Solid build",
		"comment": "Sturdy and well finished.",
	}))
	req = asUser(req, "user-4")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ProductID != "prd_1" || captured.UserID != "user-4" || captured.Rating != 5 {
		t.Fatalf("unexpected input: %+v", captured)
	}

	var body struct {
		Review reviewPayload `json:"review"`
	}
	decodeBody(t, rr.Body.Bytes(), &body)
	if body.Review.Status != "pending" {
		t.Fatalf("expected pending review, got %+v", body.Review)
	}
}

func TestReviewCreateInvalidRating(t *testing.T) {
	reviews := &stubReviewService{
		createFn: func(context.Context, services.CreateReviewInput) (domain.Review, error) {
			return domain.Review{}, services.ErrReviewInvalidInput
		},
	}
	handler := NewReviewHandlers(nil, reviews)
	router := NewRouter(WithReviewRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/prd_1/reviews", jsonBody(t, map[string]any{"rating": 7}))
	req = asUser(req, "user-4")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestReviewCreateRequiresIdentity(t *testing.T) {
	handler := NewReviewHandlers(nil, &stubReviewService{})
	router := NewRouter(WithReviewRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/prd_1/reviews", jsonBody(t, map[string]any{"rating": 5}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
