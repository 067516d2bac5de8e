package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/repositories"
)

const (
	reviewIDPrefix      = "rev_"
	maxReviewTitleLen   = 120
	maxReviewCommentLen = 2000
	purchaseLookupLimit = 200
)

// ErrReviewInvalidInput indicates the caller supplied invalid review input.
var ErrReviewInvalidInput = errors.New("review service: invalid input")

// ErrReviewNotFound indicates the requested review does not exist.
var ErrReviewNotFound = errors.New("review service: review not found")

// ErrReviewAlreadyModerated indicates the review left the pending state already.
var ErrReviewAlreadyModerated = errors.New("review service: review already moderated")

// ErrReviewUnavailable indicates the review backend cannot fulfil the request.
var ErrReviewUnavailable = errors.New("review service: unavailable")

// ReviewServiceDeps wires the repositories backing customer reviews.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Products    repositories.ProductRepository
	Orders      repositories.OrderRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type reviewService struct {
	reviews   repositories.ReviewRepository
	products  repositories.ProductRepository
	orders    repositories.OrderRepository
	sanitizer *bluemonday.Policy
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewReviewService constructs a ReviewService enforcing dependency validation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("review service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reviewService{
		reviews:   deps.Reviews,
		products:  deps.Products,
		orders:    deps.Orders,
		sanitizer: bluemonday.StrictPolicy(),
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// CreateReview records a customer review in the moderation queue. Free-text
// fields are stripped of markup before persistence.
func (s *reviewService) CreateReview(ctx context.Context, input CreateReviewInput) (domain.Review, error) {
	productID := strings.TrimSpace(input.ProductID)
	userID := strings.TrimSpace(input.UserID)
	if productID == "" || userID == "" {
		return domain.Review{}, ErrReviewInvalidInput
	}
	if input.Rating < 1 || input.Rating > 5 {
		return domain.Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrReviewInvalidInput)
	}

	title := s.sanitize(input.Title)
	comment := s.sanitize(input.Comment)
	if len(title) > maxReviewTitleLen {
		return domain.Review{}, fmt.Errorf("%w: title too long", ErrReviewInvalidInput)
	}
	if len(comment) > maxReviewCommentLen {
		return domain.Review{}, fmt.Errorf("%w: comment too long", ErrReviewInvalidInput)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return domain.Review{}, s.translateError(err)
	}

	now := s.now()
	review := domain.Review{
		ID:               reviewIDPrefix + s.newID(),
		ProductID:        productID,
		UserID:           userID,
		Rating:           input.Rating,
		Title:            title,
		Comment:          comment,
		VerifiedPurchase: s.hasPurchased(ctx, userID, productID),
		Status:           domain.ReviewStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.reviews.Insert(ctx, review); err != nil {
		return domain.Review{}, s.translateError(err)
	}
	s.logger(ctx, "review.created", map[string]any{
		"reviewId":  review.ID,
		"productId": productID,
		"rating":    input.Rating,
	})
	return review, nil
}

// ListProductReviews returns the approved reviews for a product.
func (s *reviewService) ListProductReviews(ctx context.Context, productID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.CursorPage[domain.Review]{}, ErrReviewInvalidInput
	}
	page, err := s.reviews.List(ctx, repositories.ReviewListFilter{
		ProductID:  productID,
		Status:     domain.ReviewStatusApproved,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[domain.Review]{}, s.translateError(err)
	}
	return page, nil
}

// ListPendingReviews returns the moderation queue.
func (s *reviewService) ListPendingReviews(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	page, err := s.reviews.List(ctx, repositories.ReviewListFilter{
		Status:     domain.ReviewStatusPending,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[domain.Review]{}, s.translateError(err)
	}
	return page, nil
}

// Moderate approves or rejects a pending review. Approval folds the rating
// into the product's aggregate.
func (s *reviewService) Moderate(ctx context.Context, reviewID string, approve bool, adminID string) (domain.Review, error) {
	reviewID = strings.TrimSpace(reviewID)
	adminID = strings.TrimSpace(adminID)
	if reviewID == "" || adminID == "" {
		return domain.Review{}, ErrReviewInvalidInput
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return domain.Review{}, s.translateError(err)
	}
	if review.Status != domain.ReviewStatusPending {
		return domain.Review{}, fmt.Errorf("%w: review is %s", ErrReviewAlreadyModerated, review.Status)
	}

	status := domain.ReviewStatusRejected
	if approve {
		status = domain.ReviewStatusApproved
	}
	updated, err := s.reviews.UpdateStatus(ctx, reviewID, status, adminID, s.now())
	if err != nil {
		return domain.Review{}, s.translateError(err)
	}

	if approve {
		if err := s.refreshProductRating(ctx, review.ProductID, review.Rating); err != nil {
			s.logger(ctx, "review.rating_refresh_failed", map[string]any{
				"productId": review.ProductID,
				"error":     err.Error(),
			})
		}
	}
	s.logger(ctx, "review.moderated", map[string]any{
		"reviewId": reviewID,
		"status":   string(status),
		"adminId":  adminID,
	})
	return updated, nil
}

// refreshProductRating folds a newly approved rating into the product's
// running average without rescanning every review.
func (s *reviewService) refreshProductRating(ctx context.Context, productID string, rating int) error {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	count := product.ReviewCount + 1
	average := (product.Rating*float64(product.ReviewCount) + float64(rating)) / float64(count)
	return s.products.UpdateRating(ctx, productID, average, count)
}

// hasPurchased reports whether the user has a delivered order containing the
// product. Best effort: a lookup failure just leaves the badge off.
func (s *reviewService) hasPurchased(ctx context.Context, userID string, productID string) bool {
	if s.orders == nil {
		return false
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:     userID,
		Status:     domain.OrderStatusDelivered,
		Pagination: domain.Pagination{PageSize: purchaseLookupLimit},
	})
	if err != nil {
		return false
	}
	for _, order := range page.Items {
		full, err := s.orders.FindByID(ctx, order.ID)
		if err != nil {
			continue
		}
		for _, line := range full.Items {
			if line.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (s *reviewService) sanitize(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *reviewService) translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrReviewNotFound, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
	}
	return err
}
