package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/repositories"
)

// ErrWishlistInvalidInput indicates the caller supplied invalid input.
var ErrWishlistInvalidInput = errors.New("wishlist service: invalid input")

// ErrWishlistProductNotFound indicates the saved product does not exist.
var ErrWishlistProductNotFound = errors.New("wishlist service: product not found")

// ErrWishlistUnavailable indicates the wishlist backend cannot fulfil the request.
var ErrWishlistUnavailable = errors.New("wishlist service: unavailable")

// WishlistServiceDeps wires the repositories backing saved products.
type WishlistServiceDeps struct {
	Wishlists repositories.WishlistRepository
	Products  repositories.ProductRepository
	Clock     func() time.Time
	Logger    func(context.Context, string, map[string]any)
}

type wishlistService struct {
	wishlists repositories.WishlistRepository
	products  repositories.ProductRepository
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewWishlistService constructs a WishlistService enforcing dependency validation.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Wishlists == nil {
		return nil, errors.New("wishlist service: wishlist repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("wishlist service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &wishlistService{
		wishlists: deps.Wishlists,
		products:  deps.Products,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// List returns the saved products hydrated from the catalog. Entries whose
// product has been deleted are skipped rather than failing the whole list.
func (s *wishlistService) List(ctx context.Context, userID string) ([]domain.Product, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrWishlistInvalidInput
	}

	items, err := s.wishlists.List(ctx, userID)
	if err != nil {
		return nil, s.translateError(err)
	}

	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if repositories.IsNotFound(err) {
				continue
			}
			return nil, s.translateError(err)
		}
		products = append(products, product)
	}
	return products, nil
}

// Add saves a product to the wishlist. Adding an already-saved product is a no-op.
func (s *wishlistService) Add(ctx context.Context, userID string, productID string) error {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return ErrWishlistInvalidInput
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if repositories.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrWishlistProductNotFound, productID)
		}
		return s.translateError(err)
	}

	item := domain.WishlistItem{ProductID: productID, AddedAt: s.now()}
	if err := s.wishlists.Add(ctx, userID, item); err != nil {
		return s.translateError(err)
	}
	return nil
}

// Remove drops a product from the wishlist. Removing an absent product is a no-op.
func (s *wishlistService) Remove(ctx context.Context, userID string, productID string) error {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return ErrWishlistInvalidInput
	}
	if err := s.wishlists.Remove(ctx, userID, productID); err != nil {
		return s.translateError(err)
	}
	return nil
}

func (s *wishlistService) translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrWishlistProductNotFound, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrWishlistUnavailable, err)
	}
	return err
}
