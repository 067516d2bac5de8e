package services

import (
	"context"
	"errors"
	"testing"

	"github.com/elite-furniture/api/internal/domain"
)

type stubWishlistRepository struct {
	items   map[string][]domain.WishlistItem
	listErr error
}

func newStubWishlistRepository() *stubWishlistRepository {
	return &stubWishlistRepository{items: make(map[string][]domain.WishlistItem)}
}

func (s *stubWishlistRepository) List(_ context.Context, userID string) ([]domain.WishlistItem, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.items[userID], nil
}

func (s *stubWishlistRepository) Add(_ context.Context, userID string, item domain.WishlistItem) error {
	for _, existing := range s.items[userID] {
		if existing.ProductID == item.ProductID {
			return nil
		}
	}
	s.items[userID] = append(s.items[userID], item)
	return nil
}

func (s *stubWishlistRepository) Remove(_ context.Context, userID string, productID string) error {
	kept := s.items[userID][:0]
	for _, item := range s.items[userID] {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	s.items[userID] = kept
	return nil
}

func TestWishlistServiceAddRequiresExistingProduct(t *testing.T) {
	wishlists := newStubWishlistRepository()
	products := sellableStubProducts(domain.Product{ID: "prd_1", Name: "Chair", IsPublished: true, Stock: 1})
	svc, err := NewWishlistService(WishlistServiceDeps{Wishlists: wishlists, Products: products})
	if err != nil {
		t.Fatalf("NewWishlistService: %v", err)
	}

	ctx := context.Background()
	if err := svc.Add(ctx, "user-1", "prd_1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.Add(ctx, "user-1", "prd_missing"); !errors.Is(err, ErrWishlistProductNotFound) {
		t.Fatalf("expected ErrWishlistProductNotFound, got %v", err)
	}
	if len(wishlists.items["user-1"]) != 1 {
		t.Fatalf("expected one saved product, got %d", len(wishlists.items["user-1"]))
	}
}

func TestWishlistServiceListSkipsDeletedProducts(t *testing.T) {
	wishlists := newStubWishlistRepository()
	wishlists.items["user-1"] = []domain.WishlistItem{
		{ProductID: "prd_1"},
		{ProductID: "prd_deleted"},
	}
	products := sellableStubProducts(domain.Product{ID: "prd_1", Name: "Chair"})
	svc, err := NewWishlistService(WishlistServiceDeps{Wishlists: wishlists, Products: products})
	if err != nil {
		t.Fatalf("NewWishlistService: %v", err)
	}

	list, err := svc.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != "prd_1" {
		t.Fatalf("expected only prd_1 hydrated, got %+v", list)
	}
}

func TestWishlistServiceRemoveIsIdempotent(t *testing.T) {
	wishlists := newStubWishlistRepository()
	wishlists.items["user-1"] = []domain.WishlistItem{{ProductID: "prd_1"}}
	svc, err := NewWishlistService(WishlistServiceDeps{Wishlists: wishlists, Products: sellableStubProducts()})
	if err != nil {
		t.Fatalf("NewWishlistService: %v", err)
	}

	ctx := context.Background()
	if err := svc.Remove(ctx, "user-1", "prd_1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := svc.Remove(ctx, "user-1", "prd_1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if len(wishlists.items["user-1"]) != 0 {
		t.Fatalf("expected empty wishlist, got %+v", wishlists.items["user-1"])
	}
}
