package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

const wishlistsCollection = "wishlists"

type wishlistDocument struct {
	Items     []wishlistItemDocument `firestore:"items"`
	UpdatedAt time.Time              `firestore:"updatedAt"`
}

type wishlistItemDocument struct {
	ProductID string    `firestore:"productId"`
	AddedAt   time.Time `firestore:"addedAt"`
}

// WishlistRepository persists the per-user wishlist document, keyed by user ID.
type WishlistRepository struct {
	base *pfirestore.BaseRepository[wishlistDocument]
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[wishlistDocument](provider, wishlistsCollection, nil, nil)
	return &WishlistRepository{base: base}, nil
}

// List returns the wishlist items for the user, newest first.
func (r *WishlistRepository) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("wishlist repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("wishlist repository: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	items := make([]domain.WishlistItem, 0, len(doc.Data.Items))
	for _, item := range doc.Data.Items {
		items = append(items, domain.WishlistItem{ProductID: item.ProductID, AddedAt: item.AddedAt})
	}
	return items, nil
}

// Add appends the product to the wishlist unless it is already saved.
func (r *WishlistRepository) Add(ctx context.Context, userID string, item domain.WishlistItem) error {
	if r == nil || r.base == nil {
		return errors.New("wishlist repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	productID := strings.TrimSpace(item.ProductID)
	if userID == "" || productID == "" {
		return errors.New("wishlist repository: user id and product id are required")
	}

	items, err := r.List(ctx, userID)
	if err != nil {
		return err
	}
	for _, existing := range items {
		if existing.ProductID == productID {
			return nil
		}
	}

	addedAt := item.AddedAt.UTC()
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}
	items = append(items, domain.WishlistItem{ProductID: productID, AddedAt: addedAt})
	return r.save(ctx, userID, items)
}

// Remove deletes the product from the wishlist. Removing an absent product is not an error.
func (r *WishlistRepository) Remove(ctx context.Context, userID string, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("wishlist repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	if userID == "" || productID == "" {
		return errors.New("wishlist repository: user id and product id are required")
	}

	items, err := r.List(ctx, userID)
	if err != nil {
		return err
	}

	kept := items[:0]
	for _, existing := range items {
		if existing.ProductID != productID {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	return r.save(ctx, userID, kept)
}

func (r *WishlistRepository) save(ctx context.Context, userID string, items []domain.WishlistItem) error {
	docs := make([]wishlistItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, wishlistItemDocument{ProductID: item.ProductID, AddedAt: item.AddedAt.UTC()})
	}
	_, err := r.base.Set(ctx, userID, wishlistDocument{
		Items:     docs,
		UpdatedAt: time.Now().UTC(),
	})
	return err
}
