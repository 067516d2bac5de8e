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

const cartsCollection = "carts"

type cartItemDocument struct {
	ID            string     `firestore:"id"`
	ProductID     string     `firestore:"productId"`
	Name          string     `firestore:"name"`
	UnitPrice     int64      `firestore:"unitPrice"`
	Quantity      int        `firestore:"quantity"`
	SelectedSize  string     `firestore:"selectedSize,omitempty"`
	SelectedColor string     `firestore:"selectedColor,omitempty"`
	Images        []string   `firestore:"images,omitempty"`
	AddedAt       time.Time  `firestore:"addedAt"`
	UpdatedAt     *time.Time `firestore:"updatedAt,omitempty"`
}

type cartDocument struct {
	Currency  string             `firestore:"currency"`
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

// CartRepository persists the per-user cart document. The document ID is the
// user ID, so each user owns exactly one remote cart.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// Get fetches the cart for the user. A missing document decodes to an empty cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Cart{ID: userID, UserID: userID}, nil
		}
		return domain.Cart{}, err
	}
	return decodeCartDocument(doc.ID, doc.Data), nil
}

// Save upserts the full cart document, replacing its items.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartDocument{
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:     encodeCartItems(cart.Items),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if _, err := r.base.Set(ctx, userID, doc); err != nil {
		return domain.Cart{}, err
	}
	return decodeCartDocument(userID, doc), nil
}

// Clear removes the cart document. Clearing an absent cart is not an error.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.base.Delete(ctx, userID)
}

func encodeCartItems(items []domain.CartItem) []cartItemDocument {
	docs := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, cartItemDocument{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Name:          item.Name,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
			SelectedSize:  item.SelectedSize,
			SelectedColor: item.SelectedColor,
			Images:        item.Images,
			AddedAt:       item.AddedAt.UTC(),
			UpdatedAt:     item.UpdatedAt,
		})
	}
	return docs
}

func decodeCartDocument(userID string, doc cartDocument) domain.Cart {
	items := make([]domain.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.CartItem{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Name:          item.Name,
			UnitPrice:     item.UnitPrice,
			Quantity:      item.Quantity,
			SelectedSize:  item.SelectedSize,
			SelectedColor: item.SelectedColor,
			Images:        item.Images,
			AddedAt:       item.AddedAt,
			UpdatedAt:     item.UpdatedAt,
		})
	}
	return domain.Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  doc.Currency,
		Items:     items,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
