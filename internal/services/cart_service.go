package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/repositories"
)

const (
	cartItemIDPrefix = "itm_"
	maxCartQuantity  = 99
)

// ErrCartInvalidInput indicates the caller supplied invalid cart input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartItemNotFound indicates the referenced cart line does not exist.
var ErrCartItemNotFound = errors.New("cart service: item not found")

// ErrCartProductUnavailable indicates the product is unpublished or out of stock.
var ErrCartProductUnavailable = errors.New("cart service: product unavailable")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// CartServiceDeps wires the repositories backing the remote cart.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Pricing     domain.PricingConfig
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	pricing  domain.PricingConfig
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	pricing := deps.Pricing
	if pricing == (domain.PricingConfig{}) {
		pricing = domain.DefaultPricing()
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

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		pricing:  pricing,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// GetCart loads the remote cart, returning an empty cart for new users.
func (s *cartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}
	return cart, nil
}

// AddItem adds a product variant to the cart, merging into an existing line
// when the same variant is already present.
func (s *cartService) AddItem(ctx context.Context, userID string, input AddCartItemInput) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	productID := strings.TrimSpace(input.ProductID)
	if userID == "" || productID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}
	if input.Quantity <= 0 || input.Quantity > maxCartQuantity {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, maxCartQuantity)
	}

	product, err := s.sellableProduct(ctx, productID)
	if err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}

	now := s.now()
	line := domain.CartItem{
		ID:            cartItemIDPrefix + s.newID(),
		ProductID:     product.ID,
		Name:          product.Name,
		UnitPrice:     product.Price,
		Quantity:      input.Quantity,
		SelectedSize:  strings.TrimSpace(input.SelectedSize),
		SelectedColor: strings.TrimSpace(input.SelectedColor),
		Images:        product.Images,
		AddedAt:       now,
	}
	cart.Items = mergeLine(cart.Items, line, now)
	cart.Currency = product.Currency

	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}
	return saved, nil
}

// UpdateItemQuantity sets the absolute quantity of a cart line.
func (s *cartService) UpdateItemQuantity(ctx context.Context, userID string, itemID string, quantity int) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)
	if userID == "" || itemID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}
	if quantity <= 0 || quantity > maxCartQuantity {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, maxCartQuantity)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}

	now := s.now()
	found := false
	for i := range cart.Items {
		if cart.Items[i].ID != itemID {
			continue
		}
		cart.Items[i].Quantity = quantity
		cart.Items[i].UpdatedAt = &now
		found = true
		break
	}
	if !found {
		return domain.Cart{}, ErrCartItemNotFound
	}

	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}
	return saved, nil
}

// RemoveItem drops a cart line.
func (s *cartService) RemoveItem(ctx context.Context, userID string, itemID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)
	if userID == "" || itemID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}

	items := cart.Items[:0]
	found := false
	for _, item := range cart.Items {
		if item.ID == itemID {
			found = true
			continue
		}
		items = append(items, item)
	}
	if !found {
		return domain.Cart{}, ErrCartItemNotFound
	}
	cart.Items = items

	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}
	return saved, nil
}

// ClearCart removes every line from the remote cart.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrCartInvalidInput
	}
	if err := s.carts.Clear(ctx, userID); err != nil {
		return s.translateError(err)
	}
	return nil
}

// MergeGuestCart folds a client-local cart into the remote cart on login.
// Quantities for matching variants are summed and capped. Lines referencing
// products that no longer exist or are unsellable are dropped silently so a
// stale guest cart cannot block login.
func (s *cartService) MergeGuestCart(ctx context.Context, userID string, items []GuestCartItem) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}
	if len(items) == 0 {
		return cart, nil
	}

	now := s.now()
	merged := 0
	for _, guest := range items {
		productID := strings.TrimSpace(guest.ProductID)
		if productID == "" || guest.Quantity <= 0 {
			continue
		}
		product, err := s.sellableProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, ErrCartProductUnavailable) || errors.Is(err, ErrCartItemNotFound) {
				continue
			}
			return domain.Cart{}, err
		}
		quantity := guest.Quantity
		if quantity > maxCartQuantity {
			quantity = maxCartQuantity
		}
		line := domain.CartItem{
			ID:            cartItemIDPrefix + s.newID(),
			ProductID:     product.ID,
			Name:          product.Name,
			UnitPrice:     product.Price,
			Quantity:      quantity,
			SelectedSize:  strings.TrimSpace(guest.SelectedSize),
			SelectedColor: strings.TrimSpace(guest.SelectedColor),
			Images:        product.Images,
			AddedAt:       now,
		}
		cart.Items = mergeLine(cart.Items, line, now)
		cart.Currency = product.Currency
		merged++
	}

	if merged == 0 {
		return cart, nil
	}
	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return domain.Cart{}, s.translateError(err)
	}
	s.logger(ctx, "cart.guest.merged", map[string]any{
		"userId": userID,
		"lines":  merged,
	})
	return saved, nil
}

// EstimateTotals prices the current cart without mutating it.
func (s *cartService) EstimateTotals(ctx context.Context, userID string) (domain.Totals, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.Totals{}, err
	}
	return domain.PriceItems(cart.Items, s.pricing), nil
}

// sellableProduct loads a product and checks it can be added to a cart.
func (s *cartService) sellableProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Product{}, fmt.Errorf("%w: product %s", ErrCartItemNotFound, productID)
		}
		return domain.Product{}, s.translateError(err)
	}
	if !product.IsPublished || product.Stock <= 0 {
		return domain.Product{}, fmt.Errorf("%w: product %s", ErrCartProductUnavailable, productID)
	}
	return product, nil
}

// mergeLine appends a line or folds it into an existing one with the same
// variant key, capping the summed quantity.
func mergeLine(items []domain.CartItem, line domain.CartItem, now time.Time) []domain.CartItem {
	key := line.VariantKey()
	for i := range items {
		if items[i].VariantKey() != key {
			continue
		}
		quantity := items[i].Quantity + line.Quantity
		if quantity > maxCartQuantity {
			quantity = maxCartQuantity
		}
		items[i].Quantity = quantity
		items[i].UnitPrice = line.UnitPrice
		items[i].UpdatedAt = &now
		return items
	}
	return append(items, line)
}

func (s *cartService) translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrCartItemNotFound, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	return err
}
