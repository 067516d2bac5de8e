package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elite-furniture/api/internal/domain"
)

type stubCartRepository struct {
	cart    domain.Cart
	getErr  error
	saveErr error
	cleared bool
}

func (s *stubCartRepository) Get(_ context.Context, userID string) (domain.Cart, error) {
	if s.getErr != nil {
		return domain.Cart{}, s.getErr
	}
	cart := s.cart
	if cart.ID == "" {
		cart.ID = userID
		cart.UserID = userID
	}
	return cart, nil
}

func (s *stubCartRepository) Save(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.saveErr != nil {
		return domain.Cart{}, s.saveErr
	}
	s.cart = cart
	return cart, nil
}

func (s *stubCartRepository) Clear(_ context.Context, _ string) error {
	s.cleared = true
	s.cart = domain.Cart{}
	return nil
}

func sellableStubProducts(products ...domain.Product) *stubProductRepository {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &stubProductRepository{
		findByIDFn: func(_ context.Context, productID string) (domain.Product, error) {
			p, ok := byID[productID]
			if !ok {
				return domain.Product{}, notFoundErr()
			}
			return p, nil
		},
	}
}

func newTestCartService(t *testing.T, carts *stubCartRepository, products *stubProductRepository) CartService {
	t.Helper()
	ids := 0
	svc, err := NewCartService(CartServiceDeps{
		Carts:    carts,
		Products: products,
		Clock:    fixedClock(time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)),
		IDGenerator: func() string {
			ids++
			return string(rune('A' + ids - 1))
		},
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestCartServiceAddItemSnapshotsProduct(t *testing.T) {
	carts := &stubCartRepository{}
	products := sellableStubProducts(domain.Product{
		ID:          "prd_1",
		Name:        "Oak Dining Chair",
		Price:       2_150_000,
		Currency:    "NGN",
		Stock:       5,
		IsPublished: true,
	})
	svc := newTestCartService(t, carts, products)

	cart, err := svc.AddItem(context.Background(), "user-1", AddCartItemInput{
		ProductID:    "prd_1",
		Quantity:     2,
		SelectedSize: "standard",
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(cart.Items))
	}
	line := cart.Items[0]
	if line.Name != "Oak Dining Chair" || line.UnitPrice != 2_150_000 {
		t.Fatalf("expected product snapshot on line, got %+v", line)
	}
	if line.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", line.Quantity)
	}
	if cart.Currency != "NGN" {
		t.Fatalf("expected cart currency NGN, got %q", cart.Currency)
	}
}

func TestCartServiceAddItemMergesVariant(t *testing.T) {
	carts := &stubCartRepository{}
	products := sellableStubProducts(domain.Product{
		ID: "prd_1", Name: "Chair", Price: 100, Currency: "NGN", Stock: 5, IsPublished: true,
	})
	svc := newTestCartService(t, carts, products)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, "user-1", AddCartItemInput{ProductID: "prd_1", Quantity: 2, SelectedSize: "large"}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	cart, err := svc.AddItem(ctx, "user-1", AddCartItemInput{ProductID: "prd_1", Quantity: 3, SelectedSize: "large"})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("same variant must merge into one line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", cart.Items[0].Quantity)
	}

	cart, err = svc.AddItem(ctx, "user-1", AddCartItemInput{ProductID: "prd_1", Quantity: 1, SelectedSize: "small"})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("different variant must be its own line, got %d", len(cart.Items))
	}
}

func TestCartServiceAddItemRejectsUnsellable(t *testing.T) {
	carts := &stubCartRepository{}
	products := sellableStubProducts(
		domain.Product{ID: "prd_hidden", Price: 100, Stock: 5, IsPublished: false},
		domain.Product{ID: "prd_empty", Price: 100, Stock: 0, IsPublished: true},
	)
	svc := newTestCartService(t, carts, products)

	ctx := context.Background()
	if _, err := svc.AddItem(ctx, "user-1", AddCartItemInput{ProductID: "prd_hidden", Quantity: 1}); !errors.Is(err, ErrCartProductUnavailable) {
		t.Fatalf("expected ErrCartProductUnavailable for unpublished, got %v", err)
	}
	if _, err := svc.AddItem(ctx, "user-1", AddCartItemInput{ProductID: "prd_empty", Quantity: 1}); !errors.Is(err, ErrCartProductUnavailable) {
		t.Fatalf("expected ErrCartProductUnavailable for no stock, got %v", err)
	}
	if _, err := svc.AddItem(ctx, "user-1", AddCartItemInput{ProductID: "prd_missing", Quantity: 1}); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound for missing product, got %v", err)
	}
}

func TestCartServiceAddItemValidatesQuantity(t *testing.T) {
	svc := newTestCartService(t, &stubCartRepository{}, sellableStubProducts())
	for _, quantity := range []int{0, -1, maxCartQuantity + 1} {
		if _, err := svc.AddItem(context.Background(), "user-1", AddCartItemInput{ProductID: "prd_1", Quantity: quantity}); !errors.Is(err, ErrCartInvalidInput) {
			t.Fatalf("quantity %d: expected ErrCartInvalidInput, got %v", quantity, err)
		}
	}
}

func TestCartServiceUpdateItemQuantity(t *testing.T) {
	carts := &stubCartRepository{cart: domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items:  []domain.CartItem{{ID: "itm_A", ProductID: "prd_1", UnitPrice: 100, Quantity: 1}},
	}}
	svc := newTestCartService(t, carts, sellableStubProducts())

	cart, err := svc.UpdateItemQuantity(context.Background(), "user-1", "itm_A", 4)
	if err != nil {
		t.Fatalf("UpdateItemQuantity: %v", err)
	}
	if cart.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", cart.Items[0].Quantity)
	}
	if cart.Items[0].UpdatedAt == nil {
		t.Fatal("expected UpdatedAt to be stamped")
	}

	if _, err := svc.UpdateItemQuantity(context.Background(), "user-1", "itm_missing", 2); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartServiceRemoveItem(t *testing.T) {
	carts := &stubCartRepository{cart: domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartItem{
			{ID: "itm_A", ProductID: "prd_1", Quantity: 1},
			{ID: "itm_B", ProductID: "prd_2", Quantity: 2},
		},
	}}
	svc := newTestCartService(t, carts, sellableStubProducts())

	cart, err := svc.RemoveItem(context.Background(), "user-1", "itm_A")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ID != "itm_B" {
		t.Fatalf("expected only itm_B to remain, got %+v", cart.Items)
	}
}

func TestCartServiceMergeGuestCart(t *testing.T) {
	carts := &stubCartRepository{cart: domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items:  []domain.CartItem{{ID: "itm_A", ProductID: "prd_1", UnitPrice: 100, Quantity: 2}},
	}}
	products := sellableStubProducts(
		domain.Product{ID: "prd_1", Name: "Chair", Price: 100, Currency: "NGN", Stock: 5, IsPublished: true},
		domain.Product{ID: "prd_2", Name: "Table", Price: 500, Currency: "NGN", Stock: 3, IsPublished: true},
		domain.Product{ID: "prd_gone", Name: "Retired", Price: 50, Stock: 0, IsPublished: false},
	)
	svc := newTestCartService(t, carts, products)

	cart, err := svc.MergeGuestCart(context.Background(), "user-1", []GuestCartItem{
		{ProductID: "prd_1", Quantity: 3},
		{ProductID: "prd_2", Quantity: 1},
		{ProductID: "prd_gone", Quantity: 1},
		{ProductID: "prd_missing", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("MergeGuestCart: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected two lines after merge, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 5 {
		t.Fatalf("expected summed quantity 5 for prd_1, got %d", cart.Items[0].Quantity)
	}
	if cart.Items[1].ProductID != "prd_2" {
		t.Fatalf("expected prd_2 appended, got %+v", cart.Items[1])
	}
}

func TestCartServiceEstimateTotals(t *testing.T) {
	carts := &stubCartRepository{cart: domain.Cart{
		ID:     "user-1",
		UserID: "user-1",
		Items: []domain.CartItem{
			{ID: "itm_A", UnitPrice: 2_000_000, Quantity: 2},
		},
	}}
	svc := newTestCartService(t, carts, sellableStubProducts())

	totals, err := svc.EstimateTotals(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("EstimateTotals: %v", err)
	}
	if totals.Subtotal != 4_000_000 {
		t.Fatalf("expected subtotal 4000000, got %d", totals.Subtotal)
	}
	if totals.Shipping != 200_000 {
		t.Fatalf("expected flat shipping below threshold, got %d", totals.Shipping)
	}
	if totals.Tax != 300_000 {
		t.Fatalf("expected 7.5%% VAT 300000, got %d", totals.Tax)
	}
	if totals.Total != 4_500_000 {
		t.Fatalf("expected total 4500000, got %d", totals.Total)
	}
}
