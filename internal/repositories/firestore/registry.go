package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

type txContextKey struct{}

func withTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func txFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok
}

// Registry wires every Firestore-backed repository over a shared provider.
type Registry struct {
	provider *pfirestore.Provider

	products         *ProductRepository
	categories       *CategoryRepository
	carts            *CartRepository
	wishlists        *WishlistRepository
	orders           *OrderRepository
	checkoutAttempts *CheckoutAttemptRepository
	paymentAttempts  *PaymentAttemptRepository
	reviews          *ReviewRepository
	users            *UserRepository
	counters         *CounterRepository
	health           repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the repository registry bound to the provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("repository registry requires firestore provider")
	}
	if health == nil {
		return nil, errors.New("repository registry requires health repository")
	}

	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	wishlists, err := NewWishlistRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	checkoutAttempts, err := NewCheckoutAttemptRepository(provider)
	if err != nil {
		return nil, err
	}
	paymentAttempts, err := NewPaymentAttemptRepository(provider)
	if err != nil {
		return nil, err
	}
	reviews, err := NewReviewRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:         provider,
		products:         products,
		categories:       categories,
		carts:            carts,
		wishlists:        wishlists,
		orders:           orders,
		checkoutAttempts: checkoutAttempts,
		paymentAttempts:  paymentAttempts,
		reviews:          reviews,
		users:            users,
		counters:         counters,
		health:           health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// RunInTx executes fn inside a Firestore transaction. Repositories that are
// transaction-aware join it through the context.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("repository registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(withTx(ctx, tx))
	})
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) Wishlists() repositories.WishlistRepository { return r.wishlists }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) CheckoutAttempts() repositories.CheckoutAttemptRepository {
	return r.checkoutAttempts
}

func (r *Registry) PaymentAttempts() repositories.PaymentAttemptRepository { return r.paymentAttempts }

func (r *Registry) Reviews() repositories.ReviewRepository { return r.reviews }

func (r *Registry) Users() repositories.UserRepository { return r.users }

func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
