package repositories

import (
	"context"
	"time"

	"github.com/elite-furniture/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Categories() CategoryRepository
	Carts() CartRepository
	Wishlists() WishlistRepository
	Orders() OrderRepository
	CheckoutAttempts() CheckoutAttemptRepository
	PaymentAttempts() PaymentAttemptRepository
	Reviews() ReviewRepository
	Users() UserRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductListFilter constrains catalog listings.
type ProductListFilter struct {
	Category      string
	SearchKey     string
	FeaturedOnly  bool
	PublishedOnly bool
	Sort          domain.ProductSort
	Order         domain.SortOrder
	Pagination    domain.Pagination
}

// ProductRepository persists catalog entries.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	UpdateStock(ctx context.Context, productID string, stock int) error
	UpdateRating(ctx context.Context, productID string, rating float64, reviewCount int) error
}

// CategoryRepository persists storefront navigation categories.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
}

// CartRepository owns the per-user cart document. The document is keyed by
// the user ID, so a user has at most one remote cart.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// WishlistRepository persists saved products per user.
type WishlistRepository interface {
	List(ctx context.Context, userID string) ([]domain.WishlistItem, error)
	Add(ctx context.Context, userID string, item domain.WishlistItem) error
	Remove(ctx context.Context, userID string, productID string) error
}

// OrderListFilter constrains order listings.
type OrderListFilter struct {
	UserID        string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Pagination    domain.Pagination
}

// OrderStatusUpdate carries the mutable fields applied during a status transition.
type OrderStatusUpdate struct {
	Status       domain.OrderStatus
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	CancelReason string
}

// OrderRepository persists order headers and their immutable line items.
// Insert writes the header and every item atomically; when the context
// carries a transaction started via UnitOfWork the writes join it.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByReference(ctx context.Context, paymentReference string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	UpdateStatus(ctx context.Context, orderID string, update OrderStatusUpdate) (domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error)
}

// CheckoutAttemptRepository persists checkout attempts keyed by payment reference.
type CheckoutAttemptRepository interface {
	Create(ctx context.Context, attempt domain.CheckoutAttempt) error
	FindByReference(ctx context.Context, reference string) (domain.CheckoutAttempt, error)
	Update(ctx context.Context, attempt domain.CheckoutAttempt) error
}

// PaymentAttemptListFilter constrains transfer-evidence listings.
type PaymentAttemptListFilter struct {
	Status     domain.PaymentAttemptStatus
	UserID     string
	Pagination domain.Pagination
}

// PaymentAttemptRepository persists bank-transfer evidence records.
type PaymentAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.PaymentAttempt) error
	FindByID(ctx context.Context, attemptID string) (domain.PaymentAttempt, error)
	FindPendingByOrder(ctx context.Context, orderID string) (domain.PaymentAttempt, error)
	List(ctx context.Context, filter PaymentAttemptListFilter) (domain.CursorPage[domain.PaymentAttempt], error)
	UpdateStatus(ctx context.Context, attemptID string, status domain.PaymentAttemptStatus, verifiedBy string) (domain.PaymentAttempt, error)
}

// ReviewListFilter constrains review listings.
type ReviewListFilter struct {
	ProductID  string
	Status     domain.ReviewStatus
	Pagination domain.Pagination
}

// ReviewRepository persists customer reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	FindByID(ctx context.Context, reviewID string) (domain.Review, error)
	List(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[domain.Review], error)
	UpdateStatus(ctx context.Context, reviewID string, status domain.ReviewStatus, moderatedBy string, moderatedAt time.Time) (domain.Review, error)
}

// UserRepository persists user profile projections.
type UserRepository interface {
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
}

// CounterRepository issues monotonically increasing sequence values.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository aggregates dependency probes for readiness endpoints.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
