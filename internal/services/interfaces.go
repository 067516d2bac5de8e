package services

import (
	"context"
	"io"
	"time"

	"github.com/elite-furniture/api/internal/domain"
)

// CatalogQuery constrains public and admin product listings.
type CatalogQuery struct {
	Category           string
	Search             string
	FeaturedOnly       bool
	IncludeUnpublished bool
	Sort               domain.ProductSort
	Order              domain.SortOrder
	Pagination         domain.Pagination
}

// ProductInput carries the writable product fields for admin CRUD.
type ProductInput struct {
	SKU         string
	Name        string
	Description string
	Category    string
	Price       int64
	Currency    string
	Images      []string
	Sizes       []string
	Colors      []string
	Tags        []string
	Features    []string
	Stock       int
	IsFeatured  bool
	IsPublished bool
}

// CatalogService owns the product catalog surfaces.
type CatalogService interface {
	ListProducts(ctx context.Context, query CatalogQuery) (domain.CursorPage[domain.Product], error)
	GetProduct(ctx context.Context, idOrSlug string) (domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateProduct(ctx context.Context, input ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, productID string, input ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	SetStock(ctx context.Context, productID string, stock int) (domain.Product, error)
	SetFeatured(ctx context.Context, productID string, featured bool) (domain.Product, error)
}

// AddCartItemInput describes a line added to the remote cart.
type AddCartItemInput struct {
	ProductID     string
	Quantity      int
	SelectedSize  string
	SelectedColor string
}

// GuestCartItem is a client-local cart line merged on login.
type GuestCartItem struct {
	ProductID     string
	Quantity      int
	SelectedSize  string
	SelectedColor string
}

// CartService owns the remote per-user cart.
type CartService interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID string, input AddCartItemInput) (domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID string, itemID string, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID string) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
	MergeGuestCart(ctx context.Context, userID string, items []GuestCartItem) (domain.Cart, error)
	EstimateTotals(ctx context.Context, userID string) (domain.Totals, error)
}

// WishlistService owns saved products per user.
type WishlistService interface {
	List(ctx context.Context, userID string) ([]domain.Product, error)
	Add(ctx context.Context, userID string, productID string) error
	Remove(ctx context.Context, userID string, productID string) error
}

// BeginCheckoutInput starts a checkout attempt over the user's current cart.
type BeginCheckoutInput struct {
	UserID          string
	Email           string
	CustomerName    string
	ShippingAddress string
	Phone           string
	Notes           string
	Method          domain.PaymentMethod
	CallbackURL     string
}

// CheckoutSession is handed back to the client after Begin.
type CheckoutSession struct {
	Reference   string
	State       domain.CheckoutState
	Method      domain.PaymentMethod
	Amount      int64
	Currency    string
	RedirectURL string
	OrderID     string
	ExpiresAt   time.Time
}

// CheckoutService drives the checkout attempt state machine.
type CheckoutService interface {
	Begin(ctx context.Context, input BeginCheckoutInput) (CheckoutSession, error)
	Confirm(ctx context.Context, userID string, reference string) (domain.Order, error)
	GetAttempt(ctx context.Context, userID string, reference string) (domain.CheckoutAttempt, error)
}

// CreateOrderInput carries everything the order writer needs. Totals are
// always recomputed server-side from the items.
type CreateOrderInput struct {
	UserID           string
	Items            []domain.CartItem
	Currency         string
	CustomerName     string
	CustomerEmail    string
	ShippingAddress  string
	Phone            string
	Notes            string
	PaymentMethod    domain.PaymentMethod
	PaymentReference string
	PaymentStatus    domain.PaymentStatus
}

// OrderQuery constrains admin order listings.
type OrderQuery struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Pagination    domain.Pagination
}

// OrderService owns order persistence and lifecycle transitions.
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	GetUserOrder(ctx context.Context, userID string, orderID string) (domain.Order, error)
	ListUserOrders(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	ListOrders(ctx context.Context, query OrderQuery) (domain.CursorPage[domain.Order], error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID string, reason string) (domain.Order, error)
	MarkPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error)
}

// TransferEvidenceInput carries an uploaded bank-transfer receipt.
type TransferEvidenceInput struct {
	OrderID     string
	UserID      string
	FileName    string
	ContentType string
	Body        io.Reader
}

// PaymentService owns transfer evidence, admin verification, and the
// asynchronous gateway webhook leg.
type PaymentService interface {
	SubmitTransferEvidence(ctx context.Context, input TransferEvidenceInput) (domain.PaymentAttempt, error)
	ListAttempts(ctx context.Context, status domain.PaymentAttemptStatus, pager domain.Pagination) (domain.CursorPage[domain.PaymentAttempt], error)
	VerifyAttempt(ctx context.Context, attemptID string, adminID string) (domain.PaymentAttempt, error)
	RejectAttempt(ctx context.Context, attemptID string, adminID string) (domain.PaymentAttempt, error)
	ReceiptDownloadURL(ctx context.Context, attemptID string) (string, error)
	HandleGatewayEvent(ctx context.Context, event GatewayEvent) error
}

// GatewayEvent is the normalised webhook payload from a payment gateway.
type GatewayEvent struct {
	Kind       string
	Reference  string
	Amount     int64
	Currency   string
	OccurredAt time.Time
}

// CreateReviewInput carries a new customer review.
type CreateReviewInput struct {
	ProductID string
	UserID    string
	Rating    int
	Title     string
	Comment   string
}

// ReviewService owns customer reviews and moderation.
type ReviewService interface {
	CreateReview(ctx context.Context, input CreateReviewInput) (domain.Review, error)
	ListProductReviews(ctx context.Context, productID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
	ListPendingReviews(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
	Moderate(ctx context.Context, reviewID string, approve bool, adminID string) (domain.Review, error)
}

// ProfileInput carries the writable profile fields.
type ProfileInput struct {
	DisplayName string
	Email       string
	Phone       string
}

// UserService owns the user profile projection.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	SaveProfile(ctx context.Context, userID string, input ProfileInput) (domain.UserProfile, error)
}

// SystemService exposes dependency health for liveness and readiness probes.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}

// NotificationPublisher dispatches payment notifications asynchronously.
type NotificationPublisher interface {
	PublishPaymentNotification(ctx context.Context, notification domain.PaymentNotification) (string, error)
}
