package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// ProductSort indicates the field used to order catalog listings.
type ProductSort string

const (
	// ProductSortCreatedAt sorts products by creation time (newest first).
	ProductSortCreatedAt ProductSort = "createdAt"
	// ProductSortPrice sorts products by unit price.
	ProductSortPrice ProductSort = "price"
	// ProductSortRating sorts products by average review rating.
	ProductSortRating ProductSort = "rating"
)

// Product describes a catalog entry. Prices are stored in the smallest
// currency unit (kobo for NGN).
type Product struct {
	ID          string
	SKU         string
	Slug        string
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
	Rating      float64
	ReviewCount int
	IsFeatured  bool
	IsPublished bool
	SearchKeys  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Category groups products for storefront navigation.
type Category struct {
	ID          string
	Name        string
	Description string
	ImagePath   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Cart aggregates the mutable shopping cart state for an authenticated user.
// Guest carts live client-side and are merged on login via MergeGuestCart.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores a single product/variant entry within a cart. Lines are
// unique per (ProductID, SelectedSize, SelectedColor).
type CartItem struct {
	ID            string
	ProductID     string
	Name          string
	UnitPrice     int64
	Quantity      int
	SelectedSize  string
	SelectedColor string
	Images        []string
	AddedAt       time.Time
	UpdatedAt     *time.Time
}

// VariantKey returns the merge key identifying a cart line.
func (i CartItem) VariantKey() string {
	return i.ProductID + "|" + i.SelectedSize + "|" + i.SelectedColor
}

// Totals summarizes the priced breakdown for a set of cart lines.
type Totals struct {
	Subtotal int64
	Shipping int64
	Tax      int64
	Total    int64
}

// PaymentMethod enumerates the supported checkout payment paths.
type PaymentMethod string

const (
	// PaymentMethodPaystack delegates capture to the Paystack hosted widget.
	PaymentMethodPaystack PaymentMethod = "paystack"
	// PaymentMethodFlutterwave delegates capture to the Flutterwave hosted page.
	PaymentMethodFlutterwave PaymentMethod = "flutterwave"
	// PaymentMethodBankTransfer records the order before payment and awaits
	// manually verified transfer evidence.
	PaymentMethodBankTransfer PaymentMethod = "bank-transfer"
)

// IsGateway reports whether the method hands off to a hosted payment widget.
func (m PaymentMethod) IsGateway() bool {
	return m == PaymentMethodPaystack || m == PaymentMethodFlutterwave
}

// CheckoutState enumerates the lifecycle of a single checkout attempt.
type CheckoutState string

const (
	// CheckoutStateIdle is the zero state before submission.
	CheckoutStateIdle CheckoutState = "idle"
	// CheckoutStateValidating indicates cart/auth validation is in progress.
	CheckoutStateValidating CheckoutState = "validating"
	// CheckoutStateAwaitingPayment indicates the attempt is parked on the
	// hosted gateway and waiting for the buyer to complete or cancel.
	CheckoutStateAwaitingPayment CheckoutState = "awaiting_payment"
	// CheckoutStatePersisting indicates payment is settled (or deferred for
	// bank transfer) and the order write is underway.
	CheckoutStatePersisting CheckoutState = "persisting"
	// CheckoutStateConfirmed indicates the order was written and the cart cleared.
	CheckoutStateConfirmed CheckoutState = "confirmed"
	// CheckoutStateFailed indicates the attempt aborted; the cart is untouched.
	CheckoutStateFailed CheckoutState = "failed"
)

// CheckoutAttempt tracks one checkout submission keyed by payment reference.
// The reference is the join key between the attempt and the gateway's
// asynchronous record.
type CheckoutAttempt struct {
	ID              string
	Reference       string
	UserID          string
	State           CheckoutState
	Method          PaymentMethod
	Amount          int64
	Currency        string
	Email           string
	CustomerName    string
	ShippingAddress string
	Phone           string
	Notes           string
	OrderID         string
	FailureCode     string
	RedirectURL     string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is placed and awaits processing.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates back-office fulfilment has started.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to a carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus enumerates settlement states tracked on the order header.
type PaymentStatus string

const (
	// PaymentStatusPending indicates funds are not yet confirmed.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates funds were verified as captured.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates capture failed or was rejected.
	PaymentStatusFailed PaymentStatus = "failed"
)

// Order captures an order header with its line items.
type Order struct {
	ID               string
	OrderNumber      string
	UserID           string
	Status           OrderStatus
	Currency         string
	Totals           Totals
	Items            []OrderLineItem
	CustomerName     string
	CustomerEmail    string
	ShippingAddress  string
	Phone            string
	PaymentMethod    PaymentMethod
	PaymentReference string
	PaymentStatus    PaymentStatus
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeliveredAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     string
}

// OrderLineItem snapshots a cart line at order time so later product edits do
// not retroactively alter historical orders. Immutable once written.
type OrderLineItem struct {
	ID            string
	OrderID       string
	ProductID     string
	Quantity      int
	UnitPrice     int64
	TotalPrice    int64
	ProductName   string
	ProductImage  string
	SelectedSize  string
	SelectedColor string
	CreatedAt     time.Time
}

// PaymentAttemptStatus enumerates manual verification states for transfer evidence.
type PaymentAttemptStatus string

const (
	// PaymentAttemptPending awaits back-office verification.
	PaymentAttemptPending PaymentAttemptStatus = "pending"
	// PaymentAttemptVerified indicates an admin confirmed the transfer.
	PaymentAttemptVerified PaymentAttemptStatus = "verified"
	// PaymentAttemptRejected indicates an admin rejected the evidence.
	PaymentAttemptRejected PaymentAttemptStatus = "rejected"
)

// PaymentAttempt records uploaded bank-transfer evidence for an order.
type PaymentAttempt struct {
	ID          string
	OrderID     string
	UserID      string
	Amount      int64
	Method      PaymentMethod
	ReceiptPath string
	Status      PaymentAttemptStatus
	VerifiedBy  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WishlistItem ties a user to a saved product.
type WishlistItem struct {
	ProductID string
	AddedAt   time.Time
}

// ReviewStatus indicates the moderation state of a review.
type ReviewStatus string

const (
	// ReviewStatusPending indicates the review awaits moderation.
	ReviewStatusPending ReviewStatus = "pending"
	// ReviewStatusApproved indicates the review is publicly visible.
	ReviewStatusApproved ReviewStatus = "approved"
	// ReviewStatusRejected indicates the review is hidden.
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Review captures customer feedback for a product.
type Review struct {
	ID               string
	ProductID        string
	UserID           string
	Rating           int
	Title            string
	Comment          string
	VerifiedPurchase bool
	Status           ReviewStatus
	ModeratedBy      string
	ModeratedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Role enumerates the authorization roles carried in auth claims.
type Role string

const (
	// RoleUser is the default storefront role.
	RoleUser Role = "user"
	// RoleAdmin grants back-office surfaces.
	RoleAdmin Role = "admin"
)

// UserProfile captures the canonical projection of an authenticated user.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	Phone       string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaymentNotification is published after transfer evidence is recorded or a
// payment is verified; email delivery is fire-and-forget downstream.
type PaymentNotification struct {
	Kind          string
	OrderID       string
	OrderNumber   string
	CustomerEmail string
	Amount        int64
	Currency      string
	ReceiptPath   string
	OccurredAt    time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
