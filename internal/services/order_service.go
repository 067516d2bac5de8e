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
	orderIDPrefix     = "ord_"
	orderLineIDPrefix = "oli_"
)

// ErrOrderInvalidInput indicates the caller supplied invalid order input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist.
var ErrOrderNotFound = errors.New("order service: order not found")

// ErrOrderInvalidTransition indicates a status change that the lifecycle does not allow.
var ErrOrderInvalidTransition = errors.New("order service: invalid status transition")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// orderTransitions is the forward-only fulfilment graph. Cancellation is
// handled separately and allowed from any state before delivery.
var orderTransitions = map[domain.OrderStatus]domain.OrderStatus{
	domain.OrderStatusPending:    domain.OrderStatusProcessing,
	domain.OrderStatusProcessing: domain.OrderStatusShipped,
	domain.OrderStatusShipped:    domain.OrderStatusDelivered,
}

// OrderServiceDeps wires the repositories backing order persistence.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Pricing     domain.PricingConfig
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	pricing    domain.PricingConfig
	now        func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unitOfWork := deps.UnitOfWork
	if unitOfWork == nil {
		unitOfWork = noopUnitOfWork{}
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

	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		unitOfWork: unitOfWork,
		pricing:    pricing,
		now:        func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

// CreateOrder snapshots the cart lines into an immutable order. Totals are
// recomputed from the lines so a tampered client cannot influence the amount.
func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (domain.Order, error) {
	if err := validateCreateOrder(input); err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	orderID := orderIDPrefix + s.newID()

	lines := make([]domain.OrderLineItem, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, domain.OrderLineItem{
			ID:            orderLineIDPrefix + s.newID(),
			OrderID:       orderID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			TotalPrice:    item.UnitPrice * int64(item.Quantity),
			ProductName:   item.Name,
			ProductImage:  firstImage(item.Images),
			SelectedSize:  item.SelectedSize,
			SelectedColor: item.SelectedColor,
			CreatedAt:     now,
		})
	}

	orderNumber, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return domain.Order{}, err
	}

	paymentStatus := input.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = domain.PaymentStatusPending
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "NGN"
	}

	order := domain.Order{
		ID:               orderID,
		OrderNumber:      orderNumber,
		UserID:           input.UserID,
		Status:           domain.OrderStatusPending,
		Currency:         currency,
		Totals:           domain.PriceOrderLines(lines, s.pricing),
		Items:            lines,
		CustomerName:     strings.TrimSpace(input.CustomerName),
		CustomerEmail:    strings.TrimSpace(input.CustomerEmail),
		ShippingAddress:  strings.TrimSpace(input.ShippingAddress),
		Phone:            strings.TrimSpace(input.Phone),
		PaymentMethod:    input.PaymentMethod,
		PaymentReference: strings.TrimSpace(input.PaymentReference),
		PaymentStatus:    paymentStatus,
		Notes:            strings.TrimSpace(input.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var created domain.Order
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		var insertErr error
		created, insertErr = s.orders.Insert(txCtx, order)
		return insertErr
	})
	if err != nil {
		return domain.Order{}, s.translateError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     created.ID,
		"orderNumber": created.OrderNumber,
		"total":       created.Totals.Total,
		"method":      string(created.PaymentMethod),
	})
	return created, nil
}

// GetOrder loads an order without ownership checks; back-office use only.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.translateError(err)
	}
	return order, nil
}

// GetUserOrder loads an order and verifies the caller owns it. A foreign
// order surfaces as not found so order IDs cannot be probed.
func (s *orderService) GetUserOrder(ctx context.Context, userID string, orderID string) (domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

// ListUserOrders returns the caller's orders, newest first.
func (s *orderService) ListUserOrders(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[domain.Order]{}, ErrOrderInvalidInput
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{UserID: userID, Pagination: pager})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.translateError(err)
	}
	return page, nil
}

// ListOrders returns the admin view across all users.
func (s *orderService) ListOrders(ctx context.Context, query OrderQuery) (domain.CursorPage[domain.Order], error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		Status:        query.Status,
		PaymentStatus: query.PaymentStatus,
		Pagination:    query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.translateError(err)
	}
	return page, nil
}

// UpdateStatus advances the fulfilment state. Transitions only move forward;
// reaching delivered stamps DeliveredAt.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	if status == domain.OrderStatusCancelled {
		return domain.Order{}, fmt.Errorf("%w: use CancelOrder to cancel", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.translateError(err)
	}
	if orderTransitions[order.Status] != status {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, status)
	}

	update := repositories.OrderStatusUpdate{Status: status}
	if status == domain.OrderStatusDelivered {
		deliveredAt := s.now()
		update.DeliveredAt = &deliveredAt
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, update)
	if err != nil {
		return domain.Order{}, s.translateError(err)
	}
	s.logger(ctx, "order.status.updated", map[string]any{
		"orderId": orderID,
		"status":  string(status),
	})
	return updated, nil
}

// CancelOrder cancels an order from any state before delivery.
func (s *orderService) CancelOrder(ctx context.Context, orderID string, reason string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.translateError(err)
	}
	if order.Status == domain.OrderStatusDelivered || order.Status == domain.OrderStatusCancelled {
		return domain.Order{}, fmt.Errorf("%w: cannot cancel a %s order", ErrOrderInvalidTransition, order.Status)
	}

	cancelledAt := s.now()
	updated, err := s.orders.UpdateStatus(ctx, orderID, repositories.OrderStatusUpdate{
		Status:       domain.OrderStatusCancelled,
		CancelledAt:  &cancelledAt,
		CancelReason: strings.TrimSpace(reason),
	})
	if err != nil {
		return domain.Order{}, s.translateError(err)
	}
	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId": orderID,
		"reason":  strings.TrimSpace(reason),
	})
	return updated, nil
}

// MarkPaymentStatus records a settlement outcome on the order header.
func (s *orderService) MarkPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	switch status {
	case domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusFailed:
	default:
		return domain.Order{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, status)
	}

	updated, err := s.orders.UpdatePaymentStatus(ctx, orderID, status)
	if err != nil {
		return domain.Order{}, s.translateError(err)
	}
	return updated, nil
}

// nextOrderNumber issues a human-readable order number from a per-year
// counter. Sequences may have gaps after failed checkouts but never repeat.
func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	counterID := fmt.Sprintf("orders-%04d", now.Year())
	seq, err := s.counters.Next(ctx, counterID, 1)
	if err != nil {
		return "", s.translateError(err)
	}
	return fmt.Sprintf("EF-%04d-%06d", now.Year(), seq), nil
}

func validateCreateOrder(input CreateOrderInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return fmt.Errorf("%w: user is required", ErrOrderInvalidInput)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	for _, item := range input.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 || item.UnitPrice <= 0 {
			return fmt.Errorf("%w: malformed line item", ErrOrderInvalidInput)
		}
	}
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return fmt.Errorf("%w: customer email is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	switch input.PaymentMethod {
	case domain.PaymentMethodPaystack, domain.PaymentMethodFlutterwave, domain.PaymentMethodBankTransfer:
	default:
		return fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, input.PaymentMethod)
	}
	return nil
}

func firstImage(images []string) string {
	if len(images) == 0 {
		return ""
	}
	return images[0]
}

func (s *orderService) translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	}
	return err
}
