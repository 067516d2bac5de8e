package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/payments"
	"github.com/elite-furniture/api/internal/repositories"
)

const (
	checkoutAttemptIDPrefix   = "chk_"
	defaultCheckoutAttemptTTL = 30 * time.Minute
)

// Attempt failure codes recorded on terminal attempts.
const (
	failureCodeExpired        = "expired"
	failureCodeGatewayDecline = "gateway_declined"
	failureCodeAmountMismatch = "amount_mismatch"
	failureCodeCartChanged    = "cart_changed"
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid checkout input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutEmptyCart indicates a checkout was started over an empty cart.
var ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")

// ErrCheckoutAttemptNotFound indicates no attempt exists for the reference.
var ErrCheckoutAttemptNotFound = errors.New("checkout service: attempt not found")

// ErrCheckoutAttemptFailed indicates the attempt reached a terminal failed state.
var ErrCheckoutAttemptFailed = errors.New("checkout service: attempt failed")

// ErrCheckoutPaymentPending indicates the gateway has not settled the charge yet.
var ErrCheckoutPaymentPending = errors.New("checkout service: payment still pending")

// ErrCheckoutUnavailable indicates the checkout backend cannot fulfil the request.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

// GatewayManager is the slice of the payments manager the orchestrator needs.
type GatewayManager interface {
	Initialize(ctx context.Context, method domain.PaymentMethod, req payments.InitializeRequest) (payments.InitializeResult, error)
	Verify(ctx context.Context, method domain.PaymentMethod, reference string) (payments.VerifyResult, error)
}

// CheckoutServiceDeps wires the collaborators of the checkout orchestrator.
type CheckoutServiceDeps struct {
	Attempts     repositories.CheckoutAttemptRepository
	Cart         CartService
	Orders       OrderService
	Gateway      GatewayManager
	Pricing      domain.PricingConfig
	AttemptTTL   time.Duration
	Clock        func() time.Time
	IDGenerator  func() string
	NewReference func() string
	Logger       func(context.Context, string, map[string]any)
}

type checkoutService struct {
	attempts     repositories.CheckoutAttemptRepository
	cart         CartService
	orders       OrderService
	gateway      GatewayManager
	pricing      domain.PricingConfig
	attemptTTL   time.Duration
	now          func() time.Time
	newID        func() string
	newReference func() string
	logger       func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Attempts == nil {
		return nil, errors.New("checkout service: attempt repository is required")
	}
	if deps.Cart == nil {
		return nil, errors.New("checkout service: cart service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order service is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: gateway manager is required")
	}

	pricing := deps.Pricing
	if pricing == (domain.PricingConfig{}) {
		pricing = domain.DefaultPricing()
	}
	attemptTTL := deps.AttemptTTL
	if attemptTTL <= 0 {
		attemptTTL = defaultCheckoutAttemptTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	newReference := deps.NewReference
	if newReference == nil {
		newReference = payments.NewReference
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		attempts:     deps.Attempts,
		cart:         deps.Cart,
		orders:       deps.Orders,
		gateway:      deps.Gateway,
		pricing:      pricing,
		attemptTTL:   attemptTTL,
		now:          func() time.Time { return clock().UTC() },
		newID:        idGen,
		newReference: newReference,
		logger:       logger,
	}, nil
}

// Begin starts a checkout attempt over the caller's current cart. Gateway
// methods park the attempt on the hosted payment page; bank transfer writes
// the order immediately with payment pending.
func (s *checkoutService) Begin(ctx context.Context, input BeginCheckoutInput) (CheckoutSession, error) {
	if err := validateBeginCheckout(input); err != nil {
		return CheckoutSession{}, err
	}

	cart, err := s.cart.GetCart(ctx, input.UserID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if len(cart.Items) == 0 {
		return CheckoutSession{}, ErrCheckoutEmptyCart
	}

	totals := domain.PriceItems(cart.Items, s.pricing)
	currency := cart.Currency
	if currency == "" {
		currency = "NGN"
	}

	now := s.now()
	attempt := domain.CheckoutAttempt{
		ID:              checkoutAttemptIDPrefix + s.newID(),
		Reference:       s.newReference(),
		UserID:          input.UserID,
		State:           domain.CheckoutStateValidating,
		Method:          input.Method,
		Amount:          totals.Total,
		Currency:        currency,
		Email:           strings.TrimSpace(input.Email),
		CustomerName:    strings.TrimSpace(input.CustomerName),
		ShippingAddress: strings.TrimSpace(input.ShippingAddress),
		Phone:           strings.TrimSpace(input.Phone),
		Notes:           strings.TrimSpace(input.Notes),
		ExpiresAt:       now.Add(s.attemptTTL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if input.Method == domain.PaymentMethodBankTransfer {
		return s.beginBankTransfer(ctx, cart, attempt)
	}
	return s.beginGateway(ctx, input.CallbackURL, attempt)
}

func (s *checkoutService) beginGateway(ctx context.Context, callbackURL string, attempt domain.CheckoutAttempt) (CheckoutSession, error) {
	init, err := s.gateway.Initialize(ctx, attempt.Method, payments.InitializeRequest{
		Reference:   attempt.Reference,
		Amount:      attempt.Amount,
		Currency:    attempt.Currency,
		Email:       attempt.Email,
		CallbackURL: callbackURL,
		Metadata: map[string]string{
			"userId": attempt.UserID,
		},
	})
	if err != nil {
		if errors.Is(err, payments.ErrGatewayUnavailable) {
			return CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
		}
		return CheckoutSession{}, err
	}

	attempt.State = domain.CheckoutStateAwaitingPayment
	attempt.RedirectURL = init.RedirectURL
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return CheckoutSession{}, s.translateError(err)
	}

	s.logger(ctx, "checkout.begun", map[string]any{
		"reference": attempt.Reference,
		"method":    string(attempt.Method),
		"amount":    attempt.Amount,
	})
	return sessionFromAttempt(attempt), nil
}

func (s *checkoutService) beginBankTransfer(ctx context.Context, cart domain.Cart, attempt domain.CheckoutAttempt) (CheckoutSession, error) {
	attempt.State = domain.CheckoutStatePersisting
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return CheckoutSession{}, s.translateError(err)
	}

	order, err := s.writeOrder(ctx, cart, attempt, domain.PaymentStatusPending)
	if err != nil {
		s.failAttempt(ctx, attempt, "order_write_failed")
		return CheckoutSession{}, err
	}

	attempt.State = domain.CheckoutStateConfirmed
	attempt.OrderID = order.ID
	attempt.UpdatedAt = s.now()
	if err := s.attempts.Update(ctx, attempt); err != nil {
		return CheckoutSession{}, s.translateError(err)
	}

	s.logger(ctx, "checkout.confirmed", map[string]any{
		"reference": attempt.Reference,
		"orderId":   order.ID,
		"method":    string(attempt.Method),
	})
	return sessionFromAttempt(attempt), nil
}

// Confirm settles a gateway attempt after the buyer returns from the hosted
// page. Safe to call repeatedly: a confirmed attempt returns its order again.
func (s *checkoutService) Confirm(ctx context.Context, userID string, reference string) (domain.Order, error) {
	attempt, err := s.ownedAttempt(ctx, userID, reference)
	if err != nil {
		return domain.Order{}, err
	}

	switch attempt.State {
	case domain.CheckoutStateConfirmed:
		return s.orders.GetOrder(ctx, attempt.OrderID)
	case domain.CheckoutStateFailed:
		return domain.Order{}, fmt.Errorf("%w: %s", ErrCheckoutAttemptFailed, attempt.FailureCode)
	case domain.CheckoutStateAwaitingPayment:
	default:
		return domain.Order{}, fmt.Errorf("%w: attempt is %s", ErrCheckoutInvalidInput, attempt.State)
	}

	now := s.now()
	if now.After(attempt.ExpiresAt) {
		s.failAttempt(ctx, attempt, failureCodeExpired)
		return domain.Order{}, fmt.Errorf("%w: %s", ErrCheckoutAttemptFailed, failureCodeExpired)
	}

	result, err := s.gateway.Verify(ctx, attempt.Method, attempt.Reference)
	if err != nil {
		if errors.Is(err, payments.ErrGatewayUnavailable) {
			return domain.Order{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
		}
		return domain.Order{}, err
	}

	switch result.Status {
	case payments.StatusPending:
		return domain.Order{}, ErrCheckoutPaymentPending
	case payments.StatusFailed:
		s.failAttempt(ctx, attempt, failureCodeGatewayDecline)
		return domain.Order{}, fmt.Errorf("%w: %s", ErrCheckoutAttemptFailed, failureCodeGatewayDecline)
	}
	if !result.Matches(attempt.Amount, attempt.Currency) {
		s.failAttempt(ctx, attempt, failureCodeAmountMismatch)
		return domain.Order{}, fmt.Errorf("%w: %s", ErrCheckoutAttemptFailed, failureCodeAmountMismatch)
	}

	cart, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return domain.Order{}, err
	}
	if domain.PriceItems(cart.Items, s.pricing).Total != attempt.Amount {
		s.failAttempt(ctx, attempt, failureCodeCartChanged)
		return domain.Order{}, fmt.Errorf("%w: %s", ErrCheckoutAttemptFailed, failureCodeCartChanged)
	}

	attempt.State = domain.CheckoutStatePersisting
	attempt.UpdatedAt = now
	if err := s.attempts.Update(ctx, attempt); err != nil {
		return domain.Order{}, s.translateError(err)
	}

	order, err := s.writeOrder(ctx, cart, attempt, domain.PaymentStatusPaid)
	if err != nil {
		s.failAttempt(ctx, attempt, "order_write_failed")
		return domain.Order{}, err
	}

	attempt.State = domain.CheckoutStateConfirmed
	attempt.OrderID = order.ID
	attempt.UpdatedAt = s.now()
	if err := s.attempts.Update(ctx, attempt); err != nil {
		return domain.Order{}, s.translateError(err)
	}

	s.logger(ctx, "checkout.confirmed", map[string]any{
		"reference": attempt.Reference,
		"orderId":   order.ID,
		"method":    string(attempt.Method),
	})
	return order, nil
}

// GetAttempt returns the attempt for polling clients. Foreign attempts read
// as not found.
func (s *checkoutService) GetAttempt(ctx context.Context, userID string, reference string) (domain.CheckoutAttempt, error) {
	return s.ownedAttempt(ctx, userID, reference)
}

func (s *checkoutService) ownedAttempt(ctx context.Context, userID string, reference string) (domain.CheckoutAttempt, error) {
	userID = strings.TrimSpace(userID)
	reference = strings.TrimSpace(reference)
	if userID == "" || reference == "" {
		return domain.CheckoutAttempt{}, ErrCheckoutInvalidInput
	}
	attempt, err := s.attempts.FindByReference(ctx, reference)
	if err != nil {
		return domain.CheckoutAttempt{}, s.translateError(err)
	}
	if attempt.UserID != userID {
		return domain.CheckoutAttempt{}, fmt.Errorf("%w: %s", ErrCheckoutAttemptNotFound, reference)
	}
	return attempt, nil
}

// writeOrder persists the order and clears the cart. The cart is only
// cleared after the order write succeeds.
func (s *checkoutService) writeOrder(ctx context.Context, cart domain.Cart, attempt domain.CheckoutAttempt, paymentStatus domain.PaymentStatus) (domain.Order, error) {
	order, err := s.orders.CreateOrder(ctx, CreateOrderInput{
		UserID:           attempt.UserID,
		Items:            cart.Items,
		Currency:         attempt.Currency,
		CustomerName:     attempt.CustomerName,
		CustomerEmail:    attempt.Email,
		ShippingAddress:  attempt.ShippingAddress,
		Phone:            attempt.Phone,
		Notes:            attempt.Notes,
		PaymentMethod:    attempt.Method,
		PaymentReference: attempt.Reference,
		PaymentStatus:    paymentStatus,
	})
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.cart.ClearCart(ctx, attempt.UserID); err != nil {
		s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
			"reference": attempt.Reference,
			"orderId":   order.ID,
			"error":     err.Error(),
		})
	}
	return order, nil
}

// failAttempt records a terminal failure. Best effort: the caller's error is
// more useful than a secondary persistence failure.
func (s *checkoutService) failAttempt(ctx context.Context, attempt domain.CheckoutAttempt, code string) {
	attempt.State = domain.CheckoutStateFailed
	attempt.FailureCode = code
	attempt.UpdatedAt = s.now()
	if err := s.attempts.Update(ctx, attempt); err != nil {
		s.logger(ctx, "checkout.fail_update_failed", map[string]any{
			"reference": attempt.Reference,
			"error":     err.Error(),
		})
	}
}

func sessionFromAttempt(attempt domain.CheckoutAttempt) CheckoutSession {
	return CheckoutSession{
		Reference:   attempt.Reference,
		State:       attempt.State,
		Method:      attempt.Method,
		Amount:      attempt.Amount,
		Currency:    attempt.Currency,
		RedirectURL: attempt.RedirectURL,
		OrderID:     attempt.OrderID,
		ExpiresAt:   attempt.ExpiresAt,
	}
}

func validateBeginCheckout(input BeginCheckoutInput) error {
	if strings.TrimSpace(input.UserID) == "" {
		return fmt.Errorf("%w: user is required", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(input.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return fmt.Errorf("%w: shipping address is required", ErrCheckoutInvalidInput)
	}
	switch input.Method {
	case domain.PaymentMethodPaystack, domain.PaymentMethodFlutterwave, domain.PaymentMethodBankTransfer:
	default:
		return fmt.Errorf("%w: unsupported payment method %q", ErrCheckoutInvalidInput, input.Method)
	}
	return nil
}

func (s *checkoutService) translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrCheckoutAttemptNotFound, err)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: duplicate reference", ErrCheckoutInvalidInput)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	return err
}
