package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/payments"
)

type stubAttemptRepository struct {
	attempts  map[string]domain.CheckoutAttempt
	createErr error
}

func newStubAttemptRepository() *stubAttemptRepository {
	return &stubAttemptRepository{attempts: make(map[string]domain.CheckoutAttempt)}
}

func (s *stubAttemptRepository) Create(_ context.Context, attempt domain.CheckoutAttempt) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.attempts[attempt.Reference] = attempt
	return nil
}

func (s *stubAttemptRepository) FindByReference(_ context.Context, reference string) (domain.CheckoutAttempt, error) {
	attempt, ok := s.attempts[reference]
	if !ok {
		return domain.CheckoutAttempt{}, notFoundErr()
	}
	return attempt, nil
}

func (s *stubAttemptRepository) Update(_ context.Context, attempt domain.CheckoutAttempt) error {
	s.attempts[attempt.Reference] = attempt
	return nil
}

type stubGateway struct {
	initResult   payments.InitializeResult
	initErr      error
	verifyResult payments.VerifyResult
	verifyErr    error
	initCalls    int
	verifyCalls  int
}

func (s *stubGateway) Initialize(_ context.Context, _ domain.PaymentMethod, req payments.InitializeRequest) (payments.InitializeResult, error) {
	s.initCalls++
	if s.initErr != nil {
		return payments.InitializeResult{}, s.initErr
	}
	result := s.initResult
	result.Reference = req.Reference
	return result, nil
}

func (s *stubGateway) Verify(_ context.Context, _ domain.PaymentMethod, reference string) (payments.VerifyResult, error) {
	s.verifyCalls++
	if s.verifyErr != nil {
		return payments.VerifyResult{}, s.verifyErr
	}
	result := s.verifyResult
	result.Reference = reference
	return result, nil
}

type stubOrderService struct {
	OrderService

	created   []CreateOrderInput
	createErr error
	orders    map[string]domain.Order
}

func newStubOrderService() *stubOrderService {
	return &stubOrderService{orders: make(map[string]domain.Order)}
}

func (s *stubOrderService) CreateOrder(_ context.Context, input CreateOrderInput) (domain.Order, error) {
	if s.createErr != nil {
		return domain.Order{}, s.createErr
	}
	s.created = append(s.created, input)
	order := domain.Order{
		ID:               "ord_created",
		UserID:           input.UserID,
		PaymentMethod:    input.PaymentMethod,
		PaymentReference: input.PaymentReference,
		PaymentStatus:    input.PaymentStatus,
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderService) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return order, nil
}

type checkoutFixture struct {
	svc      CheckoutService
	attempts *stubAttemptRepository
	carts    *stubCartRepository
	gateway  *stubGateway
	orders   *stubOrderService
	now      time.Time
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	carts := &stubCartRepository{cart: domain.Cart{
		ID:       "user-1",
		UserID:   "user-1",
		Currency: "NGN",
		Items: []domain.CartItem{
			{ID: "itm_A", ProductID: "prd_1", Name: "Oak Chair", UnitPrice: 2_000_000, Quantity: 2},
		},
	}}
	cartSvc, err := NewCartService(CartServiceDeps{
		Carts:    carts,
		Products: sellableStubProducts(),
		Clock:    fixedClock(now),
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}

	attempts := newStubAttemptRepository()
	gateway := &stubGateway{initResult: payments.InitializeResult{RedirectURL: "https://checkout.example/pay"}}
	orders := newStubOrderService()
	refs := 0
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Attempts:    attempts,
		Cart:        cartSvc,
		Orders:      orders,
		Gateway:     gateway,
		Clock:       fixedClock(now),
		IDGenerator: func() string { return "01TEST" },
		NewReference: func() string {
			refs++
			return "tr-TEST"
		},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	return &checkoutFixture{svc: svc, attempts: attempts, carts: carts, gateway: gateway, orders: orders, now: now}
}

func gatewayBeginInput() BeginCheckoutInput {
	return BeginCheckoutInput{
		UserID:          "user-1",
		Email:           "ada@example.com",
		CustomerName:    "Ada Obi",
		ShippingAddress: "12 Marina Road, Lagos",
		Method:          domain.PaymentMethodPaystack,
		CallbackURL:     "https://shop.example/checkout/done",
	}
}

func TestCheckoutBeginGatewayParksAttempt(t *testing.T) {
	f := newCheckoutFixture(t)

	session, err := f.svc.Begin(context.Background(), gatewayBeginInput())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if session.State != domain.CheckoutStateAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s", session.State)
	}
	if session.RedirectURL != "https://checkout.example/pay" {
		t.Fatalf("unexpected redirect %q", session.RedirectURL)
	}
	// 4,000,000 subtotal + 200,000 shipping + 300,000 VAT.
	if session.Amount != 4_500_000 {
		t.Fatalf("expected amount 4500000, got %d", session.Amount)
	}
	if !session.ExpiresAt.Equal(f.now.Add(defaultCheckoutAttemptTTL)) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}

	attempt := f.attempts.attempts[session.Reference]
	if attempt.ShippingAddress != "12 Marina Road, Lagos" {
		t.Fatal("attempt must carry shipping details for the later order write")
	}
	if len(f.orders.created) != 0 {
		t.Fatal("gateway checkout must not write the order at Begin")
	}
	if f.carts.cleared {
		t.Fatal("cart must survive until the order is written")
	}
}

func TestCheckoutBeginBankTransferWritesOrderImmediately(t *testing.T) {
	f := newCheckoutFixture(t)

	input := gatewayBeginInput()
	input.Method = domain.PaymentMethodBankTransfer
	session, err := f.svc.Begin(context.Background(), input)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if session.State != domain.CheckoutStateConfirmed {
		t.Fatalf("expected confirmed, got %s", session.State)
	}
	if session.OrderID != "ord_created" {
		t.Fatalf("expected order ID on session, got %q", session.OrderID)
	}
	if len(f.orders.created) != 1 {
		t.Fatalf("expected one order write, got %d", len(f.orders.created))
	}
	if f.orders.created[0].PaymentStatus != domain.PaymentStatusPending {
		t.Fatal("bank transfer orders must start payment-pending")
	}
	if f.gateway.initCalls != 0 {
		t.Fatal("bank transfer must not touch the gateway")
	}
	if !f.carts.cleared {
		t.Fatal("cart must be cleared after the order is written")
	}
}

func TestCheckoutBeginRejectsEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.cart.Items = nil

	if _, err := f.svc.Begin(context.Background(), gatewayBeginInput()); !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected ErrCheckoutEmptyCart, got %v", err)
	}
}

func TestCheckoutBeginValidation(t *testing.T) {
	f := newCheckoutFixture(t)
	cases := map[string]func(*BeginCheckoutInput){
		"missing user":    func(in *BeginCheckoutInput) { in.UserID = "" },
		"missing email":   func(in *BeginCheckoutInput) { in.Email = "" },
		"missing address": func(in *BeginCheckoutInput) { in.ShippingAddress = "" },
		"unknown method":  func(in *BeginCheckoutInput) { in.Method = "cheque" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := gatewayBeginInput()
			mutate(&input)
			if _, err := f.svc.Begin(context.Background(), input); !errors.Is(err, ErrCheckoutInvalidInput) {
				t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
			}
		})
	}
}

func TestCheckoutConfirmSucceededPayment(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	session, err := f.svc.Begin(ctx, gatewayBeginInput())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	f.gateway.verifyResult = payments.VerifyResult{
		Status:   payments.StatusSucceeded,
		Amount:   session.Amount,
		Currency: "NGN",
	}

	order, err := f.svc.Confirm(ctx, "user-1", session.Reference)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid order, got %s", order.PaymentStatus)
	}
	if order.PaymentReference != session.Reference {
		t.Fatalf("expected reference join, got %q", order.PaymentReference)
	}
	if f.orders.created[0].ShippingAddress != "12 Marina Road, Lagos" {
		t.Fatal("order must use the shipping details captured at Begin")
	}
	if !f.carts.cleared {
		t.Fatal("cart must be cleared after confirmation")
	}
	if got := f.attempts.attempts[session.Reference]; got.State != domain.CheckoutStateConfirmed || got.OrderID != order.ID {
		t.Fatalf("attempt not finalised: %+v", got)
	}
}

func TestCheckoutConfirmIsIdempotent(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	session, err := f.svc.Begin(ctx, gatewayBeginInput())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	f.gateway.verifyResult = payments.VerifyResult{
		Status:   payments.StatusSucceeded,
		Amount:   session.Amount,
		Currency: "NGN",
	}

	first, err := f.svc.Confirm(ctx, "user-1", session.Reference)
	if err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	second, err := f.svc.Confirm(ctx, "user-1", session.Reference)
	if err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same order, got %q and %q", first.ID, second.ID)
	}
	if len(f.orders.created) != 1 {
		t.Fatalf("expected exactly one order write, got %d", len(f.orders.created))
	}
	if f.gateway.verifyCalls != 1 {
		t.Fatalf("confirmed attempts must not re-verify, got %d calls", f.gateway.verifyCalls)
	}
}

func TestCheckoutConfirmFailedPayment(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	session, err := f.svc.Begin(ctx, gatewayBeginInput())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	f.gateway.verifyResult = payments.VerifyResult{Status: payments.StatusFailed}

	if _, err := f.svc.Confirm(ctx, "user-1", session.Reference); !errors.Is(err, ErrCheckoutAttemptFailed) {
		t.Fatalf("expected ErrCheckoutAttemptFailed, got %v", err)
	}
	attempt := f.attempts.attempts[session.Reference]
	if attempt.State != domain.CheckoutStateFailed || attempt.FailureCode != failureCodeGatewayDecline {
		t.Fatalf("attempt not failed: %+v", attempt)
	}
	if f.carts.cleared {
		t.Fatal("failed attempts must leave the cart untouched")
	}
}

func TestCheckoutConfirmAmountMismatch(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	session, err := f.svc.Begin(ctx, gatewayBeginInput())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	f.gateway.verifyResult = payments.VerifyResult{
		Status:   payments.StatusSucceeded,
		Amount:   session.Amount - 1,
		Currency: "NGN",
	}

	if _, err := f.svc.Confirm(ctx, "user-1", session.Reference); !errors.Is(err, ErrCheckoutAttemptFailed) {
		t.Fatalf("expected ErrCheckoutAttemptFailed, got %v", err)
	}
	if got := f.attempts.attempts[session.Reference]; got.FailureCode != failureCodeAmountMismatch {
		t.Fatalf("expected amount mismatch failure, got %q", got.FailureCode)
	}
	if len(f.orders.created) != 0 {
		t.Fatal("underpaid attempts must not write orders")
	}
}

func TestCheckoutConfirmPendingPaymentLeavesAttemptOpen(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	session, err := f.svc.Begin(ctx, gatewayBeginInput())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	f.gateway.verifyResult = payments.VerifyResult{Status: payments.StatusPending}

	if _, err := f.svc.Confirm(ctx, "user-1", session.Reference); !errors.Is(err, ErrCheckoutPaymentPending) {
		t.Fatalf("expected ErrCheckoutPaymentPending, got %v", err)
	}
	if got := f.attempts.attempts[session.Reference]; got.State != domain.CheckoutStateAwaitingPayment {
		t.Fatalf("pending payment must keep the attempt open, got %s", got.State)
	}
}

func TestCheckoutConfirmExpiredAttempt(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	session, err := f.svc.Begin(ctx, gatewayBeginInput())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	attempt := f.attempts.attempts[session.Reference]
	attempt.ExpiresAt = f.now.Add(-time.Minute)
	f.attempts.attempts[session.Reference] = attempt

	if _, err := f.svc.Confirm(ctx, "user-1", session.Reference); !errors.Is(err, ErrCheckoutAttemptFailed) {
		t.Fatalf("expected ErrCheckoutAttemptFailed, got %v", err)
	}
	if got := f.attempts.attempts[session.Reference]; got.FailureCode != failureCodeExpired {
		t.Fatalf("expected expired failure, got %q", got.FailureCode)
	}
	if f.gateway.verifyCalls != 0 {
		t.Fatal("expired attempts must not hit the gateway")
	}
}

func TestCheckoutAttemptOwnership(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	session, err := f.svc.Begin(ctx, gatewayBeginInput())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := f.svc.GetAttempt(ctx, "someone-else", session.Reference); !errors.Is(err, ErrCheckoutAttemptNotFound) {
		t.Fatalf("foreign attempts must read as not found, got %v", err)
	}
	if _, err := f.svc.Confirm(ctx, "someone-else", session.Reference); !errors.Is(err, ErrCheckoutAttemptNotFound) {
		t.Fatalf("foreign confirms must read as not found, got %v", err)
	}
}
