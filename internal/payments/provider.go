package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elite-furniture/api/internal/domain"
)

// Status enumerates the normalised transaction states shared across gateways.
type Status string

const (
	// StatusPending indicates the buyer has not completed the hosted flow yet.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the charge as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports an abandoned or declined charge.
	StatusFailed Status = "failed"
)

var (
	// ErrUnsupportedMethod is returned when no provider handles the payment method.
	ErrUnsupportedMethod = errors.New("payments: unsupported payment method")
	// ErrTransactionNotFound is returned when the gateway has no record of the reference.
	ErrTransactionNotFound = errors.New("payments: transaction not found")
	// ErrGatewayUnavailable is returned when the gateway cannot be reached or
	// responds with a server error.
	ErrGatewayUnavailable = errors.New("payments: gateway unavailable")
)

// InitializeRequest captures the payload required to open a hosted payment session.
type InitializeRequest struct {
	Reference   string
	Amount      int64
	Currency    string
	Email       string
	CallbackURL string
	Metadata    map[string]string
}

// InitializeResult describes the hosted session handed back to the client.
type InitializeResult struct {
	Provider    string
	Reference   string
	RedirectURL string
	AccessCode  string
}

// VerifyResult normalises a gateway's server-side transaction lookup.
type VerifyResult struct {
	Provider  string
	Reference string
	Status    Status
	Amount    int64
	Currency  string
	Channel   string
	PaidAt    *time.Time
	Raw       map[string]any
}

// Matches reports whether the verified transaction settles the expected
// amount in the expected currency. Verification without this check would let
// a tampered client confirm an underpaid order.
func (r VerifyResult) Matches(amount int64, currency string) bool {
	return r.Status == StatusSucceeded && r.Amount == amount && r.Currency == currency
}

// Provider defines the contract gateway adapters implement.
type Provider interface {
	// Initialize opens a hosted payment session for the supplied reference.
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error)
	// Verify looks the transaction up by reference on the gateway's side.
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

// Manager routes gateway calls to the provider registered for a payment method.
type Manager struct {
	providers map[domain.PaymentMethod]Provider
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[domain.PaymentMethod]Provider) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[domain.PaymentMethod]Provider, len(providers))
	for method, provider := range providers {
		if method == "" || provider == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for method %q", method)
		}
		copyMap[method] = provider
	}
	return &Manager{providers: copyMap}, nil
}

func (m *Manager) resolve(method domain.PaymentMethod) (Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return nil, errors.New("payments: no providers registered")
	}
	provider, ok := m.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	return provider, nil
}

// Initialize delegates to the provider registered for the method.
func (m *Manager) Initialize(ctx context.Context, method domain.PaymentMethod, req InitializeRequest) (InitializeResult, error) {
	provider, err := m.resolve(method)
	if err != nil {
		return InitializeResult{}, err
	}
	return provider.Initialize(ctx, req)
}

// Verify delegates to the provider registered for the method.
func (m *Manager) Verify(ctx context.Context, method domain.PaymentMethod, reference string) (VerifyResult, error) {
	provider, err := m.resolve(method)
	if err != nil {
		return VerifyResult{}, err
	}
	return provider.Verify(ctx, reference)
}
