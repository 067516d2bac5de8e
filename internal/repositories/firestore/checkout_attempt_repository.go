package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

const checkoutAttemptsCollection = "checkout_attempts"

type checkoutAttemptDocument struct {
	Reference   string    `firestore:"reference"`
	UserID      string    `firestore:"userId"`
	State       string    `firestore:"state"`
	Method      string    `firestore:"method"`
	Amount      int64     `firestore:"amount"`
	Currency    string    `firestore:"currency"`
	Email       string    `firestore:"email"`
	Customer    string    `firestore:"customerName,omitempty"`
	Shipping    string    `firestore:"shippingAddress,omitempty"`
	Phone       string    `firestore:"phone,omitempty"`
	Notes       string    `firestore:"notes,omitempty"`
	OrderID     string    `firestore:"orderId,omitempty"`
	FailureCode string    `firestore:"failureCode,omitempty"`
	RedirectURL string    `firestore:"redirectUrl,omitempty"`
	ExpiresAt   time.Time `firestore:"expiresAt"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// CheckoutAttemptRepository persists checkout attempts keyed by payment
// reference, so a reference can never map to two attempts.
type CheckoutAttemptRepository struct {
	base *pfirestore.BaseRepository[checkoutAttemptDocument]
}

var _ repositories.CheckoutAttemptRepository = (*CheckoutAttemptRepository)(nil)

// NewCheckoutAttemptRepository constructs a Firestore-backed attempt repository.
func NewCheckoutAttemptRepository(provider *pfirestore.Provider) (*CheckoutAttemptRepository, error) {
	if provider == nil {
		return nil, errors.New("checkout attempt repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[checkoutAttemptDocument](provider, checkoutAttemptsCollection, nil, nil)
	return &CheckoutAttemptRepository{base: base}, nil
}

// Create writes a new attempt and fails with a conflict when the reference exists.
func (r *CheckoutAttemptRepository) Create(ctx context.Context, attempt domain.CheckoutAttempt) error {
	if r == nil || r.base == nil {
		return errors.New("checkout attempt repository not initialised")
	}
	reference := strings.TrimSpace(attempt.Reference)
	if reference == "" {
		return errors.New("checkout attempt repository: reference is required")
	}
	_, err := r.base.Create(ctx, reference, encodeCheckoutAttemptDocument(attempt))
	return err
}

// FindByReference fetches the attempt for the reference.
func (r *CheckoutAttemptRepository) FindByReference(ctx context.Context, reference string) (domain.CheckoutAttempt, error) {
	if r == nil || r.base == nil {
		return domain.CheckoutAttempt{}, errors.New("checkout attempt repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(reference))
	if err != nil {
		return domain.CheckoutAttempt{}, err
	}
	return decodeCheckoutAttemptDocument(doc.ID, doc.Data), nil
}

// Update replaces the attempt document.
func (r *CheckoutAttemptRepository) Update(ctx context.Context, attempt domain.CheckoutAttempt) error {
	if r == nil || r.base == nil {
		return errors.New("checkout attempt repository not initialised")
	}
	reference := strings.TrimSpace(attempt.Reference)
	if reference == "" {
		return errors.New("checkout attempt repository: reference is required")
	}
	_, err := r.base.Set(ctx, reference, encodeCheckoutAttemptDocument(attempt))
	return err
}

func encodeCheckoutAttemptDocument(attempt domain.CheckoutAttempt) checkoutAttemptDocument {
	return checkoutAttemptDocument{
		Reference:   strings.TrimSpace(attempt.Reference),
		UserID:      strings.TrimSpace(attempt.UserID),
		State:       string(attempt.State),
		Method:      string(attempt.Method),
		Amount:      attempt.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(attempt.Currency)),
		Email:       strings.TrimSpace(attempt.Email),
		Customer:    strings.TrimSpace(attempt.CustomerName),
		Shipping:    strings.TrimSpace(attempt.ShippingAddress),
		Phone:       strings.TrimSpace(attempt.Phone),
		Notes:       strings.TrimSpace(attempt.Notes),
		OrderID:     strings.TrimSpace(attempt.OrderID),
		FailureCode: strings.TrimSpace(attempt.FailureCode),
		RedirectURL: strings.TrimSpace(attempt.RedirectURL),
		ExpiresAt:   attempt.ExpiresAt.UTC(),
		CreatedAt:   attempt.CreatedAt.UTC(),
		UpdatedAt:   attempt.UpdatedAt.UTC(),
	}
}

func decodeCheckoutAttemptDocument(id string, doc checkoutAttemptDocument) domain.CheckoutAttempt {
	return domain.CheckoutAttempt{
		ID:              id,
		Reference:       doc.Reference,
		UserID:          doc.UserID,
		State:           domain.CheckoutState(doc.State),
		Method:          domain.PaymentMethod(doc.Method),
		Amount:          doc.Amount,
		Currency:        doc.Currency,
		Email:           doc.Email,
		CustomerName:    doc.Customer,
		ShippingAddress: doc.Shipping,
		Phone:           doc.Phone,
		Notes:           doc.Notes,
		OrderID:         doc.OrderID,
		FailureCode:     doc.FailureCode,
		RedirectURL:     doc.RedirectURL,
		ExpiresAt:       doc.ExpiresAt,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}
