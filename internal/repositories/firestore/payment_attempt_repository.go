package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/elite-furniture/api/internal/domain"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

const (
	paymentAttemptsCollection = "payment_attempts"

	defaultPaymentAttemptPageSize = 20
	maxPaymentAttemptPageSize     = 100
)

type paymentAttemptDocument struct {
	OrderID     string    `firestore:"orderId"`
	UserID      string    `firestore:"userId"`
	Amount      int64     `firestore:"amount"`
	Method      string    `firestore:"method"`
	ReceiptPath string    `firestore:"receiptPath"`
	Status      string    `firestore:"status"`
	VerifiedBy  string    `firestore:"verifiedBy,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// PaymentAttemptRepository persists bank-transfer evidence records.
type PaymentAttemptRepository struct {
	base *pfirestore.BaseRepository[paymentAttemptDocument]
}

var _ repositories.PaymentAttemptRepository = (*PaymentAttemptRepository)(nil)

// NewPaymentAttemptRepository constructs a Firestore-backed payment attempt repository.
func NewPaymentAttemptRepository(provider *pfirestore.Provider) (*PaymentAttemptRepository, error) {
	if provider == nil {
		return nil, errors.New("payment attempt repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[paymentAttemptDocument](provider, paymentAttemptsCollection, nil, nil)
	return &PaymentAttemptRepository{base: base}, nil
}

// Insert creates the attempt document and fails when the ID already exists.
func (r *PaymentAttemptRepository) Insert(ctx context.Context, attempt domain.PaymentAttempt) error {
	if r == nil || r.base == nil {
		return errors.New("payment attempt repository not initialised")
	}
	if strings.TrimSpace(attempt.ID) == "" {
		return errors.New("payment attempt repository: attempt id is required")
	}
	_, err := r.base.Create(ctx, attempt.ID, encodePaymentAttemptDocument(attempt))
	return err
}

// FindByID fetches a single attempt.
func (r *PaymentAttemptRepository) FindByID(ctx context.Context, attemptID string) (domain.PaymentAttempt, error) {
	if r == nil || r.base == nil {
		return domain.PaymentAttempt{}, errors.New("payment attempt repository not initialised")
	}
	doc, err := r.base.Get(ctx, attemptID)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	return decodePaymentAttemptDocument(doc.ID, doc.Data), nil
}

// FindPendingByOrder returns the pending attempt for an order when one exists.
func (r *PaymentAttemptRepository) FindPendingByOrder(ctx context.Context, orderID string) (domain.PaymentAttempt, error) {
	if r == nil || r.base == nil {
		return domain.PaymentAttempt{}, errors.New("payment attempt repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.PaymentAttempt{}, errors.New("payment attempt repository: order id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).
			Where("status", "==", string(domain.PaymentAttemptPending)).
			Limit(1)
	})
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	if len(docs) == 0 {
		return domain.PaymentAttempt{}, pfirestore.NewNotFoundError("payment_attempts.findpending", orderID)
	}
	return decodePaymentAttemptDocument(docs[0].ID, docs[0].Data), nil
}

// List returns an attempt page, oldest first so the back-office works a queue.
func (r *PaymentAttemptRepository) List(ctx context.Context, filter repositories.PaymentAttemptListFilter) (domain.CursorPage[domain.PaymentAttempt], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.PaymentAttempt]{}, errors.New("payment attempt repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultPaymentAttemptPageSize
	}
	if limit > maxPaymentAttemptPageSize {
		limit = maxPaymentAttemptPageSize
	}
	fetchLimit := limit + 1

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodePaymentAttemptListToken(token)
		if err != nil {
			return domain.CursorPage[domain.PaymentAttempt]{}, fmt.Errorf("payment attempt repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		q = q.OrderBy("createdAt", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.PaymentAttempt]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-2]
		nextToken = encodePaymentAttemptListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.PaymentAttempt, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodePaymentAttemptDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.PaymentAttempt]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStatus records the verification outcome and the admin who decided it.
func (r *PaymentAttemptRepository) UpdateStatus(ctx context.Context, attemptID string, status domain.PaymentAttemptStatus, verifiedBy string) (domain.PaymentAttempt, error) {
	if r == nil || r.base == nil {
		return domain.PaymentAttempt{}, errors.New("payment attempt repository not initialised")
	}
	if status == "" {
		return domain.PaymentAttempt{}, errors.New("payment attempt repository: status is required")
	}

	_, err := r.base.Update(ctx, attemptID, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "verifiedBy", Value: strings.TrimSpace(verifiedBy)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	return r.FindByID(ctx, attemptID)
}

func encodePaymentAttemptDocument(attempt domain.PaymentAttempt) paymentAttemptDocument {
	return paymentAttemptDocument{
		OrderID:     strings.TrimSpace(attempt.OrderID),
		UserID:      strings.TrimSpace(attempt.UserID),
		Amount:      attempt.Amount,
		Method:      string(attempt.Method),
		ReceiptPath: strings.TrimSpace(attempt.ReceiptPath),
		Status:      string(attempt.Status),
		VerifiedBy:  strings.TrimSpace(attempt.VerifiedBy),
		CreatedAt:   attempt.CreatedAt.UTC(),
		UpdatedAt:   attempt.UpdatedAt.UTC(),
	}
}

func decodePaymentAttemptDocument(id string, doc paymentAttemptDocument) domain.PaymentAttempt {
	return domain.PaymentAttempt{
		ID:          id,
		OrderID:     doc.OrderID,
		UserID:      doc.UserID,
		Amount:      doc.Amount,
		Method:      domain.PaymentMethod(doc.Method),
		ReceiptPath: doc.ReceiptPath,
		Status:      domain.PaymentAttemptStatus(doc.Status),
		VerifiedBy:  doc.VerifiedBy,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func encodePaymentAttemptListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodePaymentAttemptListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}
