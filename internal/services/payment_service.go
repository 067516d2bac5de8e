package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/platform/storage"
	"github.com/elite-furniture/api/internal/repositories"
)

const (
	paymentAttemptIDPrefix    = "pay_"
	defaultReceiptDownloadTTL = 15 * time.Minute
)

// Gateway webhook event kinds after provider-specific normalisation.
const (
	GatewayEventChargeSucceeded = "charge.success"
	GatewayEventChargeFailed    = "charge.failed"
)

// ErrPaymentInvalidInput indicates the caller supplied invalid input.
var ErrPaymentInvalidInput = errors.New("payment service: invalid input")

// ErrPaymentAttemptNotFound indicates the evidence record does not exist.
var ErrPaymentAttemptNotFound = errors.New("payment service: attempt not found")

// ErrPaymentNotEligible indicates the order cannot accept transfer evidence.
var ErrPaymentNotEligible = errors.New("payment service: order not eligible for transfer evidence")

// ErrPaymentDuplicatePending indicates evidence for the order is already queued.
var ErrPaymentDuplicatePending = errors.New("payment service: evidence already pending for order")

// ErrPaymentAttemptSettled indicates the attempt was already verified or rejected.
var ErrPaymentAttemptSettled = errors.New("payment service: attempt already settled")

// ErrPaymentUnavailable indicates the payment backend cannot fulfil the request.
var ErrPaymentUnavailable = errors.New("payment service: unavailable")

// ReceiptUploader stores transfer evidence objects.
type ReceiptUploader interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (storage.UploadResult, error)
}

// ReceiptSigner issues time-limited download URLs for stored receipts.
type ReceiptSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// PaymentServiceDeps wires the collaborators of the payment surfaces.
type PaymentServiceDeps struct {
	Attempts         repositories.PaymentAttemptRepository
	CheckoutAttempts repositories.CheckoutAttemptRepository
	Checkout         CheckoutService
	Orders           OrderService
	Uploader         ReceiptUploader
	Signer           ReceiptSigner
	Bucket           string
	DownloadTTL      time.Duration
	Publisher        NotificationPublisher
	Clock            func() time.Time
	IDGenerator      func() string
	Logger           func(context.Context, string, map[string]any)
}

type paymentService struct {
	attempts         repositories.PaymentAttemptRepository
	checkoutAttempts repositories.CheckoutAttemptRepository
	checkout         CheckoutService
	orders           OrderService
	uploader         ReceiptUploader
	signer           ReceiptSigner
	bucket           string
	downloadTTL      time.Duration
	publisher        NotificationPublisher
	now              func() time.Time
	newID            func() string
	logger           func(context.Context, string, map[string]any)
}

// NewPaymentService constructs a PaymentService enforcing dependency validation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Attempts == nil {
		return nil, errors.New("payment service: attempt repository is required")
	}
	if deps.CheckoutAttempts == nil {
		return nil, errors.New("payment service: checkout attempt repository is required")
	}
	if deps.Checkout == nil {
		return nil, errors.New("payment service: checkout service is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order service is required")
	}
	if deps.Uploader == nil {
		return nil, errors.New("payment service: receipt uploader is required")
	}
	if deps.Signer == nil {
		return nil, errors.New("payment service: receipt signer is required")
	}
	if strings.TrimSpace(deps.Bucket) == "" {
		return nil, errors.New("payment service: receipt bucket is required")
	}

	downloadTTL := deps.DownloadTTL
	if downloadTTL <= 0 {
		downloadTTL = defaultReceiptDownloadTTL
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

	return &paymentService{
		attempts:         deps.Attempts,
		checkoutAttempts: deps.CheckoutAttempts,
		checkout:         deps.Checkout,
		orders:           deps.Orders,
		uploader:         deps.Uploader,
		signer:           deps.Signer,
		bucket:           strings.TrimSpace(deps.Bucket),
		downloadTTL:      downloadTTL,
		publisher:        deps.Publisher,
		now:              func() time.Time { return clock().UTC() },
		newID:            idGen,
		logger:           logger,
	}, nil
}

// SubmitTransferEvidence stores an uploaded receipt and queues it for manual
// verification. Only the order's owner can submit, only for a bank transfer
// order that is still payment-pending, and only one submission may be
// pending per order at a time.
func (s *paymentService) SubmitTransferEvidence(ctx context.Context, input TransferEvidenceInput) (domain.PaymentAttempt, error) {
	orderID := strings.TrimSpace(input.OrderID)
	userID := strings.TrimSpace(input.UserID)
	fileName := strings.TrimSpace(input.FileName)
	if orderID == "" || userID == "" || fileName == "" || input.Body == nil {
		return domain.PaymentAttempt{}, ErrPaymentInvalidInput
	}

	order, err := s.orders.GetUserOrder(ctx, userID, orderID)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}
	if order.PaymentMethod != domain.PaymentMethodBankTransfer {
		return domain.PaymentAttempt{}, fmt.Errorf("%w: order is %s", ErrPaymentNotEligible, order.PaymentMethod)
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		return domain.PaymentAttempt{}, fmt.Errorf("%w: payment is %s", ErrPaymentNotEligible, order.PaymentStatus)
	}

	if _, err := s.attempts.FindPendingByOrder(ctx, orderID); err == nil {
		return domain.PaymentAttempt{}, ErrPaymentDuplicatePending
	} else if !repositories.IsNotFound(err) {
		return domain.PaymentAttempt{}, s.translateError(err)
	}

	object, err := storage.BuildObjectPath(storage.PurposeReceipt, storage.PathParams{
		OrderID:  orderID,
		UserID:   userID,
		FileName: fileName,
	})
	if err != nil {
		return domain.PaymentAttempt{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
	}

	uploaded, err := s.uploader.Upload(ctx, object, input.ContentType, input.Body)
	if err != nil {
		if errors.Is(err, storage.ErrObjectTooLarge) || errors.Is(err, storage.ErrUploadContentType) {
			return domain.PaymentAttempt{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
		}
		return domain.PaymentAttempt{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	now := s.now()
	attempt := domain.PaymentAttempt{
		ID:          paymentAttemptIDPrefix + s.newID(),
		OrderID:     orderID,
		UserID:      userID,
		Amount:      order.Totals.Total,
		Method:      domain.PaymentMethodBankTransfer,
		ReceiptPath: uploaded.Object,
		Status:      domain.PaymentAttemptPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		return domain.PaymentAttempt{}, s.translateError(err)
	}

	s.publish(ctx, domain.PaymentNotification{
		Kind:          "transfer_evidence_submitted",
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Amount:        order.Totals.Total,
		Currency:      order.Currency,
		ReceiptPath:   uploaded.Object,
		OccurredAt:    now,
	})
	s.logger(ctx, "payment.evidence.submitted", map[string]any{
		"attemptId": attempt.ID,
		"orderId":   orderID,
	})
	return attempt, nil
}

// ListAttempts returns the admin verification queue, oldest first.
func (s *paymentService) ListAttempts(ctx context.Context, status domain.PaymentAttemptStatus, pager domain.Pagination) (domain.CursorPage[domain.PaymentAttempt], error) {
	page, err := s.attempts.List(ctx, repositories.PaymentAttemptListFilter{
		Status:     status,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[domain.PaymentAttempt]{}, s.translateError(err)
	}
	return page, nil
}

// VerifyAttempt confirms the transfer and marks the order paid.
func (s *paymentService) VerifyAttempt(ctx context.Context, attemptID string, adminID string) (domain.PaymentAttempt, error) {
	attempt, err := s.settleAttempt(ctx, attemptID, adminID, domain.PaymentAttemptVerified)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}

	order, err := s.orders.MarkPaymentStatus(ctx, attempt.OrderID, domain.PaymentStatusPaid)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}

	s.publish(ctx, domain.PaymentNotification{
		Kind:          "payment_verified",
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Amount:        attempt.Amount,
		Currency:      order.Currency,
		OccurredAt:    s.now(),
	})
	s.logger(ctx, "payment.evidence.verified", map[string]any{
		"attemptId": attempt.ID,
		"orderId":   attempt.OrderID,
		"adminId":   adminID,
	})
	return attempt, nil
}

// RejectAttempt marks the evidence rejected. The order stays payment-pending
// so the customer can submit a corrected receipt.
func (s *paymentService) RejectAttempt(ctx context.Context, attemptID string, adminID string) (domain.PaymentAttempt, error) {
	attempt, err := s.settleAttempt(ctx, attemptID, adminID, domain.PaymentAttemptRejected)
	if err != nil {
		return domain.PaymentAttempt{}, err
	}

	order, err := s.orders.GetOrder(ctx, attempt.OrderID)
	if err == nil {
		s.publish(ctx, domain.PaymentNotification{
			Kind:          "payment_rejected",
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerEmail: order.CustomerEmail,
			Amount:        attempt.Amount,
			Currency:      order.Currency,
			OccurredAt:    s.now(),
		})
	}
	s.logger(ctx, "payment.evidence.rejected", map[string]any{
		"attemptId": attempt.ID,
		"orderId":   attempt.OrderID,
		"adminId":   adminID,
	})
	return attempt, nil
}

// ReceiptDownloadURL issues a short-lived signed URL for the stored receipt.
func (s *paymentService) ReceiptDownloadURL(ctx context.Context, attemptID string) (string, error) {
	attemptID = strings.TrimSpace(attemptID)
	if attemptID == "" {
		return "", ErrPaymentInvalidInput
	}
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		return "", s.translateError(err)
	}

	result, err := s.signer.SignedURL(ctx, s.bucket, attempt.ReceiptPath, storage.SignedURLOptions{
		Download: &storage.DownloadOptions{
			ExpiresIn:      s.downloadTTL,
			AllowAnonymous: true,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
	return result.URL, nil
}

// HandleGatewayEvent reacts to an asynchronous gateway webhook. Successful
// charges drive the checkout confirmation path, which re-verifies the
// transaction server side; the webhook payload itself is never trusted.
func (s *paymentService) HandleGatewayEvent(ctx context.Context, event GatewayEvent) error {
	reference := strings.TrimSpace(event.Reference)
	if reference == "" {
		return ErrPaymentInvalidInput
	}
	if event.Kind != GatewayEventChargeSucceeded {
		s.logger(ctx, "payment.webhook.ignored", map[string]any{
			"reference": reference,
			"kind":      event.Kind,
		})
		return nil
	}

	attempt, err := s.checkoutAttempts.FindByReference(ctx, reference)
	if err != nil {
		if repositories.IsNotFound(err) {
			// Unknown references are acknowledged so the gateway stops retrying.
			s.logger(ctx, "payment.webhook.unknown_reference", map[string]any{
				"reference": reference,
			})
			return nil
		}
		return s.translateError(err)
	}

	_, err = s.checkout.Confirm(ctx, attempt.UserID, reference)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCheckoutPaymentPending):
		return nil
	case errors.Is(err, ErrCheckoutAttemptFailed):
		s.logger(ctx, "payment.webhook.attempt_failed", map[string]any{
			"reference": reference,
			"error":     err.Error(),
		})
		return nil
	}
	return err
}

// settleAttempt moves a pending attempt to a terminal status.
func (s *paymentService) settleAttempt(ctx context.Context, attemptID string, adminID string, status domain.PaymentAttemptStatus) (domain.PaymentAttempt, error) {
	attemptID = strings.TrimSpace(attemptID)
	adminID = strings.TrimSpace(adminID)
	if attemptID == "" || adminID == "" {
		return domain.PaymentAttempt{}, ErrPaymentInvalidInput
	}

	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		return domain.PaymentAttempt{}, s.translateError(err)
	}
	if attempt.Status != domain.PaymentAttemptPending {
		return domain.PaymentAttempt{}, fmt.Errorf("%w: attempt is %s", ErrPaymentAttemptSettled, attempt.Status)
	}

	updated, err := s.attempts.UpdateStatus(ctx, attemptID, status, adminID)
	if err != nil {
		return domain.PaymentAttempt{}, s.translateError(err)
	}
	return updated, nil
}

// publish dispatches a notification without failing the caller.
func (s *paymentService) publish(ctx context.Context, notification domain.PaymentNotification) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishPaymentNotification(ctx, notification); err != nil {
		s.logger(ctx, "payment.notification.failed", map[string]any{
			"kind":    notification.Kind,
			"orderId": notification.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *paymentService) translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrPaymentAttemptNotFound, err)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrPaymentDuplicatePending, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}
	return err
}
