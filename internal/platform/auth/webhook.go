package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// PaystackSignatureHeader carries the hex HMAC-SHA512 of the raw body.
	PaystackSignatureHeader = "X-Paystack-Signature"
	// FlutterwaveHashHeader carries the literal verification hash configured on the dashboard.
	FlutterwaveHashHeader = "Verif-Hash"
)

// SecretProvider resolves shared secrets used for webhook validation.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretProviderFunc adapts a function to the SecretProvider interface.
type SecretProviderFunc func(context.Context, string) (string, error)

// GetSecret implements SecretProvider.
func (f SecretProviderFunc) GetSecret(ctx context.Context, name string) (string, error) {
	if f == nil {
		return "", errors.New("auth: secret provider not configured")
	}
	return f(ctx, name)
}

// WebhookValidator authenticates inbound payment gateway callbacks before any
// event is processed. Paystack events are verified against an HMAC-SHA512 of
// the raw body; Flutterwave events against the configured verification hash.
type WebhookValidator struct {
	provider SecretProvider
	logger   *zap.Logger

	secretCache sync.Map
}

// NewWebhookValidator builds a validator using the given secret provider.
func NewWebhookValidator(provider SecretProvider, logger *zap.Logger) *WebhookValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookValidator{provider: provider, logger: logger}
}

// RequirePaystackSignature enforces a valid X-Paystack-Signature on the request.
// The body is restored so downstream handlers can decode the event payload.
func (v *WebhookValidator) RequirePaystackSignature(secretName string) func(http.Handler) http.Handler {
	secretName = strings.TrimSpace(secretName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			secret, err := v.loadSecret(ctx, secretName)
			if err != nil {
				v.logger.Error("webhook secret unavailable", zap.Error(err))
				respondWebhookError(w, http.StatusServiceUnavailable, "verification_unavailable", "webhook secret unavailable")
				return
			}

			signature := strings.TrimSpace(r.Header.Get(PaystackSignatureHeader))
			if signature == "" {
				respondWebhookError(w, http.StatusUnauthorized, "signature_missing", "signature header missing")
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				respondWebhookError(w, http.StatusBadRequest, "invalid_body", "unable to read body for signature verification")
				return
			}

			mac := hmac.New(sha512.New, secret)
			mac.Write(body)
			expected := hex.EncodeToString(mac.Sum(nil))

			if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
				v.logger.Warn("webhook signature mismatch", zap.String("provider", "paystack"))
				respondWebhookError(w, http.StatusUnauthorized, "signature_mismatch", "signature verification failed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireFlutterwaveHash enforces a matching Verif-Hash header on the request.
func (v *WebhookValidator) RequireFlutterwaveHash(secretName string) func(http.Handler) http.Handler {
	secretName = strings.TrimSpace(secretName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret, err := v.loadSecret(r.Context(), secretName)
			if err != nil {
				v.logger.Error("webhook secret unavailable", zap.Error(err))
				respondWebhookError(w, http.StatusServiceUnavailable, "verification_unavailable", "webhook secret unavailable")
				return
			}

			hash := strings.TrimSpace(r.Header.Get(FlutterwaveHashHeader))
			if hash == "" {
				respondWebhookError(w, http.StatusUnauthorized, "signature_missing", "verification hash missing")
				return
			}
			if !hmac.Equal([]byte(hash), secret) {
				v.logger.Warn("webhook signature mismatch", zap.String("provider", "flutterwave"))
				respondWebhookError(w, http.StatusUnauthorized, "signature_mismatch", "verification hash mismatch")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (v *WebhookValidator) loadSecret(ctx context.Context, name string) ([]byte, error) {
	if v == nil || v.provider == nil {
		return nil, errors.New("auth: secret provider not configured")
	}
	if name == "" {
		return nil, errors.New("auth: webhook secret name is required")
	}

	if cached, ok := v.secretCache.Load(name); ok {
		if secret, ok := cached.([]byte); ok && len(secret) > 0 {
			return secret, nil
		}
	}

	raw, err := v.provider.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	secret := []byte(strings.TrimSpace(raw))
	if len(secret) == 0 {
		return nil, errors.New("auth: webhook secret is empty")
	}

	v.secretCache.Store(name, secret)
	return secret, nil
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}

func respondWebhookError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
