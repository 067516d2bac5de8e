package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPaystackBaseURL points at the production Paystack API.
	DefaultPaystackBaseURL = "https://api.paystack.co"

	paystackProviderName = "paystack"
)

// PaystackProvider implements Provider over the Paystack transaction API.
type PaystackProvider struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// PaystackOption configures optional behaviour on the provider.
type PaystackOption func(*PaystackProvider)

// WithPaystackBaseURL overrides the API base URL, primarily for tests.
func WithPaystackBaseURL(baseURL string) PaystackOption {
	return func(p *PaystackProvider) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			p.baseURL = trimmed
		}
	}
}

// WithPaystackHTTPClient overrides the HTTP client used for gateway calls.
func WithPaystackHTTPClient(client *http.Client) PaystackOption {
	return func(p *PaystackProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithPaystackLogger attaches a logger for request failures.
func WithPaystackLogger(logger *zap.Logger) PaystackOption {
	return func(p *PaystackProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPaystackProvider constructs a provider using the supplied secret key.
func NewPaystackProvider(secretKey string, opts ...PaystackOption) (*PaystackProvider, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("payments: paystack secret key is required")
	}
	provider := &PaystackProvider{
		secretKey:  strings.TrimSpace(secretKey),
		baseURL:    DefaultPaystackBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider, nil
}

type paystackInitializePayload struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackTransactionData struct {
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Channel  string `json:"channel"`
	PaidAt   string `json:"paid_at"`
}

// Initialize opens a hosted Paystack checkout session. Amounts are passed in
// the minor currency unit, which matches Paystack's kobo convention for NGN.
func (p *PaystackProvider) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return InitializeResult{}, errors.New("payments: reference is required")
	}
	if req.Amount <= 0 {
		return InitializeResult{}, errors.New("payments: amount must be positive")
	}
	if strings.TrimSpace(req.Email) == "" {
		return InitializeResult{}, errors.New("payments: customer email is required")
	}

	payload := paystackInitializePayload{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	envelope, err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return InitializeResult{}, err
	}

	var data paystackInitializeData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return InitializeResult{}, fmt.Errorf("payments: decode paystack initialize response: %w", err)
	}
	if data.AuthorizationURL == "" {
		return InitializeResult{}, fmt.Errorf("payments: paystack returned no authorization url (%s)", envelope.Message)
	}

	return InitializeResult{
		Provider:    paystackProviderName,
		Reference:   req.Reference,
		RedirectURL: data.AuthorizationURL,
		AccessCode:  data.AccessCode,
	}, nil
}

// Verify looks up a transaction by reference on Paystack's side.
func (p *PaystackProvider) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResult{}, errors.New("payments: reference is required")
	}

	envelope, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return VerifyResult{}, err
	}

	var data paystackTransactionData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return VerifyResult{}, fmt.Errorf("payments: decode paystack verify response: %w", err)
	}

	result := VerifyResult{
		Provider:  paystackProviderName,
		Reference: reference,
		Status:    normalisePaystackStatus(data.Status),
		Amount:    data.Amount,
		Currency:  strings.ToUpper(data.Currency),
		Channel:   data.Channel,
	}
	if data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			result.PaidAt = &paidAt
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(envelope.Data, &raw); err == nil {
		result.Raw = raw
	}
	return result, nil
}

func normalisePaystackStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return StatusSucceeded
	case "failed", "abandoned", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}

func (p *PaystackProvider) do(ctx context.Context, method, path string, payload any) (paystackEnvelope, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return paystackEnvelope{}, fmt.Errorf("payments: encode paystack request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return paystackEnvelope{}, fmt.Errorf("payments: build paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("paystack request failed", zap.String("path", path), zap.Error(err))
		return paystackEnvelope{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return paystackEnvelope{}, fmt.Errorf("payments: read paystack response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return paystackEnvelope{}, ErrTransactionNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		p.logger.Warn("paystack server error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return paystackEnvelope{}, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return paystackEnvelope{}, fmt.Errorf("payments: decode paystack response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !envelope.Status {
		return paystackEnvelope{}, fmt.Errorf("payments: paystack rejected request: %s (status %d)", envelope.Message, resp.StatusCode)
	}
	return envelope, nil
}
