package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultFlutterwaveBaseURL points at the production Flutterwave v3 API.
	DefaultFlutterwaveBaseURL = "https://api.flutterwave.com/v3"

	flutterwaveProviderName = "flutterwave"
)

// FlutterwaveProvider implements Provider over the Flutterwave v3 API.
//
// Flutterwave expresses amounts in major currency units, so the adapter
// converts to and from the minor units used everywhere else in the service.
type FlutterwaveProvider struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// FlutterwaveOption configures optional behaviour on the provider.
type FlutterwaveOption func(*FlutterwaveProvider)

// WithFlutterwaveBaseURL overrides the API base URL, primarily for tests.
func WithFlutterwaveBaseURL(baseURL string) FlutterwaveOption {
	return func(p *FlutterwaveProvider) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			p.baseURL = trimmed
		}
	}
}

// WithFlutterwaveHTTPClient overrides the HTTP client used for gateway calls.
func WithFlutterwaveHTTPClient(client *http.Client) FlutterwaveOption {
	return func(p *FlutterwaveProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithFlutterwaveLogger attaches a logger for request failures.
func WithFlutterwaveLogger(logger *zap.Logger) FlutterwaveOption {
	return func(p *FlutterwaveProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewFlutterwaveProvider constructs a provider using the supplied secret key.
func NewFlutterwaveProvider(secretKey string, opts ...FlutterwaveOption) (*FlutterwaveProvider, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("payments: flutterwave secret key is required")
	}
	provider := &FlutterwaveProvider{
		secretKey:  strings.TrimSpace(secretKey),
		baseURL:    DefaultFlutterwaveBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider, nil
}

type flutterwaveCustomer struct {
	Email string `json:"email"`
}

type flutterwaveInitializePayload struct {
	TxRef       string              `json:"tx_ref"`
	Amount      string              `json:"amount"`
	Currency    string              `json:"currency"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	Customer    flutterwaveCustomer `json:"customer"`
	Meta        map[string]string   `json:"meta,omitempty"`
}

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type flutterwaveInitializeData struct {
	Link string `json:"link"`
}

type flutterwaveTransactionData struct {
	TxRef     string  `json:"tx_ref"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	CreatedAt string  `json:"created_at"`
}

// Initialize opens a hosted Flutterwave payment page for the reference.
func (p *FlutterwaveProvider) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return InitializeResult{}, errors.New("payments: reference is required")
	}
	if req.Amount <= 0 {
		return InitializeResult{}, errors.New("payments: amount must be positive")
	}
	if strings.TrimSpace(req.Email) == "" {
		return InitializeResult{}, errors.New("payments: customer email is required")
	}

	payload := flutterwaveInitializePayload{
		TxRef:       req.Reference,
		Amount:      minorToMajor(req.Amount),
		Currency:    req.Currency,
		RedirectURL: req.CallbackURL,
		Customer:    flutterwaveCustomer{Email: req.Email},
		Meta:        req.Metadata,
	}

	envelope, err := p.do(ctx, http.MethodPost, "/payments", payload)
	if err != nil {
		return InitializeResult{}, err
	}

	var data flutterwaveInitializeData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return InitializeResult{}, fmt.Errorf("payments: decode flutterwave initialize response: %w", err)
	}
	if data.Link == "" {
		return InitializeResult{}, fmt.Errorf("payments: flutterwave returned no payment link (%s)", envelope.Message)
	}

	return InitializeResult{
		Provider:    flutterwaveProviderName,
		Reference:   req.Reference,
		RedirectURL: data.Link,
	}, nil
}

// Verify looks up a transaction by tx_ref on Flutterwave's side.
func (p *FlutterwaveProvider) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResult{}, errors.New("payments: reference is required")
	}

	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)
	envelope, err := p.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return VerifyResult{}, err
	}

	var data flutterwaveTransactionData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return VerifyResult{}, fmt.Errorf("payments: decode flutterwave verify response: %w", err)
	}

	result := VerifyResult{
		Provider:  flutterwaveProviderName,
		Reference: reference,
		Status:    normaliseFlutterwaveStatus(data.Status),
		Amount:    majorToMinor(data.Amount),
		Currency:  strings.ToUpper(data.Currency),
	}
	if data.CreatedAt != "" {
		if createdAt, err := time.Parse(time.RFC3339, data.CreatedAt); err == nil {
			result.PaidAt = &createdAt
		}
	}
	var raw map[string]any
	if err := json.Unmarshal(envelope.Data, &raw); err == nil {
		result.Raw = raw
	}
	return result, nil
}

func normaliseFlutterwaveStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "successful":
		return StatusSucceeded
	case "failed", "cancelled":
		return StatusFailed
	default:
		return StatusPending
	}
}

func minorToMajor(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

func majorToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (p *FlutterwaveProvider) do(ctx context.Context, method, path string, payload any) (flutterwaveEnvelope, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return flutterwaveEnvelope{}, fmt.Errorf("payments: encode flutterwave request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return flutterwaveEnvelope{}, fmt.Errorf("payments: build flutterwave request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("flutterwave request failed", zap.String("path", path), zap.Error(err))
		return flutterwaveEnvelope{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return flutterwaveEnvelope{}, fmt.Errorf("payments: read flutterwave response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return flutterwaveEnvelope{}, ErrTransactionNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		p.logger.Warn("flutterwave server error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return flutterwaveEnvelope{}, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope flutterwaveEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return flutterwaveEnvelope{}, fmt.Errorf("payments: decode flutterwave response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !strings.EqualFold(envelope.Status, "success") {
		return flutterwaveEnvelope{}, fmt.Errorf("payments: flutterwave rejected request: %s (status %d)", envelope.Message, resp.StatusCode)
	}
	return envelope, nil
}
