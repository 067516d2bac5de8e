package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPaystackInitialize(t *testing.T) {
	var gotPayload paystackInitializePayload
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc123","access_code":"abc123","reference":"tr-01TEST"}}`))
	}))
	defer server.Close()

	provider, err := NewPaystackProvider("sk_test_xyz", WithPaystackBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewPaystackProvider returned error: %v", err)
	}

	result, err := provider.Initialize(context.Background(), InitializeRequest{
		Reference:   "tr-01TEST",
		Amount:      2150000,
		Currency:    "NGN",
		Email:       "buyer@example.com",
		CallbackURL: "https://shop.example/checkout/complete",
	})
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if gotAuth != "Bearer sk_test_xyz" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if gotPayload.Amount != 2150000 || gotPayload.Email != "buyer@example.com" || gotPayload.Reference != "tr-01TEST" {
		t.Fatalf("unexpected payload %+v", gotPayload)
	}
	if result.RedirectURL != "https://checkout.paystack.com/abc123" {
		t.Fatalf("unexpected redirect url %q", result.RedirectURL)
	}
	if result.Provider != "paystack" || result.AccessCode != "abc123" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPaystackInitializeValidation(t *testing.T) {
	provider, err := NewPaystackProvider("sk_test_xyz")
	if err != nil {
		t.Fatalf("NewPaystackProvider returned error: %v", err)
	}

	cases := []struct {
		name string
		req  InitializeRequest
	}{
		{"missing reference", InitializeRequest{Amount: 100, Email: "a@b.c"}},
		{"non-positive amount", InitializeRequest{Reference: "tr-1", Email: "a@b.c"}},
		{"missing email", InitializeRequest{Reference: "tr-1", Amount: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := provider.Initialize(context.Background(), tc.req); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPaystackVerifyStatuses(t *testing.T) {
	cases := []struct {
		name       string
		gateway    string
		wantStatus Status
	}{
		{"success", "success", StatusSucceeded},
		{"abandoned", "abandoned", StatusFailed},
		{"failed", "failed", StatusFailed},
		{"ongoing", "ongoing", StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/transaction/verify/tr-01TEST" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"` + tc.gateway + `","amount":2150000,"currency":"NGN","channel":"card","paid_at":"2026-08-01T10:15:00Z"}}`))
			}))
			defer server.Close()

			provider, err := NewPaystackProvider("sk_test_xyz", WithPaystackBaseURL(server.URL))
			if err != nil {
				t.Fatalf("NewPaystackProvider returned error: %v", err)
			}

			result, err := provider.Verify(context.Background(), "tr-01TEST")
			if err != nil {
				t.Fatalf("Verify returned error: %v", err)
			}
			if result.Status != tc.wantStatus {
				t.Fatalf("expected status %q got %q", tc.wantStatus, result.Status)
			}
			if result.Amount != 2150000 || result.Currency != "NGN" {
				t.Fatalf("unexpected amount/currency %d %s", result.Amount, result.Currency)
			}
			if tc.wantStatus == StatusSucceeded && result.PaidAt == nil {
				t.Fatal("expected PaidAt to be populated")
			}
		})
	}
}

func TestPaystackVerifyNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewPaystackProvider("sk_test_xyz", WithPaystackBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewPaystackProvider returned error: %v", err)
	}

	if _, err := provider.Verify(context.Background(), "tr-missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestPaystackServerErrorMapsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider, err := NewPaystackProvider("sk_test_xyz", WithPaystackBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewPaystackProvider returned error: %v", err)
	}

	if _, err := provider.Verify(context.Background(), "tr-01TEST"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestPaystackRejectedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer server.Close()

	provider, err := NewPaystackProvider("sk_test_bad", WithPaystackBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewPaystackProvider returned error: %v", err)
	}

	if _, err := provider.Verify(context.Background(), "tr-01TEST"); err == nil {
		t.Fatal("expected error for rejected envelope")
	}
}
