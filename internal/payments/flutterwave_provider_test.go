package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFlutterwaveInitializeSendsMajorUnits(t *testing.T) {
	var gotPayload flutterwaveInitializePayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer flw_sk_test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"link":"https://checkout.flutterwave.com/v3/hosted/pay/xyz"}}`))
	}))
	defer server.Close()

	provider, err := NewFlutterwaveProvider("flw_sk_test", WithFlutterwaveBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewFlutterwaveProvider returned error: %v", err)
	}

	result, err := provider.Initialize(context.Background(), InitializeRequest{
		Reference: "tr-01TEST",
		Amount:    2150050,
		Currency:  "NGN",
		Email:     "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if gotPayload.Amount != "21500.50" {
		t.Fatalf("expected major-unit amount 21500.50, got %q", gotPayload.Amount)
	}
	if gotPayload.TxRef != "tr-01TEST" || gotPayload.Customer.Email != "buyer@example.com" {
		t.Fatalf("unexpected payload %+v", gotPayload)
	}
	if result.RedirectURL != "https://checkout.flutterwave.com/v3/hosted/pay/xyz" {
		t.Fatalf("unexpected redirect url %q", result.RedirectURL)
	}
	if result.Provider != "flutterwave" {
		t.Fatalf("unexpected provider %q", result.Provider)
	}
}

func TestFlutterwaveVerifyConvertsToMinorUnits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/verify_by_reference" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ref := r.URL.Query().Get("tx_ref"); ref != "tr-01TEST" {
			t.Errorf("unexpected tx_ref %q", ref)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"Transaction fetched","data":{"tx_ref":"tr-01TEST","status":"successful","amount":21500.50,"currency":"NGN","created_at":"2026-08-01T10:15:00Z"}}`))
	}))
	defer server.Close()

	provider, err := NewFlutterwaveProvider("flw_sk_test", WithFlutterwaveBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewFlutterwaveProvider returned error: %v", err)
	}

	result, err := provider.Verify(context.Background(), "tr-01TEST")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if result.Status != StatusSucceeded {
		t.Fatalf("expected succeeded status got %q", result.Status)
	}
	if result.Amount != 2150050 {
		t.Fatalf("expected minor-unit amount 2150050 got %d", result.Amount)
	}
	if result.Currency != "NGN" {
		t.Fatalf("unexpected currency %q", result.Currency)
	}
	if result.PaidAt == nil {
		t.Fatal("expected PaidAt to be populated")
	}
}

func TestFlutterwaveVerifyFailedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"Transaction fetched","data":{"tx_ref":"tr-01TEST","status":"failed","amount":21500.50,"currency":"NGN"}}`))
	}))
	defer server.Close()

	provider, err := NewFlutterwaveProvider("flw_sk_test", WithFlutterwaveBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewFlutterwaveProvider returned error: %v", err)
	}

	result, err := provider.Verify(context.Background(), "tr-01TEST")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed status got %q", result.Status)
	}
}

func TestMinorMajorConversion(t *testing.T) {
	cases := []struct {
		minor int64
		major string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{2150050, "21500.50"},
		{5000000, "50000.00"},
	}
	for _, tc := range cases {
		if got := minorToMajor(tc.minor); got != tc.major {
			t.Fatalf("minorToMajor(%d) = %q, want %q", tc.minor, got, tc.major)
		}
	}

	if got := majorToMinor(21500.50); got != 2150050 {
		t.Fatalf("majorToMinor(21500.50) = %d, want 2150050", got)
	}
	if got := majorToMinor(0.1 + 0.2); got != 30 {
		t.Fatalf("majorToMinor(0.1+0.2) = %d, want 30", got)
	}
}
