package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/elite-furniture/api/internal/domain"
)

type stubProvider struct {
	name       string
	initCalls  int
	lastVerify string
	verifyOut  VerifyResult
}

func (s *stubProvider) Initialize(_ context.Context, req InitializeRequest) (InitializeResult, error) {
	s.initCalls++
	return InitializeResult{Provider: s.name, Reference: req.Reference, RedirectURL: "https://pay.example/" + s.name}, nil
}

func (s *stubProvider) Verify(_ context.Context, reference string) (VerifyResult, error) {
	s.lastVerify = reference
	return s.verifyOut, nil
}

func TestNewManagerRequiresProviders(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected error for empty provider map")
	}
	if _, err := NewManager(map[domain.PaymentMethod]Provider{domain.PaymentMethodPaystack: nil}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestManagerRoutesByMethod(t *testing.T) {
	paystack := &stubProvider{name: "paystack"}
	flutterwave := &stubProvider{name: "flutterwave"}

	manager, err := NewManager(map[domain.PaymentMethod]Provider{
		domain.PaymentMethodPaystack:    paystack,
		domain.PaymentMethodFlutterwave: flutterwave,
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	result, err := manager.Initialize(context.Background(), domain.PaymentMethodFlutterwave, InitializeRequest{Reference: "tr-1"})
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if result.Provider != "flutterwave" {
		t.Fatalf("expected flutterwave provider, got %q", result.Provider)
	}
	if flutterwave.initCalls != 1 || paystack.initCalls != 0 {
		t.Fatalf("expected flutterwave to receive the call, got paystack=%d flutterwave=%d", paystack.initCalls, flutterwave.initCalls)
	}

	if _, err := manager.Verify(context.Background(), domain.PaymentMethodPaystack, "tr-2"); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if paystack.lastVerify != "tr-2" {
		t.Fatalf("expected paystack to verify tr-2, got %q", paystack.lastVerify)
	}
}

func TestManagerRejectsUnknownMethod(t *testing.T) {
	manager, err := NewManager(map[domain.PaymentMethod]Provider{
		domain.PaymentMethodPaystack: &stubProvider{name: "paystack"},
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	if _, err := manager.Initialize(context.Background(), domain.PaymentMethodBankTransfer, InitializeRequest{}); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
	if _, err := manager.Verify(context.Background(), "cash", "tr-1"); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestVerifyResultMatches(t *testing.T) {
	cases := []struct {
		name   string
		result VerifyResult
		amount int64
		want   bool
	}{
		{"captured and exact", VerifyResult{Status: StatusSucceeded, Amount: 2150000, Currency: "NGN"}, 2150000, true},
		{"amount mismatch", VerifyResult{Status: StatusSucceeded, Amount: 100, Currency: "NGN"}, 2150000, false},
		{"wrong currency", VerifyResult{Status: StatusSucceeded, Amount: 2150000, Currency: "USD"}, 2150000, false},
		{"still pending", VerifyResult{Status: StatusPending, Amount: 2150000, Currency: "NGN"}, 2150000, false},
		{"failed", VerifyResult{Status: StatusFailed, Amount: 2150000, Currency: "NGN"}, 2150000, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.result.Matches(tc.amount, "NGN"); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewReferenceFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		ref := NewReference()
		if !IsReference(ref) {
			t.Fatalf("NewReference produced unparseable value %q", ref)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = struct{}{}
	}
}

func TestIsReferenceRejectsMalformed(t *testing.T) {
	for _, value := range []string{"", "tr-", "tr-not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FAV", "ref-01ARZ3NDEKTSV4RRFFQ69G5FAV"} {
		if IsReference(value) {
			t.Fatalf("expected %q to be rejected", value)
		}
	}
}
