package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID": "elite-furniture-test",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(baseEnv()),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "elite-furniture-test" {
		t.Errorf("Firestore.ProjectID = %q, want firebase project fallback", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "elite-furniture-test" {
		t.Errorf("PubSub.ProjectID = %q, want firebase project fallback", cfg.PubSub.ProjectID)
	}
	if cfg.Storage.ReceiptsBucket != "payment-receipts" {
		t.Errorf("Storage.ReceiptsBucket = %q, want payment-receipts", cfg.Storage.ReceiptsBucket)
	}
	if cfg.Storage.ReceiptMaxBytes != 5<<20 {
		t.Errorf("Storage.ReceiptMaxBytes = %d, want %d", cfg.Storage.ReceiptMaxBytes, 5<<20)
	}
	if cfg.Pricing.Currency != "NGN" {
		t.Errorf("Pricing.Currency = %q, want NGN", cfg.Pricing.Currency)
	}
	if cfg.Pricing.FreeShippingOver != 5_000_000 {
		t.Errorf("Pricing.FreeShippingOver = %d, want 5000000", cfg.Pricing.FreeShippingOver)
	}
	if cfg.Pricing.FlatShippingFee != 200_000 {
		t.Errorf("Pricing.FlatShippingFee = %d, want 200000", cfg.Pricing.FlatShippingFee)
	}
	if cfg.Pricing.TaxRateBasisPoints != 750 {
		t.Errorf("Pricing.TaxRateBasisPoints = %d, want 750", cfg.Pricing.TaxRateBasisPoints)
	}
	if cfg.Checkout.AttemptTTL != 30*time.Minute {
		t.Errorf("Checkout.AttemptTTL = %v, want 30m", cfg.Checkout.AttemptTTL)
	}
}

func TestLoadHonoursOverrides(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_PORT"] = "9090"
	env["API_SERVER_READ_TIMEOUT"] = "5s"
	env["API_PRICING_FREE_SHIPPING_OVER"] = "1000000"
	env["API_PRICING_TAX_BASIS_POINTS"] = "500"
	env["API_CHECKOUT_ATTEMPT_TTL"] = "10m"
	env["API_STORAGE_RECEIPTS_BUCKET"] = "receipts-staging"

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Pricing.FreeShippingOver != 1_000_000 {
		t.Errorf("Pricing.FreeShippingOver = %d, want 1000000", cfg.Pricing.FreeShippingOver)
	}
	if cfg.Pricing.TaxRateBasisPoints != 500 {
		t.Errorf("Pricing.TaxRateBasisPoints = %d, want 500", cfg.Pricing.TaxRateBasisPoints)
	}
	if cfg.Checkout.AttemptTTL != 10*time.Minute {
		t.Errorf("Checkout.AttemptTTL = %v, want 10m", cfg.Checkout.AttemptTTL)
	}
	if cfg.Storage.ReceiptsBucket != "receipts-staging" {
		t.Errorf("Storage.ReceiptsBucket = %q, want receipts-staging", cfg.Storage.ReceiptsBucket)
	}
}

func TestLoadValidatesRequiredFields(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{}),
	)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Load error = %v, want *ValidationError", err)
	}
	found := false
	for _, field := range vErr.Fields() {
		if field == "Firebase.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Errorf("ValidationError fields %v missing Firebase.ProjectID", vErr.Fields())
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["API_GATEWAY_PAYSTACK_SECRET_KEY"] = "sm://projects/p/secrets/paystack/versions/latest"

	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		if ref != "secret://projects/p/secrets/paystack/versions/latest" {
			t.Errorf("resolver got ref %q", ref)
		}
		return "sk_live_resolved", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Gateways.PaystackSecretKey != "sk_live_resolved" {
		t.Errorf("PaystackSecretKey = %q, want resolved value", cfg.Gateways.PaystackSecretKey)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := baseEnv()
	env["API_GATEWAY_PAYSTACK_SECRET_KEY"] = "secret://broken"

	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		return "", errors.New("boom")
	})

	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	var sErr *SecretError
	if !errors.As(err, &sErr) {
		t.Fatalf("Load error = %v, want *SecretError", err)
	}
	if sErr.Ref != "secret://broken" {
		t.Errorf("SecretError.Ref = %q", sErr.Ref)
	}
}

func TestLoadReportsMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(baseEnv()),
		WithRequiredSecrets("Gateways.PaystackSecretKey"),
	)
	var mErr *MissingSecretsError
	if !errors.As(err, &mErr) {
		t.Fatalf("Load error = %v, want *MissingSecretsError", err)
	}
	names := mErr.Names()
	if len(names) != 1 || names[0] != "Gateways.PaystackSecretKey" {
		t.Errorf("missing secrets = %v", names)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport API_FIREBASE_PROJECT_ID=dotenv-project\nAPI_SERVER_PORT=\"7000\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(path),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.ProjectID != "dotenv-project" {
		t.Errorf("Firebase.ProjectID = %q, want dotenv-project", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("Server.Port = %q, want 7000", cfg.Server.Port)
	}
}
