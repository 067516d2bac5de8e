//go:build integration

package firestore

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	pconfig "github.com/elite-furniture/api/internal/platform/config"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func TestRepositoriesIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "storefront-test",
		EmulatorHost: endpoint,
	}
	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	t.Run("counter sequence under contention", func(t *testing.T) {
		repo, err := NewCounterRepository(provider)
		if err != nil {
			t.Fatalf("new counter repository: %v", err)
		}

		const workers = 16
		results := make([]int64, workers)
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func(idx int) {
				defer wg.Done()
				value, err := repo.Next(ctx, "orders:2026", 1)
				if err != nil {
					t.Errorf("next(%d): %v", idx, err)
					return
				}
				results[idx] = value
			}(i)
		}
		wg.Wait()

		sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
		for i, val := range results {
			if expected := int64(i + 1); val != expected {
				t.Fatalf("expected sequence %d at position %d, got %d", expected, i, val)
			}
		}
	})

	t.Run("checkout attempt reference uniqueness", func(t *testing.T) {
		repo, err := NewCheckoutAttemptRepository(provider)
		if err != nil {
			t.Fatalf("new checkout attempt repository: %v", err)
		}

		attempt := domain.CheckoutAttempt{
			Reference: "tr-01ARZ3NDEKTSV4RRFFQ69G5FAV",
			UserID:    "user-1",
			State:     domain.CheckoutStateAwaitingPayment,
			Method:    domain.PaymentMethodPaystack,
			Amount:    2150000,
			Currency:  "NGN",
			Email:     "buyer@example.com",
			ExpiresAt: time.Now().Add(30 * time.Minute),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := repo.Create(ctx, attempt); err != nil {
			t.Fatalf("create attempt: %v", err)
		}
		if err := repo.Create(ctx, attempt); !repositories.IsConflict(err) {
			t.Fatalf("expected conflict on duplicate reference, got %v", err)
		}

		loaded, err := repo.FindByReference(ctx, attempt.Reference)
		if err != nil {
			t.Fatalf("find attempt: %v", err)
		}
		if loaded.State != domain.CheckoutStateAwaitingPayment || loaded.Amount != 2150000 {
			t.Fatalf("unexpected attempt %+v", loaded)
		}
	})

	t.Run("order header and items written atomically", func(t *testing.T) {
		repo, err := NewOrderRepository(provider)
		if err != nil {
			t.Fatalf("new order repository: %v", err)
		}

		now := time.Now().UTC()
		order := domain.Order{
			ID:            "ord_01ARZ3NDEKTSV4RRFFQ69G5FAV",
			OrderNumber:   "EF-2026-000001",
			UserID:        "user-1",
			Status:        domain.OrderStatusPending,
			Currency:      "NGN",
			Totals:        domain.Totals{Subtotal: 2000000, Shipping: 200000, Tax: 150000, Total: 2350000},
			CustomerName:  "Ade Buyer",
			CustomerEmail: "buyer@example.com",
			PaymentMethod: domain.PaymentMethodBankTransfer,
			PaymentStatus: domain.PaymentStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
			Items: []domain.OrderLineItem{
				{ID: "itm_1", ProductID: "prd_1", Quantity: 2, UnitPrice: 1000000, TotalPrice: 2000000, ProductName: "Oak Chair", CreatedAt: now},
			},
		}

		if _, err := repo.Insert(ctx, order); err != nil {
			t.Fatalf("insert order: %v", err)
		}
		if _, err := repo.Insert(ctx, order); !repositories.IsConflict(err) {
			t.Fatalf("expected conflict on duplicate order id, got %v", err)
		}

		loaded, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			t.Fatalf("find order: %v", err)
		}
		if loaded.OrderNumber != order.OrderNumber || len(loaded.Items) != 1 {
			t.Fatalf("unexpected order %+v", loaded)
		}
		if loaded.Items[0].TotalPrice != 2000000 {
			t.Fatalf("unexpected item %+v", loaded.Items[0])
		}
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to acquire free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	cmd := exec.Command(
		"docker", "run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	return strings.TrimSpace(string(out))
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	_ = exec.Command("docker", "stop", id).Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, time.Second)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("emulator did not become ready: %v", lastErr)
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	if err := exec.Command("docker", "info").Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}
