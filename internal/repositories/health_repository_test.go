package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elite-furniture/api/internal/domain"
)

func TestNewDependencyHealthRepositoryValidation(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty probe set")
	}
	if _, err := NewDependencyHealthRepository([]DependencyProbe{{Name: "", Check: func(context.Context) error { return nil }}}); err == nil {
		t.Fatal("expected error for unnamed probe")
	}
	if _, err := NewDependencyHealthRepository([]DependencyProbe{{Name: "firestore"}}); err == nil {
		t.Fatal("expected error for probe without check function")
	}
}

func TestCollectAllHealthy(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyProbe{
		{Name: "firestore", Check: func(context.Context) error { return nil }},
		{Name: "pubsub", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository returned error: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status got %q", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks got %d", len(report.Checks))
	}
	for name, check := range report.Checks {
		if check.Status != domain.HealthStatusOK {
			t.Fatalf("expected check %s ok, got %q", name, check.Status)
		}
	}
}

func TestCollectDegradedDependency(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyProbe{
		{Name: "firestore", Check: func(context.Context) error { return nil }},
		{Name: "storage", Check: func(context.Context) error { return errors.New("bucket unreachable") }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository returned error: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded status got %q", report.Status)
	}
	if report.Checks["storage"].Error != "bucket unreachable" {
		t.Fatalf("expected probe error preserved, got %q", report.Checks["storage"].Error)
	}
}

func TestCollectTimeoutMarksError(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyProbe{
		{
			Name:    "firestore",
			Timeout: 10 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository returned error: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status got %q", report.Status)
	}
	if report.Checks["firestore"].Detail != "timeout" {
		t.Fatalf("expected timeout detail got %q", report.Checks["firestore"].Detail)
	}
}
