package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elite-furniture/api/internal/domain"
)

type stubSystemService struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubSystemService) Health(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestHealthzReportsOK(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	handlers := NewHealthHandlers(WithHealthClock(func() time.Time { return now }))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handlers.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]any
	decodeBody(t, rr.Body.Bytes(), &body)
	if body["status"] != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["timestamp"] != "2026-03-01T10:00:00Z" {
		t.Fatalf("unexpected timestamp %v", body["timestamp"])
	}
}

func TestReadyzHealthyReport(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &stubSystemService{
		report: domain.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			Version:     "1.4.0",
			Environment: "prod",
			Uptime:      90 * time.Second,
			GeneratedAt: now,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: now},
			},
		},
	}
	handlers := NewHealthHandlers(WithHealthSystemService(svc))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handlers.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body readinessPayload
	decodeBody(t, rr.Body.Bytes(), &body)
	if body.Status != domain.HealthStatusOK || body.Version != "1.4.0" {
		t.Fatalf("unexpected payload: %+v", body)
	}
	if body.Checks["firestore"].LatencyMS != 12 {
		t.Fatalf("expected firestore latency 12ms, got %d", body.Checks["firestore"].LatencyMS)
	}
}

func TestReadyzDegradedStaysInRotation(t *testing.T) {
	svc := &stubSystemService{
		report: domain.SystemHealthReport{Status: domain.HealthStatusDegraded},
	}
	handlers := NewHealthHandlers(WithHealthSystemService(svc))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handlers.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for degraded, got %d", rr.Code)
	}
}

func TestReadyzErrorStatusFailsProbe(t *testing.T) {
	svc := &stubSystemService{
		report: domain.SystemHealthReport{Status: domain.HealthStatusError},
	}
	handlers := NewHealthHandlers(WithHealthSystemService(svc))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	handlers.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
