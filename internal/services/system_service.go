package services

import (
	"context"
	"errors"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/repositories"
)

// SystemServiceDeps wires the health repository and build metadata.
type SystemServiceDeps struct {
	Health      repositories.HealthRepository
	Version     string
	Environment string
	Clock       func() time.Time
}

type systemService struct {
	health      repositories.HealthRepository
	version     string
	environment string
	now         func() time.Time
	startedAt   time.Time
}

// NewSystemService constructs a SystemService enforcing dependency validation.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	now := func() time.Time { return clock().UTC() }
	return &systemService{
		health:      deps.Health,
		version:     deps.Version,
		environment: deps.Environment,
		now:         now,
		startedAt:   now(),
	}, nil
}

// Health collects dependency probes and stamps build metadata on the report.
func (s *systemService) Health(ctx context.Context) (domain.SystemHealthReport, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		return domain.SystemHealthReport{}, err
	}
	now := s.now()
	report.Version = s.version
	report.Environment = s.environment
	report.Uptime = now.Sub(s.startedAt)
	report.GeneratedAt = now
	return report, nil
}
