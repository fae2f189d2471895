package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

// BuildInfo is the process metadata readiness reports carry.
type BuildInfo struct {
	Version     string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
	Clock  func() time.Time
	Build  BuildInfo
}

type systemService struct {
	health repositories.HealthRepository
	now    func() time.Time
	build  BuildInfo
}

var _ SystemService = (*systemService)(nil)

func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}
	defaults := resolveDefaults(nil, deps.Clock, nil, nil)
	if deps.Build.StartedAt.IsZero() {
		deps.Build.StartedAt = defaults.clock()
	}
	return &systemService{health: deps.Health, now: defaults.clock, build: deps.Build}, nil
}

// HealthReport probes the dependencies and stamps the result with build metadata and uptime.
func (s *systemService) HealthReport(ctx context.Context) (domain.Readiness, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		return domain.Readiness{}, err
	}
	now := s.now()
	report.Version = s.build.Version
	report.Environment = s.build.Environment
	report.Uptime = now.Sub(s.build.StartedAt)
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	return report, nil
}
