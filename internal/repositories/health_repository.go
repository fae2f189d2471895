package repositories

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// DependencyCheck is a named readiness probe against one backing store or broker.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises the probe runner.
type DependencyHealthOption func(*probeRunner)

// WithDependencyTimeout sets the timeout of probes that do not declare one.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(r *probeRunner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithDependencyClock injects the clock used for latency and timestamps.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(r *probeRunner) {
		if clock != nil {
			r.now = clock
		}
	}
}

type probeRunner struct {
	checks  []DependencyCheck
	timeout time.Duration
	now     func() time.Time
}

var _ HealthRepository = (*probeRunner)(nil)

// NewDependencyHealthRepository runs every probe concurrently on each Collect.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	sorted := make([]DependencyCheck, 0, len(checks))
	for _, check := range checks {
		check.Name = strings.TrimSpace(check.Name)
		switch {
		case check.Name == "":
			return nil, errors.New("health repository: dependency check missing name")
		case check.Check == nil:
			return nil, fmt.Errorf("health repository: dependency %s missing check function", check.Name)
		}
		sorted = append(sorted, check)
	}
	slices.SortFunc(sorted, func(a, b DependencyCheck) int { return strings.Compare(a.Name, b.Name) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, fmt.Errorf("health repository: duplicate dependency %s", sorted[i].Name)
		}
	}

	r := &probeRunner{checks: sorted, timeout: defaultProbeTimeout, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Collect probes all dependencies. The report takes the worst probe status.
func (r *probeRunner) Collect(ctx context.Context) (domain.Readiness, error) {
	probes := make([]domain.ProbeResult, len(r.checks))
	var group errgroup.Group
	for i, check := range r.checks {
		group.Go(func() error {
			probes[i] = r.probe(ctx, check)
			return nil
		})
	}
	_ = group.Wait()

	return domain.Readiness{
		Status:      domain.WorstStatus(probes),
		Probes:      probes,
		GeneratedAt: r.now().UTC(),
	}, nil
}

func (r *probeRunner) probe(ctx context.Context, check DependencyCheck) domain.ProbeResult {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := check.Check(probeCtx)
	if err == nil {
		err = probeCtx.Err()
	}
	end := r.now()

	result := domain.ProbeResult{Name: check.Name, Latency: end.Sub(start), CheckedAt: end.UTC()}
	if err == nil {
		return result
	}
	result.Err = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.Status, result.Reason = domain.HealthDown, "timeout"
	case errors.Is(err, context.Canceled):
		result.Status, result.Reason = domain.HealthDown, "cancelled"
	default:
		result.Status, result.Reason = domain.HealthDegraded, "unreachable"
	}
	return result
}
