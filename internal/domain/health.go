package domain

import (
	"fmt"
	"time"
)

// HealthStatus grades one probe or a whole readiness report. A worse status compares greater.
type HealthStatus int

const (
	HealthOK HealthStatus = iota
	// HealthDegraded means a dependency answered with an error.
	HealthDegraded
	// HealthDown means a probe timed out or was cancelled.
	HealthDown
)

func (s HealthStatus) String() string {
	switch s {
	case HealthOK:
		return "ok"
	case HealthDegraded:
		return "degraded"
	case HealthDown:
		return "down"
	default:
		return fmt.Sprintf("HealthStatus(%d)", int(s))
	}
}

// ProbeResult is the outcome of probing one dependency.
type ProbeResult struct {
	Name      string
	Status    HealthStatus
	Reason    string
	Err       string
	Latency   time.Duration
	CheckedAt time.Time
}

// Readiness summarises the dependency probes, ordered by name.
type Readiness struct {
	Status      HealthStatus
	Probes      []ProbeResult
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// WorstStatus returns the most severe status among probes, HealthOK when there are none.
func WorstStatus(probes []ProbeResult) HealthStatus {
	worst := HealthOK
	for _, p := range probes {
		worst = max(worst, p.Status)
	}
	return worst
}

// Failures describes every probe that is not ok as "name: cause".
func (r Readiness) Failures() []string {
	var out []string
	for _, p := range r.Probes {
		if p.Status == HealthOK {
			continue
		}
		cause := p.Err
		if cause == "" {
			cause = p.Reason
		}
		if cause == "" {
			cause = p.Status.String()
		}
		out = append(out, p.Name+": "+cause)
	}
	return out
}
