package handlers

import (
	"net/http"
	"time"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	system services.SystemService
	clock  func() time.Time
	build  services.BuildInfo
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService wires the readiness reporter behind /readyz.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) { h.system = svc }
}

func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthBuildInfo sets the metadata /healthz reports.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) { h.build = info }
}

func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type probePayload struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	CheckedAt string `json:"checked_at,omitempty"`
}

type healthPayload struct {
	Status        string         `json:"status"`
	Version       string         `json:"version,omitempty"`
	Environment   string         `json:"environment,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	GeneratedAt   string         `json:"generated_at"`
	Checks        []probePayload `json:"checks,omitempty"`
	Failures      []string       `json:"failures,omitempty"`
}

// Healthz reports liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.clock().UTC()
	writeJSONResponse(w, http.StatusOK, healthPayload{
		Status:        domain.HealthOK.String(),
		Version:       h.build.Version,
		Environment:   h.build.Environment,
		UptimeSeconds: int64(now.Sub(h.build.StartedAt) / time.Second),
		GeneratedAt:   formatTime(now),
	})
}

// Readyz probes dependencies and answers 503 unless every probe is ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	down := func(cause string) {
		writeJSONResponse(w, http.StatusServiceUnavailable, healthPayload{
			Status:      domain.HealthDown.String(),
			GeneratedAt: formatTime(h.clock().UTC()),
			Failures:    []string{cause},
		})
	}
	if h.system == nil {
		down("system service not configured")
		return
	}
	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		down(err.Error())
		return
	}

	payload := healthPayload{
		Status:        report.Status.String(),
		Version:       report.Version,
		Environment:   report.Environment,
		UptimeSeconds: int64(report.Uptime / time.Second),
		GeneratedAt:   formatTime(report.GeneratedAt),
		Failures:      report.Failures(),
	}
	for _, p := range report.Probes {
		payload.Checks = append(payload.Checks, probePayload{
			Name:      p.Name,
			Status:    p.Status.String(),
			Reason:    p.Reason,
			Error:     p.Err,
			LatencyMS: p.Latency.Milliseconds(),
			CheckedAt: formatTime(p.CheckedAt),
		})
	}

	status := http.StatusOK
	if report.Status != domain.HealthOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}
