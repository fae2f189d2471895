// Package secrets resolves secret:// references against Google Secret Manager. A local file
// answers when Secret Manager is unreachable or not configured, which is the normal case in development.
package secrets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	meterName      = "workflow/secrets"
	healthSecretID = "system_healthz"
)

// ErrNotFound reports a reference neither Secret Manager nor the fallback file could answer.
var ErrNotFound = errors.New("secrets: not found")

var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (accessor, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Options configures a Fetcher.
type Options struct {
	// Environment picks the Projects entry and env-scoped VersionPins. Defaults to "local".
	Environment    string
	DefaultProject string
	// Projects maps an environment to its Secret Manager project.
	Projects map[string]string
	// VersionPins maps "secret://name" or "env:secret://name" to a version.
	VersionPins map[string]string
	// FallbackFile holds "secret://name=value" lines. Empty disables it.
	FallbackFile string
	// CacheTTL bounds reuse of a resolved value so rotations are picked up. Zero caches forever.
	CacheTTL      time.Duration
	ClientOptions []option.ClientOption
	Logger        *zap.Logger
	Meter         metric.Meter
	// Retry paces retries of Unavailable and ResourceExhausted answers, Attempts bounds them.
	Retry    gax.Backoff
	Attempts int

	client accessor
}

// Fetcher resolves and caches secret values. It is safe for concurrent use and concurrent
// resolutions of the same reference share one Secret Manager call.
type Fetcher struct {
	opts    Options
	project string
	client  accessor
	owns    bool
	logger  *zap.Logger
	now     func() time.Time

	flight   singleflight.Group
	mu       sync.RWMutex
	cache    map[string]cachedValue
	fallback func() (map[string]string, error)

	latency metric.Float64Histogram
	hits    metric.Int64Counter
}

type cachedValue struct {
	value   string
	expires time.Time
}

type resolved struct {
	value  string
	source string
}

// NewFetcher builds a Fetcher. A Secret Manager client that cannot be created (no credentials)
// leaves the fetcher in fallback-only mode rather than failing.
func NewFetcher(ctx context.Context, opts Options) (*Fetcher, error) {
	opts.Environment = strings.ToLower(strings.TrimSpace(opts.Environment))
	if opts.Environment == "" {
		opts.Environment = "local"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(meterName)
	}
	if opts.Retry.Initial == 0 {
		opts.Retry = gax.Backoff{Initial: 100 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2}
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}

	f := &Fetcher{
		opts:    opts,
		project: strings.TrimSpace(opts.DefaultProject),
		client:  opts.client,
		logger:  opts.Logger,
		now:     time.Now,
		cache:   make(map[string]cachedValue),
	}
	if project := strings.TrimSpace(opts.Projects[opts.Environment]); project != "" {
		f.project = project
	}
	path := strings.TrimSpace(opts.FallbackFile)
	f.fallback = sync.OnceValues(func() (map[string]string, error) { return readFallbackFile(path) })

	var err error
	if f.latency, err = opts.Meter.Float64Histogram("secrets.resolve.latency",
		metric.WithUnit("ms"), metric.WithDescription("Secret resolution latency by source")); err != nil {
		return nil, fmt.Errorf("secrets: latency histogram: %w", err)
	}
	if f.hits, err = opts.Meter.Int64Counter("secrets.resolve.cache_hits",
		metric.WithDescription("Secret resolutions answered from cache")); err != nil {
		return nil, fmt.Errorf("secrets: cache hit counter: %w", err)
	}

	if f.client == nil {
		client, err := newSecretManagerClient(ctx, opts.ClientOptions...)
		if err != nil {
			f.logger.Warn("secret manager unavailable, using fallback file only", zap.Error(err))
		} else {
			f.client, f.owns = client, true
		}
	}
	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f.owns {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value behind ref (secret:// or sm://).
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	version := f.version(parsed)
	key := cacheKey(parsed.canonical, version)
	if parsed.project != "" {
		key += "@" + parsed.project
	}

	if value, ok := f.cached(key); ok {
		f.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", redact(parsed.canonical))))
		return value, nil
	}

	start := f.now()
	out, err, _ := f.flight.Do(key, func() (any, error) {
		return f.load(ctx, parsed, version)
	})
	source := "error"
	if err == nil {
		source = out.(resolved).source
	}
	f.latency.Record(ctx, float64(f.now().Sub(start))/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("source", source)))
	if err != nil {
		return "", err
	}
	value := out.(resolved).value
	f.store(key, value)
	return value, nil
}

// Invalidate drops every cached version of ref.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	prefix := parsed.canonical + "#"
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.cache {
		if strings.HasPrefix(key, prefix) {
			delete(f.cache, key)
		}
	}
}

// Ping confirms Secret Manager answers. Fallback-only mode is always healthy, and a missing
// probe secret counts as an answer.
func (f *Fetcher) Ping(ctx context.Context) error {
	if f.client == nil || f.project == "" {
		return nil
	}
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.project, healthSecretID, latestVersion),
	}
	_, err := f.client.AccessSecretVersion(ctx, req)
	if err == nil || status.Code(err) == codes.NotFound {
		return nil
	}
	return fmt.Errorf("secrets: ping: %w", err)
}

func (f *Fetcher) load(ctx context.Context, ref reference, version string) (resolved, error) {
	project := ref.project
	if project == "" {
		project = f.project
	}
	if project != "" && f.client != nil {
		value, err := f.access(ctx, ref.resource(project, version))
		if err == nil {
			return resolved{value: value, source: "remote"}, nil
		}
		if !fallbackWorthy(err) {
			return resolved{}, fmt.Errorf("secrets: %s: %w", ref.canonical, err)
		}
		f.logger.Debug("secret manager refused, trying fallback file",
			zap.String("secret", redact(ref.canonical)), zap.Error(err))
	}

	values, err := f.fallback()
	if err != nil {
		return resolved{}, err
	}
	if value, ok := values[cacheKey(ref.canonical, version)]; ok {
		return resolved{value: value, source: "fallback"}, nil
	}
	if value, ok := values[ref.canonical]; ok {
		return resolved{value: value, source: "fallback"}, nil
	}
	return resolved{}, fmt.Errorf("%w: %s", ErrNotFound, ref.canonical)
}

func (f *Fetcher) access(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{Name: name}
	var resp *secretmanagerpb.AccessSecretVersionResponse
	err := gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		var err error
		resp, err = f.client.AccessSecretVersion(ctx, req)
		return err
	}, gax.WithRetry(func() gax.Retryer {
		return &boundedRetryer{
			inner: gax.OnCodes([]codes.Code{codes.Unavailable, codes.ResourceExhausted}, f.opts.Retry),
			left:  f.opts.Attempts - 1,
		}
	}))
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: %s returned no payload", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

// version honours an explicit ?version, then the env-scoped pin, then the global pin.
func (f *Fetcher) version(ref reference) string {
	if ref.version != "" {
		return ref.version
	}
	for _, key := range []string{f.opts.Environment + ":" + ref.canonical, ref.canonical} {
		if pin := strings.TrimSpace(f.opts.VersionPins[key]); pin != "" {
			return pin
		}
	}
	return latestVersion
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.RLock()
	entry, ok := f.cache[key]
	f.mu.RUnlock()
	if !ok || (!entry.expires.IsZero() && !f.now().Before(entry.expires)) {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) store(key, value string) {
	entry := cachedValue{value: value}
	if f.opts.CacheTTL > 0 {
		entry.expires = f.now().Add(f.opts.CacheTTL)
	}
	f.mu.Lock()
	f.cache[key] = entry
	f.mu.Unlock()
}

// boundedRetryer stops inner after a fixed number of retries.
type boundedRetryer struct {
	inner gax.Retryer
	left  int
}

func (r *boundedRetryer) Retry(err error) (time.Duration, bool) {
	if r.left <= 0 {
		return 0, false
	}
	r.left--
	return r.inner.Retry(err)
}

// fallbackWorthy reports Secret Manager answers that mean "cannot ask" rather than "no such secret".
func fallbackWorthy(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

func redact(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:8])
}
