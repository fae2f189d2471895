package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/auth"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/requestctx"
)

const (
	defaultHeader = "Idempotency-Key"
	replayHeader  = "Idempotent-Replayed"
	maxKeyLength  = 255
)

type settings struct {
	header   string
	ttl      time.Duration
	methods  []string
	optional bool
	now      func() time.Time
}

// Option customises Middleware.
type Option func(*settings)

// WithHeader names the header carrying the key.
func WithHeader(name string) Option {
	return func(s *settings) {
		if name = strings.TrimSpace(name); name != "" {
			s.header = name
		}
	}
}

// WithTTL sets how long a finished response is replayed.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMethods replaces the guarded methods (POST, PUT, PATCH and DELETE by default).
func WithMethods(methods ...string) Option {
	return func(s *settings) {
		var guarded []string
		for _, method := range methods {
			if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
				guarded = append(guarded, method)
			}
		}
		if len(guarded) > 0 {
			s.methods = guarded
		}
	}
}

// WithOptionalKey lets guarded requests without a key through unprotected instead of rejecting them.
func WithOptionalKey() Option {
	return func(s *settings) { s.optional = true }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Middleware replays the stored response for a repeated key. Keys are scoped to the requesting
// actor, so two actors never observe each other's responses. Server errors are not stored and the
// key stays retryable.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	s := settings{
		header:  defaultHeader,
		ttl:     DefaultTTL,
		methods: []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}

	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(s.methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(s.header))
			switch {
			case key == "" && s.optional:
				next.ServeHTTP(w, r)
				return
			case key == "":
				reject(ctx, w, http.StatusBadRequest, "idempotency_key_required", "missing "+s.header+" header")
				return
			case len(key) > maxKeyLength:
				reject(ctx, w, http.StatusBadRequest, "idempotency_key_invalid", "idempotency key is too long")
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				reject(ctx, w, http.StatusBadRequest, "idempotency_read_body_failed", "unable to read request body")
				return
			}
			requester := requesterOf(ctx)
			scoped := requester + "/" + key
			fp := fingerprint(r, body, requester)
			logger := requestctx.Logger(ctx).With(zap.String("requester", requester))

			now := s.now().UTC()
			outcome, stored, err := store.Claim(ctx, scoped, Entry{Fingerprint: fp, ExpiresAt: now.Add(s.ttl)}, now)
			switch {
			case errors.Is(err, ErrKeyReused):
				reject(ctx, w, http.StatusUnprocessableEntity, "idempotency_key_conflict", "idempotency key already used for a different request")
				return
			case err != nil:
				logger.Error("idempotency claim failed", zap.Error(err))
				reject(ctx, w, http.StatusServiceUnavailable, "idempotency_store_error", "unable to process idempotency key")
				return
			case outcome == Replay:
				w.Header().Set(replayHeader, "true")
				write(w, stored.Header, stored.Status, stored.Body)
				return
			case outcome == InFlight:
				reject(ctx, w, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
				return
			}

			rec := &capture{header: make(http.Header)}
			next.ServeHTTP(rec, r)

			if rec.code() >= http.StatusInternalServerError {
				if err := store.Forget(ctx, scoped, fp); err != nil {
					logger.Warn("idempotency key not released after server error", zap.Error(err))
				}
				write(w, rec.header, rec.code(), rec.body.Bytes())
				return
			}

			done := Entry{
				Fingerprint: fp,
				Status:      rec.code(),
				Header:      keepHeaders(rec.header),
				Body:        rec.body.Bytes(),
				ExpiresAt:   s.now().UTC().Add(s.ttl),
			}
			if err := store.Finish(ctx, scoped, done); err != nil {
				logger.Error("idempotency response not stored", zap.Error(err))
				if err := store.Forget(ctx, scoped, fp); err != nil {
					logger.Warn("idempotency key not released after store failure", zap.Error(err))
				}
				reject(ctx, w, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
				return
			}
			write(w, rec.header, rec.code(), rec.body.Bytes())
		})
	}
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// fingerprint binds a key to the request it was first used with.
func fingerprint(r *http.Request, body []byte, requester string) string {
	h := sha256.New()
	for _, part := range []string{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Content-Type"), requester} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// requesterOf names the caller: a resolved actor, the scheduler identity, or anonymous.
func requesterOf(ctx context.Context) string {
	if actor, ok := auth.ActorFromContext(ctx); ok && actor.ID != "" {
		return string(actor.Role) + ":" + actor.ID
	}
	if svc, ok := auth.ServiceIdentityFromContext(ctx); ok && svc.Subject != "" {
		return "service:" + svc.Subject
	}
	return "anonymous"
}

func reject(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

func write(w http.ResponseWriter, header http.Header, status int, body []byte) {
	dst := w.Header()
	for name, values := range header {
		dst[name] = append([]string(nil), values...)
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// capture holds the handler's response until the middleware decides what to store.
type capture struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (c *capture) Header() http.Header { return c.header }

func (c *capture) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *capture) Write(p []byte) (int, error) {
	c.WriteHeader(http.StatusOK)
	return c.body.Write(p)
}

func (c *capture) code() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
