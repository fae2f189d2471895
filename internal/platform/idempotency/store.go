// Package idempotency makes retried mutations safe: a repeated Idempotency-Key replays the first
// response instead of running the handler twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL bounds how long a finished response can be replayed.
const DefaultTTL = 24 * time.Hour

// Outcome classifies a Claim.
type Outcome int

const (
	// Claimed means the caller owns the key and runs the handler.
	Claimed Outcome = iota
	// Replay means a finished response is stored for the key.
	Replay
	// InFlight means another request owns the key.
	InFlight
)

// Entry is what a store keeps per key. The Redis store persists it as JSON.
type Entry struct {
	Fingerprint string      `json:"fp"`
	Finished    bool        `json:"finished,omitempty"`
	Status      int         `json:"status,omitempty"`
	Header      http.Header `json:"header,omitempty"`
	Body        []byte      `json:"body,omitempty"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

func (e Entry) live(now time.Time) bool {
	return e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt)
}

// Store claims keys and keeps finished responses until they expire.
type Store interface {
	// Claim records claim under key unless a live entry exists, which is returned instead.
	Claim(ctx context.Context, key string, claim Entry, now time.Time) (Outcome, Entry, error)
	// Finish replaces the claim with the finished response.
	Finish(ctx context.Context, key string, done Entry) error
	// Forget drops a claim held by fingerprint so the key can be retried.
	Forget(ctx context.Context, key, fingerprint string) error
	// Purge removes up to limit expired entries and reports how many went.
	Purge(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrKeyReused reports a key presented again with a different request.
var ErrKeyReused = errors.New("idempotency: key already used for a different request")

func outcomeOf(existing Entry, fingerprint string) (Outcome, Entry, error) {
	switch {
	case existing.Fingerprint != fingerprint:
		return InFlight, Entry{}, ErrKeyReused
	case existing.Finished:
		return Replay, existing, nil
	default:
		return InFlight, existing, nil
	}
}

// hashKey keeps client-chosen keys out of the backend key space.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// replayedHeaders are the response headers kept for replay; hop-by-hop and per-request ones are not.
var replayedHeaders = []string{"Content-Type", "Content-Language", "Location", "Etag", "Cache-Control"}

func keepHeaders(src http.Header) http.Header {
	var kept http.Header
	for _, name := range replayedHeaders {
		values := src.Values(name)
		if len(values) == 0 {
			continue
		}
		if kept == nil {
			kept = make(http.Header, len(replayedHeaders))
		}
		kept[name] = append([]string(nil), values...)
	}
	return kept
}
