package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "idem:"

// RedisCommands is the part of redis.Cmdable the store uses.
type RedisCommands interface {
	SetArgs(ctx context.Context, key string, value any, a redis.SetArgs) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

var _ RedisCommands = (*redis.Client)(nil)

// RedisStore shares keys across instances. Redis expires entries at their ExpiresAt.
type RedisStore struct {
	client RedisCommands
	prefix string
}

// RedisOption customises RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces stored keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			s.prefix = prefix
		}
	}
}

func NewRedisStore(client RedisCommands, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	store := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func (s *RedisStore) Claim(ctx context.Context, key string, claim Entry, _ time.Time) (Outcome, Entry, error) {
	id := s.key(key)
	claim.Finished = false
	payload, err := json.Marshal(claim)
	if err != nil {
		return Claimed, Entry{}, fmt.Errorf("idempotency: encode entry: %w", err)
	}

	// A second round covers an entry that expires between SET NX and GET.
	for range 2 {
		err := s.client.SetArgs(ctx, id, payload, redis.SetArgs{Mode: "NX", ExpireAt: claim.ExpiresAt}).Err()
		if err == nil {
			return Claimed, claim, nil
		}
		if !errors.Is(err, redis.Nil) {
			return Claimed, Entry{}, fmt.Errorf("idempotency: redis set nx: %w", err)
		}
		existing, found, err := s.load(ctx, id)
		if err != nil {
			return Claimed, Entry{}, err
		}
		if found {
			return outcomeOf(existing, claim.Fingerprint)
		}
	}
	return Claimed, Entry{}, errors.New("idempotency: redis key churned during claim")
}

func (s *RedisStore) Finish(ctx context.Context, key string, done Entry) error {
	id := s.key(key)
	existing, found, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if found && existing.Fingerprint != done.Fingerprint {
		return ErrKeyReused
	}
	done.Finished = true
	payload, err := json.Marshal(done)
	if err != nil {
		return fmt.Errorf("idempotency: encode entry: %w", err)
	}
	if err := s.client.SetArgs(ctx, id, payload, redis.SetArgs{ExpireAt: done.ExpiresAt}).Err(); err != nil {
		return fmt.Errorf("idempotency: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Forget(ctx context.Context, key, fingerprint string) error {
	id := s.key(key)
	existing, found, err := s.load(ctx, id)
	if err != nil || !found || existing.Fingerprint != fingerprint {
		return err
	}
	if err := s.client.Del(ctx, id).Err(); err != nil {
		return fmt.Errorf("idempotency: redis del: %w", err)
	}
	return nil
}

// Purge has nothing to do; Redis evicts expired keys.
func (s *RedisStore) Purge(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

// Ping reports whether Redis answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(key string) string {
	return s.prefix + hashKey(key)
}

func (s *RedisStore) load(ctx context.Context, id string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("idempotency: redis get: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("idempotency: decode entry: %w", err)
	}
	return entry, true, nil
}
