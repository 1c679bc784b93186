package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const redisKeyPrefix = "idempotency"

// Record is one stored response replayable for a repeated request.
type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	ServedBy    string
}

type envelope struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	InProgress  bool   `json:"in_progress"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Store keeps idempotency reservations and finalized responses in Redis.
// When no Redis client is configured it falls back to an in-process map,
// which is enough for single-instance deployments and tests.
type Store struct {
	redis redis.Cmdable
	ttl   time.Duration

	mu  sync.Mutex
	mem map[string]envelope
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{redis: rdb, ttl: ttl, mem: make(map[string]envelope)}
}

// Lookup returns the stored record for key, ErrNotFound when absent,
// ErrInProgress while another request holds the reservation, and
// ErrHashMismatch when the same key arrives with a different body.
func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	env, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if env.Hash != requestHash {
		return nil, ErrHashMismatch
	}
	if env.InProgress {
		return nil, ErrInProgress
	}
	return &Record{
		Key:         env.Key,
		RequestHash: env.Hash,
		Status:      env.Status,
		Body:        env.Body,
		ContentType: env.ContentType,
		ServedBy:    s.backendName(),
	}, nil
}

// Reserve claims the key for the current request. Returns false when the
// key is already held or finalized.
func (s *Store) Reserve(ctx context.Context, key, requestHash string) (bool, error) {
	env := envelope{Key: key, Hash: requestHash, InProgress: true}

	if s.redis != nil {
		payload, err := json.Marshal(env)
		if err != nil {
			return false, fmt.Errorf("marshal idempotency reservation: %w", err)
		}
		ok, err := s.redis.SetNX(ctx, redisKey(key), payload, s.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		return ok, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.mem[key]; ok && existing.ExpiresAt > time.Now().UnixNano() {
		return false, nil
	}
	env.ExpiresAt = time.Now().Add(s.ttl).UnixNano()
	s.mem[key] = env
	return true, nil
}

// Finalize records the response for a reserved key so later requests replay it.
func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) error {
	env := envelope{
		Key:         key,
		Hash:        requestHash,
		Status:      status,
		Body:        body,
		ContentType: contentType,
	}

	if s.redis != nil {
		payload, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal idempotency record: %w", err)
		}
		if err := s.redis.Set(ctx, redisKey(key), payload, s.ttl).Err(); err != nil {
			return fmt.Errorf("finalize idempotency key: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	env.ExpiresAt = time.Now().Add(s.ttl).UnixNano()
	s.mem[key] = env
	return nil
}

// Release drops a reservation after a failed request so the client can retry.
func (s *Store) Release(ctx context.Context, key string) {
	if s.redis != nil {
		if err := s.redis.Del(ctx, redisKey(key)).Err(); err != nil {
			zap.L().Warn("release idempotency key failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mem, key)
}

// WaitForCompletion polls until the in-flight holder finalizes or ctx expires.
func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, ErrInProgress) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				continue
			}
		}
		return nil, err
	}
}

func (s *Store) get(ctx context.Context, key string) (envelope, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, redisKey(key)).Result()
		if err == redis.Nil {
			return envelope{}, ErrNotFound
		}
		if err != nil {
			return envelope{}, fmt.Errorf("lookup idempotency key: %w", err)
		}
		var env envelope
		if err := json.Unmarshal([]byte(val), &env); err != nil {
			return envelope{}, fmt.Errorf("decode idempotency record: %w", err)
		}
		return env, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	env, ok := s.mem[key]
	if !ok || env.ExpiresAt <= time.Now().UnixNano() {
		delete(s.mem, key)
		return envelope{}, ErrNotFound
	}
	return env, nil
}

func (s *Store) backendName() string {
	if s.redis != nil {
		return "redis"
	}
	return "memory"
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
