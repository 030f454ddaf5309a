package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// processingTimeout caps how long a claimed key blocks retries when the
// holder dies before completing.
const processingTimeout = time.Minute

func idempotencyKey(key, userID string) string {
	return userID + ":" + key
}

// MemoryIdempotencyStore is an in-process IdempotencyStore for single-instance
// deployments and tests.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	ttl     time.Duration
	now     func() time.Time

	lastSweep time.Time
}

type memoryRecord struct {
	record    IdempotencyRecord
	expiresAt time.Time
}

// NewMemoryIdempotencyStore creates a store whose completed keys expire after ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		records: make(map[string]memoryRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements IdempotencyStore.
func (m *MemoryIdempotencyStore) Get(_ context.Context, key, userID string) (*IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := idempotencyKey(key, userID)
	entry, ok := m.records[k]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.records, k)
		return nil, nil
	}
	rec := entry.record
	return &rec, nil
}

// Create implements IdempotencyStore.
func (m *MemoryIdempotencyStore) Create(_ context.Context, key, userID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)

	k := idempotencyKey(key, userID)
	if entry, ok := m.records[k]; ok && now.Before(entry.expiresAt) {
		return ErrIdempotencyKeyExists
	}
	m.records[k] = memoryRecord{
		record: IdempotencyRecord{
			Status:      IdempotencyStatusProcessing,
			RequestPath: path,
			CreatedAt:   now,
		},
		expiresAt: now.Add(processingTimeout),
	}
	return nil
}

// sweepLocked drops expired entries, at most once per processingTimeout, so
// keys that are never read again do not accumulate. m.mu must be held.
func (m *MemoryIdempotencyStore) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < processingTimeout {
		return
	}
	m.lastSweep = now
	for k, entry := range m.records {
		if !now.Before(entry.expiresAt) {
			delete(m.records, k)
		}
	}
}

// Complete implements IdempotencyStore.
func (m *MemoryIdempotencyStore) Complete(_ context.Context, key, userID string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := idempotencyKey(key, userID)
	entry, ok := m.records[k]
	if !ok {
		return fmt.Errorf("idempotency key %q was not claimed", key)
	}
	entry.record.Status = IdempotencyStatusCompleted
	entry.record.ResponseCode = status
	entry.record.ResponseBody = append([]byte(nil), body...)
	entry.expiresAt = m.now().Add(m.ttl)
	m.records[k] = entry
	return nil
}

// Fail implements IdempotencyStore.
func (m *MemoryIdempotencyStore) Fail(_ context.Context, key, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, idempotencyKey(key, userID))
	return nil
}

// IdempotencyRedisClient is the subset of the go-redis client used by
// RedisIdempotencyStore.
type IdempotencyRedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisIdempotencyStore shares idempotency keys across API instances. Records
// are stored as JSON under vonvault:idem:<user>:<key>.
type RedisIdempotencyStore struct {
	client IdempotencyRedisClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisIdempotencyStore creates a store whose completed keys expire after ttl.
func NewRedisIdempotencyStore(client IdempotencyRedisClient, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client: client,
		prefix: "vonvault:idem:",
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisIdempotencyStore) redisKey(key, userID string) string {
	return s.prefix + idempotencyKey(key, userID)
}

// Get implements IdempotencyStore.
func (s *RedisIdempotencyStore) Get(ctx context.Context, key, userID string) (*IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, s.redisKey(key, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading idempotency key: %w", err)
	}

	var rec IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding idempotency record: %w", err)
	}
	return &rec, nil
}

// Create implements IdempotencyStore.
func (s *RedisIdempotencyStore) Create(ctx context.Context, key, userID, path string) error {
	payload, err := json.Marshal(IdempotencyRecord{
		Status:      IdempotencyStatusProcessing,
		RequestPath: path,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding idempotency record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.redisKey(key, userID), payload, processingTimeout).Result()
	if err != nil {
		return fmt.Errorf("claiming idempotency key: %w", err)
	}
	if !ok {
		return ErrIdempotencyKeyExists
	}
	return nil
}

// Complete implements IdempotencyStore.
func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, userID string, status int, body []byte) error {
	rec, err := s.Get(ctx, key, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("idempotency key %q was not claimed", key)
	}

	rec.Status = IdempotencyStatusCompleted
	rec.ResponseCode = status
	rec.ResponseBody = body
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(key, userID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing idempotency response: %w", err)
	}
	return nil
}

// Fail implements IdempotencyStore.
func (s *RedisIdempotencyStore) Fail(ctx context.Context, key, userID string) error {
	if err := s.client.Del(ctx, s.redisKey(key, userID)).Err(); err != nil {
		return fmt.Errorf("releasing idempotency key: %w", err)
	}
	return nil
}
