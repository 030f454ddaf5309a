package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// LocalLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits on them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

// Acquire blocks until key is free or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.unref(key, lk)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

// RedisClient is the subset of the go-redis client used by RedisLocker.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes the lock only if it still carries our token, so an
// expired lock taken over by another instance is never released by us.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// ErrLockTimeout is returned when the lock could not be taken before the
// caller's deadline.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// RedisLocker is a cross-instance lock backed by SET NX PX. The TTL bounds how
// long a crashed holder can block a user.
type RedisLocker struct {
	client       RedisClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// RedisLockerOption configures a RedisLocker.
type RedisLockerOption func(*RedisLocker)

// WithLockLogger sets the logger that reports failed releases.
func WithLockLogger(logger *slog.Logger) RedisLockerOption {
	return func(l *RedisLocker) { l.logger = logger }
}

// NewRedisLocker creates a RedisLocker. maxWait caps how long Acquire polls
// when ctx has no earlier deadline.
func NewRedisLocker(client RedisClient, ttl, maxWait time.Duration, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:       client,
		prefix:       "vonvault:invest-lock:",
		ttl:          ttl,
		pollInterval: 25 * time.Millisecond,
		maxWait:      maxWait,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Acquire polls until the key is set by us, ctx is done, or maxWait elapses.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", redisKey, err)
		}
		if ok {
			break
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release with a fresh context; the request may already be done.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := l.client.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Err(); err != nil {
				// The key stays held until its TTL expires.
				l.logger.Warn("failed to release investment lock",
					slog.String("key", redisKey),
					slog.Duration("ttl", l.ttl),
					slog.String("error", err.Error()),
				)
			}
		})
	}, nil
}
