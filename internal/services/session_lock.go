package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/skillscope-backend/internal/logger"
)

// SessionLocker serializes turns per session. Concurrent turns against the
// same session queue behind one another; different sessions never contend.
type SessionLocker interface {
	Acquire(ctx context.Context, sessionID uuid.UUID) (release func(), err error)
}

// NewSessionLocker prefers a Redis lock so multiple instances serialize the
// same session; without REDIS_ADDR it degrades to an in-process lock.
func NewSessionLocker(log *logger.Logger) SessionLocker {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return NewLocalSessionLocker()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable; session locks are process-local", "error", err)
		return NewLocalSessionLocker()
	}

	return &redisSessionLocker{
		log: log.With("service", "RedisSessionLocker"),
		rdb: rdb,
		ttl: 30 * time.Second,
	}
}

// ---- in-process ----

type localSessionLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLockEntry
}

// sessionLockEntry holds the lock as a one-slot semaphore so a waiter can
// select on it against ctx cancellation.
type sessionLockEntry struct {
	sem  chan struct{}
	refs int
}

func NewLocalSessionLocker() SessionLocker {
	return &localSessionLocker{locks: make(map[uuid.UUID]*sessionLockEntry)}
}

func (l *localSessionLocker) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[sessionID]
	if !ok {
		entry = &sessionLockEntry{sem: make(chan struct{}, 1)}
		l.locks[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(sessionID, entry)
		return nil, ctx.Err()
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-entry.sem
		l.unref(sessionID, entry)
	}, nil
}

func (l *localSessionLocker) unref(sessionID uuid.UUID, entry *sessionLockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()
}

// ---- redis ----

type redisSessionLocker struct {
	log *logger.Logger
	rdb *redis.Client
	ttl time.Duration
}

// Release only deletes the key when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *redisSessionLocker) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	key := "selfeval:turn_lock:" + sessionID.String()
	token := uuid.New().String()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("Failed to release session lock; TTL will expire it", "session_id", sessionID, "error", err)
		}
	}, nil
}
