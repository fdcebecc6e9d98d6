package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"github.com/fatflowers/tollgate/pkg/config"
)

// ErrLockHeld is returned by TryLock when another runner owns the lock.
var ErrLockHeld = errors.New("lock held by another runner")

// Locker guards jobs that must have a single runner across replicas.
type Locker interface {
	// TryLock acquires name for ttl without waiting. The returned func releases it.
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

func NewLocker(client *redis.Client, cfg *config.Config) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return &RedsyncLocker{rs: redsync.New(goredis.NewPool(client)), prefix: cfg.Redis.Prefix}
}

type RedsyncLocker struct {
	rs     *redsync.Redsync
	prefix string
}

func (l *RedsyncLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	m := l.rs.NewMutex(Key(l.prefix, "lock", name),
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	if err := m.LockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken") {
			return nil, ErrLockHeld
		}
		return nil, err
	}
	return func() {
		// expiry releases it anyway if the unlock is lost
		_, _ = m.UnlockContext(context.Background())
	}, nil
}

// LocalLocker serialises runners inside one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]bool{}}
}

func (l *LocalLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, ErrLockHeld
	}
	l.held[name] = true
	return func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, nil
}
