package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/finpulse-backend/internal/pkg/httpx"
	"github.com/yungbote/finpulse-backend/internal/pkg/keylock"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type LockerConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL bounds how long a crashed holder can block a key. It must exceed
	// the longest stage unit, including its model timeout.
	TTL  time.Duration
	Poll time.Duration
}

// Locker is a keylock.Locker shared by every process pointed at the same Redis.
type Locker struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

var _ keylock.Locker = (*Locker)(nil)

func NewLocker(ctx context.Context, log *logger.Logger, cfg LockerConfig) (*Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewLockerFromClient(log, rdb, cfg), nil
}

func NewLockerFromClient(log *logger.Logger, rdb goredis.UniversalClient, cfg LockerConfig) *Locker {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "finpulse:lock:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	poll := cfg.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Locker{
		log:    log.With("service", "RedisLocker"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		poll:   poll,
	}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		if err := httpx.Sleep(ctx, l.poll); err != nil {
			return nil, err
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.rdb, []string{k}, token).Err(); err != nil {
			l.log.Warn("lock release failed", "lock_key", key, "error", err)
		}
	}, nil
}

func (l *Locker) Close() error {
	return l.rdb.Close()
}
