package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/tollgate/pkg/config"
)

// NewRedisClient connects to Redis. It returns a nil client when redis.addr is empty;
// consumers then fall back to in-process implementations.
func NewRedisClient(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		log.Infow("redis disabled, using in-process cache and lock")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Infow("connected to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Infow("closing redis client")
			return rdb.Close()
		},
	})
	return rdb, nil
}

// Key joins parts under prefix with ':' separators.
func Key(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if prefix != "" {
		all = append(all, prefix)
	}
	all = append(all, parts...)
	return strings.Join(all, ":")
}

var Module = fx.Options(
	fx.Provide(
		NewRedisClient,
		NewLinkCache,
		NewLocker,
	),
)
