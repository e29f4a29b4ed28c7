// Package lock provides the shared redis client and short-lived leases on it.
package lock

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/telcoquota/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
)

// NewRedisClient returns nil when no redis address is configured. Consumers
// treat a nil client as "feature off".
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis not reachable", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
