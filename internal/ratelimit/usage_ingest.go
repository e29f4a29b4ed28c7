package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/telcoquota/internal/config"
	"go.uber.org/fx"
)

const keyUsageIngest = "usage:ingest:key:%s"

type Params struct {
	fx.In

	Config config.Config
	Client *redis.Client `optional:"true"`
}

// UsageIngestLimiter throttles ingestion per API key. A nil or disabled
// limiter allows everything.
type UsageIngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewUsageIngestLimiter(p Params) (*UsageIngestLimiter, error) {
	limitCfg := p.Config.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if p.Client == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if limitCfg.UsageIngestRate <= 0 || limitCfg.UsageIngestBurst <= 0 {
		return nil, errors.New("usage ingest rate limit must be positive")
	}
	return &UsageIngestLimiter{
		bucket: NewTokenBucket(p.Client),
		rate:   limitCfg.UsageIngestRate,
		burst:  limitCfg.UsageIngestBurst,
	}, nil
}

func (l *UsageIngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *UsageIngestLimiter) Allow(ctx context.Context, keyID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUsageIngest, strings.TrimSpace(keyID)), l.rate, l.burst)
}
