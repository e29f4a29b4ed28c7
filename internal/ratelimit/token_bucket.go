package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// tokenBucketScript refills by elapsed redis time, then takes one token.
// Redis truncates Lua numbers in replies, so the remaining count comes back
// as an integer.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tokens, ts}
`

var (
	ErrNotConfigured   = errors.New("rate limiter not configured")
	ErrEmptyKey        = errors.New("rate limiter key is empty")
	ErrInvalidRate     = errors.New("rate limiter rate must be positive")
	ErrInvalidBurst    = errors.New("rate limiter burst must be positive")
	ErrInvalidResponse = errors.New("invalid rate limit script response")
)

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	if t == nil || t.client == nil {
		return Result{}, ErrNotConfigured
	}
	if key == "" {
		return Result{}, ErrEmptyKey
	}
	if rate <= 0 {
		return Result{}, ErrInvalidRate
	}
	if burst <= 0 {
		return Result{}, ErrInvalidBurst
	}

	ttl := bucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) < 3 {
		return Result{}, ErrInvalidResponse
	}

	allowed := toInt(res[0]) == 1
	remaining := toInt(res[1])

	var retryAfter time.Duration
	if !allowed {
		needed := 1 - float64(remaining)
		if needed > 0 {
			retryAfter = time.Duration(needed / rate * float64(time.Second))
		}
	}

	return Result{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(remaining),
		RetryAfter: retryAfter,
	}, nil
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func toInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		n, _ := strconv.ParseFloat(val, 64)
		return int64(n)
	default:
		return 0
	}
}
