package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/telcoquota/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonKeyRate = "key-rate"

// UsageIngestRateLimit applies the per-key token bucket to ingestion. Limiter
// failures fail closed with 503.
func (s *Server) UsageIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.usageLimiter.Enabled() {
			c.Next()
			return
		}

		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.usageLimiter.Allow(ctx, actor.ID)
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("usage ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			logger.WithContext(ctx, s.log).Warn("usage ingest rate limit exceeded",
				zap.String("reason", rateLimitReasonKeyRate),
				zap.String("endpoint", endpoint),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, actor.Role, endpoint, rateLimitReasonKeyRate)

			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonKeyRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, actor.Role, endpoint)
		c.Next()
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
