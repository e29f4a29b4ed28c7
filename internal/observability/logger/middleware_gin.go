package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/telcoquota/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	headerRequestID  = "X-Request-Id"
	ginKeyRequestID  = "request_id"
	ginKeyBatchSize  = "batch_size"
	routeUsageIngest = "/api/usage"
)

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps the last handler error to (error_type, error_code).
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware writes one http_request line per request. Ingestion lines
// carry the batch size and the calling key.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		entry := requestEntry{
			route:  routeOf(c),
			status: c.Writer.Status(),
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", entry.route),
			zap.Int("status", entry.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", clampZero(c.Request.ContentLength)),
			zap.Int64("bytes_out", clampZero(int64(c.Writer.Size()))),
		}
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			fields = append(fields, zap.String("resource_id", id))
		}
		if batchSize := c.GetInt(ginKeyBatchSize); batchSize > 0 {
			fields = append(fields, zap.Int("batch_size", batchSize))
		}

		if lastErr := c.Errors.Last(); lastErr != nil {
			if cfg.ErrorClassifier != nil {
				entry.errorType, entry.errorCode = cfg.ErrorClassifier(lastErr.Err)
			}
			fields = append(fields,
				zap.String("error_type", entry.errorType),
				zap.String("error_code", entry.errorCode),
			)
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		log := FromContext(c.Request.Context())
		if ce := log.Check(entry.level(), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

type requestEntry struct {
	route     string
	status    int
	errorType string
	errorCode string
}

// level keeps mediation retries and scrapes out of the info stream.
func (e requestEntry) level() zapcore.Level {
	switch {
	case e.status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case e.status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	case e.route == "/metrics" || e.route == "/health":
		return zapcore.DebugLevel
	case e.route == routeUsageIngest && e.errorType == "validation_error":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
	if requestID == "" {
		requestID = strings.TrimSpace(c.GetString(ginKeyRequestID))
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	c.Set(ginKeyRequestID, requestID)
	c.Header(headerRequestID, requestID)
	return requestID
}

func routeOf(c *gin.Context) string {
	if route := strings.TrimSpace(c.FullPath()); route != "" {
		return route
	}
	return "unknown"
}

func clampZero(value int64) int64 {
	if value < 0 {
		return 0
	}
	return value
}
