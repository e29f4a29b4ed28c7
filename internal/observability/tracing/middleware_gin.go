package tracing

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/telcoquota/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "telcoquota/http"

// GinMiddleware opens a server span per request. It continues an incoming
// W3C trace and names the span after the matched route once it is known.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		// The actor is attached by the API key middleware after the span starts.
		if actorType, actorID := obscontext.ActorFromContext(c.Request.Context()); actorID != "" {
			attrs = append(attrs,
				attribute.String("telcoquota.actor_type", actorType),
				attribute.String("telcoquota.actor_id", actorID),
			)
		}
		if batchSize := c.GetInt("batch_size"); batchSize > 0 {
			attrs = append(attrs, attribute.Int("telcoquota.batch_size", batchSize))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		switch {
		case status == http.StatusTooManyRequests:
			span.AddEvent("rate_limited")
		case status >= http.StatusInternalServerError:
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
