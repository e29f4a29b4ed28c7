package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/telcoquota/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	// Sampling bounds identical lines per window. Ingestion can emit one
	// rejected-item line per record, so the defaults are deliberately low.
	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = "telcoquota"
	}
	if c.SamplingInitial == 0 {
		c.SamplingInitial = 100
	}
	if c.SamplingThereafter == 0 {
		c.SamplingThereafter = 100
	}
	if c.SamplingWindow == 0 {
		c.SamplingWindow = time.Second
	}
	return c
}

// New builds the process logger, installs it as the zap global and syncs it
// on shutdown.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	cfg = cfg.withDefaults()

	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = "json"
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		zapCfg.Encoding = "console"
	}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	if err := zapCfg.Level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	options := []zap.Option{
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewSamplerWithOptions(core, cfg.SamplingWindow, cfg.SamplingInitial, cfg.SamplingThereafter)
		}),
	}
	if cfg.IncludeCaller {
		options = append(options, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	log, err := zapCfg.Build(options...)
	if err != nil {
		return nil, err
	}
	log = log.With(
		zap.String("service", strings.TrimSpace(cfg.ServiceName)),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
	zap.ReplaceGlobals(log)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				_ = log.Sync()
				return nil
			},
		})
	}
	return log, nil
}

// FromContext returns the global logger with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext adds request, actor and trace identifiers to base.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.L()
	}
	if ctx == nil {
		return base
	}

	actorType, actorID := obscontext.ActorFromContext(ctx)
	traceID, spanID := "", ""
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		traceID, spanID = sc.TraceID().String(), sc.SpanID().String()
	}

	return base.With(
		zap.String("request_id", obscontext.RequestIDFromContext(ctx)),
		zap.String("actor_type", actorType),
		zap.String("actor_id", actorID),
		zap.String("trace_id", traceID),
		zap.String("span_id", spanID),
	)
}

// WithSubscription tags a logger with the subscription a line is about.
func WithSubscription(log *zap.Logger, subscriptionID, subscriberReference string) *zap.Logger {
	if log == nil {
		return nil
	}
	return log.With(
		zap.String("subscription_id", strings.TrimSpace(subscriptionID)),
		zap.String("subscriber_reference", strings.TrimSpace(subscriberReference)),
	)
}
