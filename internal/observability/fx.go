package observability

import (
	"github.com/smallbiznis/telcoquota/internal/observability/logger"
	"github.com/smallbiznis/telcoquota/internal/observability/metrics"
	"github.com/smallbiznis/telcoquota/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Invoke(func(cfg metrics.Config) { metrics.SchedulerWithConfig(cfg) }),
)

type componentConfigs struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

// splitConfig hands each observability component its slice of Config.
func splitConfig(cfg Config) componentConfigs {
	return componentConfigs{
		Logger: logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.LogLevel,
			Format:              cfg.LogFormat,
			Debug:               cfg.Debug(),
			IncludeCaller:       true,
			IncludeStackOnError: cfg.Debug(),
		},
		Tracing: tracing.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}
