package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	usageItems       metric.Int64Counter
	usageDelta       metric.Int64Counter
	thresholdEvents  metric.Int64Counter
	suspensions      metric.Int64Counter
	emissionFailures metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "telcoquota"
	}
	meter := provider.Meter(name)

	usageItems, err := meter.Int64Counter("telcoquota_usage_items_total")
	if err != nil {
		return nil, err
	}
	usageDelta, err := meter.Int64Counter("telcoquota_usage_data_mb_total")
	if err != nil {
		return nil, err
	}
	thresholdEvents, err := meter.Int64Counter("telcoquota_threshold_events_total")
	if err != nil {
		return nil, err
	}
	suspensions, err := meter.Int64Counter("telcoquota_suspensions_total")
	if err != nil {
		return nil, err
	}
	emissionFailures, err := meter.Int64Counter("telcoquota_event_emission_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("telcoquota_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("telcoquota_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		usageItems:       usageItems,
		usageDelta:       usageDelta,
		thresholdEvents:  thresholdEvents,
		suspensions:      suspensions,
		emissionFailures: emissionFailures,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordUsageItem counts one processed ingestion item by outcome.
func (m *Metrics) RecordUsageItem(ctx context.Context, outcome string, deltaMB int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.usageItems.Add(ctx, 1, metric.WithAttributes(attrs...))
	if deltaMB > 0 {
		m.usageDelta.Add(ctx, deltaMB)
	}
}

// RecordThresholdEvent counts emitted threshold notifications.
func (m *Metrics) RecordThresholdEvent(ctx context.Context, eventName string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventName)))
	m.thresholdEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSuspension counts subscriptions that actually moved to suspended.
func (m *Metrics) RecordSuspension(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.suspensions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEmissionFailure counts events that could not be published.
func (m *Metrics) RecordEmissionFailure(ctx context.Context, eventName string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventName)))
	m.emissionFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, role, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("role", strings.TrimSpace(role)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, role, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("role", strings.TrimSpace(role)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"role":        {},
	"endpoint":    {},
	"status_code": {},
	"outcome":     {},
	"event_type":  {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
