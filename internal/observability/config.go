package observability

import (
	"strings"

	"github.com/smallbiznis/telcoquota/internal/config"
	"github.com/spf13/viper"
)

const defaultSamplingRatio = 0.1

// Config is the logging, tracing and metrics setup of one telcoquota process.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig reads the OTEL_* and LOG_* variables on top of the app config.
func LoadConfig(cfg config.Config) Config {
	return loadConfig(newEnv(cfg), cfg.AppName)
}

func newEnv(cfg config.Config) *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", defaultSamplingRatio)
	return v
}

func loadConfig(v *viper.Viper, appName string) Config {
	serviceName := strings.TrimSpace(appName)
	if serviceName == "" {
		serviceName = "telcoquota"
	}

	protocol := lower(v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"))
	if traces := lower(v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}

	ratio := v.GetFloat64("OTEL_SAMPLING_RATIO")
	if ratio < 0 || ratio > 1 {
		ratio = defaultSamplingRatio
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:              strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		LogLevel:             lower(v.GetString("LOG_LEVEL")),
		LogFormat:            lower(v.GetString("LOG_FORMAT")),
		OtelEnabled:          v.GetBool("OTEL_ENABLED"),
		OtelExporterEndpoint: strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug turns on verbose request logging and caller stacks.
func (c Config) Debug() bool {
	if lower(c.LogLevel) == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
