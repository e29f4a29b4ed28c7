package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewQuotaConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Usage       UsageConfig
	Reservation ReservationConfig
	Scheduler   SchedulerConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Events      EventsConfig
	APIKeys     map[string]string
}

type UsageConfig struct {
	DefaultDataQuotaMB int64
	ItemTimeout        time.Duration
	QuotaCacheTTL      time.Duration
}

type ReservationConfig struct {
	TTL time.Duration
}

type SchedulerConfig struct {
	EnabledJobs        []string
	RenewalSchedule    string
	ReservationExpiry  string
	OutboxRelay        string
	BatchSize          int
	JobTimeout         time.Duration
	RenewalPeriodMonth int
	// LockTTL bounds how long one replica holds a job lease in redis.
	LockTTL time.Duration
}

// RedisConfig is shared by the rate limiter and scheduler leases. An empty
// Addr disables both.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled          bool
	UsageIngestRate  float64
	UsageIngestBurst int
}

type EventsConfig struct {
	// Disabled drops every event. Status changes and counters are unaffected.
	Disabled bool
	Outbox   bool
	NATSURL  string
	Subject  string
	// Log mirrors events to the log next to the outbox or broker.
	Log bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "telcoquota"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       getenvInt64("SNOWFLAKE_NODE_ID", 1),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "telcoquota"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Usage: UsageConfig{
			DefaultDataQuotaMB: getenvInt64("USAGE_DEFAULT_DATA_QUOTA_MB", 42000),
			ItemTimeout:        getenvDuration("USAGE_ITEM_TIMEOUT", 2*time.Second),
			QuotaCacheTTL:      getenvDuration("USAGE_QUOTA_CACHE_TTL", time.Minute),
		},
		Reservation: ReservationConfig{
			TTL: getenvDuration("RESERVATION_TTL", 15*time.Minute),
		},
		Scheduler: SchedulerConfig{
			EnabledJobs:        parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
			RenewalSchedule:    getenv("SCHEDULER_RENEWAL_SCHEDULE", "@daily"),
			ReservationExpiry:  getenv("SCHEDULER_RESERVATION_EXPIRY_SCHEDULE", "@every 10m"),
			BatchSize:          getenvInt("SCHEDULER_BATCH_SIZE", 100),
			JobTimeout:         getenvDuration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
			RenewalPeriodMonth: getenvInt("SCHEDULER_RENEWAL_PERIOD_MONTHS", 1),
			OutboxRelay:        getenv("SCHEDULER_OUTBOX_RELAY_SCHEDULE", "@every 30s"),
			LockTTL:            getenvDuration("SCHEDULER_LOCK_TTL", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getenvBool("RATE_LIMIT_ENABLED", false),
			UsageIngestRate:  getenvFloat("RATE_LIMIT_USAGE_INGEST_RATE", 50),
			UsageIngestBurst: getenvInt("RATE_LIMIT_USAGE_INGEST_BURST", 100),
		},
		Events: EventsConfig{
			Disabled: getenvBool("EVENTS_DISABLED", false),
			Outbox:   getenvBool("EVENTS_OUTBOX_ENABLED", true),
			NATSURL:  strings.TrimSpace(getenv("EVENTS_NATS_URL", "")),
			Subject:  strings.TrimSpace(getenv("EVENTS_NATS_SUBJECT_PREFIX", "telcoquota")),
			Log:      getenvBool("EVENTS_LOG_ENABLED", false),
		},
		APIKeys: parseAPIKeys(getenv("API_KEYS", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// parseAPIKeys reads "key:role,key:role" pairs.
func parseAPIKeys(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range parseList(raw) {
		key, role, ok := strings.Cut(pair, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			role = "ingest"
		}
		out[key] = role
	}
	return out
}
