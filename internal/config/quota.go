package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// QuotaConfig controls how usage is compared against plan quotas.
type QuotaConfig struct {
	// Thresholds are percentages of the quota, kept sorted in descending order.
	Thresholds         []int `mapstructure:"thresholds"`
	DefaultDataQuotaMB int64 `mapstructure:"defaultDataQuotaMB"`
}

func DefaultQuotaConfig() QuotaConfig {
	return QuotaConfig{
		Thresholds:         []int{100, 80, 50},
		DefaultDataQuotaMB: 42000,
	}
}

type QuotaConfigHolder struct {
	current atomic.Value // holds QuotaConfig
}

// NewQuotaConfigHolder reads quota.yml from the usual config locations and
// watches it for changes.
func NewQuotaConfigHolder(cfg Config, log *zap.Logger) (*QuotaConfigHolder, error) {
	return newQuotaConfigHolder(cfg.Usage.DefaultDataQuotaMB, log.Named("quota-config"),
		"/var/lib/telcoquota/config",
		"/etc/telcoquota",
		".",
	)
}

// NewStaticQuotaConfigHolder returns a holder that never reloads.
func NewStaticQuotaConfigHolder(cfg QuotaConfig) *QuotaConfigHolder {
	holder := &QuotaConfigHolder{}
	holder.current.Store(normalizeQuotaConfig(cfg))
	return holder
}

func newQuotaConfigHolder(defaultQuota int64, log *zap.Logger, paths ...string) (*QuotaConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("quota")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("TELCOQUOTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultQuotaConfig()
	if defaultQuota > 0 {
		defaults.DefaultDataQuotaMB = defaultQuota
	}
	v.SetDefault("quota.thresholds", defaults.Thresholds)
	v.SetDefault("quota.defaultDataQuotaMB", defaults.DefaultDataQuotaMB)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	cfg, err := decodeQuotaConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &QuotaConfigHolder{}
	holder.current.Store(cfg)

	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeQuotaConfig(v)
		if err != nil {
			log.Warn("invalid quota config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("quota config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *QuotaConfigHolder) Get() QuotaConfig {
	if h == nil {
		return DefaultQuotaConfig()
	}
	cfg, ok := h.current.Load().(QuotaConfig)
	if !ok {
		return DefaultQuotaConfig()
	}
	return cfg
}

func decodeQuotaConfig(v *viper.Viper) (QuotaConfig, error) {
	cfg := normalizeQuotaConfig(QuotaConfig{
		Thresholds:         v.GetIntSlice("quota.thresholds"),
		DefaultDataQuotaMB: v.GetInt64("quota.defaultDataQuotaMB"),
	})
	if err := validateQuotaConfig(cfg); err != nil {
		return QuotaConfig{}, err
	}
	return cfg, nil
}

func normalizeQuotaConfig(cfg QuotaConfig) QuotaConfig {
	thresholds := append([]int(nil), cfg.Thresholds...)
	sort.Sort(sort.Reverse(sort.IntSlice(thresholds)))
	cfg.Thresholds = thresholds
	return cfg
}

func validateQuotaConfig(cfg QuotaConfig) error {
	if len(cfg.Thresholds) == 0 {
		return errors.New("quota.thresholds cannot be empty")
	}
	if cfg.Thresholds[0] != 100 {
		return errors.New("quota.thresholds must include 100")
	}
	for i, t := range cfg.Thresholds {
		if t <= 0 || t > 100 {
			return fmt.Errorf("quota.thresholds: %d out of range", t)
		}
		if i > 0 && cfg.Thresholds[i-1] == t {
			return fmt.Errorf("quota.thresholds: duplicate %d", t)
		}
	}
	if cfg.DefaultDataQuotaMB <= 0 {
		return errors.New("quota.defaultDataQuotaMB must be positive")
	}
	return nil
}
