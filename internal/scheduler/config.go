package scheduler

import (
	"time"

	"github.com/smallbiznis/telcoquota/internal/config"
)

const (
	JobRenewalSweep     = "renewal_sweep"
	JobReservationSweep = "reservation_expiry"
	JobOutboxRelay      = "outbox_relay"
)

// Config controls sweep schedules and batch sizes. Schedules use robfig/cron
// syntax including descriptors such as "@daily" and "@every 10m".
type Config struct {
	EnabledJobs        []string
	RenewalSchedule    string
	ReservationExpiry  string
	OutboxRelay        string
	BatchSize          int
	JobTimeout         time.Duration
	RenewalPeriodMonth int
	ReservationTTL     time.Duration
	LockTTL            time.Duration
}

func DefaultConfig() Config {
	return Config{
		RenewalSchedule:    "@daily",
		ReservationExpiry:  "@every 10m",
		OutboxRelay:        "@every 30s",
		BatchSize:          100,
		JobTimeout:         5 * time.Minute,
		RenewalPeriodMonth: 1,
		ReservationTTL:     15 * time.Minute,
		LockTTL:            10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		EnabledJobs:        cfg.Scheduler.EnabledJobs,
		RenewalSchedule:    cfg.Scheduler.RenewalSchedule,
		ReservationExpiry:  cfg.Scheduler.ReservationExpiry,
		OutboxRelay:        cfg.Scheduler.OutboxRelay,
		BatchSize:          cfg.Scheduler.BatchSize,
		JobTimeout:         cfg.Scheduler.JobTimeout,
		RenewalPeriodMonth: cfg.Scheduler.RenewalPeriodMonth,
		ReservationTTL:     cfg.Reservation.TTL,
		LockTTL:            cfg.Scheduler.LockTTL,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RenewalSchedule == "" {
		c.RenewalSchedule = defaults.RenewalSchedule
	}
	if c.ReservationExpiry == "" {
		c.ReservationExpiry = defaults.ReservationExpiry
	}
	if c.OutboxRelay == "" {
		c.OutboxRelay = defaults.OutboxRelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.RenewalPeriodMonth <= 0 {
		c.RenewalPeriodMonth = defaults.RenewalPeriodMonth
	}
	if c.ReservationTTL <= 0 {
		c.ReservationTTL = defaults.ReservationTTL
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
