package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/consequence"
	"github.com/smallbiznis/telcoquota/internal/events"
	"github.com/smallbiznis/telcoquota/internal/lock"
	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	GenID        *snowflake.Node
	Authz        authorization.Service
	Directory    subscriptiondomain.Directory
	Dispatcher   *consequence.Dispatcher
	Ledger       usagedomain.Ledger
	Reservations reservationdomain.Service
	Outbox       *events.Outbox        `optional:"true"`
	NATS         *events.NATSPublisher `optional:"true"`
	Locker       *lock.Locker          `optional:"true"`
	Config       Config                `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	genID        *snowflake.Node
	authz        authorization.Service
	directory    subscriptiondomain.Directory
	dispatcher   *consequence.Dispatcher
	ledger       usagedomain.Ledger
	reservations reservationdomain.Service
	outbox       *events.Outbox
	sink         events.Publisher
	locker       *lock.Locker
	cron         *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.GenID == nil || p.Authz == nil || p.Directory == nil || p.Dispatcher == nil || p.Ledger == nil || p.Reservations == nil {
		return nil, ErrInvalidConfig
	}
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))

	var sink events.Publisher = events.NewLogPublisher(log)
	if p.NATS != nil {
		sink = p.NATS
	}

	return &Scheduler{
		log:          log,
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		genID:        p.GenID,
		authz:        p.Authz,
		directory:    p.Directory,
		dispatcher:   p.Dispatcher,
		ledger:       p.Ledger,
		reservations: p.Reservations,
		outbox:       p.Outbox,
		sink:         sink,
		locker:       p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	release, ok := s.acquireLease(parent, name)
	if !ok {
		return nil
	}
	defer release()

	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.startRun(ctx, name, batchSize)
	log := s.logger(ctx).With(run.fields()...)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		s.finishRun(ctx, run, err)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout; the next tick resumes where this one stopped.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

type job struct {
	name     string
	schedule string
	run      func(context.Context) error
}

func (s *Scheduler) jobs() []job {
	return []job{
		{JobRenewalSweep, s.cfg.RenewalSchedule, s.RenewalSweepJob},
		{JobReservationSweep, s.cfg.ReservationExpiry, s.ReservationExpiryJob},
		{JobOutboxRelay, s.cfg.OutboxRelay, s.OutboxRelayJob},
	}
}

// RunOnce runs every enabled job once, in order, and joins their errors.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, j.name, s.cfg.BatchSize, s.cfg.JobTimeout, j.run))
	}
	return err
}

// RunJob runs a single named job once.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	for _, j := range s.jobs() {
		if j.name == name {
			return s.runJob(ctx, j.name, s.cfg.BatchSize, s.cfg.JobTimeout, j.run)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

// Start registers enabled jobs on their cron schedules. A job still running
// when its next tick fires is skipped rather than overlapped.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{log: s.log}),
		cron.WithChain(
			cron.Recover(cronLogger{log: s.log}),
			cron.SkipIfStillRunning(cronLogger{log: s.log}),
		),
	)
	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) {
			continue
		}
		j := j
		if _, err := c.AddFunc(j.schedule, func() {
			if err := s.runJob(ctx, j.name, s.cfg.BatchSize, s.cfg.JobTimeout, j.run); err != nil {
				s.log.Warn("scheduler job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, j.schedule, err)
		}
		s.log.Info("scheduler job registered",
			zap.String("job", j.name),
			zap.String("schedule", j.schedule),
		)
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop stops the cron loop and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// If EnabledJobs is empty, all jobs are enabled by default
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
