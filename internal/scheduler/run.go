package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/telcoquota/internal/observability/context"
	obslogger "github.com/smallbiznis/telcoquota/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun is one execution of a job. Sweeps add to it as they page; the
// outermost runJob call owns it and writes the finish line.
type jobRun struct {
	job       string
	id        string
	batchSize int
	startedAt time.Time
	processed int
	failed    int
}

type jobRunKey struct{}

func (r *jobRun) addProcessed(n int) {
	if r != nil && n > 0 {
		r.processed += n
	}
}

func (r *jobRun) fail() {
	if r != nil {
		r.failed++
	}
}

func (r *jobRun) fields() []zap.Field {
	return []zap.Field{
		zap.String("job", r.job),
		zap.String("run_id", r.id),
	}
}

// startRun attaches a run to ctx unless one is already there. owner is true
// for the call that created it.
func (s *Scheduler) startRun(ctx context.Context, job string, batchSize int) (_ context.Context, run *jobRun, owner bool) {
	if existing := runFrom(ctx); existing != nil {
		return ctx, existing, false
	}
	run = &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")

	s.logger(ctx).Info("scheduler.job.start", append(run.fields(), zap.Int("batch_size", batchSize))...)
	return ctx, run, true
}

func (s *Scheduler) finishRun(ctx context.Context, run *jobRun, err error) {
	if err != nil && run.failed == 0 {
		run.fail()
	}
	fields := append(run.fields(),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processed),
		zap.Int("error_count", run.failed),
	)
	if run.failed > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func runFrom(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

// itemFailed counts and logs a failure on one row. The sweep carries on with
// the next row.
func (s *Scheduler) itemFailed(ctx context.Context, job string, id snowflake.ID, err error, fields ...zap.Field) {
	runFrom(ctx).fail()
	obsmetrics.Scheduler().IncJobError(job, err)

	rowID := ""
	if id != 0 {
		rowID = id.String()
	}
	class := obsmetrics.ClassifySchedulerError(err)
	s.logger(ctx).Error("scheduler."+job+".item_failed", append([]zap.Field{
		zap.String("job", job),
		zap.String("id", rowID),
		zap.String("error_type", class.Type),
		zap.Bool("retryable", class.Retryable),
		zap.Error(err),
	}, fields...)...)
}
