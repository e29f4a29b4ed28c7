package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/config"
	"github.com/smallbiznis/telcoquota/internal/consequence"
	obslogger "github.com/smallbiznis/telcoquota/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/smallbiznis/telcoquota/internal/usage/threshold"
	"github.com/smallbiznis/telcoquota/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultItemTimeout = 2 * time.Second

	outcomeUpdated  = "updated"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Clock      clock.Clock
	Directory  subscriptiondomain.Directory
	Ledger     usagedomain.Ledger
	Quotas     usagedomain.QuotaResolver
	Evaluator  *threshold.Evaluator
	Dispatcher *consequence.Dispatcher
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	clock       clock.Clock
	directory   subscriptiondomain.Directory
	ledger      usagedomain.Ledger
	quotas      usagedomain.QuotaResolver
	evaluator   *threshold.Evaluator
	dispatcher  *consequence.Dispatcher
	metrics     *obsmetrics.Metrics
	tracer      trace.Tracer
	itemTimeout time.Duration
}

func NewService(p ServiceParam) usagedomain.Service {
	itemTimeout := p.Config.Usage.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = defaultItemTimeout
	}
	return &Service{
		log:         p.Log.Named("usage.service"),
		clock:       p.Clock,
		directory:   p.Directory,
		ledger:      p.Ledger,
		quotas:      p.Quotas,
		evaluator:   p.Evaluator,
		dispatcher:  p.Dispatcher,
		metrics:     p.Metrics,
		tracer:      otel.Tracer("telcoquota/usage"),
		itemTimeout: itemTimeout,
	}
}

// itemResult is what one delta contributed to the batch.
type itemResult struct {
	updated bool
	consequence.Outcome
}

// IngestBatch applies each delta independently, in order. Item failures are
// collected into the result; the returned error is reserved for a cancelled
// caller context.
func (s *Service) IngestBatch(ctx context.Context, deltas []usagedomain.Delta) (usagedomain.BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "usage.IngestBatch",
		trace.WithAttributes(attribute.Int("usage.batch_size", len(deltas))),
	)
	defer span.End()

	result := usagedomain.BatchResult{Errors: []string{}}
	for _, delta := range deltas {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}

		result.Processed++
		item, err := s.ingestOne(ctx, delta)
		if item.updated {
			result.Updated++
		}
		if item.Triggered {
			result.Triggered++
		}
		if item.Suspended {
			result.Suspended++
		}
		if err != nil {
			result.Errors = append(result.Errors, formatItemError(delta.SubscriberReference, err))
			s.recordFailure(ctx, delta, err)
			continue
		}
		s.metrics.RecordUsageItem(ctx, outcomeUpdated, delta.DataDeltaMB)
	}

	span.SetAttributes(
		attribute.Int("usage.updated", result.Updated),
		attribute.Int("usage.errors", len(result.Errors)),
	)
	return result, nil
}

func (s *Service) ingestOne(ctx context.Context, delta usagedomain.Delta) (itemResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.itemTimeout)
	defer cancel()

	reference := strings.TrimSpace(delta.SubscriberReference)
	if reference == "" {
		return itemResult{}, &usagedomain.ResolutionError{Reference: reference, Err: subscriptiondomain.ErrInvalidReference}
	}
	if delta.DataDeltaMB < 0 || delta.VoiceDeltaMin < 0 {
		return itemResult{}, &usagedomain.ResolutionError{Reference: reference, Err: usagedomain.ErrInvalidDelta}
	}

	sub, err := s.directory.FindActiveByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) || errors.Is(err, subscriptiondomain.ErrInvalidReference) {
			return itemResult{}, &usagedomain.ResolutionError{Reference: reference, Err: err}
		}
		return itemResult{}, &usagedomain.PersistenceError{Op: "resolve subscription", Err: err}
	}

	quota, err := s.quotas.Resolve(ctx, sub)
	if err != nil {
		return itemResult{}, &usagedomain.PersistenceError{Op: "resolve quota", Err: err}
	}

	counter, err := s.ledger.FindOrCreateCounter(ctx, sub.ID, usagedomain.PeriodOf(s.clock.Now()))
	if err != nil {
		return itemResult{}, &usagedomain.PersistenceError{Op: "find or create counter", Err: err}
	}

	updated, err := s.ledger.AtomicIncrement(ctx, usagedomain.Increment{
		CounterID:     counter.ID,
		DataDeltaMB:   delta.DataDeltaMB,
		VoiceDeltaMin: delta.VoiceDeltaMin,
	})
	if err != nil {
		return itemResult{}, &usagedomain.PersistenceError{Op: "increment counter", Err: err}
	}

	result := itemResult{updated: true}
	oldUsed := updated.DataUsedMB - delta.DataDeltaMB
	decision := s.evaluator.Evaluate(oldUsed, updated.DataUsedMB, quota)
	if decision.IsNoAction() {
		return result, nil
	}

	outcome, err := s.dispatcher.Apply(ctx, decision, consequence.Target{
		Subscription: sub,
		DataUsedMB:   updated.DataUsedMB,
		Quota:        quota,
	})
	result.Outcome = outcome
	if err != nil {
		return result, err
	}

	obslogger.WithSubscription(obslogger.WithContext(ctx, s.log), sub.ID.String(), reference).Info("usage threshold crossed",
		zap.String("action", decision.Action.String()),
		zap.Int("threshold", decision.Threshold),
		zap.Float64("percentage", decision.Percentage),
	)
	return result, nil
}

func (s *Service) recordFailure(ctx context.Context, delta usagedomain.Delta, err error) {
	var resolutionErr *usagedomain.ResolutionError
	if errors.As(err, &resolutionErr) {
		s.log.Debug("usage item rejected",
			zap.String("subscriber_reference", delta.SubscriberReference),
			zap.Error(err),
		)
		s.metrics.RecordUsageItem(ctx, outcomeRejected, 0)
		return
	}
	s.log.Warn("usage item failed",
		zap.String("subscriber_reference", delta.SubscriberReference),
		zap.Error(err),
	)
	s.metrics.RecordUsageItem(ctx, outcomeFailed, 0)
}

func formatItemError(reference string, err error) string {
	reason := err.Error()
	var resolutionErr *usagedomain.ResolutionError
	if errors.As(err, &resolutionErr) {
		reason = resolutionErr.Err.Error()
	}
	return fmt.Sprintf("%s: %s", reference, reason)
}

// CurrentUsage reports the counter for the current period without creating it.
func (s *Service) CurrentUsage(ctx context.Context, subscriptionID string) (usagedomain.CurrentUsage, error) {
	id, err := parseID(subscriptionID)
	if err != nil {
		return usagedomain.CurrentUsage{}, err
	}
	sub, err := s.directory.FindByID(ctx, id)
	if err != nil {
		return usagedomain.CurrentUsage{}, err
	}
	quota, err := s.quotas.Resolve(ctx, sub)
	if err != nil {
		return usagedomain.CurrentUsage{}, err
	}

	period := usagedomain.PeriodOf(s.clock.Now())
	counter, err := s.ledger.FindCounter(ctx, sub.ID, period)
	if err != nil {
		return usagedomain.CurrentUsage{}, err
	}

	usage := usagedomain.CurrentUsage{
		SubscriptionID:      sub.ID.String(),
		SubscriberReference: sub.MSISDN,
		PeriodMonth:         period.Month,
		PeriodYear:          period.Year,
		DataQuotaMB:         quota.DataMB,
		Unlimited:           quota.Unlimited,
	}
	if counter != nil {
		usage.DataUsedMB = counter.DataUsedMB
		usage.VoiceUsedMin = counter.VoiceUsedMin
	}
	if !quota.Unlimited {
		usage.Percentage = threshold.Percentage(usage.DataUsedMB, quota.DataMB)
	}
	return usage, nil
}

func (s *Service) ListHistory(ctx context.Context, req usagedomain.ListHistoryRequest) (usagedomain.ListHistoryResponse, error) {
	id, err := parseID(req.SubscriptionID)
	if err != nil {
		return usagedomain.ListHistoryResponse{}, err
	}
	if _, err := s.directory.FindByID(ctx, id); err != nil {
		return usagedomain.ListHistoryResponse{}, err
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return usagedomain.ListHistoryResponse{}, err
	}
	var beforeID snowflake.ID
	if cursor != nil {
		beforeID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return usagedomain.ListHistoryResponse{}, pagination.ErrInvalidPageToken
		}
	}

	limit := pagination.NormalizePageSize(req.PageSize)
	rows, err := s.ledger.ListCounters(ctx, usagedomain.ListCountersQuery{
		SubscriptionID: id,
		BeforeID:       beforeID,
		Limit:          limit + 1,
	})
	if err != nil {
		return usagedomain.ListHistoryResponse{}, err
	}

	counters, pageInfo, err := pagination.TrimPage(rows, limit, func(c usagedomain.UsageCounter) string {
		return c.ID.String()
	})
	if err != nil {
		return usagedomain.ListHistoryResponse{}, err
	}
	return usagedomain.ListHistoryResponse{PageInfo: pageInfo, Counters: counters}, nil
}

func parseID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, usagedomain.ErrInvalidSubscription
	}
	id, err := snowflake.ParseString(trimmed)
	if err != nil || id == 0 {
		return 0, usagedomain.ErrInvalidSubscription
	}
	return id, nil
}
