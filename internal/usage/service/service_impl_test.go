package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/config"
	"github.com/smallbiznis/telcoquota/internal/consequence"
	"github.com/smallbiznis/telcoquota/internal/events"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/telcoquota/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/telcoquota/internal/subscription/service"
	"github.com/smallbiznis/telcoquota/internal/testutil"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/smallbiznis/telcoquota/internal/usage/quota"
	usagerepo "github.com/smallbiznis/telcoquota/internal/usage/repository"
	"github.com/smallbiznis/telcoquota/internal/usage/threshold"
	"github.com/smallbiznis/telcoquota/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	node      *snowflake.Node
	publisher *recordingPublisher
	directory subscriptiondomain.Directory
	svc       usagedomain.Service
}

var testNow = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := testutil.NewSQLiteDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(testNow)
	publisher := &recordingPublisher{}
	directory := subscriptionservice.NewDirectory(subscriptionservice.DirectoryParam{
		DB:   conn,
		Repo: subscriptionrepo.Provide(),
	})
	holder := config.NewStaticQuotaConfigHolder(config.QuotaConfig{
		Thresholds:         []int{100, 80, 50},
		DefaultDataQuotaMB: 42000,
	})
	dispatcher := consequence.New(consequence.Params{
		Log:       zap.NewNop(),
		Clock:     clk,
		Directory: directory,
		Publisher: publisher,
	})

	svc := NewService(ServiceParam{
		Log:       zap.NewNop(),
		Config:    config.Config{Usage: config.UsageConfig{ItemTimeout: time.Second}},
		Clock:     clk,
		Directory: directory,
		Ledger: usagerepo.NewLedger(usagerepo.LedgerParam{
			DB:    conn,
			GenID: node,
			Clock: clk,
		}),
		Quotas: quota.NewResolver(quota.ResolverParam{
			Log:       zap.NewNop(),
			Directory: directory,
			Holder:    holder,
		}),
		Evaluator:  threshold.NewEvaluator(holder),
		Dispatcher: dispatcher,
	})

	return &fixture{
		db:        conn,
		clock:     clk,
		node:      node,
		publisher: publisher,
		directory: directory,
		svc:       svc,
	}
}

func (f *fixture) seedSubscription(t *testing.T, msisdn string, status subscriptiondomain.SubscriptionStatus) subscriptiondomain.Subscription {
	t.Helper()
	sub := subscriptiondomain.Subscription{
		ID:         f.node.Generate(),
		CustomerID: f.node.Generate(),
		MSISDN:     msisdn,
		Status:     status,
		RenewAt:    testNow.AddDate(0, 1, 0),
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	require.NoError(t, subscriptionrepo.Provide().Insert(context.Background(), f.db, &sub))
	return sub
}

func (f *fixture) status(t *testing.T, id snowflake.ID) subscriptiondomain.SubscriptionStatus {
	t.Helper()
	sub, err := f.directory.FindByID(context.Background(), id)
	require.NoError(t, err)
	return sub.Status
}

func TestIngestBatchCrossesEachThresholdOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seedSubscription(t, "6281100001", subscriptiondomain.SubscriptionStatusActive)

	result, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100001", DataDeltaMB: 21000}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Triggered)
	assert.Equal(t, []string{events.UsageThreshold50}, f.publisher.names())

	f.publisher.reset()
	result, err = f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100001", DataDeltaMB: 100}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Triggered)
	assert.Empty(t, f.publisher.names())

	result, err = f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100001", DataDeltaMB: 12500}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Triggered)
	assert.Equal(t, []string{events.UsageThreshold80}, f.publisher.names())
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, f.status(t, sub.ID))

	f.publisher.reset()
	result, err = f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100001", DataDeltaMB: 9400}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Suspended)
	assert.Equal(t, 1, result.Triggered)
	assert.Equal(t, []string{events.UsageLimitReached, events.SubscriptionSuspended}, f.publisher.names())
	assert.Equal(t, subscriptiondomain.SubscriptionStatusSuspended, f.status(t, sub.ID))

	usage, err := f.svc.CurrentUsage(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(43000), usage.DataUsedMB)
	assert.Equal(t, int64(42000), usage.DataQuotaMB)
	assert.InDelta(t, 102.38, usage.Percentage, 0.001)
}

func TestIngestBatchDefaultQuotaCrossesEightyThenSuspends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seedSubscription(t, "9990000001", subscriptiondomain.SubscriptionStatusActive)

	result, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "9990000001", DataDeltaMB: 40000, VoiceDeltaMin: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Suspended)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{events.UsageThreshold80}, f.publisher.names())
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, f.status(t, sub.ID))

	f.publisher.reset()
	result, err = f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "9990000001", DataDeltaMB: 3000}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Suspended)
	assert.Equal(t, []string{events.UsageLimitReached, events.SubscriptionSuspended}, f.publisher.names())
	assert.Equal(t, subscriptiondomain.SubscriptionStatusSuspended, f.status(t, sub.ID))

	usage, err := f.svc.CurrentUsage(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(43000), usage.DataUsedMB)
	assert.Equal(t, int64(10), usage.VoiceUsedMin)
}

func TestIngestBatchUnknownReferenceInTheMiddle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.seedSubscription(t, "6281100011", subscriptiondomain.SubscriptionStatusActive)
	third := f.seedSubscription(t, "6281100013", subscriptiondomain.SubscriptionStatusActive)

	result, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{
		{SubscriberReference: "6281100011", DataDeltaMB: 100},
		{SubscriberReference: "6281100012", DataDeltaMB: 100},
		{SubscriberReference: "6281100013", DataDeltaMB: 200},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, []string{"6281100012: subscription_not_found"}, result.Errors)

	for id, want := range map[snowflake.ID]int64{first.ID: 100, third.ID: 200} {
		usage, err := f.svc.CurrentUsage(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, want, usage.DataUsedMB)
	}
}

func TestIngestBatchJumpFiresOnlyHighestThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSubscription(t, "6281100002", subscriptiondomain.SubscriptionStatusActive)

	_, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100002", DataDeltaMB: 16800}})
	require.NoError(t, err)
	f.publisher.reset()

	result, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100002", DataDeltaMB: 27300}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Suspended)
	assert.Equal(t, []string{events.UsageLimitReached, events.SubscriptionSuspended}, f.publisher.names())

	payload := f.publisher.events[0].Payload
	assert.Equal(t, 100, payload["threshold"])
	assert.Equal(t, "6281100002", payload["subscriber_reference"])
}

func TestIngestBatchIsolatesItemFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedSubscription(t, "6281100003", subscriptiondomain.SubscriptionStatusActive)
	f.seedSubscription(t, "6281100004", subscriptiondomain.SubscriptionStatusSuspended)

	result, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{
		{SubscriberReference: "6289999999", DataDeltaMB: 10},
		{SubscriberReference: "6281100003", DataDeltaMB: 10, VoiceDeltaMin: 3},
		{SubscriberReference: "6281100004", DataDeltaMB: 10},
		{SubscriberReference: "6281100003", DataDeltaMB: -1},
		{SubscriberReference: "  ", DataDeltaMB: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, []string{
		"6289999999: subscription_not_found",
		"6281100004: subscription_not_found",
		"6281100003: invalid_delta",
		"  : invalid_subscriber_reference",
	}, result.Errors)
}

func TestIngestBatchEmptyBatchHasNoErrors(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.IngestBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.NotNil(t, result.Errors)
	assert.Empty(t, result.Errors)
}

func TestIngestBatchEmissionFailureKeepsWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seedSubscription(t, "6281100005", subscriptiondomain.SubscriptionStatusActive)
	f.publisher.err = errors.New("bus unavailable")

	result, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100005", DataDeltaMB: 50000}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Suspended)
	assert.Empty(t, result.Errors)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusSuspended, f.status(t, sub.ID))

	usage, err := f.svc.CurrentUsage(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(50000), usage.DataUsedMB)
}

func TestIngestBatchUnlimitedPlanNeverSuspends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	planID := f.node.Generate()
	require.NoError(t, subscriptionrepo.Provide().UpsertPlanQuota(ctx, f.db, &subscriptiondomain.PlanQuota{
		PlanID:    planID,
		Name:      "unlimited",
		Unlimited: true,
	}))
	sub := subscriptiondomain.Subscription{
		ID:         f.node.Generate(),
		CustomerID: f.node.Generate(),
		MSISDN:     "6281100006",
		PlanID:     &planID,
		Status:     subscriptiondomain.SubscriptionStatusActive,
		RenewAt:    testNow.AddDate(0, 1, 0),
	}
	require.NoError(t, subscriptionrepo.Provide().Insert(ctx, f.db, &sub))

	result, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100006", DataDeltaMB: 900000}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Triggered)
	assert.Empty(t, f.publisher.names())

	usage, err := f.svc.CurrentUsage(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.True(t, usage.Unlimited)
	assert.Zero(t, usage.Percentage)
}

func TestIngestBatchConcurrentCallersLoseNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seedSubscription(t, "6281100007", subscriptiondomain.SubscriptionStatusActive)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100007", DataDeltaMB: 10, VoiceDeltaMin: 1}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	usage, err := f.svc.CurrentUsage(ctx, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(80), usage.DataUsedMB)
	assert.Equal(t, int64(8), usage.VoiceUsedMin)
}

func TestIngestBatchCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100001", DataDeltaMB: 1}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Processed)
}

func TestCurrentUsageWithoutCounter(t *testing.T) {
	f := newFixture(t)
	sub := f.seedSubscription(t, "6281100008", subscriptiondomain.SubscriptionStatusActive)

	usage, err := f.svc.CurrentUsage(context.Background(), sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 4, usage.PeriodMonth)
	assert.Equal(t, 2026, usage.PeriodYear)
	assert.Zero(t, usage.DataUsedMB)

	_, err = f.svc.CurrentUsage(context.Background(), "not-an-id")
	require.ErrorIs(t, err, usagedomain.ErrInvalidSubscription)
}

func TestListHistoryPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.seedSubscription(t, "6281100009", subscriptiondomain.SubscriptionStatusActive)

	for i := 0; i < 3; i++ {
		_, err := f.svc.IngestBatch(ctx, []usagedomain.Delta{{SubscriberReference: "6281100009", DataDeltaMB: int64(i + 1)}})
		require.NoError(t, err)
		f.clock.Set(f.clock.Now().AddDate(0, 1, 0))
	}

	first, err := f.svc.ListHistory(ctx, usagedomain.ListHistoryRequest{SubscriptionID: sub.ID.String(), PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Counters, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, 6, first.Counters[0].PeriodMonth)
	assert.Equal(t, 5, first.Counters[1].PeriodMonth)

	second, err := f.svc.ListHistory(ctx, usagedomain.ListHistoryRequest{
		SubscriptionID: sub.ID.String(),
		PageSize:       2,
		PageToken:      first.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Counters, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, int64(1), second.Counters[0].DataUsedMB)

	_, err = f.svc.ListHistory(ctx, usagedomain.ListHistoryRequest{SubscriptionID: sub.ID.String(), PageToken: "%%%"})
	require.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}
