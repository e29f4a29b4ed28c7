package consequence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/events"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	"github.com/smallbiznis/telcoquota/internal/subscription/domain/mocks"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/smallbiznis/telcoquota/internal/usage/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePublisher struct {
	events []events.Event
	err    error
}

func (c *capturePublisher) Publish(ctx context.Context, event events.Event) error {
	_ = ctx
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) names() []string {
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Name)
	}
	return out
}

var testNow = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, publisher events.Publisher) (*Dispatcher, *mocks.MockDirectory) {
	t.Helper()
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectory(ctrl)
	d := New(Params{
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(testNow),
		Directory: directory,
		Publisher: publisher,
	})
	return d, directory
}

func testTarget(used int64) Target {
	return Target{
		Subscription: subscriptiondomain.Subscription{
			ID:     snowflake.ID(42),
			MSISDN: "6281100001",
			Status: subscriptiondomain.SubscriptionStatusActive,
		},
		DataUsedMB: used,
		Quota:      usagedomain.Quota{DataMB: 42000},
	}
}

func suspendTransition() subscriptiondomain.StatusTransition {
	return subscriptiondomain.StatusTransition{
		SubscriptionID: snowflake.ID(42),
		From:           []subscriptiondomain.SubscriptionStatus{subscriptiondomain.SubscriptionStatusActive},
		To:             subscriptiondomain.SubscriptionStatusSuspended,
		At:             testNow,
	}
}

func TestApplyNoActionDoesNothing(t *testing.T) {
	publisher := &capturePublisher{}
	d, _ := newTestDispatcher(t, publisher)

	outcome, err := d.Apply(context.Background(), threshold.NoAction, testTarget(10))
	require.NoError(t, err)
	assert.Equal(t, Outcome{}, outcome)
	assert.Empty(t, publisher.events)
}

func TestApplyNotifyEmitsThresholdEvent(t *testing.T) {
	publisher := &capturePublisher{}
	d, _ := newTestDispatcher(t, publisher)

	decision := threshold.Decision{Action: threshold.ActionNotify, Threshold: 80, Percentage: 95.23}
	outcome, err := d.Apply(context.Background(), decision, testTarget(40000))
	require.NoError(t, err)
	assert.True(t, outcome.Triggered)
	assert.False(t, outcome.Suspended)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, events.UsageThreshold80, event.Name)
	assert.Equal(t, map[string]any{
		"subscription_id":      "42",
		"subscriber_reference": "6281100001",
		"data_used":            int64(40000),
		"data_quota":           int64(42000),
		"percentage":           95.23,
		"threshold":            80,
	}, event.Payload)
	assert.NotEmpty(t, event.ID)
}

func TestApplySuspendPersistsThenEmits(t *testing.T) {
	publisher := &capturePublisher{}
	d, directory := newTestDispatcher(t, publisher)
	directory.EXPECT().SetStatus(gomock.Any(), suspendTransition()).Return(true, nil)

	decision := threshold.Decision{Action: threshold.ActionSuspend, Threshold: 100, Percentage: 102.38}
	outcome, err := d.Apply(context.Background(), decision, testTarget(43000))
	require.NoError(t, err)
	assert.Equal(t, Outcome{Triggered: true, Suspended: true}, outcome)
	assert.Equal(t, []string{events.UsageLimitReached, events.SubscriptionSuspended}, publisher.names())
	assert.Equal(t, "usage_limit", publisher.events[1].Payload["reason"])
	assert.Equal(t, "2026-04-10T08:00:00Z", publisher.events[1].Payload["timestamp"])
}

func TestApplySuspendOnAlreadySuspendedIsNoop(t *testing.T) {
	publisher := &capturePublisher{}
	d, directory := newTestDispatcher(t, publisher)
	directory.EXPECT().SetStatus(gomock.Any(), suspendTransition()).Return(false, nil)

	decision := threshold.Decision{Action: threshold.ActionSuspend, Threshold: 100}
	outcome, err := d.Apply(context.Background(), decision, testTarget(43000))
	require.NoError(t, err)
	assert.Equal(t, Outcome{}, outcome)
	assert.Empty(t, publisher.events)
}

func TestApplySuspendStoreFailureIsPersistenceError(t *testing.T) {
	publisher := &capturePublisher{}
	d, directory := newTestDispatcher(t, publisher)
	directory.EXPECT().SetStatus(gomock.Any(), gomock.Any()).Return(false, errors.New("connection reset"))

	_, err := d.Apply(context.Background(), threshold.Decision{Action: threshold.ActionSuspend, Threshold: 100}, testTarget(43000))
	var persistenceErr *usagedomain.PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	assert.Empty(t, publisher.events)
}

func TestApplyEmissionFailureKeepsSuspension(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("broker down")}
	d, directory := newTestDispatcher(t, publisher)
	directory.EXPECT().SetStatus(gomock.Any(), suspendTransition()).Return(true, nil)

	outcome, err := d.Apply(context.Background(), threshold.Decision{Action: threshold.ActionSuspend, Threshold: 100}, testTarget(43000))
	require.NoError(t, err)
	assert.True(t, outcome.Suspended)
}

func TestSuspendForReason(t *testing.T) {
	publisher := &capturePublisher{}
	d, directory := newTestDispatcher(t, publisher)
	directory.EXPECT().SetStatus(gomock.Any(), suspendTransition()).Return(true, nil)

	changed, err := d.SuspendForReason(context.Background(), testTarget(0).Subscription, subscriptiondomain.ReasonPaymentFailed)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Equal(t, []string{events.SubscriptionSuspended}, publisher.names())
	assert.Equal(t, "payment_failed", publisher.events[0].Payload["reason"])
}

func TestReactivateAndCancel(t *testing.T) {
	publisher := &capturePublisher{}
	d, directory := newTestDispatcher(t, publisher)
	sub := testTarget(0).Subscription

	gomock.InOrder(
		directory.EXPECT().SetStatus(gomock.Any(), subscriptiondomain.StatusTransition{
			SubscriptionID: sub.ID,
			From:           []subscriptiondomain.SubscriptionStatus{subscriptiondomain.SubscriptionStatusSuspended},
			To:             subscriptiondomain.SubscriptionStatusActive,
			At:             testNow,
		}).Return(true, nil),
		directory.EXPECT().SetStatus(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req subscriptiondomain.StatusTransition) (bool, error) {
				assert.Equal(t, subscriptiondomain.SubscriptionStatusCancelled, req.To)
				assert.Len(t, req.From, 4)
				return false, nil
			}),
	)

	changed, err := d.Reactivate(context.Background(), sub, "admin")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = d.Cancel(context.Background(), sub, "admin")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []string{events.SubscriptionReactivated}, publisher.names())
}
