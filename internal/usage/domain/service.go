package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	"github.com/smallbiznis/telcoquota/pkg/db/pagination"
)

// Delta is one usage report from the network side.
type Delta struct {
	SubscriberReference string `json:"subscriber_reference"`
	DataDeltaMB         int64  `json:"data_delta_mb"`
	VoiceDeltaMin       int64  `json:"voice_delta_min"`
}

// BatchResult summarizes one ingestion batch. Errors holds one
// "<subscriber_reference>: <reason>" entry per failed item.
type BatchResult struct {
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Suspended int      `json:"suspended"`
	Triggered int      `json:"triggered"`
	Errors    []string `json:"errors"`
}

// Increment adds both deltas to a counter in a single statement.
type Increment struct {
	CounterID     snowflake.ID
	DataDeltaMB   int64
	VoiceDeltaMin int64
}

type ListCountersQuery struct {
	SubscriptionID snowflake.ID
	BeforeID       snowflake.ID
	Limit          int
}

// Ledger stores usage counters. FindOrCreateCounter is idempotent under
// concurrent callers and AtomicIncrement never loses an update.
type Ledger interface {
	FindOrCreateCounter(ctx context.Context, subscriptionID snowflake.ID, period Period) (UsageCounter, error)
	AtomicIncrement(ctx context.Context, inc Increment) (UsageCounter, error)
	FindCounter(ctx context.Context, subscriptionID snowflake.ID, period Period) (*UsageCounter, error)
	ListCounters(ctx context.Context, query ListCountersQuery) ([]UsageCounter, error)
}

// QuotaResolver returns the allowance that applies to a subscription.
type QuotaResolver interface {
	Resolve(ctx context.Context, subscription subscriptiondomain.Subscription) (Quota, error)
}

type CurrentUsage struct {
	SubscriptionID      string  `json:"subscription_id"`
	SubscriberReference string  `json:"subscriber_reference"`
	PeriodMonth         int     `json:"period_month"`
	PeriodYear          int     `json:"period_year"`
	DataUsedMB          int64   `json:"data_used_mb"`
	VoiceUsedMin        int64   `json:"voice_used_min"`
	DataQuotaMB         int64   `json:"data_quota_mb"`
	Unlimited           bool    `json:"unlimited"`
	Percentage          float64 `json:"percentage"`
}

type ListHistoryRequest struct {
	SubscriptionID string
	PageToken      string
	PageSize       int
}

type ListHistoryResponse struct {
	pagination.PageInfo
	Counters []UsageCounter `json:"counters"`
}

type Service interface {
	IngestBatch(ctx context.Context, deltas []Delta) (BatchResult, error)
	CurrentUsage(ctx context.Context, subscriptionID string) (CurrentUsage, error)
	ListHistory(ctx context.Context, req ListHistoryRequest) (ListHistoryResponse, error)
}

var (
	ErrInvalidDelta        = errors.New("invalid_delta")
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrCounterNotFound     = errors.New("usage_counter_not_found")
)
