package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	redis "github.com/redis/go-redis/v9"
	apikeydomain "github.com/smallbiznis/telcoquota/internal/apikey/domain"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	"github.com/smallbiznis/telcoquota/internal/config"
	"github.com/smallbiznis/telcoquota/internal/ratelimit"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ingestKey = "tq_live_ingest"
	adminKey  = "tq_live_admin"
)

type fakeAPIKeyService struct {
	created []apikeydomain.CreateRequest
}

func (f *fakeAPIKeyService) Authenticate(ctx context.Context, raw string) (apikeydomain.Key, error) {
	_ = ctx
	switch raw {
	case ingestKey:
		return apikeydomain.Key{ID: "key_ingest", Name: "mediation", Role: authorization.RoleIngest}, nil
	case adminKey:
		return apikeydomain.Key{ID: "key_admin", Name: "ops", Role: authorization.RoleAdmin}, nil
	default:
		return apikeydomain.Key{}, apikeydomain.ErrUnauthorized
	}
}

func (f *fakeAPIKeyService) List(ctx context.Context) ([]apikeydomain.Response, error) {
	_ = ctx
	return []apikeydomain.Response{{KeyID: "key_admin", Name: "ops", Role: authorization.RoleAdmin, IsActive: true}}, nil
}

func (f *fakeAPIKeyService) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	_ = ctx
	f.created = append(f.created, req)
	return &apikeydomain.SecretResponse{KeyID: "key_new", APIKey: "tq_live_new"}, nil
}

func (f *fakeAPIKeyService) Revoke(ctx context.Context, keyID string) error {
	_ = ctx
	if keyID != "key_new" {
		return apikeydomain.ErrNotFound
	}
	return nil
}

type fakeUsageService struct {
	deltas []usagedomain.Delta
	result usagedomain.BatchResult
}

func (f *fakeUsageService) IngestBatch(ctx context.Context, deltas []usagedomain.Delta) (usagedomain.BatchResult, error) {
	_ = ctx
	f.deltas = append(f.deltas, deltas...)
	return f.result, nil
}

func (f *fakeUsageService) CurrentUsage(ctx context.Context, subscriptionID string) (usagedomain.CurrentUsage, error) {
	_ = ctx
	if subscriptionID == "404" {
		return usagedomain.CurrentUsage{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return usagedomain.CurrentUsage{SubscriptionID: subscriptionID, DataUsedMB: 33600, DataQuotaMB: 42000, Percentage: 80}, nil
}

func (f *fakeUsageService) ListHistory(ctx context.Context, req usagedomain.ListHistoryRequest) (usagedomain.ListHistoryResponse, error) {
	_ = ctx
	_ = req
	return usagedomain.ListHistoryResponse{}, nil
}

type fakeSubscriptionService struct {
	requests   []subscriptiondomain.ChangeStatusRequest
	planQuotas []subscriptiondomain.SetPlanQuotaRequest
}

func (f *fakeSubscriptionService) SetPlanQuota(ctx context.Context, req subscriptiondomain.SetPlanQuotaRequest) (subscriptiondomain.PlanQuota, error) {
	_ = ctx
	if req.DataQuotaMB < 0 {
		return subscriptiondomain.PlanQuota{}, subscriptiondomain.ErrInvalidPlanQuota
	}
	f.planQuotas = append(f.planQuotas, req)
	return subscriptiondomain.PlanQuota{PlanID: snowflake.ID(9), Name: req.Name, DataQuotaMB: req.DataQuotaMB}, nil
}

func (f *fakeSubscriptionService) GetByID(ctx context.Context, id string) (subscriptiondomain.Subscription, error) {
	_ = ctx
	if id == "404" {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscriptiondomain.Subscription{ID: snowflake.ID(7), MSISDN: "6281100001", Status: subscriptiondomain.SubscriptionStatusActive}, nil
}

func (f *fakeSubscriptionService) Suspend(ctx context.Context, req subscriptiondomain.ChangeStatusRequest) (subscriptiondomain.Subscription, error) {
	_ = ctx
	f.requests = append(f.requests, req)
	return subscriptiondomain.Subscription{ID: snowflake.ID(7), Status: subscriptiondomain.SubscriptionStatusSuspended}, nil
}

func (f *fakeSubscriptionService) Reactivate(ctx context.Context, req subscriptiondomain.ChangeStatusRequest) (subscriptiondomain.Subscription, error) {
	_ = ctx
	f.requests = append(f.requests, req)
	return subscriptiondomain.Subscription{}, subscriptiondomain.ErrReferenceAlreadyActive
}

func (f *fakeSubscriptionService) Cancel(ctx context.Context, req subscriptiondomain.ChangeStatusRequest) (subscriptiondomain.Subscription, error) {
	_ = ctx
	f.requests = append(f.requests, req)
	return subscriptiondomain.Subscription{ID: snowflake.ID(7), Status: subscriptiondomain.SubscriptionStatusCancelled}, nil
}

type fakeReservationService struct {
	reservationdomain.Service
}

func (f *fakeReservationService) Activate(ctx context.Context, id string) (reservationdomain.MSISDNReservation, error) {
	_ = ctx
	_ = id
	return reservationdomain.MSISDNReservation{}, reservationdomain.ErrReservationExpired
}

func (f *fakeReservationService) Reserve(ctx context.Context, req reservationdomain.ReserveRequest) (reservationdomain.MSISDNReservation, error) {
	_ = ctx
	if req.MSISDN == "" {
		return reservationdomain.MSISDNReservation{}, reservationdomain.ErrInvalidMSISDN
	}
	return reservationdomain.MSISDNReservation{MSISDN: req.MSISDN, Status: reservationdomain.ReservationStatusReserved}, nil
}

type testServer struct {
	engine        *gin.Engine
	apiKeys       *fakeAPIKeyService
	usage         *fakeUsageService
	subscriptions *fakeSubscriptionService
}

func newTestServer(t *testing.T, limiter *ratelimit.UsageIngestLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		engine:        engine,
		apiKeys:       &fakeAPIKeyService{},
		usage:         &fakeUsageService{result: usagedomain.BatchResult{Processed: 2, Updated: 2, Errors: []string{}}},
		subscriptions: &fakeSubscriptionService{},
	}
	NewServer(ServerParams{
		Gin:             engine,
		Cfg:             config.Config{},
		Log:             zap.NewNop(),
		APIKeySvc:       ts.apiKeys,
		AuthzSvc:        authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		UsageSvc:        ts.usage,
		SubscriptionSvc: ts.subscriptions,
		ReservationSvc:  &fakeReservationService{},
		UsageLimiter:    limiter,
	})
	return ts
}

func (ts *testServer) do(method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestIngestUsageAcceptsArray(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/usage", ingestKey,
		`[{"subscriber_reference":"6281100001","data_delta_mb":21000,"voice_delta_min":3},{"subscriber_reference":"6281100002","data_delta_mb":100}]`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result usagedomain.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Processed)
	assert.NotNil(t, result.Errors)

	require.Len(t, ts.usage.deltas, 2)
	assert.Equal(t, usagedomain.Delta{SubscriberReference: "6281100001", DataDeltaMB: 21000, VoiceDeltaMin: 3}, ts.usage.deltas[0])
}

func TestIngestUsageRejectsNonArrayBody(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, body := range []string{
		`{"subscriber_reference":"6281100001","data_delta_mb":1}`,
		`"nope"`,
		``,
		`[{"subscriber_reference":`,
	} {
		w := ts.do(http.MethodPost, "/api/usage", ingestKey, body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
		payload := decodeError(t, w)
		assert.Equal(t, "validation_error", payload.Type)
		require.Len(t, payload.Errors, 1)
		assert.Equal(t, "invalid_batch", payload.Errors[0].Code)
	}
	assert.Empty(t, ts.usage.deltas)
}

func TestIngestUsageRejectsOversizedBody(t *testing.T) {
	ts := newTestServer(t, nil)

	body := "[" + strings.Repeat(" ", maxUsageBody) + "]"
	w := ts.do(http.MethodPost, "/api/usage", ingestKey, body)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "payload_too_large", decodeError(t, w).Type)
	assert.Empty(t, ts.usage.deltas)
}

func TestAdminSetPlanQuota(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPut, "/admin/plans/9/quota", adminKey, `{"name":"Basic 40GB","data_quota_mb":40000}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, ts.subscriptions.planQuotas, 1)
	assert.Equal(t, "9", ts.subscriptions.planQuotas[0].PlanID)
	assert.Equal(t, int64(40000), ts.subscriptions.planQuotas[0].DataQuotaMB)

	w = ts.do(http.MethodPut, "/admin/plans/9/quota", adminKey, `{"name":"Broken","data_quota_mb":-1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_plan_quota", decodeError(t, w).Errors[0].Code)

	w = ts.do(http.MethodPut, "/admin/plans/9/quota", ingestKey, `{"name":"Basic","data_quota_mb":1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/usage", "", `[]`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/api/usage", "tq_live_unknown", `[]`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Type)
}

func TestIngestKeyCannotUseAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/admin/subscriptions/7/suspend", ingestKey, ``)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/api/subscriptions/7/usage", ingestKey, ``)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/admin/api-keys", ingestKey, ``)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, ts.subscriptions.requests)
}

func TestAdminSubscriptionStatusChanges(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/admin/subscriptions/7/suspend", adminKey, ``)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/admin/subscriptions/7/cancel", adminKey, `{"reason":"customer_request"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/admin/subscriptions/7/reactivate", adminKey, ``)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, subscriptiondomain.ErrReferenceAlreadyActive.Error(), decodeError(t, w).Message)

	require.Len(t, ts.subscriptions.requests, 3)
	assert.Equal(t, subscriptiondomain.ChangeStatusRequest{SubscriptionID: "7", Reason: subscriptiondomain.ReasonAdmin}, ts.subscriptions.requests[0])
	assert.Equal(t, "customer_request", ts.subscriptions.requests[1].Reason)
}

func TestSubscriptionUsageAndNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, "/api/subscriptions/7/usage", adminKey, ``)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data usagedomain.CurrentUsage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(80), body.Data.Percentage)

	w = ts.do(http.MethodGet, "/api/subscriptions/404", adminKey, ``)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReservationErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/api/reservations/1/activate", adminKey, ``)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, reservationdomain.ErrReservationExpired.Error(), decodeError(t, w).Message)

	w = ts.do(http.MethodPost, "/api/reservations", adminKey, `{"msisdn":"  ","customer_id":"1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_msisdn", decodeError(t, w).Errors[0].Code)

	w = ts.do(http.MethodPost, "/api/reservations", adminKey, `{"msisdn":"6281200001","customer_id":"1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAPIKeys(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodPost, "/admin/api-keys", adminKey, `{"name":"billing feed","role":"ingest"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "tq_live_new")
	require.Len(t, ts.apiKeys.created, 1)
	assert.Equal(t, "billing feed", ts.apiKeys.created[0].Name)

	w = ts.do(http.MethodPost, "/admin/api-keys/key_new/revoke", adminKey, ``)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodPost, "/admin/api-keys/missing/revoke", adminKey, ``)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsageIngestRateLimitDeniesOverBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewUsageIngestLimiter(ratelimit.Params{
		Config: config.Config{RateLimit: config.RateLimitConfig{
			Enabled:          true,
			UsageIngestRate:  0.01,
			UsageIngestBurst: 2,
		}},
		Client: client,
	})
	require.NoError(t, err)
	ts := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		w := ts.do(http.MethodPost, "/api/usage", ingestKey, `[]`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := ts.do(http.MethodPost, "/api/usage", ingestKey, `[]`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, w).Type)

	// Buckets are per key.
	w = ts.do(http.MethodPost, "/api/usage", adminKey, `[]`)
	assert.Equal(t, http.StatusOK, w.Code)
}
