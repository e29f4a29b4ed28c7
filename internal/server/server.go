package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/smallbiznis/telcoquota/internal/apikey/domain"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	"github.com/smallbiznis/telcoquota/internal/config"
	"github.com/smallbiznis/telcoquota/internal/observability"
	obsmiddleware "github.com/smallbiznis/telcoquota/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/telcoquota/internal/observability/metrics"
	obstracing "github.com/smallbiznis/telcoquota/internal/observability/tracing"
	"github.com/smallbiznis/telcoquota/internal/ratelimit"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunHTTP serves the engine on cfg.HTTPAddr for the lifetime of the app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	apiKeySvc       apikeydomain.Service
	authzSvc        authorization.Service
	usageSvc        usagedomain.Service
	subscriptionSvc subscriptiondomain.Service
	reservationSvc  reservationdomain.Service
	obsMetrics      *obsmetrics.Metrics
	usageLimiter    *ratelimit.UsageIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	APIKeySvc       apikeydomain.Service
	AuthzSvc        authorization.Service
	UsageSvc        usagedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	ReservationSvc  reservationdomain.Service
	ObsMetrics      *obsmetrics.Metrics           `optional:"true"`
	UsageLimiter    *ratelimit.UsageIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		apiKeySvc:       p.APIKeySvc,
		authzSvc:        p.AuthzSvc,
		usageSvc:        p.UsageSvc,
		subscriptionSvc: p.SubscriptionSvc,
		reservationSvc:  p.ReservationSvc,
		obsMetrics:      p.ObsMetrics,
		usageLimiter:    p.UsageLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.APIKeyRequired())

	// -------- Usage --------
	api.POST("/usage",
		s.authorize(authorization.ObjectUsage, authorization.ActionUsageIngest),
		s.UsageIngestRateLimit(),
		s.IngestUsage,
	)

	// -------- Subscriptions --------
	api.GET("/subscriptions/:id", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionView), s.GetSubscription)
	api.GET("/subscriptions/:id/usage", s.authorize(authorization.ObjectUsage, authorization.ActionUsageView), s.GetSubscriptionUsage)
	api.GET("/subscriptions/:id/history", s.authorize(authorization.ObjectUsage, authorization.ActionUsageView), s.ListUsageHistory)

	// -------- Reservations --------
	api.POST("/reservations", s.authorize(authorization.ObjectReservation, authorization.ActionReservationReserve), s.ReserveMSISDN)
	api.GET("/reservations/:id", s.authorize(authorization.ObjectReservation, authorization.ActionReservationView), s.GetReservation)
	api.POST("/reservations/:id/activate", s.authorize(authorization.ObjectReservation, authorization.ActionReservationActivate), s.ActivateReservation)
	api.POST("/reservations/:id/release", s.authorize(authorization.ObjectReservation, authorization.ActionReservationRelease), s.ReleaseReservation)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.APIKeyRequired())

	admin.POST("/subscriptions/:id/suspend", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionSuspend), s.SuspendSubscription)
	admin.POST("/subscriptions/:id/reactivate", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionReactivate), s.ReactivateSubscription)
	admin.POST("/subscriptions/:id/cancel", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionCancel), s.CancelSubscription)

	admin.PUT("/plans/:id/quota", s.requireRole(authorization.RoleAdmin), s.SetPlanQuota)

	admin.POST("/msisdns", s.authorize(authorization.ObjectReservation, authorization.ActionReservationCreate), s.CreateMSISDN)

	admin.GET("/api-keys", s.requireRole(authorization.RoleAdmin), s.ListAPIKeys)
	admin.POST("/api-keys", s.requireRole(authorization.RoleAdmin), s.CreateAPIKey)
	admin.POST("/api-keys/:key_id/revoke", s.requireRole(authorization.RoleAdmin), s.RevokeAPIKey)
}
