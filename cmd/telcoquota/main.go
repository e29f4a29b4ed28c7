package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/apikey"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	"github.com/smallbiznis/telcoquota/internal/cache"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/config"
	"github.com/smallbiznis/telcoquota/internal/consequence"
	"github.com/smallbiznis/telcoquota/internal/events"
	"github.com/smallbiznis/telcoquota/internal/lock"
	"github.com/smallbiznis/telcoquota/internal/migration"
	"github.com/smallbiznis/telcoquota/internal/observability"
	"github.com/smallbiznis/telcoquota/internal/ratelimit"
	"github.com/smallbiznis/telcoquota/internal/reservation"
	"github.com/smallbiznis/telcoquota/internal/scheduler"
	"github.com/smallbiznis/telcoquota/internal/server"
	"github.com/smallbiznis/telcoquota/internal/subscription"
	"github.com/smallbiznis/telcoquota/internal/usage"
	"github.com/smallbiznis/telcoquota/pkg/db"
	"go.uber.org/fx"
)

// Single-process deployment: HTTP API and scheduler share one app.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		cache.Module,
		events.Module,

		// Functional Domains
		authorization.Module,
		apikey.Module,
		subscription.Module,
		consequence.Module,
		usage.Module,
		reservation.Module,
		ratelimit.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
