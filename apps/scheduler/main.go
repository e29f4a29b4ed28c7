package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	"github.com/smallbiznis/telcoquota/internal/cache"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/config"
	"github.com/smallbiznis/telcoquota/internal/consequence"
	"github.com/smallbiznis/telcoquota/internal/events"
	"github.com/smallbiznis/telcoquota/internal/lock"
	"github.com/smallbiznis/telcoquota/internal/observability"
	"github.com/smallbiznis/telcoquota/internal/reservation"
	"github.com/smallbiznis/telcoquota/internal/scheduler"
	"github.com/smallbiznis/telcoquota/internal/subscription"
	"github.com/smallbiznis/telcoquota/internal/usage"
	"github.com/smallbiznis/telcoquota/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		cache.Module,

		// Domain services required by the sweeps
		events.Module,
		authorization.Module,
		subscription.Module,
		consequence.Module,
		usage.Module,
		reservation.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
