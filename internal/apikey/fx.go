package apikey

import (
	"context"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/telcoquota/internal/apikey/domain"
	"github.com/smallbiznis/telcoquota/internal/apikey/repository"
	"github.com/smallbiznis/telcoquota/internal/apikey/service"
	"github.com/smallbiznis/telcoquota/internal/clock"
	"github.com/smallbiznis/telcoquota/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(seed),
)

func seed(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, repo apikeydomain.Repository, genID *snowflake.Node, clk clock.Clock) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return service.SeedFromConfig(ctx, cfg, db, repo, genID, clk)
		},
	})
}
