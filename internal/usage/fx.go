package usage

import (
	"github.com/smallbiznis/telcoquota/internal/usage/quota"
	"github.com/smallbiznis/telcoquota/internal/usage/repository"
	"github.com/smallbiznis/telcoquota/internal/usage/service"
	"github.com/smallbiznis/telcoquota/internal/usage/threshold"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.NewLedger),
	fx.Provide(quota.NewResolver),
	fx.Provide(threshold.NewEvaluator),
	fx.Provide(service.NewService),
)
