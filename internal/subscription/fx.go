package subscription

import (
	"github.com/smallbiznis/telcoquota/internal/subscription/repository"
	"github.com/smallbiznis/telcoquota/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewDirectory),
	fx.Provide(service.NewService),
)
