package price

import (
	"github.com/smallbiznis/bluemoon/internal/price/repository"
	"github.com/smallbiznis/bluemoon/internal/price/service"
	"go.uber.org/fx"
)

var Module = fx.Module("price.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
