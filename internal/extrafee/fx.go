package extrafee

import (
	"github.com/smallbiznis/bluemoon/internal/extrafee/repository"
	"github.com/smallbiznis/bluemoon/internal/extrafee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("extrafee.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
