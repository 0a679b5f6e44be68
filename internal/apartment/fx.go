package apartment

import (
	"github.com/smallbiznis/bluemoon/internal/apartment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("apartment.repository",
	fx.Provide(repository.Provide),
)
