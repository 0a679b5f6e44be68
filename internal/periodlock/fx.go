package periodlock

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/bluemoon/internal/clock"
	"github.com/smallbiznis/bluemoon/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("period.lock",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Clock     clock.Clock
	Log       *zap.Logger
}

// New picks a redis-backed locker when REDIS_ADDR is set, otherwise an in-process one.
func New(p Params) Locker {
	log := p.Log.Named("period.lock")
	if !p.Config.Redis.Enabled() {
		log.Info("using in-process period lock")
		return NewLocalLocker(p.Clock)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(p.Config.Redis.Addr),
		Password: strings.TrimSpace(p.Config.Redis.Password),
		DB:       p.Config.Redis.DB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("using redis period lock", zap.String("addr", p.Config.Redis.Addr))
	return NewRedisLocker(client)
}
