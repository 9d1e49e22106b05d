package fx

import (
	"retro-tracker/internal/api"
	"retro-tracker/internal/config"
	"retro-tracker/internal/constants"
	"retro-tracker/internal/database"
	"retro-tracker/internal/emoji"
	"retro-tracker/internal/logger"
	"retro-tracker/internal/ratelimit"
	"retro-tracker/internal/repository"
	"retro-tracker/internal/server"
	"retro-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideLimiter(log zerolog.Logger) *ratelimit.Limiter {
	return ratelimit.NewLimiter(constants.RequestInterval, constants.MaxRetries, constants.RetryDelay, log)
}

func ProvideEmojiService(repo *repository.EmojiRepository, log zerolog.Logger) *emoji.Service {
	return emoji.NewService(repo, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewChallengeRepository),
	fx.Provide(repository.NewEmojiRepository),
	// provider access
	fx.Provide(ProvideLimiter),
	fx.Provide(api.NewRAClient),
	// svc
	fx.Provide(ProvideEmojiService),
	fx.Provide(service.NewStandingsService),
	// server
	fx.Provide(server.NewAdminServer),
)
