package history

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
	"github.com/steakoverflow/weather/config"
	"github.com/steakoverflow/weather/postgres"
	weatherRedis "github.com/steakoverflow/weather/redis"
	"github.com/steakoverflow/weather/sqlite"
)

// Open connects the lookup history backend selected by cfg. The returned
// close func is always safe to call.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (weather.LookupStorage, func(), error) {
	noop := func() {}

	switch cfg.HistoryBackend {
	case config.BackendRedis:
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, noop, fmt.Errorf("cannot reach redis: %w", err)
		}
		logger.Info("opened redis connection", zap.String("addr", cfg.RedisAddr()))

		return weatherRedis.NewStorage(redisClient), func() { redisClient.Close() }, nil

	case config.BackendPostgres:
		db := postgres.NewDB(cfg.PostgresConnStr(), logger)
		if err := db.Open(ctx); err != nil {
			return nil, noop, fmt.Errorf("cannot open db: %w", err)
		}
		logger.Info("opened postgres connection", zap.String("host", cfg.Postgres.Host))

		return postgres.NewLookupService(db), db.Close, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("cannot open sqlite: %w", err)
		}
		logger.Info("opened sqlite history", zap.String("path", cfg.SQLitePath))

		return s, func() { s.Close() }, nil

	default:
		return weather.NopStorage{}, noop, nil
	}
}
