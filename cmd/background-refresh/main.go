package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
	"github.com/steakoverflow/weather/config"
	"github.com/steakoverflow/weather/history"
	"github.com/steakoverflow/weather/logging"
	"github.com/steakoverflow/weather/openweather"
	"github.com/steakoverflow/weather/rabbitmq"
)

type Refresher interface {
	Refresh(ctx context.Context, lookup *weather.Lookup) (*weather.WeatherModel, error)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// setup signal handlers
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt)
	go func() {
		<-signalCh
		cancel()
	}()

	minutes := flag.Int("minutes", 1440, "how many minutes into the past should we refresh lookups from")
	retention := flag.Duration("retention", 7*24*time.Hour, "how long lookups are kept before being removed")
	limit := flag.Int("limit", 500, "maximum number of lookups to refresh")
	workers := flag.Int("workers", 3, "how many workers should be created")
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.AppEnv, false)
	if err != nil {
		fmt.Printf("error creating the logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.HistoryBackend == config.BackendNone {
		logger.Fatal("HISTORY_BACKEND must be set to refresh lookups")
	}

	storage, closeStorage, err := history.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("error opening lookup history", zap.Error(err))
	}
	defer closeStorage()

	opts := []weather.ServiceOption{weather.WithStorage(storage)}
	if cfg.AMQPEnabled() {
		producer := rabbitmq.NewProducer(cfg.AMQPConnStr())
		if err := producer.Open(); err != nil {
			logger.Fatal("error opening rabbitmq connection", zap.Error(err))
		}
		defer producer.Close()
		opts = append(opts, weather.WithPublisher(producer))
	}

	client := openweather.NewClient(logger, cfg.OpenWeatherAPIKey, openweather.WithBaseURL(cfg.OpenWeatherURL))
	service := weather.NewService(logger, client, opts...)

	logger.Info("removing expired lookups", zap.Duration("retention", *retention))
	if err := storage.RemoveExpired(ctx, time.Now().Add(-*retention)); err != nil {
		logger.Error("error removing expired lookups", zap.Error(err))
	}

	logger.Info("fetching recent lookups", zap.Int("minutes", *minutes))

	recent, err := storage.Recent(ctx, *limit)
	if err != nil {
		logger.Error("error fetching recent lookups", zap.Error(err))
		return
	}

	lookups := since(recent, time.Now().Add(-time.Duration(*minutes)*time.Minute))
	logger.Info("fetched recent lookups", zap.Int("lookupsCount", len(lookups)))

	completed := refreshAll(ctx, service, lookups, *workers, logger)
	logger.Info("all lookups finished processing", zap.Int("completed", completed))
}

// since keeps the lookups made at or after t, de-duplicated by query so the
// provider is asked once per distinct location.
func since(lookups []*weather.Lookup, t time.Time) []*weather.Lookup {
	seen := make(map[string]bool)
	out := make([]*weather.Lookup, 0, len(lookups))

	for _, l := range lookups {
		if l.At.Before(t) || seen[l.Query] {
			continue
		}
		seen[l.Query] = true
		out = append(out, l)
	}

	return out
}

// refreshAll fans lookups out to n workers and returns how many were processed.
func refreshAll(ctx context.Context, refresher Refresher, lookups []*weather.Lookup, n int, logger *zap.Logger) int {
	if len(lookups) == 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}

	pending, complete := make(chan *weather.Lookup), make(chan string)

	// kick off the workers
	for i := 0; i < n; i++ {
		w := &Worker{
			id:        uuid.NewString(),
			logger:    logger,
			refresher: refresher,
		}

		go w.Run(ctx, pending, complete)
	}

	logger.Info("populating workers with lookups")
	go func() {
		defer close(pending)
		for _, lookup := range lookups {
			select {
			case pending <- lookup:
			case <-ctx.Done():
				return
			}
		}
	}()

	completed := 0
	for completed < len(lookups) {
		select {
		case <-complete:
			completed++
			logger.Debug("lookup finished processing", zap.Int("completed", completed))
		case <-ctx.Done():
			return completed
		}
	}

	return completed
}

type Worker struct {
	id        string
	logger    *zap.Logger
	refresher Refresher
}

func (w *Worker) Run(ctx context.Context, in <-chan *weather.Lookup, out chan<- string) {
	w.logger.Debug("starting worker", zap.String("workerId", w.id))

	for lookup := range in {
		w.logger.Info("refreshing lookup", zap.String("workerId", w.id), zap.String("lookupId", lookup.ID))

		if _, err := w.refresher.Refresh(ctx, lookup); err != nil {
			w.logger.Warn(
				"lookup refreshed with an error",
				zap.String("workerId", w.id),
				zap.String("lookupId", lookup.ID),
				zap.Error(err),
			)
		}

		select {
		case out <- lookup.ID:
		case <-ctx.Done():
			return
		}
	}
}
