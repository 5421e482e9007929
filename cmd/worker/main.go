package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
	"github.com/steakoverflow/weather/config"
	"github.com/steakoverflow/weather/history"
	"github.com/steakoverflow/weather/logging"
	"github.com/steakoverflow/weather/openweather"
	"github.com/steakoverflow/weather/rabbitmq"
)

const queueName = "weather_lookups"

type Lookuper interface {
	Lookup(ctx context.Context, query string) (*weather.WeatherModel, error)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	// setup signal handlers
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt)
	go func() {
		<-signalCh
		cancel()
	}()

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

	if !cfg.AMQPEnabled() {
		logger.Fatal("AMQP_HOST is required for the worker")
	}

	amqpConn, err := amqp.Dial(cfg.AMQPConnStr())
	if err != nil {
		logger.Fatal("error opening rabbitmq connection", zap.Error(err))
	}
	defer amqpConn.Close()
	logger.Info("opened rabbitmq connection")

	producer := rabbitmq.NewProducer(cfg.AMQPConnStr())
	if err := producer.Open(); err != nil {
		logger.Fatal("error opening rabbitmq producer", zap.Error(err))
	}
	defer producer.Close()

	storage, closeStorage, err := history.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("error opening lookup history", zap.Error(err))
	}
	defer closeStorage()

	client := openweather.NewClient(logger, cfg.OpenWeatherAPIKey, openweather.WithBaseURL(cfg.OpenWeatherURL))
	service := weather.NewService(logger, client, weather.WithStorage(storage), weather.WithPublisher(producer))

	consumer := rabbitmq.NewConsumer(amqpConn, logger)

	go func() {
		logger.Info("starting lookup consumer")
		err := consumer.Start(queueName, rabbitmq.LookupRequestedKey, handleLookupRequest(ctx, service, logger))
		if err != nil {
			logger.Error("error whilst running consumer", zap.Error(err))
		}
		cancel()
	}()

	// wait for termination
	<-ctx.Done()
}

func handleLookupRequest(ctx context.Context, service Lookuper, logger *zap.Logger) rabbitmq.Handler {
	return func(body []byte) error {
		var req weather.LookupRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errors.Wrap(err, "error unmarshaling lookup request")
		}

		logger.Info("starting to process lookup", zap.String("query", req.Query))

		model, err := service.Lookup(ctx, req.Query)
		if err != nil {
			// the outcome has already been recorded and published
			logger.Info("lookup finished with an error", zap.String("query", req.Query), zap.Error(err))
			return nil
		}

		logger.Info("lookup finished", zap.String("query", req.Query), zap.Int("items", len(model.List)))
		return nil
	}
}
