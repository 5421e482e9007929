package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
	"github.com/steakoverflow/weather/config"
	"github.com/steakoverflow/weather/history"
	"github.com/steakoverflow/weather/logging"
	"github.com/steakoverflow/weather/openweather"
	"github.com/steakoverflow/weather/rabbitmq"
)

func main() {
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

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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
		logger.Info("opened rabbitmq connection")

		opts = append(opts, weather.WithPublisher(producer))
	}

	client := openweather.NewClient(logger, cfg.OpenWeatherAPIKey, openweather.WithBaseURL(cfg.OpenWeatherURL))
	server := NewServer(weather.NewService(logger, client, opts...), logger)

	addr := ":" + getPort()
	srv := &http.Server{Addr: addr, Handler: server.Routes()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

// getPort follows gin's PORT convention.
func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}
