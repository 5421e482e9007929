package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
	"github.com/steakoverflow/weather/config"
	"github.com/steakoverflow/weather/format"
	"github.com/steakoverflow/weather/history"
	"github.com/steakoverflow/weather/logging"
	"github.com/steakoverflow/weather/openweather"
	"github.com/steakoverflow/weather/rabbitmq"
)

func usage(fs *flag.FlagSet) func() {
	return func() {
		w := fs.Output()
		fmt.Fprintln(w, "Usage: weather [-rounding=half-even|down] [-tz=UTC] [-debug] <query>")
		fmt.Fprintln(w, "Examples: weather London")
		fmt.Fprintln(w, "          weather -rounding=down \"Boston,US\"")
		fs.PrintDefaults()
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so that deferred cleanup happens before
// main exits.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("weather", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rounding := fs.String("rounding", "half-even", "rounding policy for displayed values (half-even or down)")
	tz := fs.String("tz", "UTC", "time zone used to print dates")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = usage(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.AppEnv, *debug)
	if err != nil {
		fmt.Fprintf(stderr, "error creating the logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	policy, err := format.ParseRounding(*rounding)
	if err != nil {
		logger.Error("invalid flag", zap.Error(err))
		return 2
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		logger.Error("invalid time zone", zap.String("tz", *tz), zap.Error(err))
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	storage, closeStorage, err := history.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("error opening lookup history", zap.Error(err))
		return 1
	}
	defer closeStorage()

	opts := []weather.ServiceOption{weather.WithStorage(storage)}
	if cfg.AMQPEnabled() {
		producer := rabbitmq.NewProducer(cfg.AMQPConnStr())
		if err := producer.Open(); err != nil {
			logger.Warn("cannot open rabbitmq connection, lookups will not be published", zap.Error(err))
		} else {
			defer producer.Close()
			opts = append(opts, weather.WithPublisher(producer))
		}
	}

	client := openweather.NewClient(logger, cfg.OpenWeatherAPIKey, openweather.WithBaseURL(cfg.OpenWeatherURL))
	service := weather.NewService(logger, client, opts...)

	query := strings.Join(fs.Args(), " ")

	model, err := service.Lookup(ctx, query)
	if err != nil {
		renderError(stdout, weather.AsErrorData(err), stdout == io.Writer(os.Stdout) && useColor())
		return 1
	}

	renderTable(stdout, model, format.Options{Rounding: policy, Location: loc})
	return 0
}

func useColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
