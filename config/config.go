package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

const (
	BackendNone     = "none"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	AppEnv string

	OpenWeatherAPIKey string
	OpenWeatherURL    string

	HistoryBackend string

	RedisHost string
	RedisPort string

	Postgres struct {
		User     string
		Password string
		Host     string
		Port     string
		DB       string
	}

	SQLitePath string

	AMQP struct {
		User     string
		Password string
		Host     string
		Port     string
	}
}

func LoadFromEnv() (Config, error) {
	var c Config

	c.AppEnv = getEnv("APP_ENV", "dev")
	switch c.AppEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", c.AppEnv)
	}

	c.OpenWeatherAPIKey = getEnv("OPEN_WEATHER_API_KEY", "")
	c.OpenWeatherURL = getEnv("OPEN_WEATHER_URL", "")
	if c.OpenWeatherURL != "" {
		u, err := url.Parse(c.OpenWeatherURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Config{}, fmt.Errorf("invalid OPEN_WEATHER_URL %q", c.OpenWeatherURL)
		}
	}

	c.HistoryBackend = strings.ToLower(getEnv("HISTORY_BACKEND", BackendNone))
	switch c.HistoryBackend {
	case BackendNone, BackendRedis, BackendPostgres, BackendSQLite:
	default:
		return Config{}, fmt.Errorf("invalid HISTORY_BACKEND %q (allowed: none, redis, postgres, sqlite)", c.HistoryBackend)
	}

	c.RedisHost = getEnv("REDIS_HOST", "localhost")
	c.RedisPort = getEnv("REDIS_PORT", "6379")

	c.Postgres.User = getEnv("POSTGRES_USER", "")
	c.Postgres.Password = getEnv("POSTGRES_PASSWORD", "")
	c.Postgres.Host = getEnv("POSTGRES_HOST", "localhost")
	c.Postgres.Port = getEnv("POSTGRES_PORT", "5432")
	c.Postgres.DB = getEnv("POSTGRES_DB", "weather")

	c.SQLitePath = getEnv("SQLITE_PATH", "weather.db")

	c.AMQP.User = getEnv("AMQP_USER", "")
	c.AMQP.Password = getEnv("AMQP_PASSWORD", "")
	c.AMQP.Host = getEnv("AMQP_HOST", "")
	c.AMQP.Port = getEnv("AMQP_PORT", "5672")

	return c, nil
}

func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, c.RedisPort)
}

func (c Config) PostgresConnStr() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:   net.JoinHostPort(c.Postgres.Host, c.Postgres.Port),
		Path:   "/" + c.Postgres.DB,
	}
	return u.String()
}

// AMQPEnabled reports whether a broker host has been configured.
func (c Config) AMQPEnabled() bool {
	return c.AMQP.Host != ""
}

func (c Config) AMQPConnStr() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.AMQP.User, c.AMQP.Password),
		Host:   net.JoinHostPort(c.AMQP.Host, c.AMQP.Port),
	}
	return u.String()
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
