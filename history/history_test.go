package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
	"github.com/steakoverflow/weather/config"
	"github.com/steakoverflow/weather/sqlite"
)

func TestOpenNone(t *testing.T) {
	storage, closeFn, err := Open(context.Background(), config.Config{HistoryBackend: config.BackendNone}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, weather.NopStorage{}, storage)
}

func TestOpenSQLite(t *testing.T) {
	cfg := config.Config{
		HistoryBackend: config.BackendSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "history.db"),
	}

	storage, closeFn, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &sqlite.Storage{}, storage)

	ctx := context.Background()
	require.NoError(t, storage.Save(ctx, &weather.Lookup{ID: "a", Query: "Oslo", At: time.Now()}))

	got, err := storage.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Oslo", got.Query)
}

func TestOpenRedisUnreachable(t *testing.T) {
	cfg := config.Config{HistoryBackend: config.BackendRedis, RedisHost: "127.0.0.1", RedisPort: "1"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, closeFn, err := Open(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
	closeFn()
}
