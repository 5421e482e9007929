package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
)

func openMemory(t *testing.T) *Storage {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStorageRoundTrip(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	now := time.Date(2021, 10, 19, 12, 0, 0, 0, time.UTC)
	ok := &weather.Lookup{
		ID:    "a",
		Query: "London",
		At:    now,
		Items: 1,
		Model: &weather.WeatherModel{List: []weather.WeatherItem{{
			Dt:        1634601600,
			Humidity:  decimal.RequireFromString("81.5"),
			WindSpeed: decimal.RequireFromString("3.6"),
		}}},
	}
	failed := &weather.Lookup{ID: "b", Query: "nowhere", At: now.Add(-2 * time.Hour), Error: "city not found"}

	require.NoError(t, s.Save(ctx, ok))
	require.NoError(t, s.Save(ctx, failed))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "London", got.Query)
	assert.True(t, now.Equal(got.At))
	require.NotNil(t, got.Model)
	require.Len(t, got.Model.List, 1)
	assert.True(t, got.Model.List[0].Humidity.Equal(decimal.RequireFromString("81.5")))

	got, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, got.Failed())
	assert.Nil(t, got.Model)

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	recent, err = s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestStorageSaveUpserts(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	l := &weather.Lookup{ID: "a", Query: "London", At: time.Now(), Error: "timeout"}
	require.NoError(t, s.Save(ctx, l))

	l.Error = ""
	l.Items = 4
	require.NoError(t, s.Save(ctx, l))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Items)
	assert.False(t, got.Failed())

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestStorageRemoveExpired(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.Save(ctx, &weather.Lookup{ID: "old", Query: "x", At: now.Add(-48 * time.Hour)}))
	require.NoError(t, s.Save(ctx, &weather.Lookup{ID: "new", Query: "y", At: now}))

	require.NoError(t, s.RemoveExpired(ctx, now.Add(-24*time.Hour)))

	_, err := s.Get(ctx, "old")
	assert.ErrorIs(t, err, weather.ErrNotFound)

	_, err = s.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := Open(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.FileExists(t, path)
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: ":memory:", want: "file::memory:?_foreign_keys=on"},
		{in: "weather.db", want: "file:weather.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
		{in: "file:weather.db?cache=shared", want: "file:weather.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := buildDSN(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
