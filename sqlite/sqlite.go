package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
)

//go:embed migration/001_lookups.sql
var schemaSQL string

type Storage struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
// A path of ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Storage, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "db open")
	}

	// a single connection keeps in-memory databases alive and avoids writer contention
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db ping")
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db schema")
	}

	logger.Debug("opened sqlite history", zap.String("path", path))

	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) Get(ctx context.Context, id string) (*weather.Lookup, error) {
	lookup, err := scanLookup(s.db.QueryRowContext(ctx, `
		SELECT id, query, at, items, error, model FROM lookups WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, weather.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error fetching lookup")
	}

	return lookup, nil
}

func (s *Storage) Save(ctx context.Context, lookup *weather.Lookup) error {
	var model interface{}
	if lookup.Model != nil {
		buf, err := json.Marshal(lookup.Model)
		if err != nil {
			return err
		}
		model = string(buf)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookups (id, query, at, items, error, model)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET query = excluded.query, at = excluded.at, items = excluded.items,
			error = excluded.error, model = excluded.model
	`, lookup.ID, lookup.Query, formatTime(lookup.At), lookup.Items, lookup.Error, model)

	return errors.Wrap(err, "error storing lookup")
}

func (s *Storage) Recent(ctx context.Context, limit int) ([]*weather.Lookup, error) {
	if limit <= 0 {
		return []*weather.Lookup{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, at, items, error, model FROM lookups
		ORDER BY at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching recent lookups")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close recent lookups rows", zap.Error(err))
		}
	}()

	results := make([]*weather.Lookup, 0)
	for rows.Next() {
		lookup, err := scanLookup(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, lookup)
	}

	return results, rows.Err()
}

func (s *Storage) RemoveExpired(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM lookups WHERE at < ?`, formatTime(before))
	return errors.Wrap(err, "error removing expired lookups")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLookup(row scanner) (*weather.Lookup, error) {
	lookup := &weather.Lookup{}
	var at string
	var model sql.NullString

	if err := row.Scan(&lookup.ID, &lookup.Query, &at, &lookup.Items, &lookup.Error, &model); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, at)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", at, err)
	}
	lookup.At = t

	if model.Valid && model.String != "" {
		if err := json.Unmarshal([]byte(model.String), &lookup.Model); err != nil {
			return nil, errors.Wrap(err, "error decoding lookup model")
		}
	}

	return lookup, nil
}

// Fixed-width so lexical order in the at column matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on", nil
	}

	dir := filepath.Dir(path)
	if dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
