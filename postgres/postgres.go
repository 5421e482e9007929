package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

//go:embed migration/*.sql
var migrationFS embed.FS

// DB is a connection pool over the lookup history database. It is safe for
// concurrent use.
type DB struct {
	pool *pgxpool.Pool

	// Datasource name.
	connStr string

	logger *zap.Logger
}

func NewDB(connStr string, logger *zap.Logger) *DB {
	return &DB{
		connStr: connStr,
		logger:  logger,
	}
}

// Open connects the pool and applies pending migrations.
func (db *DB) Open(ctx context.Context) (err error) {
	if db.connStr == "" {
		return fmt.Errorf("db connection string required")
	}

	if db.pool, err = pgxpool.Connect(ctx, db.connStr); err != nil {
		return err
	}

	if err := db.migrate(ctx); err != nil {
		db.pool.Close()
		db.pool = nil
		return fmt.Errorf("error whilst migrating: %w", err)
	}

	stat := db.pool.Stat()
	db.logger.Debug("opened postgres pool", zap.Int32("maxConns", stat.MaxConns()))

	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("cannot create migrations table: %w", err)
	}

	names, err := fs.Glob(migrationFS, "migration/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		if err := db.migrateFile(ctx, name); err != nil {
			return fmt.Errorf("migration error: name=%q err=%w", name, err)
		}
	}
	return nil
}

func (db *DB) migrateFile(ctx context.Context, name string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM migrations WHERE name = $1`, name).Scan(&n); err != nil {
		return err
	} else if n != 0 {
		db.logger.Debug("migration already applied", zap.String("name", name))
		return nil
	}

	buf, err := fs.ReadFile(migrationFS, name)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, string(buf)); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO migrations (name) VALUES ($1)`, name); err != nil {
		return err
	}

	db.logger.Info("applied migration", zap.String("name", name))

	return tx.Commit(ctx)
}

// Close waits for acquired connections to be released.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// BeginTx starts a transaction on a pooled connection. The connection goes
// back to the pool on Commit or Rollback.
func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	if db.pool == nil {
		return nil, fmt.Errorf("db is not open")
	}
	return db.pool.Begin(ctx)
}
