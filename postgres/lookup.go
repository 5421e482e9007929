package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"

	"github.com/steakoverflow/weather"
)

type LookupService struct {
	DB        *DB
	Validator *validator.Validate
}

func NewLookupService(db *DB) *LookupService {
	return &LookupService{DB: db, Validator: validator.New()}
}

func (s *LookupService) Get(ctx context.Context, id string) (*weather.Lookup, error) {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	lookup, err := scanLookup(tx.QueryRow(ctx, `
		SELECT id, query, at, items, error, model
		FROM lookups
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, weather.ErrNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "error fetching lookup")
	}

	return lookup, nil
}

func (s *LookupService) Save(ctx context.Context, lookup *weather.Lookup) error {
	if err := s.Validator.Struct(lookup); err != nil {
		return errors.Wrap(err, "invalid lookup")
	}

	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var model []byte
	if lookup.Model != nil {
		if model, err = json.Marshal(lookup.Model); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO lookups (id, query, at, items, error, model)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET query = EXCLUDED.query, at = EXCLUDED.at, items = EXCLUDED.items,
			error = EXCLUDED.error, model = EXCLUDED.model
	`,
		lookup.ID,
		lookup.Query,
		lookup.At.UTC(),
		lookup.Items,
		lookup.Error,
		model,
	)
	if err != nil {
		return errors.Wrap(err, "error storing lookup")
	}

	return tx.Commit(ctx)
}

func (s *LookupService) Recent(ctx context.Context, limit int) ([]*weather.Lookup, error) {
	if limit <= 0 {
		return []*weather.Lookup{}, nil
	}

	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, query, at, items, error, model
		FROM lookups
		ORDER BY at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "error fetching recent lookups")
	}
	defer rows.Close()

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

func (s *LookupService) RemoveExpired(ctx context.Context, before time.Time) error {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM lookups WHERE at < $1`, before.UTC()); err != nil {
		return errors.Wrap(err, "error removing expired lookups")
	}

	return tx.Commit(ctx)
}

func scanLookup(row pgx.Row) (*weather.Lookup, error) {
	lookup := &weather.Lookup{}
	var model []byte

	if err := row.Scan(
		&lookup.ID,
		&lookup.Query,
		&lookup.At,
		&lookup.Items,
		&lookup.Error,
		&model,
	); err != nil {
		return nil, err
	}

	if len(model) > 0 {
		if err := json.Unmarshal(model, &lookup.Model); err != nil {
			return nil, errors.Wrap(err, "error decoding lookup model")
		}
	}
	lookup.At = lookup.At.UTC()

	return lookup, nil
}
