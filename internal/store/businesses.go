package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EnsureDefaultBusiness returns the ID of the default business,
// creating it on first use.
func (s *Store) EnsureDefaultBusiness(ctx context.Context) (string, error) {
	return s.EnsureBusiness(ctx, DefaultBusinessName)
}

// EnsureBusiness returns the ID of the named business, creating it
// when missing.
func (s *Store) EnsureBusiness(ctx context.Context, name string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM businesses WHERE name = $1`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to look up business %q; %w", name, err)
	}

	id = uuid.NewString()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO businesses (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`,
		id, name,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create business %q; %w", name, err)
	}

	err = s.pool.QueryRow(ctx, `SELECT id FROM businesses WHERE name = $1`, name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to reload business %q; %w", name, err)
	}
	return id, nil
}
