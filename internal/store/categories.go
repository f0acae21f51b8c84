package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultCategoryGroup is the group auto-created categories land in.
const DefaultCategoryGroup = "content"

// autoDescription marks categories created by the pipeline rather
// than the master document.
const autoDescription = "Auto-generated"

// FindCategoryByName returns a category with a case-insensitive name
// match, preferring the oldest.
func (s *Store) FindCategoryByName(ctx context.Context, name string) (*Category, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, cat_group, description, created_at, updated_at
		FROM taxonomy_categories
		WHERE lower(name) = lower($1)
		ORDER BY created_at ASC
		LIMIT 1`,
		name,
	)
	return scanCategory(row)
}

// EnsureCategory returns the ID of a category matching name
// (case-insensitive), creating it in the default group when missing.
func (s *Store) EnsureCategory(ctx context.Context, name string) (string, error) {
	cat, err := s.FindCategoryByName(ctx, name)
	if err == nil {
		return cat.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO taxonomy_categories (id, name, cat_group, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cat_group, name) DO NOTHING`,
		id, name, DefaultCategoryGroup, autoDescription,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create category %q; %w", name, err)
	}

	// A concurrent creator may have won the conflict.
	cat, err = s.FindCategoryByName(ctx, name)
	if err != nil {
		return "", err
	}
	return cat.ID, nil
}

// SyncCategory imports one (group, name, description) triple from the
// master document. Returns "inserted", "updated", or "skipped".
func (s *Store) SyncCategory(ctx context.Context, group, name, description string) (string, error) {
	var existingDesc string
	err := s.pool.QueryRow(ctx, `
		SELECT description FROM taxonomy_categories
		WHERE cat_group = $1 AND name = $2`,
		group, name,
	).Scan(&existingDesc)

	if errors.Is(err, pgx.ErrNoRows) {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO taxonomy_categories (id, name, cat_group, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (cat_group, name) DO NOTHING`,
			uuid.NewString(), name, group, description,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert category %q; %w", name, err)
		}
		return "inserted", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check category %q; %w", name, err)
	}

	if existingDesc == description {
		return "skipped", nil
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE taxonomy_categories SET description = $3, updated_at = now()
		WHERE cat_group = $1 AND name = $2`,
		group, name, description,
	)
	if err != nil {
		return "", fmt.Errorf("failed to update category %q; %w", name, err)
	}
	return "updated", nil
}

// ListCategories returns every category ordered by group then name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, cat_group, description, created_at, updated_at
		FROM taxonomy_categories
		ORDER BY cat_group, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories; %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Group, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category; %w", err)
	}
	return &c, nil
}
