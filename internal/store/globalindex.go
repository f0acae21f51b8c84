package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UpsertGlobalEntry inserts a content-index entry for a semantic hash
// or, when the hash already exists, increments its occurrence count.
// The first insert leaves occurrence_count at 1; every later caller
// referencing the same hash adds one. Returns the entry ID and whether
// the hash was already present.
func (s *Store) UpsertGlobalEntry(ctx context.Context, e *GlobalEntry) (string, bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO global_content_index
			(id, semantic_hash, cleaned_text, raw_text, tokens, business_id, first_seen_file_id, source_type, occurrence_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		ON CONFLICT (semantic_hash) DO NOTHING
		RETURNING id`,
		e.ID, e.SemanticHash, e.CleanedText, e.RawText, e.Tokens, e.BusinessID, e.FirstSeenFileID, e.SourceType,
	).Scan(&id)

	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("failed to upsert global entry; %w", err)
	}

	// Conflict path: the row is visible, so the increment is safe and
	// never over-counts.
	err = s.pool.QueryRow(ctx, `
		UPDATE global_content_index
		SET occurrence_count = occurrence_count + 1, updated_at = now()
		WHERE semantic_hash = $1
		RETURNING id`,
		e.SemanticHash,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("global entry vanished for hash %s", e.SemanticHash)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to increment occurrence count; %w", err)
	}

	return id, true, nil
}

// GetGlobalEntry loads one entry by semantic hash.
func (s *Store) GetGlobalEntry(ctx context.Context, semanticHash string) (*GlobalEntry, error) {
	var e GlobalEntry
	err := s.pool.QueryRow(ctx, `
		SELECT id, semantic_hash, cleaned_text, raw_text, tokens, business_id,
			first_seen_file_id, source_type, occurrence_count, created_at, updated_at
		FROM global_content_index WHERE semantic_hash = $1`,
		semanticHash,
	).Scan(
		&e.ID, &e.SemanticHash, &e.CleanedText, &e.RawText, &e.Tokens, &e.BusinessID,
		&e.FirstSeenFileID, &e.SourceType, &e.OccurrenceCount, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load global entry; %w", err)
	}
	return &e, nil
}

// KnownHashes returns the subset of the given semantic hashes already
// present in the global content index, mapped to their cleaned text.
func (s *Store) KnownHashes(ctx context.Context, hashes []string) (map[string]string, error) {
	if len(hashes) == 0 {
		return map[string]string{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT semantic_hash, cleaned_text FROM global_content_index
		WHERE semantic_hash = ANY($1)`,
		hashes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query known hashes; %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(hashes))
	for rows.Next() {
		var hash, text string
		if err := rows.Scan(&hash, &text); err != nil {
			return nil, fmt.Errorf("failed to scan known hash; %w", err)
		}
		out[hash] = text
	}
	return out, rows.Err()
}

// AllHashes streams every semantic hash in the index with its cleaned
// text. Used by the vector reconciliation pass.
func (s *Store) AllHashes(ctx context.Context, fn func(semanticHash, cleanedText string) error) error {
	rows, err := s.pool.Query(ctx, `SELECT semantic_hash, cleaned_text FROM global_content_index`)
	if err != nil {
		return fmt.Errorf("failed to stream index hashes; %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash, text string
		if err := rows.Scan(&hash, &text); err != nil {
			return fmt.Errorf("failed to scan index hash; %w", err)
		}
		if err := fn(hash, text); err != nil {
			return err
		}
	}
	return rows.Err()
}
