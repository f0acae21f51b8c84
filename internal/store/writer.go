package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/reasoning"
)

// ChunkInput is everything the relational writer needs to persist one
// chunk and its taxonomy link.
type ChunkInput struct {
	Text            string
	CleanedText     string
	Tokens          int
	SemanticHash    string
	SourceType      string
	Confidence      float64
	GlobalContentID *string
	Reasoning       reasoning.Block
	Category        string
	Subcategory     string
	Metadata        map[string]any
}

// WriteFileChunks persists all chunks of one file in a single
// transaction: chunk rows with dense indexes continuing from the
// current maximum, taxonomy categories for every (category,
// subcategory) pair, a default business when none is given, and one
// entity link per chunk keyed by the chunk's semantic hash.
// On any error the whole transaction rolls back.
func (s *Store) WriteFileChunks(ctx context.Context, fileID string, businessID *string, chunks []ChunkInput) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM files WHERE id = $1)`, fileID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check file record; %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("file record %s does not exist", fileID)
	}

	if businessID == nil {
		id, err := ensureBusinessTx(ctx, tx, DefaultBusinessName)
		if err != nil {
			return nil, err
		}
		businessID = &id
	}

	var maxIndex int
	if err := tx.QueryRow(ctx, `SELECT coalesce(max(chunk_index), -1) FROM chunks WHERE file_id = $1`, fileID).Scan(&maxIndex); err != nil {
		return nil, fmt.Errorf("failed to read max chunk index; %w", err)
	}
	startIndex := maxIndex + 1

	categoryIDs := map[string]string{}
	resolveCategory := func(name string) (*string, error) {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, nil
		}
		key := strings.ToLower(name)
		if id, ok := categoryIDs[key]; ok {
			return &id, nil
		}
		id, err := ensureCategoryTx(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		categoryIDs[key] = id
		return &id, nil
	}

	batch := &pgx.Batch{}
	ids := make([]string, len(chunks))

	for i, ch := range chunks {
		catID, err := resolveCategory(ch.Category)
		if err != nil {
			return nil, err
		}
		subID, err := resolveCategory(ch.Subcategory)
		if err != nil {
			return nil, err
		}

		id := uuid.NewString()
		ids[i] = id
		metadata := ch.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}

		batch.Queue(`
			INSERT INTO chunks (id, file_id, business_id, chunk_index, text, cleaned_text,
				tokens, source_type, metadata, confidence, semantic_hash,
				global_content_id, reasoning, is_duplicate)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE)`,
			id, fileID, businessID, startIndex+i, ch.Text, ch.CleanedText,
			ch.Tokens, ch.SourceType, metadata, ch.Confidence, ch.SemanticHash,
			ch.GlobalContentID, ch.Reasoning,
		)

		batch.Queue(`
			INSERT INTO entity_links (id, entity_type, entity_id, category_id, subcategory_id, business_id, fingerprint)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT DO NOTHING`,
			uuid.NewString(), "content", id, catID, subID, businessID, ch.SemanticHash,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("failed to insert chunk rows; %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("failed to close batch; %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit chunk transaction; %w", err)
	}
	return ids, nil
}

func ensureBusinessTx(ctx context.Context, tx pgx.Tx, name string) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM businesses WHERE name = $1`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to look up business %q; %w", name, err)
	}

	id = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO businesses (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		id, name,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create business %q; %w", name, err)
	}
	return id, nil
}

func ensureCategoryTx(ctx context.Context, tx pgx.Tx, name string) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		SELECT id FROM taxonomy_categories
		WHERE lower(name) = lower($1)
		ORDER BY created_at ASC
		LIMIT 1`,
		name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to look up category %q; %w", name, err)
	}

	id = uuid.NewString()
	err = tx.QueryRow(ctx, `
		INSERT INTO taxonomy_categories (id, name, cat_group, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cat_group, name) DO UPDATE SET updated_at = now()
		RETURNING id`,
		id, name, DefaultCategoryGroup, autoDescription,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create category %q; %w", name, err)
	}
	return id, nil
}
