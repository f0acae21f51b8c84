package store

import (
	"context"
	"fmt"
)

// ExistingChunkHashes returns which of the given semantic hashes are
// already recorded as chunks of this file. One batch query serves the
// whole file.
func (s *Store) ExistingChunkHashes(ctx context.Context, fileID string, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT semantic_hash FROM chunks
		WHERE file_id = $1 AND semantic_hash = ANY($2)`,
		fileID, hashes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing chunk hashes; %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool, len(hashes))
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan chunk hash; %w", err)
		}
		out[hash] = true
	}
	return out, rows.Err()
}

// CountChunks returns the number of chunk records for a file.
func (s *Store) CountChunks(ctx context.Context, fileID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE file_id = $1`, fileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks; %w", err)
	}
	return n, nil
}

// ListChunksByHash returns all chunk records sharing a semantic hash,
// ordered by creation. Used by the retrieval surface for provenance.
func (s *Store) ListChunksByHash(ctx context.Context, semanticHash string) ([]ChunkRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_id, business_id, chunk_index, text, cleaned_text, tokens,
			source_type, metadata, confidence, semantic_hash, global_content_id,
			reasoning, is_duplicate, created_at
		FROM chunks WHERE semantic_hash = $1
		ORDER BY created_at ASC`,
		semanticHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks by hash; %w", err)
	}
	defer rows.Close()

	var out []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		err := rows.Scan(
			&c.ID, &c.FileID, &c.BusinessID, &c.ChunkIndex, &c.Text, &c.CleanedText,
			&c.Tokens, &c.SourceType, &c.Metadata, &c.Confidence, &c.SemanticHash,
			&c.GlobalContentID, &c.Reasoning, &c.IsDuplicate, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk record; %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
