// Package dedup implements the two-tier deduplication engine: whole
// files against previously processed files, and chunks against the
// chunks already recorded for the same file.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
)

// FileCatalog is the slice of the relational store tier 1 needs.
type FileCatalog interface {
	FindProcessedByHash(ctx context.Context, fileHash, excludeID string) (*store.FileRecord, error)
}

// ChunkCatalog is the slice of the relational store tier 2 needs.
type ChunkCatalog interface {
	ExistingChunkHashes(ctx context.Context, fileID string, hashes []string) (map[string]bool, error)
}

// Engine runs both dedup tiers.
type Engine struct {
	files  FileCatalog
	chunks ChunkCatalog
	logger *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a dedup engine over the given catalogs.
func NewEngine(files FileCatalog, chunks ChunkCatalog, opts ...Option) *Engine {
	e := &Engine{
		files:  files,
		chunks: chunks,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsFileDuplicate reports whether another file record with the same
// whole-file hash has already completed processing. The current file's
// own record is excluded so re-reads do not self-match.
func (e *Engine) IsFileDuplicate(ctx context.Context, fileHash, fileID string) (bool, error) {
	if fileHash == "" {
		return false, nil
	}

	match, err := e.files.FindProcessedByHash(ctx, fileHash, fileID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check file duplicate; %w", err)
	}

	e.logger.Info("whole-file duplicate detected",
		"file_id", fileID, "matches", match.ID, "file_hash", fileHash)
	return true, nil
}

// FilterNewChunks returns a keep mask over hashes, in order. A hash is
// dropped when it is already recorded for this file or when it
// repeats earlier in the same batch. The second return value is the
// number of dropped hashes.
func (e *Engine) FilterNewChunks(ctx context.Context, fileID string, hashes []string) ([]bool, int, error) {
	keep := make([]bool, len(hashes))
	if len(hashes) == 0 {
		return keep, 0, nil
	}

	existing, err := e.chunks.ExistingChunkHashes(ctx, fileID, hashes)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to batch-check chunk hashes; %w", err)
	}

	seen := make(map[string]bool, len(hashes))
	dropped := 0
	for i, h := range hashes {
		if existing[h] || seen[h] {
			dropped++
			continue
		}
		seen[h] = true
		keep[i] = true
	}

	if dropped > 0 {
		e.logger.Debug("chunk dedup dropped hashes",
			"file_id", fileID, "dropped", dropped, "total", len(hashes))
	}
	return keep, dropped, nil
}
