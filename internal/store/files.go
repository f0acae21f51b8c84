package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxErrorMessageLen bounds the stored error text.
const maxErrorMessageLen = 255

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const fileColumns = `id, business_id, file_name, file_type, file_path, source_url,
	metadata, parser_used, status, total_chunks, unique_chunks, duplicate_chunks,
	dedup_ratio, error_message, created_at, updated_at`

// CreateFile inserts a new file record in status uploaded. A zero ID
// is generated.
func (s *Store) CreateFile(ctx context.Context, f *FileRecord) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = StatusUploaded
	}
	if f.Metadata == nil {
		f.Metadata = map[string]any{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (id, business_id, file_name, file_type, file_path, source_url, metadata, parser_used, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.BusinessID, f.FileName, f.FileType, f.FilePath, f.SourceURL, f.Metadata, f.ParserUsed, f.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert file record; %w", err)
	}
	return nil
}

// GetFile loads one file record by ID.
func (s *Store) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	return scanFile(row)
}

// SetFileHash stores the whole-file hash in the record's metadata.
// The hash must be persisted before any transition away from uploaded
// so concurrent producers of the same bytes converge.
func (s *Store) SetFileHash(ctx context.Context, id, fileHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE files
		SET metadata = metadata || jsonb_build_object('file_hash', $2::text), updated_at = now()
		WHERE id = $1`,
		id, fileHash,
	)
	if err != nil {
		return fmt.Errorf("failed to set file hash; %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AcquireFile transitions a record from uploaded to processing.
// Returns ErrNotFound when the record is absent or already acquired,
// which lets concurrent workers race safely.
func (s *Store) AcquireFile(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE files SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, StatusProcessing, StatusUploaded,
	)
	if err != nil {
		return fmt.Errorf("failed to acquire file; %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindProcessedByHash returns the earliest processed file record
// sharing the given whole-file hash, excluding the current record.
func (s *Store) FindProcessedByHash(ctx context.Context, fileHash, excludeID string) (*FileRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE metadata->>'file_hash' = $1 AND status = $2 AND id <> $3
		ORDER BY created_at ASC
		LIMIT 1`,
		fileHash, StatusProcessed, excludeID,
	)
	return scanFile(row)
}

// MarkDuplicate terminally marks a record as a whole-file duplicate.
func (s *Store) MarkDuplicate(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE files SET status = $2, total_chunks = 0, unique_chunks = 0,
			duplicate_chunks = 0, updated_at = now()
		WHERE id = $1`,
		id, StatusDuplicate,
	)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate; %w", err)
	}
	return nil
}

// MarkFailed terminally marks a record failed with a truncated error.
func (s *Store) MarkFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE files SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`,
		id, StatusFailed, truncateError(errMsg),
	)
	if err != nil {
		return fmt.Errorf("failed to mark failed; %w", err)
	}
	return nil
}

// MarkProcessed commits the terminal processed state with counters.
func (s *Store) MarkProcessed(ctx context.Context, id string, total, unique, duplicates int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE files SET status = $2, total_chunks = $3, unique_chunks = $4,
			duplicate_chunks = $5, dedup_ratio = $6, updated_at = now()
		WHERE id = $1`,
		id, StatusProcessed, total, unique, duplicates, DedupRatio(unique, duplicates),
	)
	if err != nil {
		return fmt.Errorf("failed to mark processed; %w", err)
	}
	return nil
}

// ListStaleProcessing returns records stuck in processing longer than
// the grace period, oldest first. Used to requeue after a crash.
func (s *Store) ListStaleProcessing(ctx context.Context, grace time.Duration) ([]FileRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE status = $1 AND updated_at < now() - $2::interval
		ORDER BY updated_at ASC`,
		StatusProcessing, grace.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale files; %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// RequeueFile moves a stale processing record back to uploaded.
func (s *Store) RequeueFile(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE files SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, StatusUploaded, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue file; %w", err)
	}
	return nil
}

func scanFile(row pgx.Row) (*FileRecord, error) {
	var f FileRecord
	err := row.Scan(
		&f.ID, &f.BusinessID, &f.FileName, &f.FileType, &f.FilePath, &f.SourceURL,
		&f.Metadata, &f.ParserUsed, &f.Status, &f.TotalChunks, &f.UniqueChunks,
		&f.DuplicateChunks, &f.DedupRatio, &f.ErrorMessage, &f.CreatedAt, &f.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file record; %w", err)
	}
	return &f, nil
}

// DedupRatio is the fraction of a file's chunks suppressed as
// duplicates.
func DedupRatio(unique, duplicates int) float64 {
	total := unique + duplicates
	if total == 0 {
		return 0
	}
	return float64(duplicates) / float64(total)
}

func truncateError(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	runes := []rune(msg)
	if len(runes) <= maxErrorMessageLen {
		return msg
	}
	return string(runes[:maxErrorMessageLen])
}
