package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/parsers"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
)

// IntakeStore is the subset of the store needed to register files.
type IntakeStore interface {
	CreateFile(ctx context.Context, f *store.FileRecord) error
}

// Enqueuer hands a registered file to the worker pool.
type Enqueuer interface {
	Enqueue(fileID string) error
}

// Intake registers new uploads as file records and enqueues them. The
// watcher, the poller, and the HTTP handlers all feed through it.
type Intake struct {
	store     IntakeStore
	queue     Enqueuer
	uploadDir string
	logger    *slog.Logger
}

// NewIntake creates an intake writing uploads into uploadDir.
func NewIntake(st IntakeStore, q Enqueuer, uploadDir string, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		store:     st,
		queue:     q,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// IngestPath registers an existing file and enqueues it.
func (in *Intake) IngestPath(ctx context.Context, path, sourceURL, sourceType string, meta map[string]any) (*store.FileRecord, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	if sourceType != "" {
		meta["source_type"] = sourceType
	}

	rec := &store.FileRecord{
		FileName:  filepath.Base(path),
		FileType:  fileType(path, sourceType),
		FilePath:  path,
		SourceURL: sourceURL,
		Metadata:  meta,
	}
	if err := in.store.CreateFile(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to register file; %w", err)
	}

	if err := in.queue.Enqueue(rec.ID); err != nil {
		return nil, fmt.Errorf("failed to enqueue file %s; %w", rec.ID, err)
	}

	in.logger.Info("file registered",
		"file_id", rec.ID,
		"file_name", rec.FileName,
		"source_type", sourceType)

	return rec, nil
}

// IngestUpload saves an uploaded stream into the upload directory and
// registers it. Colliding names get a random prefix rather than
// overwriting an earlier upload.
func (in *Intake) IngestUpload(ctx context.Context, fileName string, r io.Reader) (*store.FileRecord, error) {
	name := sanitizeFileName(fileName)
	if name == "" {
		return nil, fmt.Errorf("empty file name")
	}

	path := filepath.Join(in.uploadDir, name)
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(in.uploadDir, uuid.NewString()[:8]+"_"+name)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to save upload; %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write upload; %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close upload; %w", err)
	}

	return in.IngestPath(ctx, path, "", "", nil)
}

// IngestText saves a text snippet as a synthetic .txt upload.
func (in *Intake) IngestText(ctx context.Context, docID, text, category, source string) (*store.FileRecord, error) {
	docID = sanitizeFileName(docID)
	if docID == "" {
		return nil, fmt.Errorf("empty doc_id")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text")
	}

	name := docID
	if !strings.HasSuffix(strings.ToLower(name), ".txt") {
		name += ".txt"
	}
	path := filepath.Join(in.uploadDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("failed to save text; %w", err)
	}

	meta := map[string]any{"doc_id": docID}
	if category != "" {
		meta["category"] = category
	}
	if source != "" {
		meta["source"] = source
	}
	return in.IngestPath(ctx, path, "", "", meta)
}

// fileType derives the record's file_type from the source type or the
// path extension.
func fileType(path, sourceType string) string {
	switch sourceType {
	case parsers.SourceRSS, parsers.SourceAPI:
		return sourceType
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "txt"
	}
	return ext
}

// sanitizeFileName strips any path components from a client-supplied
// name.
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
