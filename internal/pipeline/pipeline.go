// Package pipeline orchestrates file ingestion end to end: acquire,
// hash, dedup, parse, chunk, classify, persist, embed. Each file
// record moves through uploaded -> processing -> processed, duplicate
// or failed, and never leaves processing without a terminal status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/chunker"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/classifier"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/dedup"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/embeddings"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/hashing"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/metrics"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/parsers"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/reasoning"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/textutil"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/vector"
)

// Store is the relational surface the pipeline depends on.
type Store interface {
	GetFile(ctx context.Context, id string) (*store.FileRecord, error)
	AcquireFile(ctx context.Context, id string) error
	SetFileHash(ctx context.Context, id, fileHash string) error
	FindProcessedByHash(ctx context.Context, fileHash, excludeID string) (*store.FileRecord, error)
	ExistingChunkHashes(ctx context.Context, fileID string, hashes []string) (map[string]bool, error)
	MarkDuplicate(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	MarkProcessed(ctx context.Context, id string, total, unique, duplicates int) error
	UpsertGlobalEntry(ctx context.Context, e *store.GlobalEntry) (string, bool, error)
	WriteFileChunks(ctx context.Context, fileID string, businessID *string, chunks []store.ChunkInput) ([]string, error)
	ListStaleProcessing(ctx context.Context, grace time.Duration) ([]store.FileRecord, error)
	RequeueFile(ctx context.Context, id string) error
	AllHashes(ctx context.Context, fn func(semanticHash, cleanedText string) error) error
}

// Classifier is the LLM gateway surface the pipeline depends on.
type Classifier interface {
	Classify(ctx context.Context, text string) classifier.Record
	Explain(ctx context.Context, text string) (string, error)
}

// Pipeline processes one file record at a time.
type Pipeline struct {
	store      Store
	parsers    *parsers.Registry
	chunker    *chunker.SemanticChunker
	classifier Classifier
	embedder   embeddings.Embedder
	vectors    vector.Store
	dedup      *dedup.Engine
	logger     *slog.Logger

	llmEnabled          bool
	confidenceThreshold float64
	readFile            func(path string) ([]byte, error)
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithClassifier enables LLM classification and visual explanation.
func WithClassifier(c Classifier) Option {
	return func(p *Pipeline) {
		p.classifier = c
		p.llmEnabled = c != nil
	}
}

// WithVectorStore enables embedding and vector persistence.
func WithVectorStore(e embeddings.Embedder, v vector.Store) Option {
	return func(p *Pipeline) {
		p.embedder = e
		p.vectors = v
	}
}

// WithConfidenceThreshold forces classifications below the threshold
// onto the uncategorized fallback pair.
func WithConfidenceThreshold(t float64) Option {
	return func(p *Pipeline) {
		p.confidenceThreshold = t
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.SemanticChunker) Option {
	return func(p *Pipeline) {
		p.chunker = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline over the store and parser registry.
func New(st Store, registry *parsers.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    st,
		parsers:  registry,
		chunker:  chunker.New(chunker.DefaultOptions()),
		logger:   slog.Default(),
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.dedup = dedup.NewEngine(st, st, dedup.WithLogger(p.logger))
	return p
}

// ProcessFile runs the full ingestion flow for one file record. The
// record always reaches a terminal status; processing errors are
// recorded on the file and returned.
func (p *Pipeline) ProcessFile(ctx context.Context, fileID string) error {
	start := time.Now()

	if err := p.store.AcquireFile(ctx, fileID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Another worker owns it, or it already finished.
			return nil
		}
		return fmt.Errorf("failed to acquire file %s; %w", fileID, err)
	}

	file, err := p.store.GetFile(ctx, fileID)
	if err != nil {
		return p.fail(ctx, fileID, "", start, fmt.Errorf("failed to load file record; %w", err))
	}

	sourceType := p.sourceType(file)

	outcome, err := p.process(ctx, file, sourceType)
	if err != nil {
		return p.fail(ctx, fileID, sourceType, start, err)
	}

	metrics.RecordFileOutcome(outcome, sourceType, time.Since(start))
	return nil
}

func (p *Pipeline) fail(ctx context.Context, fileID, sourceType string, start time.Time, cause error) error {
	if err := p.store.MarkFailed(ctx, fileID, cause.Error()); err != nil {
		p.logger.Error("failed to record failure", "file_id", fileID, "error", err)
	}
	metrics.RecordFileOutcome(string(store.StatusFailed), sourceType, time.Since(start))
	p.logger.Error("file processing failed", "file_id", fileID, "error", cause)
	return cause
}

// prepared is one chunk after cleaning and visual interception.
type prepared struct {
	text         string
	cleaned      string
	semanticHash string
	visual       bool
	originalHash string
}

func (p *Pipeline) process(ctx context.Context, file *store.FileRecord, sourceType string) (string, error) {
	fileHash, err := hashing.FileHash(file.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to hash file; %w", err)
	}
	if err := p.store.SetFileHash(ctx, file.ID, fileHash); err != nil {
		return "", fmt.Errorf("failed to persist file hash; %w", err)
	}

	dup, err := p.dedup.IsFileDuplicate(ctx, fileHash, file.ID)
	if err != nil {
		return "", err
	}
	if dup {
		if err := p.store.MarkDuplicate(ctx, file.ID); err != nil {
			return "", fmt.Errorf("failed to mark duplicate; %w", err)
		}
		return string(store.StatusDuplicate), nil
	}

	parser, err := p.parsers.ForPath(file.FilePath)
	if err != nil {
		return "", err
	}

	data, err := p.readFile(file.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file; %w", err)
	}

	rawText, err := parser.Parse(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to parse with %s; %w", parser.Name(), err)
	}

	pieces := p.chunker.Chunk(rawText)
	chunks := p.prepare(ctx, pieces)
	if len(chunks) == 0 {
		if err := p.store.MarkProcessed(ctx, file.ID, 0, 0, 0); err != nil {
			return "", err
		}
		return string(store.StatusProcessed), nil
	}

	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		hashes[i] = c.semanticHash
	}

	keep, dropped, err := p.dedup.FilterNewChunks(ctx, file.ID, hashes)
	if err != nil {
		return "", err
	}

	inputs, kept, err := p.buildInputs(ctx, file, sourceType, chunks, keep)
	if err != nil {
		return "", err
	}

	if _, err := p.store.WriteFileChunks(ctx, file.ID, file.BusinessID, inputs); err != nil {
		return "", err
	}

	p.persistVectors(ctx, file, sourceType, kept)

	if err := p.store.MarkProcessed(ctx, file.ID, len(chunks), len(kept), dropped); err != nil {
		return "", err
	}
	metrics.RecordChunks(len(kept), dropped)

	p.logger.Info("file processed",
		"file_id", file.ID,
		"source_type", sourceType,
		"total_chunks", len(chunks),
		"unique_chunks", len(kept),
		"duplicate_chunks", dropped)

	return string(store.StatusProcessed), nil
}

// prepare cleans each chunk and intercepts visual content. A visual
// chunk is rewritten into a narrative description; the explanation is
// chunked again so the size bound holds, and every resulting piece
// carries the original hash for lineage. If the rewrite fails the
// chunk passes unchanged.
func (p *Pipeline) prepare(ctx context.Context, pieces []string) []prepared {
	out := make([]prepared, 0, len(pieces))
	for _, piece := range pieces {
		if p.llmEnabled && chunker.IsVisual(piece) {
			desc, err := p.classifier.Explain(ctx, piece)
			if err != nil {
				p.logger.Warn("visual rewrite failed, keeping original text", "error", err)
			} else if desc != "" {
				originalHash := hashing.SemanticHash(textutil.Clean(piece))
				metrics.VisualChunksTotal.Inc()
				for _, part := range p.chunker.Chunk(desc) {
					pc, ok := newPrepared(part)
					if !ok {
						continue
					}
					pc.visual = true
					pc.originalHash = originalHash
					out = append(out, pc)
				}
				continue
			}
		}

		if pc, ok := newPrepared(piece); ok {
			out = append(out, pc)
		}
	}
	return out
}

// newPrepared cleans and hashes one chunk. Chunks that clean to
// nothing are dropped.
func newPrepared(text string) (prepared, bool) {
	pc := prepared{text: text, cleaned: textutil.Clean(text)}
	if pc.cleaned == "" {
		return prepared{}, false
	}
	pc.semanticHash = hashing.SemanticHash(pc.cleaned)
	return pc, true
}

// buildInputs classifies each kept chunk, builds its reasoning block
// and global index entry, and assembles the writer inputs.
func (p *Pipeline) buildInputs(ctx context.Context, file *store.FileRecord, sourceType string, chunks []prepared, keep []bool) ([]store.ChunkInput, []prepared, error) {
	var inputs []store.ChunkInput
	var kept []prepared

	for i, c := range chunks {
		if !keep[i] {
			continue
		}

		rec := p.classify(ctx, c.cleaned)

		blk := reasoning.Build(c.cleaned, sourceType, c.semanticHash)
		if c.visual {
			blk.ContentType = reasoning.ContentTypeVisual
			blk.OriginalTextHash = c.originalHash
		}

		globalID, existed, err := p.store.UpsertGlobalEntry(ctx, &store.GlobalEntry{
			SemanticHash:    c.semanticHash,
			CleanedText:     c.cleaned,
			RawText:         c.text,
			Tokens:          textutil.CountTokens(c.cleaned),
			BusinessID:      file.BusinessID,
			FirstSeenFileID: &file.ID,
			SourceType:      sourceType,
		})
		if err != nil {
			return nil, nil, err
		}
		if existed {
			p.logger.Debug("chunk already in global index", "semantic_hash", c.semanticHash)
		}

		meta := map[string]any{
			"entity_type": rec.EntityType,
			"title":       rec.Title,
			"description": rec.Description,
		}

		inputs = append(inputs, store.ChunkInput{
			Text:            c.text,
			CleanedText:     c.cleaned,
			Tokens:          textutil.CountTokens(c.cleaned),
			SemanticHash:    c.semanticHash,
			SourceType:      sourceType,
			Confidence:      rec.ExtractionConfidence,
			GlobalContentID: &globalID,
			Reasoning:       blk,
			Category:        rec.CategoryLevel1,
			Subcategory:     rec.CategoryLevel2Sub,
			Metadata:        meta,
		})
		kept = append(kept, c)
	}

	return inputs, kept, nil
}

func (p *Pipeline) classify(ctx context.Context, cleaned string) classifier.Record {
	if !p.llmEnabled {
		rec := classifier.FallbackRecord(cleaned)
		rec.Title = "Unclassified"
		return rec
	}

	start := time.Now()
	rec := p.classifier.Classify(ctx, cleaned)
	outcome := "ok"
	if rec.CategoryLevel1 == classifier.CategoryUncategorized {
		outcome = "fallback"
	}
	metrics.RecordClassifierRequest(outcome, time.Since(start))

	if p.confidenceThreshold > 0 && rec.ExtractionConfidence < p.confidenceThreshold {
		rec.CategoryLevel1 = classifier.CategoryUncategorized
		rec.CategoryLevel2Sub = classifier.SubcategoryGeneral
	}
	return rec
}

// persistVectors embeds chunks that have no stored vector yet and
// upserts them. Vector failures are logged, never fatal: the relational
// write already committed and reconciliation can fill gaps later.
func (p *Pipeline) persistVectors(ctx context.Context, file *store.FileRecord, sourceType string, kept []prepared) {
	if p.embedder == nil || p.vectors == nil || len(kept) == 0 {
		return
	}

	hashes := make([]string, len(kept))
	for i, c := range kept {
		hashes[i] = c.semanticHash
	}

	existing, err := p.vectors.Existing(ctx, hashes)
	if err != nil {
		p.logger.Warn("vector existence check failed", "file_id", file.ID, "error", err)
		metrics.VectorErrorsTotal.Inc()
		return
	}

	var missing []prepared
	for _, c := range kept {
		if !existing[c.semanticHash] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return
	}

	businessID := ""
	if file.BusinessID != nil {
		businessID = *file.BusinessID
	}

	for start := 0; start < len(missing); start += embeddings.MaxBatchSize {
		end := min(start+embeddings.MaxBatchSize, len(missing))
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.cleaned
		}

		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			p.logger.Warn("embedding failed", "file_id", file.ID, "error", err)
			metrics.VectorErrorsTotal.Inc()
			return
		}

		points := make([]vector.Point, len(batch))
		for i, c := range batch {
			points[i] = vector.Point{
				SemanticHash: c.semanticHash,
				Vector:       vecs[i],
				FileID:       file.ID,
				BusinessID:   businessID,
				SourceType:   sourceType,
				Document:     c.cleaned,
			}
		}

		if err := p.vectors.Upsert(ctx, points); err != nil {
			p.logger.Warn("vector upsert failed", "file_id", file.ID, "error", err)
			metrics.VectorErrorsTotal.Inc()
			return
		}
		metrics.VectorsUpsertedTotal.Add(float64(len(points)))
	}
}

// sourceType resolves the record's source type: an explicit metadata
// value wins, then the source URL, then the file path.
func (p *Pipeline) sourceType(file *store.FileRecord) string {
	if st, ok := file.Metadata["source_type"].(string); ok && st != "" {
		return st
	}
	if file.SourceURL != "" {
		if st, ok := parsers.DetectSourceType(file.SourceURL); ok {
			return st
		}
	}
	if st, ok := parsers.DetectSourceType(file.FilePath); ok {
		return st
	}
	return "unknown"
}
