package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/embeddings"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/metrics"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/vector"
)

// RequeueStale moves records stuck in processing back to uploaded and
// re-enqueues them. Returns the number of requeued files. Run after a
// crash or on a periodic sweep.
func (p *Pipeline) RequeueStale(ctx context.Context, grace time.Duration, enqueue func(fileID string) error) (int, error) {
	stale, err := p.store.ListStaleProcessing(ctx, grace)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, f := range stale {
		if err := p.store.RequeueFile(ctx, f.ID); err != nil {
			p.logger.Warn("failed to requeue stale file", "file_id", f.ID, "error", err)
			continue
		}
		if enqueue != nil {
			if err := enqueue(f.ID); err != nil {
				p.logger.Warn("failed to enqueue requeued file", "file_id", f.ID, "error", err)
				continue
			}
		}
		requeued++
	}

	if requeued > 0 {
		p.logger.Info("requeued stale processing files", "count", requeued)
	}
	return requeued, nil
}

// ReconcileResult summarizes one vector reconciliation pass.
type ReconcileResult struct {
	Checked  int `json:"checked"`
	Missing  int `json:"missing"`
	Restored int `json:"restored"`
}

// ReconcileVectors walks the global content index and restores vectors
// that are missing from the vector store. Soft vector failures during
// ingestion leave exactly this kind of gap.
func (p *Pipeline) ReconcileVectors(ctx context.Context) (*ReconcileResult, error) {
	if p.embedder == nil || p.vectors == nil {
		return nil, fmt.Errorf("vector store not configured")
	}

	result := &ReconcileResult{}

	batch := make([]prepared, 0, embeddings.MaxBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		defer func() { batch = batch[:0] }()

		hashes := make([]string, len(batch))
		for i, c := range batch {
			hashes[i] = c.semanticHash
		}
		existing, err := p.vectors.Existing(ctx, hashes)
		if err != nil {
			return err
		}

		var missing []prepared
		for _, c := range batch {
			if !existing[c.semanticHash] {
				missing = append(missing, c)
			}
		}
		result.Missing += len(missing)
		if len(missing) == 0 {
			return nil
		}

		texts := make([]string, len(missing))
		for i, c := range missing {
			texts[i] = c.cleaned
		}
		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}

		points := make([]vector.Point, len(missing))
		for i, c := range missing {
			points[i] = vector.Point{
				SemanticHash: c.semanticHash,
				Vector:       vecs[i],
				Document:     c.cleaned,
			}
		}
		if err := p.vectors.Upsert(ctx, points); err != nil {
			return err
		}
		metrics.VectorsUpsertedTotal.Add(float64(len(points)))
		result.Restored += len(points)
		return nil
	}

	err := p.store.AllHashes(ctx, func(semanticHash, cleanedText string) error {
		result.Checked++
		batch = append(batch, prepared{semanticHash: semanticHash, cleaned: cleanedText})
		if len(batch) == embeddings.MaxBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk global index; %w", err)
	}
	if err := flush(); err != nil {
		return nil, fmt.Errorf("failed to restore vectors; %w", err)
	}

	p.logger.Info("vector reconciliation complete",
		"checked", result.Checked, "missing", result.Missing, "restored", result.Restored)
	return result, nil
}
