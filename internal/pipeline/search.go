package pipeline

import (
	"context"
	"fmt"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/vector"
)

// DefaultSearchLimit is used when a search request gives no limit.
const DefaultSearchLimit = 5

// Search embeds the query and returns the closest stored chunks.
func (p *Pipeline) Search(ctx context.Context, query string, limit int) ([]vector.Match, error) {
	if p.embedder == nil || p.vectors == nil {
		return nil, fmt.Errorf("vector store not configured")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vecs, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query; %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}

	matches, err := p.vectors.Search(ctx, vecs[0], limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors; %w", err)
	}
	return matches, nil
}

// ClearVectors drops the vector collection and recreates it empty.
func (p *Pipeline) ClearVectors(ctx context.Context) error {
	if p.vectors == nil {
		return fmt.Errorf("vector store not configured")
	}
	if err := p.vectors.Clear(ctx); err != nil {
		return err
	}
	if p.embedder != nil {
		if err := p.vectors.EnsureCollection(ctx, p.embedder.Dimensions()); err != nil {
			return fmt.Errorf("failed to recreate collection; %w", err)
		}
	}
	return nil
}
