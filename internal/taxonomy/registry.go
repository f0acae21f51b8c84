// Package taxonomy maintains the two-level controlled vocabulary:
// resolve-or-create semantics for classifier output, idempotent sync
// with the master document, and a weighted best-match search.
package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/embeddings"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
)

const (
	// Best-match weights: literal similarity dominates, embeddings
	// refine.
	stringWeight    = 0.6
	embeddingWeight = 0.4

	// matchThreshold guards against silent misclassification: anything
	// below it falls back to the uncategorized pair.
	matchThreshold = 0.99

	// FallbackCategory and FallbackSubcategory are used when no match
	// clears the threshold.
	FallbackCategory    = "Uncategorized"
	FallbackSubcategory = "General Business"
)

// Catalog is the slice of the relational store the registry needs.
type Catalog interface {
	EnsureCategory(ctx context.Context, name string) (string, error)
	SyncCategory(ctx context.Context, group, name, description string) (string, error)
	ListCategories(ctx context.Context) ([]store.Category, error)
}

// SyncResult reports one master-document import.
type SyncResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// BestMatch is the outcome of a weighted category search.
type BestMatch struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Confidence  float64 `json:"confidence"`
}

// Registry is the taxonomy service.
type Registry struct {
	catalog  Catalog
	embedder embeddings.Embedder
	synonyms map[string][]string
	logger   *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithEmbedder enables the embedding term of best-match scoring.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(r *Registry) {
		r.embedder = e
	}
}

// WithSynonyms supplies the master document's synonym index for
// literal matching.
func WithSynonyms(synonyms map[string][]string) Option {
	return func(r *Registry) {
		r.synonyms = synonyms
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a taxonomy registry over the catalog.
func NewRegistry(catalog Catalog, opts ...Option) *Registry {
	r := &Registry{
		catalog:  catalog,
		synonyms: map[string][]string{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveOrCreate returns the category ID for a name, creating an
// auto-generated category when no case-insensitive match exists.
func (r *Registry) ResolveOrCreate(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = FallbackCategory
	}
	id, err := r.catalog.EnsureCategory(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve category %q; %w", name, err)
	}
	return id, nil
}

// Sync imports the master document. Re-running with the same document
// yields inserted=0, updated=0.
func (r *Registry) Sync(ctx context.Context, doc *MasterDocument) (*SyncResult, error) {
	description := "Master taxonomy"
	if doc.Version != "" {
		description = "Master taxonomy v" + doc.Version
	}

	result := &SyncResult{}
	for _, entry := range doc.Flatten() {
		outcome, err := r.catalog.SyncCategory(ctx, entry.Group, entry.Name, description)
		if err != nil {
			return nil, fmt.Errorf("failed to sync category %q; %w", entry.Name, err)
		}
		switch outcome {
		case "inserted":
			result.Inserted++
		case "updated":
			result.Updated++
		default:
			result.Skipped++
		}
	}

	r.logger.Info("taxonomy sync complete",
		"inserted", result.Inserted, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

// Export rebuilds a master document from the registry's current
// categories, one section per group.
func (r *Registry) Export(ctx context.Context, version string) (*MasterDocument, error) {
	cats, err := r.catalog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for export; %w", err)
	}

	doc := &MasterDocument{
		Version:     version,
		Description: "Exported taxonomy registry",
		Sections:    map[string]Section{},
	}
	for _, c := range cats {
		sec := doc.Sections[c.Group]
		sec.Values = append(sec.Values, c.Name)
		doc.Sections[c.Group] = sec
	}
	return doc, nil
}

// Match searches for the closest category to the given text, scoring
// each candidate by weighted literal and embedding similarity. A score
// below the threshold forces the uncategorized fallback.
func (r *Registry) Match(ctx context.Context, text string) (*BestMatch, error) {
	cats, err := r.catalog.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for matching; %w", err)
	}
	if len(cats) == 0 {
		return &BestMatch{Category: FallbackCategory, Subcategory: FallbackSubcategory}, nil
	}

	best := ""
	bestScore := 0.0
	embScores := r.embeddingScores(ctx, text, cats)

	for i, c := range cats {
		literal := r.literalScore(text, c.Name)
		score := stringWeight*literal + embeddingWeight*embScores[i]
		if score > bestScore {
			bestScore = score
			best = c.Name
		}
	}

	if bestScore < matchThreshold {
		return &BestMatch{
			Category:    FallbackCategory,
			Subcategory: FallbackSubcategory,
			Confidence:  bestScore,
		}, nil
	}

	return &BestMatch{
		Category:    best,
		Subcategory: FallbackSubcategory,
		Confidence:  bestScore,
	}, nil
}

// literalScore is the best similarity between the text and the
// category name or any of its synonyms.
func (r *Registry) literalScore(text, name string) float64 {
	score := Similarity(text, name)
	for _, syn := range r.synonyms[name] {
		if s := Similarity(text, syn); s > score {
			score = s
		}
	}
	return score
}

// embeddingScores returns one cosine score per category. Embedding
// failures degrade to zeros so matching still works on literal
// similarity alone.
func (r *Registry) embeddingScores(ctx context.Context, text string, cats []store.Category) []float64 {
	scores := make([]float64, len(cats))
	if r.embedder == nil {
		// Exact literal matches should not be penalized for a missing
		// embedder.
		for i, c := range cats {
			if strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(c.Name)) {
				scores[i] = 1
			}
		}
		return scores
	}

	inputs := make([]string, 0, len(cats)+1)
	inputs = append(inputs, text)
	for _, c := range cats {
		inputs = append(inputs, c.Name)
	}

	var vectors [][]float32
	for start := 0; start < len(inputs); start += embeddings.MaxBatchSize {
		end := min(start+embeddings.MaxBatchSize, len(inputs))
		batch, err := r.embedder.Embed(ctx, inputs[start:end])
		if err != nil {
			r.logger.Warn("embedding failed during taxonomy match", "error", err)
			return scores
		}
		vectors = append(vectors, batch...)
	}

	query := vectors[0]
	for i := range cats {
		scores[i] = CosineSimilarity(query, vectors[i+1])
	}
	return scores
}
