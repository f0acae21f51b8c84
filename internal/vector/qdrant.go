// Package vector adapts the qdrant vector database to the pipeline.
// Every point is keyed by the chunk's semantic hash: the point ID is a
// UUID derived deterministically from the hash, so upserting the same
// content always converges on a single vector.
package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// hashNamespace seeds the hash-to-UUID derivation. Changing it would
// orphan every stored vector.
var hashNamespace = uuid.MustParse("9f2c1a52-7a0e-4a5b-9d1e-3f8a6c2b4d10")

// Point is one embedding with its provenance payload.
type Point struct {
	SemanticHash string
	Vector       []float32
	FileID       string
	BusinessID   string
	SourceType   string
	Document     string
}

// Match is one similarity search result.
type Match struct {
	SemanticHash string
	Score        float32
	Document     string
	FileID       string
	SourceType   string
}

// Store is the vector-store surface the pipeline depends on.
type Store interface {
	EnsureCollection(ctx context.Context, dimensions int) error
	Existing(ctx context.Context, semanticHashes []string) (map[string]bool, error)
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, limit int) ([]Match, error)
	Clear(ctx context.Context) error
}

// QdrantStore implements Store against a qdrant server.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	distance   qdrant.Distance
	logger     *slog.Logger
}

// Option configures the QdrantStore.
type Option func(*QdrantStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *QdrantStore) {
		s.logger = logger
	}
}

// WithDistance sets the distance metric by name (cosine, euclid, dot).
func WithDistance(metric string) Option {
	return func(s *QdrantStore) {
		s.distance = distanceFromName(metric)
	}
}

// NewQdrantStore connects to qdrant's gRPC port.
func NewQdrantStore(host string, port int, collection string, opts ...Option) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client; %w", err)
	}

	s := &QdrantStore{
		client:     client,
		collection: collection,
		distance:   qdrant.Distance_Cosine,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// EnsureCollection creates the collection if it does not exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimensions int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection; %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: s.distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %q; %w", s.collection, err)
	}

	s.logger.Info("created vector collection", "collection", s.collection, "dimensions", dimensions)
	return nil
}

// Existing returns which of the given semantic hashes already have a
// stored vector.
func (s *QdrantStore) Existing(ctx context.Context, semanticHashes []string) (map[string]bool, error) {
	out := make(map[string]bool, len(semanticHashes))
	if len(semanticHashes) == 0 {
		return out, nil
	}

	ids := make([]*qdrant.PointId, len(semanticHashes))
	idToHash := make(map[string]string, len(semanticHashes))
	for i, h := range semanticHashes {
		id := PointID(h)
		ids[i] = qdrant.NewID(id)
		idToHash[id] = h
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check existing vectors; %w", err)
	}

	for _, p := range points {
		if id := p.GetId().GetUuid(); id != "" {
			if h, ok := idToHash[id]; ok {
				out[h] = true
			}
		}
	}
	return out, nil
}

// Upsert writes one point per semantic hash. Re-upserting a hash
// overwrites its point in place; duplicate vectors cannot accumulate.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qp := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qp[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(p.SemanticHash)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"semantic_hash": p.SemanticHash,
				"file_id":       p.FileID,
				"business_id":   p.BusinessID,
				"source_type":   p.SourceType,
				"document":      p.Document,
			}),
		}
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qp,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert vectors; %w", err)
	}
	return nil
}

// Search returns the closest stored chunks for a query embedding.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	n := uint64(limit)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &n,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors; %w", err)
	}

	out := make([]Match, 0, len(scored))
	for _, p := range scored {
		payload := p.GetPayload()
		out = append(out, Match{
			SemanticHash: payload["semantic_hash"].GetStringValue(),
			Score:        p.GetScore(),
			Document:     payload["document"].GetStringValue(),
			FileID:       payload["file_id"].GetStringValue(),
			SourceType:   payload["source_type"].GetStringValue(),
		})
	}
	return out, nil
}

// Clear drops the collection. The caller must EnsureCollection again
// before the next upsert.
func (s *QdrantStore) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection %q; %w", s.collection, err)
	}
	s.logger.Warn("vector collection cleared", "collection", s.collection)
	return nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// PointID derives the deterministic point UUID for a semantic hash.
func PointID(semanticHash string) string {
	return uuid.NewSHA1(hashNamespace, []byte(semanticHash)).String()
}

func distanceFromName(name string) qdrant.Distance {
	switch name {
	case "euclid", "euclidean":
		return qdrant.Distance_Euclid
	case "dot":
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

var _ Store = (*QdrantStore)(nil)
