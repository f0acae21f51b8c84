// Package server exposes the HTTP surface: manual ingestion, RAG
// search, feed and cache administration, taxonomy sync, health, and
// metrics. Handlers are thin wrappers over the pipeline and store.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/metrics"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/pipeline"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/searchcache"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/taxonomy"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/vector"
)

// maxUploadBytes bounds multipart upload memory.
const maxUploadBytes = 64 << 20

// Config holds configuration for the HTTP server.
type Config struct {
	Port            int
	Bind            string
	ShutdownTimeout time.Duration
}

// Intake registers new content for ingestion.
type Intake interface {
	IngestUpload(ctx context.Context, fileName string, r io.Reader) (*store.FileRecord, error)
	IngestText(ctx context.Context, docID, text, category, source string) (*store.FileRecord, error)
}

// Files reads file records.
type Files interface {
	GetFile(ctx context.Context, id string) (*store.FileRecord, error)
}

// Sources administers feed metrics.
type Sources interface {
	ListIngestSources(ctx context.Context) ([]store.IngestSource, error)
	IngestSourceStats(ctx context.Context) (*store.SourceStats, error)
	ResetIngestSources(ctx context.Context) error
	RetryIngestSource(ctx context.Context, feedURL string) error
}

// RAG is the retrieval surface over the vector store.
type RAG interface {
	Search(ctx context.Context, query string, limit int) ([]vector.Match, error)
	ClearVectors(ctx context.Context) error
	ReconcileVectors(ctx context.Context) (*pipeline.ReconcileResult, error)
}

// CacheAdmin administers the web-search cache.
type CacheAdmin interface {
	Stats(ctx context.Context) (*searchcache.Stats, error)
	Clear(ctx context.Context) (int, error)
	ClearExpired(ctx context.Context) (int, error)
}

// Taxonomy syncs and exports the controlled vocabulary.
type Taxonomy interface {
	Sync(ctx context.Context, doc *taxonomy.MasterDocument) (*taxonomy.SyncResult, error)
	Export(ctx context.Context, version string) (*taxonomy.MasterDocument, error)
}

// QueueInfo reports ingest queue statistics.
type QueueInfo interface {
	Stats() pipeline.QueueStats
}

// Option configures the Server.
type Option func(*Server)

// WithIntake wires manual ingestion endpoints.
func WithIntake(in Intake) Option {
	return func(s *Server) { s.intake = in }
}

// WithFiles wires file record lookup.
func WithFiles(f Files) Option {
	return func(s *Server) { s.files = f }
}

// WithSources wires feed administration.
func WithSources(src Sources) Option {
	return func(s *Server) { s.sources = src }
}

// WithRAG wires search and vector administration.
func WithRAG(r RAG) Option {
	return func(s *Server) { s.rag = r }
}

// WithCacheAdmin wires cache administration.
func WithCacheAdmin(c CacheAdmin) Option {
	return func(s *Server) { s.cache = c }
}

// WithTaxonomy wires taxonomy sync and export. The file path is the
// default master document when a sync request has no body.
func WithTaxonomy(t Taxonomy, masterFile string) Option {
	return func(s *Server) {
		s.taxonomy = t
		s.taxonomyFile = masterFile
	}
}

// WithQueueInfo wires queue statistics.
func WithQueueInfo(q QueueInfo) Option {
	return func(s *Server) { s.queue = q }
}

// WithMetricsHandler mounts a metrics endpoint.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// Server is the HTTP admin and ingestion server. It is safe for
// concurrent use.
type Server struct {
	mu     sync.RWMutex
	config Config
	router *chi.Mux
	server *http.Server
	logger *slog.Logger

	intake         Intake
	files          Files
	sources        Sources
	rag            RAG
	cache          CacheAdmin
	taxonomy       Taxonomy
	taxonomyFile   string
	queue          QueueInfo
	metricsHandler http.Handler
}

// New creates an HTTP server with the given config and wiring.
func New(config Config, opts ...Option) *Server {
	s := &Server{
		config:         config,
		router:         chi.NewRouter(),
		logger:         slog.Default(),
		metricsHandler: metrics.Handler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Post("/ingest/manual/upload", s.handleUpload)
	s.router.Get("/ingest/files/{id}", s.handleGetFile)

	s.router.Route("/admin", func(r chi.Router) {
		r.Post("/ingest_text", s.handleIngestText)
		r.Post("/ingest_file", s.handleUpload)

		r.Get("/search_rag", s.handleSearchRAG)
		r.Delete("/clear_rag", s.handleClearRAG)
		r.Post("/reconcile_vectors", s.handleReconcileVectors)

		r.Get("/ingest_sources", s.handleListSources)
		r.Get("/ingest_sources/stats", s.handleSourceStats)
		r.Delete("/ingest_sources/reset", s.handleResetSources)
		r.Patch("/ingest_sources/retry/{feedURL}", s.handleRetrySource)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache/clear", s.handleCacheClear)
		r.Delete("/cache/expired", s.handleCacheExpired)

		r.Post("/taxonomy/sync", s.handleTaxonomySync)
		r.Get("/taxonomy/export", s.handleTaxonomyExport)

		r.Get("/queue/stats", s.handleQueueStats)
	})

	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler)
	}
}

// Handler returns the HTTP handler for testing purposes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it is stopped.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", addr)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error; %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()

	if server == nil {
		return nil
	}
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server; %w", err)
	}
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "alive"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
