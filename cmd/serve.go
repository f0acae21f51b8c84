package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/chunker"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/classifier"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/embeddings"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/metrics"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/parsers"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/pipeline"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/poller"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/searchcache"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/server"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/taxonomy"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/vector"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/version"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/watcher"
)

// metricsInterval is how often gauge providers are refreshed.
const metricsInterval = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion service in foreground mode",
	Long: "Run the ingestion service in foreground mode.\n\n" +
		"Starts the worker pool, the upload directory watcher, the feed poller, and the " +
		"HTTP server for manual ingestion and administration. Use standard backgrounding " +
		"methods like '&', 'nohup', or platform-specific service runners (launchd, systemd) " +
		"to run the service in the background.",
	Example: `  # Run in foreground
  maingest serve

  # Run in background
  nohup maingest serve &`,
	PreRunE: validateServe,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func validateServe(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true

	if cfg.Database.ResolveDSN() == "" {
		cmd.SilenceUsage = false
		return fmt.Errorf("no database DSN configured; set database.dsn or %s", cfg.Database.DSNEnv)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	// Create context that cancels on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Paths.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory; %w", err)
	}

	st, err := store.New(ctx, cfg.Database.ResolveDSN(), store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to connect to database; %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations; %w", err)
	}
	if _, err := st.EnsureDefaultBusiness(ctx); err != nil {
		return fmt.Errorf("failed to ensure default business; %w", err)
	}

	pipe, emb, vectors, err := buildPipeline(ctx, st, logger)
	if err != nil {
		return err
	}
	if vectors != nil {
		defer vectors.Close()
	}

	queue := pipeline.NewQueue(pipe,
		pipeline.WithWorkerCount(cfg.Pipeline.Workers),
		pipeline.WithQueueCapacity(cfg.Pipeline.QueueSize),
		pipeline.WithQueueLogger(logger),
	)
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ingest queue; %w", err)
	}
	defer func() { _ = queue.Stop(context.Background()) }()

	// Files stuck in processing from a previous run go back on the queue.
	grace := time.Duration(cfg.Pipeline.StaleAfterMinutes) * time.Minute
	if n, err := pipe.RequeueStale(ctx, grace, queue.Enqueue); err != nil {
		logger.Warn("failed to requeue stale files", "error", err)
	} else if n > 0 {
		logger.Info("requeued stale files", "count", n)
	}

	intake := pipeline.NewIntake(st, queue, cfg.Paths.UploadDir, logger)

	var uploadWatcher *watcher.Watcher
	if cfg.FileWatcher.AutoStart {
		handler := func(ctx context.Context, path string) error {
			_, err := intake.IngestPath(ctx, path, "", "", nil)
			return err
		}
		uploadWatcher, err = watcher.New(cfg.Paths.UploadDir, handler,
			watcher.WithSettleWindow(time.Duration(cfg.FileWatcher.SettleSeconds)*time.Second),
			watcher.WithExtensions(cfg.Formats.Supported),
			watcher.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("failed to create upload watcher; %w", err)
		}
		if err := uploadWatcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start upload watcher; %w", err)
		}
		defer func() { _ = uploadWatcher.Stop() }()
	}

	if cfg.Feeds.Enabled && len(cfg.Feeds.Sources) > 0 {
		feedIngest := func(ctx context.Context, path, feedURL, sourceType string) error {
			_, err := intake.IngestPath(ctx, path, feedURL, sourceType, nil)
			return err
		}
		feedPoller := poller.New(cfg.Paths.UploadDir, cfg.Feeds.Sources, feedIngest, st,
			poller.WithInterval(time.Duration(cfg.Pipeline.FeedPollIntervalMn)*time.Minute),
			poller.WithFetchTimeout(time.Duration(cfg.Pipeline.FeedFetchTimeout)*time.Second),
			poller.WithLogger(logger),
		)
		go feedPoller.Run(ctx)
	}

	cache := connectCache(ctx, logger)
	if cache != nil {
		defer cache.Close()
		go cache.RunCleaner(ctx, time.Hour)
	}

	registry := newTaxonomyRegistry(st, emb, logger)

	collector := metrics.NewCollector(metricsInterval)
	collector.Register("ingest-queue", queue)
	if uploadWatcher != nil {
		collector.Register(uploadWatcher.Name(), uploadWatcher)
	}
	if err := collector.Start(ctx, version.Get().Version); err != nil {
		logger.Warn("failed to start metrics collector", "error", err)
	}
	defer collector.Stop()

	serverOpts := []server.Option{
		server.WithIntake(intake),
		server.WithFiles(st),
		server.WithSources(st),
		server.WithTaxonomy(registry, cfg.Paths.TaxonomyFile),
		server.WithQueueInfo(queue),
		server.WithLogger(logger),
	}
	if vectors != nil {
		serverOpts = append(serverOpts, server.WithRAG(pipe))
	}
	if cache != nil {
		serverOpts = append(serverOpts, server.WithCacheAdmin(cache))
	}

	srv := server.New(server.Config{
		Port:            cfg.HTTP.Port,
		Bind:            cfg.HTTP.Bind,
		ShutdownTimeout: time.Duration(cfg.HTTP.ShutdownTimeout) * time.Second,
	}, serverOpts...)

	slog.Info("starting ingestion service",
		"http_bind", cfg.HTTP.Bind,
		"http_port", cfg.HTTP.Port,
		"upload_dir", cfg.Paths.UploadDir,
		"workers", cfg.Pipeline.Workers,
		"version", version.Get().Version,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error; %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

// buildPipeline assembles the processing pipeline from configuration.
// The embedder and vector store are nil when embeddings are disabled.
func buildPipeline(ctx context.Context, st *store.Store, logger *slog.Logger) (*pipeline.Pipeline, *embeddings.Provider, *vector.QdrantStore, error) {
	profile := cfg.Profiles.ActiveProfile()

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithConfidenceThreshold(profile.ConfidenceThreshold),
		pipeline.WithChunker(chunker.New(chunker.Options{
			MaxChunkSize: cfg.Chunking.MaxChunkSize,
			MinChunkSize: cfg.Chunking.MinSentenceLength,
		})),
	}

	if profile.LLMEnabled {
		gateway := classifier.NewGateway(
			classifier.WithEndpoint(cfg.LLM.Endpoint),
			classifier.WithModel(cfg.LLM.ModelName),
			classifier.WithTemperature(cfg.LLM.Temperature),
			classifier.WithMaxRetries(cfg.LLM.MaxRetries),
			classifier.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
			}),
			classifier.WithLogger(logger),
		)
		opts = append(opts, pipeline.WithClassifier(gateway))
	}

	var (
		emb     *embeddings.Provider
		vectors *vector.QdrantStore
	)
	if cfg.Embeddings.Enabled {
		emb = embeddings.NewProvider(
			embeddings.WithBaseURL(cfg.Embeddings.BaseURL),
			embeddings.WithModel(cfg.Embeddings.Model),
			embeddings.WithDimensions(cfg.Embeddings.Dimensions),
			embeddings.WithRateLimit(cfg.Embeddings.RateLimit),
			embeddings.WithAPIKey(cfg.Embeddings.ResolveAPIKey()),
		)

		var err error
		vectors, err = vector.NewQdrantStore(cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.CollectionName,
			vector.WithDistance(cfg.Vector.DistanceMetric),
			vector.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to vector store; %w", err)
		}
		if err := vectors.EnsureCollection(ctx, emb.Dimensions()); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ensure vector collection; %w", err)
		}
		opts = append(opts, pipeline.WithVectorStore(emb, vectors))
	}

	return pipeline.New(st, parsers.NewDefaultRegistry(), opts...), emb, vectors, nil
}

// connectCache connects to redis and verifies the connection. Returns
// nil when the cache is unreachable; the service runs without it.
func connectCache(ctx context.Context, logger *slog.Logger) *searchcache.Cache {
	cache := searchcache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
		searchcache.WithExpiry(time.Duration(cfg.Redis.ExpiryHours)*time.Hour),
		searchcache.WithLogger(logger),
	)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		logger.Warn("search cache unavailable, continuing without it", "addr", cfg.Redis.Addr, "error", err)
		_ = cache.Close()
		return nil
	}
	return cache
}

// newTaxonomyRegistry builds the category registry, seeding synonyms
// from the master document when one is configured.
func newTaxonomyRegistry(st *store.Store, emb *embeddings.Provider, logger *slog.Logger) *taxonomy.Registry {
	opts := []taxonomy.Option{taxonomy.WithLogger(logger)}
	if emb != nil {
		opts = append(opts, taxonomy.WithEmbedder(emb))
	}
	if cfg.Paths.TaxonomyFile != "" {
		if doc, err := taxonomy.LoadMaster(cfg.Paths.TaxonomyFile); err == nil {
			opts = append(opts, taxonomy.WithSynonyms(doc.SynonymIndex()))
		} else if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to load taxonomy master document", "path", cfg.Paths.TaxonomyFile, "error", err)
		}
	}
	return taxonomy.NewRegistry(st, opts...)
}
