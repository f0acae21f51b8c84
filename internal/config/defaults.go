package config

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultLogFile  = "logs/maingest.log"

	// HTTP server defaults.
	DefaultHTTPPort            = 7600
	DefaultHTTPBind            = "127.0.0.1"
	DefaultHTTPShutdownTimeout = 30 // seconds

	// Database defaults.
	DefaultDatabaseDSNEnv = "MAINGEST_DATABASE_URL"

	// LLM defaults.
	DefaultLLMEndpoint      = "http://localhost:11434/api/generate"
	DefaultLLMModel         = "llama3.1:8b"
	DefaultLLMTemperature   = 0.2
	DefaultLLMMaxTokens     = 4096
	DefaultLLMMaxRetries    = 2
	DefaultLLMTimeout       = 180 // seconds
	DefaultLLMPromptVersion = "v2"

	// Embeddings defaults.
	DefaultEmbeddingsEnabled    = true
	DefaultEmbeddingsBaseURL    = "https://api.openai.com/v1"
	DefaultEmbeddingsModel      = "text-embedding-3-small"
	DefaultEmbeddingsDimensions = 1536
	DefaultEmbeddingsRateLimit  = 300 // requests per minute
	DefaultEmbeddingsAPIKeyEnv  = "OPENAI_API_KEY"

	// Vector store defaults.
	DefaultVectorHost           = "localhost"
	DefaultVectorPort           = 6334
	DefaultVectorCollection     = "content_chunks"
	DefaultVectorDistanceMetric = "cosine"

	// Redis defaults.
	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisDB          = 0
	DefaultRedisExpiryHours = 24

	// Chunking defaults.
	DefaultChunkingMaxChunkSize       = 600
	DefaultChunkingMinSentenceLength  = 150
	DefaultChunkingOverlapRatio       = 0.15
	DefaultChunkingSemantic           = true
	DefaultChunkingRecursiveThreshold = 600

	// Path defaults.
	DefaultPathsUploadDir    = "data/uploads"
	DefaultPathsLogsDir      = "logs"
	DefaultPathsTaxonomyFile = "data/taxonomy_master.json"

	// File watcher defaults.
	DefaultWatcherAutoStart     = true
	DefaultWatcherSettleSeconds = 2

	// Feed poller defaults.
	DefaultFeedsEnabled = true

	// Pipeline defaults.
	DefaultPipelineWorkers          = 4
	DefaultPipelineQueueSize        = 64
	DefaultPipelineStaleAfterMin    = 30
	DefaultPipelineFeedFetchTimeout = 30 // seconds
	DefaultPipelineFeedPollInterval = 15 // minutes

	// Profile defaults.
	DefaultActiveProfile = "standard"
)

// DefaultSupportedFormats lists the extensions the parsers accept.
var DefaultSupportedFormats = []string{".pdf", ".docx", ".txt", ".json", ".csv", ".xlsx", ".xls"}

// NewDefaultConfig returns a Config populated with defaults only.
func NewDefaultConfig() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		LogFile:  DefaultLogFile,
		HTTP: HTTPConfig{
			Port:            DefaultHTTPPort,
			Bind:            DefaultHTTPBind,
			ShutdownTimeout: DefaultHTTPShutdownTimeout,
		},
		Database: DatabaseConfig{
			DSNEnv: DefaultDatabaseDSNEnv,
		},
		LLM: LLMConfig{
			Endpoint:      DefaultLLMEndpoint,
			ModelName:     DefaultLLMModel,
			Temperature:   DefaultLLMTemperature,
			MaxTokens:     DefaultLLMMaxTokens,
			MaxRetries:    DefaultLLMMaxRetries,
			TimeoutSec:    DefaultLLMTimeout,
			PromptVersion: DefaultLLMPromptVersion,
		},
		Embeddings: EmbeddingsConfig{
			Enabled:    DefaultEmbeddingsEnabled,
			BaseURL:    DefaultEmbeddingsBaseURL,
			Model:      DefaultEmbeddingsModel,
			Dimensions: DefaultEmbeddingsDimensions,
			RateLimit:  DefaultEmbeddingsRateLimit,
			APIKeyEnv:  DefaultEmbeddingsAPIKeyEnv,
		},
		Vector: VectorConfig{
			Host:           DefaultVectorHost,
			Port:           DefaultVectorPort,
			CollectionName: DefaultVectorCollection,
			DistanceMetric: DefaultVectorDistanceMetric,
		},
		Redis: RedisConfig{
			Addr:        DefaultRedisAddr,
			DB:          DefaultRedisDB,
			ExpiryHours: DefaultRedisExpiryHours,
		},
		Chunking: ChunkingConfig{
			MaxChunkSize:       DefaultChunkingMaxChunkSize,
			MinSentenceLength:  DefaultChunkingMinSentenceLength,
			OverlapRatio:       DefaultChunkingOverlapRatio,
			SemanticChunking:   DefaultChunkingSemantic,
			RecursiveThreshold: DefaultChunkingRecursiveThreshold,
		},
		Paths: PathsConfig{
			UploadDir:    DefaultPathsUploadDir,
			LogsDir:      DefaultPathsLogsDir,
			TaxonomyFile: DefaultPathsTaxonomyFile,
		},
		FileWatcher: FileWatcherConfig{
			AutoStart:     DefaultWatcherAutoStart,
			SettleSeconds: DefaultWatcherSettleSeconds,
		},
		Formats: FormatsConfig{
			Supported: append([]string(nil), DefaultSupportedFormats...),
		},
		Feeds: FeedsConfig{
			Enabled: DefaultFeedsEnabled,
		},
		Pipeline: PipelineConfig{
			Workers:            DefaultPipelineWorkers,
			QueueSize:          DefaultPipelineQueueSize,
			StaleAfterMinutes:  DefaultPipelineStaleAfterMin,
			FeedFetchTimeout:   DefaultPipelineFeedFetchTimeout,
			FeedPollIntervalMn: DefaultPipelineFeedPollInterval,
		},
		Profiles: ProfilesConfig{
			Active:   DefaultActiveProfile,
			Profiles: defaultProfiles(),
		},
	}
}

func defaultProfiles() map[string]Profile {
	return map[string]Profile{
		"standard": {
			LLMEnabled:          true,
			SemanticChunking:    true,
			RecursiveFallback:   true,
			ConfidenceThreshold: 0.5,
		},
		"fast": {
			LLMEnabled:          false,
			SemanticChunking:    false,
			RecursiveFallback:   true,
			ConfidenceThreshold: 0.0,
		},
		"strict": {
			LLMEnabled:          true,
			SemanticChunking:    true,
			RecursiveFallback:   false,
			ConfidenceThreshold: 0.7,
		},
	}
}
