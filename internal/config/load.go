package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and returns the typed configuration.
// It searches for configuration files in priority order:
//  1. Directory specified by MAINGEST_CONFIG_DIR environment variable
//  2. ~/.config/maingest/
//  3. Current working directory (.)
//
// If no config file is found, defaults apply. If a config file exists
// but is invalid, returns a validation error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MAINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	if envPath := os.Getenv("MAINGEST_CONFIG_DIR"); envPath != "" {
		v.AddConfigPath(envPath)
	}

	if home := os.Getenv("HOME"); home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "maingest"))
	}

	v.AddConfigPath(".")

	err := v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config; %w", err)
		}
	}

	return unmarshalConfig(v)
}

// LoadFromPath reads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MAINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read config from %s; %w", path, err)
	}

	return unmarshalConfig(v)
}

// LoadWithDefaults returns configuration using defaults only.
func LoadWithDefaults() *Config {
	cfg := NewDefaultConfig()
	return &cfg
}

// unmarshalConfig converts viper config to the typed Config struct.
func unmarshalConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	err := v.Unmarshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setViperDefaults registers all default configuration values with a viper instance.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", DefaultLogFile)

	// HTTP defaults
	v.SetDefault("http.port", DefaultHTTPPort)
	v.SetDefault("http.bind", DefaultHTTPBind)
	v.SetDefault("http.shutdown_timeout", DefaultHTTPShutdownTimeout)

	// Database defaults
	v.SetDefault("database.dsn_env", DefaultDatabaseDSNEnv)

	// LLM defaults
	v.SetDefault("llm.endpoint", DefaultLLMEndpoint)
	v.SetDefault("llm.model_name", DefaultLLMModel)
	v.SetDefault("llm.temperature", DefaultLLMTemperature)
	v.SetDefault("llm.max_tokens", DefaultLLMMaxTokens)
	v.SetDefault("llm.max_retries", DefaultLLMMaxRetries)
	v.SetDefault("llm.timeout", DefaultLLMTimeout)
	v.SetDefault("llm.prompt_version", DefaultLLMPromptVersion)

	// Embeddings defaults
	v.SetDefault("embeddings.enabled", DefaultEmbeddingsEnabled)
	v.SetDefault("embeddings.base_url", DefaultEmbeddingsBaseURL)
	v.SetDefault("embeddings.model", DefaultEmbeddingsModel)
	v.SetDefault("embeddings.dimensions", DefaultEmbeddingsDimensions)
	v.SetDefault("embeddings.rate_limit", DefaultEmbeddingsRateLimit)
	v.SetDefault("embeddings.api_key_env", DefaultEmbeddingsAPIKeyEnv)

	// Vector store defaults
	v.SetDefault("vector.host", DefaultVectorHost)
	v.SetDefault("vector.port", DefaultVectorPort)
	v.SetDefault("vector.collection_name", DefaultVectorCollection)
	v.SetDefault("vector.distance_metric", DefaultVectorDistanceMetric)

	// Redis defaults
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.db", DefaultRedisDB)
	v.SetDefault("redis.expiry_hours", DefaultRedisExpiryHours)

	// Chunking defaults
	v.SetDefault("chunking.max_chunk_size", DefaultChunkingMaxChunkSize)
	v.SetDefault("chunking.min_sentence_length", DefaultChunkingMinSentenceLength)
	v.SetDefault("chunking.overlap_ratio", DefaultChunkingOverlapRatio)
	v.SetDefault("chunking.semantic_chunking", DefaultChunkingSemantic)
	v.SetDefault("chunking.recursive_threshold", DefaultChunkingRecursiveThreshold)

	// Path defaults
	v.SetDefault("paths.upload_dir", DefaultPathsUploadDir)
	v.SetDefault("paths.logs_dir", DefaultPathsLogsDir)
	v.SetDefault("paths.taxonomy_file", DefaultPathsTaxonomyFile)

	// File watcher defaults
	v.SetDefault("file_watcher.auto_start", DefaultWatcherAutoStart)
	v.SetDefault("file_watcher.settle_seconds", DefaultWatcherSettleSeconds)

	// Format defaults
	v.SetDefault("formats.supported", DefaultSupportedFormats)

	// Feed poller defaults
	v.SetDefault("feeds.enabled", DefaultFeedsEnabled)
	v.SetDefault("feeds.sources", []string{})

	// Pipeline defaults
	v.SetDefault("pipeline.workers", DefaultPipelineWorkers)
	v.SetDefault("pipeline.queue_size", DefaultPipelineQueueSize)
	v.SetDefault("pipeline.stale_after_minutes", DefaultPipelineStaleAfterMin)
	v.SetDefault("pipeline.feed_fetch_timeout", DefaultPipelineFeedFetchTimeout)
	v.SetDefault("pipeline.feed_poll_interval_minutes", DefaultPipelineFeedPollInterval)

	// Profile defaults
	v.SetDefault("profiles.active", DefaultActiveProfile)
	for name, p := range defaultProfiles() {
		v.SetDefault("profiles.profiles."+name+".llm_enabled", p.LLMEnabled)
		v.SetDefault("profiles.profiles."+name+".semantic_chunking", p.SemanticChunking)
		v.SetDefault("profiles.profiles."+name+".recursive_fallback", p.RecursiveFallback)
		v.SetDefault("profiles.profiles."+name+".classification_confidence_threshold", p.ConfidenceThreshold)
	}
}
