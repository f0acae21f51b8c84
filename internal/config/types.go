package config

import "os"

// Config is the root configuration structure for the application.
type Config struct {
	LogLevel    string            `yaml:"log_level" mapstructure:"log_level"`
	LogFile     string            `yaml:"log_file" mapstructure:"log_file"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Database    DatabaseConfig    `yaml:"database" mapstructure:"database"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" mapstructure:"embeddings"`
	Vector      VectorConfig      `yaml:"vector" mapstructure:"vector"`
	Redis       RedisConfig       `yaml:"redis" mapstructure:"redis"`
	Chunking    ChunkingConfig    `yaml:"chunking" mapstructure:"chunking"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	FileWatcher FileWatcherConfig `yaml:"file_watcher" mapstructure:"file_watcher"`
	Formats     FormatsConfig     `yaml:"formats" mapstructure:"formats"`
	Feeds       FeedsConfig       `yaml:"feeds" mapstructure:"feeds"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Profiles    ProfilesConfig    `yaml:"profiles" mapstructure:"profiles"`
}

// HTTPConfig holds the admin/ingest HTTP server configuration.
type HTTPConfig struct {
	Port            int    `yaml:"port" mapstructure:"port"`
	Bind            string `yaml:"bind" mapstructure:"bind"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
	DSNEnv string `yaml:"dsn_env" mapstructure:"dsn_env"`
}

// ResolveDSN returns the DSN from config or falls back to environment variable.
func (c *DatabaseConfig) ResolveDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return os.Getenv(c.DSNEnv)
}

// LLMConfig holds the local classification model configuration.
type LLMConfig struct {
	Endpoint      string  `yaml:"endpoint" mapstructure:"endpoint"`
	ModelName     string  `yaml:"model_name" mapstructure:"model_name"`
	Temperature   float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSec    int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	PromptVersion string  `yaml:"prompt_version" mapstructure:"prompt_version"`
}

// EmbeddingsConfig holds embeddings provider configuration.
type EmbeddingsConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	Model      string  `yaml:"model" mapstructure:"model"`
	Dimensions int     `yaml:"dimensions" mapstructure:"dimensions"`
	RateLimit  int     `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per minute
	APIKey     *string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv  string  `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// ResolveAPIKey returns the API key from config or falls back to environment variable.
func (c *EmbeddingsConfig) ResolveAPIKey() string {
	if c.APIKey != nil && *c.APIKey != "" {
		return *c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

// VectorConfig holds qdrant configuration.
type VectorConfig struct {
	Host           string `yaml:"host" mapstructure:"host"`
	Port           int    `yaml:"port" mapstructure:"port"`
	CollectionName string `yaml:"collection_name" mapstructure:"collection_name"`
	DistanceMetric string `yaml:"distance_metric" mapstructure:"distance_metric"`
}

// RedisConfig holds the search cache configuration.
type RedisConfig struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	Password    string `yaml:"password" mapstructure:"password"`
	DB          int    `yaml:"db" mapstructure:"db"`
	ExpiryHours int    `yaml:"expiry_hours" mapstructure:"expiry_hours"`
}

// ChunkingConfig holds the semantic chunker configuration.
type ChunkingConfig struct {
	MaxChunkSize       int     `yaml:"max_chunk_size" mapstructure:"max_chunk_size"`
	MinSentenceLength  int     `yaml:"min_sentence_length" mapstructure:"min_sentence_length"`
	OverlapRatio       float64 `yaml:"overlap_ratio" mapstructure:"overlap_ratio"`
	SemanticChunking   bool    `yaml:"semantic_chunking" mapstructure:"semantic_chunking"`
	RecursiveThreshold int     `yaml:"recursive_threshold" mapstructure:"recursive_threshold"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	UploadDir    string `yaml:"upload_dir" mapstructure:"upload_dir"`
	LogsDir      string `yaml:"logs_dir" mapstructure:"logs_dir"`
	TaxonomyFile string `yaml:"taxonomy_file" mapstructure:"taxonomy_file"`
}

// FileWatcherConfig holds the upload directory watcher configuration.
type FileWatcherConfig struct {
	AutoStart     bool `yaml:"auto_start" mapstructure:"auto_start"`
	SettleSeconds int  `yaml:"settle_seconds" mapstructure:"settle_seconds"`
}

// FeedsConfig lists the RSS and JSON API sources the poller visits.
type FeedsConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Sources []string `yaml:"sources,flow" mapstructure:"sources"`
}

// FormatsConfig lists the file extensions the parsers accept.
type FormatsConfig struct {
	Supported []string `yaml:"supported,flow" mapstructure:"supported"`
}

// PipelineConfig holds orchestrator worker configuration.
type PipelineConfig struct {
	Workers            int `yaml:"workers" mapstructure:"workers"`
	QueueSize          int `yaml:"queue_size" mapstructure:"queue_size"`
	StaleAfterMinutes  int `yaml:"stale_after_minutes" mapstructure:"stale_after_minutes"`
	FeedFetchTimeout   int `yaml:"feed_fetch_timeout" mapstructure:"feed_fetch_timeout"` // seconds
	FeedPollIntervalMn int `yaml:"feed_poll_interval_minutes" mapstructure:"feed_poll_interval_minutes"`
}

// ProfilesConfig selects a named processing profile.
type ProfilesConfig struct {
	Active   string             `yaml:"active" mapstructure:"active"`
	Profiles map[string]Profile `yaml:"profiles" mapstructure:"profiles"`
}

// Profile is one named processing mode.
type Profile struct {
	LLMEnabled          bool    `yaml:"llm_enabled" mapstructure:"llm_enabled"`
	SemanticChunking    bool    `yaml:"semantic_chunking" mapstructure:"semantic_chunking"`
	RecursiveFallback   bool    `yaml:"recursive_fallback" mapstructure:"recursive_fallback"`
	ConfidenceThreshold float64 `yaml:"classification_confidence_threshold" mapstructure:"classification_confidence_threshold"`
}

// ActiveProfile returns the selected profile, or the standard profile
// when the configured name is unknown.
func (c *ProfilesConfig) ActiveProfile() Profile {
	if p, ok := c.Profiles[c.Active]; ok {
		return p
	}
	return Profile{
		LLMEnabled:          true,
		SemanticChunking:    true,
		RecursiveFallback:   true,
		ConfidenceThreshold: 0.5,
	}
}
