package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// validDistanceMetrics lists recognized vector distance metrics.
var validDistanceMetrics = map[string]bool{
	"cosine": true,
	"euclid": true,
	"dot":    true,
}

// Validate checks the configuration for errors.
// Returns ValidationErrors if validation fails.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "http.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.HTTP.Port),
		})
	}

	if cfg.HTTP.Bind == "" {
		errs = append(errs, ValidationError{
			Field:   "http.bind",
			Message: "must not be empty",
		})
	}

	if cfg.HTTP.ShutdownTimeout < 1 {
		errs = append(errs, ValidationError{
			Field:   "http.shutdown_timeout",
			Message: fmt.Sprintf("must be at least 1 second, got %d", cfg.HTTP.ShutdownTimeout),
		})
	}

	if cfg.LLM.Endpoint == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.endpoint",
			Message: "must not be empty",
		})
	}

	if cfg.LLM.ModelName == "" {
		errs = append(errs, ValidationError{
			Field:   "llm.model_name",
			Message: "must not be empty",
		})
	}

	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %v", cfg.LLM.Temperature),
		})
	}

	if cfg.LLM.MaxRetries < 0 {
		errs = append(errs, ValidationError{
			Field:   "llm.max_retries",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.LLM.MaxRetries),
		})
	}

	if cfg.LLM.TimeoutSec < 1 {
		errs = append(errs, ValidationError{
			Field:   "llm.timeout",
			Message: fmt.Sprintf("must be at least 1 second, got %d", cfg.LLM.TimeoutSec),
		})
	}

	// Validate embeddings config (only if enabled)
	if cfg.Embeddings.Enabled {
		if cfg.Embeddings.BaseURL == "" {
			errs = append(errs, ValidationError{
				Field:   "embeddings.base_url",
				Message: "must not be empty when embeddings are enabled",
			})
		}

		if cfg.Embeddings.Model == "" {
			errs = append(errs, ValidationError{
				Field:   "embeddings.model",
				Message: "must not be empty when embeddings are enabled",
			})
		}

		if cfg.Embeddings.Dimensions < 1 {
			errs = append(errs, ValidationError{
				Field:   "embeddings.dimensions",
				Message: fmt.Sprintf("must be at least 1, got %d", cfg.Embeddings.Dimensions),
			})
		}

		if cfg.Embeddings.RateLimit < 1 {
			errs = append(errs, ValidationError{
				Field:   "embeddings.rate_limit",
				Message: fmt.Sprintf("must be at least 1, got %d", cfg.Embeddings.RateLimit),
			})
		}
	}

	if cfg.Vector.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "vector.host",
			Message: "must not be empty",
		})
	}

	if cfg.Vector.Port < 1 || cfg.Vector.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "vector.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Vector.Port),
		})
	}

	if cfg.Vector.CollectionName == "" {
		errs = append(errs, ValidationError{
			Field:   "vector.collection_name",
			Message: "must not be empty",
		})
	}

	if !validDistanceMetrics[cfg.Vector.DistanceMetric] {
		errs = append(errs, ValidationError{
			Field:   "vector.distance_metric",
			Message: fmt.Sprintf("must be one of: cosine, euclid, dot; got %q", cfg.Vector.DistanceMetric),
		})
	}

	if cfg.Chunking.MaxChunkSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "chunking.max_chunk_size",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Chunking.MaxChunkSize),
		})
	}

	if cfg.Chunking.MinSentenceLength < 0 {
		errs = append(errs, ValidationError{
			Field:   "chunking.min_sentence_length",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Chunking.MinSentenceLength),
		})
	}

	if cfg.Chunking.MinSentenceLength >= cfg.Chunking.MaxChunkSize {
		errs = append(errs, ValidationError{
			Field:   "chunking.min_sentence_length",
			Message: fmt.Sprintf("must be below max_chunk_size %d, got %d",
				cfg.Chunking.MaxChunkSize, cfg.Chunking.MinSentenceLength),
		})
	}

	if cfg.Chunking.OverlapRatio < 0 || cfg.Chunking.OverlapRatio >= 1 {
		errs = append(errs, ValidationError{
			Field:   "chunking.overlap_ratio",
			Message: fmt.Sprintf("must be in [0, 1), got %v", cfg.Chunking.OverlapRatio),
		})
	}

	if cfg.Paths.UploadDir == "" {
		errs = append(errs, ValidationError{
			Field:   "paths.upload_dir",
			Message: "must not be empty",
		})
	}

	if len(cfg.Formats.Supported) == 0 {
		errs = append(errs, ValidationError{
			Field:   "formats.supported",
			Message: "must list at least one extension",
		})
	}

	if cfg.Pipeline.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.workers",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Pipeline.Workers),
		})
	}

	if cfg.Pipeline.QueueSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.queue_size",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Pipeline.QueueSize),
		})
	}

	for i, src := range cfg.Feeds.Sources {
		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("feeds.sources[%d]", i),
				Message: fmt.Sprintf("must be an http(s) URL, got %q", src),
			})
		}
	}

	if cfg.Redis.ExpiryHours < 1 {
		errs = append(errs, ValidationError{
			Field:   "redis.expiry_hours",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Redis.ExpiryHours),
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
