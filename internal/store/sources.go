package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RecordFeedRun upserts one poll outcome for a feed. Counters
// accumulate across runs; avg_confidence is replaced by the latest
// run's value when the run added articles.
func (s *Store) RecordFeedRun(ctx context.Context, feedURL, sourceType string, added, partials, failures int, avgConfidence float64, status string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_sources (id, feed_url, source_type, articles_added, partials, failures, status, avg_confidence, last_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (feed_url) DO UPDATE SET
			articles_added = ingest_sources.articles_added + EXCLUDED.articles_added,
			partials = ingest_sources.partials + EXCLUDED.partials,
			failures = ingest_sources.failures + EXCLUDED.failures,
			status = EXCLUDED.status,
			avg_confidence = CASE WHEN EXCLUDED.articles_added > 0 THEN EXCLUDED.avg_confidence ELSE ingest_sources.avg_confidence END,
			last_run_at = now(),
			updated_at = now()`,
		uuid.NewString(), feedURL, sourceType, added, partials, failures, status, avgConfidence,
	)
	if err != nil {
		return fmt.Errorf("failed to record feed run; %w", err)
	}
	return nil
}

// ListIngestSources returns every feed with its metrics.
func (s *Store) ListIngestSources(ctx context.Context) ([]IngestSource, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, feed_url, source_type, articles_added, partials, failures,
			status, avg_confidence, last_run_at, created_at, updated_at
		FROM ingest_sources
		ORDER BY feed_url`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest sources; %w", err)
	}
	defer rows.Close()

	var out []IngestSource
	for rows.Next() {
		var src IngestSource
		err := rows.Scan(
			&src.ID, &src.FeedURL, &src.SourceType, &src.ArticlesAdded, &src.Partials,
			&src.Failures, &src.Status, &src.AvgConfidence, &src.LastRunAt,
			&src.CreatedAt, &src.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest source; %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// IngestSourceStats aggregates counters across all feeds.
func (s *Store) IngestSourceStats(ctx context.Context) (*SourceStats, error) {
	var stats SourceStats
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
			coalesce(sum(articles_added), 0),
			coalesce(sum(partials), 0),
			coalesce(sum(failures), 0),
			coalesce(avg(avg_confidence), 0)
		FROM ingest_sources`,
	).Scan(&stats.Sources, &stats.ArticlesAdded, &stats.Partials, &stats.Failures, &stats.AvgConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate source stats; %w", err)
	}
	return &stats, nil
}

// ResetIngestSources zeroes all feed counters and statuses.
func (s *Store) ResetIngestSources(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ingest_sources SET articles_added = 0, partials = 0, failures = 0,
			status = $1, avg_confidence = 0, updated_at = now()`,
		SourceIdle,
	)
	if err != nil {
		return fmt.Errorf("failed to reset ingest sources; %w", err)
	}
	return nil
}

// RetryIngestSource clears failure state for one feed so the next poll
// retries it.
func (s *Store) RetryIngestSource(ctx context.Context, feedURL string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_sources SET status = $2, failures = 0, updated_at = now()
		WHERE feed_url = $1`,
		feedURL, SourceIdle,
	)
	if err != nil {
		return fmt.Errorf("failed to retry ingest source; %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
