package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/taxonomy"
)

type sourceResponse struct {
	FeedURL       string     `json:"feed_url"`
	SourceType    string     `json:"source_type"`
	ArticlesAdded int        `json:"articles_added"`
	Partials      int        `json:"partials"`
	Failures      int        `json:"failures"`
	Status        string     `json:"status"`
	AvgConfidence float64    `json:"avg_confidence"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
}

func toSourceResponse(src store.IngestSource) sourceResponse {
	return sourceResponse{
		FeedURL:       src.FeedURL,
		SourceType:    src.SourceType,
		ArticlesAdded: src.ArticlesAdded,
		Partials:      src.Partials,
		Failures:      src.Failures,
		Status:        src.Status,
		AvgConfidence: src.AvgConfidence,
		LastRunAt:     src.LastRunAt,
	}
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if s.sources == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "feed administration not available")
		return
	}

	list, err := s.sources.ListIngestSources(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]sourceResponse, 0, len(list))
	for _, src := range list {
		out = append(out, toSourceResponse(src))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out})
}

func (s *Server) handleSourceStats(w http.ResponseWriter, r *http.Request) {
	if s.sources == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "feed administration not available")
		return
	}

	stats, err := s.sources.IngestSourceStats(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sources":        stats.Sources,
		"articles_added": stats.ArticlesAdded,
		"partials":       stats.Partials,
		"failures":       stats.Failures,
		"avg_confidence": stats.AvgConfidence,
	})
}

func (s *Server) handleResetSources(w http.ResponseWriter, r *http.Request) {
	if s.sources == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "feed administration not available")
		return
	}

	if err := s.sources.ResetIngestSources(r.Context()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "feed metrics reset"})
}

// handleRetrySource clears failure state for one feed. The feed URL
// arrives URL-escaped in the path.
func (s *Server) handleRetrySource(w http.ResponseWriter, r *http.Request) {
	if s.sources == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "feed administration not available")
		return
	}

	feedURL, err := url.PathUnescape(chi.URLParam(r, "feedURL"))
	if err != nil || feedURL == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid feed url")
		return
	}

	if err := s.sources.RetryIngestSource(r.Context(), feedURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "unknown feed url")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "feed scheduled for retry"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "cache not available")
		return
	}

	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "cache not available")
		return
	}

	removed, err := s.cache.Clear(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"removed_entries": removed,
	})
}

func (s *Server) handleCacheExpired(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "cache not available")
		return
	}

	removed, err := s.cache.ClearExpired(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"removed_entries": removed,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTaxonomySync imports a master document. A request body takes
// precedence; with an empty body the configured master file is used.
func (s *Server) handleTaxonomySync(w http.ResponseWriter, r *http.Request) {
	if s.taxonomy == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "taxonomy not available")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var doc *taxonomy.MasterDocument
	switch {
	case len(body) > 0:
		doc, err = taxonomy.ParseMaster(body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	case s.taxonomyFile != "":
		doc, err = taxonomy.LoadMaster(s.taxonomyFile)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		writeJSONError(w, http.StatusBadRequest, "no master document provided or configured")
		return
	}

	result, err := s.taxonomy.Sync(r.Context(), doc)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTaxonomyExport(w http.ResponseWriter, r *http.Request) {
	if s.taxonomy == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "taxonomy not available")
		return
	}

	version := r.URL.Query().Get("version")
	doc, err := s.taxonomy.Export(r.Context(), version)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}
