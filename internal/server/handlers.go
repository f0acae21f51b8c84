package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/pipeline"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
)

type fileResponse struct {
	FileID          string  `json:"file_id"`
	FileName        string  `json:"file_name"`
	FileType        string  `json:"file_type"`
	Status          string  `json:"status"`
	TotalChunks     int     `json:"total_chunks"`
	UniqueChunks    int     `json:"unique_chunks"`
	DuplicateChunks int     `json:"duplicate_chunks"`
	DedupRatio      float64 `json:"dedup_ratio"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

func toFileResponse(f *store.FileRecord) fileResponse {
	return fileResponse{
		FileID:          f.ID,
		FileName:        f.FileName,
		FileType:        f.FileType,
		Status:          string(f.Status),
		TotalChunks:     f.TotalChunks,
		UniqueChunks:    f.UniqueChunks,
		DuplicateChunks: f.DuplicateChunks,
		DedupRatio:      f.DedupRatio,
		ErrorMessage:    f.ErrorMessage,
	}
}

// handleUpload accepts a multipart upload and queues it for ingestion.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.intake == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "ingestion not available")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	rec, err := s.intake.IngestUpload(r.Context(), header.Filename, file)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, toFileResponse(rec))
}

// handleIngestText accepts form fields doc_id, text, category, source.
func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	if s.intake == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "ingestion not available")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid form")
		return
	}

	docID := r.FormValue("doc_id")
	text := r.FormValue("text")
	if docID == "" || text == "" {
		writeJSONError(w, http.StatusBadRequest, "doc_id and text are required")
		return
	}

	rec, err := s.intake.IngestText(r.Context(), docID, text,
		r.FormValue("category"), r.FormValue("source"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, toFileResponse(rec))
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "file lookup not available")
		return
	}

	rec, err := s.files.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "file not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(rec))
}

type searchHit struct {
	SemanticHash string  `json:"semantic_hash"`
	Score        float32 `json:"score"`
	Document     string  `json:"document"`
	FileID       string  `json:"file_id,omitempty"`
	SourceType   string  `json:"source_type,omitempty"`
}

type searchResponse struct {
	Query   string      `json:"query"`
	Results []searchHit `json:"results"`
}

// handleSearchRAG returns the chunks closest to the query.
func (s *Server) handleSearchRAG(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "search not available")
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		writeJSONError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	limit := pipeline.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	matches, err := s.rag.Search(r.Context(), query, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := searchResponse{Query: query, Results: make([]searchHit, 0, len(matches))}
	for _, m := range matches {
		resp.Results = append(resp.Results, searchHit{
			SemanticHash: m.SemanticHash,
			Score:        m.Score,
			Document:     m.Document,
			FileID:       m.FileID,
			SourceType:   m.SourceType,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleClearRAG(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "vector store not available")
		return
	}

	if err := s.rag.ClearVectors(r.Context()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "vector store cleared"})
}

func (s *Server) handleReconcileVectors(w http.ResponseWriter, r *http.Request) {
	if s.rag == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "vector store not available")
		return
	}

	result, err := s.rag.ReconcileVectors(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "queue not available")
		return
	}

	stats := s.queue.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"workers":          stats.WorkerCount,
		"active_workers":   stats.ActiveWorkers,
		"pending":          stats.PendingItems,
		"processed":        stats.ProcessedItems,
		"failed":           stats.FailedItems,
		"avg_process_time": stats.AvgProcessTime.String(),
	})
}
