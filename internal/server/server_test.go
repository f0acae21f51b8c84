package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/pipeline"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/searchcache"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/taxonomy"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/vector"
)

type fakeIntake struct {
	uploads []string
	texts   []string
}

func (f *fakeIntake) IngestUpload(ctx context.Context, fileName string, r io.Reader) (*store.FileRecord, error) {
	f.uploads = append(f.uploads, fileName)
	return &store.FileRecord{ID: "f1", FileName: fileName, Status: store.StatusUploaded}, nil
}

func (f *fakeIntake) IngestText(ctx context.Context, docID, text, category, source string) (*store.FileRecord, error) {
	f.texts = append(f.texts, docID)
	return &store.FileRecord{ID: "f2", FileName: docID + ".txt", Status: store.StatusUploaded}, nil
}

type fakeFiles struct {
	records map[string]*store.FileRecord
}

func (f *fakeFiles) GetFile(ctx context.Context, id string) (*store.FileRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

type fakeRAG struct {
	matches []vector.Match
	cleared bool
}

func (f *fakeRAG) Search(ctx context.Context, query string, limit int) ([]vector.Match, error) {
	return f.matches, nil
}

func (f *fakeRAG) ClearVectors(ctx context.Context) error {
	f.cleared = true
	return nil
}

func (f *fakeRAG) ReconcileVectors(ctx context.Context) (*pipeline.ReconcileResult, error) {
	return &pipeline.ReconcileResult{Checked: 3, Missing: 1, Restored: 1}, nil
}

type fakeSources struct {
	list     []store.IngestSource
	retried  []string
	resetRan bool
}

func (f *fakeSources) ListIngestSources(ctx context.Context) ([]store.IngestSource, error) {
	return f.list, nil
}

func (f *fakeSources) IngestSourceStats(ctx context.Context) (*store.SourceStats, error) {
	return &store.SourceStats{Sources: len(f.list)}, nil
}

func (f *fakeSources) ResetIngestSources(ctx context.Context) error {
	f.resetRan = true
	return nil
}

func (f *fakeSources) RetryIngestSource(ctx context.Context, feedURL string) error {
	for _, src := range f.list {
		if src.FeedURL == feedURL {
			f.retried = append(f.retried, feedURL)
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeCache struct {
	clearRan int
}

func (f *fakeCache) Stats(ctx context.Context) (*searchcache.Stats, error) {
	return &searchcache.Stats{Status: "active", Entries: 2, ExpiryHours: 24}, nil
}

func (f *fakeCache) Clear(ctx context.Context) (int, error) {
	f.clearRan++
	return 2, nil
}

func (f *fakeCache) ClearExpired(ctx context.Context) (int, error) {
	return 1, nil
}

type fakeTaxonomy struct {
	synced *taxonomy.MasterDocument
}

func (f *fakeTaxonomy) Sync(ctx context.Context, doc *taxonomy.MasterDocument) (*taxonomy.SyncResult, error) {
	f.synced = doc
	return &taxonomy.SyncResult{Inserted: len(doc.Flatten())}, nil
}

func (f *fakeTaxonomy) Export(ctx context.Context, version string) (*taxonomy.MasterDocument, error) {
	return &taxonomy.MasterDocument{
		Version:  version,
		Sections: map[string]taxonomy.Section{"categories": {Values: []string{"Finance"}}},
	}, nil
}

func newTestServer(opts ...Option) *Server {
	return New(Config{Port: 0, Bind: "127.0.0.1"}, opts...)
}

func doRequest(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer()
	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp healthResponse
	decodeBody(t, rr, &resp)
	if resp.Status != "alive" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestUploadEndpoints(t *testing.T) {
	intake := &fakeIntake{}
	s := newTestServer(WithIntake(intake))

	for _, path := range []string{"/ingest/manual/upload", "/admin/ingest_file"} {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "report.pdf")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte("%PDF-"))
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rr := doRequest(t, s, req)
		if rr.Code != http.StatusAccepted {
			t.Errorf("POST %s status = %d, body = %s", path, rr.Code, rr.Body.String())
		}
	}

	if len(intake.uploads) != 2 {
		t.Errorf("uploads = %v", intake.uploads)
	}

	// Missing file field.
	req := httptest.NewRequest(http.MethodPost, "/ingest/manual/upload", strings.NewReader("x"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=zzz")
	if rr := doRequest(t, s, req); rr.Code != http.StatusBadRequest {
		t.Errorf("malformed upload status = %d", rr.Code)
	}
}

func TestIngestText(t *testing.T) {
	intake := &fakeIntake{}
	s := newTestServer(WithIntake(intake))

	form := url.Values{
		"doc_id":   {"blog1"},
		"text":     {"AI is transforming marketing content."},
		"category": {"marketing"},
	}
	req := httptest.NewRequest(http.MethodPost, "/admin/ingest_text", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := doRequest(t, s, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(intake.texts) != 1 || intake.texts[0] != "blog1" {
		t.Errorf("texts = %v", intake.texts)
	}

	// Missing required fields.
	req = httptest.NewRequest(http.MethodPost, "/admin/ingest_text", strings.NewReader("doc_id=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rr := doRequest(t, s, req); rr.Code != http.StatusBadRequest {
		t.Errorf("missing text status = %d", rr.Code)
	}
}

func TestGetFile(t *testing.T) {
	files := &fakeFiles{records: map[string]*store.FileRecord{
		"f1": {ID: "f1", FileName: "a.txt", Status: store.StatusProcessed, TotalChunks: 3, UniqueChunks: 2, DuplicateChunks: 1, DedupRatio: 0.33},
	}}
	s := newTestServer(WithFiles(files))

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/ingest/files/f1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp fileResponse
	decodeBody(t, rr, &resp)
	if resp.Status != "processed" || resp.TotalChunks != 3 {
		t.Errorf("response = %+v", resp)
	}

	if rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/ingest/files/zzz", nil)); rr.Code != http.StatusNotFound {
		t.Errorf("unknown file status = %d", rr.Code)
	}
}

func TestSearchRAG(t *testing.T) {
	rag := &fakeRAG{matches: []vector.Match{
		{SemanticHash: "abc", Score: 0.93, Document: "Q4 revenue grew."},
	}}
	s := newTestServer(WithRAG(rag))

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/admin/search_rag?query=revenue", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp searchResponse
	decodeBody(t, rr, &resp)
	if resp.Query != "revenue" || len(resp.Results) != 1 || resp.Results[0].SemanticHash != "abc" {
		t.Errorf("response = %+v", resp)
	}

	if rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/admin/search_rag", nil)); rr.Code != http.StatusBadRequest {
		t.Errorf("missing query status = %d", rr.Code)
	}
	if rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/admin/search_rag?query=x&limit=-1", nil)); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rr.Code)
	}
}

func TestClearAndReconcileRAG(t *testing.T) {
	rag := &fakeRAG{}
	s := newTestServer(WithRAG(rag))

	rr := doRequest(t, s, httptest.NewRequest(http.MethodDelete, "/admin/clear_rag", nil))
	if rr.Code != http.StatusOK || !rag.cleared {
		t.Errorf("clear status = %d, cleared = %v", rr.Code, rag.cleared)
	}

	rr = doRequest(t, s, httptest.NewRequest(http.MethodPost, "/admin/reconcile_vectors", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("reconcile status = %d", rr.Code)
	}
	var result pipeline.ReconcileResult
	decodeBody(t, rr, &result)
	if result.Checked != 3 || result.Restored != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestIngestSourcesEndpoints(t *testing.T) {
	sources := &fakeSources{list: []store.IngestSource{
		{FeedURL: "https://example.com/feed.xml", SourceType: "rss", ArticlesAdded: 4, Status: store.SourceActive},
	}}
	s := newTestServer(WithSources(sources))

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/admin/ingest_sources", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var listResp struct {
		Sources []sourceResponse `json:"sources"`
	}
	decodeBody(t, rr, &listResp)
	if len(listResp.Sources) != 1 || listResp.Sources[0].ArticlesAdded != 4 {
		t.Errorf("list = %+v", listResp)
	}

	if rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/admin/ingest_sources/stats", nil)); rr.Code != http.StatusOK {
		t.Errorf("stats status = %d", rr.Code)
	}

	if rr := doRequest(t, s, httptest.NewRequest(http.MethodDelete, "/admin/ingest_sources/reset", nil)); rr.Code != http.StatusOK {
		t.Errorf("reset status = %d", rr.Code)
	}
	if !sources.resetRan {
		t.Error("reset never reached the store")
	}

	escaped := url.PathEscape("https://example.com/feed.xml")
	rr = doRequest(t, s, httptest.NewRequest(http.MethodPatch, "/admin/ingest_sources/retry/"+escaped, nil))
	if rr.Code != http.StatusOK {
		t.Errorf("retry status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(sources.retried) != 1 {
		t.Errorf("retried = %v", sources.retried)
	}

	rr = doRequest(t, s, httptest.NewRequest(http.MethodPatch, "/admin/ingest_sources/retry/"+url.PathEscape("https://unknown.example.com/feed"), nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown feed status = %d", rr.Code)
	}
}

func TestCacheEndpoints(t *testing.T) {
	cache := &fakeCache{}
	s := newTestServer(WithCacheAdmin(cache))

	rr := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rr.Code)
	}
	var stats searchcache.Stats
	decodeBody(t, rr, &stats)
	if stats.Entries != 2 {
		t.Errorf("stats = %+v", stats)
	}

	rr = doRequest(t, s, httptest.NewRequest(http.MethodDelete, "/admin/cache/clear", nil))
	if rr.Code != http.StatusOK || cache.clearRan != 1 {
		t.Errorf("clear status = %d, ran = %d", rr.Code, cache.clearRan)
	}

	rr = doRequest(t, s, httptest.NewRequest(http.MethodDelete, "/admin/cache/expired", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("expired status = %d", rr.Code)
	}
}

func TestTaxonomyEndpoints(t *testing.T) {
	tax := &fakeTaxonomy{}
	s := newTestServer(WithTaxonomy(tax, ""))

	body := `{"version": "1.0", "categories": {"values": ["Finance", "Marketing"]}}`
	rr := doRequest(t, s, httptest.NewRequest(http.MethodPost, "/admin/taxonomy/sync", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var result taxonomy.SyncResult
	decodeBody(t, rr, &result)
	if result.Inserted != 2 {
		t.Errorf("result = %+v", result)
	}
	if tax.synced == nil || tax.synced.Version != "1.0" {
		t.Errorf("synced doc = %+v", tax.synced)
	}

	// No body and no configured master file.
	if rr := doRequest(t, s, httptest.NewRequest(http.MethodPost, "/admin/taxonomy/sync", nil)); rr.Code != http.StatusBadRequest {
		t.Errorf("empty sync status = %d", rr.Code)
	}

	rr = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/admin/taxonomy/export?version=2.0", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	var doc map[string]any
	decodeBody(t, rr, &doc)
	if doc["version"] != "2.0" {
		t.Errorf("export = %v", doc)
	}
}

func TestUnwiredEndpointsReturn503(t *testing.T) {
	s := newTestServer()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/admin/ingest_text"},
		{http.MethodGet, "/admin/search_rag?query=x"},
		{http.MethodDelete, "/admin/clear_rag"},
		{http.MethodGet, "/admin/ingest_sources"},
		{http.MethodGet, "/admin/cache/stats"},
		{http.MethodPost, "/admin/taxonomy/sync"},
		{http.MethodGet, "/admin/queue/stats"},
	}
	for _, p := range paths {
		rr := doRequest(t, s, httptest.NewRequest(p.method, p.path, nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s status = %d, want 503", p.method, p.path, rr.Code)
		}
	}
}
