package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/chunker"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/classifier"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/parsers"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/vector"
)

// fakeStore is an in-memory Store for pipeline tests.
type fakeStore struct {
	mu             sync.Mutex
	files          map[string]*store.FileRecord
	existingChunks map[string]bool
	globalIDs      map[string]string
	written        []store.ChunkInput
	duplicateOf    *store.FileRecord
	stale          []store.FileRecord
	requeued       []string
	markedCounts   []int
	allHashes      [][2]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:          map[string]*store.FileRecord{},
		existingChunks: map[string]bool{},
		globalIDs:      map[string]string{},
	}
}

func (f *fakeStore) addFile(rec *store.FileRecord) {
	if rec.Status == "" {
		rec.Status = store.StatusUploaded
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	f.files[rec.ID] = rec
}

func (f *fakeStore) GetFile(ctx context.Context, id string) (*store.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.files[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) AcquireFile(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.files[id]
	if !ok || rec.Status != store.StatusUploaded {
		return store.ErrNotFound
	}
	rec.Status = store.StatusProcessing
	return nil
}

func (f *fakeStore) SetFileHash(ctx context.Context, id, fileHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.files[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.Metadata["file_hash"] = fileHash
	return nil
}

func (f *fakeStore) FindProcessedByHash(ctx context.Context, fileHash, excludeID string) (*store.FileRecord, error) {
	if f.duplicateOf == nil {
		return nil, store.ErrNotFound
	}
	return f.duplicateOf, nil
}

func (f *fakeStore) ExistingChunkHashes(ctx context.Context, fileID string, hashes []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, h := range hashes {
		if f.existingChunks[h] {
			out[h] = true
		}
	}
	return out, nil
}

func (f *fakeStore) MarkDuplicate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[id].Status = store.StatusDuplicate
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[id].Status = store.StatusFailed
	f.files[id].ErrorMessage = errMsg
	return nil
}

func (f *fakeStore) MarkProcessed(ctx context.Context, id string, total, unique, duplicates int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[id].Status = store.StatusProcessed
	f.markedCounts = []int{total, unique, duplicates}
	return nil
}

func (f *fakeStore) UpsertGlobalEntry(ctx context.Context, e *store.GlobalEntry) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.globalIDs[e.SemanticHash]; ok {
		return id, true, nil
	}
	id := "g" + e.SemanticHash[:8]
	f.globalIDs[e.SemanticHash] = id
	return id, false, nil
}

func (f *fakeStore) WriteFileChunks(ctx context.Context, fileID string, businessID *string, chunks []store.ChunkInput) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, chunks...)
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = chunks[i].SemanticHash
	}
	return ids, nil
}

func (f *fakeStore) ListStaleProcessing(ctx context.Context, grace time.Duration) ([]store.FileRecord, error) {
	return f.stale, nil
}

func (f *fakeStore) RequeueFile(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, id)
	if rec, ok := f.files[id]; ok {
		rec.Status = store.StatusUploaded
	}
	return nil
}

func (f *fakeStore) AllHashes(ctx context.Context, fn func(semanticHash, cleanedText string) error) error {
	for _, pair := range f.allHashes {
		if err := fn(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// fakeClassifier returns a canned record and explanation.
type fakeClassifier struct {
	record     classifier.Record
	explainOut string
	explainErr error
	explained  []string
}

func (c *fakeClassifier) Classify(ctx context.Context, text string) classifier.Record {
	return c.record
}

func (c *fakeClassifier) Explain(ctx context.Context, text string) (string, error) {
	c.explained = append(c.explained, text)
	return c.explainOut, c.explainErr
}

// fakeEmbedder returns constant small vectors.
type fakeEmbedder struct {
	calls int
	fail  bool
}

func (e *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embed unavailable")
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 3 }

// fakeVectors records upserts in memory.
type fakeVectors struct {
	mu       sync.Mutex
	existing map[string]bool
	points   []vector.Point
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{existing: map[string]bool{}}
}

func (v *fakeVectors) EnsureCollection(ctx context.Context, dimensions int) error { return nil }

func (v *fakeVectors) Existing(ctx context.Context, hashes []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, h := range hashes {
		if v.existing[h] {
			out[h] = true
		}
	}
	return out, nil
}

func (v *fakeVectors) Upsert(ctx context.Context, points []vector.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.points = append(v.points, points...)
	for _, p := range points {
		v.existing[p.SemanticHash] = true
	}
	return nil
}

func (v *fakeVectors) Search(ctx context.Context, vec []float32, limit int) ([]vector.Match, error) {
	return nil, nil
}

func (v *fakeVectors) Clear(ctx context.Context) error { return nil }

func writeUpload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(st *fakeStore, opts ...Option) *Pipeline {
	return New(st, parsers.NewDefaultRegistry(), opts...)
}

func TestProcessFileHappyPath(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	vecs := newFakeVectors()
	emb := &fakeEmbedder{}
	cls := &fakeClassifier{record: classifier.Record{
		CategoryLevel1:       "Finance",
		CategoryLevel2Sub:    "Budgeting",
		Title:                "Budget note",
		ExtractionConfidence: 0.9,
	}}

	path := writeUpload(t, "note.txt", "Quarterly revenue grew by a wide margin across all regions this period.")
	st.addFile(&store.FileRecord{ID: "f1", FileName: "note.txt", FilePath: path})

	p := newTestPipeline(st, WithClassifier(cls), WithVectorStore(emb, vecs))

	if err := p.ProcessFile(ctx, "f1"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if st.files["f1"].Status != store.StatusProcessed {
		t.Errorf("status = %s, want processed", st.files["f1"].Status)
	}
	if len(st.written) != 1 {
		t.Fatalf("written chunks = %d, want 1", len(st.written))
	}
	chunk := st.written[0]
	if chunk.Category != "Finance" || chunk.Subcategory != "Budgeting" {
		t.Errorf("chunk categories = %q/%q", chunk.Category, chunk.Subcategory)
	}
	if chunk.GlobalContentID == nil || *chunk.GlobalContentID == "" {
		t.Error("chunk missing global content ID")
	}
	if chunk.Reasoning.DataLineageID != chunk.SemanticHash {
		t.Error("reasoning lineage should match the semantic hash")
	}
	if len(vecs.points) != 1 {
		t.Errorf("vector points = %d, want 1", len(vecs.points))
	}
	if got := st.markedCounts; len(got) != 3 || got[0] != 1 || got[1] != 1 || got[2] != 0 {
		t.Errorf("MarkProcessed counts = %v, want [1 1 0]", got)
	}
}

func TestProcessFileWholeFileDuplicate(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.duplicateOf = &store.FileRecord{ID: "earlier"}

	path := writeUpload(t, "dup.txt", "Identical bytes uploaded twice.")
	st.addFile(&store.FileRecord{ID: "f1", FilePath: path})

	p := newTestPipeline(st)

	if err := p.ProcessFile(ctx, "f1"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if st.files["f1"].Status != store.StatusDuplicate {
		t.Errorf("status = %s, want duplicate", st.files["f1"].Status)
	}
	if len(st.written) != 0 {
		t.Errorf("duplicate file wrote %d chunks", len(st.written))
	}
}

func TestProcessFileChunkDedup(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()

	text := strings.Repeat("First paragraph about operations. ", 15) +
		"\n\n" + strings.Repeat("Second paragraph about logistics. ", 15)
	path := writeUpload(t, "ops.txt", text)
	st.addFile(&store.FileRecord{ID: "f1", FilePath: path})

	// Mark every chunk as already present for this file.
	p := newTestPipeline(st)
	pieces := p.chunker.Chunk(text)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(pieces))
	}
	for _, c := range p.prepare(ctx, pieces) {
		st.existingChunks[c.semanticHash] = true
	}

	if err := p.ProcessFile(ctx, "f1"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if st.files["f1"].Status != store.StatusProcessed {
		t.Errorf("status = %s, want processed", st.files["f1"].Status)
	}
	if len(st.written) != 0 {
		t.Errorf("deduped file wrote %d chunks", len(st.written))
	}
	if got := st.markedCounts; got[1] != 0 || got[2] != len(pieces) {
		t.Errorf("MarkProcessed counts = %v, want 0 unique and %d duplicates", got, len(pieces))
	}
}

func TestProcessFileUnsupportedFormat(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()

	path := writeUpload(t, "archive.zip", "binary-ish")
	st.addFile(&store.FileRecord{ID: "f1", FilePath: path})

	p := newTestPipeline(st)

	if err := p.ProcessFile(ctx, "f1"); err == nil {
		t.Fatal("ProcessFile() with unsupported format succeeded")
	}

	if st.files["f1"].Status != store.StatusFailed {
		t.Errorf("status = %s, want failed", st.files["f1"].Status)
	}
	if !strings.Contains(st.files["f1"].ErrorMessage, "unsupported_format") {
		t.Errorf("error message = %q, want unsupported_format identifier", st.files["f1"].ErrorMessage)
	}
}

func TestProcessFileAlreadyAcquired(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.addFile(&store.FileRecord{ID: "f1", FilePath: "missing.txt", Status: store.StatusProcessing})

	p := newTestPipeline(st)

	// A record not in uploaded state belongs to another worker.
	if err := p.ProcessFile(ctx, "f1"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if st.files["f1"].Status != store.StatusProcessing {
		t.Errorf("status = %s, want untouched processing", st.files["f1"].Status)
	}
}

func TestProcessFileVisualInterception(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	cls := &fakeClassifier{
		record: classifier.Record{
			CategoryLevel1:       "Finance",
			CategoryLevel2Sub:    "Reporting",
			ExtractionConfidence: 0.8,
		},
		explainOut: "A narrative description of the quarterly revenue chart and its regional figure breakdown.",
	}

	visual := "The chart and figure below summarize quarterly revenue trends across all regions for review."
	path := writeUpload(t, "visual.txt", visual)
	st.addFile(&store.FileRecord{ID: "f1", FilePath: path})

	p := newTestPipeline(st, WithClassifier(cls))

	if err := p.ProcessFile(ctx, "f1"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if len(cls.explained) != 1 {
		t.Fatalf("Explain calls = %d, want 1", len(cls.explained))
	}
	if len(st.written) != 1 {
		t.Fatalf("written chunks = %d, want 1", len(st.written))
	}
	chunk := st.written[0]
	if chunk.Reasoning.ContentType != "visual" {
		t.Errorf("content type = %q, want visual", chunk.Reasoning.ContentType)
	}
	if chunk.Reasoning.OriginalTextHash == "" {
		t.Error("visual chunk missing original text hash")
	}
	if chunk.Reasoning.OriginalTextHash == chunk.SemanticHash {
		t.Error("original hash should differ from the rewritten chunk's hash")
	}
	if !strings.Contains(chunk.Text, "narrative description") {
		t.Errorf("chunk text = %q, want the rewritten description", chunk.Text)
	}
}

func TestProcessFileVisualRewriteIsRechunked(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()

	sentence := "The revenue figure for the region grew steadily through the period under review. "
	cls := &fakeClassifier{
		record: classifier.Record{
			CategoryLevel1:       "Finance",
			CategoryLevel2Sub:    "Reporting",
			ExtractionConfidence: 0.8,
		},
		explainOut: strings.Repeat(sentence, 30),
	}

	visual := "The chart and figure below summarize quarterly revenue trends across all regions for review."
	path := writeUpload(t, "visual.txt", visual)
	st.addFile(&store.FileRecord{ID: "f1", FilePath: path})

	p := newTestPipeline(st, WithClassifier(cls))

	if err := p.ProcessFile(ctx, "f1"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if len(st.written) < 2 {
		t.Fatalf("written chunks = %d, want the long explanation split up", len(st.written))
	}

	origHash := st.written[0].Reasoning.OriginalTextHash
	if origHash == "" {
		t.Fatal("visual chunk missing original text hash")
	}
	for i, chunk := range st.written {
		if n := utf8.RuneCountInString(chunk.CleanedText); n > chunker.DefaultMaxChunkSize {
			t.Errorf("chunk %d length = %d, want at most %d", i, n, chunker.DefaultMaxChunkSize)
		}
		if chunk.Reasoning.ContentType != "visual" {
			t.Errorf("chunk %d content type = %q, want visual", i, chunk.Reasoning.ContentType)
		}
		if chunk.Reasoning.OriginalTextHash != origHash {
			t.Errorf("chunk %d original hash = %q, want shared %q", i, chunk.Reasoning.OriginalTextHash, origHash)
		}
	}
}

func TestProcessFileConfidenceThreshold(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	cls := &fakeClassifier{record: classifier.Record{
		CategoryLevel1:       "Finance",
		CategoryLevel2Sub:    "Budgeting",
		ExtractionConfidence: 0.3,
	}}

	path := writeUpload(t, "weak.txt", "A vague statement with little classifiable signal in it.")
	st.addFile(&store.FileRecord{ID: "f1", FilePath: path})

	p := newTestPipeline(st, WithClassifier(cls), WithConfidenceThreshold(0.7))

	if err := p.ProcessFile(ctx, "f1"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	chunk := st.written[0]
	if chunk.Category != classifier.CategoryUncategorized || chunk.Subcategory != classifier.SubcategoryGeneral {
		t.Errorf("low-confidence chunk categories = %q/%q, want fallback pair", chunk.Category, chunk.Subcategory)
	}
}

func TestProcessFileVectorFailureIsSoft(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	vecs := newFakeVectors()
	emb := &fakeEmbedder{fail: true}

	path := writeUpload(t, "note.txt", "Vector store outages must not fail the relational write.")
	st.addFile(&store.FileRecord{ID: "f1", FilePath: path})

	p := newTestPipeline(st, WithVectorStore(emb, vecs))

	if err := p.ProcessFile(ctx, "f1"); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if st.files["f1"].Status != store.StatusProcessed {
		t.Errorf("status = %s, want processed despite vector failure", st.files["f1"].Status)
	}
	if len(vecs.points) != 0 {
		t.Errorf("vector points = %d, want 0", len(vecs.points))
	}
}

func TestRequeueStale(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.addFile(&store.FileRecord{ID: "f1", Status: store.StatusProcessing})
	st.addFile(&store.FileRecord{ID: "f2", Status: store.StatusProcessing})
	st.stale = []store.FileRecord{{ID: "f1"}, {ID: "f2"}}

	p := newTestPipeline(st)

	var enqueued []string
	n, err := p.RequeueStale(ctx, 30*time.Minute, func(id string) error {
		enqueued = append(enqueued, id)
		return nil
	})
	if err != nil {
		t.Fatalf("RequeueStale() error = %v", err)
	}
	if n != 2 {
		t.Errorf("requeued = %d, want 2", n)
	}
	if len(enqueued) != 2 {
		t.Errorf("enqueued = %v, want both files", enqueued)
	}
}

func TestReconcileVectors(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	st.allHashes = [][2]string{
		{"hash-a", "text a"},
		{"hash-b", "text b"},
		{"hash-c", "text c"},
	}

	vecs := newFakeVectors()
	vecs.existing["hash-b"] = true
	emb := &fakeEmbedder{}

	p := newTestPipeline(st, WithVectorStore(emb, vecs))

	result, err := p.ReconcileVectors(ctx)
	if err != nil {
		t.Fatalf("ReconcileVectors() error = %v", err)
	}
	if result.Checked != 3 || result.Missing != 2 || result.Restored != 2 {
		t.Errorf("result = %+v, want 3 checked, 2 missing, 2 restored", result)
	}
	if len(vecs.points) != 2 {
		t.Errorf("restored points = %d, want 2", len(vecs.points))
	}
}

func TestQueueProcessesEnqueuedFiles(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()

	path := writeUpload(t, "note.txt", "Queue delivery check with one small file.")
	st.addFile(&store.FileRecord{ID: "f1", FilePath: path})

	p := newTestPipeline(st)
	q := NewQueue(p, WithWorkerCount(2), WithQueueCapacity(4))

	if err := q.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := q.Enqueue("f1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st.mu.Lock()
		status := st.files["f1"].Status
		st.mu.Unlock()
		if status == store.StatusProcessed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if st.files["f1"].Status != store.StatusProcessed {
		t.Errorf("status = %s, want processed", st.files["f1"].Status)
	}
	if stats := q.Stats(); stats.ProcessedItems != 1 {
		t.Errorf("processed items = %d, want 1", stats.ProcessedItems)
	}

	if err := q.Enqueue("f2"); err == nil {
		t.Error("Enqueue() after Stop succeeded")
	}
}
