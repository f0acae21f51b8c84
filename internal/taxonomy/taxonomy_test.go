package taxonomy

import (
	"context"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/store"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "Marketing", b: "marketing", want: 1},
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "finance", b: "", want: 0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}

	// Partial overlap lands strictly between 0 and 1 and is symmetric.
	s1 := Similarity("marketing analytics", "marketing operations")
	if s1 <= 0 || s1 >= 1 {
		t.Errorf("partial overlap similarity = %v, want in (0, 1)", s1)
	}
	if s2 := Similarity("marketing operations", "marketing analytics"); math.Abs(s1-s2) > 1e-9 {
		t.Errorf("similarity not symmetric: %v vs %v", s1, s2)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	if got := CosineSimilarity(a, []float32{1, 0, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors cosine = %v, want 1", got)
	}
	if got := CosineSimilarity(a, []float32{0, 1, 0}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors cosine = %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{0, 1}); got != 0 {
		t.Errorf("mismatched lengths cosine = %v, want 0", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors cosine = %v, want 0", got)
	}
}

func TestParseMaster(t *testing.T) {
	data := []byte(`{
		"version": "2.1",
		"last_updated": "2025-11-02",
		"description": "Enterprise taxonomy",
		"finance": {
			"values": ["Budgeting", "Forecasting"],
			"synonyms": {"Budgeting": ["budget planning"]}
		},
		"marketing": {
			"values": ["Campaigns"]
		}
	}`)

	doc, err := ParseMaster(data)
	if err != nil {
		t.Fatalf("ParseMaster() error = %v", err)
	}
	if doc.Version != "2.1" {
		t.Errorf("Version = %q, want 2.1", doc.Version)
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("Sections = %d, want 2", len(doc.Sections))
	}

	entries := doc.Flatten()
	want := []Entry{
		{Group: "finance", Name: "Budgeting"},
		{Group: "finance", Name: "Forecasting"},
		{Group: "marketing", Name: "Campaigns"},
	}
	if len(entries) != len(want) {
		t.Fatalf("Flatten() = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("Flatten()[%d] = %v, want %v", i, entries[i], want[i])
		}
	}

	syns := doc.SynonymIndex()
	if got := syns["Budgeting"]; len(got) != 1 || got[0] != "budget planning" {
		t.Errorf("SynonymIndex()[Budgeting] = %v", got)
	}
}

// fakeCatalog tracks categories in memory.
type fakeCatalog struct {
	cats map[string]store.Category // key: group|name
	next int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{cats: map[string]store.Category{}}
}

func (f *fakeCatalog) EnsureCategory(ctx context.Context, name string) (string, error) {
	for _, c := range f.cats {
		if strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}
	f.next++
	c := store.Category{ID: strconv.Itoa(f.next), Name: name, Group: "content"}
	f.cats["content|"+name] = c
	return c.ID, nil
}

func (f *fakeCatalog) SyncCategory(ctx context.Context, group, name, description string) (string, error) {
	key := group + "|" + name
	if existing, ok := f.cats[key]; ok {
		if existing.Description == description {
			return "skipped", nil
		}
		existing.Description = description
		f.cats[key] = existing
		return "updated", nil
	}
	f.next++
	f.cats[key] = store.Category{ID: strconv.Itoa(f.next), Name: name, Group: group, Description: description}
	return "inserted", nil
}

func (f *fakeCatalog) ListCategories(ctx context.Context) ([]store.Category, error) {
	var out []store.Category
	for _, c := range f.cats {
		out = append(out, c)
	}
	return out, nil
}

func TestResolveOrCreate(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	r := NewRegistry(catalog)

	id1, err := r.ResolveOrCreate(ctx, "Marketing")
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}

	// Case-insensitive resolution returns the same category.
	id2, err := r.ResolveOrCreate(ctx, "marketing")
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("case-insensitive resolve returned different IDs: %s vs %s", id1, id2)
	}

	// Empty name resolves to the fallback category.
	id3, err := r.ResolveOrCreate(ctx, "  ")
	if err != nil {
		t.Fatalf("ResolveOrCreate() error = %v", err)
	}
	if id3 == id1 {
		t.Error("empty name should not resolve to an unrelated category")
	}
}

func TestSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	r := NewRegistry(catalog)

	doc, err := ParseMaster([]byte(`{
		"version": "1.0",
		"finance": {"values": ["Budgeting", "Forecasting"]},
		"ops": {"values": ["Logistics"]}
	}`))
	if err != nil {
		t.Fatalf("ParseMaster() error = %v", err)
	}

	first, err := r.Sync(ctx, doc)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if first.Inserted != 3 || first.Updated != 0 || first.Skipped != 0 {
		t.Errorf("first sync = %+v, want 3 inserted", first)
	}

	second, err := r.Sync(ctx, doc)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if second.Inserted != 0 || second.Updated != 0 || second.Skipped != 3 {
		t.Errorf("second sync = %+v, want all skipped", second)
	}
}

func TestMatchFallsBackBelowThreshold(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	_, _ = catalog.SyncCategory(ctx, "content", "Marketing", "")

	r := NewRegistry(catalog)
	m, err := r.Match(ctx, "completely unrelated text about gardening")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if m.Category != FallbackCategory || m.Subcategory != FallbackSubcategory {
		t.Errorf("Match() = %+v, want fallback pair", m)
	}
}

func TestMatchExactName(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog()
	_, _ = catalog.SyncCategory(ctx, "content", "Marketing", "")
	_, _ = catalog.SyncCategory(ctx, "content", "Finance", "")

	r := NewRegistry(catalog)
	m, err := r.Match(ctx, "Marketing")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if m.Category != "Marketing" {
		t.Errorf("Match() category = %q, want Marketing (confidence %v)", m.Category, m.Confidence)
	}
	if m.Confidence < matchThreshold {
		t.Errorf("exact match confidence = %v, want >= %v", m.Confidence, matchThreshold)
	}
}

func TestMatchEmptyRegistry(t *testing.T) {
	r := NewRegistry(newFakeCatalog())
	m, err := r.Match(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if m.Category != FallbackCategory {
		t.Errorf("empty registry Match() = %+v, want fallback", m)
	}
}
