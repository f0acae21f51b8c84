package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (h *recordingHandler) handle(ctx context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.paths = append(h.paths, path)
	return nil
}

func (h *recordingHandler) handled() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.paths...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func newTestWatcher(t *testing.T, dir string, h Handler, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{WithSettleWindow(30 * time.Millisecond)}, opts...)
	w, err := New(dir, h, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcherHandlesNewFile(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	w := newTestWatcher(t, dir, h.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(h.handled()) == 1 }) {
		t.Fatalf("handled = %v, want one file", h.handled())
	}
	if h.handled()[0] != path {
		t.Errorf("handled path = %q, want %q", h.handled()[0], path)
	}

	// The ledger records the file.
	data, err := os.ReadFile(filepath.Join(dir, LedgerName))
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}
	if string(data) != "report.txt\n" {
		t.Errorf("ledger = %q", data)
	}
}

func TestWatcherSkipsTempAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	w := newTestWatcher(t, dir, h.handle, WithExtensions([]string{".txt", ".pdf"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, name := range []string{
		"~$report.docx",
		"upload.tmp",
		"draft~.txt",
		".hidden.txt",
		"archive.zip",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	good := filepath.Join(dir, "good.txt")
	if err := os.WriteFile(good, []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(h.handled()) >= 1 }) {
		t.Fatal("supported file never handled")
	}

	// Give skipped files time to show up if the filter were broken.
	time.Sleep(100 * time.Millisecond)
	if got := h.handled(); len(got) != 1 || got[0] != good {
		t.Errorf("handled = %v, want only %q", got, good)
	}
}

func TestWatcherSweepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	pre := filepath.Join(dir, "preexisting.txt")
	if err := os.WriteFile(pre, []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &recordingHandler{}
	w := newTestWatcher(t, dir, h.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(h.handled()) == 1 }) {
		t.Fatalf("handled = %v, want the preexisting file", h.handled())
	}
}

func TestWatcherHonorsLedgerAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.txt"), []byte("seen"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, LedgerName), []byte("old.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &recordingHandler{}
	w := newTestWatcher(t, dir, h.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if got := h.handled(); len(got) != 0 {
		t.Errorf("handled = %v, want none for ledgered file", got)
	}
}

func TestWatcherRetriesAfterHandlerFailure(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{err: os.ErrPermission}
	w := newTestWatcher(t, dir, h.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	path := filepath.Join(dir, "flaky.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return w.Stats().Errors >= 1 }) {
		t.Fatal("handler failure never recorded")
	}

	// Failed files stay out of the ledger so a later write retries.
	h.mu.Lock()
	h.err = nil
	h.mu.Unlock()

	if err := os.WriteFile(path, []byte("content again"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(h.handled()) == 1 }) {
		t.Fatalf("handled = %v, want retried file", h.handled())
	}
}

func TestWatcherRequiresExistingDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("New() with missing directory succeeded")
	}

	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file, nil); err == nil {
		t.Error("New() with a file path succeeded")
	}
}
