// Package watcher monitors the upload directory and hands each new
// file to the ingest handler exactly once. A settle window absorbs the
// write bursts of an in-progress copy, and a ledger file in the
// directory records what has already been handled so restarts do not
// re-ingest old uploads.
package watcher

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/metrics"
)

// LedgerName is the marker file that records handled uploads, one file
// name per line.
const LedgerName = ".processed_files"

// DefaultSettleWindow is how long a file must stay quiet before it is
// considered fully written.
const DefaultSettleWindow = 2 * time.Second

// Handler receives the path of a settled upload.
type Handler func(ctx context.Context, path string) error

// Stats contains statistics about watcher activity.
type Stats struct {
	EventsReceived int64
	FilesHandled   int64
	FilesSkipped   int64
	Errors         int64
	IsRunning      bool
}

// Option configures the Watcher.
type Option func(*Watcher)

// WithSettleWindow sets the quiet window before a file is handled.
func WithSettleWindow(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settleWindow = d
		}
	}
}

// WithExtensions restricts handling to the given extensions (with
// leading dot, case-insensitive). Empty means all files.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		w.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			w.extensions[strings.ToLower(e)] = true
		}
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// Watcher monitors one upload directory.
type Watcher struct {
	dir       string
	handler   Handler
	fsWatcher *fsnotify.Watcher
	settler   *Settler
	logger    *slog.Logger

	settleWindow time.Duration
	extensions   map[string]bool

	mu        sync.Mutex
	processed map[string]bool
	ledger    *os.File
	stats     Stats
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// New creates a watcher over the upload directory. The directory must
// exist; the ledger is created on first use.
func New(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory; %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat upload directory; %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("upload path is not a directory: %s", absDir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher; %w", err)
	}

	w := &Watcher{
		dir:          absDir,
		handler:      handler,
		fsWatcher:    fsw,
		logger:       slog.Default(),
		settleWindow: DefaultSettleWindow,
		processed:    make(map[string]bool),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.settler = NewSettler(w.settleWindow)

	if err := w.loadLedger(); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start watches the directory, sweeps files already present, and
// begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.mu.Unlock()

	if err := w.fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s; %w", w.dir, err)
	}

	w.mu.Lock()
	w.running = true
	w.stats.IsRunning = true
	w.mu.Unlock()

	if err := w.sweepExisting(); err != nil {
		w.logger.Warn("initial sweep failed", "error", err)
	}

	go w.processEvents(ctx)
	go w.processSettled(ctx)

	w.logger.Info("upload watcher started",
		"dir", w.dir,
		"settle_window", w.settleWindow)

	return nil
}

// Stop stops the watcher and closes the ledger.
func (w *Watcher) Stop() error {
	var stopErr error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		if !w.running {
			w.mu.Unlock()
			return
		}
		w.running = false
		w.stats.IsRunning = false
		w.mu.Unlock()

		// Stop the settler first to unblock processSettled.
		w.settler.Stop()

		close(w.stopCh)
		<-w.doneCh

		stopErr = w.fsWatcher.Close()

		w.mu.Lock()
		if w.ledger != nil {
			if err := w.ledger.Close(); err != nil && stopErr == nil {
				stopErr = err
			}
			w.ledger = nil
		}
		w.mu.Unlock()
	})
	return stopErr
}

// Stats returns current watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// CollectMetrics implements metrics.Provider.
func (w *Watcher) CollectMetrics(ctx context.Context) error {
	return nil
}

// Name returns the component name.
func (w *Watcher) Name() string {
	return "upload-watcher"
}

// sweepExisting feeds files already present in the directory through
// the settler, so uploads that arrived while the service was down are
// still picked up.
func (w *Watcher) sweepExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read upload directory; %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if w.shouldSkip(path) {
			continue
		}
		w.settler.Touch(path)
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			metrics.RecordWatcherEvent("error")
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	w.mu.Lock()
	w.stats.EventsReceived++
	w.mu.Unlock()
	metrics.RecordWatcherEvent("received")

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.settler.Forget(event.Name)
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if w.shouldSkip(event.Name) {
		w.mu.Lock()
		w.stats.FilesSkipped++
		w.mu.Unlock()
		metrics.RecordWatcherEvent("skipped")
		return
	}

	w.settler.Touch(event.Name)
}

func (w *Watcher) processSettled(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case path, ok := <-w.settler.Settled():
			if !ok {
				return
			}
			w.handleSettled(ctx, path)
		}
	}
}

// handleSettled hands one settled file to the handler and records it in
// the ledger on success. Handler failures leave the file unrecorded so
// a later event or sweep retries it.
func (w *Watcher) handleSettled(ctx context.Context, path string) {
	if w.isProcessed(path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Deleted between settle and handling.
		return
	}
	if info.IsDir() {
		return
	}

	if err := w.handler(ctx, path); err != nil {
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		metrics.RecordWatcherEvent("error")
		w.logger.Error("failed to handle upload", "path", path, "error", err)
		return
	}

	if err := w.markProcessed(path); err != nil {
		w.logger.Warn("failed to update ledger", "path", path, "error", err)
	}

	w.mu.Lock()
	w.stats.FilesHandled++
	w.mu.Unlock()
	metrics.RecordWatcherEvent("handled")
	w.logger.Info("upload handled", "path", path)
}

// shouldSkip filters temp artifacts, the ledger itself, unsupported
// extensions, and files already recorded as handled.
func (w *Watcher) shouldSkip(path string) bool {
	name := filepath.Base(path)

	if name == LedgerName || strings.HasPrefix(name, ".") {
		return true
	}
	// Office lock files and partial copies.
	if strings.HasPrefix(name, "~$") || strings.Contains(name, "~") {
		return true
	}
	if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part") {
		return true
	}

	if len(w.extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(name))
		if !w.extensions[ext] {
			return true
		}
	}

	return w.isProcessed(path)
}

func (w *Watcher) isProcessed(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.processed[filepath.Base(path)]
}

// loadLedger reads the ledger file and opens it for appending.
func (w *Watcher) loadLedger() error {
	ledgerPath := filepath.Join(w.dir, LedgerName)

	f, err := os.OpenFile(ledgerPath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger; %w", err)
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			w.processed[name] = true
		}
	}
	if err := scanner.Err(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to read ledger; %w", err)
	}

	w.ledger = f
	return nil
}

func (w *Watcher) markProcessed(path string) error {
	name := filepath.Base(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.processed[name] = true
	if w.ledger == nil {
		return fmt.Errorf("ledger closed")
	}
	if _, err := w.ledger.WriteString(name + "\n"); err != nil {
		return err
	}
	return nil
}
