package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandler(t *testing.T) {
	// Touch a counter so the namespace appears in output.
	RecordChunks(1, 0)

	handler := Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "maingest_") {
		t.Error("response should contain maingest_ metrics")
	}
}

func TestRecordHelpers(t *testing.T) {
	// Each helper should record without panicking.
	RecordFileOutcome("processed", "pdf", 2*time.Second)
	RecordFileOutcome("failed", "rss", 100*time.Millisecond)
	RecordChunks(12, 3)
	RecordClassifierRequest("ok", 1*time.Second)
	RecordClassifierRequest("fallback", 500*time.Millisecond)
	RecordCacheAccess("search", true)
	RecordCacheAccess("search", false)
	RecordWatcherEvent("create")
	RecordFeedPoll("rss", 5, nil)
	RecordFeedPoll("api", 0, errors.New("fetch failed"))
	UpdateQueueDepth(7)
}

// stubProvider implements Provider for testing.
type stubProvider struct {
	shouldErr bool
}

func (m *stubProvider) CollectMetrics(ctx context.Context) error {
	if m.shouldErr {
		return errors.New("collection error")
	}
	return nil
}

func TestCollectorRegisterUnregister(t *testing.T) {
	c := NewCollector(1 * time.Second)

	c.Register("store", &stubProvider{})

	c.mu.RLock()
	_, ok := c.providers["store"]
	c.mu.RUnlock()
	if !ok {
		t.Error("provider should be registered")
	}

	c.Unregister("store")

	c.mu.RLock()
	_, ok = c.providers["store"]
	c.mu.RUnlock()
	if ok {
		t.Error("provider should be unregistered")
	}
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Register("store", &stubProvider{})

	if err := c.Start(ctx, "test"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	if !running {
		t.Error("collector should be running after Start")
	}

	// Double start is a no-op.
	if err := c.Start(ctx, "test"); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	c.Stop()

	c.mu.RLock()
	running = c.running
	c.mu.RUnlock()
	if running {
		t.Error("collector should not be running after Stop")
	}

	// Double stop is a no-op.
	c.Stop()
}

func TestCollectorCollectWithError(t *testing.T) {
	c := NewCollector(100 * time.Millisecond)

	c.Register("failing", &stubProvider{shouldErr: true})
	c.Register("healthy", &stubProvider{shouldErr: false})

	// Sets ComponentStatus per provider without panicking.
	c.collect(context.Background())
}
