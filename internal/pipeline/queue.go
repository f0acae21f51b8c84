package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/metrics"
)

// QueueState represents the current state of the ingest queue.
type QueueState int

const (
	QueueStateIdle QueueState = iota
	QueueStateRunning
	QueueStateStopping
	QueueStateStopped
)

// QueueStats contains statistics about queue operation.
type QueueStats struct {
	State          QueueState
	WorkerCount    int
	ActiveWorkers  int
	PendingItems   int
	ProcessedItems int64
	FailedItems    int64
	AvgProcessTime time.Duration
}

// Queue feeds file IDs to a bounded pool of pipeline workers.
type Queue struct {
	mu          sync.RWMutex
	logger      *slog.Logger
	pipeline    *Pipeline
	workerCount int
	capacity    int

	state    QueueState
	workChan chan string
	wg       sync.WaitGroup
	cancelFn context.CancelFunc

	processedCount atomic.Int64
	failedCount    atomic.Int64
	activeWorkers  atomic.Int32
	totalProcTime  atomic.Int64
}

// QueueOption configures the ingest queue.
type QueueOption func(*Queue)

// WithWorkerCount sets the number of concurrent workers.
func WithWorkerCount(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workerCount = n
		}
	}
}

// WithQueueCapacity sets the maximum queue size.
func WithQueueCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithQueueLogger sets the logger for the queue.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// NewQueue creates an ingest queue over the pipeline.
func NewQueue(p *Pipeline, opts ...QueueOption) *Queue {
	q := &Queue{
		logger:      slog.Default(),
		pipeline:    p,
		workerCount: 4,
		capacity:    64,
		state:       QueueStateIdle,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name returns the component name.
func (q *Queue) Name() string {
	return "ingest-queue"
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == QueueStateRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, q.cancelFn = context.WithCancel(ctx)
	q.workChan = make(chan string, q.capacity)
	q.state = QueueStateRunning

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			q.runWorker(ctx, id)
		}(i)
	}

	q.logger.Info("ingest queue started",
		"workers", q.workerCount,
		"capacity", q.capacity)

	return nil
}

// Stop gracefully shuts down the queue.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.state != QueueStateRunning {
		q.mu.Unlock()
		return nil
	}
	q.state = QueueStateStopping
	q.mu.Unlock()

	q.cancelFn()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("all workers stopped gracefully")
	case <-ctx.Done():
		q.logger.Warn("worker shutdown timed out")
	}

	q.mu.Lock()
	close(q.workChan)
	q.state = QueueStateStopped
	q.mu.Unlock()

	return nil
}

// Enqueue adds a file ID to the queue. Returns an error when the queue
// is stopped or full; callers retry via the stale-processing sweep.
func (q *Queue) Enqueue(fileID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.state != QueueStateRunning {
		return fmt.Errorf("queue not running")
	}

	select {
	case q.workChan <- fileID:
		metrics.UpdateQueueDepth(len(q.workChan))
		return nil
	default:
		return fmt.Errorf("queue full; capacity=%d", q.capacity)
	}
}

func (q *Queue) runWorker(ctx context.Context, id int) {
	logger := q.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case fileID, ok := <-q.workChan:
			if !ok {
				return
			}
			metrics.UpdateQueueDepth(len(q.workChan))

			q.activeWorkers.Add(1)
			start := time.Now()
			err := q.pipeline.ProcessFile(ctx, fileID)
			q.activeWorkers.Add(-1)

			q.totalProcTime.Add(int64(time.Since(start)))
			if err != nil {
				q.failedCount.Add(1)
				logger.Error("file processing failed", "file_id", fileID, "error", err)
				continue
			}
			q.processedCount.Add(1)
		}
	}
}

// Stats returns current queue statistics.
func (q *Queue) Stats() QueueStats {
	q.mu.RLock()
	state := q.state
	workerCount := q.workerCount
	pending := len(q.workChan)
	q.mu.RUnlock()

	processed := q.processedCount.Load()
	failed := q.failedCount.Load()

	var avgTime time.Duration
	if done := processed + failed; done > 0 {
		avgTime = time.Duration(q.totalProcTime.Load() / done)
	}

	return QueueStats{
		State:          state,
		WorkerCount:    workerCount,
		ActiveWorkers:  int(q.activeWorkers.Load()),
		PendingItems:   pending,
		ProcessedItems: processed,
		FailedItems:    failed,
		AvgProcessTime: avgTime,
	}
}

// CollectMetrics implements metrics.Provider.
func (q *Queue) CollectMetrics(ctx context.Context) error {
	stats := q.Stats()
	metrics.UpdateQueueDepth(stats.PendingItems)
	return nil
}
