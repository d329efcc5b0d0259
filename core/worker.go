package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"pulsar/metrics"
	"pulsar/util/goroutine"

	"go.uber.org/zap"
)

// DefaultStopTimeout bounds how long Stop waits for in-flight tasks
const DefaultStopTimeout = 30 * time.Second

// WorkerPool runs submitted tasks on a fixed set of goroutines
type WorkerPool struct {
	name        string
	workers     int
	queueSize   int
	taskCh      chan func()
	wg          sync.WaitGroup
	logger      *zap.SugaredLogger
	ctx         context.Context
	cancel      context.CancelFunc
	running     bool
	mu          sync.RWMutex
	stopTimeout time.Duration
}

// NewWorkerPool creates a worker pool bound to parentCtx.
// Workers are not started until Start is called. Cancelling parentCtx stops
// the workers without draining the queue; Stop drains it.
func NewWorkerPool(parentCtx context.Context, name string, workers, queueSize int, logger *zap.SugaredLogger) *WorkerPool {
	if name == "" {
		name = "default"
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(parentCtx)
	return &WorkerPool{
		name:        name,
		workers:     workers,
		queueSize:   queueSize,
		taskCh:      make(chan func(), queueSize),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		stopTimeout: DefaultStopTimeout,
	}
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return nil
	}
	if wp.ctx.Err() != nil {
		return ErrWorkerPoolNotRunning
	}

	wp.running = true
	wp.logger.Infow("Starting worker pool", "pool", wp.name, "workers", wp.workers, "queue_size", wp.queueSize)
	metrics.WorkerPoolActiveWorkers.WithLabelValues(wp.name).Set(float64(wp.workers))

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	return nil
}

// Stop closes the queue and waits for queued tasks to finish
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return
	}
	wp.running = false
	close(wp.taskCh)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Infow("Worker pool stopped", "pool", wp.name)
	case <-time.After(wp.stopTimeout):
		wp.logger.Errorw("Worker pool shutdown timed out - goroutines leaked",
			"pool", wp.name,
			"workers", wp.workers,
			"timeout", wp.stopTimeout)
	}
	wp.cancel()
	metrics.WorkerPoolActiveWorkers.WithLabelValues(wp.name).Set(0)
}

// Submit queues a task without blocking
func (wp *WorkerPool) Submit(task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.running {
		return ErrWorkerPoolNotRunning
	}

	select {
	case wp.taskCh <- task:
		return nil
	default:
		return ErrWorkerPoolQueueFull
	}
}

// SubmitWait queues a task, blocking until there is room in the queue or
// ctx is done.
func (wp *WorkerPool) SubmitWait(ctx context.Context, task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.running {
		return ErrWorkerPoolNotRunning
	}

	select {
	case wp.taskCh <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return ErrWorkerPoolNotRunning
	}
}

// GetStats returns current worker pool statistics
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return WorkerPoolStats{
		Workers:     wp.workers,
		QueueSize:   wp.queueSize,
		Running:     wp.running,
		QueuedTasks: len(wp.taskCh),
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	defer goroutine.Recover("worker-pool-"+wp.name, wp.logger)

	for {
		select {
		case <-wp.ctx.Done():
			return
		case task, ok := <-wp.taskCh:
			if !ok {
				return
			}
			wp.run(id, task)
		}
	}
}

// run executes a single task; a panicking task does not take the worker down
func (wp *WorkerPool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Errorw("Task panicked in worker",
				"pool", wp.name,
				"worker_id", id,
				"panic", r)
		}
	}()
	task()
	metrics.WorkerPoolTasksProcessed.WithLabelValues(wp.name).Inc()
}

// WorkerPoolStats contains statistics about the worker pool
type WorkerPoolStats struct {
	Workers     int  `json:"workers"`
	QueueSize   int  `json:"queue_size"`
	Running     bool `json:"running"`
	QueuedTasks int  `json:"queued_tasks"`
}

// Errors
var (
	ErrWorkerPoolNotRunning = errors.New("worker pool is not running")
	ErrWorkerPoolQueueFull  = errors.New("worker pool task queue is full")
)
