package ingest

import (
	"context"
	"fmt"
	"sync"

	"pulsar/core"
	"pulsar/metrics"
	"pulsar/util/goroutine"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Processor consumes events. *detect.PulsarEngine satisfies it.
type Processor interface {
	Process(event *core.Event)
}

// Pipeline drains an event channel into a Processor on a worker pool
type Pipeline struct {
	processor Processor
	events    <-chan *core.Event
	pool      *core.WorkerPool
	logger    *zap.SugaredLogger
	seen      *lru.Cache[string, struct{}]
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
}

// NewPipeline creates a pipeline with workers goroutines and a task queue of
// queueSize. Cancelling ctx stops the pipeline without draining.
func NewPipeline(ctx context.Context, processor Processor, events <-chan *core.Event, workers, queueSize int, logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	pctx, cancel := context.WithCancel(ctx)
	return &Pipeline{
		processor: processor,
		events:    events,
		pool:      core.NewWorkerPool(ctx, "pipeline", workers, queueSize, logger),
		logger:    logger,
		ctx:       pctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// EnableDeduplication drops events whose ID is among the last size IDs seen.
// Call it before Start; a size of 0 leaves deduplication off.
func (p *Pipeline) EnableDeduplication(size int) error {
	if size <= 0 {
		p.seen = nil
		return nil
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return fmt.Errorf("failed to create dedup cache: %w", err)
	}
	p.seen = cache
	return nil
}

// duplicate records the event ID and reports whether it was already seen
func (p *Pipeline) duplicate(event *core.Event) bool {
	if p.seen == nil || event.Header.EventID == "" {
		return false
	}
	if found, _ := p.seen.ContainsOrAdd(event.Header.EventID, struct{}{}); found {
		metrics.EventsDeduplicated.Inc()
		p.logger.Debugw("Dropping duplicate event", "event_id", event.Header.EventID)
		return true
	}
	return false
}

// Start launches the workers and the dispatch loop
func (p *Pipeline) Start() error {
	if err := p.pool.Start(); err != nil {
		return err
	}
	goroutine.Go(&p.wg, "pipeline-dispatch", p.logger, p.dispatch)
	return nil
}

// Done is closed once the event channel is closed and every event read from
// it has been handed to the pool.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Stop stops reading events and waits for queued events to be processed
func (p *Pipeline) Stop() {
	p.cancel()
	p.wg.Wait()
	p.pool.Stop()
}

func (p *Pipeline) dispatch() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case event, ok := <-p.events:
			if !ok {
				return
			}
			if p.duplicate(event) {
				continue
			}
			// an event already read is always queued; the pool drains it on Stop
			err := p.pool.SubmitWait(context.Background(), func() {
				p.processor.Process(event)
			})
			if err != nil {
				p.logger.Warnw("Dropping event", "event_id", event.Header.EventID, "error", err)
				return
			}
		}
	}
}
