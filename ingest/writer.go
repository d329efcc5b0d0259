package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"pulsar/core"

	"go.uber.org/zap"
)

// ThreatWriter writes derived threat events as JSON lines
type ThreatWriter struct {
	enc     *json.Encoder
	in      <-chan *core.Event
	logger  *zap.SugaredLogger
	written atomic.Int64
}

// NewThreatWriter creates a writer draining in to w
func NewThreatWriter(w io.Writer, in <-chan *core.Event, logger *zap.SugaredLogger) *ThreatWriter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ThreatWriter{
		enc:    json.NewEncoder(w),
		in:     in,
		logger: logger,
	}
}

// Run writes events until in is closed or ctx is done
func (t *ThreatWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-t.in:
			if !ok {
				return nil
			}
			if err := t.enc.Encode(event); err != nil {
				return fmt.Errorf("failed to write threat %s: %w", event.Header.EventID, err)
			}
			t.written.Add(1)
			if event.Header.Threat != nil {
				t.logger.Debugw("Threat written",
					"event_id", event.Header.EventID,
					"parent_id", event.Header.ParentID,
					"source", event.Header.Threat.Source)
			}
		}
	}
}

// Written returns the number of events written so far
func (t *ThreatWriter) Written() int64 {
	return t.written.Load()
}
