package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"pulsar/core"
	"pulsar/metrics"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Supported stream encodings
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// maxLineSize caps a single JSON line
const maxLineSize = 1024 * 1024

// ErrUnknownFormat is returned for an unsupported stream encoding
var ErrUnknownFormat = errors.New("unknown event format")

// StreamReader decodes events from a byte stream and forwards them to a channel.
//
// JSON streams hold one event per line; a malformed line is counted and
// skipped. Msgpack streams are a concatenation of encoded events; a decode
// error ends the stream since the decoder cannot resynchronize.
type StreamReader struct {
	name    string
	format  string
	r       io.Reader
	limiter *rate.Limiter
	eventCh chan<- *core.Event
	logger  *zap.SugaredLogger
}

// NewStreamReader creates a reader for r. rateLimit caps events per second;
// zero or less disables limiting.
func NewStreamReader(name string, r io.Reader, format string, rateLimit int, eventCh chan<- *core.Event, logger *zap.SugaredLogger) (*StreamReader, error) {
	if format != FormatJSON && format != FormatMsgpack {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var limiter *rate.Limiter
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	}

	return &StreamReader{
		name:    name,
		format:  format,
		r:       r,
		limiter: limiter,
		eventCh: eventCh,
		logger:  logger,
	}, nil
}

// Run reads until the stream ends or ctx is cancelled. Reaching the end of
// the stream returns nil.
func (s *StreamReader) Run(ctx context.Context) error {
	s.logger.Infow("Reading events", "source", s.name, "format", s.format)

	if s.format == FormatMsgpack {
		return s.runMsgpack(ctx)
	}
	return s.runJSON(ctx)
}

func (s *StreamReader) runJSON(ctx context.Context) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		event, err := ParseJSONEvent(raw)
		if err != nil {
			metrics.IngestDecodeErrors.WithLabelValues(FormatJSON).Inc()
			s.logger.Warnw("Skipping malformed event", "source", s.name, "line", line, "error", err)
			continue
		}
		if err := s.forward(ctx, event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", s.name, err)
	}
	return nil
}

func (s *StreamReader) runMsgpack(ctx context.Context) error {
	dec := msgpack.NewDecoder(s.r)
	for {
		var event core.Event
		if err := dec.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			metrics.IngestDecodeErrors.WithLabelValues(FormatMsgpack).Inc()
			return fmt.Errorf("failed to decode msgpack event from %s: %w", s.name, err)
		}
		normalize(&event, s.name)
		if err := s.forward(ctx, &event); err != nil {
			return err
		}
	}
}

// forward blocks until the event is accepted, applying backpressure
func (s *StreamReader) forward(ctx context.Context, event *core.Event) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if event.Header.Source == "" {
		event.Header.Source = s.name
	}

	select {
	case s.eventCh <- event:
		metrics.EventsIngested.WithLabelValues(s.name).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseJSONEvent decodes a single JSON encoded event
func ParseJSONEvent(raw []byte) (*core.Event, error) {
	var event core.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("failed to parse JSON event: %w", err)
	}
	normalize(&event, "")
	return &event, nil
}

// normalize fills the header fields producers may leave out
func normalize(event *core.Event, source string) {
	if event.Header.EventID == "" {
		event.Header.EventID = uuid.New().String()
	}
	if event.Header.Timestamp.IsZero() {
		event.Header.Timestamp = time.Now().UTC()
	}
	if event.Header.Source == "" {
		event.Header.Source = source
	}
	if event.Payload == nil {
		event.Payload = make(map[string]interface{})
	}
}
