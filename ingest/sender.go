package ingest

import (
	"time"

	"pulsar/core"
	"pulsar/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChannelSender publishes derived threat events on a buffered channel.
// It never blocks: when the channel is full the event is dropped.
type ChannelSender struct {
	module  string
	out     chan<- *core.Event
	warnLim *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewChannelSender creates a sender stamping derived events with module
func NewChannelSender(module string, out chan<- *core.Event, logger *zap.SugaredLogger) *ChannelSender {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ChannelSender{
		module:  module,
		out:     out,
		warnLim: rate.NewLimiter(rate.Every(time.Second), 1),
		logger:  logger,
	}
}

// SendThreatDerived builds a threat event linked to original and publishes it
func (s *ChannelSender) SendThreatDerived(original *core.Event, extra core.Value) {
	event := s.derive(original, extra)

	select {
	case s.out <- event:
	default:
		metrics.ThreatsDropped.Inc()
		if s.warnLim.Allow() {
			s.logger.Warnw("Threat channel full, dropping derived event",
				"module", s.module,
				"parent_id", original.Header.EventID,
				"type", original.Type)
		}
	}
}

func (s *ChannelSender) derive(original *core.Event, extra core.Value) *core.Event {
	payload := make(map[string]interface{}, len(original.Payload))
	for k, v := range original.Payload {
		payload[k] = v
	}

	return &core.Event{
		Header: core.Header{
			EventID:   uuid.New().String(),
			ParentID:  original.Header.EventID,
			Source:    s.module,
			Timestamp: time.Now().UTC(),
			Image:     original.Header.Image,
			Pid:       original.Header.Pid,
			Threat: &core.Threat{
				Source:      s.module,
				Description: original.Type,
				Extra:       extra,
			},
		},
		Type:    original.Type,
		Payload: payload,
	}
}
