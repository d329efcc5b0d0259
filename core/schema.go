package core

import (
	"time"

	"github.com/google/uuid"
)

// Threat marks an event as the product of a detection stage.
// Events carrying a Threat are never fed back into rule evaluation.
type Threat struct {
	// Source is the module that raised the threat
	Source string `json:"source" msgpack:"source"`
	// Description is a short label, usually the type of the triggering event
	Description string `json:"description" msgpack:"description"`
	// Extra carries module specific data, e.g. RuleEngineData
	Extra Value `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

// Header holds the metadata common to every event flowing through the pipeline
type Header struct {
	EventID   string    `json:"event_id" msgpack:"event_id"`
	ParentID  string    `json:"parent_id,omitempty" msgpack:"parent_id,omitempty"`
	Source    string    `json:"source" msgpack:"source"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Image     string    `json:"image,omitempty" msgpack:"image,omitempty"`
	Pid       int       `json:"pid,omitempty" msgpack:"pid,omitempty"`
	Threat    *Threat   `json:"threat,omitempty" msgpack:"threat,omitempty"`
}

// Event represents a single runtime telemetry record
type Event struct {
	Header  Header                 `json:"header" msgpack:"header"`
	Type    string                 `json:"type" msgpack:"type"`
	Payload map[string]interface{} `json:"payload" msgpack:"payload"`
}

// NewEvent creates a new Event with a generated UUID
func NewEvent() *Event {
	return &Event{
		Header: Header{
			EventID:   uuid.New().String(),
			Timestamp: time.Now().UTC(),
		},
		Payload: make(map[string]interface{}),
	}
}

// IsThreat reports whether the event was produced by a detection stage
func (e *Event) IsThreat() bool {
	return e.Header.Threat != nil
}
