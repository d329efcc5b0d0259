package matcher

import (
	"strings"

	"pulsar/core"
)

// accessor extracts a field from an event; ok is false when it is absent
type accessor func(event *core.Event) (value interface{}, ok bool)

// headerFields treats a zero valued header field as absent
var headerFields = map[string]accessor{
	"event_id": func(e *core.Event) (interface{}, bool) {
		return e.Header.EventID, e.Header.EventID != ""
	},
	"parent_id": func(e *core.Event) (interface{}, bool) {
		return e.Header.ParentID, e.Header.ParentID != ""
	},
	"source": func(e *core.Event) (interface{}, bool) {
		return e.Header.Source, e.Header.Source != ""
	},
	"timestamp": func(e *core.Event) (interface{}, bool) {
		return e.Header.Timestamp, !e.Header.Timestamp.IsZero()
	},
	"image": func(e *core.Event) (interface{}, bool) {
		return e.Header.Image, e.Header.Image != ""
	},
	"pid": func(e *core.Event) (interface{}, bool) {
		return e.Header.Pid, e.Header.Pid != 0
	},
}

// resolveField compiles a dotted field path into an accessor.
// Supported roots are "type", "header.<field>" and "payload.<path>".
func resolveField(path string) (accessor, bool) {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}

	switch parts[0] {
	case "type":
		if len(parts) != 1 {
			return nil, false
		}
		return func(e *core.Event) (interface{}, bool) { return e.Type, e.Type != "" }, true
	case "header":
		if len(parts) != 2 {
			return nil, false
		}
		acc, ok := headerFields[parts[1]]
		return acc, ok
	case "payload":
		if len(parts) < 2 {
			return nil, false
		}
		keys := parts[1:]
		return func(e *core.Event) (interface{}, bool) {
			return lookupPayload(e.Payload, keys)
		}, true
	}
	return nil, false
}

// lookupPayload walks nested maps following keys
func lookupPayload(payload map[string]interface{}, keys []string) (interface{}, bool) {
	current := payload
	for i, key := range keys {
		val, ok := current[key]
		if !ok {
			return nil, false
		}
		if i == len(keys)-1 {
			return val, val != nil
		}
		next, ok := val.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}
	return nil, false
}
