package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"pulsar/core"
	"pulsar/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGenerator_Deterministic(t *testing.T) {
	a := NewEventGenerator(42)
	b := NewEventGenerator(42)

	for i := 0; i < 20; i++ {
		ea, eb := a.GenerateRandomEvent(), b.GenerateRandomEvent()
		assert.Equal(t, ea.Type, eb.Type)
		assert.Equal(t, ea.Payload, eb.Payload)
		assert.NotEqual(t, ea.Header.EventID, eb.Header.EventID)
	}
}

func TestGenerator_SuspiciousExec(t *testing.T) {
	gen := NewEventGenerator(1)
	event := gen.GenerateExecEvent(true)

	assert.Equal(t, TypeExec, event.Type)
	assert.Contains(t, []string{"/usr/bin/nc", "/usr/bin/ncat", "/usr/bin/socat"}, event.Payload["filename"])
	assert.Nil(t, event.Header.Threat)
	assert.NotZero(t, event.Header.Pid)
}

func TestGenerator_ReverseShellSharesPid(t *testing.T) {
	gen := NewEventGenerator(7)
	events := gen.GenerateReverseShellScenario("203.0.113.9")

	require.Len(t, events, 2)
	assert.Equal(t, TypeExec, events[0].Type)
	assert.Equal(t, TypeConnect, events[1].Type)
	assert.Equal(t, events[0].Header.Pid, events[1].Header.Pid)
	dst := events[1].Payload["destination"].(map[string]interface{})
	assert.Equal(t, "203.0.113.9", dst["ip"])
}

func TestScenarioEvents_Unknown(t *testing.T) {
	_, err := scenarioEvents(NewEventGenerator(1), "nope", "")
	assert.Error(t, err)
}

func TestEmitters_RoundTripThroughStreamReader(t *testing.T) {
	for _, format := range []string{ingest.FormatJSON, ingest.FormatMsgpack} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			out, err := newEmitter(&Config{Output: format}, &buf)
			require.NoError(t, err)

			gen := NewEventGenerator(3)
			require.NoError(t, generateSingle(gen, out, 5))

			ch := make(chan *core.Event, 10)
			reader, err := ingest.NewStreamReader("gen", &buf, format, 0, ch, zaptest.NewLogger(t).Sugar())
			require.NoError(t, err)
			require.NoError(t, reader.Run(context.Background()))
			close(ch)

			n := 0
			for event := range ch {
				assert.Equal(t, "eventgen", event.Header.Source)
				n++
			}
			assert.Equal(t, 5, n)
		})
	}
}

func TestAPIEmitter(t *testing.T) {
	ch := make(chan *core.Event, 4)
	listener, err := ingest.NewHTTPListener("127.0.0.1", 0, 0, ch, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	srv := httptest.NewServer(listener.Handler())
	defer srv.Close()

	out, err := newEmitter(&Config{Output: "api", APIUrl: srv.URL + "/api/v1/events"}, nil)
	require.NoError(t, err)

	require.NoError(t, generateScenario(NewEventGenerator(5), out, &Config{Scenario: "reverse_shell", ExternalIP: "203.0.113.1"}))
	assert.Len(t, ch, 2)
}

func TestNewEmitter_Unknown(t *testing.T) {
	_, err := newEmitter(&Config{Output: "syslog"}, nil)
	assert.Error(t, err)
}
