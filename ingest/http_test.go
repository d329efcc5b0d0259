package ingest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pulsar/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postEvents(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewHTTPListener_InvalidPort(t *testing.T) {
	_, err := NewHTTPListener("localhost", 70000, 0, make(chan *core.Event), nil)
	assert.Error(t, err)
}

func TestHTTPListener_SingleEvent(t *testing.T) {
	ch := make(chan *core.Event, 1)
	listener, err := NewHTTPListener("localhost", 0, 0, ch, nil)
	require.NoError(t, err)

	rec := postEvents(t, listener.Handler(), `{"type":"Exec","payload":{"filename":"/usr/bin/nc"}}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":1}`, rec.Body.String())

	require.Len(t, ch, 1)
	event := <-ch
	assert.Equal(t, "Exec", event.Type)
	assert.Equal(t, "http", event.Header.Source)
	assert.NotEmpty(t, event.Header.EventID)
}

func TestHTTPListener_EventList(t *testing.T) {
	ch := make(chan *core.Event, 3)
	listener, err := NewHTTPListener("localhost", 0, 0, ch, nil)
	require.NoError(t, err)

	rec := postEvents(t, listener.Handler(), `[{"type":"Exec"},{"type":"Fork","header":{"source":"probe"}}]`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":2}`, rec.Body.String())

	first, second := <-ch, <-ch
	assert.Equal(t, "Exec", first.Type)
	assert.Equal(t, "probe", second.Header.Source)
}

func TestHTTPListener_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `invalid json`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"bad list item", `[{"type":"Exec"}, 42]`, http.StatusBadRequest},
		{"too large", `{"type":"` + strings.Repeat("a", maxBodySize) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan *core.Event, 1)
			listener, err := NewHTTPListener("localhost", 0, 0, ch, nil)
			require.NoError(t, err)

			rec := postEvents(t, listener.Handler(), tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, ch)
		})
	}
}

func TestHTTPListener_ChannelFull(t *testing.T) {
	ch := make(chan *core.Event)
	listener, err := NewHTTPListener("localhost", 0, 0, ch, nil)
	require.NoError(t, err)

	rec := postEvents(t, listener.Handler(), `{"type":"Exec"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPListener_RateLimit(t *testing.T) {
	ch := make(chan *core.Event, 10)
	listener, err := NewHTTPListener("localhost", 0, 1, ch, nil)
	require.NoError(t, err)

	h := listener.Handler()
	assert.Equal(t, http.StatusAccepted, postEvents(t, h, `{"type":"Exec"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, postEvents(t, h, `{"type":"Exec"}`).Code)
}

func TestHTTPListener_MethodNotAllowed(t *testing.T) {
	listener, err := NewHTTPListener("localhost", 0, 0, make(chan *core.Event, 1), nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	listener.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPListener_StartStop(t *testing.T) {
	ch := make(chan *core.Event, 1)
	listener, err := NewHTTPListener("127.0.0.1", 0, 0, ch, nil)
	require.NoError(t, err)
	require.NoError(t, listener.Start())
	defer listener.Stop()

	resp, err := http.Post(fmt.Sprintf("http://%s/api/v1/events", listener.Addr()), "application/json",
		strings.NewReader(`{"type":"Exec"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Len(t, ch, 1)
}
