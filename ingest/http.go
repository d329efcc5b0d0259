package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"pulsar/core"
	"pulsar/metrics"
	"pulsar/util/goroutine"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	maxBodySize     = 1024 * 1024
	shutdownTimeout = 5 * time.Second
	httpSource      = "http"
)

func validatePort(port int) error {
	if port < 0 || port > MaxPort {
		return fmt.Errorf("invalid port number: %d (must be between 0 and %d)", port, MaxPort)
	}
	return nil
}

// HTTPListener accepts events over HTTP POST. A request body is either a
// single JSON event or a JSON array of events.
type HTTPListener struct {
	host     string
	port     int
	limiter  *rate.Limiter
	eventCh  chan<- *core.Event
	logger   *zap.SugaredLogger
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewHTTPListener creates a listener. rateLimit caps accepted requests per
// second; zero or less disables limiting.
func NewHTTPListener(host string, port int, rateLimit int, eventCh chan<- *core.Event, logger *zap.SugaredLogger) (*HTTPListener, error) {
	if err := validatePort(port); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	}

	return &HTTPListener{
		host:    host,
		port:    port,
		limiter: limiter,
		eventCh: eventCh,
		logger:  logger,
	}, nil
}

// Handler returns the router serving the ingest endpoint
func (h *HTTPListener) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/events", h.handlePost).Methods(http.MethodPost)
	return r
}

// Start binds the listening socket and serves in the background
func (h *HTTPListener) Start() error {
	addr := net.JoinHostPort(h.host, fmt.Sprintf("%d", h.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h.listener = ln
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	h.logger.Infof("HTTP event listener started on %s", ln.Addr())

	goroutine.Go(&h.wg, "http-event-listener", h.logger, func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Errorf("HTTP event listener error: %v", err)
		}
	})
	return nil
}

// Addr returns the bound address once started
func (h *HTTPListener) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Stop shuts the server down and waits for it to exit
func (h *HTTPListener) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Errorf("HTTP event listener shutdown error: %v", err)
	}
	h.wg.Wait()
}

func (h *HTTPListener) handlePost(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodySize {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		metrics.IngestDecodeErrors.WithLabelValues(FormatJSON).Inc()
		h.logger.Warnw("Rejecting malformed request", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, event := range events {
		if event.Header.Source == "" {
			event.Header.Source = httpSource
		}
		select {
		case h.eventCh <- event:
			accepted++
			metrics.EventsIngested.WithLabelValues(httpSource).Inc()
		default:
			h.logger.Warnw("Event channel full, dropping HTTP events",
				"accepted", accepted,
				"dropped", len(events)-accepted)
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]int{"accepted": accepted})
}

func decodeEvents(body []byte) ([]*core.Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	if trimmed[0] != '[' {
		event, err := ParseJSONEvent(trimmed)
		if err != nil {
			return nil, err
		}
		return []*core.Event{event}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON event list: %w", err)
	}
	events := make([]*core.Event, 0, len(raw))
	for i, item := range raw {
		event, err := ParseJSONEvent(item)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, event)
	}
	return events, nil
}
