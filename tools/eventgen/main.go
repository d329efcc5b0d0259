// Command eventgen writes synthetic runtime events for exercising pulsar
// rules, either to stdout for piping into "pulsar run" or to the HTTP
// ingest endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"pulsar/core"
	"pulsar/ingest"

	"github.com/vmihailenco/msgpack/v5"
)

const defaultAPIURL = "http://localhost:8080/api/v1/events"

type Config struct {
	Mode       string
	Scenario   string
	Rate       int
	Duration   int
	Count      int
	Output     string
	APIUrl     string
	ExternalIP string
	Seed       int64
}

func main() {
	cfg := parseFlags()

	emitter, err := newEmitter(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	generator := NewEventGenerator(cfg.Seed)

	switch cfg.Mode {
	case "single":
		err = generateSingle(generator, emitter, cfg.Count)
	case "stream":
		err = generateStream(generator, emitter, cfg)
	case "scenario":
		err = generateScenario(generator, emitter, cfg)
	default:
		err = fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", "single", "Generation mode: single, stream, scenario")
	flag.StringVar(&cfg.Scenario, "scenario", "", "Scenario name: reverse_shell, credential_access, cryptominer")
	flag.IntVar(&cfg.Rate, "rate", 1, "Events per second (for stream mode)")
	flag.IntVar(&cfg.Duration, "duration", 10, "Duration in seconds (for stream mode)")
	flag.IntVar(&cfg.Count, "count", 1, "Number of events to generate (for single mode)")
	flag.StringVar(&cfg.Output, "output", "json", "Output method: json, msgpack, api")
	flag.StringVar(&cfg.APIUrl, "api-url", defaultAPIURL, "HTTP ingest endpoint URL")
	flag.StringVar(&cfg.ExternalIP, "external-ip", "203.0.113.25", "External IP for scenarios")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Random seed, 0 for a clock based seed")

	flag.Parse()
	return cfg
}

// emitter delivers generated events to their destination
type emitter interface {
	Emit(event *core.Event) error
}

func newEmitter(cfg *Config, w io.Writer) (emitter, error) {
	switch cfg.Output {
	case ingest.FormatJSON:
		return &jsonEmitter{enc: json.NewEncoder(w)}, nil
	case ingest.FormatMsgpack:
		return &msgpackEmitter{enc: msgpack.NewEncoder(w)}, nil
	case "api":
		return &apiEmitter{url: cfg.APIUrl, client: &http.Client{Timeout: 5 * time.Second}}, nil
	default:
		return nil, fmt.Errorf("unknown output method: %s", cfg.Output)
	}
}

type jsonEmitter struct {
	enc *json.Encoder
}

func (e *jsonEmitter) Emit(event *core.Event) error {
	return e.enc.Encode(event)
}

type msgpackEmitter struct {
	enc *msgpack.Encoder
}

func (e *msgpackEmitter) Emit(event *core.Event) error {
	return e.enc.Encode(event)
}

type apiEmitter struct {
	url    string
	client *http.Client
}

func (e *apiEmitter) Emit(event *core.Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}

	resp, err := e.client.Post(e.url, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error sending to API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

func generateSingle(gen *EventGenerator, out emitter, count int) error {
	for i := 0; i < count; i++ {
		if err := out.Emit(gen.GenerateRandomEvent()); err != nil {
			return err
		}
	}
	return nil
}

func generateStream(gen *EventGenerator, out emitter, cfg *Config) error {
	if cfg.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %d", cfg.Rate)
	}
	ticker := time.NewTicker(time.Second / time.Duration(cfg.Rate))
	defer ticker.Stop()

	timeout := time.After(time.Duration(cfg.Duration) * time.Second)
	count := 0

	fmt.Fprintf(os.Stderr, "Starting event stream: %d events/sec for %d seconds\n", cfg.Rate, cfg.Duration)

	for {
		select {
		case <-ticker.C:
			if err := out.Emit(gen.GenerateRandomEvent()); err != nil {
				return err
			}
			count++
			if count%100 == 0 {
				fmt.Fprintf(os.Stderr, "Generated %d events...\n", count)
			}
		case <-timeout:
			fmt.Fprintf(os.Stderr, "Stream complete. Generated %d total events.\n", count)
			return nil
		}
	}
}

func scenarioEvents(gen *EventGenerator, name, externalIP string) ([]*core.Event, error) {
	switch name {
	case "reverse_shell":
		return gen.GenerateReverseShellScenario(externalIP), nil
	case "credential_access":
		return gen.GenerateCredentialAccessScenario(8), nil
	case "cryptominer":
		return gen.GenerateCryptominerScenario(5), nil
	default:
		return nil, fmt.Errorf("unknown scenario %q, available: reverse_shell, credential_access, cryptominer", name)
	}
}

func generateScenario(gen *EventGenerator, out emitter, cfg *Config) error {
	events, err := scenarioEvents(gen, cfg.Scenario, cfg.ExternalIP)
	if err != nil {
		return err
	}
	for _, event := range events {
		if err := out.Emit(event); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "Scenario '%s' complete. Sent %d events.\n", cfg.Scenario, len(events))
	return nil
}
