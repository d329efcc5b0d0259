package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pulsar/config"
	"pulsar/core"
	"pulsar/detect"
	"pulsar/ingest"
	"pulsar/metrics"
	"pulsar/util/goroutine"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Options controls how NewApp builds the application
type Options struct {
	// ConfigPath is an explicit config file; empty searches . and ./config
	ConfigPath string
	// Viper carries flag bindings; nil uses defaults and env vars only
	Viper *viper.Viper
	// Input is the event stream, usually stdin; nil disables stream ingest
	Input io.Reader
	// Output receives derived threats as JSON lines; nil means stdout
	Output io.Writer
	// Logger overrides the console logger
	Logger *zap.Logger
}

// App represents the pulsar application with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Channels
	RawEventCh chan *core.Event
	ThreatCh   chan *core.Event

	// Detection
	Engine   *detect.PulsarEngine
	Sender   *ingest.ChannelSender
	Pipeline *ingest.Pipeline

	// Services
	StreamReader  *ingest.StreamReader
	HTTPListener  *ingest.HTTPListener
	ThreatWriter  *ingest.ThreatWriter
	MetricsServer *metrics.Server

	// Lifecycle
	ctx       context.Context
	cancel    context.CancelFunc
	readerWg  sync.WaitGroup
	writerWg  sync.WaitGroup
	inputDone chan struct{}
	started   bool
	stopOnce  sync.Once
}

// NewApp creates a new application instance and initializes all components.
// Rule loading errors are returned unchanged in the error chain.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, _, err = InitLogger("info")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	sugar := logger.Sugar()

	cfg, err := InitConfig(opts.Viper, opts.ConfigPath, sugar)
	if err != nil {
		return nil, err
	}

	// rebuild the console logger at the configured level
	if opts.Logger == nil && cfg.Log.Level != "info" {
		logger, sugar, err = InitLogger(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
	}

	appCtx, cancel := context.WithCancel(ctx)
	app := &App{
		Config:     cfg,
		Logger:     logger,
		Sugar:      sugar,
		RawEventCh: make(chan *core.Event, cfg.Engine.ChannelBufferSize),
		ThreatCh:   make(chan *core.Event, cfg.Engine.ChannelBufferSize),
		ctx:        appCtx,
		cancel:     cancel,
		inputDone:  make(chan struct{}),
	}

	sugar.Info("Pulsar rules engine starting...")

	app.Sender = ingest.NewChannelSender(cfg.Engine.ModuleName, app.ThreatCh, sugar)
	app.Engine, err = InitEngine(cfg, app.Sender, sugar)
	if err != nil {
		cancel()
		return nil, err
	}

	// the pipeline outlives the sources so Shutdown can drain it
	app.Pipeline = ingest.NewPipeline(ctx, app.Engine, app.RawEventCh,
		cfg.Engine.WorkerCount, cfg.Engine.ChannelBufferSize, sugar)
	if err := app.Pipeline.EnableDeduplication(cfg.Ingest.DedupCacheSize); err != nil {
		cancel()
		return nil, err
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	app.ThreatWriter = ingest.NewThreatWriter(output, app.ThreatCh, sugar)

	if opts.Input != nil {
		app.StreamReader, err = ingest.NewStreamReader("stdin", opts.Input, cfg.Ingest.Format,
			cfg.Ingest.RateLimit, app.RawEventCh, sugar)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	if cfg.Ingest.HTTP.Enabled {
		app.HTTPListener, err = ingest.NewHTTPListener(cfg.Ingest.HTTP.Host, cfg.Ingest.HTTP.Port,
			cfg.Ingest.RateLimit, app.RawEventCh, sugar)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	if cfg.Metrics.Enabled {
		app.MetricsServer = metrics.NewServer(cfg.Metrics.Addr, sugar)
	}

	return app, nil
}

// Start starts all services
func (a *App) Start(ctx context.Context) error {
	if a.MetricsServer != nil {
		if err := a.MetricsServer.Start(); err != nil {
			return err
		}
	}

	goroutine.Go(&a.writerWg, "threat-writer", a.Sugar, func() {
		if err := a.ThreatWriter.Run(context.Background()); err != nil {
			a.Sugar.Errorw("Threat writer stopped", "error", err)
		}
	})

	if err := a.Pipeline.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	a.started = true

	if a.HTTPListener != nil {
		if err := a.HTTPListener.Start(); err != nil {
			return err
		}
	}

	if a.StreamReader != nil {
		goroutine.Go(&a.readerWg, "stream-reader", a.Sugar, func() {
			defer close(a.inputDone)
			if err := a.StreamReader.Run(a.ctx); err != nil && a.ctx.Err() == nil {
				a.Sugar.Errorw("Event stream failed", "error", err)
			}
			a.Sugar.Info("Event stream closed")
		})
	}

	a.Sugar.Infow("Pulsar started",
		"rules", len(a.Engine.Rules()),
		"workers", a.Config.Engine.WorkerCount)
	return nil
}

// InputDone is closed when the event stream is exhausted. It is never
// closed when no stream is configured.
func (a *App) InputDone() <-chan struct{} {
	return a.inputDone
}

// WaitForShutdown blocks until a termination signal arrives or ctx is done.
// When the only event source is the stream, it also returns once the stream
// ends.
func (a *App) WaitForShutdown(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var inputDone <-chan struct{}
	if a.StreamReader != nil && a.HTTPListener == nil {
		inputDone = a.inputDone
	}

	select {
	case <-sigCtx.Done():
	case <-inputDone:
	}
}

// Shutdown stops every service, draining in-flight events. It is safe to
// call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")

	// Phase 1 - Stop producers
	a.Sugar.Info("Phase 1: Stopping event sources...")
	if a.HTTPListener != nil {
		a.HTTPListener.Stop()
	}
	a.cancel()
	a.readerWg.Wait()

	// Phase 2 - Close the pipeline input and drain it
	a.Sugar.Info("Phase 2: Draining pipeline...")
	close(a.RawEventCh)
	if a.started {
		select {
		case <-a.Pipeline.Done():
		case <-time.After(5 * time.Second):
			a.Sugar.Warn("Pipeline dispatch did not finish in time")
		}
	}
	a.Pipeline.Stop()

	// Phase 3 - Flush threats
	a.Sugar.Info("Phase 3: Flushing threats...")
	close(a.ThreatCh)
	a.writerWg.Wait()
	a.Sugar.Infow("Threats written", "count", a.ThreatWriter.Written())

	// Phase 4 - Stop metrics server
	if a.MetricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.MetricsServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop metrics server", "error", err)
		}
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}
