package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tonetutor-labs/tonetutor-core/internal/assess"
	"github.com/tonetutor-labs/tonetutor-core/internal/bus"
	"github.com/tonetutor-labs/tonetutor-core/internal/config"
	"github.com/tonetutor-labs/tonetutor-core/internal/history"
	"github.com/tonetutor-labs/tonetutor-core/internal/natsserver"
	"github.com/tonetutor-labs/tonetutor-core/internal/speech"
	"github.com/tonetutor-labs/tonetutor-core/internal/transcode"
	"github.com/tonetutor-labs/tonetutor-core/internal/translate"
)

// Runtime wires the assessment pipeline behind the HTTP boundary and
// manages startup and graceful shutdown of every supporting service.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	assessSvc   *assess.Service
	translateOp *translate.Service
	store       *history.Store
	busClient   *bus.Client
	embedded    *natsserver.EmbeddedServer
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings up every service and blocks until ctx is cancelled, then
// shuts everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Enabled {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.embedded = embedded

		servers := r.cfg.Bus.Servers
		if r.cfg.Bus.Embedded {
			servers = []string{fmt.Sprintf("nats://localhost:%d", r.cfg.Bus.Port)}
		}
		busCfg := r.cfg.Bus
		busCfg.Servers = servers
		busClient, err := bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		r.busClient = busClient
	}

	store, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open attempt history: %w", err)
	}
	r.store = store

	var recognizer speech.Recognizer
	if r.cfg.Speech.Configured() {
		recognizer = speech.NewAzureRecognizer(r.cfg.Speech)
		r.logger.Info("speech assessment engine configured",
			slog.String("region", r.cfg.Speech.Region),
			slog.String("language", r.cfg.Speech.Language))
	} else {
		r.logger.Warn("speech credentials not configured, running in demo mode")
	}

	var transcoder transcode.Transcoder = transcode.NewNoopTranscoder()
	if r.cfg.Transcode.Enabled {
		t, err := transcode.NewExecTranscoder(r.cfg.Transcode)
		if err != nil {
			r.logger.Warn("transcoder unavailable, forwarding audio as received",
				slog.String("error", err.Error()))
		} else {
			transcoder = t
		}
	}

	r.assessSvc = assess.NewService(recognizer, transcoder, r.store, r.busClient, r.logger)
	r.translateOp = translate.NewService(r.cfg.Translate, r.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	mux.Handle("/api/speech-assessment", r.cors(http.HandlerFunc(r.handleAssessment)))
	mux.Handle("/api/translate", r.cors(http.HandlerFunc(r.handleTranslate)))
	mux.Handle("/api/attempts", r.cors(http.HandlerFunc(r.handleAttempts)))
	if r.cfg.HTTP.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(r.cfg.HTTP.StaticDir)))
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.busClient != nil {
		r.busClient.Close()
	}
	if r.embedded != nil {
		r.embedded.Shutdown()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("history close error", slog.String("error", err.Error()))
		}
	}
	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
