// Package app wires all Hearken subsystems into a running application.
//
// The App owns the full lifecycle: New constructs the audio chain (gate,
// gain normalizer, capturer), the wake detector, and the session driver from
// configuration; Run executes the wake → session handoff loop; Shutdown
// tears everything down in order.
//
// The microphone is owned by exactly one component at a time. The wake
// detector holds it while idle; on a detection the detector is stopped, the
// session driver takes over for the session's lifetime, and the detector is
// restarted when the session finishes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/hearken-ai/hearken/internal/capture"
	"github.com/hearken-ai/hearken/internal/config"
	"github.com/hearken-ai/hearken/internal/health"
	"github.com/hearken-ai/hearken/internal/observe"
	"github.com/hearken-ai/hearken/internal/session"
	"github.com/hearken-ai/hearken/internal/wake"
	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/keyword"
	"github.com/hearken-ai/hearken/pkg/provider/llm"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
	"github.com/hearken-ai/hearken/pkg/provider/tts"
	"github.com/hearken-ai/hearken/pkg/provider/vad"
)

// Providers holds one interface value per provider slot. Keyword is
// optional (nil selects the transcription wake fallback); the rest are
// required. Populated by main.go via the config registry.
type Providers struct {
	LLM     llm.Provider
	STT     stt.Provider
	TTS     tts.Provider
	VAD     vad.Classifier
	Keyword keyword.Engine
	Audio   audio.Device
}

func (p *Providers) validate() error {
	switch {
	case p.Audio == nil:
		return errors.New("app: audio device is required")
	case p.STT == nil:
		return errors.New("app: stt provider is required")
	case p.LLM == nil:
		return errors.New("app: llm provider is required")
	case p.TTS == nil:
		return errors.New("app: tts provider is required")
	case p.VAD == nil:
		return errors.New("app: vad classifier is required")
	}
	return nil
}

// App owns all subsystem lifetimes and orchestrates the voice front-end.
type App struct {
	cfg       *config.Config
	providers *Providers
	logger    *slog.Logger

	gate     *audio.Gate
	detector *wake.Detector
	driver   *session.Driver
	metrics  *observe.Metrics
	visual   session.VisualSource

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a Metrics instance instead of using the package
// default. Tests pass one backed by a manual reader.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithVisualSource attaches an image source for vision-capable reasoning
// models.
func WithVisualSource(src session.VisualSource) Option {
	return func(a *App) { a.visual = src }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if err := providers.validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.gate = audio.NewGate()

	normalizer := audio.NewNormalizer(gainConfig(cfg.Gain))
	capturer, err := capture.New(captureConfig(cfg.Capture), normalizer, providers.VAD, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: build capturer: %w", err)
	}

	a.detector, err = wake.NewDetector(providers.Audio, wakeConfig(cfg.Wake), providers.Keyword, providers.STT, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: build wake detector: %w", err)
	}

	a.driver, err = session.New(sessionConfig(cfg), session.Deps{
		Device:   providers.Audio,
		Gate:     a.gate,
		Capturer: capturer,
		VAD:      providers.VAD,
		STT:      providers.STT,
		LLM:      providers.LLM,
		TTS:      providers.TTS,
		Observer: observe.NewSessionObserver(a.metrics),
		Visual:   a.visual,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("app: build session driver: %w", err)
	}

	a.closers = append(a.closers, providers.Audio.Close)

	return a, nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the metrics endpoint (when configured) and the wake → session
// loop, blocking until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.MetricsAddr; addr != "" {
		a.serveMetrics(ctx, g, addr)
	}

	g.Go(func() error { return a.interactionLoop(ctx) })

	return g.Wait()
}

// serveMetrics exposes /metrics, /healthz, and /readyz on addr.
func (a *App) serveMetrics(ctx context.Context, g *errgroup.Group, addr string) {
	probes := health.New([]health.Probe{
		{Name: "providers", Check: func(context.Context) error {
			return a.providers.validate()
		}},
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	probes.Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux}

	g.Go(func() error {
		a.logger.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// interactionLoop alternates between wake detection and conversation
// sessions. The wake detector runs on its own cancellable context so the
// microphone can be handed to the session driver and back.
func (a *App) interactionLoop(ctx context.Context) error {
	for {
		det, err := a.awaitWake(ctx)
		if err != nil {
			return err
		}
		a.metrics.RecordWake(ctx, a.detector.Strategy())

		reason, err := a.driver.Run(ctx, det)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// A failed session is not fatal; resume listening.
			a.logger.Error("session ended with error", "reason", reason.String(), "error", err)
			continue
		}
		a.logger.Info("session ended", "reason", reason.String())
	}
}

// awaitWake runs the detector until it emits one detection, then stops it
// and waits for the microphone to be released before returning.
func (a *App) awaitWake(ctx context.Context) (wake.Detection, error) {
	wakeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.detector.Run(wakeCtx) }()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return wake.Detection{}, ctx.Err()

	case err := <-done:
		// The detector may have emitted a detection right before failing;
		// serve it, the failure will resurface on the next wait.
		select {
		case det := <-a.detector.Events():
			return det, nil
		default:
		}
		if err == nil {
			err = errors.New("app: wake detector stopped unexpectedly")
		}
		return wake.Detection{}, fmt.Errorf("app: wake detection: %w", err)

	case det := <-a.detector.Events():
		cancel()
		<-done
		return det, nil
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "error", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
