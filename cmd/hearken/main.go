// Command hearken is the hands-free voice assistant front-end: it listens
// for a wake phrase, captures the utterance that follows, and drives a
// multi-turn spoken conversation with a reasoning backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/hearken-ai/hearken/internal/app"
	"github.com/hearken-ai/hearken/internal/config"
	"github.com/hearken-ai/hearken/internal/observe"
	"github.com/hearken-ai/hearken/internal/resilience"
	"github.com/hearken-ai/hearken/pkg/audio"
	discordaudio "github.com/hearken-ai/hearken/pkg/audio/discord"
	"github.com/hearken-ai/hearken/pkg/provider/keyword"
	"github.com/hearken-ai/hearken/pkg/provider/keyword/porcupine"
	"github.com/hearken-ai/hearken/pkg/provider/llm"
	"github.com/hearken-ai/hearken/pkg/provider/llm/anyllm"
	oaillm "github.com/hearken-ai/hearken/pkg/provider/llm/openai"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
	"github.com/hearken-ai/hearken/pkg/provider/stt/deepgram"
	"github.com/hearken-ai/hearken/pkg/provider/stt/whisper"
	"github.com/hearken-ai/hearken/pkg/provider/tts"
	"github.com/hearken-ai/hearken/pkg/provider/tts/coqui"
	"github.com/hearken-ai/hearken/pkg/provider/vad"
	"github.com/hearken-ai/hearken/pkg/provider/vad/adaptive"
	"github.com/hearken-ai/hearken/pkg/provider/vad/energy"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "hearken: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "hearken: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("hearken starting",
		"config", *configPath,
		"wake_phrase", cfg.Wake.Phrase,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "hearken",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(cfg, providers, app.WithLogger(logger))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("ready — say the wake phrase, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages. The VAD factories additionally
// capture cfg for the calibration parameters, which live outside the
// provider entry.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	// The native OpenAI provider carries vision support and fine-grained
	// request control.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends share the any-llm pattern: optional APIKey +
	// optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.Option("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.Option("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.Option("model_path", "")
		}
		var opts []whisper.NativeOption
		if lang := entry.Option("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.Option("language", ""); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := entry.Option("api_mode", ""); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Classifier, error) {
		level, err := strconv.Atoi(entry.Option("level", "1"))
		if err != nil {
			return nil, fmt.Errorf("vad level: %w", err)
		}
		return energy.New(energy.Config{Level: vad.Level(level)})
	})

	reg.RegisterVAD("adaptive", func(config.ProviderEntry) (vad.Classifier, error) {
		return adaptive.New(app.AdaptiveVADConfig(cfg.VAD), func(level vad.Level) (vad.Classifier, error) {
			return energy.New(energy.Config{Level: level})
		})
	})

	// ── Keyword ───────────────────────────────────────────────────────────────

	reg.RegisterKeyword("porcupine", func(entry config.ProviderEntry) (keyword.Engine, error) {
		var opts []porcupine.Option
		if path := entry.Option("model_path", ""); path != "" {
			opts = append(opts, porcupine.WithKeywordModel(cfg.Wake.Phrase, path))
		}
		if s := entry.Option("sensitivity", ""); s != "" {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return nil, fmt.Errorf("porcupine sensitivity: %w", err)
			}
			opts = append(opts, porcupine.WithSensitivity(float32(v)))
		}
		return porcupine.New(entry.APIKey, opts...)
	})

	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterAudio("discord", func(entry config.ProviderEntry) (audio.Device, error) {
		guildID := entry.Option("guild_id", "")
		channelID := entry.Option("channel_id", "")
		if guildID == "" || channelID == "" {
			return nil, errors.New("discord audio needs guild_id and channel_id options")
		}
		return discordaudio.NewWithToken(entry.APIKey, guildID, channelID)
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct. Entries with fallbacks are
// wrapped in a failover decorator so a dead backend degrades the pipeline to
// the next configured one instead of ending the conversation.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		if fallbacks := cfg.Providers.LLM.Fallbacks; len(fallbacks) > 0 {
			fb := resilience.NewLLMFallback(p, name, resilience.FallbackConfig{})
			for _, entry := range fallbacks {
				sp, err := reg.CreateLLM(entry)
				if err != nil {
					return nil, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
				}
				fb.AddFallback(entry.Name, sp)
			}
			ps.LLM = fb
		} else {
			ps.LLM = p
		}
		slog.Info("provider created", "kind", "llm", "name", name, "fallbacks", len(cfg.Providers.LLM.Fallbacks))
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		if fallbacks := cfg.Providers.STT.Fallbacks; len(fallbacks) > 0 {
			fb := resilience.NewSTTFallback(p, name, resilience.FallbackConfig{})
			for _, entry := range fallbacks {
				sp, err := reg.CreateSTT(entry)
				if err != nil {
					return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
				}
				fb.AddFallback(entry.Name, sp)
			}
			ps.STT = fb
		} else {
			ps.STT = p
		}
		slog.Info("provider created", "kind", "stt", "name", name, "fallbacks", len(cfg.Providers.STT.Fallbacks))
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		if fallbacks := cfg.Providers.TTS.Fallbacks; len(fallbacks) > 0 {
			fb := resilience.NewTTSFallback(p, name, resilience.FallbackConfig{})
			for _, entry := range fallbacks {
				sp, err := reg.CreateTTS(entry)
				if err != nil {
					return nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
				}
				fb.AddFallback(entry.Name, sp)
			}
			ps.TTS = fb
		} else {
			ps.TTS = p
		}
		slog.Info("provider created", "kind", "tts", "name", name, "fallbacks", len(cfg.Providers.TTS.Fallbacks))
	}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			return nil, fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.VAD = p
		slog.Info("provider created", "kind", "vad", "name", name)
	} else {
		// The adaptive classifier is the sensible default: it needs no
		// per-deployment tuning.
		p, err := adaptive.New(app.AdaptiveVADConfig(cfg.VAD), func(level vad.Level) (vad.Classifier, error) {
			return energy.New(energy.Config{Level: level})
		})
		if err != nil {
			return nil, fmt.Errorf("create default vad: %w", err)
		}
		ps.VAD = p
		slog.Info("provider created", "kind", "vad", "name", "adaptive (default)")
	}

	if name := cfg.Providers.Keyword.Name; name != "" {
		p, err := reg.CreateKeyword(cfg.Providers.Keyword)
		if err != nil {
			return nil, fmt.Errorf("create keyword engine %q: %w", name, err)
		}
		ps.Keyword = p
		slog.Info("provider created", "kind", "keyword", "name", name)
	}

	if name := cfg.Providers.Audio.Name; name != "" {
		p, err := reg.CreateAudio(cfg.Providers.Audio)
		if err != nil {
			return nil, fmt.Errorf("create audio device %q: %w", name, err)
		}
		ps.Audio = p
		slog.Info("provider created", "kind", "audio", "name", name)
	}

	return ps, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
