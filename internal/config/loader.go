package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":     {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":     {"deepgram", "whisper", "whisper-native"},
	"tts":     {"coqui"},
	"vad":     {"energy", "adaptive"},
	"keyword": {"porcupine"},
	"audio":   {"discord"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown fields are rejected, so typos fail loudly instead of silently
// falling back to defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("keyword", cfg.Providers.Keyword.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)
	for _, fb := range cfg.Providers.LLM.Fallbacks {
		validateProviderName("llm", fb.Name)
	}
	for _, fb := range cfg.Providers.STT.Fallbacks {
		validateProviderName("stt", fb.Name)
	}
	for _, fb := range cfg.Providers.TTS.Fallbacks {
		validateProviderName("tts", fb.Name)
	}

	// Wake
	if cfg.Wake.Phrase == "" {
		errs = append(errs, errors.New("wake.phrase is required"))
	}
	if cfg.Wake.Threshold < 0 || cfg.Wake.Threshold > 1 {
		errs = append(errs, fmt.Errorf("wake.threshold %.2f is out of range (0, 1]", cfg.Wake.Threshold))
	}
	if cfg.Wake.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("wake.debounce_ms %d must not be negative", cfg.Wake.DebounceMs))
	}
	if cfg.Providers.Keyword.Name == "" && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("wake detection needs providers.keyword or providers.stt"))
	}

	// Gain
	if cfg.Gain.TargetRMS < 0 || cfg.Gain.TargetRMS >= 1 {
		errs = append(errs, fmt.Errorf("gain.target_rms %.3f is out of range (0, 1)", cfg.Gain.TargetRMS))
	}
	if cfg.Gain.MinGain < 0 || cfg.Gain.MaxGain < 0 {
		errs = append(errs, errors.New("gain.min_gain and gain.max_gain must not be negative"))
	}
	if cfg.Gain.MinGain > 0 && cfg.Gain.MaxGain > 0 && cfg.Gain.MinGain > cfg.Gain.MaxGain {
		errs = append(errs, fmt.Errorf("gain.min_gain %.2f exceeds gain.max_gain %.2f", cfg.Gain.MinGain, cfg.Gain.MaxGain))
	}

	// VAD
	if cfg.VAD.MinLevel < 0 || cfg.VAD.MaxLevel < 0 {
		errs = append(errs, errors.New("vad.min_level and vad.max_level must not be negative"))
	}
	if cfg.VAD.MinLevel > cfg.VAD.MaxLevel {
		errs = append(errs, fmt.Errorf("vad.min_level %d exceeds vad.max_level %d", cfg.VAD.MinLevel, cfg.VAD.MaxLevel))
	}
	for i := 1; i < len(cfg.VAD.Breakpoints); i++ {
		if cfg.VAD.Breakpoints[i].MaxRMS <= cfg.VAD.Breakpoints[i-1].MaxRMS {
			errs = append(errs, fmt.Errorf("vad.breakpoints[%d].max_rms must exceed vad.breakpoints[%d].max_rms", i, i-1))
		}
	}

	// Capture
	for _, v := range []struct {
		name  string
		value int
	}{
		{"capture.grace_ms", cfg.Capture.GraceMs},
		{"capture.silence_ms", cfg.Capture.SilenceMs},
		{"capture.min_speech_frames", cfg.Capture.MinSpeechFrames},
		{"capture.max_duration_ms", cfg.Capture.MaxDurationMs},
		{"capture.no_speech_timeout_ms", cfg.Capture.NoSpeechTimeoutMs},
		{"capture.tail_padding_ms", cfg.Capture.TailPaddingMs},
	} {
		if v.value < 0 {
			errs = append(errs, fmt.Errorf("%s %d must not be negative", v.name, v.value))
		}
	}
	if cfg.Capture.Threshold < 0 || cfg.Capture.Threshold > 1 {
		errs = append(errs, fmt.Errorf("capture.threshold %.2f is out of range (0, 1]", cfg.Capture.Threshold))
	}

	// Session
	if cfg.Session.FollowupTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("session.followup_timeout_ms %d must not be negative", cfg.Session.FollowupTimeoutMs))
	}
	if cfg.Session.Temperature < 0 || cfg.Session.Temperature > 2 {
		errs = append(errs, fmt.Errorf("session.temperature %.2f is out of range [0, 2]", cfg.Session.Temperature))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; sessions cannot generate responses")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; replies will not be spoken")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
