// Package config provides the configuration schema, loader, and provider
// registry for the Hearken voice front-end.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Wake      WakeConfig      `yaml:"wake"`
	Gain      GainConfig      `yaml:"gain"`
	VAD       VADConfig       `yaml:"vad"`
	Capture   CaptureConfig   `yaml:"capture"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the /metrics endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation serves each
// pipeline stage. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	LLM     ProviderEntry `yaml:"llm"`
	STT     ProviderEntry `yaml:"stt"`
	TTS     ProviderEntry `yaml:"tts"`
	VAD     ProviderEntry `yaml:"vad"`
	Keyword ProviderEntry `yaml:"keyword"`
	Audio   ProviderEntry `yaml:"audio"`
}

// ProviderEntry identifies one provider and its connection settings.
type ProviderEntry struct {
	// Name selects the registered factory (e.g., "deepgram", "coqui").
	Name string `yaml:"name"`

	// APIKey is the provider credential, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects the model, voice, or engine variant.
	Model string `yaml:"model"`

	// Options holds provider-specific settings not covered above.
	Options map[string]string `yaml:"options"`

	// Fallbacks lists secondary providers of the same kind, tried in order
	// when this one fails. Nested fallbacks are ignored.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// Option returns Options[key], or def when the key is absent or empty.
func (e ProviderEntry) Option(key, def string) string {
	if v, ok := e.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// WakeConfig tunes the wake detector.
type WakeConfig struct {
	// Phrase is the wake phrase. Required.
	Phrase string `yaml:"phrase"`

	// Variants are known near-miss transcriptions of the phrase.
	Variants []string `yaml:"variants"`

	// Threshold is the fuzzy-match similarity threshold in (0, 1].
	// 0 selects the default.
	Threshold float64 `yaml:"threshold"`

	// DebounceMs is the trigger cooldown in milliseconds. 0 selects the
	// 700 ms default.
	DebounceMs int `yaml:"debounce_ms"`

	// PreRollMs is the pre-roll ring length in milliseconds.
	PreRollMs int `yaml:"pre_roll_ms"`

	// Language hint for the transcription strategy.
	Language string `yaml:"language"`
}

// GainConfig tunes the automatic gain control.
type GainConfig struct {
	// TargetRMS is the loudness target in (0, 1). 0 selects the default.
	TargetRMS float64 `yaml:"target_rms"`

	// MinGain and MaxGain clamp the applied gain.
	MinGain float64 `yaml:"min_gain"`
	MaxGain float64 `yaml:"max_gain"`

	// SilenceFloor is the RMS below which frames pass through unadjusted.
	SilenceFloor float64 `yaml:"silence_floor"`
}

// VADBreakpoint maps a background RMS ceiling to a sensitivity level.
type VADBreakpoint struct {
	MaxRMS float64 `yaml:"max_rms"`
	Level  int     `yaml:"level"`
}

// VADConfig tunes the adaptive voice activity detector.
type VADConfig struct {
	// MinLevel and MaxLevel clamp the calibrated sensitivity level.
	MinLevel int `yaml:"min_level"`
	MaxLevel int `yaml:"max_level"`

	// CalibrationFrames is the calibration budget. 0 selects the ~1 s
	// default.
	CalibrationFrames int `yaml:"calibration_frames"`

	// Breakpoints override the default background-RMS → level table. Must
	// be ordered by ascending max_rms.
	Breakpoints []VADBreakpoint `yaml:"breakpoints"`
}

// CaptureConfig tunes the segment capturer.
type CaptureConfig struct {
	GraceMs           int `yaml:"grace_ms"`
	SilenceMs         int `yaml:"silence_ms"`
	MinSpeechFrames   int `yaml:"min_speech_frames"`
	MaxDurationMs     int `yaml:"max_duration_ms"`
	NoSpeechTimeoutMs int `yaml:"no_speech_timeout_ms"`
	TailPaddingMs     int `yaml:"tail_padding_ms"`

	// ByeVariants and DoneVariants are the verbal short-circuits with their
	// known near-miss transcriptions.
	ByeVariants  []string `yaml:"bye_variants"`
	DoneVariants []string `yaml:"done_variants"`

	// Threshold for the bye/done fuzzy matchers in (0, 1].
	Threshold float64 `yaml:"threshold"`
}

// SessionConfig tunes the conversation session driver.
type SessionConfig struct {
	// SystemPrompt for the reasoning backend.
	SystemPrompt string `yaml:"system_prompt"`

	// Voice is the TTS voice ID spoken replies use.
	Voice string `yaml:"voice"`

	FollowupTimeoutMs int `yaml:"followup_timeout_ms"`
	EchoCooldownMs    int `yaml:"echo_cooldown_ms"`
	SettleDelayMs     int `yaml:"settle_delay_ms"`

	// HistoryTurns bounds the trailing conversation window handed to the
	// reasoning call.
	HistoryTurns int `yaml:"history_turns"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}
