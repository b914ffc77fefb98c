package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  metrics_addr: ":9090"
  log_level: debug
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
  stt:
    name: deepgram
    api_key: dg-test
  tts:
    name: coqui
    base_url: http://localhost:5002
  audio:
    name: discord
    options:
      guild_id: "123"
      channel_id: "456"
wake:
  phrase: hey glasses
  variants: ["a glasses", "hey glassis"]
  threshold: 0.8
  debounce_ms: 700
  pre_roll_ms: 1500
gain:
  target_rms: 0.1
  min_gain: 0.5
  max_gain: 8.0
vad:
  min_level: 0
  max_level: 4
  calibration_frames: 50
  breakpoints:
    - {max_rms: 0.005, level: 0}
    - {max_rms: 0.012, level: 1}
    - {max_rms: 0.025, level: 2}
capture:
  grace_ms: 1000
  silence_ms: 1200
  min_speech_frames: 5
  max_duration_ms: 30000
  tail_padding_ms: 300
  bye_variants: ["bye glasses"]
  done_variants: ["done"]
session:
  system_prompt: be brief
  followup_timeout_ms: 15000
  echo_cooldown_ms: 500
  history_turns: 8
  temperature: 0.7
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Wake.Phrase != "hey glasses" {
		t.Errorf("Wake.Phrase = %q", cfg.Wake.Phrase)
	}
	if len(cfg.Wake.Variants) != 2 {
		t.Errorf("Wake.Variants = %v", cfg.Wake.Variants)
	}
	if cfg.Providers.Audio.Option("guild_id", "") != "123" {
		t.Errorf("audio guild_id option = %q", cfg.Providers.Audio.Option("guild_id", ""))
	}
	if cfg.Providers.Audio.Option("missing", "fallback") != "fallback" {
		t.Error("Option should return the default for missing keys")
	}
	if len(cfg.VAD.Breakpoints) != 3 || cfg.VAD.Breakpoints[2].Level != 2 {
		t.Errorf("VAD.Breakpoints = %+v", cfg.VAD.Breakpoints)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	yaml := `
wake:
  phrase: hey glasses
  debouce_ms: 700
providers:
  stt:
    name: deepgram
`
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Error("misspelled field should be rejected by strict decoding")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Wake:      WakeConfig{Phrase: "hey glasses"},
			Providers: ProvidersConfig{STT: ProviderEntry{Name: "deepgram"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "minimal valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing wake phrase",
			mutate:  func(c *Config) { c.Wake.Phrase = "" },
			wantErr: "wake.phrase is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Wake.Threshold = 1.5 },
			wantErr: "wake.threshold",
		},
		{
			name:    "gain min above max",
			mutate:  func(c *Config) { c.Gain.MinGain = 4; c.Gain.MaxGain = 2 },
			wantErr: "gain.min_gain",
		},
		{
			name:    "vad level range inverted",
			mutate:  func(c *Config) { c.VAD.MinLevel = 3; c.VAD.MaxLevel = 1 },
			wantErr: "vad.min_level",
		},
		{
			name: "breakpoints out of order",
			mutate: func(c *Config) {
				c.VAD.Breakpoints = []VADBreakpoint{{MaxRMS: 0.02, Level: 0}, {MaxRMS: 0.01, Level: 1}}
			},
			wantErr: "vad.breakpoints[1]",
		},
		{
			name:    "negative capture duration",
			mutate:  func(c *Config) { c.Capture.SilenceMs = -1 },
			wantErr: "capture.silence_ms",
		},
		{
			name: "no wake backend",
			mutate: func(c *Config) {
				c.Providers.STT.Name = ""
				c.Providers.Keyword.Name = ""
			},
			wantErr: "providers.keyword or providers.stt",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Session.Temperature = 3 },
			wantErr: "session.temperature",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{LogLevel: "loud"},
		Wake:   WakeConfig{Threshold: 2},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"server.log_level", "wake.phrase", "wake.threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}
