package app

import (
	"time"

	"github.com/hearken-ai/hearken/internal/capture"
	"github.com/hearken-ai/hearken/internal/config"
	"github.com/hearken-ai/hearken/internal/session"
	"github.com/hearken-ai/hearken/internal/wake"
	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
	"github.com/hearken-ai/hearken/pkg/provider/tts"
	"github.com/hearken-ai/hearken/pkg/provider/vad"
	"github.com/hearken-ai/hearken/pkg/provider/vad/adaptive"
)

// ms converts a millisecond count from the config file to a Duration. Zero
// stays zero so component defaults apply.
func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func gainConfig(c config.GainConfig) audio.GainConfig {
	return audio.GainConfig{
		TargetRMS:    c.TargetRMS,
		MinGain:      c.MinGain,
		MaxGain:      c.MaxGain,
		SilenceFloor: c.SilenceFloor,
	}
}

func wakeConfig(c config.WakeConfig) wake.Config {
	return wake.Config{
		Phrase:         c.Phrase,
		Variants:       c.Variants,
		Debounce:       ms(c.DebounceMs),
		PreRoll:        ms(c.PreRollMs),
		MatchThreshold: c.Threshold,
		Language:       c.Language,
	}
}

func captureConfig(c config.CaptureConfig) capture.Config {
	return capture.Config{
		GracePeriod:      ms(c.GraceMs),
		SilenceThreshold: ms(c.SilenceMs),
		MinSpeechFrames:  c.MinSpeechFrames,
		MaxDuration:      ms(c.MaxDurationMs),
		NoSpeechTimeout:  ms(c.NoSpeechTimeoutMs),
		TailPadding:      ms(c.TailPaddingMs),
		ByeVariants:      c.ByeVariants,
		DoneVariants:     c.DoneVariants,
		MatchThreshold:   c.Threshold,
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		SystemPrompt:   cfg.Session.SystemPrompt,
		Voice:          tts.VoiceProfile{ID: cfg.Session.Voice},
		FollowupWindow: ms(cfg.Session.FollowupTimeoutMs),
		EchoCooldown:   ms(cfg.Session.EchoCooldownMs),
		SettleDelay:    ms(cfg.Session.SettleDelayMs),
		PreRoll:        ms(cfg.Wake.PreRollMs),
		HistoryTurns:   cfg.Session.HistoryTurns,
		Language:       cfg.Wake.Language,
		Keywords:       keywordBoosts(cfg),
		Temperature:    cfg.Session.Temperature,
		MaxTokens:      cfg.Session.MaxTokens,
	}
}

// keywordBoosts biases the transcription engine towards the canonical
// control words so the verbal short-circuits are recognised reliably.
func keywordBoosts(cfg *config.Config) []stt.KeywordBoost {
	var boosts []stt.KeywordBoost
	add := func(word string) {
		if word != "" {
			boosts = append(boosts, stt.KeywordBoost{Keyword: word, Boost: 2.0})
		}
	}
	add(cfg.Wake.Phrase)
	if len(cfg.Capture.ByeVariants) > 0 {
		add(cfg.Capture.ByeVariants[0])
	}
	if len(cfg.Capture.DoneVariants) > 0 {
		add(cfg.Capture.DoneVariants[0])
	}
	return boosts
}

// AdaptiveVADConfig converts the vad section of the config file into the
// adaptive classifier's calibration parameters. Exported for main.go, which
// registers the VAD factories.
func AdaptiveVADConfig(c config.VADConfig) adaptive.Config {
	cfg := adaptive.Config{
		CalibrationFrames: c.CalibrationFrames,
		MinLevel:          vad.Level(c.MinLevel),
		MaxLevel:          vad.Level(c.MaxLevel),
	}
	for _, bp := range c.Breakpoints {
		cfg.Breakpoints = append(cfg.Breakpoints, adaptive.Breakpoint{
			MaxRMS: bp.MaxRMS,
			Level:  vad.Level(bp.Level),
		})
	}
	return cfg
}
