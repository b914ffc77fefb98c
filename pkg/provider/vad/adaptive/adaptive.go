// Package adaptive implements a self-calibrating VAD decorator.
//
// A fixed sensitivity level is either too trigger-happy in a noisy room or
// deaf to soft speech in a quiet one. The adaptive classifier spends its
// first frames (about one second) measuring background loudness, classifying
// everything as silence, then picks a discrete sensitivity level from the
// measured background and delegates to an underlying classifier built at
// that level. Re-calibration happens only on explicit Reset, at session
// start.
package adaptive

import (
	"errors"
	"log/slog"

	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/vad"
)

// Breakpoint maps a background RMS ceiling to a sensitivity level: the first
// breakpoint whose MaxRMS is not exceeded wins. Quieter backgrounds select
// lower (more sensitive) levels.
type Breakpoint struct {
	MaxRMS float64
	Level  vad.Level
}

// DefaultBreakpoints were tuned empirically; treat them as a starting point
// and override per deployment through configuration.
var DefaultBreakpoints = []Breakpoint{
	{MaxRMS: 0.005, Level: 0},
	{MaxRMS: 0.012, Level: 1},
	{MaxRMS: 0.025, Level: 2},
	{MaxRMS: 0.050, Level: 3},
}

// Config holds the calibration parameters.
type Config struct {
	// CalibrationFrames is the number of frames consumed before a level is
	// selected. Defaults to 50 (one second of 20 ms frames).
	CalibrationFrames int

	// Smoothing is the EMA factor for the background RMS. Defaults to 0.2.
	Smoothing float64

	// Breakpoints map background RMS to levels, quietest first. Backgrounds
	// above the last breakpoint select FallbackLevel. Defaults to
	// DefaultBreakpoints.
	Breakpoints []Breakpoint

	// FallbackLevel is used when the background exceeds every breakpoint.
	// Defaults to MaxLevel.
	FallbackLevel vad.Level

	// MinLevel and MaxLevel clamp the selected level.
	MinLevel vad.Level
	MaxLevel vad.Level
}

// DefaultConfig returns the calibration defaults for 20 ms frames and the
// energy classifier's five levels.
func DefaultConfig() Config {
	return Config{
		CalibrationFrames: 50,
		Smoothing:         0.2,
		Breakpoints:       DefaultBreakpoints,
		FallbackLevel:     4,
		MinLevel:          0,
		MaxLevel:          4,
	}
}

// Factory builds the delegate classifier once a level has been selected.
type Factory func(level vad.Level) (vad.Classifier, error)

// Classifier is the calibrating decorator. It implements vad.Classifier;
// until calibration completes every frame is classified as silence.
type Classifier struct {
	cfg     Config
	factory Factory

	backgroundRMS float64
	framesSeen    int
	calibrated    bool
	level         vad.Level
	delegate      vad.Classifier
}

var _ vad.Classifier = (*Classifier)(nil)
var _ vad.Resetter = (*Classifier)(nil)

// New creates an uncalibrated adaptive classifier. The factory is invoked
// exactly once per calibration cycle, when the frame budget is reached.
func New(cfg Config, factory Factory) (*Classifier, error) {
	if factory == nil {
		return nil, errors.New("adaptive: nil classifier factory")
	}
	def := DefaultConfig()
	if cfg.CalibrationFrames <= 0 {
		cfg.CalibrationFrames = def.CalibrationFrames
	}
	if cfg.Smoothing <= 0 || cfg.Smoothing > 1 {
		cfg.Smoothing = def.Smoothing
	}
	if len(cfg.Breakpoints) == 0 {
		cfg.Breakpoints = def.Breakpoints
		cfg.FallbackLevel = def.FallbackLevel
		cfg.MaxLevel = def.MaxLevel
	}
	if cfg.MaxLevel < cfg.MinLevel {
		return nil, errors.New("adaptive: max level below min level")
	}
	return &Classifier{cfg: cfg, factory: factory}, nil
}

// IsSpeech implements vad.Classifier. During calibration it feeds the frame
// into the background average and returns false unconditionally.
func (c *Classifier) IsSpeech(pcm []byte, sampleRate int) bool {
	if !c.calibrated {
		c.observe(audio.RMS(pcm))
		return false
	}
	return c.delegate.IsSpeech(pcm, sampleRate)
}

func (c *Classifier) observe(rms float64) {
	if c.framesSeen == 0 {
		c.backgroundRMS = rms
	} else {
		c.backgroundRMS += (rms - c.backgroundRMS) * c.cfg.Smoothing
	}
	c.framesSeen++
	if c.framesSeen < c.cfg.CalibrationFrames {
		return
	}

	c.level = c.selectLevel()
	delegate, err := c.factory(c.level)
	if err != nil {
		// Selection is clamped, so a factory error means a broken wiring
		// bug rather than a bad level. Stay in calibration and log once
		// per budget worth of frames.
		slog.Error("adaptive vad: classifier factory failed, retrying calibration",
			"level", int(c.level), "error", err)
		c.framesSeen = 0
		return
	}
	c.delegate = delegate
	c.calibrated = true
	slog.Debug("adaptive vad: calibrated",
		"background_rms", c.backgroundRMS,
		"level", int(c.level),
		"frames", c.framesSeen,
	)
}

func (c *Classifier) selectLevel() vad.Level {
	level := c.cfg.FallbackLevel
	for _, bp := range c.cfg.Breakpoints {
		if c.backgroundRMS <= bp.MaxRMS {
			level = bp.Level
			break
		}
	}
	if level < c.cfg.MinLevel {
		level = c.cfg.MinLevel
	}
	if level > c.cfg.MaxLevel {
		level = c.cfg.MaxLevel
	}
	return level
}

// Reset discards all calibration state. The next frames start a fresh
// calibration cycle.
func (c *Classifier) Reset() {
	c.backgroundRMS = 0
	c.framesSeen = 0
	c.calibrated = false
	c.level = 0
	c.delegate = nil
}

// Calibrated reports whether a sensitivity level has been selected.
func (c *Classifier) Calibrated() bool { return c.calibrated }

// Level returns the selected sensitivity level. Only meaningful once
// Calibrated reports true.
func (c *Classifier) Level() vad.Level { return c.level }

// BackgroundRMS returns the smoothed background loudness estimate.
func (c *Classifier) BackgroundRMS() float64 { return c.backgroundRMS }
