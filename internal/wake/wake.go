// Package wake implements always-on wake-phrase detection over a microphone
// stream.
//
// A Detector owns its own capture stream and runs one of two interchangeable
// strategies: a frame-synchronous acoustic keyword engine (lowest latency,
// only for phrases the engine knows) or a transcription fallback that
// fuzzy-matches a rolling transcript against the configured phrase variants.
// The strategy is selected once at construction; see NewDetector.
//
// Detections are delivered on a channel, exactly one per wake event, each
// carrying a snapshot of the pre-roll ring so the syllables spoken before
// the trigger fired are not lost. Repeated triggers inside the debounce
// window are suppressed regardless of strategy.
package wake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/keyword"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
)

const (
	defaultDebounce       = 700 * time.Millisecond
	defaultPreRoll        = 1500 * time.Millisecond
	defaultSampleRate     = 16000
	defaultFrameDuration  = 20 * time.Millisecond
	defaultMatchThreshold = 0.78
)

// Detection is one wake event.
type Detection struct {
	// Phrase is the configured wake phrase that fired.
	Phrase string

	// Confidence is the match score. 1.0 for acoustic detections; the fuzzy
	// similarity score for transcription detections.
	Confidence float64

	// PreRoll is a snapshot of the frames captured immediately before the
	// trigger, oldest first. The session driver seeds the segment capturer
	// with these so speech onset is preserved.
	PreRoll []audio.AudioFrame

	// At is when the trigger fired.
	At time.Time
}

// Config holds the detector's tunables. Zero values select the defaults
// noted per field.
type Config struct {
	// Phrase is the wake phrase to listen for. Required.
	Phrase string

	// Variants are known near-miss transcriptions of the phrase (used by the
	// transcription strategy). The phrase itself is always included.
	Variants []string

	// Debounce is the minimum interval between honored triggers.
	// Default 700 ms.
	Debounce time.Duration

	// PreRoll is how much audio to keep buffered ahead of a trigger.
	// Default 1.5 s.
	PreRoll time.Duration

	// SampleRate for the capture stream when the strategy does not mandate
	// one. Default 16000.
	SampleRate int

	// FrameDuration for the capture stream when the strategy does not
	// mandate a frame size. Default 20 ms.
	FrameDuration time.Duration

	// MatchThreshold is the minimum fuzzy similarity for the transcription
	// strategy. Default 0.78.
	MatchThreshold float64

	// Language hint for the transcription strategy.
	Language string
}

func (c *Config) applyDefaults() error {
	if c.Phrase == "" {
		return errors.New("wake: Phrase must not be empty")
	}
	if c.Debounce <= 0 {
		c.Debounce = defaultDebounce
	}
	if c.PreRoll <= 0 {
		c.PreRoll = defaultPreRoll
	}
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = defaultFrameDuration
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = defaultMatchThreshold
	}
	return nil
}

// strategy is the per-frame detection backend. Implementations are owned by
// the detector's run loop and need not be safe for concurrent use.
type strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// FrameSamples returns the mandated samples per frame, or 0 when the
	// strategy accepts any frame size.
	FrameSamples() int

	// SampleRate returns the mandated input rate in Hz, or 0 for any.
	SampleRate() int

	// Start prepares the strategy (opens the transcription session, etc.).
	Start(ctx context.Context) error

	// ProcessFrame consumes one mono PCM frame and reports whether the wake
	// phrase fired in it, with a confidence score.
	ProcessFrame(frame audio.AudioFrame) (fired bool, confidence float64, err error)

	// Close releases the strategy's resources.
	Close() error
}

// Detector listens for the wake phrase on its own microphone stream.
type Detector struct {
	cfg      Config
	device   audio.Device
	strategy strategy
	events   chan Detection
	logger   *slog.Logger

	lastFire time.Time
}

// NewDetector builds a detector for the given device. The strategy is chosen
// at construction: the acoustic engine is used iff one is supplied and it
// can spot cfg.Phrase; otherwise the transcription fallback on sttProvider
// is used. At least one of the two backends must be usable.
func NewDetector(device audio.Device, cfg Config, engine keyword.Engine, sttProvider stt.Provider, logger *slog.Logger) (*Detector, error) {
	if device == nil {
		return nil, errors.New("wake: device must not be nil")
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	strat, err := selectStrategy(cfg, engine, sttProvider, logger)
	if err != nil {
		return nil, err
	}

	return &Detector{
		cfg:      cfg,
		device:   device,
		strategy: strat,
		events:   make(chan Detection, 1),
		logger:   logger.With("component", "wake"),
	}, nil
}

// Events returns the channel wake detections are delivered on. The channel
// is never closed; stop consuming after Run returns.
func (d *Detector) Events() <-chan Detection {
	return d.events
}

// Strategy returns the name of the strategy selected at construction.
func (d *Detector) Strategy() string {
	return d.strategy.Name()
}

// Run opens the capture stream and processes frames until ctx is cancelled
// or the stream fails. It blocks; run it on a dedicated goroutine. On
// cancellation it returns ctx.Err().
func (d *Detector) Run(ctx context.Context) error {
	if err := d.strategy.Start(ctx); err != nil {
		return fmt.Errorf("wake: start %s strategy: %w", d.strategy.Name(), err)
	}
	defer d.strategy.Close()

	streamCfg := audio.StreamConfig{
		SampleRate:   d.cfg.SampleRate,
		Channels:     1,
		FrameSamples: int(d.cfg.FrameDuration.Seconds() * float64(d.cfg.SampleRate)),
	}
	if rate := d.strategy.SampleRate(); rate > 0 {
		streamCfg.SampleRate = rate
	}
	if samples := d.strategy.FrameSamples(); samples > 0 {
		streamCfg.FrameSamples = samples
	}

	stream, err := d.device.OpenCapture(streamCfg)
	if err != nil {
		return fmt.Errorf("wake: open capture stream: %w", err)
	}
	defer stream.Close()

	// Read blocks; closing the stream is the only way to unblock it on
	// cancellation.
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	frameDur := time.Duration(streamCfg.FrameSamples) * time.Second / time.Duration(streamCfg.SampleRate)
	preRoll := audio.NewPreRollRing(d.cfg.PreRoll, frameDur)

	d.logger.Info("listening for wake phrase",
		"phrase", d.cfg.Phrase,
		"strategy", d.strategy.Name(),
		"sample_rate", streamCfg.SampleRate,
		"frame_samples", streamCfg.FrameSamples)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := stream.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wake: read frame: %w", err)
		}

		preRoll.Push(frame)

		fired, confidence, err := d.strategy.ProcessFrame(frame)
		if err != nil {
			return fmt.Errorf("wake: %s strategy: %w", d.strategy.Name(), err)
		}
		if !fired {
			continue
		}

		now := time.Now()
		if !d.lastFire.IsZero() && now.Sub(d.lastFire) < d.cfg.Debounce {
			d.logger.Debug("trigger suppressed by debounce",
				"since_last", now.Sub(d.lastFire))
			continue
		}
		d.lastFire = now

		det := Detection{
			Phrase:     d.cfg.Phrase,
			Confidence: confidence,
			PreRoll:    preRoll.Snapshot(),
			At:         now,
		}
		d.logger.Info("wake phrase detected",
			"confidence", fmt.Sprintf("%.2f", confidence),
			"pre_roll_frames", len(det.PreRoll))

		select {
		case d.events <- det:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
