// Package session drives one multi-turn conversation from wake detection to
// completion.
//
// A session is a strict state machine: Idle → Recording → Thinking →
// Speaking → AwaitFollowup → {Recording | Idle}. The driver owns the
// microphone for the session's lifetime (the wake detector's stream is
// stopped before Run is called and restarted after it returns), serializes
// spoken output behind one lock, and holds the audio gate paused while
// speaking plus a short settle delay so the system never hears its own
// voice.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearken-ai/hearken/internal/capture"
	"github.com/hearken-ai/hearken/internal/wake"
	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/llm"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
	"github.com/hearken-ai/hearken/pkg/provider/tts"
	"github.com/hearken-ai/hearken/pkg/provider/vad"
)

const (
	defaultFollowupWindow = 15 * time.Second
	defaultEchoCooldown   = 500 * time.Millisecond
	defaultSettleDelay    = 300 * time.Millisecond
	defaultPreRoll        = 1500 * time.Millisecond
	defaultSampleRate     = 16000
	defaultFrameDuration  = 20 * time.Millisecond
)

// VisualSource supplies an optional image for the reasoning call: a camera
// snapshot, a screen grab. The returned string is an https URL or data URI.
// It is only consulted when the reasoning model reports vision support.
type VisualSource interface {
	Snapshot(ctx context.Context) (string, error)
}

// Config holds the driver's tunables. Zero values select the defaults noted
// per field.
type Config struct {
	// SystemPrompt for the reasoning backend.
	SystemPrompt string

	// Voice used for spoken replies.
	Voice tts.VoiceProfile

	// FollowupWindow is how long to wait for a follow-up utterance after
	// speaking. Default 15 s.
	FollowupWindow time.Duration

	// EchoCooldown ignores frames for this long at the start of the
	// follow-up wait, so residual playback echo cannot count as speech.
	// Default 500 ms.
	EchoCooldown time.Duration

	// SettleDelay keeps the gate paused after playback finishes.
	// Default 300 ms.
	SettleDelay time.Duration

	// PreRoll is the ring duration for follow-up speech onset capture.
	// Default 1.5 s.
	PreRoll time.Duration

	// HistoryTurns bounds the trailing conversation window handed to the
	// reasoning call. 0 selects the history default.
	HistoryTurns int

	// SampleRate and FrameDuration for the session's capture streams.
	// Defaults 16000 Hz / 20 ms.
	SampleRate    int
	FrameDuration time.Duration

	// Language hint and keyword boosts for the transcription session.
	Language string
	Keywords []stt.KeywordBoost

	// Temperature and MaxTokens for the reasoning call. Zero values let the
	// backend decide.
	Temperature float64
	MaxTokens   int
}

func (c *Config) applyDefaults() {
	if c.FollowupWindow <= 0 {
		c.FollowupWindow = defaultFollowupWindow
	}
	if c.EchoCooldown <= 0 {
		c.EchoCooldown = defaultEchoCooldown
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = defaultSettleDelay
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
}

// Deps are the driver's collaborators. Device, Gate, Capturer, VAD, STT,
// LLM, and TTS are required; Observer, Visual, and Logger are optional.
type Deps struct {
	Device   audio.Device
	Gate     *audio.Gate
	Capturer *capture.Capturer
	VAD      vad.Classifier
	STT      stt.Provider
	LLM      llm.Provider
	TTS      tts.Provider
	Observer Observer
	Visual   VisualSource
	Logger   *slog.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Device == nil:
		return errors.New("session: Device must not be nil")
	case d.Gate == nil:
		return errors.New("session: Gate must not be nil")
	case d.Capturer == nil:
		return errors.New("session: Capturer must not be nil")
	case d.VAD == nil:
		return errors.New("session: VAD must not be nil")
	case d.STT == nil:
		return errors.New("session: STT provider must not be nil")
	case d.LLM == nil:
		return errors.New("session: LLM provider must not be nil")
	case d.TTS == nil:
		return errors.New("session: TTS provider must not be nil")
	}
	return nil
}

// Driver runs conversation sessions. One Driver serves one device; Run must
// not be called concurrently with itself.
type Driver struct {
	cfg      Config
	deps     Deps
	observer Observer
	logger   *slog.Logger

	// speakMu serializes spoken output across the process.
	speakMu sync.Mutex

	state State
}

// New builds a Driver.
func New(cfg Config, deps Deps) (*Driver, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	observer := deps.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		cfg:      cfg,
		deps:     deps,
		observer: observer,
		logger:   logger.With("component", "session"),
		state:    StateIdle,
	}, nil
}

// State returns the current session state.
func (d *Driver) State() State {
	return d.state
}

// Run drives one complete session opened by det. It blocks until the
// session ends and returns the end reason. The wake detector's stream must
// be stopped before calling Run. A non-nil error accompanies EndError and
// EndCancelled.
func (d *Driver) Run(ctx context.Context, det wake.Detection) (EndReason, error) {
	id := uuid.NewString()
	history := NewHistory(d.cfg.HistoryTurns)
	d.observer.SessionStarted(id)
	d.logger.Info("session started", "id", id, "confidence", det.Confidence)

	reason, err := d.run(ctx, det, history)

	d.setState(StateIdle, history.Len())
	d.observer.SessionFinished(id, reason, history.Len())
	d.logger.Info("session finished",
		"id", id, "reason", reason.String(), "turns", history.Len())
	return reason, err
}

func (d *Driver) run(ctx context.Context, det wake.Detection, history *History) (EndReason, error) {
	streamCfg := audio.StreamConfig{
		SampleRate:   d.cfg.SampleRate,
		Channels:     1,
		FrameSamples: int(d.cfg.FrameDuration.Seconds() * float64(d.cfg.SampleRate)),
	}

	sttSession, err := d.deps.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: streamCfg.SampleRate,
		Channels:   1,
		Language:   d.cfg.Language,
		Keywords:   d.cfg.Keywords,
	})
	if err != nil {
		d.observer.Error("start transcription session", err)
		return EndError, fmt.Errorf("session: start transcription session: %w", err)
	}
	defer sttSession.Close()

	// Fresh gain state and VAD calibration for the session; captures within
	// it share both.
	d.deps.Capturer.Reset()

	preRoll := det.PreRoll
	followupTurn := false

	for turn := 0; ; turn++ {
		d.setState(StateRecording, turn)

		result, err := d.record(ctx, streamCfg, sttSession, preRoll, followupTurn)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return EndCancelled, err
			}
			d.observer.Error("segment capture", err)
			return EndError, err
		}
		d.observer.TranscriptReady(turn, result)

		if result.CleanTranscript == "" {
			if result.StopReason.EndsSession() {
				return EndByePhrase, nil
			}
			if turn == 0 {
				return EndNoInput, nil
			}
			return EndFollowupTimeout, nil
		}

		resp, err := d.think(ctx, history, result.CleanTranscript, turn)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return EndCancelled, err
			}
			d.observer.Error("reasoning call", err)
			return EndError, err
		}
		reply := resp.Content
		d.observer.ResponseReady(turn, reply, resp)

		d.setState(StateSpeaking, turn)
		if err := d.Speak(ctx, reply); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return EndCancelled, err
			}
			d.observer.Error("spoken output", err)
			return EndError, err
		}

		history.Append(Turn{
			Index:         turn,
			UserText:      result.CleanTranscript,
			AssistantText: reply,
			StopReason:    result.StopReason,
			Duration:      result.Duration,
			AudioDuration: result.AudioDuration,
		})

		if result.StopReason.EndsSession() {
			return EndByePhrase, nil
		}

		d.setState(StateAwaitFollowup, turn)
		next, found, err := d.awaitFollowup(ctx, streamCfg)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return EndCancelled, err
			}
			d.observer.Error("follow-up wait", err)
			return EndError, err
		}
		if !found {
			return EndFollowupTimeout, nil
		}
		preRoll = next
		followupTurn = true
	}
}

// record opens a capture stream and runs one segment. Follow-up turns skip
// the no-speech timeout: speech was already detected in the follow-up
// window.
func (d *Driver) record(ctx context.Context, streamCfg audio.StreamConfig, sttSession stt.SessionHandle, preRoll []audio.AudioFrame, followup bool) (*capture.Result, error) {
	stream, err := d.deps.Device.OpenCapture(streamCfg)
	if err != nil {
		return nil, fmt.Errorf("session: open capture stream: %w", err)
	}
	defer stream.Close()

	return d.deps.Capturer.Capture(ctx, stream, sttSession, capture.Options{
		PreRoll:                preRoll,
		DisableNoSpeechTimeout: followup,
	})
}

// think runs the reasoning call over the bounded history window plus the
// current utterance. When the model supports vision and a visual source is
// configured, a snapshot is attached to the user message.
func (d *Driver) think(ctx context.Context, history *History, userText string, turn int) (*llm.CompletionResponse, error) {
	d.setState(StateThinking, turn)

	userMsg := llm.Message{Role: "user", Content: userText}
	if d.deps.Visual != nil && d.deps.LLM.Capabilities().SupportsVision {
		image, err := d.deps.Visual.Snapshot(ctx)
		if err != nil {
			d.logger.Warn("visual snapshot failed, continuing without image", "error", err)
		} else if image != "" {
			userMsg.ImageURL = image
		}
	}

	resp, err := d.deps.LLM.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: d.cfg.SystemPrompt,
		Messages:     append(history.Messages(), userMsg),
		Temperature:  d.cfg.Temperature,
		MaxTokens:    d.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("session: reasoning call: %w", err)
	}
	return resp, nil
}

// Speak synthesizes text and plays it, holding the gate paused for the
// playback plus the settle delay. Spoken output is serialized process-wide;
// the gate release is guaranteed even when synthesis or playback fails.
func (d *Driver) Speak(ctx context.Context, text string) error {
	d.speakMu.Lock()
	defer d.speakMu.Unlock()

	d.deps.Gate.Pause(true)
	defer func() {
		time.Sleep(d.cfg.SettleDelay)
		d.deps.Gate.Pause(false)
	}()

	pcm, err := d.deps.TTS.Synthesize(ctx, text, d.cfg.Voice)
	if err != nil {
		return fmt.Errorf("session: synthesize: %w", err)
	}
	if len(pcm) == 0 {
		return nil
	}

	out, err := d.deps.Device.OpenPlayback(audio.StreamConfig{
		SampleRate:   d.deps.TTS.SampleRate(),
		Channels:     1,
		FrameSamples: len(pcm) / 2,
	})
	if err != nil {
		return fmt.Errorf("session: open playback: %w", err)
	}
	defer out.Close()

	if err := out.Play(pcm); err != nil {
		return fmt.Errorf("session: play reply: %w", err)
	}
	return nil
}

// awaitFollowup opens a short-lived stream and waits up to the follow-up
// window for a VAD-positive frame, ignoring the initial echo cooldown. On
// speech it returns the pre-roll ring snapshot so the next Recording keeps
// the onset. Timeouts run on the audio timeline, matching the capturer.
func (d *Driver) awaitFollowup(ctx context.Context, streamCfg audio.StreamConfig) ([]audio.AudioFrame, bool, error) {
	stream, err := d.deps.Device.OpenCapture(streamCfg)
	if err != nil {
		return nil, false, fmt.Errorf("session: open follow-up stream: %w", err)
	}
	defer stream.Close()

	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	frameDur := time.Duration(streamCfg.FrameSamples) * time.Second / time.Duration(streamCfg.SampleRate)
	ring := audio.NewPreRollRing(d.cfg.PreRoll, frameDur)

	var elapsed time.Duration
	for elapsed < d.cfg.FollowupWindow {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if !d.deps.Gate.WaitIfPaused(time.Second) {
			continue
		}

		frame, err := stream.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			return nil, false, fmt.Errorf("session: read follow-up frame: %w", err)
		}

		elapsed += frame.Duration()
		ring.Push(frame)

		if elapsed < d.cfg.EchoCooldown {
			continue
		}
		if d.deps.VAD.IsSpeech(frame.Data, frame.SampleRate) {
			d.logger.Debug("follow-up speech detected", "elapsed", elapsed)
			return ring.Snapshot(), true, nil
		}
	}
	return nil, false, nil
}

func (d *Driver) setState(next State, turn int) {
	if d.state == next {
		return
	}
	if !d.state.CanTransition(next) {
		d.logger.Warn("illegal state transition",
			"from", d.state.String(), "to", next.String())
	}
	d.state = next
	d.observer.StateChanged(next, turn)
	d.logger.Debug("state changed", "state", next.String(), "turn", turn)
}
