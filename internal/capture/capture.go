// Package capture implements the segment capturer: the state machine that
// turns a live stream of gain-normalized, VAD-tagged frames into one bounded
// utterance.
//
// A capture proceeds Seeding → Listening → (TailPadding) → Done. Pre-roll
// frames from the wake detector are seeded first so syllables spoken before
// the trigger are kept. During Listening every frame is gain-normalized,
// appended to the output, fed to the transcription engine, and classified by
// the VAD; the loop terminates on post-speech silence, a spoken bye phrase
// or done word, an explicit stop signal, the hard duration cap, or an
// optional no-speech timeout. Non-forced stops append a short tail of extra
// frames so a trailing word caught at the detection boundary is not
// truncated.
//
// Timeout decisions run on the audio timeline (cumulative frame duration)
// rather than the wall clock: the two coincide for a live microphone, and
// the audio clock is monotonic and deterministic for replayed streams.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearken-ai/hearken/internal/phrase"
	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
	"github.com/hearken-ai/hearken/pkg/provider/vad"
)

const (
	defaultGracePeriod      = 1000 * time.Millisecond
	defaultSilenceThreshold = 1200 * time.Millisecond
	defaultMinSpeechFrames  = 5
	defaultMaxDuration      = 30 * time.Second
	defaultTailPadding      = 300 * time.Millisecond
)

// Config holds the capturer's tunables. Zero values select the defaults
// noted per field.
type Config struct {
	// GracePeriod suppresses silence-based termination for this long from
	// segment start, giving the speaker time to begin. Default 1 s.
	GracePeriod time.Duration

	// SilenceThreshold is the post-speech gap that ends the segment. It is
	// deliberately longer than one VAD frame so a mid-sentence breath does
	// not cut the speaker off. Default 1.2 s.
	SilenceThreshold time.Duration

	// MinSpeechFrames is the minimum number of speech-classified frames
	// before a silence stop is allowed. Default 5.
	MinSpeechFrames int

	// MaxDuration is the absolute segment cap. Default 30 s.
	MaxDuration time.Duration

	// NoSpeechTimeout ends the capture when speech never starts. 0 disables
	// it (used for follow-up turns, where speech was already detected).
	NoSpeechTimeout time.Duration

	// TailPadding is the extra audio appended after a non-forced stop.
	// Default 300 ms.
	TailPadding time.Duration

	// ByeVariants are the bye phrase and its known near-miss transcriptions.
	// Empty disables the bye short-circuit.
	ByeVariants []string

	// DoneVariants are the done word and its near-misses. Empty disables
	// the done short-circuit.
	DoneVariants []string

	// MatchThreshold for the bye/done fuzzy matchers. 0 selects the phrase
	// package default.
	MatchThreshold float64
}

func (c *Config) applyDefaults() {
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaultGracePeriod
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = defaultSilenceThreshold
	}
	if c.MinSpeechFrames <= 0 {
		c.MinSpeechFrames = defaultMinSpeechFrames
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = defaultMaxDuration
	}
	if c.TailPadding <= 0 {
		c.TailPadding = defaultTailPadding
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = phrase.DefaultThreshold
	}
}

// Options vary one capture invocation without rebuilding the capturer.
type Options struct {
	// PreRoll frames are seeded into the segment ahead of live audio,
	// oldest first.
	PreRoll []audio.AudioFrame

	// Stop, when it becomes readable or is closed, ends the capture with
	// StopManual. Nil means no manual stop.
	Stop <-chan struct{}

	// DisableNoSpeechTimeout overrides Config.NoSpeechTimeout for this
	// capture.
	DisableNoSpeechTimeout bool
}

// Capturer runs segment captures. One Capturer serves one session at a time;
// Capture must not be called concurrently.
type Capturer struct {
	cfg    Config
	gain   *audio.Normalizer
	vad    vad.Classifier
	logger *slog.Logger

	bye  *phrase.Matcher // nil when disabled
	done *phrase.Matcher
}

// New builds a Capturer. gain and classifier are required.
func New(cfg Config, gain *audio.Normalizer, classifier vad.Classifier, logger *slog.Logger) (*Capturer, error) {
	if gain == nil {
		return nil, errors.New("capture: gain normalizer must not be nil")
	}
	if classifier == nil {
		return nil, errors.New("capture: vad classifier must not be nil")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	c := &Capturer{
		cfg:    cfg,
		gain:   gain,
		vad:    classifier,
		logger: logger.With("component", "capture"),
	}

	var err error
	if len(cfg.ByeVariants) > 0 {
		c.bye, err = phrase.NewMatcher(cfg.ByeVariants, phrase.WithThreshold(cfg.MatchThreshold))
		if err != nil {
			return nil, fmt.Errorf("capture: bye matcher: %w", err)
		}
	}
	if len(cfg.DoneVariants) > 0 {
		c.done, err = phrase.NewMatcher(cfg.DoneVariants, phrase.WithThreshold(cfg.MatchThreshold))
		if err != nil {
			return nil, fmt.Errorf("capture: done matcher: %w", err)
		}
	}
	return c, nil
}

// Reset prepares the capturer for a new conversation session: the gain
// state returns to unity and a calibrating VAD starts a fresh calibration
// cycle. Captures within one session share gain and VAD state, so the
// session driver calls this once per session, not per segment.
func (c *Capturer) Reset() {
	c.gain.Reset()
	if r, ok := c.vad.(vad.Resetter); ok {
		r.Reset()
	}
}

// captureState tracks one capture in flight.
type captureState struct {
	audio        []byte
	elapsed      time.Duration // audio timeline position
	lastSpeech   time.Duration // audio position of the last speech frame
	speechFrames int
	hasSpoken    bool
	transcript   string // rolling partial text
}

// Capture runs one segment to completion on stream and returns its Result.
// The capturer resets the transcription session at the start of the
// listening phase, then owns stream until it returns. On ctx cancellation
// the stream is closed to unblock Read and ctx.Err() is returned.
func (c *Capturer) Capture(ctx context.Context, stream audio.Stream, session stt.SessionHandle, opts Options) (*Result, error) {
	start := time.Now()

	if err := session.Reset(); err != nil {
		return nil, fmt.Errorf("capture: reset transcription session: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	st := &captureState{lastSpeech: -1}

	// Seeding: pre-roll frames go through the same per-frame path as live
	// audio so speech onset is preserved and has_spoken reflects them.
	for _, f := range opts.PreRoll {
		if err := c.processFrame(st, f, session); err != nil {
			return nil, err
		}
	}
	if st.hasSpoken {
		c.logger.Debug("speech present in pre-roll", "frames", len(opts.PreRoll))
	}

	noSpeechTimeout := c.cfg.NoSpeechTimeout
	if opts.DisableNoSpeechTimeout {
		noSpeechTimeout = 0
	}

	// Listening.
	var reason StopReason
listening:
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		select {
		case <-opts.Stop:
			reason = StopManual
			break listening
		default:
		}

		frame, err := stream.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("capture: read frame: %w", err)
		}

		speech := false
		if err := c.processFrameSpeech(st, frame, session, &speech); err != nil {
			return nil, err
		}

		if r, ok := c.stopForTranscript(st); ok {
			reason = r
			break listening
		}

		if st.elapsed >= c.cfg.MaxDuration {
			reason = StopCap
			break listening
		}
		if !st.hasSpoken && noSpeechTimeout > 0 && st.elapsed >= noSpeechTimeout {
			reason = StopNoSpeechTimeout
			break listening
		}

		if st.elapsed < c.cfg.GracePeriod {
			continue
		}
		if st.hasSpoken && !speech &&
			st.speechFrames >= c.cfg.MinSpeechFrames &&
			st.elapsed-st.lastSpeech >= c.cfg.SilenceThreshold {
			reason = StopSilence
			break listening
		}
	}

	// TailPadding: only for non-forced stops after speech.
	if !reason.Forced() && st.hasSpoken && c.cfg.TailPadding > 0 {
		c.appendTail(ctx, st, stream, session)
	}

	return c.finalize(st, session, reason, start)
}

// processFrame normalizes one frame, appends it, feeds the engine, and
// updates the speech bookkeeping.
func (c *Capturer) processFrame(st *captureState, frame audio.AudioFrame, session stt.SessionHandle) error {
	var speech bool
	return c.processFrameSpeech(st, frame, session, &speech)
}

func (c *Capturer) processFrameSpeech(st *captureState, frame audio.AudioFrame, session stt.SessionHandle, speech *bool) error {
	normalized := c.gain.Process(frame)
	st.audio = append(st.audio, normalized.Data...)
	st.elapsed += normalized.Duration()

	res, err := session.Feed(normalized.Data)
	if err != nil {
		return fmt.Errorf("capture: feed transcription session: %w", err)
	}
	if res.Text != "" {
		st.transcript = res.Text
	}

	*speech = c.vad.IsSpeech(normalized.Data, normalized.SampleRate)
	if *speech {
		st.speechFrames++
		st.lastSpeech = st.elapsed
		st.hasSpoken = true
	}
	return nil
}

// stopForTranscript checks the verbal short-circuits against the rolling
// transcript: the bye phrase ends segment and session, the done word ends
// only the segment.
func (c *Capturer) stopForTranscript(st *captureState) (StopReason, bool) {
	if st.transcript == "" {
		return 0, false
	}
	if c.bye != nil {
		if _, ok := c.bye.Match(st.transcript); ok {
			return StopByePhrase, true
		}
	}
	if c.done != nil {
		if _, ok := c.done.Match(st.transcript); ok {
			return StopDoneWord, true
		}
	}
	return 0, false
}

// appendTail reads TailPadding worth of extra frames past the stop point so
// a trailing word right at the boundary survives. Read errors just end the
// padding early.
func (c *Capturer) appendTail(ctx context.Context, st *captureState, stream audio.Stream, session stt.SessionHandle) {
	deadline := st.elapsed + c.cfg.TailPadding
	for st.elapsed < deadline {
		if ctx.Err() != nil {
			return
		}
		frame, err := stream.Read()
		if err != nil {
			c.logger.Debug("tail padding cut short", "error", err)
			return
		}
		if err := c.processFrame(st, frame, session); err != nil {
			c.logger.Debug("tail padding cut short", "error", err)
			return
		}
	}
}

// finalize flushes the engine and assembles the immutable Result.
func (c *Capturer) finalize(st *captureState, session stt.SessionHandle, reason StopReason, start time.Time) (*Result, error) {
	var transcript stt.Transcript
	if st.hasSpoken {
		var err error
		transcript, err = session.Finalize()
		if err != nil {
			return nil, fmt.Errorf("capture: finalize transcription: %w", err)
		}
	}

	clean := transcript.Text
	switch reason {
	case StopByePhrase:
		if c.bye != nil {
			clean, _ = c.bye.Consume(clean)
		}
	case StopDoneWord:
		if c.done != nil {
			clean, _ = c.done.Consume(clean)
		}
	}

	result := &Result{
		Transcript:      transcript.Text,
		CleanTranscript: clean,
		Audio:           st.audio,
		StopReason:      reason,
		Duration:        time.Since(start),
		AudioDuration:   st.elapsed,
		Confidence:      transcript.Confidence,
	}

	c.logger.Info("segment captured",
		"stop_reason", reason.String(),
		"audio", st.elapsed,
		"speech_frames", st.speechFrames,
		"transcript_len", len(clean))
	return result, nil
}
