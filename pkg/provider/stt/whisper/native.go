// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/hearken-ai/hearken/pkg/provider/stt"
)

var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using the whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all sessions.
type NativeProvider struct {
	model           whisperlib.Model
	language        string
	sampleRate      int
	partialInterval time.Duration
	maxBufferMs     int
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeSampleRate sets the audio sample rate in Hz. This must match the
// actual sample rate of PCM data delivered via Feed. Defaults to 16000.
func WithNativeSampleRate(rate int) NativeOption {
	return func(p *NativeProvider) { p.sampleRate = rate }
}

// WithNativePartialInterval sets how much new audio must accumulate before
// the buffer is re-inferred for an updated partial. Defaults to one second.
func WithNativePartialInterval(interval time.Duration) NativeOption {
	return func(p *NativeProvider) { p.partialInterval = interval }
}

// WithNativeMaxBufferMs caps the buffered audio duration in milliseconds.
// Defaults to 60 000 ms.
func WithNativeMaxBufferMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.maxBufferMs = ms }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The model is loaded once and shared across all
// sessions. The caller must call Close when the provider is no longer
// needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:           model,
		language:        defaultLanguage,
		sampleRate:      defaultSampleRate,
		partialInterval: defaultPartialInterval,
		maxBufferMs:     defaultMaxBufferMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a new transcription session. Each session creates its
// own whisper.cpp context per inference from the shared model, so multiple
// sessions can run concurrently without interference.
func (p *NativeProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	return &nativeSession{
		model:           p.model,
		language:        lang,
		sampleRate:      sr,
		channels:        ch,
		partialInterval: p.partialInterval,
		maxBufferMs:     p.maxBufferMs,
	}, nil
}

// ─── nativeSession ──────────────────────────────────────────────────────────

// nativeSession is a live whisper transcription session using the CGO
// bindings. It implements stt.SessionHandle. A session belongs to one
// capture loop and is not safe for concurrent use.
type nativeSession struct {
	model           whisperlib.Model
	language        string
	sampleRate      int
	channels        int
	partialInterval time.Duration
	maxBufferMs     int

	buffer      []byte
	bufferedMs  int
	inferredMs  int
	hadSpeech   bool
	partialText string
	closed      bool
}

var _ stt.SessionHandle = (*nativeSession)(nil)

// Feed appends one frame of raw 16-bit little-endian PCM to the utterance
// buffer and returns the rolling transcript.
func (s *nativeSession) Feed(pcm []byte) (stt.Result, error) {
	if s.closed {
		return stt.Result{}, stt.ErrSessionClosed
	}
	if s.bufferedMs >= s.maxBufferMs {
		return stt.Result{}, fmt.Errorf("whisper: buffer exceeds %d ms", s.maxBufferMs)
	}

	s.buffer = append(s.buffer, pcm...)
	s.bufferedMs += chunkDurationMs(pcm, s.sampleRate, s.channels)
	if computeRMS(pcm) >= defaultRMSThreshold {
		s.hadSpeech = true
	}

	intervalMs := int(s.partialInterval / time.Millisecond)
	if s.hadSpeech && s.bufferedMs-s.inferredMs >= intervalMs {
		text, _, err := s.infer(s.buffer)
		if err != nil {
			return stt.Result{}, err
		}
		s.partialText = text
		s.inferredMs = s.bufferedMs
	}

	return stt.Result{Text: s.partialText}, nil
}

// Reset discards the buffered audio and the cached partial.
func (s *nativeSession) Reset() error {
	if s.closed {
		return stt.ErrSessionClosed
	}
	s.buffer = nil
	s.bufferedMs = 0
	s.inferredMs = 0
	s.hadSpeech = false
	s.partialText = ""
	return nil
}

// Finalize runs one last inference over the complete buffer and returns the
// authoritative transcript with per-token confidence detail.
func (s *nativeSession) Finalize() (stt.Transcript, error) {
	if s.closed {
		return stt.Transcript{}, stt.ErrSessionClosed
	}
	duration := time.Duration(s.bufferedMs) * time.Millisecond
	if !s.hadSpeech || len(s.buffer) == 0 {
		return stt.Transcript{Duration: duration}, nil
	}

	text, words, err := s.infer(s.buffer)
	if err != nil {
		return stt.Transcript{}, err
	}

	var confidence float64
	if len(words) > 0 {
		for _, w := range words {
			confidence += w.Confidence
		}
		confidence /= float64(len(words))
	}

	return stt.Transcript{
		Text:       text,
		Confidence: confidence,
		Words:      words,
		Duration:   duration,
	}, nil
}

// Close releases the session. The shared model stays loaded.
func (s *nativeSession) Close() error {
	s.closed = true
	s.buffer = nil
	return nil
}

// infer converts the buffered PCM audio to float32, runs whisper.cpp
// inference using a fresh context, and returns the concatenated text plus
// per-token detail. Each context is NOT thread-safe, but the model can be
// shared across goroutines.
func (s *nativeSession) infer(pcm []byte) (string, []stt.WordDetail, error) {
	samples := samplesFloat32(pcm, s.channels)

	wctx, err := s.model.NewContext()
	if err != nil {
		return "", nil, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", s.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts []string
		words []stt.WordDetail
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		for _, tok := range segment.Tokens {
			word := strings.TrimSpace(tok.Text)
			if word == "" {
				continue
			}
			words = append(words, stt.WordDetail{
				Word:       word,
				Start:      tok.Start,
				End:        tok.End,
				Confidence: float64(tok.P),
			})
		}
	}

	return strings.Join(parts, " "), words, nil
}
