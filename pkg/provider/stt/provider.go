// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp model, or
// a hosted service such as Deepgram) behind a uniform frame-synchronous
// interface. The central abstraction is SessionHandle: once opened, a session
// accepts raw PCM frames one at a time and returns the rolling partial
// transcript with each call, so the capture loop can fuzzy-match stopwords
// against the text as it forms. Finalize flushes the engine and returns the
// authoritative transcript for the whole segment.
//
// A SessionHandle is owned by a single capture loop and need not be safe for
// concurrent use; Providers must be safe for concurrent StartStream calls.
package stt

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by Feed, Reset, and Finalize after Close.
var ErrSessionClosed = errors.New("stt: session is closed")

// StreamConfig describes the audio format and recognition hints for a new
// transcription session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 for the capture chain.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// engines). Implementations may downmix stereo internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g. "en-US").
	// Empty lets the engine auto-detect, if supported.
	Language string

	// Keywords is a list of vocabulary hints that raise recognition
	// probability for uncommon words, e.g. the configured wake phrase.
	Keywords []KeywordBoost
}

// SessionHandle is an open transcription session. The capture loop resets it
// at the start of every listening phase and finalizes it exactly once at the
// end of the segment.
type SessionHandle interface {
	// Feed delivers one PCM frame in the session's configured format and
	// returns the current rolling transcript. Result.Text may lag the audio
	// by several frames; IsFinal marks text the engine has committed to.
	Feed(pcm []byte) (Result, error)

	// Reset discards all accumulated audio and text so the session can be
	// reused for a fresh segment.
	Reset() error

	// Finalize flushes any buffered audio, closes out the recognition pass,
	// and returns the authoritative transcript for everything fed since the
	// last Reset. The session remains usable after a Reset.
	Finalize() (Transcript, error)

	// Close releases the session's resources. Calling Close more than once
	// is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a transcription session with the given audio format.
	// The returned SessionHandle is ready to accept frames immediately; the
	// caller owns it and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
