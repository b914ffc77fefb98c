// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (a local Coqui server, a
// hosted API) behind a batch interface: Synthesize renders one utterance to
// complete PCM. Playback, serialization of spoken output, and the microphone
// gate are the session driver's responsibility — a provider only turns text
// into audio.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text to raw little-endian int16 mono PCM at the
	// provider's SampleRate. voice selects the voice profile; providers
	// with a single voice may ignore it.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)

	// SampleRate returns the sample rate in Hz of the PCM Synthesize emits,
	// constant for the lifetime of the provider.
	SampleRate() int

	// ListVoices returns the voice profiles currently available from this
	// provider. The list may change between calls if the underlying service
	// adds or removes voices.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
