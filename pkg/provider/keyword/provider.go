// Package keyword defines the Engine interface for acoustic keyword-spotting
// backends (Picovoice Porcupine and similar).
//
// These engines are frame-synchronous: they mandate an exact frame size and
// sample rate, and each Process call answers whether the wake keyword fired
// in that frame. They are the lowest-latency wake strategy but only work for
// phrases the engine knows, either from its built-in keyword table or from a
// custom-trained model file.
package keyword

import "strings"

// Spotter is an open keyword-spotting instance bound to one phrase. It is
// owned by a single detection loop and need not be safe for concurrent use.
type Spotter interface {
	// FrameSamples is the exact number of samples per Process call.
	FrameSamples() int

	// SampleRate is the mandated input sample rate in Hz.
	SampleRate() int

	// Process analyses one frame of little-endian int16 mono PCM at the
	// mandated size and rate. It returns true when the keyword fired.
	// Engines apply their own internal cooldown between detections.
	Process(pcm []byte) (bool, error)

	// Close releases the spotter. Calling Close more than once is safe.
	Close() error
}

// Engine is the factory for spotters. A nil or unavailable engine makes the
// wake detector fall back to transcription matching.
type Engine interface {
	// CanSpot reports whether the engine can detect the phrase: the phrase
	// maps to a built-in keyword, or the engine was constructed with a
	// custom model covering it.
	CanSpot(phrase string) bool

	// Open creates a spotter for the phrase. Returns an error when the
	// phrase is not spottable or the engine fails to initialize, in which
	// case no partial spotter is created.
	Open(phrase string) (Spotter, error)
}

// builtins is the keyword table shipped with common spotting engines. A
// phrase outside this table needs a custom model.
var builtins = map[string]struct{}{
	"alexa":       {},
	"americano":   {},
	"blueberry":   {},
	"bumblebee":   {},
	"computer":    {},
	"grapefruit":  {},
	"grasshopper": {},
	"hey google":  {},
	"hey siri":    {},
	"jarvis":      {},
	"ok google":   {},
	"picovoice":   {},
	"porcupine":   {},
	"terminator":  {},
}

// IsBuiltin reports whether the phrase maps to a built-in keyword. Matching
// is case-insensitive and ignores surrounding whitespace.
func IsBuiltin(phrase string) bool {
	_, ok := builtins[strings.ToLower(strings.TrimSpace(phrase))]
	return ok
}
