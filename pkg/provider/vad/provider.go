// Package vad defines the Classifier interface for Voice Activity Detection.
//
// A classifier answers one question per frame: does this block of PCM contain
// speech? The capture pipeline calls it synchronously on every frame, so
// implementations must not block. Stateful classifiers (hysteresis, adaptive
// calibration) additionally implement Reset so a new session can start clean.
//
// A Classifier is owned by a single capture loop; implementations need not be
// safe for concurrent use.
package vad

// Level is a discrete sensitivity level. Lower levels are more sensitive
// (trigger on softer speech); higher levels require louder input. The valid
// range is implementation-defined; see each classifier's documentation.
type Level int

// Classifier is a frame-level binary speech/silence detector.
type Classifier interface {
	// IsSpeech reports whether the frame contains speech. The frame is raw
	// little-endian int16 mono PCM at the given sample rate. Must not block.
	IsSpeech(pcm []byte, sampleRate int) bool
}

// Resetter is implemented by stateful classifiers that can be returned to
// their initial state. The capture pipeline resets its classifier at the
// start of every session.
type Resetter interface {
	Reset()
}
