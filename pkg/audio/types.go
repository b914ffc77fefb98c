// Package audio provides the frame type and the low-level audio primitives
// shared by every stage of the Hearken pipeline: RMS measurement, automatic
// gain control, the pre-roll ring, the output gate, and PCM format
// conversion. Frames are little-endian signed 16-bit PCM throughout.
package audio

import "time"

// AudioFrame is a single fixed-duration block of audio flowing through the
// pipeline. Frames are immutable once captured: ownership passes from the
// device stream to whichever stage processes them next, and stages that
// transform samples (e.g. the gain normalizer) return a new frame rather
// than mutating the input.
type AudioFrame struct {
	// Data is little-endian int16 PCM. Length is fixed per stream
	// (StreamConfig.FrameSamples × Channels × 2 bytes).
	Data []byte

	// SampleRate in Hz (e.g., 48000 for Discord Opus, 16000 for STT/VAD).
	SampleRate int

	// Channels: 1 for mono (STT/VAD input), 2 for stereo device streams.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock length of the frame, derived from its
// byte length and format. Returns zero for malformed frames.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / (2 * f.Channels)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Clone returns a deep copy of the frame. Used when a frame must outlive
// the buffer it was read into (pre-roll snapshots, capture output).
func (f AudioFrame) Clone() AudioFrame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	f.Data = data
	return f
}
