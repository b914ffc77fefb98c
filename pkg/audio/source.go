package audio

import "errors"

// ErrStreamClosed is returned by Stream.Read and Output.Play after Close.
var ErrStreamClosed = errors.New("audio: stream is closed")

// StreamConfig describes the format a capture or playback stream is opened
// with. The wake detector's acoustic engine mandates an exact frame size
// and sample rate, so the opener — not the device — decides the format.
type StreamConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels per frame. 1 for the capture chain.
	Channels int

	// FrameSamples is the number of samples per channel in each frame
	// returned by Read. Read blocks until a full frame is available.
	FrameSamples int
}

// FrameBytes returns the byte length of one frame in this format.
func (c StreamConfig) FrameBytes() int {
	return c.FrameSamples * c.Channels * 2
}

// Stream is an open microphone capture stream. Read blocks until one full
// frame is available and returns it with a monotonic Timestamp. A Stream is
// owned by exactly one goroutine; the wake detector and the session driver
// never hold concurrent streams on the same device.
type Stream interface {
	// Read returns the next frame. It blocks until a full frame arrives and
	// returns an error on device failure or after Close.
	Read() (AudioFrame, error)

	// Close releases the stream. Read calls unblock with ErrStreamClosed.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// Output is an open playback stream. Play blocks until the supplied PCM has
// been handed to the device. Serialisation of spoken output is the session
// driver's responsibility; implementations need not be concurrency-safe.
type Output interface {
	// Play writes little-endian int16 PCM in the stream's configured format.
	Play(pcm []byte) error

	// Close releases the playback stream. Safe to call more than once.
	Close() error
}

// Device abstracts the audio hardware (or transport) the assistant is
// attached to. The microphone is exclusively owned by whichever component
// currently holds an open Stream.
type Device interface {
	// OpenCapture opens a microphone stream in the given format. Returns an
	// error if the device cannot deliver that format or is already captured.
	OpenCapture(cfg StreamConfig) (Stream, error)

	// OpenPlayback opens a playback stream in the given format.
	OpenPlayback(cfg StreamConfig) (Output, error)

	// Close releases the device and any streams still open on it.
	Close() error
}
