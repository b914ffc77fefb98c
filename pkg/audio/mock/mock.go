// Package mock provides in-memory audio.Device, audio.Stream, and
// audio.Output implementations for tests. Streams replay scripted PCM
// frames; outputs record everything played.
package mock

import (
	"sync"
	"time"

	"github.com/hearken-ai/hearken/pkg/audio"
)

// Device implements audio.Device. Each OpenCapture call replays the frames
// in Script, in order, as a fresh stream.
type Device struct {
	// Script is the sequence of PCM frames returned by capture streams.
	Script [][]byte

	// OpenErr, when non-nil, is returned by OpenCapture and OpenPlayback.
	OpenErr error

	// ReadErr, when non-nil, is returned by Read once the script is
	// exhausted. When nil, exhausted streams return audio.ErrStreamClosed.
	ReadErr error

	mu        sync.Mutex
	captures  int
	playbacks []*Output
}

var _ audio.Device = (*Device)(nil)

// OpenCapture returns a stream replaying the device script in cfg's format.
func (d *Device) OpenCapture(cfg audio.StreamConfig) (audio.Stream, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.mu.Lock()
	d.captures++
	d.mu.Unlock()
	return &Stream{cfg: cfg, frames: d.Script, readErr: d.ReadErr}, nil
}

// OpenPlayback returns a fresh recording output. Played aggregates across
// every output opened on the device, so a caller that opens, plays, and
// closes per reply still leaves a full record behind.
func (d *Device) OpenPlayback(audio.StreamConfig) (audio.Output, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	out := &Output{}
	d.mu.Lock()
	d.playbacks = append(d.playbacks, out)
	d.mu.Unlock()
	return out, nil
}

// Close implements audio.Device.
func (d *Device) Close() error { return nil }

// CaptureCount returns how many capture streams have been opened.
func (d *Device) CaptureCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.captures
}

// Played returns the PCM chunks written to playback outputs, in order.
func (d *Device) Played() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var all [][]byte
	for _, o := range d.playbacks {
		all = append(all, o.Played()...)
	}
	return all
}

// Stream implements audio.Stream over a fixed frame script.
type Stream struct {
	cfg     audio.StreamConfig
	frames  [][]byte
	readErr error

	mu     sync.Mutex
	next   int
	closed bool
}

var _ audio.Stream = (*Stream)(nil)

// NewStream returns a stream replaying the given PCM frames in cfg's format.
func NewStream(cfg audio.StreamConfig, frames [][]byte) *Stream {
	return &Stream{cfg: cfg, frames: frames}
}

// Read returns the next scripted frame. Once the script is exhausted it
// returns the configured read error, or audio.ErrStreamClosed by default.
func (s *Stream) Read() (audio.AudioFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.AudioFrame{}, audio.ErrStreamClosed
	}
	if s.next >= len(s.frames) {
		if s.readErr != nil {
			return audio.AudioFrame{}, s.readErr
		}
		return audio.AudioFrame{}, audio.ErrStreamClosed
	}
	data := s.frames[s.next]
	rate := s.cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	frameDur := time.Duration(s.cfg.FrameSamples) * time.Second / time.Duration(rate)
	frame := audio.AudioFrame{
		Data:       data,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Timestamp:  time.Duration(s.next) * frameDur,
	}
	s.next++
	return frame, nil
}

// Close implements audio.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Output implements audio.Output, recording every chunk played.
type Output struct {
	// PlayErr, when non-nil, is returned by Play.
	PlayErr error

	mu     sync.Mutex
	played [][]byte
	closed bool
}

var _ audio.Output = (*Output)(nil)

// Play records the chunk.
func (o *Output) Play(pcm []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return audio.ErrStreamClosed
	}
	if o.PlayErr != nil {
		return o.PlayErr
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	o.played = append(o.played, cp)
	return nil
}

// Close implements audio.Output.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

// Played returns the recorded chunks.
func (o *Output) Played() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([][]byte, len(o.played))
	copy(out, o.played)
	return out
}
