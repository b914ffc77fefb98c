// Package discord provides an [audio.Device] implementation backed by a
// Discord voice channel via the bwmarrin/discordgo library. It bridges
// Discord's 48 kHz stereo Opus transport to the PCM format the capture
// chain asks for, treating the channel as a single microphone: packets from
// all speakers are decoded and funneled into one stream.
//
// The device requires an active *discordgo.Session (owned by the caller)
// plus a guild and voice channel ID. The voice connection is joined lazily
// on the first open and released by Close.
package discord

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hearken-ai/hearken/pkg/audio"
)

var _ audio.Device = (*Device)(nil)

// Device implements [audio.Device] over a Discord voice connection. It is
// safe for concurrent use, but at most one capture stream may be open at a
// time: Discord delivers one inbound packet feed per connection.
type Device struct {
	session   *discordgo.Session
	guildID   string
	channelID string

	// ownSession is true when the device created the session itself and is
	// responsible for closing it.
	ownSession bool

	mu          sync.Mutex
	vc          *discordgo.VoiceConnection
	disconnect  func() error // vc.Disconnect, injectable for tests
	captureOpen bool
	closed      bool
}

// New creates a Device for the given session, guild, and voice channel. The
// channel is not joined until the first stream is opened.
func New(session *discordgo.Session, guildID, channelID string) *Device {
	return &Device{
		session:   session,
		guildID:   guildID,
		channelID: channelID,
	}
}

// NewWithToken creates a Device that owns its own gateway session, opened
// with the given bot token and closed by Close.
func NewWithToken(token, guildID, channelID string) (*Device, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildVoiceStates
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open gateway: %w", err)
	}
	d := New(session, guildID, channelID)
	d.ownSession = true
	return d, nil
}

// connect joins the voice channel if not already joined. Callers hold d.mu.
func (d *Device) connect() (*discordgo.VoiceConnection, error) {
	if d.closed {
		return nil, audio.ErrStreamClosed
	}
	if d.vc != nil {
		return d.vc, nil
	}
	// mute=false (we send audio), deaf=false (we receive audio).
	vc, err := d.session.ChannelVoiceJoin(d.guildID, d.channelID, false, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", d.channelID, err)
	}
	d.vc = vc
	d.disconnect = vc.Disconnect
	return vc, nil
}

// OpenCapture joins the voice channel (if needed) and returns a stream
// delivering decoded, format-converted frames in cfg's format.
func (d *Device) OpenCapture(cfg audio.StreamConfig) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.captureOpen {
		return nil, fmt.Errorf("discord: capture stream already open")
	}
	vc, err := d.connect()
	if err != nil {
		return nil, err
	}

	d.captureOpen = true
	return &captureStream{
		cfg:  cfg,
		recv: vc.OpusRecv,
		pool: newDecoderPool(),
		conv: &audio.FormatConverter{
			Target: audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
		},
		done:    make(chan struct{}),
		release: func() { d.releaseCapture() },
	}, nil
}

func (d *Device) releaseCapture() {
	d.mu.Lock()
	d.captureOpen = false
	d.mu.Unlock()
}

// OpenPlayback returns an output that encodes PCM in cfg's format to Opus
// and sends it to the voice channel.
func (d *Device) OpenPlayback(cfg audio.StreamConfig) (audio.Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vc, err := d.connect()
	if err != nil {
		return nil, err
	}
	enc, err := newOpusEncoder()
	if err != nil {
		return nil, err
	}

	return &playbackStream{
		cfg:  cfg,
		vc:   vc,
		enc:  enc,
		conv: &audio.FormatConverter{Target: audio.Format{SampleRate: opusSampleRate, Channels: opusChannels}},
		done: make(chan struct{}),
	}, nil
}

// Close leaves the voice channel. Open streams unblock with errors.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var errs []error
	if d.vc != nil {
		disconnect := d.disconnect
		d.vc, d.disconnect = nil, nil
		if disconnect != nil {
			if err := disconnect(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if d.ownSession {
		if err := d.session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ─── Capture ─────────────────────────────────────────────────────────────────

// captureStream adapts the inbound Opus packet feed to fixed-size PCM
// frames. Packets from every speaker share one stream; the decoder pool
// keeps per-speaker Opus state consistent.
type captureStream struct {
	cfg  audio.StreamConfig
	recv <-chan *discordgo.Packet
	pool *decoderPool
	conv *audio.FormatConverter

	buf    []byte
	frames int

	done      chan struct{}
	closeOnce sync.Once
	release   func()
}

var _ audio.Stream = (*captureStream)(nil)

// Read blocks until one full frame of converted PCM has accumulated.
func (s *captureStream) Read() (audio.AudioFrame, error) {
	frameBytes := s.cfg.FrameBytes()

	for len(s.buf) < frameBytes {
		select {
		case <-s.done:
			return audio.AudioFrame{}, audio.ErrStreamClosed
		case pkt, ok := <-s.recv:
			if !ok {
				return audio.AudioFrame{}, audio.ErrStreamClosed
			}
			if pkt == nil {
				continue
			}

			pcm, err := s.pool.decode(pkt.SSRC, pkt.Opus)
			if err != nil {
				// A corrupt packet loses 20 ms, not the stream.
				slog.Warn("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
				continue
			}

			converted := s.conv.Convert(audio.AudioFrame{
				Data:       pcm,
				SampleRate: opusSampleRate,
				Channels:   opusChannels,
			})
			s.buf = append(s.buf, converted.Data...)
		}
	}

	frameDur := time.Duration(s.cfg.FrameSamples) * time.Second / time.Duration(s.cfg.SampleRate)
	frame := audio.AudioFrame{
		Data:       s.buf[:frameBytes:frameBytes],
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Timestamp:  time.Duration(s.frames) * frameDur,
	}
	s.buf = s.buf[frameBytes:]
	s.frames++
	return frame, nil
}

// Close releases the capture slot. Blocked Read calls unblock with
// audio.ErrStreamClosed.
func (s *captureStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.release != nil {
			s.release()
		}
	})
	return nil
}

// ─── Playback ────────────────────────────────────────────────────────────────

// playbackStream encodes outgoing PCM to Opus frames. Play blocks until the
// whole buffer has been handed to the voice connection.
type playbackStream struct {
	cfg  audio.StreamConfig
	vc   *discordgo.VoiceConnection
	enc  *opusEncoder
	conv *audio.FormatConverter

	done      chan struct{}
	closeOnce sync.Once
}

var _ audio.Output = (*playbackStream)(nil)

func (p *playbackStream) Play(pcm []byte) error {
	select {
	case <-p.done:
		return audio.ErrStreamClosed
	default:
	}
	if len(pcm) == 0 {
		return nil
	}

	converted := p.conv.Convert(audio.AudioFrame{
		Data:       pcm,
		SampleRate: p.cfg.SampleRate,
		Channels:   p.cfg.Channels,
	})
	data := converted.Data

	p.setSpeaking(true)
	defer p.setSpeaking(false)

	for off := 0; off < len(data); off += opusFrameBytes {
		packet, err := p.enc.encodeFrame(data[off:min(off+opusFrameBytes, len(data))])
		if err != nil {
			return err
		}
		select {
		case p.vc.OpusSend <- packet:
		case <-p.done:
			return audio.ErrStreamClosed
		}
	}
	return nil
}

func (p *playbackStream) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// setSpeaking sends a speaking notification to Discord. Failures are logged
// rather than propagated; a missed notification must not drop the reply.
func (p *playbackStream) setSpeaking(b bool) {
	if err := p.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification failed", "error", err)
	}
}
