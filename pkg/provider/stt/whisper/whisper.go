// Package whisper provides whisper.cpp-backed STT providers.
//
// Two variants are available: Provider talks to a running whisper-server
// binary over its REST API (POST /inference), NativeProvider links the
// whisper.cpp library directly through the CGO bindings. Both simulate
// streaming over the batch engine the same way: Feed accumulates PCM, and
// the whole buffer is re-inferred at a fixed interval so the rolling partial
// transcript grows as the user speaks. Finalize runs one last inference over
// the complete buffer and returns the authoritative transcript.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	    whisper.WithPartialInterval(time.Second),
//	)
//	handle, err := p.StartStream(ctx, cfg)
//	res, err := handle.Feed(pcmFrame)
//	transcript, err := handle.Finalize()
//	handle.Close()
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hearken-ai/hearken/pkg/provider/stt"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio
	// that whisper.cpp expects.
	bitsPerSample = 16

	// defaultRMSThreshold is the energy level (in 16-bit PCM units) below
	// which a frame is considered silent. Partial re-inference is skipped
	// while the buffer holds only silence.
	defaultRMSThreshold = 300.0

	defaultLanguage        = "en"
	defaultSampleRate      = 16000
	defaultPartialInterval = time.Second
	defaultMaxBufferMs     = 60_000
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the audio sample rate in Hz. This must match the
// actual sample rate of PCM data delivered via Feed. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithPartialInterval sets how much new audio must accumulate before the
// buffer is re-inferred for an updated partial transcript. Shorter intervals
// give more responsive stopword matching at the cost of repeated inference
// over the same audio. Defaults to one second.
func WithPartialInterval(interval time.Duration) Option {
	return func(p *Provider) { p.partialInterval = interval }
}

// WithMaxBufferMs caps the buffered audio duration. Feed returns an error
// once the cap is reached; the segment capturer's own duration cap should
// fire well before this. Defaults to 60 s.
func WithMaxBufferMs(ms int) Option {
	return func(p *Provider) { p.maxBufferMs = ms }
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
// Multiple sessions may be open simultaneously; each session maintains its
// own audio buffer.
type Provider struct {
	serverURL       string
	model           string
	language        string
	sampleRate      int
	partialInterval time.Duration
	maxBufferMs     int
	httpClient      *http.Client
}

// New creates a Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:       serverURL,
		language:        defaultLanguage,
		sampleRate:      defaultSampleRate,
		partialInterval: defaultPartialInterval,
		maxBufferMs:     defaultMaxBufferMs,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a new transcription session. It respects cfg.SampleRate,
// cfg.Channels, and cfg.Language; if those are zero/empty the provider-level
// defaults apply. No network connection is established until the first
// inference.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
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

	return &session{
		ctx:             ctx,
		serverURL:       p.serverURL,
		model:           p.model,
		language:        lang,
		sampleRate:      sr,
		channels:        ch,
		partialInterval: p.partialInterval,
		maxBufferMs:     p.maxBufferMs,
		httpClient:      p.httpClient,
	}, nil
}

// ─── session ────────────────────────────────────────────────────────────────

// session is a live whisper transcription session over the HTTP server. It
// implements stt.SessionHandle. A session belongs to one capture loop and is
// not safe for concurrent use.
type session struct {
	ctx             context.Context
	serverURL       string
	model           string
	language        string
	sampleRate      int
	channels        int
	partialInterval time.Duration
	maxBufferMs     int
	httpClient      *http.Client

	buffer      []byte
	bufferedMs  int
	inferredMs  int
	hadSpeech   bool
	partialText string
	closed      bool
}

var _ stt.SessionHandle = (*session)(nil)

// Feed appends one frame of raw 16-bit little-endian PCM to the utterance
// buffer and returns the rolling transcript. The whole buffer is re-inferred
// once enough new audio has accumulated since the previous inference; in
// between, the cached partial is returned.
func (s *session) Feed(pcm []byte) (stt.Result, error) {
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
		text, err := s.infer(s.ctx, s.buffer)
		if err != nil {
			return stt.Result{}, err
		}
		s.partialText = text
		s.inferredMs = s.bufferedMs
	}

	return stt.Result{Text: s.partialText}, nil
}

// Reset discards the buffered audio and the cached partial so the session
// can transcribe a fresh segment.
func (s *session) Reset() error {
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
// authoritative transcript. A buffer that never held speech finalizes to an
// empty transcript without a server round trip.
func (s *session) Finalize() (stt.Transcript, error) {
	if s.closed {
		return stt.Transcript{}, stt.ErrSessionClosed
	}
	duration := time.Duration(s.bufferedMs) * time.Millisecond
	if !s.hadSpeech || len(s.buffer) == 0 {
		return stt.Transcript{Duration: duration}, nil
	}

	text, err := s.infer(s.ctx, s.buffer)
	if err != nil {
		return stt.Transcript{}, err
	}
	return stt.Transcript{Text: text, Duration: duration}, nil
}

// Close releases the session. Calling Close more than once is safe.
func (s *session) Close() error {
	s.closed = true
	s.buffer = nil
	return nil
}

// infer encodes pcm as a WAV file and POSTs it to the whisper.cpp /inference
// endpoint as multipart/form-data. It returns the transcribed text.
func (s *session) infer(ctx context.Context, pcm []byte) (string, error) {
	wav := encodeWAV(pcm, s.sampleRate, s.channels)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	if s.language != "" {
		if err := mw.WriteField("language", s.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if s.model != "" {
		if err := mw.WriteField("model", s.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := s.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return result.Text, nil
}

// ─── helpers ────────────────────────────────────────────────────────────────

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer, expressed in PCM sample units (0–32 767).
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// chunkDurationMs returns the duration of a PCM chunk in milliseconds.
func chunkDurationMs(chunk []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * channels * (bitsPerSample / 8)
	return len(chunk) * 1000 / bytesPerSec
}
