// Package deepgram provides a Deepgram-backed STT provider over the
// streaming WebSocket API. It implements the stt.Provider interface.
//
// Deepgram is a genuinely streaming engine, so the frame-synchronous
// SessionHandle contract is bridged with one background goroutine: Feed
// writes the frame to the socket and returns the rolling transcript
// assembled from the results the read loop has collected so far. Finalize
// asks Deepgram to flush, waits briefly for the closing result, and returns
// the committed transcript with per-word confidence detail.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/hearken-ai/hearken/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// finalizeWait bounds how long Finalize blocks for Deepgram's closing
	// result after the flush request.
	finalizeWait = 2 * time.Second
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram.
// It respects cfg.SampleRate, cfg.Language, and cfg.Keywords.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	sess := &session{
		ctx:        ctx,
		conn:       conn,
		sampleRate: sr,
		channels:   ch,
		finalCh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	sess.wg.Add(1)
	go sess.readLoop(ctx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	for _, kw := range cfg.Keywords {
		// Deepgram keyword format: word:boost (e.g., "hearken:5")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ─── session ────────────────────────────────────────────────────────────────

// deepgramResponse is the JSON structure of a Deepgram Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements
// stt.SessionHandle. Feed/Reset/Finalize belong to one capture loop; the
// internal state they share with the read loop is mutex-guarded.
type session struct {
	ctx        context.Context
	conn       *websocket.Conn
	sampleRate int
	channels   int

	mu        sync.Mutex
	committed []stt.Transcript // finals collected since the last Reset
	interim   string           // latest uncommitted alternative
	fedBytes  int

	finalCh chan struct{} // signalled on every committed result
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

var _ stt.SessionHandle = (*session)(nil)

// Feed sends one PCM frame to Deepgram and returns the rolling transcript:
// everything committed so far plus the latest interim guess.
func (s *session) Feed(pcm []byte) (stt.Result, error) {
	select {
	case <-s.done:
		return stt.Result{}, stt.ErrSessionClosed
	default:
	}

	if err := s.conn.Write(s.ctx, websocket.MessageBinary, pcm); err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: write audio: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fedBytes += len(pcm)
	return stt.Result{
		Text:    s.rollingTextLocked(),
		IsFinal: s.interim == "",
	}, nil
}

// Reset discards the collected results and asks Deepgram to flush pending
// audio so the previous segment's tail does not bleed into the next one.
func (s *session) Reset() error {
	select {
	case <-s.done:
		return stt.ErrSessionClosed
	default:
	}

	// Flush first so in-flight audio commits before the state is dropped.
	_ = s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`))
	s.drainFinal(finalizeWait / 4)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = nil
	s.interim = ""
	s.fedBytes = 0
	return nil
}

// Finalize flushes pending audio, waits briefly for the closing result, and
// returns the committed transcript for the segment.
func (s *session) Finalize() (stt.Transcript, error) {
	select {
	case <-s.done:
		return stt.Transcript{}, stt.ErrSessionClosed
	default:
	}

	if err := s.conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: finalize: %w", err)
	}
	s.drainFinal(finalizeWait)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assembleLocked(), nil
}

// Close terminates the session cleanly. Closing the connection before
// waiting guarantees the read loop unblocks even if the server never sends
// its closing frame.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return nil
}

// drainFinal waits up to timeout for the read loop to commit a result.
func (s *session) drainFinal(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.finalCh:
	case <-timer.C:
	case <-s.done:
	}
}

// rollingTextLocked joins committed finals and the interim guess. Caller
// holds s.mu.
func (s *session) rollingTextLocked() string {
	parts := make([]string, 0, len(s.committed)+1)
	for _, t := range s.committed {
		if t.Text != "" {
			parts = append(parts, t.Text)
		}
	}
	if s.interim != "" {
		parts = append(parts, s.interim)
	}
	return strings.Join(parts, " ")
}

// assembleLocked merges the committed finals into one Transcript. Caller
// holds s.mu.
func (s *session) assembleLocked() stt.Transcript {
	var (
		parts      []string
		words      []stt.WordDetail
		confidence float64
		scored     int
	)
	for _, t := range s.committed {
		if t.Text == "" {
			continue
		}
		parts = append(parts, t.Text)
		words = append(words, t.Words...)
		if t.Confidence > 0 {
			confidence += t.Confidence
			scored++
		}
	}
	if scored > 0 {
		confidence /= float64(scored)
	}

	var duration time.Duration
	if s.sampleRate > 0 && s.channels > 0 {
		samples := s.fedBytes / (2 * s.channels)
		duration = time.Duration(samples) * time.Second / time.Duration(s.sampleRate)
	}

	return stt.Transcript{
		Text:       strings.Join(parts, " "),
		Confidence: confidence,
		Words:      words,
		Duration:   duration,
	}
}

// readLoop receives JSON messages from Deepgram and folds them into the
// session state.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation.
			return
		}

		t, ok := parseResponse(msg)
		if !ok {
			continue
		}

		s.mu.Lock()
		if t.IsFinal {
			s.committed = append(s.committed, stt.Transcript{
				Text:       t.Text,
				Confidence: t.Confidence,
				Words:      t.Words,
			})
			s.interim = ""
		} else {
			s.interim = t.Text
		}
		s.mu.Unlock()

		if t.IsFinal {
			select {
			case s.finalCh <- struct{}{}:
			default:
			}
		}
	}
}

// parsedResult is one decoded Deepgram Results event.
type parsedResult struct {
	Text       string
	IsFinal    bool
	Confidence float64
	Words      []stt.WordDetail
}

// parseResponse decodes a raw Deepgram WebSocket message. Returns ok=false
// for messages that should be ignored (metadata, keep-alives, empty results).
func parseResponse(data []byte) (parsedResult, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return parsedResult{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return parsedResult{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}

	return parsedResult{
		Text:       alt.Transcript,
		IsFinal:    resp.IsFinal,
		Confidence: alt.Confidence,
		Words:      words,
	}, true
}
