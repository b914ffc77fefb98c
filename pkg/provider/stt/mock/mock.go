// Package mock provides test doubles for the stt package interfaces.
//
// Session replays a script of partial transcripts keyed by frame index, so a
// test can make specific text "appear" at a chosen moment of the capture:
//
//	sess := &mock.Session{
//	    Partials: map[int]string{10: "turn the", 25: "turn the lights off"},
//	    Final:    stt.Transcript{Text: "turn the lights off"},
//	}
//	p := &mock.Provider{Session: sess}
package mock

import (
	"context"
	"sync"

	"github.com/hearken-ai/hearken/pkg/provider/stt"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is returned by StartStream. If nil, StartStream returns a new
	// default Session.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream in order.
	StartStreamCalls []StartStreamCall
}

var _ stt.Provider = (*Provider)(nil)

// StartStream records the call and returns Session, StartStreamErr.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{}, nil
}

// Session is a mock implementation of stt.SessionHandle. The rolling text
// changes at the frame indices present in Partials; between script points the
// previous text persists, mirroring how a real engine's partial lags audio.
type Session struct {
	mu sync.Mutex

	// Partials maps a frame index (counted since the last Reset) to the
	// rolling text returned from that Feed call onward.
	Partials map[int]string

	// Final is returned by Finalize.
	Final stt.Transcript

	// FeedErr, if non-nil, is returned by every Feed call.
	FeedErr error

	// FinalizeErr, if non-nil, is returned by Finalize.
	FinalizeErr error

	fed        int
	text       string
	resetCount int
	closed     bool

	// FedFrames records a copy of every frame passed to Feed.
	FedFrames [][]byte
}

var _ stt.SessionHandle = (*Session)(nil)

// Feed records the frame and returns the scripted rolling text.
func (s *Session) Feed(pcm []byte) (stt.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.Result{}, stt.ErrSessionClosed
	}
	if s.FeedErr != nil {
		return stt.Result{}, s.FeedErr
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.FedFrames = append(s.FedFrames, cp)
	if text, ok := s.Partials[s.fed]; ok {
		s.text = text
	}
	s.fed++
	return stt.Result{Text: s.text}, nil
}

// Reset rewinds the frame counter and clears the rolling text.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrSessionClosed
	}
	s.fed = 0
	s.text = ""
	s.resetCount++
	return nil
}

// Finalize returns the scripted final transcript.
func (s *Session) Finalize() (stt.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.Transcript{}, stt.ErrSessionClosed
	}
	if s.FinalizeErr != nil {
		return stt.Transcript{}, s.FinalizeErr
	}
	return s.Final, nil
}

// Close marks the session closed. Calling Close more than once is safe.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FedCount returns how many frames were fed since the last Reset.
func (s *Session) FedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fed
}

// ResetCount returns how many times Reset was called.
func (s *Session) ResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetCount
}
