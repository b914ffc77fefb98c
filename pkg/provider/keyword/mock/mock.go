// Package mock provides test doubles for the keyword package interfaces.
package mock

import (
	"errors"
	"sync"

	"github.com/hearken-ai/hearken/pkg/provider/keyword"
)

// Engine is a mock keyword.Engine.
type Engine struct {
	// Spottable lists the phrases CanSpot accepts. Empty means none.
	Spottable []string

	// Spotter is returned by Open. If nil, Open returns a new default
	// Spotter.
	Spotter keyword.Spotter

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error
}

var _ keyword.Engine = (*Engine)(nil)

// CanSpot reports whether phrase appears in Spottable.
func (e *Engine) CanSpot(phrase string) bool {
	for _, p := range e.Spottable {
		if p == phrase {
			return true
		}
	}
	return false
}

// Open returns Spotter, OpenErr.
func (e *Engine) Open(phrase string) (keyword.Spotter, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	if !e.CanSpot(phrase) {
		return nil, errors.New("mock keyword engine: phrase not spottable")
	}
	if e.Spotter != nil {
		return e.Spotter, nil
	}
	return &Spotter{Samples: 512, Rate: 16000}, nil
}

// Spotter is a mock keyword.Spotter that fires at scripted frame indices.
type Spotter struct {
	mu sync.Mutex

	// Samples and Rate are the mandated frame format.
	Samples int
	Rate    int

	// FireAt lists the frame indices (starting at 0) on which Process
	// returns true.
	FireAt []int

	// ProcessErr, if non-nil, is returned by every Process call.
	ProcessErr error

	frame  int
	closed bool
}

var _ keyword.Spotter = (*Spotter)(nil)

// FrameSamples implements keyword.Spotter.
func (s *Spotter) FrameSamples() int { return s.Samples }

// SampleRate implements keyword.Spotter.
func (s *Spotter) SampleRate() int { return s.Rate }

// Process returns true on the scripted frame indices.
func (s *Spotter) Process([]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errors.New("mock keyword spotter: closed")
	}
	if s.ProcessErr != nil {
		return false, s.ProcessErr
	}
	idx := s.frame
	s.frame++
	for _, at := range s.FireAt {
		if at == idx {
			return true, nil
		}
	}
	return false, nil
}

// Close marks the spotter closed.
func (s *Spotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Frames returns how many frames were processed.
func (s *Spotter) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}
