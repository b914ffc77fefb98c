package wake

import (
	"context"

	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/keyword"
)

var _ strategy = (*acousticStrategy)(nil)

// acousticStrategy wraps a frame-synchronous keyword spotter. The spotter
// mandates the exact frame size and sample rate the capture stream is
// opened with. Each detection pass owns a fresh spotter: Close releases it
// and the next Start re-opens the engine, mirroring the transcription
// strategy's per-run session lifecycle.
type acousticStrategy struct {
	engine  keyword.Engine
	phrase  string
	spotter keyword.Spotter
}

// newAcousticStrategy opens the first spotter eagerly so strategy selection
// can fall back to transcription when the engine cannot serve the phrase
// after all.
func newAcousticStrategy(engine keyword.Engine, phrase string) (*acousticStrategy, error) {
	spotter, err := engine.Open(phrase)
	if err != nil {
		return nil, err
	}
	return &acousticStrategy{engine: engine, phrase: phrase, spotter: spotter}, nil
}

func (s *acousticStrategy) Name() string      { return "acoustic" }
func (s *acousticStrategy) FrameSamples() int { return s.spotter.FrameSamples() }
func (s *acousticStrategy) SampleRate() int   { return s.spotter.SampleRate() }

func (s *acousticStrategy) Start(context.Context) error {
	if s.spotter != nil {
		return nil
	}
	spotter, err := s.engine.Open(s.phrase)
	if err != nil {
		return err
	}
	s.spotter = spotter
	return nil
}

func (s *acousticStrategy) ProcessFrame(frame audio.AudioFrame) (bool, float64, error) {
	fired, err := s.spotter.Process(frame.Data)
	if err != nil {
		return false, 0, err
	}
	return fired, 1.0, nil
}

func (s *acousticStrategy) Close() error {
	if s.spotter == nil {
		return nil
	}
	err := s.spotter.Close()
	s.spotter = nil
	return err
}
