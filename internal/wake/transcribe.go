package wake

import (
	"context"
	"fmt"

	"github.com/hearken-ai/hearken/internal/phrase"
	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/stt"
)

var _ strategy = (*transcribeStrategy)(nil)

// transcribeStrategy feeds frames into a streaming transcription session and
// fuzzy-matches the rolling transcript against the wake-phrase variants.
// Higher latency than the acoustic engine but works for any phrase.
type transcribeStrategy struct {
	provider stt.Provider
	matcher  *phrase.Matcher
	wakeWord string
	language string

	session stt.SessionHandle
}

func newTranscribeStrategy(provider stt.Provider, cfg Config) (*transcribeStrategy, error) {
	variants := append([]string{cfg.Phrase}, cfg.Variants...)
	matcher, err := phrase.NewMatcher(variants, phrase.WithThreshold(cfg.MatchThreshold))
	if err != nil {
		return nil, err
	}
	return &transcribeStrategy{
		provider: provider,
		matcher:  matcher,
		wakeWord: cfg.Phrase,
		language: cfg.Language,
	}, nil
}

func (s *transcribeStrategy) Name() string      { return "transcription" }
func (s *transcribeStrategy) FrameSamples() int { return 0 }
func (s *transcribeStrategy) SampleRate() int   { return 0 }

func (s *transcribeStrategy) Start(ctx context.Context) error {
	session, err := s.provider.StartStream(ctx, stt.StreamConfig{
		SampleRate: defaultSampleRate,
		Channels:   1,
		Language:   s.language,
		Keywords:   []stt.KeywordBoost{{Keyword: s.wakeWord, Boost: 2.0}},
	})
	if err != nil {
		return err
	}
	s.session = session
	return nil
}

func (s *transcribeStrategy) ProcessFrame(frame audio.AudioFrame) (bool, float64, error) {
	result, err := s.session.Feed(frame.Data)
	if err != nil {
		return false, 0, fmt.Errorf("feed transcription session: %w", err)
	}
	if result.Text == "" {
		return false, 0, nil
	}

	score, ok := s.matcher.Match(result.Text)
	if !ok {
		return false, score, nil
	}

	// Clear the rolling transcript so the same utterance cannot trigger
	// again on the next frame. The debounce window covers the gap until the
	// engine catches up.
	if err := s.session.Reset(); err != nil {
		return false, 0, fmt.Errorf("reset transcription session: %w", err)
	}
	return true, score, nil
}

func (s *transcribeStrategy) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Close()
}
