// Package porcupine implements the keyword.Engine interface on top of the
// Picovoice Porcupine wake-word engine.
//
// Porcupine is frame-synchronous: it mandates its own frame length and
// sample rate, and detects with very low latency, but only for phrases it
// has a model for — either one of the built-in keywords or a custom-trained
// .ppn file supplied through WithKeywordModel.
package porcupine

import (
	"errors"
	"fmt"
	"strings"

	pv "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/hearken-ai/hearken/pkg/provider/keyword"
)

const defaultSensitivity = 0.5

// Engine implements keyword.Engine. One Engine may open multiple spotters,
// each bound to a single phrase.
type Engine struct {
	accessKey   string
	modelPaths  map[string]string // normalized phrase -> .ppn path
	sensitivity float32
}

var _ keyword.Engine = (*Engine)(nil)

// Option configures the Engine.
type Option func(*Engine)

// WithKeywordModel registers a custom-trained model file for a phrase,
// making the phrase spottable even when it is not a built-in keyword.
func WithKeywordModel(phrase, path string) Option {
	return func(e *Engine) { e.modelPaths[normalize(phrase)] = path }
}

// WithSensitivity sets the detection sensitivity in [0, 1]. Higher values
// reduce misses at the cost of more false alarms. Default 0.5.
func WithSensitivity(s float32) Option {
	return func(e *Engine) { e.sensitivity = s }
}

// New creates an Engine. The access key is the Picovoice console credential;
// it is validated lazily, when the first spotter is opened.
func New(accessKey string, opts ...Option) (*Engine, error) {
	if accessKey == "" {
		return nil, errors.New("porcupine: access key must not be empty")
	}
	e := &Engine{
		accessKey:   accessKey,
		modelPaths:  make(map[string]string),
		sensitivity: defaultSensitivity,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// CanSpot implements keyword.Engine: the phrase is spottable when a custom
// model was registered for it or it is a built-in keyword.
func (e *Engine) CanSpot(phrase string) bool {
	if _, ok := e.modelPaths[normalize(phrase)]; ok {
		return true
	}
	return keyword.IsBuiltin(phrase)
}

// Open implements keyword.Engine. It initializes a native Porcupine
// instance bound to the phrase.
func (e *Engine) Open(phrase string) (keyword.Spotter, error) {
	if !e.CanSpot(phrase) {
		return nil, fmt.Errorf("porcupine: phrase %q is not a built-in keyword and has no custom model", phrase)
	}

	p := pv.Porcupine{
		AccessKey:     e.accessKey,
		Sensitivities: []float32{e.sensitivity},
	}
	if path, ok := e.modelPaths[normalize(phrase)]; ok {
		p.KeywordPaths = []string{path}
	} else {
		// Built-in keyword values are the lowercase phrase strings.
		p.BuiltInKeywords = []pv.BuiltInKeyword{pv.BuiltInKeyword(normalize(phrase))}
	}

	if err := p.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init for %q: %w", phrase, err)
	}
	return &spotter{p: p}, nil
}

// spotter wraps one native Porcupine instance.
type spotter struct {
	p      pv.Porcupine
	closed bool
}

var _ keyword.Spotter = (*spotter)(nil)

func (s *spotter) FrameSamples() int { return pv.FrameLength }
func (s *spotter) SampleRate() int   { return pv.SampleRate }

// Process implements keyword.Spotter. The frame must be exactly FrameLength
// little-endian int16 samples.
func (s *spotter) Process(pcm []byte) (bool, error) {
	if s.closed {
		return false, errors.New("porcupine: spotter is closed")
	}
	if len(pcm) != pv.FrameLength*2 {
		return false, fmt.Errorf("porcupine: frame must be %d samples, got %d bytes", pv.FrameLength, len(pcm))
	}

	samples := make([]int16, pv.FrameLength)
	for i := range samples {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}

	idx, err := s.p.Process(samples)
	if err != nil {
		return false, fmt.Errorf("porcupine: process: %w", err)
	}
	return idx >= 0, nil
}

// Close releases the native instance. Safe to call more than once.
func (s *spotter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.p.Delete()
}

func normalize(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}
