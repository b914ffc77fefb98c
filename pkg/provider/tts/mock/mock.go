// Package mock provides a mock implementation of the tts.Provider interface
// for testing.
package mock

import (
	"context"
	"sync"

	"github.com/hearken-ai/hearken/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

// Provider is a scripted tts.Provider. It records every synthesised text and
// returns the configured PCM.
type Provider struct {
	mu sync.Mutex

	// PCM is returned from every Synthesize call. If nil, a short non-empty
	// buffer is returned so callers that play the result have something to
	// consume.
	PCM []byte

	// Err, when set, is returned from Synthesize.
	Err error

	// Rate is the value SampleRate reports. Defaults to 22050 when 0.
	Rate int

	// Voices is returned from ListVoices.
	Voices []tts.VoiceProfile

	// Texts records every text passed to Synthesize, in order.
	Texts []string
}

func (p *Provider) Synthesize(_ context.Context, text string, _ tts.VoiceProfile) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Texts = append(p.Texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.PCM == nil {
		return make([]byte, 640), nil
	}
	out := make([]byte, len(p.PCM))
	copy(out, p.PCM)
	return out, nil
}

func (p *Provider) SampleRate() int {
	if p.Rate > 0 {
		return p.Rate
	}
	return 22050
}

func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	return p.Voices, nil
}

// SynthesizedTexts returns a copy of all texts synthesised so far.
func (p *Provider) SynthesizedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Texts))
	copy(out, p.Texts)
	return out
}
