// Package energy implements an RMS-energy VAD classifier with hysteresis.
//
// The classifier compares each frame's normalized RMS against a per-level
// threshold. Once a frame crosses into speech, the effective threshold drops
// by a hysteresis factor so that the tail of an utterance is not chopped into
// alternating speech/silence frames by natural amplitude dips.
package energy

import (
	"fmt"

	"github.com/hearken-ai/hearken/pkg/audio"
	"github.com/hearken-ai/hearken/pkg/provider/vad"
)

// DefaultThresholds maps sensitivity levels to normalized RMS thresholds.
// Level 0 is the most sensitive. Values were tuned against 16 kHz mono
// speech recorded at conversational distance.
var DefaultThresholds = []float64{0.010, 0.018, 0.030, 0.050, 0.080}

// Config holds the classifier parameters.
type Config struct {
	// Level selects the sensitivity level, indexing Thresholds.
	Level vad.Level

	// Thresholds maps levels to normalized RMS speech thresholds, most
	// sensitive first. Defaults to DefaultThresholds when empty.
	Thresholds []float64

	// Hysteresis scales the threshold down while inside a speech run.
	// Range (0, 1]; 1 disables hysteresis. Defaults to 0.6.
	Hysteresis float64
}

// Classifier is an RMS-energy speech detector at a fixed sensitivity level.
type Classifier struct {
	threshold  float64
	hysteresis float64
	inSpeech   bool
}

var _ vad.Classifier = (*Classifier)(nil)
var _ vad.Resetter = (*Classifier)(nil)

// New creates a classifier for the configured sensitivity level.
func New(cfg Config) (*Classifier, error) {
	thresholds := cfg.Thresholds
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	if cfg.Level < 0 || int(cfg.Level) >= len(thresholds) {
		return nil, fmt.Errorf("energy: level %d outside [0, %d]", cfg.Level, len(thresholds)-1)
	}
	hysteresis := cfg.Hysteresis
	if hysteresis <= 0 || hysteresis > 1 {
		hysteresis = 0.6
	}
	return &Classifier{
		threshold:  thresholds[cfg.Level],
		hysteresis: hysteresis,
	}, nil
}

// IsSpeech implements vad.Classifier.
func (c *Classifier) IsSpeech(pcm []byte, _ int) bool {
	threshold := c.threshold
	if c.inSpeech {
		threshold *= c.hysteresis
	}
	c.inSpeech = audio.RMS(pcm) >= threshold
	return c.inSpeech
}

// Reset clears the hysteresis state.
func (c *Classifier) Reset() {
	c.inSpeech = false
}

// Threshold returns the configured base threshold. Exposed for logging.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}
