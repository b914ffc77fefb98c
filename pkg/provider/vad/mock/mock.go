// Package mock provides a scripted vad.Classifier for tests.
package mock

import (
	"sync"

	"github.com/hearken-ai/hearken/pkg/provider/vad"
)

// Classifier is a mock vad.Classifier. Each IsSpeech call consumes the next
// entry of Script; once the script is exhausted (or when it is empty) every
// call returns Default.
type Classifier struct {
	mu sync.Mutex

	// Script is the sequence of results returned in order.
	Script []bool

	// Default is returned after Script runs out.
	Default bool

	next       int
	frameCount int
	resetCount int
}

var _ vad.Classifier = (*Classifier)(nil)
var _ vad.Resetter = (*Classifier)(nil)

// IsSpeech returns the next scripted result.
func (c *Classifier) IsSpeech([]byte, int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameCount++
	if c.next < len(c.Script) {
		r := c.Script[c.next]
		c.next++
		return r
	}
	return c.Default
}

// Reset rewinds the script and records the call.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = 0
	c.resetCount++
}

// FrameCount returns how many frames were classified.
func (c *Classifier) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameCount
}

// ResetCount returns how many times Reset was called.
func (c *Classifier) ResetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetCount
}
