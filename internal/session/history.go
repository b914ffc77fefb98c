package session

import (
	"sync"

	"github.com/hearken-ai/hearken/pkg/provider/llm"
)

// defaultWindowTurns is how many trailing turns are handed to the reasoning
// backend when no explicit window is configured.
const defaultWindowTurns = 8

// History is the session-scoped conversation log. Every completed turn is
// appended in order; the reasoning call consumes a bounded trailing window
// of it. The log lives exactly as long as its session and is discarded when
// the session ends.
//
// All methods are safe for concurrent use.
type History struct {
	windowTurns int

	mu    sync.Mutex
	turns []Turn
}

// NewHistory creates a History whose Messages view covers the last
// windowTurns turns. windowTurns <= 0 selects the default of 8.
func NewHistory(windowTurns int) *History {
	if windowTurns <= 0 {
		windowTurns = defaultWindowTurns
	}
	return &History{windowTurns: windowTurns}
}

// Append records a completed turn.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
}

// Len returns how many turns have completed.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Turns returns a copy of the full ordered log.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Messages renders the trailing window as alternating user/assistant
// messages, ready to pass to the reasoning backend ahead of the current
// utterance.
func (h *History) Messages() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	window := h.turns
	if len(window) > h.windowTurns {
		window = window[len(window)-h.windowTurns:]
	}

	msgs := make([]llm.Message, 0, len(window)*2)
	for _, t := range window {
		if t.UserText != "" {
			msgs = append(msgs, llm.Message{Role: "user", Content: t.UserText})
		}
		if t.AssistantText != "" {
			msgs = append(msgs, llm.Message{Role: "assistant", Content: t.AssistantText})
		}
	}
	return msgs
}
