package session

import (
	"github.com/hearken-ai/hearken/internal/capture"
	"github.com/hearken-ai/hearken/pkg/provider/llm"
)

// Observer receives session lifecycle callbacks. Implementations must be
// fast and non-blocking; callbacks run on the session goroutine. Embed
// NopObserver to implement only the callbacks of interest.
type Observer interface {
	// SessionStarted fires once when a wake detection opens a session.
	SessionStarted(id string)

	// StateChanged fires on every state transition with the turn index the
	// session is on.
	StateChanged(state State, turn int)

	// TranscriptReady fires when a segment capture completes.
	TranscriptReady(turn int, result *capture.Result)

	// ResponseReady fires when the reasoning backend returns a reply. text
	// is the content the session speaks; resp is the raw provider response
	// for integrators that want token usage.
	ResponseReady(turn int, text string, resp *llm.CompletionResponse)

	// SessionFinished fires once when the session ends.
	SessionFinished(id string, reason EndReason, turns int)

	// Error fires on non-fatal and fatal session errors alike.
	Error(msg string, err error)
}

// NopObserver implements Observer with no-ops.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) SessionStarted(string)                              {}
func (NopObserver) StateChanged(State, int)                            {}
func (NopObserver) TranscriptReady(int, *capture.Result)               {}
func (NopObserver) ResponseReady(int, string, *llm.CompletionResponse) {}
func (NopObserver) SessionFinished(string, EndReason, int)             {}
func (NopObserver) Error(string, error)                                {}
