package session

import (
	"time"

	"github.com/hearken-ai/hearken/internal/capture"
)

// Turn is one completed user/assistant exchange. Turns are appended to the
// session history in order and never mutated afterwards.
type Turn struct {
	// Index is the zero-based turn number within the session.
	Index int

	// UserText is the clean transcript of the user's utterance.
	UserText string

	// AssistantText is the reply spoken back.
	AssistantText string

	// StopReason records how the user's segment ended.
	StopReason capture.StopReason

	// Duration is the wall-clock time the utterance capture took.
	Duration time.Duration

	// AudioDuration is the length of the captured user audio.
	AudioDuration time.Duration
}
