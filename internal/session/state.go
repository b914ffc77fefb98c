package session

// State is the conversation session state.
type State int

const (
	// StateIdle: no session active; the wake detector owns the microphone.
	StateIdle State = iota

	// StateRecording: a segment capture is in progress.
	StateRecording

	// StateThinking: the reasoning backend is producing a reply.
	StateThinking

	// StateSpeaking: the reply is being synthesized and played; the audio
	// gate is held paused.
	StateSpeaking

	// StateAwaitFollowup: listening for a follow-up utterance before
	// returning to Idle.
	StateAwaitFollowup
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateAwaitFollowup:
		return "await_followup"
	default:
		return "unknown"
	}
}

// validTransitions encodes the session state machine: the happy path is
// Idle → Recording → Thinking → Speaking → AwaitFollowup → {Recording |
// Idle}; any non-Idle state may fall back to Idle when the session ends.
var validTransitions = map[State][]State{
	StateIdle:          {StateRecording},
	StateRecording:     {StateThinking, StateIdle},
	StateThinking:      {StateSpeaking, StateIdle},
	StateSpeaking:      {StateAwaitFollowup, StateIdle},
	StateAwaitFollowup: {StateRecording, StateIdle},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, t := range validTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// EndReason records why a session ended.
type EndReason int

const (
	// EndByePhrase: the user spoke the bye phrase.
	EndByePhrase EndReason = iota

	// EndFollowupTimeout: the follow-up window elapsed without speech.
	EndFollowupTimeout

	// EndNoInput: the first capture produced no usable transcript.
	EndNoInput

	// EndCancelled: the session context was cancelled.
	EndCancelled

	// EndError: a device or collaborator failure ended the session.
	EndError
)

func (r EndReason) String() string {
	switch r {
	case EndByePhrase:
		return "bye_phrase"
	case EndFollowupTimeout:
		return "followup_timeout"
	case EndNoInput:
		return "no_input"
	case EndCancelled:
		return "cancelled"
	case EndError:
		return "error"
	default:
		return "unknown"
	}
}
