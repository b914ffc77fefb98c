package capture

import "time"

// StopReason records why a segment capture ended.
type StopReason int

const (
	// StopSilence: the speaker finished and the post-speech silence gap
	// elapsed. The normal end of an utterance.
	StopSilence StopReason = iota

	// StopManual: an explicit stop signal arrived.
	StopManual

	// StopCap: the absolute maximum segment duration was reached.
	StopCap

	// StopNoSpeechTimeout: speech never started within the configured
	// timeout.
	StopNoSpeechTimeout

	// StopByePhrase: the bye phrase was spoken. Ends the segment and the
	// containing session.
	StopByePhrase

	// StopDoneWord: the done word was spoken. Ends only the segment.
	StopDoneWord
)

func (r StopReason) String() string {
	switch r {
	case StopSilence:
		return "silence"
	case StopManual:
		return "manual_stop"
	case StopCap:
		return "cap"
	case StopNoSpeechTimeout:
		return "no_speech_timeout"
	case StopByePhrase:
		return "bye_phrase"
	case StopDoneWord:
		return "done_word"
	default:
		return "unknown"
	}
}

// Forced reports whether the stop skips tail padding: manual stops, the hard
// cap, and the no-speech timeout end the segment immediately.
func (r StopReason) Forced() bool {
	switch r {
	case StopManual, StopCap, StopNoSpeechTimeout:
		return true
	}
	return false
}

// EndsSession reports whether this stop also ends the containing
// conversation session.
func (r StopReason) EndsSession() bool {
	return r == StopByePhrase
}

// Result is the immutable outcome of one segment capture, owned by the
// caller.
type Result struct {
	// Transcript is the engine's final text for the segment, verbatim.
	Transcript string

	// CleanTranscript is Transcript with any matched stop-words (bye phrase,
	// done word) consumed exactly once.
	CleanTranscript string

	// Audio is the captured gain-normalized PCM, pre-roll and tail padding
	// included.
	Audio []byte

	// StopReason records why the capture ended.
	StopReason StopReason

	// Duration is the wall-clock time the capture took.
	Duration time.Duration

	// AudioDuration is the length of the captured audio.
	AudioDuration time.Duration

	// Confidence is the engine's aggregated transcript confidence in [0,1],
	// 0 when the engine reports none.
	Confidence float64
}
