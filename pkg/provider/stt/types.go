package stt

import "time"

// Result is the rolling state returned by each Feed call.
type Result struct {
	// Text is the engine's current transcript of the segment so far,
	// including uncommitted interim text.
	Text string

	// IsFinal reports whether Text is fully committed. Engines that only
	// emit interim text until Finalize leave this false.
	IsFinal bool
}

// Transcript is the authoritative result of a finalized segment.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// engine does not report confidence.
	Confidence float64

	// Words contains per-word detail when available. Nil for engines
	// without word-level output.
	Words []WordDetail

	// Duration is the audio length covered by the transcript.
	Duration time.Duration
}

// WordDetail holds per-word metadata from engines that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost is a vocabulary hint passed to recognition, used to improve
// detection of the wake phrase and other configured stopwords.
type KeywordBoost struct {
	// Keyword is the text to boost.
	Keyword string

	// Boost is the intensity of the boost (engine-specific scale).
	Boost float64
}
