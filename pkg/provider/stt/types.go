package stt

import "time"

// Transcript represents a recognition result. Both partial and final
// transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether the provider has committed to this result.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero means the
	// provider did not report one.
	Confidence float64

	// Words contains per-word detail when available. May be nil.
	Words []WordDetail

	// Timeout marks a synthetic transcript produced when the caller stayed
	// silent past the speech layer's deadline. Text is empty.
	Timeout bool

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost is a recognition hint.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "bigpond").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
