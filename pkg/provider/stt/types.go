package stt

import "time"

// Transcript represents a completed speech-to-text result from a provider.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the language the provider detected or was hinted with.
	// May be empty if the provider does not report it.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available (ElevenLabs, Deepgram).
	// May be nil for providers that don't support word-level output.
	Words []WordDetail

	// Duration is the length of the recognised audio, when reported.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}
