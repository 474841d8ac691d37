// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g. ElevenLabs Scribe,
// Deepgram, or a local whisper.cpp server) and exposes a uniform batch
// interface: one finalized audio payload in, one [Transcript] out. The
// provider is a black box to the rest of the system — it receives a language
// hint and returns plain text; all pronunciation scoring happens elsewhere.
//
// Implementations must be safe for concurrent use. Multiple transcriptions
// may be in flight simultaneously (one per active learner).
package stt

import "context"

// Request carries one finalized audio payload and its recognition hints.
type Request struct {
	// Audio is the complete recorded payload (all buffered segments
	// concatenated in capture order).
	Audio []byte

	// ContentType is the MIME type of Audio (e.g. "audio/webm", "audio/wav").
	ContentType string

	// Language is the language hint for recognition. Providers accept either
	// ISO 639 codes ("pt", "por") or BCP-47 tags ("pt-BR") depending on the
	// backend; see each provider's documentation. An empty string lets the
	// provider auto-detect, if supported.
	Language string

	// CategoryTag is an optional free-form label forwarded to providers that
	// support request tagging, and included in logs. It carries the practice
	// category the recording belongs to.
	CategoryTag string
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe submits the audio payload for recognition and returns the
	// resulting transcript. The call blocks until the provider responds or
	// ctx is cancelled.
	//
	// Any failure (network, authentication, malformed payload, non-success
	// response) is returned as an error; no partial transcripts are produced.
	Transcribe(ctx context.Context, req Request) (Transcript, error)
}
