// Package audio defines the capture-device abstraction used by the recording
// pipeline.
//
// The two primary abstractions are:
//
//   - [Device] — acquires exclusive access to a capture source and returns a
//     [Capture].
//   - [Capture] — represents one live capture: an ordered stream of audio
//     chunks plus an idempotent Stop that releases the underlying source.
//
// Implementations are provided by adapter packages (e.g. audio/ws for a
// browser microphone streamed over WebSocket, audio/mock for tests). The
// interfaces are intentionally narrow to keep the recording controller
// decoupled from transport details.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned by [Device.Open] when the capture source
// cannot be acquired — permission denied, no hardware, or a closed transport.
var ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

// Chunk is a single fragment of captured audio. Chunks arrive strictly in
// capture order; Seq is monotonically increasing within one capture.
type Chunk struct {
	// Data is the raw audio payload of this fragment. The encoding is
	// determined by the capture source; see [Capture.ContentType].
	Data []byte

	// Seq is the zero-based arrival index of this chunk within the capture.
	Seq int

	// Timestamp marks when this chunk was captured, relative to capture start.
	Timestamp time.Duration
}

// Capture represents one live recording on an acquired device.
//
// Callers must call Stop when the capture is no longer needed; failing to do
// so leaks the underlying source. All methods are safe for concurrent use.
type Capture interface {
	// Chunks returns the read-only channel delivering captured audio chunks
	// in arrival order. The channel is closed after Stop has been called and
	// all buffered chunks have been delivered, or when the underlying source
	// terminates on its own.
	Chunks() <-chan Chunk

	// ContentType reports the MIME type of the concatenated chunk data
	// (e.g. "audio/wav", "audio/webm").
	ContentType() string

	// Stop halts the capture and releases the underlying source. Stop is
	// idempotent: the first call releases, subsequent calls are no-ops
	// returning nil.
	Stop() error
}

// Device is the entry point for a capture source. Implementations wrap a
// concrete transport (WebSocket stream, OS microphone, test double) and
// expose a uniform [Capture] abstraction.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// Open acquires exclusive access to the capture source and begins
	// capturing. The supplied ctx governs the acquisition attempt only; once
	// open, the Capture remains live until [Capture.Stop] is called.
	//
	// Returns an error wrapping [ErrDeviceUnavailable] when the source cannot
	// be acquired. A Device delivers at most one live Capture at a time;
	// Open while a previous Capture is still live also fails.
	Open(ctx context.Context) (Capture, error)
}
