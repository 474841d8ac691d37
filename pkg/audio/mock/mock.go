// Package mock provides in-memory mock implementations of the [audio.Device]
// and [audio.Capture] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	cap := mock.NewCapture("audio/wav")
//	dev := &mock.Device{OpenResult: cap}
//	got, err := dev.Open(ctx)
//	cap.Emit([]byte{0x01, 0x02})
//	cap.Stop()
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/speakwell-app/speakwell/pkg/audio"
)

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is a mock implementation of [audio.Capture]. Create it with
// [NewCapture], feed chunks via [Capture.Emit], and end the stream with
// [Capture.Stop].
type Capture struct {
	mu sync.Mutex

	// StopError is returned by the first Stop call.
	StopError error

	contentType string
	ch          chan audio.Chunk
	seq         int
	opened      time.Time
	stopped     bool
	stopCalls   int
}

// NewCapture creates a live mock capture with the given content type and a
// buffered chunk channel.
func NewCapture(contentType string) *Capture {
	return &Capture{
		contentType: contentType,
		ch:          make(chan audio.Chunk, 64),
		opened:      time.Now(),
	}
}

// Chunks implements [audio.Capture].
func (c *Capture) Chunks() <-chan audio.Chunk { return c.ch }

// ContentType implements [audio.Capture].
func (c *Capture) ContentType() string { return c.contentType }

// Stop implements [audio.Capture]. The first call closes the chunk channel
// and returns StopError; subsequent calls are no-ops returning nil.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCalls++
	if c.stopped {
		return nil
	}
	c.stopped = true
	close(c.ch)
	return c.StopError
}

// Emit delivers data as the next chunk. Returns false when the capture has
// already been stopped (the chunk is dropped, mirroring a real device that
// stops delivering after release).
func (c *Capture) Emit(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.ch <- audio.Chunk{Data: data, Seq: c.seq, Timestamp: time.Since(c.opened)}
	c.seq++
	return true
}

// Stopped reports whether Stop has been called at least once. Thread-safe.
func (c *Capture) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// CallCountStop returns how many times Stop was called. Thread-safe.
func (c *Capture) CallCountStop() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopCalls
}

// Ensure Capture implements audio.Capture at compile time.
var _ audio.Capture = (*Capture)(nil)

// ─── Device ───────────────────────────────────────────────────────────────────

// OpenCall records the arguments of a single [Device.Open] invocation.
type OpenCall struct {
	// Ctx is the context passed to Open.
	Ctx context.Context
}

// Device is a mock implementation of [audio.Device].
// Set the exported Result fields before use; inspect the Call fields after.
type Device struct {
	mu sync.Mutex

	// OpenResult is the [audio.Capture] returned by Open. If nil, Open
	// returns a fresh [Capture] with content type "audio/wav".
	OpenResult audio.Capture

	// OpenError is the error returned by Open.
	OpenError error

	// OpenCalls records all Open invocations.
	OpenCalls []OpenCall
}

// Open implements [audio.Device]. Records the call and returns
// OpenResult / OpenError.
func (d *Device) Open(ctx context.Context) (audio.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, OpenCall{Ctx: ctx})
	if d.OpenError != nil {
		return nil, d.OpenError
	}
	if d.OpenResult != nil {
		return d.OpenResult, nil
	}
	return NewCapture("audio/wav"), nil
}

// OpenCallCount returns the number of Open calls. Thread-safe.
func (d *Device) OpenCallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.OpenCalls)
}

// Ensure Device implements audio.Device at compile time.
var _ audio.Device = (*Device)(nil)
