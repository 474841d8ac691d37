// Package ws adapts a browser microphone streamed over a WebSocket
// connection into an [audio.Device].
//
// The browser side records with MediaRecorder and sends each emitted blob as
// a binary WebSocket message; application-level control messages (start,
// stop, abort) are sent as text messages. A [Device] owns the single read
// loop for the connection: binary frames are routed to the currently open
// [audio.Capture], text frames are handed to the registered control
// callback. Binary frames that arrive while no capture is open are dropped.
//
// Typical usage inside an HTTP handler:
//
//	conn, _ := websocket.Accept(w, r, nil)
//	dev := ws.NewDevice(conn)
//	dev.OnControl(func(msg []byte) { … })
//	err := dev.Run(r.Context()) // blocks until the peer disconnects
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/speakwell-app/speakwell/pkg/audio"
)

// defaultContentType matches the MediaRecorder default used by the web
// client. Concatenating the binary frames of one recording yields a single
// well-formed stream of this type.
const defaultContentType = "audio/webm"

// chunkBuffer is the capacity of the per-capture chunk channel. The consumer
// (the recording controller) drains continuously; a full buffer means it has
// stalled, in which case the chunk is dropped rather than blocking the
// connection read loop.
const chunkBuffer = 256

// Option is a functional option for configuring a [Device].
type Option func(*Device)

// WithContentType overrides the MIME type reported for captured audio
// (e.g. "audio/wav" when the client streams raw WAV-wrappable PCM).
// Defaults to "audio/webm".
func WithContentType(ct string) Option {
	return func(d *Device) { d.contentType = ct }
}

// WithReadLimit sets the maximum size in bytes of a single WebSocket message.
// Defaults to 1 MiB, which comfortably fits MediaRecorder timeslice blobs.
func WithReadLimit(n int64) Option {
	return func(d *Device) { d.readLimit = n }
}

// Device implements [audio.Device] on top of a WebSocket connection.
// It is safe for concurrent use.
type Device struct {
	conn        *websocket.Conn
	contentType string
	readLimit   int64

	mu        sync.Mutex
	onControl func(msg []byte)
	cap       *capture
	closed    bool
}

// Compile-time assertion that Device implements audio.Device.
var _ audio.Device = (*Device)(nil)

// NewDevice wraps conn in a Device. The caller keeps ownership of conn and
// is responsible for closing it; [Device.Run] must be called to start
// message processing.
func NewDevice(conn *websocket.Conn, opts ...Option) *Device {
	d := &Device{
		conn:        conn,
		contentType: defaultContentType,
		readLimit:   1 << 20,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// OnControl registers cb as the callback invoked for every text message
// received on the connection. Only one callback may be registered at a time;
// subsequent calls replace the previous registration. The callback is
// invoked on the read-loop goroutine — it must not block.
func (d *Device) OnControl(cb func(msg []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onControl = cb
}

// Open implements [audio.Device]. It opens a capture slot that subsequent
// binary frames are routed into. Fails with [audio.ErrDeviceUnavailable]
// when the connection has terminated or another capture is still live.
func (d *Device) Open(ctx context.Context) (audio.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ws: %w: %v", audio.ErrDeviceUnavailable, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("ws: %w: connection closed", audio.ErrDeviceUnavailable)
	}
	if d.cap != nil {
		return nil, fmt.Errorf("ws: %w: capture already open", audio.ErrDeviceUnavailable)
	}

	c := &capture{
		contentType: d.contentType,
		ch:          make(chan audio.Chunk, chunkBuffer),
		opened:      time.Now(),
	}
	c.release = func() {
		d.mu.Lock()
		if d.cap == c {
			d.cap = nil
		}
		d.mu.Unlock()
	}
	d.cap = c
	return c, nil
}

// Run executes the connection read loop until ctx is cancelled or the peer
// disconnects. A live capture is stopped when the loop exits, so consumers
// of its chunk channel always unblock. Run returns nil on a normal peer
// close and the read error otherwise.
func (d *Device) Run(ctx context.Context) error {
	d.conn.SetReadLimit(d.readLimit)

	defer func() {
		d.mu.Lock()
		d.closed = true
		c := d.cap
		d.mu.Unlock()
		if c != nil {
			_ = c.Stop()
		}
	}()

	for {
		typ, data, err := d.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ws: read: %w", err)
		}

		switch typ {
		case websocket.MessageText:
			d.mu.Lock()
			cb := d.onControl
			d.mu.Unlock()
			if cb != nil {
				cb(data)
			}
		case websocket.MessageBinary:
			if len(data) == 0 {
				continue
			}
			d.mu.Lock()
			c := d.cap
			d.mu.Unlock()
			if c == nil {
				// No capture open — the client streamed ahead of start.
				continue
			}
			c.push(data)
		}
	}
}

// ─── capture ──────────────────────────────────────────────────────────────────

// capture implements [audio.Capture] for one recording on a Device.
type capture struct {
	contentType string
	release     func()
	opened      time.Time

	mu      sync.Mutex
	ch      chan audio.Chunk
	seq     int
	stopped bool
}

var _ audio.Capture = (*capture)(nil)

func (c *capture) Chunks() <-chan audio.Chunk { return c.ch }

func (c *capture) ContentType() string { return c.contentType }

// Stop implements [audio.Capture]. The first call closes the chunk channel
// and frees the device slot; subsequent calls are no-ops.
func (c *capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.ch)
	c.mu.Unlock()

	c.release()
	return nil
}

// push delivers one binary frame as the next chunk. Frames arriving after
// Stop are dropped; a full buffer also drops (the read loop must never
// block on a stalled consumer).
func (c *capture) push(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	select {
	case c.ch <- audio.Chunk{Data: data, Seq: c.seq, Timestamp: time.Since(c.opened)}:
		c.seq++
	default:
		slog.Warn("ws: chunk buffer full, dropping frame", "seq", c.seq, "bytes", len(data))
	}
}
