package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/speakwell-app/speakwell/pkg/audio"
)

// devicePair spins up a WebSocket endpoint whose server side wraps the
// connection in a Device, and returns the client connection plus the device
// and a channel carrying Run's result.
func devicePair(t *testing.T, opts ...Option) (*websocket.Conn, *Device, <-chan error) {
	t.Helper()

	devCh := make(chan *Device, 1)
	runCh := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()

		d := NewDevice(conn, opts...)
		devCh <- d
		runCh <- d.Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.CloseNow() })

	select {
	case d := <-devCh:
		return client, d, runCh
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for server-side device")
		return nil, nil, nil
	}
}

func readChunk(t *testing.T, cap audio.Capture) audio.Chunk {
	t.Helper()
	select {
	case chunk, ok := <-cap.Chunks():
		if !ok {
			t.Fatal("chunk channel closed")
		}
		return chunk
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return audio.Chunk{}
	}
}

func TestDevice_RoutesBinaryFramesToCapture(t *testing.T) {
	client, dev, _ := devicePair(t)

	cap, err := dev.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if cap.ContentType() != "audio/webm" {
		t.Errorf("content type = %q, want audio/webm", cap.ContentType())
	}

	ctx := context.Background()
	for _, data := range []string{"frame-1", "frame-2"} {
		if err := client.Write(ctx, websocket.MessageBinary, []byte(data)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	first := readChunk(t, cap)
	if string(first.Data) != "frame-1" || first.Seq != 0 {
		t.Errorf("first chunk = %q seq %d", first.Data, first.Seq)
	}
	second := readChunk(t, cap)
	if string(second.Data) != "frame-2" || second.Seq != 1 {
		t.Errorf("second chunk = %q seq %d", second.Data, second.Seq)
	}
}

func TestDevice_ContentTypeOption(t *testing.T) {
	_, dev, _ := devicePair(t, WithContentType("audio/wav"))

	cap, err := dev.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if cap.ContentType() != "audio/wav" {
		t.Errorf("content type = %q, want audio/wav", cap.ContentType())
	}
}

func TestDevice_DropsFramesWithoutCapture(t *testing.T) {
	client, dev, _ := devicePair(t)

	// The control callback doubles as a sequencing barrier: once the text
	// message has been seen, the preceding binary frame has been processed.
	seen := make(chan struct{})
	dev.OnControl(func([]byte) { close(seen) })

	ctx := context.Background()
	if err := client.Write(ctx, websocket.MessageBinary, []byte("early")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := client.Write(ctx, websocket.MessageText, []byte("barrier")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-seen:
	case <-time.After(5 * time.Second):
		t.Fatal("control callback not invoked")
	}

	cap, err := dev.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := client.Write(ctx, websocket.MessageBinary, []byte("late")); err != nil {
		t.Fatalf("write: %v", err)
	}

	chunk := readChunk(t, cap)
	if string(chunk.Data) != "late" {
		t.Errorf("chunk = %q, want the post-open frame only", chunk.Data)
	}
}

func TestDevice_SingleCaptureSlot(t *testing.T) {
	_, dev, _ := devicePair(t)

	cap, err := dev.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := dev.Open(context.Background()); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("second Open error = %v, want ErrDeviceUnavailable", err)
	}

	if err := cap.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := dev.Open(context.Background()); err != nil {
		t.Errorf("Open after Stop: %v", err)
	}
}

func TestDevice_CaptureStopIsIdempotent(t *testing.T) {
	_, dev, _ := devicePair(t)

	cap, err := dev.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cap.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := cap.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if _, ok := <-cap.Chunks(); ok {
		t.Error("chunk channel still open after Stop")
	}
}

func TestDevice_PeerCloseStopsLiveCapture(t *testing.T) {
	client, dev, runCh := devicePair(t)

	cap, err := dev.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := client.Close(websocket.StatusNormalClosure, "done"); err != nil {
		t.Fatalf("client close: %v", err)
	}

	select {
	case err := <-runCh:
		if err != nil {
			t.Errorf("Run = %v, want nil on normal closure", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after peer close")
	}

	// The capture channel must close so consumers unblock.
	select {
	case _, ok := <-cap.Chunks():
		if ok {
			t.Error("received chunk after close, want closed channel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("chunk channel never closed")
	}

	if _, err := dev.Open(context.Background()); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("Open after close = %v, want ErrDeviceUnavailable", err)
	}
}

func TestDevice_OpenWithCancelledContext(t *testing.T) {
	_, dev, _ := devicePair(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := dev.Open(ctx); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Errorf("Open = %v, want ErrDeviceUnavailable", err)
	}
}
