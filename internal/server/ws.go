package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/speakwell-app/speakwell/internal/catalog"
	"github.com/speakwell-app/speakwell/internal/observe"
	"github.com/speakwell-app/speakwell/internal/recorder"
	"github.com/speakwell-app/speakwell/pkg/audio/ws"
)

// controlBuffer is the capacity of the queued control-message channel. Start
// and stop commands are processed sequentially; a client has no reason to
// have more than a couple in flight.
const controlBuffer = 8

// controlMessage is a client → server command on the practice socket. Audio
// arrives as binary frames outside this protocol.
type controlMessage struct {
	// Type is one of "start", "stop", "abort".
	Type string `json:"type"`

	// PhraseID selects a catalog phrase to practise. Takes precedence over
	// Phrase when both are set.
	PhraseID *int64 `json:"phrase_id,omitempty"`

	// Phrase is a free-form expected phrase for ad-hoc practice.
	Phrase string `json:"phrase,omitempty"`

	// Category tags the attempt for metrics.
	Category string `json:"category,omitempty"`
}

// event is a server → client message on the practice socket.
type event struct {
	// Type is one of "state", "result", "error".
	Type string `json:"type"`

	// State carries the controller state on "state" events.
	State recorder.State `json:"state,omitempty"`

	// Attempt carries the scored outcome on "result" events.
	Attempt *recorder.Attempt `json:"attempt,omitempty"`

	// Code and Message describe "error" events.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// handlePractice upgrades the request to a WebSocket and drives one recording
// session per connection. The client streams microphone chunks as binary
// frames and sends JSON control messages ("start", "stop", "abort") as text
// frames; the server answers with state transitions and the scored result.
func (s *Server) handlePractice(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originHostPatterns(s.corsOrigins),
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	dev := ws.NewDevice(conn)
	opts := []recorder.Option{recorder.WithMetrics(s.metrics)}
	if s.maxRecording > 0 {
		opts = append(opts, recorder.WithMaxDuration(s.maxRecording))
	}

	sess := &practiceSession{
		conn:  conn,
		ctrl:  recorder.New(dev, s.assessor, opts...),
		store: s.store,
		ctx:   r.Context(),
		queue: make(chan controlMessage, controlBuffer),
	}

	go sess.controlLoop()
	dev.OnControl(sess.onControl)

	err = dev.Run(r.Context())
	close(sess.queue)

	// Release any capture still live when the peer vanished mid-session.
	sess.ctrl.Abort(context.Background())

	if err != nil && r.Context().Err() == nil {
		observe.Logger(r.Context()).Debug("practice socket closed", "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// practiceSession holds the per-connection state of one practice socket.
type practiceSession struct {
	conn  *websocket.Conn
	ctrl  *recorder.Controller
	store catalog.Store
	ctx   context.Context
	queue chan controlMessage

	// writeMu serialises writes; events are sent from both the control loop
	// and the inline abort path.
	writeMu sync.Mutex
}

// onControl runs on the device read loop, so it must not block. Abort is
// handled inline because it must be able to interrupt a stop that is still
// finalizing; start and stop are queued and processed sequentially.
func (p *practiceSession) onControl(msg []byte) {
	var cm controlMessage
	if err := json.Unmarshal(msg, &cm); err != nil {
		p.send(event{Type: "error", Code: "bad_message", Message: "invalid control message"})
		return
	}

	if cm.Type == "abort" {
		p.ctrl.Abort(p.ctx)
		p.send(event{Type: "state", State: p.ctrl.State()})
		return
	}

	select {
	case p.queue <- cm:
	default:
		p.send(event{Type: "error", Code: "busy", Message: "too many pending commands"})
	}
}

// controlLoop processes queued start/stop commands one at a time until the
// connection goes away.
func (p *practiceSession) controlLoop() {
	for cm := range p.queue {
		switch cm.Type {
		case "start":
			p.handleStart(cm)
		case "stop":
			p.handleStop()
		default:
			p.send(event{Type: "error", Code: "bad_message", Message: "unknown command " + cm.Type})
		}
	}
}

func (p *practiceSession) handleStart(cm controlMessage) {
	phrase, err := p.resolvePhrase(cm)
	if err != nil {
		p.send(event{Type: "error", Code: "unknown_phrase", Message: err.Error()})
		return
	}

	err = p.ctrl.Start(p.ctx, phrase, cm.Category)
	switch {
	case err == nil:
		p.send(event{Type: "state", State: p.ctrl.State()})
	case errors.Is(err, recorder.ErrNotIdle):
		p.send(event{Type: "error", Code: "not_idle", Message: err.Error()})
	case errors.Is(err, recorder.ErrNoPhrase):
		p.send(event{Type: "error", Code: "no_phrase", Message: err.Error()})
	default:
		var failure *recorder.Failure
		if errors.As(err, &failure) {
			p.send(event{Type: "error", Code: string(failure.Code), Message: failure.Message})
		} else {
			p.send(event{Type: "error", Code: "start_failed", Message: err.Error()})
		}
	}
}

func (p *practiceSession) handleStop() {
	p.send(event{Type: "state", State: recorder.StateFinalizing})

	attempt, err := p.ctrl.Stop(p.ctx)
	switch {
	case err == nil:
		p.send(event{Type: "result", Attempt: &attempt})
	case errors.Is(err, recorder.ErrNotRecording):
		p.send(event{Type: "error", Code: "not_recording", Message: err.Error()})
	default:
		// Failed attempts still carry the phrase and failure code.
		p.send(event{Type: "result", Attempt: &attempt})
	}
	p.send(event{Type: "state", State: p.ctrl.State()})
}

// resolvePhrase turns a start command into the catalog phrase to practise.
func (p *practiceSession) resolvePhrase(cm controlMessage) (catalog.Phrase, error) {
	if cm.PhraseID != nil {
		return p.store.Phrase(p.ctx, *cm.PhraseID)
	}
	if cm.Phrase == "" {
		return catalog.Phrase{}, errors.New("start requires phrase_id or phrase")
	}
	return catalog.Phrase{Text: cm.Phrase}, nil
}

// send writes one event as a text frame. Write errors are ignored; the read
// loop notices a dead connection and tears the session down.
func (p *practiceSession) send(ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.Write(p.ctx, websocket.MessageText, data)
}

// originHostPatterns converts configured CORS origins (full URLs) into the
// host patterns the WebSocket accept check expects.
func originHostPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, strings.TrimPrefix(o, "//"))
	}
	return patterns
}
