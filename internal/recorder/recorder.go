// Package recorder implements the recording lifecycle for pronunciation
// practice. A [Controller] drives one session at a time through the states
// idle → arming → recording → finalizing and back to idle, binding the
// practised phrase when the session is armed so that catalog changes during
// a recording cannot affect the attempt being scored.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/speakwell-app/speakwell/internal/catalog"
	"github.com/speakwell-app/speakwell/internal/eval"
	"github.com/speakwell-app/speakwell/internal/observe"
	"github.com/speakwell-app/speakwell/pkg/audio"
)

// State is the lifecycle state of a [Controller].
type State string

const (
	// StateIdle means no session is in progress. Start is the only
	// accepted transition.
	StateIdle State = "idle"

	// StateArming means the capture device is being opened. Audio is not
	// yet flowing.
	StateArming State = "arming"

	// StateRecording means audio is being captured.
	StateRecording State = "recording"

	// StateFinalizing means capture has stopped and the recording is being
	// transcribed and scored.
	StateFinalizing State = "finalizing"
)

// Lifecycle errors returned by Controller methods.
var (
	// ErrNotIdle is returned by Start when a session is already in progress.
	ErrNotIdle = errors.New("recorder: a session is already in progress")

	// ErrNotRecording is returned by Stop when no recording is in progress.
	ErrNotRecording = errors.New("recorder: no recording in progress")

	// ErrNoPhrase is returned by Start when the phrase to practise is empty.
	ErrNoPhrase = errors.New("recorder: no phrase bound")
)

// FailureCode classifies why an attempt produced no score.
type FailureCode string

const (
	// FailureDeviceUnavailable means the capture device could not be
	// opened or died mid-recording.
	FailureDeviceUnavailable FailureCode = "device_unavailable"

	// FailureTranscription means the STT provider could not transcribe
	// the recording.
	FailureTranscription FailureCode = "transcription_failure"

	// FailureEmptyRecording means capture produced no audio at all.
	FailureEmptyRecording FailureCode = "empty_recording"
)

// Failure describes why an attempt ended without a score.
type Failure struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"message"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("recorder: %s: %s", f.Code, f.Message)
}

// Attempt is the outcome of one completed recording session. Exactly one of
// Result and Err is set.
type Attempt struct {
	// Phrase is the catalog phrase bound when the session was armed.
	Phrase catalog.Phrase `json:"phrase"`

	// Category is the category the phrase was practised under.
	Category string `json:"category,omitempty"`

	// Duration is how long audio was captured, from arm to stop.
	Duration time.Duration `json:"duration"`

	// Result holds the word-level evaluation when the attempt succeeded.
	Result *eval.Result `json:"result,omitempty"`

	// Err describes why the attempt produced no score.
	Err *Failure `json:"error,omitempty"`
}

// Assessor turns a finished recording into an evaluation result. It is
// implemented by the practice service.
type Assessor interface {
	Assess(ctx context.Context, audioData []byte, contentType, expectedPhrase, category string) (eval.Result, error)
}

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithMaxDuration bounds how long a recording may run before it is stopped
// automatically. Zero (the default) means no limit.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Controller) { c.maxDuration = d }
}

// WithMetrics sets the metrics instance used for session gauges and error
// counters. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller drives the recording lifecycle. One session runs at a time;
// a second Start while a session is in progress returns [ErrNotIdle].
// All exported methods are safe for concurrent use.
type Controller struct {
	device      audio.Device
	assessor    Assessor
	metrics     *observe.Metrics
	maxDuration time.Duration

	mu      sync.Mutex
	state   State
	current *session
	nextID  uint64
	last    *Attempt
}

// session is the per-recording state. The phrase is snapshotted at arm time;
// the release func runs exactly once regardless of how the session ends.
type session struct {
	id       uint64
	phrase   catalog.Phrase
	category string
	language string

	capture     audio.Capture
	contentType string
	startedAt   time.Time

	segments [][]byte
	total    int

	releaseOnce sync.Once
	collectDone chan struct{}
	autoStop    *time.Timer
}

// New creates a Controller that records from device and scores recordings
// through assessor.
func New(device audio.Device, assessor Assessor, opts ...Option) *Controller {
	c := &Controller{
		device:   device,
		assessor: assessor,
		state:    StateIdle,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResult returns the outcome of the most recently completed session, or
// false when no completed attempt is available.
func (c *Controller) LastResult() (Attempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Attempt{}, false
	}
	return *c.last, true
}

// ClearResult discards the stored attempt, if any.
func (c *Controller) ClearResult() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
}

// Start arms a new recording session for the given phrase. The phrase text
// is snapshotted now; later catalog changes do not affect this attempt.
// Returns [ErrNotIdle] when a session is already in progress, [ErrNoPhrase]
// when the phrase has no text, or a [Failure] with code
// [FailureDeviceUnavailable] when the capture device cannot be opened.
func (c *Controller) Start(ctx context.Context, phrase catalog.Phrase, category string) error {
	if phrase.Text == "" {
		return ErrNoPhrase
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.nextID++
	s := &session{
		id:          c.nextID,
		phrase:      phrase,
		category:    category,
		collectDone: make(chan struct{}),
	}
	c.state = StateArming
	c.current = s
	c.mu.Unlock()

	// Opening the device may block, so it happens outside the lock. An
	// Abort racing this open is detected below via the session identity.
	capture, err := c.device.Open(ctx)

	c.mu.Lock()
	if c.current == nil || c.current.id != s.id {
		// Aborted while arming.
		c.mu.Unlock()
		if err == nil {
			_ = capture.Stop()
		}
		return errors.New("recorder: session aborted while arming")
	}
	if err != nil {
		c.state = StateIdle
		c.current = nil
		c.last = &Attempt{
			Phrase:   s.phrase,
			Category: s.category,
			Err: &Failure{
				Code:    FailureDeviceUnavailable,
				Message: err.Error(),
			},
		}
		c.mu.Unlock()
		c.metrics.RecordRecordingError(ctx, string(FailureDeviceUnavailable))
		return fmt.Errorf("recorder: open capture device: %w", err)
	}

	s.capture = capture
	s.contentType = capture.ContentType()
	s.startedAt = time.Now()
	c.state = StateRecording
	if c.maxDuration > 0 {
		s.autoStop = time.AfterFunc(c.maxDuration, func() {
			if _, err := c.Stop(context.Background()); err != nil && !errors.Is(err, ErrNotRecording) {
				slog.Warn("auto-stop failed", "error", err)
			}
		})
	}
	c.mu.Unlock()

	c.metrics.ActiveSessions.Add(ctx, 1)
	go c.collect(s)

	slog.Info("recording started",
		"session", s.id,
		"phrase_id", phrase.ID,
		"category", category,
	)
	return nil
}

// collect drains the capture channel into the session buffer. It exits when
// the capture is stopped (the channel closes). Only this goroutine writes
// s.segments; readers wait for collectDone first.
func (c *Controller) collect(s *session) {
	defer close(s.collectDone)
	for chunk := range s.capture.Chunks() {
		s.segments = append(s.segments, chunk.Data)
		s.total += len(chunk.Data)
	}
}

// Stop ends the current recording, transcribes it, and scores it against the
// phrase bound at Start. The outcome is stored for [LastResult] and also
// returned. Returns [ErrNotRecording] when no recording is in progress.
//
// Stop releases the capture device exactly once even when it races an Abort
// or an automatic stop.
func (c *Controller) Stop(ctx context.Context) (Attempt, error) {
	c.mu.Lock()
	if c.state != StateRecording || c.current == nil {
		c.mu.Unlock()
		return Attempt{}, ErrNotRecording
	}
	s := c.current
	c.state = StateFinalizing
	c.mu.Unlock()

	duration := time.Since(s.startedAt)
	c.release(s)
	<-s.collectDone

	payload := make([]byte, 0, s.total)
	for _, seg := range s.segments {
		payload = append(payload, seg...)
	}

	attempt := Attempt{
		Phrase:   s.phrase,
		Category: s.category,
		Duration: duration,
	}
	if len(payload) == 0 {
		attempt.Err = &Failure{
			Code:    FailureEmptyRecording,
			Message: "no audio captured",
		}
	} else {
		// Scoring happens outside the lock; an Abort during this call is
		// detected before the result is committed.
		result, err := c.assessor.Assess(ctx, payload, s.contentType, s.phrase.Text, s.category)
		if err != nil {
			attempt.Err = &Failure{
				Code:    FailureTranscription,
				Message: err.Error(),
			}
		} else {
			attempt.Result = &result
		}
	}

	c.mu.Lock()
	if c.current == nil || c.current.id != s.id {
		// Aborted while finalizing; discard the stale outcome.
		c.mu.Unlock()
		return Attempt{}, ErrNotRecording
	}
	c.state = StateIdle
	c.current = nil
	c.last = &attempt
	c.mu.Unlock()

	c.metrics.ActiveSessions.Add(ctx, -1)
	c.metrics.RecordingDuration.Record(ctx, duration.Seconds())
	if attempt.Err != nil {
		c.metrics.RecordRecordingError(ctx, string(attempt.Err.Code))
		slog.Warn("recording failed",
			"session", s.id,
			"code", attempt.Err.Code,
			"message", attempt.Err.Message,
		)
		return attempt, attempt.Err
	}

	c.metrics.RecordAttempt(ctx, s.category, attempt.Result.AllCorrect)
	slog.Info("recording scored",
		"session", s.id,
		"phrase_id", s.phrase.ID,
		"score", attempt.Result.OverallScore,
		"all_correct", attempt.Result.AllCorrect,
		"duration", duration,
	)
	return attempt, nil
}

// Abort cancels the session in progress, releasing the device and discarding
// any captured audio. Aborting an idle controller is a no-op. The stored
// result of a previously completed attempt is kept.
func (c *Controller) Abort(ctx context.Context) {
	c.mu.Lock()
	s := c.current
	captureLive := s != nil && s.capture != nil
	c.state = StateIdle
	c.current = nil
	c.mu.Unlock()

	if s == nil {
		return
	}
	c.release(s)
	if captureLive {
		c.metrics.ActiveSessions.Add(ctx, -1)
	}
	slog.Info("recording aborted", "session", s.id)
}

// release stops the capture device exactly once and cancels the auto-stop
// timer. Safe to call from any path that ends a session.
func (c *Controller) release(s *session) {
	s.releaseOnce.Do(func() {
		if s.autoStop != nil {
			s.autoStop.Stop()
		}
		if s.capture != nil {
			if err := s.capture.Stop(); err != nil {
				slog.Warn("capture stop failed", "session", s.id, "error", err)
			}
		}
	})
}
