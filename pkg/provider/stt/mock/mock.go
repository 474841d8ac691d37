// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to feed controlled [stt.Transcript] values and inspect which
// audio payloads were delivered.
//
// Example:
//
//	p := &mock.Provider{
//	    Transcript: stt.Transcript{Text: "bom dia"},
//	}
//	got, _ := p.Transcribe(ctx, stt.Request{Audio: payload})
package mock

import (
	"context"
	"sync"

	"github.com/speakwell-app/speakwell/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is a copy of the request passed to Transcribe (the Audio slice is
	// deep-copied so later mutation by the caller cannot affect the record).
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by every Transcribe call when TranscribeFn is nil.
	Transcript stt.Transcript

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeFn, if non-nil, is invoked instead of returning the static
	// Transcript/TranscribeErr pair. Useful for per-call behaviour such as
	// blocking until a context is cancelled.
	TranscribeFn func(ctx context.Context, req stt.Request) (stt.Transcript, error)

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	p.mu.Lock()
	rec := req
	rec.Audio = append([]byte(nil), req.Audio...)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: rec})
	fn := p.TranscribeFn
	tr, err := p.Transcript, p.TranscribeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return stt.Transcript{}, err
	}
	return tr, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
