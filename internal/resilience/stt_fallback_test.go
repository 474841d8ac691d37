package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/speakwell-app/speakwell/pkg/provider/stt"
	sttmock "github.com/speakwell-app/speakwell/pkg/provider/stt/mock"
)

func TestSTTFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Transcript: stt.Transcript{Text: "bom dia"}}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	tr, err := fb.Transcribe(context.Background(), stt.Request{Audio: []byte("a"), ContentType: "audio/wav"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "bom dia" {
		t.Errorf("Text = %q, want %q", tr.Text, "bom dia")
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CallCount())
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_Failover(t *testing.T) {
	primary := &sttmock.Provider{TranscribeErr: errors.New("primary down")}
	secondary := &sttmock.Provider{Transcript: stt.Transcript{Text: "obrigado"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	tr, err := fb.Transcribe(context.Background(), stt.Request{Audio: []byte("a")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "obrigado" {
		t.Errorf("Text = %q, want fallback transcript", tr.Text)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Errorf("calls = primary %d / secondary %d, want 1 / 1", primary.CallCount(), secondary.CallCount())
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Provider{TranscribeErr: errors.New("primary down")}
	secondary := &sttmock.Provider{TranscribeErr: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), stt.Request{Audio: []byte("a")})
	if err == nil {
		t.Fatal("expected error when every backend fails")
	}
}

func TestSTTFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &sttmock.Provider{TranscribeErr: errors.New("primary down")}
	secondary := &sttmock.Provider{Transcript: stt.Transcript{Text: "ok"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fb.AddFallback("secondary", secondary)

	ctx := context.Background()
	// First call trips the primary's breaker.
	if _, err := fb.Transcribe(ctx, stt.Request{Audio: []byte("a")}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	// Second call should go straight to the fallback.
	if _, err := fb.Transcribe(ctx, stt.Request{Audio: []byte("b")}); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary called %d times, want 1 (breaker should be open)", primary.CallCount())
	}
	if secondary.CallCount() != 2 {
		t.Errorf("secondary called %d times, want 2", secondary.CallCount())
	}
}
