package practice

import (
	"context"
	"errors"
	"testing"

	"github.com/speakwell-app/speakwell/pkg/provider/stt"
	sttmock "github.com/speakwell-app/speakwell/pkg/provider/stt/mock"
)

func TestAssess(t *testing.T) {
	t.Parallel()

	provider := &sttmock.Provider{
		Transcript: stt.Transcript{Text: "bom dia", Language: "por"},
	}
	svc := New(provider, WithLanguage("por"), WithProviderName("mock"))

	result, err := svc.Assess(context.Background(), []byte("audio"), "audio/webm", "Bom dia", "basics")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if !result.AllCorrect || result.OverallScore != 100 {
		t.Errorf("result = %+v, want perfect score", result)
	}
	if result.TranscribedText != "bom dia" {
		t.Errorf("TranscribedText = %q", result.TranscribedText)
	}

	if provider.CallCount() != 1 {
		t.Fatalf("provider called %d times, want 1", provider.CallCount())
	}
	call := provider.TranscribeCalls[0]
	if call.Req.Language != "por" {
		t.Errorf("request language = %q, want por", call.Req.Language)
	}
	if call.Req.ContentType != "audio/webm" {
		t.Errorf("request content type = %q", call.Req.ContentType)
	}
	if call.Req.CategoryTag != "basics" {
		t.Errorf("request category tag = %q", call.Req.CategoryTag)
	}
}

func TestAssessPartial(t *testing.T) {
	t.Parallel()

	provider := &sttmock.Provider{
		Transcript: stt.Transcript{Text: "bom tarde"},
	}
	svc := New(provider)

	result, err := svc.Assess(context.Background(), []byte("audio"), "audio/wav", "Bom dia", "")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if result.AllCorrect {
		t.Error("AllCorrect = true for a partial match")
	}
	if result.OverallScore != 50 {
		t.Errorf("OverallScore = %d, want 50", result.OverallScore)
	}
}

func TestAssessTranscriptionError(t *testing.T) {
	t.Parallel()

	provErr := errors.New("scribe is down")
	provider := &sttmock.Provider{TranscribeErr: provErr}
	svc := New(provider)

	_, err := svc.Assess(context.Background(), []byte("audio"), "audio/wav", "Bom dia", "")
	if !errors.Is(err, provErr) {
		t.Fatalf("error = %v, want wrapped provider error", err)
	}
}

func TestAssessWithLanguageOverride(t *testing.T) {
	t.Parallel()

	provider := &sttmock.Provider{
		Transcript: stt.Transcript{Text: "bom dia"},
	}
	svc := New(provider, WithLanguage("por"))

	if _, err := svc.AssessWithLanguage(context.Background(), []byte("audio"), "audio/webm", "Bom dia", "", "spa"); err != nil {
		t.Fatalf("AssessWithLanguage: %v", err)
	}
	if got := provider.TranscribeCalls[0].Req.Language; got != "spa" {
		t.Errorf("request language = %q, want spa", got)
	}

	// An empty override falls back to the configured default.
	if _, err := svc.AssessWithLanguage(context.Background(), []byte("audio"), "audio/webm", "Bom dia", "", ""); err != nil {
		t.Fatalf("AssessWithLanguage: %v", err)
	}
	if got := provider.TranscribeCalls[1].Req.Language; got != "por" {
		t.Errorf("request language = %q, want por", got)
	}
}
