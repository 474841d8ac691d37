// Package practice wires speech-to-text transcription and word-level
// evaluation into the assessment step that scores one recording attempt.
package practice

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/speakwell-app/speakwell/internal/eval"
	"github.com/speakwell-app/speakwell/internal/observe"
	"github.com/speakwell-app/speakwell/pkg/provider/stt"
)

// Option is a functional option for configuring a Service.
type Option func(*Service)

// WithLanguage sets the ISO 639-3 language hint forwarded to the STT
// provider. Defaults to "por".
func WithLanguage(lang string) Option {
	return func(s *Service) { s.language = lang }
}

// WithProviderName sets the provider label used in metrics. Defaults to
// "stt".
func WithProviderName(name string) Option {
	return func(s *Service) { s.providerName = name }
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service scores recordings by transcribing them and evaluating the result
// against the expected phrase. It implements the recorder's Assessor
// interface and backs the transcription HTTP endpoint.
type Service struct {
	provider     stt.Provider
	providerName string
	language     string
	metrics      *observe.Metrics
}

// New creates a Service around the given STT provider.
func New(provider stt.Provider, opts ...Option) *Service {
	s := &Service{
		provider:     provider,
		providerName: "stt",
		language:     "por",
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Assess transcribes the audio payload and scores it against expectedPhrase
// using the service's configured language. The returned result always carries
// one word evaluation per expected word; a transcription error is returned
// as-is so callers can classify it.
func (s *Service) Assess(ctx context.Context, audioData []byte, contentType, expectedPhrase, category string) (eval.Result, error) {
	return s.AssessWithLanguage(ctx, audioData, contentType, expectedPhrase, category, s.language)
}

// AssessWithLanguage is Assess with a per-call language override. An empty
// language falls back to the configured default.
func (s *Service) AssessWithLanguage(ctx context.Context, audioData []byte, contentType, expectedPhrase, category, language string) (eval.Result, error) {
	if language == "" {
		language = s.language
	}
	ctx, span := observe.StartSpan(ctx, "practice.assess",
		trace.WithAttributes(
			attribute.String("category", category),
			attribute.Int("audio.bytes", len(audioData)),
		),
	)
	defer span.End()

	start := time.Now()
	transcript, err := s.provider.Transcribe(ctx, stt.Request{
		Audio:       audioData,
		ContentType: contentType,
		Language:    language,
		CategoryTag: category,
	})
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", s.providerName)),
	)
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.providerName, "error")
		s.metrics.RecordProviderError(ctx, s.providerName)
		span.RecordError(err)
		return eval.Result{}, fmt.Errorf("practice: transcribe: %w", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.providerName, "ok")

	evalStart := time.Now()
	result := eval.Evaluate(transcript.Text, expectedPhrase)
	s.metrics.EvaluationDuration.Record(ctx, time.Since(evalStart).Seconds())

	span.SetAttributes(
		attribute.Int("score", result.OverallScore),
		attribute.Bool("all_correct", result.AllCorrect),
	)
	observe.Logger(ctx).Debug("attempt assessed",
		"transcribed", transcript.Text,
		"expected", expectedPhrase,
		"score", result.OverallScore,
	)
	return result, nil
}
