// Package whispercpp provides an in-process STT provider backed by the
// whisper.cpp CGO bindings, eliminating HTTP overhead entirely. The
// whisper.cpp static library (libwhisper.a) and headers (whisper.h) must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH environment
// variables.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/speakwell-app/speakwell/pkg/audio"
	"github.com/speakwell-app/speakwell/pkg/provider/stt"
)

const (
	defaultLanguage   = "pt"
	defaultSampleRate = 16000
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the ISO 639-1 language code for transcription
// (e.g., "pt", "en"). Defaults to "pt".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the sample rate assumed for raw PCM payloads that
// arrive without a WAV header. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO). The
// model is loaded once at startup and shared across all transcriptions; each
// Transcribe call runs on its own whisper context, so concurrent calls are
// safe.
type Provider struct {
	model      whisperlib.Model
	language   string
	sampleRate int

	mu sync.Mutex // guards model against Close during inference
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	p := &Provider{
		model:      model,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed; Transcribe calls after Close return an error.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Close()
	p.model = nil
	return err
}

// Transcribe runs whisper.cpp inference over the audio payload and returns
// the concatenated segment text with per-segment timing details. Payloads
// may be WAV (decoded in place) or raw 16-bit mono PCM at the configured
// sample rate; compressed containers such as WebM are not supported.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if len(req.Audio) == 0 {
		return stt.Transcript{}, errors.New("whispercpp: empty audio payload")
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whispercpp: context cancelled: %w", err)
	}

	pcm, channels, err := decodePayload(req.Audio)
	if err != nil {
		return stt.Transcript{}, err
	}
	samples := pcmToFloat32Mono(pcm, channels)

	lang := shortLang(req.Language)
	if lang == "" {
		lang = p.language
	}

	p.mu.Lock()
	model := p.model
	p.mu.Unlock()
	if model == nil {
		return stt.Transcript{}, errors.New("whispercpp: provider is closed")
	}

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whispercpp: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whispercpp: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whispercpp: process audio: %w", err)
	}

	tr := stt.Transcript{Language: lang}
	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whispercpp: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		tr.Duration = segment.End
	}
	tr.Text = strings.Join(parts, " ")
	return tr, nil
}

// decodePayload strips a RIFF/WAV container if present, returning raw PCM
// and the channel count. Raw payloads are assumed to be mono.
func decodePayload(data []byte) ([]byte, int, error) {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		pcm, _, channels, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, 0, fmt.Errorf("whispercpp: decode wav: %w", err)
		}
		return pcm, channels, nil
	}
	return data, 1, nil
}

// shortLang maps ISO 639-3 hints to the two-letter codes whisper.cpp
// understands; unknown values pass through unchanged.
func shortLang(lang string) string {
	switch strings.ToLower(lang) {
	case "":
		return ""
	case "por":
		return "pt"
	case "eng":
		return "en"
	case "spa":
		return "es"
	case "fra", "fre":
		return "fr"
	case "deu", "ger":
		return "de"
	case "ita":
		return "it"
	default:
		return lang
	}
}
