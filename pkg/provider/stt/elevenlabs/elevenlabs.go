// Package elevenlabs provides an ElevenLabs Scribe-backed STT provider using
// the speech-to-text REST API. It implements the stt.Provider interface.
//
// The Scribe v1 model supports Portuguese and ~30 other languages; the
// language hint is passed as an ISO 639-3 code (e.g. "por").
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/speakwell-app/speakwell/pkg/provider/stt"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	sttEndpoint    = "/v1/speech-to-text"
	defaultModel   = "scribe_v1"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs STT model ID (e.g. "scribe_v1").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default ISO 639-3 language code sent with every
// request that does not carry its own hint (e.g. "por").
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithBaseURL overrides the API endpoint. Useful for tests and proxies.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// Provider implements stt.Provider backed by the ElevenLabs speech-to-text
// API. It is safe for concurrent use.
type Provider struct {
	apiKey     string
	model      string
	language   string
	baseURL    string
	httpClient *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- response types ----

// sttResponse mirrors the ElevenLabs speech-to-text response body.
type sttResponse struct {
	LanguageCode        string    `json:"language_code"`
	LanguageProbability float64   `json:"language_probability"`
	Text                string    `json:"text"`
	Words               []sttWord `json:"words"`
}

// sttWord is one entry of the per-word breakdown. Type is "word", "spacing",
// or "audio_event"; only "word" entries carry speech content.
type sttWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Type  string  `json:"type"`
}

// errorResponse is the ElevenLabs error body shape.
type errorResponse struct {
	Detail any `json:"detail"`
}

// Transcribe uploads the audio payload as multipart/form-data and returns
// the recognised transcript. The request's Language (falling back to the
// provider default) is sent as language_code; audio-event tagging is
// disabled because recordings are short spoken phrases.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if len(req.Audio) == 0 {
		return stt.Transcript{}, errors.New("elevenlabs: empty audio payload")
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := createAudioPart(mw, req.ContentType)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: write audio data: %w", err)
	}

	if err := mw.WriteField("model_id", p.model); err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: write model_id field: %w", err)
	}
	if lang != "" {
		if err := mw.WriteField("language_code", lang); err != nil {
			return stt.Transcript{}, fmt.Errorf("elevenlabs: write language_code field: %w", err)
		}
	}
	if err := mw.WriteField("tag_audio_events", "false"); err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: write tag_audio_events field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+sttEndpoint, &body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Detail != nil {
			return stt.Transcript{}, fmt.Errorf("elevenlabs: HTTP %d: %v", resp.StatusCode, apiErr.Detail)
		}
		return stt.Transcript{}, fmt.Errorf("elevenlabs: server returned HTTP %d", resp.StatusCode)
	}

	var result sttResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return stt.Transcript{}, fmt.Errorf("elevenlabs: parse JSON response: %w", err)
	}

	tr := stt.Transcript{
		Text:       result.Text,
		Language:   result.LanguageCode,
		Confidence: result.LanguageProbability,
	}
	for _, w := range result.Words {
		if w.Type != "" && w.Type != "word" {
			continue
		}
		tr.Words = append(tr.Words, stt.WordDetail{
			Word:  w.Text,
			Start: time.Duration(w.Start * float64(time.Second)),
			End:   time.Duration(w.End * float64(time.Second)),
		})
	}
	if n := len(tr.Words); n > 0 {
		tr.Duration = tr.Words[n-1].End
	}
	return tr, nil
}

// createAudioPart creates the "file" form part with a filename extension
// matching the payload content type, so the server can sniff the container
// format from the name as well as the bytes.
func createAudioPart(mw *multipart.Writer, contentType string) (io.Writer, error) {
	name := "audio" + extensionFor(contentType)
	return mw.CreateFormFile("file", name)
}

// extensionFor maps common audio MIME types to a file extension. Parameters
// (e.g. ";codecs=opus") are stripped before matching.
func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = contentType
	}
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm", "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
