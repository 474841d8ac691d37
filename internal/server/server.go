// Package server exposes the SpeakWell HTTP API.
//
// The surface mirrors the client contract: the phrase catalog under
// /phrases and /categories, one-shot scoring under POST /transcribe, live
// recording sessions under /ws/practice, and the usual health and metrics
// endpoints. All error responses are JSON objects with a single "detail"
// field.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speakwell-app/speakwell/internal/catalog"
	"github.com/speakwell-app/speakwell/internal/eval"
	"github.com/speakwell-app/speakwell/internal/health"
	"github.com/speakwell-app/speakwell/internal/observe"
)

// maxUploadBytes bounds the size of one uploaded recording. A ten-second
// browser recording is well under a megabyte, so ten is generous.
const maxUploadBytes = 10 << 20

// defaultContentType is assumed when the upload does not declare a MIME type.
// It matches the MediaRecorder default used by the web client.
const defaultContentType = "audio/webm"

// Assessor scores one finished recording against an expected phrase. It is
// implemented by the practice service.
type Assessor interface {
	// Assess scores audioData using the default language.
	Assess(ctx context.Context, audioData []byte, contentType, expectedPhrase, category string) (eval.Result, error)

	// AssessWithLanguage is Assess with a per-request language override.
	AssessWithLanguage(ctx context.Context, audioData []byte, contentType, expectedPhrase, category, language string) (eval.Result, error)
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithListenAddr sets the TCP address Run listens on. Defaults to ":8080".
func WithListenAddr(addr string) Option {
	return func(s *Server) { s.listenAddr = addr }
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
// An empty list disables CORS headers entirely.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMaxRecordingDuration caps how long one WebSocket recording session may
// capture audio before it is stopped automatically. Zero means no cap.
func WithMaxRecordingDuration(d time.Duration) Option {
	return func(s *Server) { s.maxRecording = d }
}

// WithTLS enables HTTPS using the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) { s.certFile, s.keyFile = certFile, keyFile }
}

// WithHealth sets the health handler. Defaults to health.New("").
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server serves the SpeakWell HTTP API. Construct with New, then either call
// Run for a managed listener or mount Handler on an existing server.
type Server struct {
	store    catalog.Store
	assessor Assessor
	health   *health.Handler
	metrics  *observe.Metrics

	listenAddr   string
	corsOrigins  []string
	maxRecording time.Duration
	certFile     string
	keyFile      string
}

// New creates a Server around the given catalog store and assessor.
func New(store catalog.Store, assessor Assessor, opts ...Option) *Server {
	s := &Server{
		store:      store,
		assessor:   assessor,
		listenAddr: ":8080",
	}
	for _, o := range opts {
		o(s)
	}
	if s.health == nil {
		s.health = health.New("")
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the full API handler: routes, telemetry middleware and
// CORS headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.health.Register(mux)
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("GET /categories/{id}/phrases", s.handleCategoryPhrases)
	mux.HandleFunc("GET /phrases", s.handlePhrases)
	mux.HandleFunc("GET /phrases/{id}", s.handlePhrase)
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /ws/practice", s.handlePractice)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = observe.Middleware(s.metrics)(h)
	h = s.withCORS(h)
	return h
}

// ─── Catalog endpoints ────────────────────────────────────────────────────────

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.Categories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load categories")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCategoryPhrases(w http.ResponseWriter, r *http.Request) {
	phrases, err := s.store.PhrasesByCategory(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, catalog.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, "Category not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to load phrases")
	default:
		writeJSON(w, http.StatusOK, phrases)
	}
}

func (s *Server) handlePhrases(w http.ResponseWriter, r *http.Request) {
	phrases, err := s.store.Phrases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load phrases")
		return
	}
	writeJSON(w, http.StatusOK, phrases)
}

func (s *Server) handlePhrase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid phrase id")
		return
	}

	phrase, err := s.store.Phrase(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrPhraseNotFound):
		writeError(w, http.StatusNotFound, "Phrase not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to load phrase")
	default:
		writeJSON(w, http.StatusOK, phrase)
	}
}

// ─── Transcription endpoint ───────────────────────────────────────────────────

// handleTranscribe scores one uploaded recording. The request is multipart
// form data with an "audio" file part and an "expected_phrase" field;
// "language" and "category" are optional.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Audio file is required")
		return
	}
	defer file.Close()

	expected := r.FormValue("expected_phrase")
	if expected == "" {
		writeError(w, http.StatusBadRequest, "expected_phrase is required")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read audio file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Audio file is empty")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Audio file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	result, err := s.assessor.AssessWithLanguage(r.Context(), data, contentType,
		expected, r.FormValue("category"), r.FormValue("language"))
	if err != nil {
		observe.Logger(r.Context()).Error("transcription failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Transcription failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

// withCORS answers preflight requests and stamps allow headers for the
// configured origins. With no origins configured it is a passthrough.
func (s *Server) withCORS(next http.Handler) http.Handler {
	if len(s.corsOrigins) == 0 {
		return next
	}

	allowed := make(map[string]bool, len(s.corsOrigins))
	wildcard := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (wildcard || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ─── JSON helpers ─────────────────────────────────────────────────────────────

// errorBody is the JSON error response shape.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"detail":"encoding error"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
