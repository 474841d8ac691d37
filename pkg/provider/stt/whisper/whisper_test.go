package whisper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/speakwell-app/speakwell/pkg/audio"
	"github.com/speakwell-app/speakwell/pkg/provider/stt"
)

func TestNewRequiresServerURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty server URL, got nil")
	}
}

func TestTranscribeWAVPassthrough(t *testing.T) {
	t.Parallel()

	wav := audio.EncodeWAV(make([]byte, 3200), 16000, 1)

	var gotLang string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLang = r.FormValue("language")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotFile, _ = io.ReadAll(f)
		json.NewEncoder(w).Encode(map[string]string{"text": " bom dia\n"})
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := p.Transcribe(context.Background(), stt.Request{
		Audio:       wav,
		ContentType: "audio/wav",
		Language:    "por",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if tr.Text != "bom dia" {
		t.Errorf("Text = %q, want %q", tr.Text, "bom dia")
	}
	if gotLang != "pt" {
		t.Errorf("language field = %q, want pt", gotLang)
	}
	if len(gotFile) != len(wav) {
		t.Errorf("uploaded %d bytes, want %d (WAV should pass through unchanged)", len(gotFile), len(wav))
	}
}

func TestTranscribeWrapsRawPCM(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 640)

	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotFile, _ = io.ReadAll(f)
		json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: pcm}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if len(gotFile) != 44+len(pcm) {
		t.Fatalf("uploaded %d bytes, want %d (44-byte WAV header + PCM)", len(gotFile), 44+len(pcm))
	}
	if string(gotFile[0:4]) != "RIFF" || string(gotFile[8:12]) != "WAVE" {
		t.Error("uploaded payload is not a RIFF/WAVE container")
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte{1, 2}}); err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
}

func TestShortLang(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":    "",
		"por": "pt",
		"eng": "en",
		"pt":  "pt",
		"xyz": "xyz",
	}
	for in, want := range cases {
		if got := shortLang(in); got != want {
			t.Errorf("shortLang(%q) = %q, want %q", in, got, want)
		}
	}
}
