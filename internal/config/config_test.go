package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/speakwell-app/speakwell/internal/config"
	"github.com/speakwell-app/speakwell/pkg/provider/stt"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
  cors_origins:
    - "http://localhost:3000"
providers:
  stt:
    name: elevenlabs
    api_key: test-key
  fallbacks:
    - name: whisper
      base_url: http://localhost:9000
catalog:
  driver: static
recording:
  language: por
  max_duration_seconds: 30
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Providers.STT.Name != "elevenlabs" || cfg.Providers.STT.APIKey != "test-key" {
		t.Errorf("STT entry = %+v", cfg.Providers.STT)
	}
	if len(cfg.Providers.Fallbacks) != 1 || cfg.Providers.Fallbacks[0].Name != "whisper" {
		t.Errorf("Fallbacks = %+v", cfg.Providers.Fallbacks)
	}
	if cfg.Catalog.Driver != config.CatalogStatic {
		t.Errorf("Catalog.Driver = %q", cfg.Catalog.Driver)
	}
	if cfg.Recording.Language != "por" {
		t.Errorf("Recording.Language = %q", cfg.Recording.Language)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_addr: \":8080\"\n  bogus_field: 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown YAML field, got nil")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "tls missing key file",
			mutate:  func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "cert.pem"} },
			wantErr: "cert_file and key_file",
		},
		{
			name:    "invalid catalog driver",
			mutate:  func(c *config.Config) { c.Catalog.Driver = "redis" },
			wantErr: "catalog.driver",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *config.Config) { c.Catalog.Driver = config.CatalogSQLite },
			wantErr: "catalog.path",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *config.Config) { c.Catalog.Driver = config.CatalogPostgres },
			wantErr: "catalog.dsn",
		},
		{
			name:    "fallback without name",
			mutate:  func(c *config.Config) { c.Providers.Fallbacks = []config.ProviderEntry{{APIKey: "x"}} },
			wantErr: "fallbacks[0].name",
		},
		{
			name:    "negative max duration",
			mutate:  func(c *config.Config) { c.Recording.MaxDurationSeconds = -1 },
			wantErr: "max_duration_seconds",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Catalog.Driver = "redis"
	cfg.Recording.MaxDurationSeconds = -5

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"log_level", "catalog.driver", "max_duration_seconds"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q does not mention %q", err, want)
		}
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()

	_, err := r.CreateSTT(config.ProviderEntry{Name: "elevenlabs"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("error = %v, want ErrProviderNotRegistered", err)
	}

	var gotEntry config.ProviderEntry
	r.RegisterSTT("elevenlabs", func(e config.ProviderEntry) (stt.Provider, error) {
		gotEntry = e
		return nil, nil
	})

	if _, err := r.CreateSTT(config.ProviderEntry{Name: "elevenlabs", APIKey: "k"}); err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if gotEntry.APIKey != "k" {
		t.Errorf("factory received entry %+v", gotEntry)
	}
}
