package config_test

import (
	"slices"
	"testing"

	"github.com/speakwell-app/speakwell/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr:  ":8080",
			LogLevel:    config.LogInfo,
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Providers: config.ProvidersConfig{
			STT: config.ProviderEntry{Name: "elevenlabs", APIKey: "k", Model: "scribe_v1"},
			Fallbacks: []config.ProviderEntry{
				{Name: "whisper", BaseURL: "http://localhost:9000"},
			},
		},
		Catalog: config.CatalogConfig{Driver: config.CatalogStatic},
		Recording: config.RecordingConfig{
			Language:           "por",
			MaxDurationSeconds: 30,
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("Diff of identical configs = %+v, want empty", d)
	}
}

func TestDiff_LogLevelIsHotApplied(t *testing.T) {
	t.Parallel()

	old, updated := baseConfig(), baseConfig()
	updated.Server.LogLevel = config.LogDebug

	d := config.Diff(old, updated)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
	if len(d.RestartNeeded) != 0 {
		t.Errorf("log level edit flagged restart-needed: %v", d.RestartNeeded)
	}
}

func TestDiff_RestartNeededPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "listen addr",
			mutate: func(c *config.Config) { c.Server.ListenAddr = ":9090" },
			want:   "server.listen_addr",
		},
		{
			name:   "cors origins",
			mutate: func(c *config.Config) { c.Server.CORSOrigins = append(c.Server.CORSOrigins, "http://localhost:3000") },
			want:   "server.cors_origins",
		},
		{
			name:   "tls enabled",
			mutate: func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c.pem", KeyFile: "k.pem"} },
			want:   "server.tls",
		},
		{
			name:   "primary provider model",
			mutate: func(c *config.Config) { c.Providers.STT.Model = "scribe_v2" },
			want:   "providers.stt",
		},
		{
			name:   "fallback list grows",
			mutate: func(c *config.Config) { c.Providers.Fallbacks = append(c.Providers.Fallbacks, config.ProviderEntry{Name: "deepgram"}) },
			want:   "providers.fallbacks",
		},
		{
			name:   "fallback entry edited",
			mutate: func(c *config.Config) { c.Providers.Fallbacks[0].BaseURL = "http://localhost:9001" },
			want:   "providers.fallbacks[0]",
		},
		{
			name:   "catalog driver",
			mutate: func(c *config.Config) { c.Catalog.Driver = config.CatalogSQLite; c.Catalog.Path = "phrases.db" },
			want:   "catalog",
		},
		{
			name:   "recording language",
			mutate: func(c *config.Config) { c.Recording.Language = "spa" },
			want:   "recording.language",
		},
		{
			name:   "max duration",
			mutate: func(c *config.Config) { c.Recording.MaxDurationSeconds = 60 },
			want:   "recording.max_duration_seconds",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			old, updated := baseConfig(), baseConfig()
			tt.mutate(updated)

			d := config.Diff(old, updated)
			if d.LogLevelChanged {
				t.Error("LogLevelChanged = true for a non-logging edit")
			}
			if !slices.Contains(d.RestartNeeded, tt.want) {
				t.Errorf("RestartNeeded = %v, want it to contain %q", d.RestartNeeded, tt.want)
			}
		})
	}
}

func TestDiff_ProviderOptionsCompared(t *testing.T) {
	t.Parallel()

	old, updated := baseConfig(), baseConfig()
	old.Providers.STT.Options = map[string]any{"language": "por"}
	updated.Providers.STT.Options = map[string]any{"language": "spa"}

	d := config.Diff(old, updated)
	if !slices.Contains(d.RestartNeeded, "providers.stt") {
		t.Errorf("option edit not detected: RestartNeeded = %v", d.RestartNeeded)
	}

	// Identical options must not register as a change.
	same := baseConfig()
	same.Providers.STT.Options = map[string]any{"language": "por"}
	other := baseConfig()
	other.Providers.STT.Options = map[string]any{"language": "por"}
	if d := config.Diff(same, other); !d.Empty() {
		t.Errorf("Diff of equal options = %+v, want empty", d)
	}
}
