package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidSTTProviderNames lists known STT provider names. Used by [Validate]
// to warn about unrecognised names.
var ValidSTTProviderNames = []string{"elevenlabs", "deepgram", "whisper", "whisper-native"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; recordings cannot be transcribed")
	}
	validateSTTProviderName(cfg.Providers.STT.Name)
	for i, fb := range cfg.Providers.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.fallbacks[%d].name is required", i))
			continue
		}
		validateSTTProviderName(fb.Name)
	}

	// Catalog
	if cfg.Catalog.Driver != "" && !cfg.Catalog.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("catalog.driver %q is invalid; valid values: static, sqlite, postgres", cfg.Catalog.Driver))
	}
	switch cfg.Catalog.Driver {
	case CatalogSQLite:
		if cfg.Catalog.Path == "" {
			errs = append(errs, errors.New("catalog.path is required when catalog.driver is sqlite"))
		}
	case CatalogPostgres:
		if cfg.Catalog.DSN == "" {
			errs = append(errs, errors.New("catalog.dsn is required when catalog.driver is postgres"))
		}
	}

	// Recording
	if cfg.Recording.MaxDurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("recording.max_duration_seconds %d must not be negative", cfg.Recording.MaxDurationSeconds))
	}

	return errors.Join(errs...)
}

// validateSTTProviderName logs a warning if name is non-empty and not found
// in [ValidSTTProviderNames].
func validateSTTProviderName(name string) {
	if name == "" || slices.Contains(ValidSTTProviderNames, name) {
		return
	}
	slog.Warn("unknown STT provider name — may be a typo or third-party provider",
		"name", name,
		"known", ValidSTTProviderNames,
	)
}
