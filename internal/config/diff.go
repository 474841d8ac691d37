package config

import (
	"fmt"
	"slices"
)

// ConfigDiff describes what changed between two loaded configs, split into
// what the running server can apply in place and what needs a restart.
//
// Only the log level is hot-applied: provider credentials, the catalog
// backend, listen address and recording defaults are all baked into
// components at startup, so edits to them land in RestartNeeded.
type ConfigDiff struct {
	// LogLevelChanged reports a log-level edit; NewLogLevel carries the value
	// to apply.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartNeeded lists the YAML paths of edited settings that only take
	// effect after a restart, in a stable order.
	RestartNeeded []string
}

// Empty reports whether the diff carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && len(d.RestartNeeded) == 0
}

// Diff compares two configs and classifies every changed setting.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	restart := func(path string) {
		d.RestartNeeded = append(d.RestartNeeded, path)
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		restart("server.listen_addr")
	}
	if !slices.Equal(old.Server.CORSOrigins, new.Server.CORSOrigins) {
		restart("server.cors_origins")
	}
	if !tlsEqual(old.Server.TLS, new.Server.TLS) {
		restart("server.tls")
	}

	if !providerEqual(old.Providers.STT, new.Providers.STT) {
		restart("providers.stt")
	}
	if len(old.Providers.Fallbacks) != len(new.Providers.Fallbacks) {
		restart("providers.fallbacks")
	} else {
		for i := range old.Providers.Fallbacks {
			if !providerEqual(old.Providers.Fallbacks[i], new.Providers.Fallbacks[i]) {
				restart(fmt.Sprintf("providers.fallbacks[%d]", i))
			}
		}
	}

	if old.Catalog != new.Catalog {
		restart("catalog")
	}

	if old.Recording.Language != new.Recording.Language {
		restart("recording.language")
	}
	if old.Recording.MaxDurationSeconds != new.Recording.MaxDurationSeconds {
		restart("recording.max_duration_seconds")
	}

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// providerEqual compares two provider entries including their free-form
// Options maps. Option values are compared as formatted strings since YAML
// only yields scalars, and nested maps, for which formatting is stable enough
// for change detection.
func providerEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, av := range a.Options {
		bv, ok := b.Options[k]
		if !ok || fmt.Sprint(av) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}
