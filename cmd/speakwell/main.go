// Command speakwell is the main entry point for the SpeakWell pronunciation
// practice server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/speakwell-app/speakwell/internal/catalog"
	"github.com/speakwell-app/speakwell/internal/catalog/postgres"
	"github.com/speakwell-app/speakwell/internal/catalog/sqlite"
	"github.com/speakwell-app/speakwell/internal/catalog/static"
	"github.com/speakwell-app/speakwell/internal/config"
	"github.com/speakwell-app/speakwell/internal/health"
	"github.com/speakwell-app/speakwell/internal/observe"
	"github.com/speakwell-app/speakwell/internal/practice"
	"github.com/speakwell-app/speakwell/internal/resilience"
	"github.com/speakwell-app/speakwell/internal/server"
	"github.com/speakwell-app/speakwell/pkg/provider/stt"
	"github.com/speakwell-app/speakwell/pkg/provider/stt/deepgram"
	"github.com/speakwell-app/speakwell/pkg/provider/stt/elevenlabs"
	"github.com/speakwell-app/speakwell/pkg/provider/stt/whisper"
	"github.com/speakwell-app/speakwell/pkg/provider/stt/whispercpp"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	levels := new(slog.LevelVar)
	watcher, err := config.NewWatcher(*configPath, applyConfigChange(levels))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speakwell: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speakwell: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	levels.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levels}))
	slog.SetDefault(logger)

	slog.Info("speakwell starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetryShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "speakwell",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := buildSTTProvider(cfg, reg)
	if err != nil {
		slog.Error("failed to build STT provider", "err", err)
		return 1
	}

	// ── Catalog ───────────────────────────────────────────────────────────────
	store, closeStore, err := openCatalog(ctx, cfg.Catalog)
	if err != nil {
		slog.Error("failed to open catalog", "err", err)
		return 1
	}
	defer closeStore()

	// ── Practice service + HTTP API ───────────────────────────────────────────
	practiceOpts := []practice.Option{
		practice.WithProviderName(cfg.Providers.STT.Name),
	}
	if cfg.Recording.Language != "" {
		practiceOpts = append(practiceOpts, practice.WithLanguage(cfg.Recording.Language))
	}
	assessor := practice.New(provider, practiceOpts...)

	healthHandler := health.New("", health.Checker{
		Name: "catalog",
		Check: func(ctx context.Context) error {
			_, err := store.Categories(ctx)
			return err
		},
	})

	serverOpts := []server.Option{
		server.WithCORSOrigins(cfg.Server.CORSOrigins),
		server.WithHealth(healthHandler),
	}
	if cfg.Server.ListenAddr != "" {
		serverOpts = append(serverOpts, server.WithListenAddr(cfg.Server.ListenAddr))
	}
	if cfg.Recording.MaxDurationSeconds > 0 {
		serverOpts = append(serverOpts,
			server.WithMaxRecordingDuration(time.Duration(cfg.Recording.MaxDurationSeconds)*time.Second))
	}
	if cfg.Server.TLS != nil {
		serverOpts = append(serverOpts, server.WithTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile))
	}
	srv := server.New(store, assessor, serverOpts...)

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in STT provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("elevenlabs", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, elevenlabs.WithLanguage(lang))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if rate := optInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, whisper.WithSampleRate(rate))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whispercpp.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whispercpp.WithLanguage(lang))
		}
		if rate := optInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, whispercpp.WithSampleRate(rate))
		}
		return whispercpp.New(modelPath, opts...)
	})

	for _, name := range config.ValidSTTProviderNames {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
}

// buildSTTProvider instantiates the configured primary STT provider and, when
// fallbacks are configured, wraps everything in a circuit-breaking failover
// group.
func buildSTTProvider(cfg *config.Config, reg *config.Registry) (stt.Provider, error) {
	name := cfg.Providers.STT.Name
	if name == "" {
		return nil, errors.New("providers.stt.name is required")
	}

	primary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", name)

	if len(cfg.Providers.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewSTTFallback(primary, name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.Fallbacks {
		fb, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback stt provider %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, fb)
		slog.Info("provider created", "kind", "stt-fallback", "name", entry.Name)
	}
	return group, nil
}

// ── Catalog wiring ────────────────────────────────────────────────────────────

// openCatalog opens the configured catalog backend. Database backends are
// migrated on startup and seeded with the starter catalog when empty.
func openCatalog(ctx context.Context, cfg config.CatalogConfig) (catalog.Store, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case config.CatalogSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		closeStore := func() {
			if err := store.Close(); err != nil {
				slog.Warn("catalog close error", "err", err)
			}
		}
		if err := store.Migrate(ctx); err != nil {
			closeStore()
			return nil, noop, fmt.Errorf("migrate sqlite catalog: %w", err)
		}
		if err := seedIfEmpty(ctx, store, store.Seed); err != nil {
			closeStore()
			return nil, noop, err
		}
		return store, closeStore, nil

	case config.CatalogPostgres:
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres catalog: %w", err)
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("migrate postgres catalog: %w", err)
		}
		if err := seedIfEmpty(ctx, store, store.Seed); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return store, pool.Close, nil

	default:
		// Static is the default driver.
		if cfg.Path != "" {
			store, err := static.NewFromFile(cfg.Path)
			return store, noop, err
		}
		store, err := static.New()
		return store, noop, err
	}
}

// seedIfEmpty loads the embedded starter catalog into a freshly created
// database so the API is usable out of the box.
func seedIfEmpty(ctx context.Context, store catalog.Store, seed func(context.Context, []catalog.Category, []catalog.Phrase) error) error {
	cats, err := store.Categories(ctx)
	if err != nil {
		return fmt.Errorf("inspect catalog: %w", err)
	}
	if len(cats) > 0 {
		return nil
	}

	starter, err := static.New()
	if err != nil {
		return fmt.Errorf("load starter catalog: %w", err)
	}
	starterCats, err := starter.Categories(ctx)
	if err != nil {
		return err
	}
	phrases, err := starter.Phrases(ctx)
	if err != nil {
		return err
	}
	if err := seed(ctx, starterCats, phrases); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	slog.Info("seeded starter catalog", "categories", len(starterCats), "phrases", len(phrases))
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        SpeakWell — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("STT", providerLabel(cfg.Providers.STT))
	for _, fb := range cfg.Providers.Fallbacks {
		printRow("STT fallback", providerLabel(fb))
	}
	printRow("Catalog", string(catalogDriver(cfg.Catalog)))
	printRow("Language", cfg.Recording.Language)
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func catalogDriver(cfg config.CatalogConfig) config.CatalogDriver {
	if cfg.Driver == "" {
		return config.CatalogStatic
	}
	return cfg.Driver
}

func providerLabel(entry config.ProviderEntry) string {
	if entry.Name == "" {
		return "(not configured)"
	}
	if entry.Model != "" {
		return entry.Name + " / " + entry.Model
	}
	return entry.Name
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger and config reload ──────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// applyConfigChange reacts to config file edits while the server runs. Only
// the log level can change in place; everything else is baked into components
// at startup, so the operator is told which edits wait on a restart.
func applyConfigChange(levels *slog.LevelVar) func(old, new *config.Config) {
	return func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			levels.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if len(d.RestartNeeded) > 0 {
			slog.Warn("config edits need a restart to take effect",
				"settings", d.RestartNeeded)
		}
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an integer value from a provider Options map[string]any.
// YAML decodes bare numbers as int; anything else yields zero.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	v, ok := opts[key]
	if !ok {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		return 0
	}
	return n
}
