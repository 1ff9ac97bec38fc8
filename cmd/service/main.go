// Command service runs the MCP registry gateway: an HTTP front for the
// registry whose calls go through the retrying call bridge.
package main

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/clients"
	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/clients/acl"
	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http"
	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/handlers"
	"github.com/jsamuelsen/mcphub-gateway/internal/app"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/config"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/resilience"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/telemetry"
	"github.com/jsamuelsen/mcphub-gateway/internal/ports"
)

// Stamped at link time, e.g. -ldflags "-X main.version=1.4.0 -X main.commit=$(git rev-parse HEAD)".
// handlers.NewBuildInfo falls back to the module's VCS settings when unset.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmp.Or(os.Getenv(config.EnvPrefix+"ENVIRONMENT"), "local")); err != nil {
		fmt.Fprintln(os.Stderr, "mcphub-gateway:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, profile string) error {
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("config profile %q: %w", profile, err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("gateway starting",
		slog.String("profile", profile),
		slog.String("version", version),
		slog.String("commit", commit),
		slog.String("registry", cfg.Registry.BaseURL),
	)

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		Registry:     cfg.Registry.Name,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	// ctx is done by the time this runs; the provider bounds its own flush.
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("flushing telemetry", slog.Any("error", err))
		}
	}()

	bridge, err := newBridge(&cfg.Bridge, logger)
	if err != nil {
		return err
	}

	registry, err := newRegistryClient(cfg, logger)
	if err != nil {
		return err
	}

	checks := ports.NewHealthRegistry()
	if err := checks.Register(registry); err != nil {
		return fmt.Errorf("readiness check %q: %w", registry.Name(), err)
	}

	service := app.NewRegistryService(app.RegistryServiceConfig{
		Client: registry,
		Bridge: bridge,
		Logger: logger,
	})

	server, err := http.New(&cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	http.SetupRouter(server.Engine(), http.NewRouterConfig(cfg, logger,
		handlers.NewHealthHandler(checks, handlers.NewBuildInfo(version, commit, buildTime, cfg.Registry.Name)),
		handlers.NewRegistryHandler(service),
	))

	if err := server.Run(ctx); err != nil {
		return err
	}

	logger.Info("gateway stopped")

	return nil
}

// newLogger masks the registry token header on top of the default
// sensitive headers.
func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(&logging.Config{
		Level:         cfg.Log.Level,
		Format:        cfg.Log.Format,
		Service:       cfg.App.Name,
		Version:       cfg.App.Version,
		RedactHeaders: []string{cfg.Token.Header},
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
}

func newRegistryClient(cfg *config.Config, logger *slog.Logger) (*acl.RegistryClient, error) {
	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Registry.BaseURL,
		ServiceName: cfg.Registry.Name,
		Timeout:     cfg.Client.Timeout,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		UserAgent:   cfg.App.Name + "/" + version,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("registry client: %w", err)
	}

	return acl.NewRegistryClient(acl.RegistryClientConfig{
		Client: httpClient,
		Logger: logger,
	}), nil
}

// newBridge builds the retry policy and classification table from configuration.
func newBridge(cfg *config.BridgeConfig, logger *slog.Logger) (*resilience.Bridge, error) {
	policy, err := resilience.NewPolicy(resilience.PolicyConfig{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.Multiplier,
		AttemptTimeout: cfg.AttemptTimeout,
		RetryableKinds: cfg.RetryableKinds,
	})
	if err != nil {
		return nil, fmt.Errorf("building retry policy: %w", err)
	}

	table, err := resilience.DefaultClassificationTable().WithOverrides(resilience.Overrides{
		Patterns: cfg.Classification.Patterns,
		Statuses: cfg.Classification.Statuses,
	})
	if err != nil {
		return nil, fmt.Errorf("building classification table: %w", err)
	}

	return resilience.NewBridge(resilience.BridgeConfig{
		Policy:     policy,
		Normalizer: resilience.NewNormalizer(table),
		Logger:     logger,
	}), nil
}
