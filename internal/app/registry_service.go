// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// Every outbound registry call made here goes through the resilience bridge,
// so callers only ever see a success value, a *domain.Error, or their own
// context error.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/resilience"
	"github.com/jsamuelsen/mcphub-gateway/internal/ports"
)

// Bridged operation names. They appear in logs, metrics and error detail.
const (
	OpListServers            = "list_servers"
	OpListOperationalServers = "list_operational_servers"
	OpGetServer              = "get_server"
)

// RegistryService orchestrates registry use cases.
// It depends on port interfaces, not concrete implementations.
type RegistryService struct {
	client ports.RegistryClient
	bridge *resilience.Bridge
	logger *slog.Logger
}

// RegistryServiceConfig contains configuration for the registry service.
type RegistryServiceConfig struct {
	Client ports.RegistryClient

	// Bridge wraps every registry call. If nil, a single-attempt bridge with
	// the default classification table is used.
	Bridge *resilience.Bridge

	Logger *slog.Logger
}

// NewRegistryService creates a new registry service.
// Panics if Client is nil. Defaults logger to slog.Default() if nil.
func NewRegistryService(cfg RegistryServiceConfig) *RegistryService {
	if cfg.Client == nil {
		panic("RegistryService: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bridge := cfg.Bridge
	if bridge == nil {
		bridge = resilience.NewBridge(resilience.BridgeConfig{
			Policy: resilience.Policy{MaxAttempts: 1},
			Logger: logger,
		})
	}

	return &RegistryService{
		client: cfg.Client,
		bridge: bridge,
		logger: logger.With(slog.String("component", "app.RegistryService")),
	}
}

// ListServers returns one page of the public registry.
func (s *RegistryService) ListServers(ctx context.Context, token string, query domain.ServerQuery) (*domain.ServerList, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	logging.FromContextOr(ctx, s.logger).Debug("listing servers",
		slog.String("search", query.Search),
		slog.Int("total_count", query.TotalCount))

	call := resilience.Call{
		Name: OpListServers,
		Detail: map[string]any{
			"search":      query.Search,
			"total_count": query.TotalCount,
		},
	}

	return resilience.Invoke[*domain.ServerList](ctx, s.bridge, call, func(ctx context.Context) (*domain.ServerList, error) {
		return s.client.ListServers(ctx, token, query)
	})
}

// ListOperationalServers returns the servers hosted for the caller's
// account. It requires a token and fails without calling the registry when
// none is given.
func (s *RegistryService) ListOperationalServers(ctx context.Context, token string) (*domain.OperationalServerList, error) {
	if token == "" {
		return nil, domain.NewAuthenticationError("Authentication required", map[string]any{
			"reason": "Token must be provided to list operational servers",
		})
	}

	logging.FromContextOr(ctx, s.logger).Debug("listing operational servers")

	call := resilience.Call{Name: OpListOperationalServers}

	return resilience.Invoke[*domain.OperationalServerList](ctx, s.bridge, call, func(ctx context.Context) (*domain.OperationalServerList, error) {
		return s.client.ListOperationalServers(ctx, token)
	})
}

// GetServer returns a single server. The ID is normalized to registry form
// first, so "group/name" and "@group/name" address the same server.
func (s *RegistryService) GetServer(ctx context.Context, token, serverID string) (*domain.ServerDetail, error) {
	id := domain.NormalizeServerID(serverID)
	if id == "" {
		return nil, domain.NewValidationError("server_id", "server_id is required")
	}

	logging.FromContextOr(ctx, s.logger).Debug("fetching server", slog.String("server_id", id))

	call := resilience.Call{
		Name:   OpGetServer,
		Detail: map[string]any{"server_id": id},
		Messages: map[domain.Kind]string{
			domain.KindNotFound: fmt.Sprintf("MCP server '%s' not found", id),
		},
	}

	return resilience.Invoke[*domain.ServerDetail](ctx, s.bridge, call, func(ctx context.Context) (*domain.ServerDetail, error) {
		return s.client.GetServer(ctx, token, id)
	})
}
