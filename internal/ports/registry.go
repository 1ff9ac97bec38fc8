// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Keep interfaces small and focused
package ports

import (
	"context"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

// RegistryClient is the outbound contract for the MCP server registry.
//
// Each call is a single attempt. Implementations return raw failures
// (transport errors, status errors, vendor errors) and leave retrying and
// classification to the application layer. The token is the caller's
// registry credential and may be empty for public listings.
type RegistryClient interface {
	// ListServers returns one page of the public registry.
	ListServers(ctx context.Context, token string, query domain.ServerQuery) (*domain.ServerList, error)

	// ListOperationalServers returns the servers hosted for the token's account.
	ListOperationalServers(ctx context.Context, token string) (*domain.OperationalServerList, error)

	// GetServer returns one server. serverID is already in @group/name form.
	GetServer(ctx context.Context, token, serverID string) (*domain.ServerDetail, error)
}
