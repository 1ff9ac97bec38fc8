package domain

import (
	"strings"
)

// Query bounds for listing servers.
const (
	MinTotalCount     = 1
	MaxTotalCount     = 100
	DefaultTotalCount = 20
)

// EndpointType identifies the MCP transport an endpoint speaks.
type EndpointType string

const (
	EndpointSSE            EndpointType = "sse"
	EndpointStreamableHTTP EndpointType = "streamable_http"
)

// Valid reports whether t is a known transport.
func (t EndpointType) Valid() bool {
	return t == EndpointSSE || t == EndpointStreamableHTTP
}

// ServerSummary is the registry listing entry for an MCP server.
// This is a domain entity - it has no knowledge of the registry's wire format.
type ServerSummary struct {
	// ID is the registry identifier in the form @group/name.
	ID string

	Name        string
	Description string
}

// Endpoint is a reachable MCP server URL.
type Endpoint struct {
	Type EndpointType
	URL  string
}

// ServerDetail describes a single server and its hosted endpoints.
type ServerDetail struct {
	ServerSummary

	Endpoints []Endpoint
}

// OperationalServer is a server activated for the calling account.
type OperationalServer struct {
	ServerSummary

	Endpoints []Endpoint
}

// ServerList is a page of registry entries.
type ServerList struct {
	TotalCount int
	Servers    []ServerSummary
}

// OperationalServerList is the set of servers activated for an account.
type OperationalServerList struct {
	TotalCount int
	Servers    []OperationalServer
}

// ServerQuery narrows a registry listing.
type ServerQuery struct {
	// Filter holds registry filter criteria such as category, tag or is_hosted.
	Filter map[string]any

	TotalCount int
	Search     string
}

// Validate checks the query bounds.
func (q ServerQuery) Validate() error {
	if q.TotalCount < MinTotalCount || q.TotalCount > MaxTotalCount {
		return NewValidationError("total_count", "total_count must be between 1 and 100").
			WithDetail("value", q.TotalCount)
	}

	return nil
}

// NormalizeServerID trims id and ensures the leading @ the registry expects.
func NormalizeServerID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "@") {
		return id
	}

	return "@" + id
}
