package dto

import (
	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

// Request defaults applied when a field is absent from the body.
const (
	DefaultSearch   = "map"
	DefaultServerID = "@executeautomation/mcp-playwright"
)

// ListServersRequest is the body of POST /api/v1/servers/list.
// Pointer fields distinguish "absent" from an explicit zero value.
type ListServersRequest struct {
	// Filter holds registry criteria such as category, tag or is_hosted.
	Filter map[string]any `json:"filter"`

	TotalCount *int    `json:"total_count" validate:"omitempty,gte=1,lte=100"`
	Search     *string `json:"search"`
}

// ToQuery converts the request to a domain query, applying defaults.
func (r *ListServersRequest) ToQuery() domain.ServerQuery {
	query := domain.ServerQuery{
		Filter:     r.Filter,
		TotalCount: domain.DefaultTotalCount,
		Search:     DefaultSearch,
	}

	if r.TotalCount != nil {
		query.TotalCount = *r.TotalCount
	}

	if r.Search != nil {
		query.Search = *r.Search
	}

	return query
}

// GetServerRequest is the body of POST /api/v1/servers/detail.
type GetServerRequest struct {
	// ServerID is @group/name or group/name.
	ServerID *string `json:"server_id" validate:"omitempty,serverid"`
}

// ID returns the requested server ID or the default one.
func (r *GetServerRequest) ID() string {
	if r.ServerID == nil {
		return DefaultServerID
	}

	return *r.ServerID
}

// ServerInfo is a registry entry.
type ServerInfo struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Description string `json:"description"`
}

// ServerEndpoint is a hosted MCP endpoint.
type ServerEndpoint struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ListServersResponse is the response of POST /api/v1/servers/list.
type ListServersResponse struct {
	TotalCount int          `json:"total_count"`
	Servers    []ServerInfo `json:"servers"`
}

// OperationalServer is a server activated for the calling account.
type OperationalServer struct {
	ServerInfo

	MCPServers []ServerEndpoint `json:"mcp_servers"`
}

// ListOperationalServersResponse is the response of POST /api/v1/servers/operational.
type ListOperationalServersResponse struct {
	TotalCount int                 `json:"total_count"`
	Servers    []OperationalServer `json:"servers"`
}

// GetServerResponse is the response of POST /api/v1/servers/detail.
type GetServerResponse struct {
	ServerInfo

	Servers []ServerEndpoint `json:"servers"`
}

// NewListServersResponse converts a domain list.
func NewListServersResponse(list *domain.ServerList) *ListServersResponse {
	servers := make([]ServerInfo, 0, len(list.Servers))
	for _, s := range list.Servers {
		servers = append(servers, toServerInfo(s))
	}

	return &ListServersResponse{
		TotalCount: list.TotalCount,
		Servers:    servers,
	}
}

// NewListOperationalServersResponse converts a domain operational list.
func NewListOperationalServersResponse(list *domain.OperationalServerList) *ListOperationalServersResponse {
	servers := make([]OperationalServer, 0, len(list.Servers))
	for _, s := range list.Servers {
		servers = append(servers, OperationalServer{
			ServerInfo: toServerInfo(s.ServerSummary),
			MCPServers: toEndpoints(s.Endpoints),
		})
	}

	return &ListOperationalServersResponse{
		TotalCount: list.TotalCount,
		Servers:    servers,
	}
}

// NewGetServerResponse converts a domain server detail.
func NewGetServerResponse(detail *domain.ServerDetail) *GetServerResponse {
	return &GetServerResponse{
		ServerInfo: toServerInfo(detail.ServerSummary),
		Servers:    toEndpoints(detail.Endpoints),
	}
}

func toServerInfo(s domain.ServerSummary) ServerInfo {
	return ServerInfo{
		Name:        s.Name,
		ID:          s.ID,
		Description: s.Description,
	}
}

func toEndpoints(endpoints []domain.Endpoint) []ServerEndpoint {
	out := make([]ServerEndpoint, 0, len(endpoints))
	for _, e := range endpoints {
		out = append(out, ServerEndpoint{Type: string(e.Type), URL: e.URL})
	}

	return out
}
