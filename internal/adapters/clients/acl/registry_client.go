package acl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/clients"
	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
	"github.com/jsamuelsen/mcphub-gateway/internal/ports"
)

// Registry endpoints, relative to the configured base URL.
const (
	serversPath            = "/openapi/v1/mcp/servers"
	operationalServersPath = "/openapi/v1/mcp/servers/operational"
)

// RegistryClientConfig contains configuration for the registry client.
type RegistryClientConfig struct {
	// Client is the HTTP client to use for requests.
	// The client's BaseURL should point at the registry host.
	Client *clients.Client

	// Logger is the structured logger.
	Logger *slog.Logger
}

// RegistryClient implements ports.RegistryClient against the ModelScope
// OpenAPI. Every method performs exactly one HTTP exchange; retries are
// the caller's business.
type RegistryClient struct {
	BaseAdapter
}

// NewRegistryClient creates a new registry adapter.
// Panics if Client is nil. Defaults logger to slog.Default() if nil.
func NewRegistryClient(cfg RegistryClientConfig) *RegistryClient {
	if cfg.Client == nil {
		panic("RegistryClient: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RegistryClient{
		BaseAdapter: NewBaseAdapter(cfg.Client, logger.With(slog.String("component", "acl.RegistryClient"))),
	}
}

// Vendor DTOs. These never leave the package.

type listServersRequest struct {
	Filter     map[string]any `json:"filter"`
	PageNumber int            `json:"page_number"`
	PageSize   int            `json:"page_size"`
	Search     string         `json:"search"`
}

type serverListData struct {
	TotalCount int         `json:"total_count"`
	Servers    []serverDTO `json:"mcp_server_list"`
}

type serverDTO struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	ChineseName        string              `json:"chinese_name"`
	Description        string              `json:"description"`
	ChineseDescription string              `json:"chinese_description"`
	OperationalURLs    []operationalURLDTO `json:"operational_urls"`
}

type operationalURLDTO struct {
	URL           string `json:"url"`
	TransportType string `json:"transport_type"`
}

// ListServers returns one page of the public registry.
// Implements ports.RegistryClient.
func (c *RegistryClient) ListServers(ctx context.Context, token string, query domain.ServerQuery) (*domain.ServerList, error) {
	filter := query.Filter
	if filter == nil {
		filter = map[string]any{}
	}

	data, err := doEnvelope[serverListData](ctx, &c.BaseAdapter, request{
		operation: "list servers",
		method:    http.MethodPut,
		path:      serversPath,
		token:     token,
		body: listServersRequest{
			Filter:     filter,
			PageNumber: 1,
			PageSize:   query.TotalCount,
			Search:     query.Search,
		},
	})
	if err != nil {
		return nil, err
	}

	servers := translateAll[domain.ServerSummary](ctx, c.logger, data.Servers, translateSummary)

	return &domain.ServerList{
		TotalCount: max(data.TotalCount, len(servers)),
		Servers:    servers,
	}, nil
}

// ListOperationalServers returns the servers hosted for the token's account.
// Implements ports.RegistryClient.
func (c *RegistryClient) ListOperationalServers(ctx context.Context, token string) (*domain.OperationalServerList, error) {
	data, err := doEnvelope[serverListData](ctx, &c.BaseAdapter, request{
		operation: "list operational servers",
		method:    http.MethodGet,
		path:      operationalServersPath,
		token:     token,
	})
	if err != nil {
		return nil, err
	}

	servers := translateAll[domain.OperationalServer](ctx, c.logger, data.Servers, translateOperational)

	return &domain.OperationalServerList{
		TotalCount: max(data.TotalCount, len(servers)),
		Servers:    servers,
	}, nil
}

// GetServer returns one server with its endpoints. serverID must already be
// in registry form (@group/name).
// Implements ports.RegistryClient.
func (c *RegistryClient) GetServer(ctx context.Context, token, serverID string) (*domain.ServerDetail, error) {
	operation := "get server"

	data, err := doEnvelope[*serverDTO](ctx, &c.BaseAdapter, request{
		operation: operation,
		method:    http.MethodGet,
		path:      serversPath + "/" + url.PathEscape(serverID),
		token:     token,
	})
	if err != nil {
		return nil, err
	}

	if data == nil {
		// The registry answers some unknown IDs with an empty payload
		// instead of a 404.
		return nil, fmt.Errorf("%s: %w", operation, &clients.StatusError{
			Service:    c.ServiceName(),
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("server %s does not exist", serverID),
		})
	}

	if data.ID == "" {
		data.ID = serverID
	}

	summary, err := translateSummary(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return &domain.ServerDetail{
		ServerSummary: summary,
		Endpoints:     translateEndpoints(data.OperationalURLs),
	}, nil
}

// Name returns the health check name for this client.
// Implements ports.HealthChecker.
func (c *RegistryClient) Name() string {
	return c.ServiceName()
}

// Check reports the registry from its circuit breaker: unhealthy while open,
// degraded while half-open trial calls decide whether it recovered. It does
// not call the registry: checking it would need a caller's token.
// Implements ports.HealthChecker.
func (c *RegistryClient) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	counts := c.Client().CircuitCounts()

	switch counts.State {
	case clients.StateOpen:
		return fmt.Errorf("%w: last failure at %s", clients.ErrCircuitOpen, counts.LastFailure.Format(time.RFC3339))
	case clients.StateHalfOpen:
		return fmt.Errorf("%w: circuit half-open, %d trial calls succeeded", ports.ErrDegraded, counts.Successes)
	default:
		return nil
	}
}

// translateAll translates items and logs the ones that had to be dropped.
func translateAll[D any](ctx context.Context, logger *slog.Logger, items []serverDTO, translate Translator[serverDTO, D]) []D {
	out, errs := TranslateSlice(items, translate)
	if len(errs) > 0 {
		logging.FromContextOr(ctx, logger).Warn("dropped unusable registry entries",
			slog.Int("dropped", len(errs)),
			slog.Any("error", errors.Join(errs...)))
	}

	return out
}

// translateSummary converts a registry entry to a domain summary. The
// English fields win; the Chinese ones fill gaps.
func translateSummary(ext *serverDTO) (domain.ServerSummary, error) {
	if err := ValidateRequired(ext.ID, "id"); err != nil {
		return domain.ServerSummary{}, err
	}

	return domain.ServerSummary{
		ID:          ext.ID,
		Name:        firstNonEmpty(ext.Name, ext.ChineseName, ext.ID),
		Description: firstNonEmpty(ext.Description, ext.ChineseDescription),
	}, nil
}

func translateOperational(ext *serverDTO) (domain.OperationalServer, error) {
	summary, err := translateSummary(ext)
	if err != nil {
		return domain.OperationalServer{}, err
	}

	return domain.OperationalServer{
		ServerSummary: summary,
		Endpoints:     translateEndpoints(ext.OperationalURLs),
	}, nil
}

// translateEndpoints keeps only endpoints with a URL and a transport the
// gateway understands.
func translateEndpoints(urls []operationalURLDTO) []domain.Endpoint {
	endpoints := make([]domain.Endpoint, 0, len(urls))

	for _, u := range urls {
		typ := normalizeTransport(u.TransportType)
		if u.URL == "" || !typ.Valid() {
			continue
		}

		endpoints = append(endpoints, domain.Endpoint{Type: typ, URL: u.URL})
	}

	return endpoints
}

// normalizeTransport maps the registry's transport labels onto the two MCP
// transports. Unknown labels come back invalid.
func normalizeTransport(label string) domain.EndpointType {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.NewReplacer("-", "_", " ", "_").Replace(label)

	switch label {
	case "sse":
		return domain.EndpointSSE
	case "streamable_http", "streamablehttp", "http":
		return domain.EndpointStreamableHTTP
	default:
		return domain.EndpointType(label)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
