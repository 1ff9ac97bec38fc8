package dto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestNewErrorResponse tests creating a basic error response.
func TestNewErrorResponse(t *testing.T) {
	detail := map[string]any{"reason": "missing token"}

	got := NewErrorResponse(domain.KindAuthentication, "Authentication required", detail)

	assert.Equal(t, &ErrorResponse{
		ErrorKind: domain.KindAuthentication,
		Message:   "Authentication required",
		Detail:    map[string]any{"reason": "missing token"},
	}, got)

	// The detail map is copied.
	detail["reason"] = "changed"
	assert.Equal(t, "missing token", got.Detail["reason"])
}

// TestErrorResponseJSON tests the wire shape of the error envelope.
func TestErrorResponseJSON(t *testing.T) {
	tests := []struct {
		name string
		resp *ErrorResponse
		want string
	}{
		{
			name: "with detail",
			resp: NewErrorResponse(domain.KindNotFound, "MCP server '@a/b' not found", map[string]any{"server_id": "@a/b"}),
			want: `{"error_kind":"NotFound","message":"MCP server '@a/b' not found","detail":{"server_id":"@a/b"}}`,
		},
		{
			name: "without detail",
			resp: NewErrorResponse(domain.KindInternal, MessageInternal, nil),
			want: `{"error_kind":"Internal","message":"Internal server error","detail":null}`,
		},
		{
			name: "with trace id",
			resp: NewErrorResponse(domain.KindNetwork, "Network error", nil).WithTraceID("abc"),
			want: `{"error_kind":"Network","message":"Network error","detail":null,"trace_id":"abc"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.resp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

// TestWithTraceID tests adding trace ID to error response.
func TestWithTraceID(t *testing.T) {
	resp := NewErrorResponse(domain.KindInternal, "internal error", nil)

	got := resp.WithTraceID("trace-123")

	assert.Equal(t, "trace-123", got.TraceID)
	assert.Same(t, resp, got)
}

// TestHTTPStatusFromKind tests mapping error kinds to HTTP status codes.
func TestHTTPStatusFromKind(t *testing.T) {
	tests := []struct {
		kind domain.Kind
		want int
	}{
		{domain.KindAuthentication, http.StatusUnauthorized},
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindValidation, http.StatusBadRequest},
		{domain.KindNetwork, http.StatusBadGateway},
		{domain.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromKind(tt.kind))
		})
	}
}

// TestFromDomainError tests cause stripping.
func TestFromDomainError(t *testing.T) {
	de := domain.NewError(domain.KindNetwork, "Network error", map[string]any{
		"operation": "list_servers",
		"cause":     "dial tcp 10.0.0.1:443: connection refused",
	})

	t.Run("cause hidden", func(t *testing.T) {
		got := FromDomainError(de, false)
		assert.Equal(t, map[string]any{"operation": "list_servers"}, got.Detail)
	})

	t.Run("cause exposed", func(t *testing.T) {
		got := FromDomainError(de, true)
		assert.Equal(t, "dial tcp 10.0.0.1:443: connection refused", got.Detail["cause"])
	})

	t.Run("only cause becomes null detail", func(t *testing.T) {
		got := FromDomainError(domain.NewError(domain.KindInternal, "Internal error", map[string]any{"cause": "x"}), false)
		assert.Nil(t, got.Detail)
	})

	t.Run("source error is not modified", func(t *testing.T) {
		_ = FromDomainError(de, false)
		assert.Contains(t, de.Detail(), "cause")
	})
}

// TestMapError tests mapping application errors to responses.
func TestMapError(t *testing.T) {
	unavailable := domain.Wrap(domain.KindNetwork, "Network error",
		fmt.Errorf("modelscope: %w", domain.ErrUnavailable), nil)
	attemptTimeout := domain.Wrap(domain.KindNetwork, "Network error", context.DeadlineExceeded, nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   domain.Kind
		wantNoBody bool
	}{
		{"authentication", domain.NewAuthenticationError("Authentication failed", nil), http.StatusUnauthorized, domain.KindAuthentication, false},
		{"not found", domain.NewNotFoundError("MCP server", "@a/b"), http.StatusNotFound, domain.KindNotFound, false},
		{"validation", domain.NewValidationError("total_count", "out of range"), http.StatusBadRequest, domain.KindValidation, false},
		{"network", domain.NewNetworkError("Network error", errors.New("reset")), http.StatusBadGateway, domain.KindNetwork, false},
		{"circuit open", unavailable, http.StatusServiceUnavailable, domain.KindNetwork, false},
		{"attempt timeout stays network", attemptTimeout, http.StatusBadGateway, domain.KindNetwork, false},
		{"internal", domain.NewInternalError("Internal error", nil), http.StatusInternalServerError, domain.KindInternal, false},
		{"wrapped normalized error", fmt.Errorf("handler: %w", domain.NewNotFoundError("MCP server", "x")), http.StatusNotFound, domain.KindNotFound, false},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, domain.KindInternal, false},
		{"request deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, domain.KindNetwork, false},
		{"canceled", context.Canceled, StatusClientClosedRequest, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapError(tt.err, false)

			assert.Equal(t, tt.wantStatus, status)

			if tt.wantNoBody {
				assert.Nil(t, resp)
				return
			}

			require.NotNil(t, resp)
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
		})
	}

	t.Run("unknown error message is generic", func(t *testing.T) {
		_, resp := MapError(errors.New("secret internals"), true)
		assert.Equal(t, MessageInternal, resp.Message)
		assert.Nil(t, resp.Detail)
	})
}

// TestGetTraceID tests extracting trace ID from gin context.
func TestGetTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	assert.Empty(t, GetTraceID(c), "no request")

	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetTraceID(c), "no span")
}

// TestHandleError tests writing error responses.
func TestHandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		exposeCause bool
		wantStatus  int
		wantBody    string
	}{
		{
			name:       "not found",
			err:        domain.NewNotFoundError("MCP server", "@a/b"),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error_kind":"NotFound","message":"MCP server '@a/b' not found","detail":{"id":"@a/b"}}`,
		},
		{
			name: "cause hidden outside debug",
			err: domain.NewError(domain.KindNetwork, "Network error", map[string]any{
				"operation": "get_server",
				"cause":     "connection refused",
			}),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error_kind":"Network","message":"Network error","detail":{"operation":"get_server"}}`,
		},
		{
			name: "cause shown in debug",
			err: domain.NewError(domain.KindNetwork, "Network error", map[string]any{
				"cause": "connection refused",
			}),
			exposeCause: true,
			wantStatus:  http.StatusBadGateway,
			wantBody:    `{"error_kind":"Network","message":"Network error","detail":{"cause":"connection refused"}}`,
		},
		{
			name:       "unknown error",
			err:        errors.New("unexpected error"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error_kind":"Internal","message":"Internal server error","detail":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
			c.Set(ContextKeyExposeCause, tt.exposeCause)

			HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			assert.True(t, c.IsAborted())
		})
	}

	t.Run("canceled writes no body", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

		HandleError(c, context.Canceled)

		assert.Equal(t, StatusClientClosedRequest, c.Writer.Status())
		assert.Empty(t, w.Body.String())
	})
}

// TestListServersRequest_ToQuery tests request defaults.
func TestListServersRequest_ToQuery(t *testing.T) {
	count := 50
	empty := ""

	tests := []struct {
		name string
		req  ListServersRequest
		want domain.ServerQuery
	}{
		{
			name: "defaults",
			req:  ListServersRequest{},
			want: domain.ServerQuery{TotalCount: 20, Search: "map"},
		},
		{
			name: "explicit values",
			req: ListServersRequest{
				Filter:     map[string]any{"category": "location-services"},
				TotalCount: &count,
				Search:     &empty,
			},
			want: domain.ServerQuery{
				Filter:     map[string]any{"category": "location-services"},
				TotalCount: 50,
				Search:     "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.ToQuery())
		})
	}
}

// TestGetServerRequest_ID tests the default server ID.
func TestGetServerRequest_ID(t *testing.T) {
	id := "@amap/amap-maps"

	assert.Equal(t, DefaultServerID, (&GetServerRequest{}).ID())
	assert.Equal(t, id, (&GetServerRequest{ServerID: &id}).ID())
}

// TestBindAndValidate_RegistryRequests tests binding of the registry request bodies.
func TestBindAndValidate_RegistryRequests(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		target     any
		wantErr    bool
		wantFields []string
	}{
		{name: "empty body uses defaults", body: "", target: &ListServersRequest{}},
		{name: "empty object", body: `{}`, target: &ListServersRequest{}},
		{name: "in range", body: `{"total_count":100,"search":"maps"}`, target: &ListServersRequest{}},
		{name: "total_count zero", body: `{"total_count":0}`, target: &ListServersRequest{}, wantErr: true, wantFields: []string{"total_count"}},
		{name: "total_count too large", body: `{"total_count":101}`, target: &ListServersRequest{}, wantErr: true, wantFields: []string{"total_count"}},
		{name: "total_count wrong type", body: `{"total_count":"ten"}`, target: &ListServersRequest{}, wantErr: true, wantFields: []string{"total_count"}},
		{name: "blank server id", body: `{"server_id":"  "}`, target: &GetServerRequest{}, wantErr: true, wantFields: []string{"server_id"}},
		{name: "server id without group", body: `{"server_id":"fetch"}`, target: &GetServerRequest{}, wantErr: true, wantFields: []string{"server_id"}},
		{name: "bare server id", body: `{"server_id":"modelcontextprotocol/fetch"}`, target: &GetServerRequest{}},
		{name: "malformed json", body: `{"server_id":`, target: &GetServerRequest{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			err := BindAndValidate(c, tt.target)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)

			de := ToDomainError(err)
			assert.Equal(t, domain.KindValidation, de.Kind())

			if len(tt.wantFields) == 0 {
				assert.Equal(t, "Malformed request body", de.Message())
				return
			}

			fields, ok := de.Detail()["fields"].(map[string]string)
			require.True(t, ok)

			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

// TestResponsesFromDomain tests response conversion.
func TestResponsesFromDomain(t *testing.T) {
	summary := domain.ServerSummary{ID: "@amap/amap-maps", Name: "AMap", Description: "Maps"}
	endpoints := []domain.Endpoint{{Type: domain.EndpointSSE, URL: "https://mcp.example/sse"}}

	t.Run("list", func(t *testing.T) {
		got := NewListServersResponse(&domain.ServerList{TotalCount: 7, Servers: []domain.ServerSummary{summary}})

		body, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, `{"total_count":7,"servers":[{"name":"AMap","id":"@amap/amap-maps","description":"Maps"}]}`, string(body))
	})

	t.Run("empty list renders an empty array", func(t *testing.T) {
		body, err := json.Marshal(NewListServersResponse(&domain.ServerList{}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"total_count":0,"servers":[]}`, string(body))
	})

	t.Run("operational", func(t *testing.T) {
		got := NewListOperationalServersResponse(&domain.OperationalServerList{
			TotalCount: 1,
			Servers:    []domain.OperationalServer{{ServerSummary: summary, Endpoints: endpoints}},
		})

		body, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, `{"total_count":1,"servers":[{"name":"AMap","id":"@amap/amap-maps","description":"Maps",
			"mcp_servers":[{"type":"sse","url":"https://mcp.example/sse"}]}]}`, string(body))
	})

	t.Run("detail", func(t *testing.T) {
		got := NewGetServerResponse(&domain.ServerDetail{ServerSummary: summary, Endpoints: endpoints})

		body, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"AMap","id":"@amap/amap-maps","description":"Maps",
			"servers":[{"type":"sse","url":"https://mcp.example/sse"}]}`, string(body))
	})
}

func TestValidator_IsShared(t *testing.T) {
	assert.Same(t, Validator(), Validator())
}

func TestIsServerID(t *testing.T) {
	type request struct {
		ID string `json:"server_id" validate:"serverid"`
	}

	tests := []struct {
		id    string
		valid bool
	}{
		{"@amap/amap-maps", true},
		{"amap/amap-maps", true},
		{"  @modelcontextprotocol/fetch  ", true},
		{"@executeautomation/mcp-playwright", true},
		{"", false},
		{"   ", false},
		{"fetch", false},
		{"@/fetch", false},
		{"@amap/", false},
		{"@a/b/c", false},
		{"@amap/amap maps", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := Validator().Struct(request{ID: tt.id})
			if tt.valid {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t,
				map[string]string{"server_id": "must be an MCP server ID such as @group/name"},
				ValidationErrors(err))
		})
	}
}

func TestBindAndValidate_ErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		target  any
		wantErr error
	}{
		{name: "decode failure", body: `{"total_count":`, target: &ListServersRequest{}, wantErr: ErrBinding},
		{name: "tag failure", body: `{"total_count":0}`, target: &ListServersRequest{}, wantErr: ErrValidation},
		{name: "bad server id", body: `{"server_id":"fetch"}`, target: &GetServerRequest{}, wantErr: ErrValidation},
		{name: "good server id", body: `{"server_id":"amap/amap-maps"}`, target: &GetServerRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			err := BindAndValidate(c, tt.target)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestToDomainError(t *testing.T) {
	t.Run("field failures", func(t *testing.T) {
		err := fmt.Errorf("%w: %w", ErrValidation, Validator().Struct(&ListServersRequest{TotalCount: ptr(101)}))

		de := ToDomainError(err)
		assert.Equal(t, domain.KindValidation, de.Kind())
		assert.Equal(t, "Request validation failed", de.Message())
		assert.Equal(t,
			map[string]string{"total_count": "must be less than or equal to 100"},
			de.Detail()["fields"])
	})

	t.Run("type mismatch names the field", func(t *testing.T) {
		var req ListServersRequest
		decodeErr := json.Unmarshal([]byte(`{"total_count":"ten"}`), &req)

		de := ToDomainError(fmt.Errorf("%w: %w", ErrBinding, decodeErr))
		assert.Equal(t,
			map[string]string{"total_count": "must be of type int"},
			de.Detail()["fields"])
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		orig := domain.NewValidationError("server_id", "server_id is required")
		assert.Same(t, orig, ToDomainError(fmt.Errorf("wrapped: %w", orig)))
	})

	t.Run("syntax errors keep the decoder reason", func(t *testing.T) {
		de := ToDomainError(fmt.Errorf("%w: %w", ErrBinding, errors.New("unexpected EOF")))
		assert.Equal(t, "Malformed request body", de.Message())
		assert.Equal(t, "unexpected EOF", de.Detail()["reason"])
	})
}

func TestValidationMessage(t *testing.T) {
	type sample struct {
		Name  string   `json:"name"  validate:"required,min=3"`
		Tags  []string `json:"tags"  validate:"max=2"`
		Mode  string   `json:"mode"  validate:"omitempty,oneof=sse streamable_http"`
		Other string   `json:"other" validate:"omitempty,hexadecimal"`
	}

	tests := []struct {
		name  string
		input sample
		field string
		want  string
	}{
		{"required", sample{}, "name", "this field is required"},
		{"string min", sample{Name: "ab"}, "name", "must be at least 3 characters"},
		{"slice max", sample{Name: "abc", Tags: []string{"a", "b", "c"}}, "tags", "must be at most 2"},
		{"oneof", sample{Name: "abc", Mode: "websocket"}, "mode", "must be one of: sse streamable_http"},
		{"fallback", sample{Name: "abc", Other: "xyz"}, "other", "failed validation: hexadecimal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validator().Struct(tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.want, ValidationErrors(err)[tt.field])
		})
	}
}

func TestValidationErrors_NotATagFailure(t *testing.T) {
	assert.Empty(t, ValidationErrors(errors.New("boom")))
	assert.Empty(t, ValidationErrors(nil))
}

func ptr[T any](v T) *T { return &v }
