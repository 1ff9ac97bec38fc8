package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	tests := []struct {
		name  string
		store func(context.Context, string) context.Context
		load  func(context.Context) string
	}{
		{name: "request id", store: ContextWithRequestID, load: RequestIDFromContext},
		{name: "correlation id", store: ContextWithCorrelationID, load: CorrelationIDFromContext},
		{name: "operation", store: ContextWithOperation, load: OperationFromContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, tt.load(context.Background()))

			ctx := tt.store(context.Background(), "value-1")
			assert.Equal(t, "value-1", tt.load(ctx))
		})
	}
}

func TestContextValues_Independent(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	ctx = ContextWithOperation(ctx, "get_server")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
	assert.Equal(t, "get_server", OperationFromContext(ctx))
}

func TestOperation(t *testing.T) {
	router := gin.New()

	var got string

	router.POST("/servers/detail", Operation("get_server"), func(c *gin.Context) {
		got = OperationFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	router.GET("/health", func(c *gin.Context) {
		got = OperationFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/servers/detail", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "get_server", got)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, got)
}
