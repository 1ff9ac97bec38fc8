package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/dto"
	"github.com/jsamuelsen/mcphub-gateway/internal/domain"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/config"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestIDMiddleware tests RequestID and CorrelationID.
func TestIDMiddleware(t *testing.T) {
	t.Parallel()

	middlewares := []struct {
		header      string
		handler     gin.HandlerFunc
		fromContext func(context.Context) string
		logKey      string
	}{
		{HeaderRequestID, RequestID(), RequestIDFromContext, logging.KeyRequestID},
		{HeaderCorrelationID, CorrelationID(), CorrelationIDFromContext, logging.KeyCorrelationID},
	}

	tests := []struct {
		name    string
		inbound string
		adopted bool
	}{
		{name: "generates a UUID when absent", inbound: "", adopted: false},
		{name: "adopts the caller's ID", inbound: "caller-7f3a", adopted: true},
		{name: "replaces an ID with spaces", inbound: "a b", adopted: false},
		{name: "replaces an ID with control characters", inbound: "id\x1bforged", adopted: false},
		{name: "replaces an overlong ID", inbound: strings.Repeat("a", maxIDLength+1), adopted: false},
		{name: "accepts an ID at the limit", inbound: strings.Repeat("a", maxIDLength), adopted: true},
	}

	for _, mw := range middlewares {
		for _, tt := range tests {
			t.Run(mw.header+"/"+tt.name, func(t *testing.T) {
				t.Parallel()

				var (
					buf   bytes.Buffer
					ctxID string
				)

				base := slog.New(slog.NewJSONHandler(&buf, nil))

				router := gin.New()
				router.Use(func(c *gin.Context) {
					c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), base))
					c.Next()
				})
				router.Use(mw.handler)
				router.GET("/test", func(c *gin.Context) {
					ctxID = mw.fromContext(c.Request.Context())
					logging.FromContext(c.Request.Context()).Info("handled")
					c.Status(http.StatusOK)
				})

				req := httptest.NewRequest(http.MethodGet, "/test", nil)
				if tt.inbound != "" {
					req.Header.Set(mw.header, tt.inbound)
				}

				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				echoed := w.Header().Get(mw.header)
				assert.Equal(t, echoed, ctxID)

				if tt.adopted {
					assert.Equal(t, tt.inbound, echoed)
				} else {
					_, err := uuid.Parse(echoed)
					assert.NoError(t, err, "expected a generated UUID, got %q", echoed)
				}

				var entry map[string]any
				require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
				assert.Equal(t, echoed, entry[mw.logKey])
			})
		}
	}
}

func TestIDMiddleware_DistinctPerRequest(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), CorrelationID())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	seen := map[string]bool{}

	for range 5 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		requestID := w.Header().Get(HeaderRequestID)
		assert.NotEqual(t, requestID, w.Header().Get(HeaderCorrelationID))
		assert.False(t, seen[requestID], "request ID reused")

		seen[requestID] = true
	}
}

// TestLogging tests the Logging middleware.
func TestLogging(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("logs normal request", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Logging(logger))
		router.GET("/api/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("skips configured routes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		router := gin.New()
		router.Use(Logging(slog.New(slog.NewJSONHandler(&buf, nil)), "/health"))
		router.GET("/health", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, buf.String())
	})

	t.Run("falls back to the given logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		router := gin.New()
		router.Use(Logging(slog.New(slog.NewJSONHandler(&buf, nil))))
		router.GET("/api/test", func(c *gin.Context) {
			c.Status(http.StatusNotFound)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/test", nil))

		assert.Contains(t, buf.String(), `"msg":"request completed"`)
		assert.Contains(t, buf.String(), `"level":"WARN"`)
		assert.Contains(t, buf.String(), `"status":404`)
	})

	t.Run("reports the route operation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		router := gin.New()
		router.Use(Logging(slog.New(slog.NewJSONHandler(&buf, nil))))
		router.POST("/servers/list", Operation("list_servers"), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		router.GET("/plain", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/servers/list", nil))
		assert.Contains(t, buf.String(), `"operation":"list_servers"`)

		buf.Reset()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))
		assert.NotContains(t, buf.String(), `"operation"`)
	})

	t.Run("logs path with query string", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Logging(logger))
		router.GET("/api/search", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=hello&limit=10", nil)

		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("logs 500 error at error level", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Logging(logger))
		router.GET("/api/error", func(c *gin.Context) {
			c.Status(http.StatusInternalServerError)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/error", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("logs 400 error at warn level", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Logging(logger))
		router.GET("/api/bad", func(c *gin.Context) {
			c.Status(http.StatusBadRequest)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/bad", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLevelFor(t *testing.T) {
	t.Parallel()

	tests := map[int]slog.Level{
		http.StatusOK:                  slog.LevelInfo,
		http.StatusNoContent:           slog.LevelInfo,
		http.StatusNotFound:            slog.LevelWarn,
		http.StatusTooManyRequests:     slog.LevelWarn,
		http.StatusInternalServerError: slog.LevelError,
		http.StatusServiceUnavailable:  slog.LevelError,
	}

	for status, want := range tests {
		assert.Equal(t, want, levelFor(status), status)
	}
}

// TestRecovery tests the Recovery middleware.
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("normal request passes through", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("panicking handler returns internal envelope", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/test", func(c *gin.Context) {
			panic("something went wrong")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		require.Equal(t, http.StatusInternalServerError, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, domain.KindInternal, resp.ErrorKind)
		assert.Equal(t, dto.MessageInternal, resp.Message)
		assert.NotContains(t, w.Body.String(), "something went wrong")
	})

	t.Run("logs panic on request logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
			c.Next()
		})
		router.Use(Recovery())
		router.GET("/test", func(c *gin.Context) {
			panic("boom")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "panic recovered", entry["msg"])
		assert.Equal(t, "ERROR", entry["level"])
		assert.Equal(t, "boom", entry["panic"])
		assert.Equal(t, "/test", entry["path"])
		assert.NotEmpty(t, entry["stack"])
	})

	t.Run("keeps status when response already started", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "partial")
			panic("late failure")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "partial", w.Body.String())
	})
}

// TestTimeout tests the Timeout middleware.
func TestTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{name: "sets context deadline", timeout: 5 * time.Second, wantDeadline: true},
		{name: "zero disables deadline", timeout: 0, wantDeadline: false},
		{name: "negative disables deadline", timeout: -time.Second, wantDeadline: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hasDeadline bool

			router := gin.New()
			router.Use(Timeout(tt.timeout))
			router.GET("/test", func(c *gin.Context) {
				_, hasDeadline = c.Request.Context().Deadline()
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantDeadline, hasDeadline)
		})
	}

	t.Run("expired deadline reaches the handler", func(t *testing.T) {
		t.Parallel()

		var ctxErr error

		router := gin.New()
		router.Use(Timeout(time.Millisecond))
		router.GET("/test", func(c *gin.Context) {
			<-c.Request.Context().Done()
			ctxErr = c.Request.Context().Err()
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)
	})
}

// TestToken tests the Token middleware.
func TestToken(t *testing.T) {
	t.Parallel()

	const header = "X-Modelscope-Token"

	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{name: "raw token", value: "ms-abc123", expected: "ms-abc123"},
		{name: "bearer prefix stripped", value: "Bearer ms-abc123", expected: "ms-abc123"},
		{name: "lowercase bearer", value: "bearer   ms-abc123 ", expected: "ms-abc123"},
		{name: "surrounding space trimmed", value: "  ms-abc123  ", expected: "ms-abc123"},
		{name: "missing header", value: "", expected: ""},
		{name: "blank header", value: "   ", expected: ""},
		{name: "bearer only", value: "Bearer ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string

			router := gin.New()
			router.Use(Token(header))
			router.GET("/test", func(c *gin.Context) {
				got = GetToken(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.value != "" {
				req.Header.Set(header, tt.value)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestCORS tests the CORS middleware.
func TestCORS(t *testing.T) {
	t.Parallel()

	newRouter := func(cfg config.CORSConfig) *gin.Engine {
		router := gin.New()
		router.Use(CORS(cfg))
		router.POST("/api/v1/servers/list", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		router.OPTIONS("/api/v1/servers/list", func(c *gin.Context) {
			c.Status(http.StatusTeapot)
		})

		return router
	}

	wildcard := config.CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	t.Run("wildcard echoes origin", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/servers/list", nil)
		req.Header.Set("Origin", "https://app.example.com")

		w := httptest.NewRecorder()
		newRouter(wildcard).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), HeaderRequestID)
		assert.Contains(t, w.Header().Values("Vary"), "Origin")
	})

	t.Run("wildcard without origin", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		newRouter(wildcard).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/servers/list", nil))

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight answered without reaching handler", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/servers/list", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Modelscope-Token")

		w := httptest.NewRecorder()
		newRouter(wildcard).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, http.MethodPost, w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, X-Modelscope-Token", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, strconv.Itoa(int((12 * time.Hour).Seconds())), w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("plain OPTIONS is not a preflight", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		newRouter(wildcard).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/servers/list", nil))

		assert.Equal(t, http.StatusTeapot, w.Code)
	})

	t.Run("listed origin allowed", func(t *testing.T) {
		t.Parallel()

		cfg := config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/servers/list", nil)
		req.Header.Set("Origin", "https://app.example.com")

		w := httptest.NewRecorder()
		newRouter(cfg).ServeHTTP(w, req)

		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unlisted origin gets no allow header", func(t *testing.T) {
		t.Parallel()

		cfg := config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/servers/list", nil)
		req.Header.Set("Origin", "https://evil.example.com")

		w := httptest.NewRecorder()
		newRouter(cfg).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

// TestProcessTime tests the ProcessTime middleware.
func TestProcessTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler gin.HandlerFunc
		status  int
	}{
		{
			name:    "json body",
			handler: func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) },
			status:  http.StatusOK,
		},
		{
			name:    "status only",
			handler: func(c *gin.Context) { c.Status(http.StatusNoContent) },
			status:  http.StatusNoContent,
		},
		{
			name:    "aborted with error",
			handler: func(c *gin.Context) { c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error_kind": "Network"}) },
			status:  http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(ProcessTime())
			router.GET("/test", tt.handler)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.status, w.Code)

			raw := w.Header().Get(HeaderProcessTime)
			require.NotEmpty(t, raw)

			seconds, err := strconv.ParseFloat(raw, 64)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, seconds, 0.0)
		})
	}
}
