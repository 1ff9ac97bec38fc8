package http

import (
	"cmp"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/dto"
	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/handlers"
	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/middleware"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/config"
	"github.com/jsamuelsen/mcphub-gateway/internal/platform/telemetry"
)

// healthPath is excluded from request logging.
const healthPath = "/health"

// RouterConfig is everything SetupRouter needs beyond the engine. A nil
// handler leaves its routes unregistered.
type RouterConfig struct {
	Logger *slog.Logger

	// ServiceName names the server spans and metrics.
	ServiceName string

	CORS config.CORSConfig

	// TokenHeader is the request header carrying the caller's registry token.
	TokenHeader string

	// ExposeCause includes raw upstream error text in error bodies.
	ExposeCause bool

	HealthHandler   *handlers.HealthHandler
	RegistryHandler *handlers.RegistryHandler

	// Timeout is the deadline for /api/v1 requests. Zero disables it.
	Timeout time.Duration
}

// NewRouterConfig derives the router settings from the loaded configuration.
// Raw causes are exposed only when logging at debug or below.
func NewRouterConfig(
	cfg *config.Config,
	logger *slog.Logger,
	health *handlers.HealthHandler,
	registry *handlers.RegistryHandler,
) RouterConfig {
	return RouterConfig{
		Logger:          logger,
		ServiceName:     cmp.Or(cfg.Telemetry.ServiceName, cfg.App.Name),
		CORS:            cfg.CORS,
		TokenHeader:     cfg.Token.Header,
		ExposeCause:     cfg.Log.Debug(),
		HealthHandler:   health,
		RegistryHandler: registry,
		Timeout:         cfg.Server.RequestTimeout,
	}
}

// SetupRouter installs the middleware chain and mounts the routes. Recovery
// runs outermost so a panic anywhere below still gets the error envelope.
// The IDs and the trace come before Logging so every request line carries
// them. Only /api/v1 has a request deadline; the operational routes under
// /, /health and /- answer without one.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.Middleware(cfg.ServiceName),
		telemetry.LogTraceID(),
		middleware.Logging(cfg.Logger, healthPath),
		middleware.ProcessTime(),
		middleware.CORS(cfg.CORS),
		middleware.Token(cfg.TokenHeader),
		exposeCause(cfg.ExposeCause),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(engine)
	}

	api := engine.Group("/api/v1", middleware.Timeout(cfg.Timeout))
	if cfg.RegistryHandler != nil {
		cfg.RegistryHandler.RegisterRoutes(api)
	}
}

// exposeCause marks whether error bodies may carry raw upstream causes.
func exposeCause(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(dto.ContextKeyExposeCause, enabled)
		c.Next()
	}
}
