// Package handlers holds the Gin handlers for the registry routes and the
// operational endpoints.
package handlers

import (
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/mcphub-gateway/internal/ports"
)

// BuildInfo is served on /-/build. Version, Commit and BuildTime come from
// ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`

	// Registry names the upstream registry this bridge fronts.
	Registry string `json:"registry,omitempty"`
}

// NewBuildInfo creates a BuildInfo for the given registry. A commit or build
// time left unset by ldflags is taken from the VCS stamp go build embeds.
func NewBuildInfo(version, commit, buildTime, registry string) BuildInfo {
	bi := BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		Registry:  registry,
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		bi.fillFromVCS(info.Settings)
	}

	return bi
}

func (bi *BuildInfo) fillFromVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if unset(bi.Commit) {
				bi.Commit = s.Value
			}
		case "vcs.time":
			if unset(bi.BuildTime) {
				bi.BuildTime = s.Value
			}
		}
	}
}

func unset(v string) bool {
	return v == "" || v == "unknown"
}

// HealthHandler serves the operational endpoints.
type HealthHandler struct {
	checks ports.HealthRegistry
	build  BuildInfo
}

// NewHealthHandler answers readiness from checks and /-/build from build.
func NewHealthHandler(checks ports.HealthRegistry, build BuildInfo) *HealthHandler {
	return &HealthHandler{checks: checks, build: build}
}

type livenessResponse struct {
	Status string `json:"status"`
}

// Liveness handles GET /-/live. It answers 200 while the process runs and
// never consults the registry.
func (h *HealthHandler) Liveness(c *gin.Context) {
	noStore(c)
	c.JSON(http.StatusOK, livenessResponse{Status: "ok"})
}

type readinessResponse struct {
	Status string                        `json:"status"`
	Checks map[string]*ports.CheckResult `json:"checks,omitempty"`
}

// Readiness handles GET /-/ready. A degraded registry, such as a half-open
// circuit, still answers 200 so trial calls keep arriving; only an
// unhealthy result answers 503.
func (h *HealthHandler) Readiness(c *gin.Context) {
	result := h.checks.CheckAll(c.Request.Context())

	status := http.StatusOK
	if !result.Status.Serving() {
		status = http.StatusServiceUnavailable
	}

	noStore(c)
	c.JSON(status, readinessResponse{
		Status: string(result.Status),
		Checks: result.Checks,
	})
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Status handles GET /health.
// It reports that the REST surface is up without touching the registry.
func (h *HealthHandler) Status(c *gin.Context) {
	noStore(c)
	c.JSON(http.StatusOK, statusResponse{
		Status:  "healthy",
		Message: "REST API is running",
	})
}

// indexResponse lists the GET routes a client can start from.
type indexResponse struct {
	Health  string `json:"health"`
	Live    string `json:"live"`
	Ready   string `json:"ready"`
	Build   string `json:"build"`
	Metrics string `json:"metrics"`
}

// Index handles GET /.
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, indexResponse{
		Health:  "/health",
		Live:    "/-/live",
		Ready:   "/-/ready",
		Build:   "/-/build",
		Metrics: "/-/metrics",
	})
}

// Build handles GET /-/build.
func (h *HealthHandler) Build(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// RegisterRoutes mounts GET / and GET /health, and under /- the liveness,
// readiness, build and Prometheus metrics routes.
func (h *HealthHandler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/", h.Index)
	engine.GET("/health", h.Status)

	internal := engine.Group("/-")
	internal.GET("/live", h.Liveness)
	internal.GET("/ready", h.Readiness)
	internal.GET("/build", h.Build)
	internal.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// noStore keeps health answers out of intermediary caches.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
}
