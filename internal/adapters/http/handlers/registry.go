package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/dto"
	"github.com/jsamuelsen/mcphub-gateway/internal/adapters/http/middleware"
	"github.com/jsamuelsen/mcphub-gateway/internal/app"
)

// RegistryHandler handles MCP registry HTTP endpoints.
type RegistryHandler struct {
	service *app.RegistryService
}

// NewRegistryHandler creates a new registry handler.
func NewRegistryHandler(service *app.RegistryService) *RegistryHandler {
	return &RegistryHandler{
		service: service,
	}
}

// ListServers handles POST /api/v1/servers/list
// Returns one page of the public MCP server registry.
//
// @Summary List MCP servers
// @Tags servers
// @Accept json
// @Produce json
// @Param request body dto.ListServersRequest false "Filter, page size and search term"
// @Success 200 {object} dto.ListServersResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/servers/list [post]
func (h *RegistryHandler) ListServers(c *gin.Context) {
	var req dto.ListServersRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, dto.ToDomainError(err))
		return
	}

	list, err := h.service.ListServers(c.Request.Context(), middleware.GetToken(c), req.ToQuery())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListServersResponse(list))
}

// ListOperationalServers handles POST /api/v1/servers/operational
// Returns the servers hosted for the account that owns the token.
//
// @Summary List operational MCP servers
// @Tags servers
// @Produce json
// @Param X-Modelscope-Token header string true "Registry token"
// @Success 200 {object} dto.ListOperationalServersResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/servers/operational [post]
func (h *RegistryHandler) ListOperationalServers(c *gin.Context) {
	list, err := h.service.ListOperationalServers(c.Request.Context(), middleware.GetToken(c))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListOperationalServersResponse(list))
}

// GetServer handles POST /api/v1/servers/detail
// Returns a single server with its hosted endpoints.
//
// @Summary Get MCP server detail
// @Tags servers
// @Accept json
// @Produce json
// @Param request body dto.GetServerRequest false "Server ID"
// @Success 200 {object} dto.GetServerResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/servers/detail [post]
func (h *RegistryHandler) GetServer(c *gin.Context) {
	var req dto.GetServerRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleError(c, dto.ToDomainError(err))
		return
	}

	detail, err := h.service.GetServer(c.Request.Context(), middleware.GetToken(c), req.ID())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewGetServerResponse(detail))
}

// RegisterRoutes registers the registry routes on the given group.
//   - POST /servers/list
//   - POST /servers/operational
//   - POST /servers/detail
func (h *RegistryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	servers := rg.Group("/servers")
	servers.POST("/list", middleware.Operation(app.OpListServers), h.ListServers)
	servers.POST("/operational", middleware.Operation(app.OpListOperationalServers), h.ListOperationalServers)
	servers.POST("/detail", middleware.Operation(app.OpGetServer), h.GetServer)
}
