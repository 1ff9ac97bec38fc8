package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/mcphub-gateway/internal/platform/config"
)

// CORS response headers.
const (
	allowOriginHeader      = "Access-Control-Allow-Origin"
	allowMethodsHeader     = "Access-Control-Allow-Methods"
	allowHeadersHeader     = "Access-Control-Allow-Headers"
	allowCredentialsHeader = "Access-Control-Allow-Credentials"
	exposeHeadersHeader    = "Access-Control-Expose-Headers"
	maxAgeHeader           = "Access-Control-Max-Age"
	requestMethodHeader    = "Access-Control-Request-Method"
	requestHeadersHeader   = "Access-Control-Request-Headers"

	wildcardOrigin = "*"
)

// exposedHeaders are response headers browser clients may read.
var exposedHeaders = strings.Join([]string{HeaderRequestID, HeaderCorrelationID, HeaderProcessTime}, ", ")

// CORS returns middleware that sets cross-origin headers. All methods and
// request headers are allowed. A wildcard origin echoes the caller's Origin
// so that credentials stay usable. Preflight requests are answered with 204
// and never reach the handlers.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowAll := slices.Contains(cfg.AllowedOrigins, wildcardOrigin)

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[origin] = struct{}{}
	}

	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()

		switch {
		case allowAll && origin == "":
			h.Set(allowOriginHeader, wildcardOrigin)
		case allowAll:
			h.Set(allowOriginHeader, origin)
			h.Add("Vary", "Origin")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				h.Set(allowOriginHeader, origin)
				h.Add("Vary", "Origin")
			}
		}

		if cfg.AllowCredentials {
			h.Set(allowCredentialsHeader, "true")
		}

		h.Set(exposeHeadersHeader, exposedHeaders)

		if c.Request.Method != http.MethodOptions || c.GetHeader(requestMethodHeader) == "" {
			c.Next()
			return
		}

		h.Set(allowMethodsHeader, c.GetHeader(requestMethodHeader))

		if requested := c.GetHeader(requestHeadersHeader); requested != "" {
			h.Set(allowHeadersHeader, requested)
		}

		if cfg.MaxAge > 0 {
			h.Set(maxAgeHeader, maxAge)
		}

		c.AbortWithStatus(http.StatusNoContent)
	}
}
