package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyToken is the gin context key for the caller's registry token.
const ContextKeyToken = "registry_token"

const bearerPrefix = "bearer "

// Token returns middleware that reads the caller's registry token from the
// given header and stores it in the gin context. A "Bearer " prefix is
// accepted and stripped. A missing token is not an error here: listing and
// detail work anonymously, and the operations that need a token reject the
// call themselves.
func Token(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := parseToken(c.GetHeader(header)); token != "" {
			c.Set(ContextKeyToken, token)
		}

		c.Next()
	}
}

// GetToken returns the registry token for the request, or "" if none was sent.
func GetToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}

func parseToken(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}

	return token
}
