package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyGate checks header against key before any handler runs. An empty key
// disables the gate. The value may be the raw key or "Bearer <key>".
func APIKeyGate(key, header string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		value := strings.TrimSpace(c.GetHeader(header))
		if token := ExtractToken(value); token != "" {
			value = token
		}

		if value == "" || subtle.ConstantTimeCompare([]byte(value), []byte(key)) != 1 {
			RespondWithError(c, http.StatusUnauthorized, "Unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}
