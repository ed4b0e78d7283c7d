package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/apibase/user-api/shared/models"
	"github.com/gin-gonic/gin"
)

// Authenticator resolves a presented auth token to the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

// AuthMiddleware rejects the request with 401 unless the Authorization header
// carries an auth token the authenticator accepts.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c.GetHeader("Authorization"))
		if token == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		session, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("userId", session.UserID)
		c.Set("email", session.Email)
		c.Next()
	}
}

// ExtractToken accepts "Bearer <t>", "Token <t>" and "Token token=<t>".
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}

	scheme, value := parts[0], strings.TrimSpace(parts[1])
	switch {
	case strings.EqualFold(scheme, "Bearer"):
		return value
	case strings.EqualFold(scheme, "Token"):
		value = strings.TrimPrefix(value, "token=")
		return strings.Trim(value, `"`)
	default:
		return ""
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userId")
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}
