package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"health-assistant/internal/logging"
)

// GinMiddleware resolves the caller from the Authorization header. With a
// nil verifier every caller is anonymous. When required is set, requests
// without a valid token are rejected with 401.
func GinMiddleware(v *Verifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok || v == nil {
			if required {
				abort(c, ErrMissingToken)
				return
			}
			c.Next()
			return
		}

		id, err := v.Verify(token)
		if err != nil {
			abort(c, err)
			return
		}
		if id.UserID != "" {
			c.Set(logging.FieldUserID, id.UserID)
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireUser rejects anonymous callers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !FromContext(c.Request.Context()).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please sign in to continue."})
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	msg := "Invalid or missing access token."
	if errors.Is(err, ErrExpiredToken) {
		msg = "Authentication error: Your session may have expired. Please sign out and sign in again."
	}
	logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("request rejected by auth")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
