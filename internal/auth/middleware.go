package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/response"
)

const userKey = "user"

// AuthMiddleware reads "Authorization: Bearer <token>". The websocket route
// cannot set headers from browsers, so a ?token= query parameter is accepted
// there.
func AuthMiddleware(provider Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token != "" {
			user, err := provider.CurrentUser(c.Request.Context(), token)
			if err == nil {
				c.Set(userKey, user)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("Unauthorized"))
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if c.GetHeader("Upgrade") != "" {
		return c.Query("token")
	}
	return ""
}

// CurrentUser returns the user AuthMiddleware stored on the context.
func CurrentUser(c *gin.Context) (*internal.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*internal.User)
	return user, ok
}
