package http

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"feedpress/internal/domain"
)

// userContextKey is where the guard attaches the resolved user for the
// duration of the request.
const userContextKey = "feedpress.user"

// requireRole builds a middleware that authenticates the bearer token,
// resolves the acting user and enforces membership in roles. An empty
// role list only requires a valid token. Every failure surfaces as a
// single 401 with the failure's message.
func (h *Handler) requireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := h.tokens.Verify(strings.TrimPrefix(authz, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		if len(roles) > 0 && !slices.Contains(roles, user.Role) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// currentUser returns the user attached by requireRole, if any.
func currentUser(c *gin.Context) (*domain.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}
