package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fossbin/propease/internal/models"
)

const (
	// ActorIDHeader carries the caller id asserted by the identity collaborator.
	ActorIDHeader = "X-Actor-ID"
	// ActorRoleHeader carries the caller role; it defaults to seeker.
	ActorRoleHeader = "X-Actor-Role"

	actorKey = "actor"
)

// Actor reads the caller identity headers into the context. Identity is
// trusted as given. Mutating requests without an actor are rejected with 401.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(ActorIDHeader))
		role := models.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(ActorRoleHeader))))

		if id == "" {
			if isMutation(c.Request.Method) {
				abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", ActorIDHeader+" header is required")
				return
			}
			c.Next()
			return
		}

		switch role {
		case "":
			role = models.RoleSeeker
		case models.RoleAdmin, models.RoleOwner, models.RoleSeeker:
		default:
			abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "unknown actor role "+string(role))
			return
		}

		c.Set(actorKey, models.Actor{ID: id, Role: role})
		c.Next()
	}
}

// RequireRole rejects requests whose actor does not hold one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", ActorIDHeader+" header is required")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, "FORBIDDEN", "role "+string(actor.Role)+" may not access this resource")
	}
}

// GetActor retrieves the caller from the Gin context.
func GetActor(c *gin.Context) (models.Actor, bool) {
	if v, exists := c.Get(actorKey); exists {
		if a, ok := v.(models.Actor); ok {
			return a, true
		}
	}
	return models.Actor{}, false
}

func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
