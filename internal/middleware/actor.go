package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/models"
	appErrors "github.com/modoudou1/vaxcare-api/pkg/errors"
	"github.com/modoudou1/vaxcare-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved actor.
const ContextActorKey = "currentActor"

// Actor rebuilds the authorization actor from the JWT claims set by the JWT
// middleware. Claims carry the canonical role, so no lookup happens here.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Set(ContextActorKey, authz.ActorFromClaims(claims))
		c.Next()
	}
}

// RequireRanked blocks end-consumer accounts from management routes. The
// fine-grained decision still happens in the services; this is only the
// cheap outer gate.
func RequireRanked() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorValue, exists := c.Get(ContextActorKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		actor := actorValue.(authz.Actor)
		if _, ranked := actor.Rank(); !ranked {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}
