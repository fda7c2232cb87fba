package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modoudou1/vaxcare-api/internal/authz"
	"github.com/modoudou1/vaxcare-api/internal/middleware"
	"github.com/modoudou1/vaxcare-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) (authz.Actor, bool) {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return authz.Actor{}, false
	}
	actor, ok := value.(authz.Actor)
	return actor, ok
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return value
}
