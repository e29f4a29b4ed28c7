package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/telcoquota/internal/authorization"
	obscontext "github.com/smallbiznis/telcoquota/internal/observability/context"
)

const (
	actorTypeAPIKey = "api_key"

	contextActorKey = "actor"
)

// APIKeyRequired authenticates "Authorization: Bearer <key>" and stores the
// resolved actor on the gin and request contexts.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actor := authorization.Actor{Type: actorTypeAPIKey, ID: key.ID, Role: key.Role}
		c.Set(contextActorKey, actor)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), actor.Type, actor.ID))
		c.Next()
	}
}

// authorize checks the actor's role against the casbin policy.
func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !strings.EqualFold(actor.Role, role) {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	if !ok || actor.ID == "" {
		return authorization.Actor{}, false
	}
	return actor, true
}
