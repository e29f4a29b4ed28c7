package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/telcoquota/internal/apikey/domain"
	"go.uber.org/zap"
)

func (s *Server) ListAPIKeys(c *gin.Context) {
	items, err := s.apiKeySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// CreateAPIKey returns the raw key once; only its hash is stored.
func (s *Server) CreateAPIKey(c *gin.Context) {
	var req apikeydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.apiKeySvc.Create(c.Request.Context(), apikeydomain.CreateRequest{
		Name: strings.TrimSpace(req.Name),
		Role: strings.TrimSpace(req.Role),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actor, _ := actorFromContext(c)
	s.log.Info("api key created",
		zap.String("key_id", resp.KeyID),
		zap.String("created_by", actor.ID),
	)
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("key_id"))
	if err := s.apiKeySvc.Revoke(c.Request.Context(), keyID); err != nil {
		AbortWithError(c, err)
		return
	}

	actor, _ := actorFromContext(c)
	s.log.Info("api key revoked",
		zap.String("key_id", keyID),
		zap.String("revoked_by", actor.ID),
	)
	c.Status(http.StatusNoContent)
}
