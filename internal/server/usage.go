package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/smallbiznis/telcoquota/internal/usage/domain"
	"github.com/smallbiznis/telcoquota/pkg/db/pagination"
)

// maxUsageBody caps one ingestion request.
const maxUsageBody = 8 << 20

// IngestUsage accepts a JSON array of usage deltas. An oversized body is a
// 413, anything else that is not an array a 400; per-item failures are
// reported in the 200 body.
func (s *Server) IngestUsage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUsageBody)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrPayloadTooLarge)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		AbortWithError(c, newValidationError("body", "invalid_batch", "body must be a JSON array of usage records"))
		return
	}

	var deltas []usagedomain.Delta
	if err := json.Unmarshal(trimmed, &deltas); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_batch", "body must be a JSON array of usage records"))
		return
	}
	c.Set("batch_size", len(deltas))

	result, err := s.usageSvc.IngestBatch(c.Request.Context(), deltas)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) GetSubscriptionUsage(c *gin.Context) {
	usage, err := s.usageSvc.CurrentUsage(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": usage})
}

func (s *Server) ListUsageHistory(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.usageSvc.ListHistory(c.Request.Context(), usagedomain.ListHistoryRequest{
		SubscriptionID: strings.TrimSpace(c.Param("id")),
		PageToken:      query.PageToken,
		PageSize:       query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Counters, "page_info": resp.PageInfo})
}
