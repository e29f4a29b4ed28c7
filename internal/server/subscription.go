package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/telcoquota/internal/subscription/domain"
)

func (s *Server) GetSubscription(c *gin.Context) {
	item, err := s.subscriptionSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) SuspendSubscription(c *gin.Context) {
	s.changeSubscriptionStatus(c, s.subscriptionSvc.Suspend)
}

func (s *Server) ReactivateSubscription(c *gin.Context) {
	s.changeSubscriptionStatus(c, s.subscriptionSvc.Reactivate)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	s.changeSubscriptionStatus(c, s.subscriptionSvc.Cancel)
}

type statusChangeFunc func(ctx context.Context, req subscriptiondomain.ChangeStatusRequest) (subscriptiondomain.Subscription, error)

// changeSubscriptionStatus accepts an optional {"reason": "..."} body.
func (s *Server) changeSubscriptionStatus(c *gin.Context, change statusChangeFunc) {
	var req subscriptiondomain.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SubscriptionID = strings.TrimSpace(c.Param("id"))
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		req.Reason = subscriptiondomain.ReasonAdmin
	}

	item, err := change(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

// SetPlanQuota creates or replaces the data allowance of a plan.
func (s *Server) SetPlanQuota(c *gin.Context) {
	var req subscriptiondomain.SetPlanQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PlanID = strings.TrimSpace(c.Param("id"))

	quota, err := s.subscriptionSvc.SetPlanQuota(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quota})
}
