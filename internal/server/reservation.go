package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reservationdomain "github.com/smallbiznis/telcoquota/internal/reservation/domain"
)

// CreateMSISDN adds a number to the available pool.
func (s *Server) CreateMSISDN(c *gin.Context) {
	var req reservationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.reservationSvc.Create(c.Request.Context(), reservationdomain.CreateRequest{
		MSISDN: strings.TrimSpace(req.MSISDN),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) ReserveMSISDN(c *gin.Context) {
	var req reservationdomain.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.reservationSvc.Reserve(c.Request.Context(), reservationdomain.ReserveRequest{
		MSISDN:     strings.TrimSpace(req.MSISDN),
		CustomerID: strings.TrimSpace(req.CustomerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) GetReservation(c *gin.Context) {
	item, err := s.reservationSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ActivateReservation(c *gin.Context) {
	item, err := s.reservationSvc.Activate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ReleaseReservation(c *gin.Context) {
	item, err := s.reservationSvc.Release(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
