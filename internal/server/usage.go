package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
)

func (s *Server) ListUsageRecords(c *gin.Context) {
	month, err := parseRequiredMonth(c.Query("month"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	year, err := parseRequiredYear(c.Query("year"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.usageSvc.ListReadings(c.Request.Context(), usagedomain.ListReadingsRequest{
		Month:    month,
		Year:     year,
		Category: strings.TrimSpace(c.Query("category")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ImportUsageRecords(c *gin.Context) {
	var req usagedomain.RecordReadingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set("billing_period", billingPeriod(req.Month, req.Year))

	items, err := s.usageSvc.RecordReadings(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": items})
}
