package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
)

type generateInvoicesRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (s *Server) GenerateInvoices(c *gin.Context) {
	var req generateInvoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set("billing_period", billingPeriod(req.Month, req.Year))

	result, err := s.invoiceSvc.GenerateBatch(c.Request.Context(), req.Month, req.Year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListInvoiceSummaries(c *gin.Context) {
	month, err := parseOptionalMonth(c.Query("month"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	year, err := parseOptionalYear(c.Query("year"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invoiceSvc.ListSummaries(c.Request.Context(), invoicedomain.SummaryFilter{Month: month, Year: year})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetInvoice(c *gin.Context) {
	item, err := s.invoiceSvc.GetInvoice(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DownloadStatement(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	doc, err := s.invoiceSvc.RenderStatement(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", "statement-"+id+".pdf"))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) GetDashboard(c *gin.Context) {
	dash, err := s.invoiceSvc.Dashboard(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dash})
}

func (s *Server) GetRevenue(c *gin.Context) {
	year := s.clockYear()
	if raw := strings.TrimSpace(c.Query("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("year", "invalid_year", "invalid year"))
			return
		}
		year = parsed
	}

	points, err := s.invoiceSvc.RevenueByMonth(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": points, "year": year})
}
