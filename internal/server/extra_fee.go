package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
)

func (s *Server) SearchExtraFees(c *gin.Context) {
	items, err := s.extraFeeSvc.Search(c.Request.Context(), strings.TrimSpace(c.Query("keyword")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateExtraFee(c *gin.Context) {
	var req extrafeedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fee, err := s.extraFeeSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": fee})
}

func (s *Server) GetExtraFee(c *gin.Context) {
	fee, err := s.extraFeeSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": fee})
}
