package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/bluemoon/internal/observability/context"
)

const (
	HeaderRole     = "X-Role"
	contextRoleKey = "role"
)

// authorize rejects the request unless the caller's role may perform action on object.
func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderRole)))
		if err := s.authzSvc.Authorize(c.Request.Context(), role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextRoleKey, role)
		c.Request = c.Request.WithContext(obscontext.WithRole(c.Request.Context(), role))
		c.Next()
	}
}
