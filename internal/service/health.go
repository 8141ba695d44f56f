package service

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// health reports whether the database is reachable.
//
// Example REST API call:
//
//	> curl http://localhost:8080/healthz
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.DBQueryTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		s.log.Warn("database unreachable", zap.Error(err))
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}
