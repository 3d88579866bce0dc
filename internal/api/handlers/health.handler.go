package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/pkg/logger"
)

type HealthHandler struct {
	conns  config.ConnectionProvider
	logger logger.Logger
}

func NewHealthHandler(conns config.ConnectionProvider, logger logger.Logger) *HealthHandler {
	return &HealthHandler{conns: conns, logger: logger}
}

// GET /health - Quick health check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   config.ServiceName,
		"version":   config.ServiceVersion,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - ready once the current connection settings pass pre-flight
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"service":   config.ServiceName,
		"version":   config.ServiceVersion,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if err := h.conns.Connection().Validate(); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		resp["status"] = "unhealthy"
		resp["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
