package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetStatus handles the GET /api/status request.
func (h *Handler) GetStatus(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Error("health check failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "unhealthy\nsource_code: %s", h.sourceURL)
		return
	}
	c.String(http.StatusOK, "healthy\nsource_code: %s", h.sourceURL)
}
