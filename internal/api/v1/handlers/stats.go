package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whisperflow/internal/api/middleware"
)

// StatsHandler serves aggregate job and storage statistics.
type StatsHandler struct {
	service JobService
	logger  *zap.Logger
}

func NewStatsHandler(service JobService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{service: service, logger: logger}
}

// Get handles GET /api/v1/stats.
func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
