package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whisperflow/internal/api/v1/handlers"
)

// Register mounts the v1 API routes on the given group.
func Register(v1 *gin.RouterGroup, service handlers.JobService, uploadDir string, logger *zap.Logger) {
	jobHandler := handlers.NewJobHandler(service, uploadDir, logger)
	searchHandler := handlers.NewSearchHandler(service, logger)
	statsHandler := handlers.NewStatsHandler(service, logger)

	jobs := v1.Group("/jobs")
	{
		jobs.POST("", jobHandler.Submit)
		jobs.GET("", jobHandler.List)
		jobs.GET("/:id", jobHandler.Get)
		jobs.DELETE("/:id", jobHandler.Delete)
		jobs.POST("/:id/cancel", jobHandler.Cancel)
		jobs.GET("/:id/result", jobHandler.Result)
		jobs.GET("/:id/export", jobHandler.Export)
	}

	v1.GET("/search", searchHandler.Search)
	v1.GET("/stats", statsHandler.Get)
}
