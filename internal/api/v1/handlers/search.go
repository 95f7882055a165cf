package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"whisperflow/internal/api/middleware"
	"whisperflow/internal/api/v1/dto"
	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/model"
)

// SearchHandler serves full-text search over transcripts.
type SearchHandler struct {
	service JobService
	logger  *zap.Logger
}

func NewSearchHandler(service JobService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{service: service, logger: logger}
}

// Search handles GET /api/v1/search?q=...&language=...&limit=...
func (h *SearchHandler) Search(c *gin.Context) {
	var query dto.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, h.logger, apperr.Wrap(err, apperr.KindValidation, "invalid query"))
		return
	}

	hits, err := h.service.Search(c.Request.Context(), query.Q, query.Language, query.Limit)
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hits": lo.Map(hits, func(hit model.SearchHit, _ int) dto.SearchHitResponse {
			return dto.SearchHitResponse{
				JobID:    hit.JobID,
				Snippet:  hit.Snippet,
				Text:     hit.Text,
				Language: hit.Language,
			}
		}),
		"count": len(hits),
	})
}
