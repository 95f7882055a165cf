package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"whisperflow/internal/api/middleware"
	"whisperflow/internal/api/v1/dto"
	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/export"
	"whisperflow/internal/app/model"
	"whisperflow/internal/app/orchestrator"
)

// JobService is the orchestrator surface the handlers need. The indirection
// keeps handler tests free of real inference plumbing.
type JobService interface {
	Submit(ctx context.Context, path string, opts orchestrator.Options) (string, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error)
	DeleteJob(ctx context.Context, jobID string) (bool, error)
	GetResult(ctx context.Context, jobID string) (*model.Result, error)
	Search(ctx context.Context, query, language string, limit int) ([]model.SearchHit, error)
	Statistics(ctx context.Context) (*model.Statistics, error)
}

// JobHandler serves the job lifecycle endpoints.
type JobHandler struct {
	service   JobService
	uploadDir string
	logger    *zap.Logger
}

func NewJobHandler(service JobService, uploadDir string, logger *zap.Logger) *JobHandler {
	return &JobHandler{service: service, uploadDir: uploadDir, logger: logger}
}

// Submit handles POST /api/v1/jobs: multipart upload plus form options.
func (h *JobHandler) Submit(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, h.logger, apperr.Wrap(err, apperr.KindValidation, "invalid submission"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		middleware.HandleError(c, h.logger, apperr.Validation("missing file upload"))
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}
	tempPath := filepath.Join(h.uploadDir,
		fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(fileHeader.Filename)))
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}
	defer os.Remove(tempPath)

	opts := orchestrator.Options{
		ModelSize: req.ModelSize,
		TaskType:  model.TaskType(req.TaskType),
		Language:  req.Language,
		BeamSize:  req.BeamSize,
		VADFilter: req.VADFilter == nil || *req.VADFilter,
	}

	jobID, err := h.service.Submit(c.Request.Context(), tempPath, opts)
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitJobResponse{
		JobID:  jobID,
		Status: string(model.StatusPending),
	})
}

// Get handles GET /api/v1/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.JobFromModel(job))
}

// List handles GET /api/v1/jobs.
func (h *JobHandler) List(c *gin.Context) {
	var query dto.ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, h.logger, apperr.Wrap(err, apperr.KindValidation, "invalid query"))
		return
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), model.JobFilter{
		Status:    model.JobStatus(query.Status),
		Language:  query.Language,
		ModelSize: query.ModelSize,
		Page:      query.Page,
		Limit:     query.Limit,
	})
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs": lo.Map(jobs, func(job model.Job, _ int) dto.JobResponse {
			return dto.JobFromModel(&job)
		}),
		"count": len(jobs),
	})
}

// Cancel handles POST /api/v1/jobs/:id/cancel.
func (h *JobHandler) Cancel(c *gin.Context) {
	jobID := c.Param("id")
	ok, err := h.service.Cancel(c.Request.Context(), jobID)
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}
	if !ok {
		middleware.HandleError(c, h.logger,
			apperr.Newf(apperr.KindValidation, "job %s is not cancellable", jobID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "cancelled": true})
}

// Delete handles DELETE /api/v1/jobs/:id.
func (h *JobHandler) Delete(c *gin.Context) {
	jobID := c.Param("id")
	ok, err := h.service.DeleteJob(c.Request.Context(), jobID)
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}
	if !ok {
		middleware.HandleError(c, h.logger, apperr.NotFound("job", jobID))
		return
	}
	c.Status(http.StatusNoContent)
}

// Result handles GET /api/v1/jobs/:id/result.
func (h *JobHandler) Result(c *gin.Context) {
	result, err := h.service.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.ResultResponse{
		JobID:        result.JobID,
		Text:         result.Text,
		Language:     result.Language,
		SegmentCount: result.SegmentCount,
		Segments:     result.Segments,
		CreatedAt:    result.CreatedAt,
	})
}

var exportContentTypes = map[string]string{
	export.FormatSRT:  "application/x-subrip",
	export.FormatVTT:  "text/vtt",
	export.FormatTXT:  "text/plain; charset=utf-8",
	export.FormatJSON: "application/json",
	export.FormatCSV:  "text/csv",
	export.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Export handles GET /api/v1/jobs/:id/export?format=srt.
func (h *JobHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", export.FormatSRT)
	contentType, ok := exportContentTypes[format]
	if !ok {
		middleware.HandleError(c, h.logger,
			apperr.Newf(apperr.KindValidation, "unsupported export format %q", format))
		return
	}

	jobID := c.Param("id")
	result, err := h.service.GetResult(c.Request.Context(), jobID)
	if err != nil {
		middleware.HandleError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s.%s", jobID, format))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)

	if err := export.Write(c.Writer, format, result); err != nil {
		h.logger.Error("export write failed",
			zap.String("job_id", jobID),
			zap.String("format", format),
			zap.Error(err))
	}
}
