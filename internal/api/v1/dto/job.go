package dto

import (
	"time"

	"whisperflow/internal/app/model"
)

// SubmitJobRequest carries the form fields of a multipart submission. The
// audio itself arrives as the "file" part.
type SubmitJobRequest struct {
	ModelSize string  `form:"model_size" binding:"omitempty,oneof=tiny base small medium large large-v2 large-v3"`
	TaskType  string  `form:"task_type" binding:"omitempty,oneof=transcribe translate"`
	Language  *string `form:"language" binding:"omitempty,langcode"`
	BeamSize  int     `form:"beam_size" binding:"omitempty,min=1,max=10"`
	VADFilter *bool   `form:"vad_filter"`
}

// SubmitJobResponse acknowledges an accepted submission.
type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ListJobsQuery filters and paginates GET /jobs.
type ListJobsQuery struct {
	Status    string `form:"status" binding:"omitempty,oneof=pending processing completed failed cancelled"`
	Language  string `form:"language" binding:"omitempty,min=2,max=8"`
	ModelSize string `form:"model_size" binding:"omitempty,oneof=tiny base small medium large large-v2 large-v3"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// SearchQuery drives GET /search.
type SearchQuery struct {
	Q        string `form:"q" binding:"required,min=1"`
	Language string `form:"language" binding:"omitempty,min=2,max=8"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// JobResponse is the public view of a job.
type JobResponse struct {
	JobID                 string     `json:"job_id"`
	Status                string     `json:"status"`
	ModelSize             string     `json:"model_size"`
	TaskType              string     `json:"task_type"`
	Language              *string    `json:"language,omitempty"`
	DetectedLanguage      *string    `json:"detected_language,omitempty"`
	LanguageProbability   *float64   `json:"language_probability,omitempty"`
	Device                *string    `json:"device,omitempty"`
	ComputeType           *string    `json:"compute_type,omitempty"`
	BeamSize              int        `json:"beam_size"`
	VADFilter             bool       `json:"vad_filter"`
	CreatedAt             time.Time  `json:"created_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	DurationSeconds       *float64   `json:"duration_seconds,omitempty"`
	ProcessingTimeSeconds *float64   `json:"processing_time_seconds,omitempty"`
	ErrorMessage          *string    `json:"error_message,omitempty"`
}

// JobFromModel converts a stored job to its public view.
func JobFromModel(job *model.Job) JobResponse {
	return JobResponse{
		JobID:                 job.JobID,
		Status:                string(job.Status),
		ModelSize:             job.ModelSize,
		TaskType:              string(job.TaskType),
		Language:              job.Language,
		DetectedLanguage:      job.DetectedLanguage,
		LanguageProbability:   job.LanguageProbability,
		Device:                job.Device,
		ComputeType:           job.ComputeType,
		BeamSize:              job.BeamSize,
		VADFilter:             job.VADFilter,
		CreatedAt:             job.CreatedAt,
		StartedAt:             job.StartedAt,
		CompletedAt:           job.CompletedAt,
		DurationSeconds:       job.DurationSeconds,
		ProcessingTimeSeconds: job.ProcessingTimeSeconds,
		ErrorMessage:          job.ErrorMessage,
	}
}

// ResultResponse is the public view of a transcript.
type ResultResponse struct {
	JobID        string          `json:"job_id"`
	Text         string          `json:"text"`
	Language     string          `json:"language"`
	SegmentCount int             `json:"segment_count"`
	Segments     []model.Segment `json:"segments"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SearchHitResponse is one search match.
type SearchHitResponse struct {
	JobID    string `json:"job_id"`
	Snippet  string `json:"snippet"`
	Text     string `json:"text"`
	Language string `json:"language"`
}
