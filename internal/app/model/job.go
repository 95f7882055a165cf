package model

import (
	"time"
)

// JobStatus is the lifecycle state of a transcription job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to the target status is a
// valid step of the job state machine.
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	}
	return false
}

// TaskType selects between plain transcription and translation to English.
type TaskType string

const (
	TaskTranscribe TaskType = "transcribe"
	TaskTranslate  TaskType = "translate"
)

// Job represents one transcription request and its tracked execution state.
// Status is mutated exclusively by the orchestrator through atomic
// transitions in the store.
type Job struct {
	ID                    int64      `json:"-" db:"id"`
	JobID                 string     `json:"job_id" db:"job_id"`
	FileID                int64      `json:"file_id" db:"file_id"`
	ModelSize             string     `json:"model_size" db:"model_size"`
	Status                JobStatus  `json:"status" db:"status"`
	TaskType              TaskType   `json:"task_type" db:"task_type"`
	Language              *string    `json:"language" db:"language"`
	DetectedLanguage      *string    `json:"detected_language" db:"detected_language"`
	LanguageProbability   *float64   `json:"language_probability" db:"language_probability"`
	Device                *string    `json:"device" db:"device"`
	ComputeType           *string    `json:"compute_type" db:"compute_type"`
	BeamSize              int        `json:"beam_size" db:"beam_size"`
	VADFilter             bool       `json:"vad_filter" db:"vad_filter"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
	StartedAt             *time.Time `json:"started_at" db:"started_at"`
	CompletedAt           *time.Time `json:"completed_at" db:"completed_at"`
	DurationSeconds       *float64   `json:"duration_seconds" db:"duration_seconds"`
	ProcessingTimeSeconds *float64   `json:"processing_time_seconds" db:"processing_time_seconds"`
	ErrorMessage          *string    `json:"error_message" db:"error_message"`
}

// JobUpdate is a partial update applied to a job row. Nil fields are left
// untouched. Status is deliberately absent: status moves only through
// TransitionJob.
type JobUpdate struct {
	DetectedLanguage      *string
	LanguageProbability   *float64
	Device                *string
	ComputeType           *string
	StartedAt             *time.Time
	CompletedAt           *time.Time
	DurationSeconds       *float64
	ProcessingTimeSeconds *float64
	ErrorMessage          *string
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	Status    JobStatus
	Language  string
	ModelSize string
	Page      int
	Limit     int
}

// Statistics aggregates job and file counters for the statistics endpoint.
type Statistics struct {
	TotalJobs            int64   `json:"total_jobs"`
	PendingJobs          int64   `json:"pending_jobs"`
	ProcessingJobs       int64   `json:"processing_jobs"`
	CompletedJobs        int64   `json:"completed_jobs"`
	FailedJobs           int64   `json:"failed_jobs"`
	CancelledJobs        int64   `json:"cancelled_jobs"`
	AvgProcessingSeconds float64 `json:"avg_processing_seconds"`
	TotalAudioSeconds    float64 `json:"total_audio_seconds"`
	TotalFiles           int64   `json:"total_files"`
	TotalStorageBytes    int64   `json:"total_storage_bytes"`
}
