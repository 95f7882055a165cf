package repository

import (
	"context"
	"time"

	"whisperflow/internal/app/model"
)

// Store is the durable record store for files, jobs, and results. All
// multi-statement operations are transactional; the full-text index over
// result text is maintained by the storage engine itself so no caller can
// desynchronize it.
type Store interface {
	// Files
	CreateFile(ctx context.Context, file *model.File) (int64, error)
	GetFileByHash(ctx context.Context, contentHash string) (*model.File, error)
	GetFileByID(ctx context.Context, id int64) (*model.File, error)

	// Jobs
	CreateJob(ctx context.Context, job *model.Job) error
	UpdateJob(ctx context.Context, jobID string, upd model.JobUpdate) (bool, error)
	TransitionJob(ctx context.Context, jobID string, to model.JobStatus, from ...model.JobStatus) (bool, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error)
	DeleteJob(ctx context.Context, jobID string) (bool, error)
	PurgeJobs(ctx context.Context, olderThan time.Duration, status model.JobStatus) (int64, error)
	ActiveJobForFile(ctx context.Context, fileID int64) (string, error)
	PendingJobIDs(ctx context.Context) ([]string, error)
	ProcessingJobIDs(ctx context.Context) ([]string, error)

	// Results
	SaveResult(ctx context.Context, result *model.Result) (int64, error)
	GetResult(ctx context.Context, jobID string) (*model.Result, error)
	Search(ctx context.Context, query, language string, limit int) ([]model.SearchHit, error)

	Statistics(ctx context.Context) (*model.Statistics, error)
	Close() error
}
