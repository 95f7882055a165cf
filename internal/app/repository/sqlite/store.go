package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/model"
)

// Store is the SQLite-backed implementation of repository.Store. One writer
// at a time is serialized by the engine; concurrent readers proceed against
// the WAL without blocking it.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore wraps an opened database. The caller owns the connection
// lifecycle through Close.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for test seeding.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateFile inserts a file record and returns its row id.
func (s *Store) CreateFile(ctx context.Context, file *model.File) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO files (content_hash, original_name, path, size_bytes, format, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		file.ContentHash, file.OriginalName, file.Path, file.SizeBytes, file.Format, time.Now().UTC(),
	)
	if err != nil {
		if isConstraintErr(err) {
			return 0, apperr.Wrap(err, apperr.KindConstraint, "file already exists")
		}
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to insert file")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to read file id")
	}

	s.logger.Info("file added",
		zap.Int64("file_id", id),
		zap.String("hash", shortHash(file.ContentHash)),
		zap.Int64("size_bytes", file.SizeBytes))
	return id, nil
}

// GetFileByHash returns the file with the given content hash, or a NotFound
// error.
func (s *Store) GetFileByHash(ctx context.Context, contentHash string) (*model.File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content_hash, original_name, path, size_bytes, format, uploaded_at
		FROM files WHERE content_hash = ?`, contentHash)

	var f model.File
	err := row.Scan(&f.ID, &f.ContentHash, &f.OriginalName, &f.Path, &f.SizeBytes, &f.Format, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("file", shortHash(contentHash))
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to query file")
	}
	return &f, nil
}

// GetFileByID returns the file with the given row id, or a NotFound error.
func (s *Store) GetFileByID(ctx context.Context, id int64) (*model.File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content_hash, original_name, path, size_bytes, format, uploaded_at
		FROM files WHERE id = ?`, id)

	var f model.File
	err := row.Scan(&f.ID, &f.ContentHash, &f.OriginalName, &f.Path, &f.SizeBytes, &f.Format, &f.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("file", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to query file")
	}
	return &f, nil
}

// CreateJob inserts a job in pending state. An unknown file reference is a
// constraint error.
func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.Status = model.StatusPending

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			job_id, file_id, model_size, status, task_type, language,
			beam_size, vad_filter, duration_seconds, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.JobID, job.FileID, job.ModelSize, job.Status, job.TaskType, job.Language,
		job.BeamSize, job.VADFilter, job.DurationSeconds, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		if isConstraintErr(err) {
			return apperr.Wrap(err, apperr.KindConstraint, fmt.Sprintf("job %s references unknown file %d", job.JobID, job.FileID))
		}
		return apperr.Wrap(err, apperr.KindPersistence, "failed to insert job")
	}

	s.logger.Info("job created",
		zap.String("job_id", job.JobID),
		zap.Int64("file_id", job.FileID),
		zap.String("model_size", job.ModelSize))
	return nil
}

// UpdateJob applies a partial update. Returns false for an unknown job id.
// Each field is written by the single UPDATE statement, so concurrent
// callers cannot lose whole-row writes.
func (s *Store) UpdateJob(ctx context.Context, jobID string, upd model.JobUpdate) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	appendSet := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.DetectedLanguage != nil {
		appendSet("detected_language", *upd.DetectedLanguage)
	}
	if upd.LanguageProbability != nil {
		appendSet("language_probability", *upd.LanguageProbability)
	}
	if upd.Device != nil {
		appendSet("device", *upd.Device)
	}
	if upd.ComputeType != nil {
		appendSet("compute_type", *upd.ComputeType)
	}
	if upd.StartedAt != nil {
		appendSet("started_at", upd.StartedAt.UTC())
	}
	if upd.CompletedAt != nil {
		appendSet("completed_at", upd.CompletedAt.UTC())
	}
	if upd.DurationSeconds != nil {
		appendSet("duration_seconds", *upd.DurationSeconds)
	}
	if upd.ProcessingTimeSeconds != nil {
		appendSet("processing_time_seconds", *upd.ProcessingTimeSeconds)
	}
	if upd.ErrorMessage != nil {
		appendSet("error_message", *upd.ErrorMessage)
	}

	query := fmt.Sprintf("UPDATE jobs SET %s WHERE job_id = ?", strings.Join(sets, ", "))
	args = append(args, jobID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindPersistence, "failed to update job")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindPersistence, "failed to read update result")
	}
	return n > 0, nil
}

// TransitionJob moves a job's status in a single atomic UPDATE guarded by
// the allowed source states. Returns false when the job is missing or not in
// one of the from states, which keeps terminal states terminal without a
// read-modify-write race.
func (s *Store) TransitionJob(ctx context.Context, jobID string, to model.JobStatus, from ...model.JobStatus) (bool, error) {
	if len(from) == 0 {
		return false, apperr.New(apperr.KindValidation, "transition requires at least one source status")
	}

	placeholders := strings.Repeat("?, ", len(from)-1) + "?"
	args := []interface{}{to, time.Now().UTC(), jobID}
	for _, f := range from {
		args = append(args, f)
	}

	query := fmt.Sprintf(
		"UPDATE jobs SET status = ?, updated_at = ? WHERE job_id = ? AND status IN (%s)",
		placeholders,
	)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindPersistence, "failed to transition job")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindPersistence, "failed to read transition result")
	}

	if n > 0 {
		s.logger.Info("job transitioned",
			zap.String("job_id", jobID),
			zap.String("to", string(to)))
	}
	return n > 0, nil
}

const jobColumns = `
	id, job_id, file_id, model_size, status, task_type, language,
	detected_language, language_probability, device, compute_type,
	beam_size, vad_filter, created_at, updated_at, started_at, completed_at,
	duration_seconds, processing_time_seconds, error_message`

// GetJob returns the job with the given id, or a NotFound error.
func (s *Store) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM jobs WHERE job_id = ?", jobColumns), jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("job", jobID)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to query job")
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error) {
	conds := []string{"1 = 1"}
	args := []interface{}{}

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Language != "" {
		conds = append(conds, "(language = ? OR detected_language = ?)")
		args = append(args, filter.Language, filter.Language)
	}
	if filter.ModelSize != "" {
		conds = append(conds, "model_size = ?")
		args = append(args, filter.ModelSize)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	query := fmt.Sprintf(
		"SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		jobColumns, strings.Join(conds, " AND "),
	)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to list jobs")
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job. Its results are removed by the FK cascade and
// deindexed by the delete trigger within the same transaction.
func (s *Store) DeleteJob(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE job_id = ?", jobID)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindPersistence, "failed to delete job")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindPersistence, "failed to read delete result")
	}

	if n > 0 {
		s.logger.Info("job deleted", zap.String("job_id", jobID))
	}
	return n > 0, nil
}

// PurgeJobs deletes terminal jobs older than the given age.
func (s *Store) PurgeJobs(ctx context.Context, olderThan time.Duration, status model.JobStatus) (int64, error) {
	if !status.Terminal() {
		return 0, apperr.Newf(apperr.KindValidation, "cannot purge non-terminal status %q", status)
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM jobs WHERE status = ? AND created_at < ?", status, cutoff)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to purge jobs")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to read purge result")
	}

	s.logger.Info("jobs purged",
		zap.Int64("count", n),
		zap.String("status", string(status)))
	return n, nil
}

// ActiveJobForFile returns the id of a pending or processing job for the
// file, or "" when none exists.
func (s *Store) ActiveJobForFile(ctx context.Context, fileID int64) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id FROM jobs
		WHERE file_id = ? AND status IN ('pending', 'processing')
		ORDER BY created_at LIMIT 1`, fileID)

	var jobID string
	err := row.Scan(&jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(err, apperr.KindPersistence, "failed to query active job")
	}
	return jobID, nil
}

// PendingJobIDs returns pending jobs in submission order, for startup
// recovery of the queue.
func (s *Store) PendingJobIDs(ctx context.Context) ([]string, error) {
	return s.jobIDsByStatus(ctx, model.StatusPending)
}

// ProcessingJobIDs returns jobs left in processing state, which after a
// restart means an interrupted run.
func (s *Store) ProcessingJobIDs(ctx context.Context) ([]string, error) {
	return s.jobIDsByStatus(ctx, model.StatusProcessing)
}

func (s *Store) jobIDsByStatus(ctx context.Context, status model.JobStatus) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT job_id FROM jobs WHERE status = ? ORDER BY created_at, id", status)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to query jobs by status")
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to scan job id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveResult persists a transcript. The previous result for the job, if
// any, is replaced in the same transaction, so exactly one current result
// exists per job and the FTS triggers keep the index in step on both the
// delete and the insert.
func (s *Store) SaveResult(ctx context.Context, result *model.Result) (int64, error) {
	segmentsJSON, err := json.Marshal(result.Segments)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to encode segments")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM results WHERE job_id = ?", result.JobID); err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to replace previous result")
	}

	result.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO results (job_id, text, language, segment_count, segments, artifact_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.JobID, result.Text, result.Language, len(result.Segments),
		string(segmentsJSON), result.ArtifactPath, result.CreatedAt,
	)
	if err != nil {
		if isConstraintErr(err) {
			return 0, apperr.Wrap(err, apperr.KindConstraint, fmt.Sprintf("result references unknown job %s", result.JobID))
		}
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to insert result")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to read result id")
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.Wrap(err, apperr.KindPersistence, "failed to commit result")
	}

	result.ID = id
	result.SegmentCount = len(result.Segments)

	s.logger.Info("result saved",
		zap.String("job_id", result.JobID),
		zap.Int64("result_id", id),
		zap.Int("segments", result.SegmentCount),
		zap.String("language", result.Language))
	return id, nil
}

// GetResult returns the current result for a job, or a NotFound error.
func (s *Store) GetResult(ctx context.Context, jobID string) (*model.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, text, language, segment_count, segments, artifact_path, created_at
		FROM results WHERE job_id = ? ORDER BY created_at DESC LIMIT 1`, jobID)

	var r model.Result
	var segmentsJSON string
	err := row.Scan(&r.ID, &r.JobID, &r.Text, &r.Language, &r.SegmentCount,
		&segmentsJSON, &r.ArtifactPath, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("result", jobID)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to query result")
	}

	if err := json.Unmarshal([]byte(segmentsJSON), &r.Segments); err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to decode segments")
	}
	return &r, nil
}

// Search runs a ranked full-text query over result text with highlighted
// snippets. An optional language filter narrows hits.
func (s *Store) Search(ctx context.Context, query, language string, limit int) ([]model.SearchHit, error) {
	if limit <= 0 {
		limit = 50
	}

	sqlStr := `
		SELECT r.job_id, r.id, snippet(results_fts, 0, '<mark>', '</mark>', '…', 64),
		       r.text, r.language, r.created_at
		FROM results r
		JOIN results_fts fts ON r.id = fts.rowid
		WHERE results_fts MATCH ?`
	args := []interface{}{query}

	if language != "" {
		sqlStr += " AND r.language = ?"
		args = append(args, language)
	}
	sqlStr += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "search query failed")
	}
	defer rows.Close()

	hits := make([]model.SearchHit, 0)
	for rows.Next() {
		var h model.SearchHit
		if err := rows.Scan(&h.JobID, &h.ResultID, &h.Snippet, &h.Text, &h.Language, &h.CreatedAt); err != nil {
			return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to scan search hit")
		}
		hits = append(hits, h)
	}

	s.logger.Debug("search executed",
		zap.String("query", query),
		zap.Int("hits", len(hits)))
	return hits, rows.Err()
}

// Statistics aggregates job and file counters.
func (s *Store) Statistics(ctx context.Context) (*model.Statistics, error) {
	var st model.Statistics

	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status = 'completed' THEN processing_time_seconds END), 0),
			COALESCE(SUM(duration_seconds), 0)
		FROM jobs`)
	if err := row.Scan(
		&st.TotalJobs, &st.PendingJobs, &st.ProcessingJobs, &st.CompletedJobs,
		&st.FailedJobs, &st.CancelledJobs, &st.AvgProcessingSeconds, &st.TotalAudioSeconds,
	); err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to query job statistics")
	}

	row = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM files")
	if err := row.Scan(&st.TotalFiles, &st.TotalStorageBytes); err != nil {
		return nil, apperr.Wrap(err, apperr.KindPersistence, "failed to query file statistics")
	}

	return &st, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	err := row.Scan(
		&j.ID, &j.JobID, &j.FileID, &j.ModelSize, &j.Status, &j.TaskType, &j.Language,
		&j.DetectedLanguage, &j.LanguageProbability, &j.Device, &j.ComputeType,
		&j.BeamSize, &j.VADFilter, &j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt,
		&j.DurationSeconds, &j.ProcessingTimeSeconds, &j.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
