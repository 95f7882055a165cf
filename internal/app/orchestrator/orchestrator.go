package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/audio"
	"whisperflow/internal/app/engine"
	"whisperflow/internal/app/export"
	"whisperflow/internal/app/metrics"
	"whisperflow/internal/app/model"
	"whisperflow/internal/app/repository"
	"whisperflow/internal/app/resource"
	"whisperflow/internal/app/storage"
)

var validModelSizes = map[string]bool{
	"tiny":     true,
	"base":     true,
	"small":    true,
	"medium":   true,
	"large":    true,
	"large-v2": true,
	"large-v3": true,
}

const (
	defaultBeamSize    = 5
	maxBeamSize        = 10
	saveResultAttempts = 3
	saveResultBackoff  = 100 * time.Millisecond
)

// Options are the caller-supplied parameters of a submission.
type Options struct {
	ModelSize string
	TaskType  model.TaskType
	Language  *string
	BeamSize  int
	VADFilter bool
}

// Orchestrator owns the job lifecycle. A single worker goroutine drains the
// queue in submission order; the worker is the inference slot, held across
// all fallback attempts of a job.
type Orchestrator struct {
	store       repository.Store
	content     *storage.ContentStore
	selector    *resource.Selector
	converter   audio.Converter
	engine      engine.Engine
	metrics     *metrics.Metrics
	logger      *zap.Logger
	artifactDir string

	queue  chan string
	events *eventBus

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	runCtx  context.Context
	stop    context.CancelFunc
	stopped chan struct{}
}

// New assembles an orchestrator. Start must be called before submissions
// are processed.
func New(
	store repository.Store,
	content *storage.ContentStore,
	selector *resource.Selector,
	converter audio.Converter,
	eng engine.Engine,
	m *metrics.Metrics,
	logger *zap.Logger,
	artifactDir string,
	queueSize int,
) *Orchestrator {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Orchestrator{
		store:       store,
		content:     content,
		selector:    selector,
		converter:   converter,
		engine:      eng,
		metrics:     m,
		logger:      logger,
		artifactDir: artifactDir,
		queue:       make(chan string, queueSize),
		events:      newEventBus(),
		cancels:     make(map[string]context.CancelFunc),
		stopped:     make(chan struct{}),
	}
}

// Start recovers persisted state and launches the worker. Jobs found stuck
// in processing were interrupted by a previous shutdown and are failed;
// pending jobs are re-enqueued in submission order.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runCtx, o.stop = context.WithCancel(ctx)

	interrupted, err := o.store.ProcessingJobIDs(ctx)
	if err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}
	for _, jobID := range interrupted {
		msg := "interrupted by service restart"
		if _, err := o.store.TransitionJob(ctx, jobID, model.StatusFailed, model.StatusProcessing); err != nil {
			return fmt.Errorf("startup recovery: %w", err)
		}
		if _, err := o.store.UpdateJob(ctx, jobID, model.JobUpdate{ErrorMessage: &msg}); err != nil {
			return fmt.Errorf("startup recovery: %w", err)
		}
		o.logger.Warn("failed interrupted job", zap.String("job_id", jobID))
	}

	pending, err := o.store.PendingJobIDs(ctx)
	if err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}
	for _, jobID := range pending {
		select {
		case o.queue <- jobID:
			o.metrics.QueueDepth.Inc()
		default:
			o.logger.Warn("queue full during recovery, job stays pending",
				zap.String("job_id", jobID))
		}
	}
	if len(pending) > 0 {
		o.logger.Info("re-enqueued pending jobs", zap.Int("count", len(pending)))
	}

	go o.run()
	return nil
}

// Stop cancels the active job, drains nothing further, and waits for the
// worker to exit.
func (o *Orchestrator) Stop() {
	if o.stop == nil {
		// Never started; nothing to drain.
		return
	}
	o.stop()
	<-o.stopped
	o.events.closeAll()
}

// Subscribe returns a channel of progress events and a cancel function.
func (o *Orchestrator) Subscribe() (<-chan ProgressEvent, func()) {
	id, ch := o.events.subscribe()
	return ch, func() { o.events.unsubscribe(id) }
}

// Submit validates the request, resolves the audio content, and enqueues a
// pending job. It returns as soon as the job is durably recorded; processing
// happens on the worker. A file already being processed or waiting is
// rejected as a duplicate.
func (o *Orchestrator) Submit(ctx context.Context, path string, opts Options) (string, error) {
	if err := normalizeOptions(&opts); err != nil {
		return "", err
	}

	file, isNew, err := o.content.Resolve(ctx, path)
	if err != nil {
		return "", err
	}

	activeID, err := o.store.ActiveJobForFile(ctx, file.ID)
	if err != nil {
		return "", err
	}
	if activeID != "" {
		return "", apperr.Newf(apperr.KindDuplicateSubmission,
			"content already queued as job %s", activeID)
	}

	job := &model.Job{
		JobID:     uuid.NewString(),
		FileID:    file.ID,
		ModelSize: opts.ModelSize,
		TaskType:  opts.TaskType,
		Language:  opts.Language,
		BeamSize:  opts.BeamSize,
		VADFilter: opts.VADFilter,
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return "", err
	}

	select {
	case o.queue <- job.JobID:
	default:
		// Keep the pending row; recovery or a later restart picks it up.
		o.logger.Warn("queue full, job recorded but not enqueued",
			zap.String("job_id", job.JobID))
		return job.JobID, nil
	}

	o.metrics.Submissions.Inc()
	o.metrics.QueueDepth.Inc()
	o.logger.Info("job submitted",
		zap.String("job_id", job.JobID),
		zap.Int64("file_id", file.ID),
		zap.Bool("new_content", isNew))
	return job.JobID, nil
}

// Cancel stops a job. Pending jobs transition immediately; the active job's
// context is cancelled and observed at the next segment boundary. Terminal
// and unknown jobs return false.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) (bool, error) {
	moved, err := o.store.TransitionJob(ctx, jobID, model.StatusCancelled, model.StatusPending)
	if err != nil {
		return false, err
	}
	if moved {
		o.metrics.JobsCancelled.Inc()
		return true, nil
	}

	o.mu.Lock()
	cancel, active := o.cancels[jobID]
	o.mu.Unlock()
	if active {
		cancel()
		return true, nil
	}
	return false, nil
}

// GetJob, ListJobs, GetResult, Search, and Statistics delegate to the store.
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return o.store.GetJob(ctx, jobID)
}

func (o *Orchestrator) ListJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error) {
	return o.store.ListJobs(ctx, filter)
}

func (o *Orchestrator) GetResult(ctx context.Context, jobID string) (*model.Result, error) {
	return o.store.GetResult(ctx, jobID)
}

func (o *Orchestrator) Search(ctx context.Context, query, language string, limit int) ([]model.SearchHit, error) {
	return o.store.Search(ctx, query, language, limit)
}

func (o *Orchestrator) Statistics(ctx context.Context) (*model.Statistics, error) {
	return o.store.Statistics(ctx)
}

// DeleteJob removes a job and its results. The actively processing job
// cannot be deleted; cancel it first.
func (o *Orchestrator) DeleteJob(ctx context.Context, jobID string) (bool, error) {
	o.mu.Lock()
	_, active := o.cancels[jobID]
	o.mu.Unlock()
	if active {
		return false, apperr.Newf(apperr.KindValidation,
			"job %s is processing, cancel it before deleting", jobID)
	}
	return o.store.DeleteJob(ctx, jobID)
}

func (o *Orchestrator) run() {
	defer close(o.stopped)

	for {
		select {
		case <-o.runCtx.Done():
			return
		case jobID := <-o.queue:
			o.metrics.QueueDepth.Dec()
			o.process(jobID)
		}
	}
}

// process runs one job to a terminal state. Any panic or error path leaves
// the job terminal; nothing is retried across restarts except via recovery.
func (o *Orchestrator) process(jobID string) {
	ctx, cancel := context.WithCancel(o.runCtx)
	o.mu.Lock()
	o.cancels[jobID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, jobID)
		o.mu.Unlock()
		cancel()
	}()

	// A job cancelled while queued is skipped here: the guarded transition
	// finds it no longer pending.
	moved, err := o.store.TransitionJob(ctx, jobID, model.StatusProcessing, model.StatusPending)
	if err != nil {
		o.logger.Error("cannot start job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if !moved {
		o.logger.Info("skipping job no longer pending", zap.String("job_id", jobID))
		return
	}

	started := time.Now().UTC()
	if _, err := o.store.UpdateJob(ctx, jobID, model.JobUpdate{StartedAt: &started}); err != nil {
		o.logger.Warn("cannot record start time", zap.String("job_id", jobID), zap.Error(err))
	}

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		o.failJob(jobID, started, err)
		return
	}
	path, err := o.audioPath(ctx, job)
	if err != nil {
		o.failJob(jobID, started, err)
		return
	}

	wavPath, err := o.converter.Convert(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			o.cancelJob(jobID)
			return
		}
		o.failJob(jobID, started, err)
		return
	}
	defer os.Remove(wavPath)

	if seconds, err := o.converter.Duration(ctx, wavPath); err == nil {
		if _, err := o.store.UpdateJob(ctx, jobID, model.JobUpdate{DurationSeconds: &seconds}); err != nil {
			o.logger.Warn("cannot record duration", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	resp, err := o.runFallbackChain(ctx, job, wavPath)
	if err != nil {
		if ctx.Err() != nil {
			o.cancelJob(jobID)
			return
		}
		o.failJob(jobID, started, err)
		return
	}

	artifactPath := o.writeArtifact(jobID, resp.Segments)

	result := &model.Result{
		JobID:        jobID,
		Text:         resp.Text,
		Language:     resp.Language,
		Segments:     resp.Segments,
		ArtifactPath: artifactPath,
	}
	if err := o.saveResultWithRetry(ctx, result); err != nil {
		o.failJob(jobID, started, err)
		return
	}

	completed := time.Now().UTC()
	elapsed := completed.Sub(started).Seconds()
	upd := model.JobUpdate{
		CompletedAt:           &completed,
		ProcessingTimeSeconds: &elapsed,
		DetectedLanguage:      &resp.Language,
		LanguageProbability:   &resp.LanguageProbability,
	}
	if _, err := o.store.UpdateJob(ctx, jobID, upd); err != nil {
		o.logger.Warn("cannot record completion fields", zap.String("job_id", jobID), zap.Error(err))
	}
	if _, err := o.store.TransitionJob(ctx, jobID, model.StatusCompleted, model.StatusProcessing); err != nil {
		o.logger.Error("cannot complete job", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	o.metrics.JobsCompleted.Inc()
	o.metrics.ProcessingSeconds.Observe(elapsed)
	o.logger.Info("job completed",
		zap.String("job_id", jobID),
		zap.Float64("processing_seconds", elapsed),
		zap.Int("segments", len(resp.Segments)))
}

// runFallbackChain tries each viable configuration in order. A retryable
// failure advances exactly one entry; any other error aborts. Exhaustion
// wraps the last cause.
func (o *Orchestrator) runFallbackChain(ctx context.Context, job *model.Job, wavPath string) (*engine.Response, error) {
	chain := o.selector.Probe()

	var lastErr error
	for _, cfg := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !o.selector.Test(cfg) {
			o.logger.Info("skipping unviable configuration",
				zap.String("job_id", job.JobID),
				zap.String("config", cfg.String()))
			o.metrics.InferenceAttempts.WithLabelValues(cfg.Device, cfg.ComputeType, "skipped").Inc()
			continue
		}

		device, computeType := cfg.Device, cfg.ComputeType
		if _, err := o.store.UpdateJob(ctx, job.JobID, model.JobUpdate{
			Device:      &device,
			ComputeType: &computeType,
		}); err != nil {
			o.logger.Warn("cannot record attempt configuration",
				zap.String("job_id", job.JobID), zap.Error(err))
		}

		req := &engine.Request{
			AudioPath:   wavPath,
			ModelSize:   job.ModelSize,
			TaskType:    job.TaskType,
			Language:    job.Language,
			BeamSize:    job.BeamSize,
			VADFilter:   job.VADFilter,
			Device:      device,
			ComputeType: computeType,
		}

		resp, err := o.engine.Transcribe(ctx, req, func(seg model.Segment) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.events.publish(ProgressEvent{
				JobID:        job.JobID,
				SegmentIndex: seg.Index,
				Start:        seg.Start,
				End:          seg.End,
				Text:         seg.Text,
				Timestamp:    time.Now().UTC(),
			})
			return nil
		})
		if err == nil {
			o.metrics.InferenceAttempts.WithLabelValues(device, computeType, "success").Inc()
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		o.metrics.InferenceAttempts.WithLabelValues(device, computeType, "failure").Inc()
		if !apperr.IsKind(err, apperr.KindResourceUnavailable) {
			return nil, err
		}

		o.logger.Warn("inference attempt failed, advancing chain",
			zap.String("job_id", job.JobID),
			zap.String("config", cfg.String()),
			zap.Error(err))
		lastErr = err
	}

	return nil, apperr.Wrap(lastErr, apperr.KindInferenceExhausted,
		"all inference configurations exhausted")
}

func (o *Orchestrator) saveResultWithRetry(ctx context.Context, result *model.Result) error {
	var err error
	for attempt := 1; attempt <= saveResultAttempts; attempt++ {
		if _, err = o.store.SaveResult(ctx, result); err == nil {
			return nil
		}
		if apperr.IsKind(err, apperr.KindConstraint) {
			return err
		}
		o.logger.Warn("result save failed",
			zap.String("job_id", result.JobID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return err
		case <-time.After(saveResultBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// writeArtifact renders the SRT transcript artifact. Artifact failures are
// logged, not fatal: the durable transcript lives in the store.
func (o *Orchestrator) writeArtifact(jobID string, segments []model.Segment) *string {
	if o.artifactDir == "" {
		return nil
	}
	if err := os.MkdirAll(o.artifactDir, 0o755); err != nil {
		o.logger.Warn("cannot create artifact directory", zap.Error(err))
		return nil
	}

	path := filepath.Join(o.artifactDir, jobID+".srt")
	f, err := os.Create(path)
	if err != nil {
		o.logger.Warn("cannot create artifact", zap.String("path", path), zap.Error(err))
		return nil
	}
	defer f.Close()

	if err := export.WriteSRT(f, segments); err != nil {
		o.logger.Warn("cannot write artifact", zap.String("path", path), zap.Error(err))
		os.Remove(path)
		return nil
	}
	return &path
}

// failJob drives a processing job to failed with the cause recorded.
func (o *Orchestrator) failJob(jobID string, started time.Time, cause error) {
	// Use a fresh context: the job context may already be cancelled and the
	// terminal write must still land.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	elapsed := time.Since(started).Seconds()
	msg := cause.Error()
	if _, err := o.store.UpdateJob(ctx, jobID, model.JobUpdate{
		ErrorMessage:          &msg,
		ProcessingTimeSeconds: &elapsed,
	}); err != nil {
		o.logger.Error("cannot record failure", zap.String("job_id", jobID), zap.Error(err))
	}
	if _, err := o.store.TransitionJob(ctx, jobID, model.StatusFailed, model.StatusProcessing); err != nil {
		o.logger.Error("cannot fail job", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	o.metrics.JobsFailed.Inc()
	o.logger.Warn("job failed",
		zap.String("job_id", jobID),
		zap.String("error_kind", string(apperr.KindOf(cause))),
		zap.Error(cause))
}

func (o *Orchestrator) cancelJob(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := o.store.TransitionJob(ctx, jobID, model.StatusCancelled, model.StatusProcessing); err != nil {
		o.logger.Error("cannot cancel job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	o.metrics.JobsCancelled.Inc()
	o.logger.Info("job cancelled", zap.String("job_id", jobID))
}

// audioPath resolves the managed storage path for the job's file.
func (o *Orchestrator) audioPath(ctx context.Context, job *model.Job) (string, error) {
	file, err := o.store.GetFileByID(ctx, job.FileID)
	if err != nil {
		return "", err
	}
	return file.Path, nil
}

func normalizeOptions(opts *Options) error {
	if opts.ModelSize == "" {
		opts.ModelSize = "large-v3"
	}
	if !validModelSizes[opts.ModelSize] {
		return apperr.Newf(apperr.KindValidation, "unknown model size %q", opts.ModelSize)
	}
	if opts.TaskType == "" {
		opts.TaskType = model.TaskTranscribe
	}
	if opts.TaskType != model.TaskTranscribe && opts.TaskType != model.TaskTranslate {
		return apperr.Newf(apperr.KindValidation, "unknown task type %q", opts.TaskType)
	}
	if opts.BeamSize == 0 {
		opts.BeamSize = defaultBeamSize
	}
	if opts.BeamSize < 1 || opts.BeamSize > maxBeamSize {
		return apperr.Newf(apperr.KindValidation, "beam size must be between 1 and %d", maxBeamSize)
	}
	return nil
}
