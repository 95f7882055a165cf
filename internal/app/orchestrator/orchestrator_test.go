package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/config"
	"whisperflow/internal/app/engine"
	"whisperflow/internal/app/metrics"
	"whisperflow/internal/app/model"
	"whisperflow/internal/app/repository"
	"whisperflow/internal/app/repository/sqlite"
	"whisperflow/internal/app/resource"
	"whisperflow/internal/app/storage"
)

type fakeConverter struct {
	failWith error
}

func (f *fakeConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}
	return inputPath + ".wav", nil
}

func (f *fakeConverter) Duration(ctx context.Context, path string) (float64, error) {
	return 10.0, nil
}

// fakeEngine scripts transcription outcomes and tracks concurrency.
type fakeEngine struct {
	mu        sync.Mutex
	responses []fakeAttempt
	calls     int

	active      int32
	maxActive   int32
	order       []string
	block       chan struct{}
	segments    []model.Segment
	segmentFunc func(onSegment engine.SegmentFunc) error
}

type fakeAttempt struct {
	err error
}

func (f *fakeEngine) Transcribe(ctx context.Context, req *engine.Request, onSegment engine.SegmentFunc) (*engine.Response, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		max := atomic.LoadInt32(&f.maxActive)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxActive, max, n) {
			break
		}
	}

	f.mu.Lock()
	f.order = append(f.order, req.AudioPath)
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if call < len(f.responses) && f.responses[call].err != nil {
		return nil, f.responses[call].err
	}

	if f.segmentFunc != nil {
		if err := f.segmentFunc(onSegment); err != nil {
			return nil, err
		}
	}

	segs := f.segments
	if segs == nil {
		segs = []model.Segment{{Index: 0, Start: 0, End: 2, Text: "hello world"}}
	}
	text := ""
	for i, s := range segs {
		if onSegment != nil {
			if err := onSegment(s); err != nil {
				return nil, err
			}
		}
		if i > 0 {
			text += " "
		}
		text += s.Text
	}

	return &engine.Response{
		Text:                text,
		Language:            "en",
		LanguageProbability: 1.0,
		Segments:            segs,
	}, nil
}

type harness struct {
	orch  *Orchestrator
	store repository.Store
	eng   *fakeEngine
	conv  *fakeConverter
	dir   string
}

type fakeProber struct {
	hasGPU bool
}

func (f *fakeProber) HasGPU() bool      { return f.hasGPU }
func (f *fakeProber) FreeMemoryMB() int { return 8192 }

func newHarness(t *testing.T, hasGPU bool) *harness {
	t.Helper()

	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	store := sqlite.NewStore(db, zap.NewNop())
	t.Cleanup(func() { store.Close() })

	content, err := storage.NewContentStore(filepath.Join(dir, "storage"), store, nil, zap.NewNop())
	require.NoError(t, err)

	selector := resource.NewSelector(&fakeProber{hasGPU: hasGPU}, config.SelectorTuning{}, zap.NewNop())
	conv := &fakeConverter{}
	eng := &fakeEngine{}

	orch := New(store, content, selector, conv, eng, metrics.NewNop(), zap.NewNop(),
		filepath.Join(dir, "artifacts"), 16)

	return &harness{orch: orch, store: store, eng: eng, conv: conv, dir: dir}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.orch.Start(context.Background()))
	t.Cleanup(h.orch.Stop)
}

func (h *harness) writeAudio(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (h *harness) waitForStatus(t *testing.T, jobID string, want model.JobStatus) *model.Job {
	t.Helper()

	var job *model.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = h.store.GetJob(context.Background(), jobID)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached %s", jobID, want)
	return job
}

func TestSubmitAndComplete(t *testing.T) {
	h := newHarness(t, false)
	h.start(t)

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "audio-a"), Options{})
	require.NoError(t, err)

	job := h.waitForStatus(t, jobID, model.StatusCompleted)
	require.NotNil(t, job.Device)
	assert.Equal(t, "cpu", *job.Device)
	require.NotNil(t, job.DetectedLanguage)
	assert.Equal(t, "en", *job.DetectedLanguage)
	require.NotNil(t, job.DurationSeconds)
	assert.InDelta(t, 10.0, *job.DurationSeconds, 1e-9)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	result, err := h.orch.GetResult(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", result.Text)
	require.NotNil(t, result.ArtifactPath)
	data, err := os.ReadFile(*result.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
}

func TestSubmit_DuplicateContentRejected(t *testing.T) {
	h := newHarness(t, false)
	// Not started: the first job stays pending, so the second submission of
	// identical bytes must be refused.

	_, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "same-bytes"), Options{})
	require.NoError(t, err)

	_, err = h.orch.Submit(context.Background(),
		h.writeAudio(t, "b.mp3", "same-bytes"), Options{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicateSubmission))
}

func TestSubmit_ResubmitAfterTerminal(t *testing.T) {
	h := newHarness(t, false)
	h.start(t)

	first, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "re-runnable"), Options{})
	require.NoError(t, err)
	h.waitForStatus(t, first, model.StatusCompleted)

	second, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "b.mp3", "re-runnable"), Options{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	h.waitForStatus(t, second, model.StatusCompleted)
}

func TestSubmit_ValidatesOptions(t *testing.T) {
	h := newHarness(t, false)
	path := h.writeAudio(t, "a.mp3", "audio")

	_, err := h.orch.Submit(context.Background(), path, Options{ModelSize: "gigantic"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = h.orch.Submit(context.Background(), path, Options{BeamSize: 99})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = h.orch.Submit(context.Background(), path, Options{TaskType: "summarize"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestConversionFailureFailsJobWithoutInference(t *testing.T) {
	h := newHarness(t, false)
	h.conv.failWith = apperr.Wrap(errors.New("corrupt header"), apperr.KindConversion, "audio conversion failed")
	h.start(t)

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "bad.mp3", "corrupt"), Options{})
	require.NoError(t, err)

	job := h.waitForStatus(t, jobID, model.StatusFailed)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "conversion")
	assert.Zero(t, h.eng.calls, "inference attempted after conversion failure")
}

func TestFallbackChainAdvancesAndSucceeds(t *testing.T) {
	h := newHarness(t, true)
	unavailable := apperr.ResourceUnavailable(errors.New("CUDA error"), "cuda", "float16")
	h.eng.responses = []fakeAttempt{{err: unavailable}, {err: unavailable}}
	h.start(t)

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "audio"), Options{})
	require.NoError(t, err)

	job := h.waitForStatus(t, jobID, model.StatusCompleted)
	assert.Equal(t, 3, h.eng.calls, "two failures should mean success on the third entry")
	require.NotNil(t, job.Device)
	assert.Equal(t, "cuda", *job.Device)
	assert.Equal(t, "float32", *job.ComputeType)
}

func TestFallbackChainExhaustion(t *testing.T) {
	h := newHarness(t, true)
	unavailable := apperr.ResourceUnavailable(errors.New("no backend"), "any", "any")
	h.eng.responses = []fakeAttempt{
		{err: unavailable}, {err: unavailable}, {err: unavailable}, {err: unavailable},
	}
	h.start(t)

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "audio"), Options{})
	require.NoError(t, err)

	job := h.waitForStatus(t, jobID, model.StatusFailed)
	assert.Equal(t, 4, h.eng.calls, "every chain entry must be attempted exactly once")
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "exhausted")

	_, err = h.orch.GetResult(context.Background(), jobID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "failed job must have no result")
}

func TestNonRetryableEngineErrorAbortsChain(t *testing.T) {
	h := newHarness(t, true)
	h.eng.responses = []fakeAttempt{
		{err: apperr.New(apperr.KindInternal, "inference failed")},
	}
	h.start(t)

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "audio"), Options{})
	require.NoError(t, err)

	h.waitForStatus(t, jobID, model.StatusFailed)
	assert.Equal(t, 1, h.eng.calls, "non-retryable failure must not advance the chain")
}

func TestConcurrentSubmissions_SingleSlotFIFO(t *testing.T) {
	h := newHarness(t, false)
	h.start(t)

	const jobs = 5
	ids := make([]string, 0, jobs)
	for i := 0; i < jobs; i++ {
		jobID, err := h.orch.Submit(context.Background(),
			h.writeAudio(t, fmt.Sprintf("clip-%d.mp3", i), fmt.Sprintf("content-%d", i)),
			Options{})
		require.NoError(t, err)
		ids = append(ids, jobID)
	}

	for _, jobID := range ids {
		h.waitForStatus(t, jobID, model.StatusCompleted)
	}

	assert.Equal(t, int32(1), h.eng.maxActive, "more than one job held the inference slot")

	// FIFO: attempts happen in submission order. The fake records converted
	// paths, which embed the per-job clip name.
	require.Len(t, h.eng.order, jobs)
	for i, path := range h.eng.order {
		assert.Contains(t, path, fmt.Sprintf("clip-%d.mp3", i))
	}
}

func TestCancelPendingJob(t *testing.T) {
	h := newHarness(t, false)
	// Worker not started: the job stays pending.

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "audio"), Options{})
	require.NoError(t, err)

	ok, err := h.orch.Cancel(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, ok)

	job, err := h.store.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, job.Status)

	// A second cancel finds nothing to do.
	ok, err = h.orch.Cancel(context.Background(), jobID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Zero(t, h.eng.calls)
}

func TestCancelProcessingJob(t *testing.T) {
	h := newHarness(t, false)
	h.eng.block = make(chan struct{})
	h.start(t)

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "audio"), Options{})
	require.NoError(t, err)

	h.waitForStatus(t, jobID, model.StatusProcessing)

	ok, err := h.orch.Cancel(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, ok)

	job := h.waitForStatus(t, jobID, model.StatusCancelled)
	assert.Equal(t, model.StatusCancelled, job.Status)
}

func TestDeleteJob_RefusedWhileProcessing(t *testing.T) {
	h := newHarness(t, false)
	h.eng.block = make(chan struct{})
	h.start(t)

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "audio"), Options{})
	require.NoError(t, err)
	h.waitForStatus(t, jobID, model.StatusProcessing)

	_, err = h.orch.DeleteJob(context.Background(), jobID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	close(h.eng.block)
	h.waitForStatus(t, jobID, model.StatusCompleted)

	ok, err := h.orch.DeleteJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = h.orch.GetResult(context.Background(), jobID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestProgressEventsPublished(t *testing.T) {
	h := newHarness(t, false)
	h.eng.segments = []model.Segment{
		{Index: 0, Start: 0, End: 1, Text: "one"},
		{Index: 1, Start: 1, End: 2, Text: "two"},
		{Index: 2, Start: 2, End: 3, Text: "three"},
	}

	events, unsubscribe := h.orch.Subscribe()
	defer unsubscribe()
	h.start(t)

	jobID, err := h.orch.Submit(context.Background(),
		h.writeAudio(t, "a.mp3", "audio"), Options{})
	require.NoError(t, err)
	h.waitForStatus(t, jobID, model.StatusCompleted)

	var got []ProgressEvent
	for len(got) < 3 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %d", len(got))
		}
	}

	for i, ev := range got {
		assert.Equal(t, jobID, ev.JobID)
		assert.Equal(t, i, ev.SegmentIndex)
	}
}

func TestStartupRecovery(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	// Seed one pending and one stuck-processing job directly.
	pendingID, err := h.orch.Submit(ctx, h.writeAudio(t, "a.mp3", "pending-audio"), Options{})
	require.NoError(t, err)

	stuckID, err := h.orch.Submit(ctx, h.writeAudio(t, "b.mp3", "stuck-audio"), Options{})
	require.NoError(t, err)
	moved, err := h.store.TransitionJob(ctx, stuckID, model.StatusProcessing, model.StatusPending)
	require.NoError(t, err)
	require.True(t, moved)

	h.start(t)

	job := h.waitForStatus(t, stuckID, model.StatusFailed)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "restart")

	h.waitForStatus(t, pendingID, model.StatusCompleted)
}

func TestCancelUnknownJob(t *testing.T) {
	h := newHarness(t, false)

	ok, err := h.orch.Cancel(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.False(t, ok)
}
