package engine

import (
	"context"

	"whisperflow/internal/app/model"
)

// Request carries everything one transcription attempt needs. Device and
// ComputeType come from the resource fallback chain; engines that run
// remotely may ignore them.
type Request struct {
	AudioPath   string
	ModelSize   string
	TaskType    model.TaskType
	Language    *string
	BeamSize    int
	VADFilter   bool
	Device      string
	ComputeType string
}

// Response is the outcome of a successful transcription attempt.
type Response struct {
	Text                string
	Language            string
	LanguageProbability float64
	Segments            []model.Segment
}

// SegmentFunc receives each transcribed segment in order. Returning an
// error aborts the attempt; engines check for context cancellation between
// segments through this path.
type SegmentFunc func(seg model.Segment) error

// Engine performs speech-to-text. Attempt-local failures on a given
// device/compute pair are reported as retryable ResourceUnavailable errors
// so the caller can advance its fallback chain.
type Engine interface {
	Transcribe(ctx context.Context, req *Request, onSegment SegmentFunc) (*Response, error)
}
