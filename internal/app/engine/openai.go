package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/model"
)

// OpenAIEngine transcribes through the hosted Whisper API. Device and
// compute type in the request are ignored; the attempt either works or the
// service is unreachable.
type OpenAIEngine struct {
	client *openai.Client
	logger *zap.Logger
}

func NewOpenAIEngine(apiKey string, logger *zap.Logger) *OpenAIEngine {
	return &OpenAIEngine{client: openai.NewClient(apiKey), logger: logger}
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, req *Request, onSegment SegmentFunc) (*Response, error) {
	audioReq := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: req.AudioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if req.Language != nil {
		audioReq.Language = *req.Language
	}

	e.logger.Info("running remote inference", zap.String("file", req.AudioPath))

	apiResp, err := e.client.CreateTranscription(ctx, audioReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTransient(err) {
			return nil, apperr.ResourceUnavailable(err, req.Device, req.ComputeType)
		}
		return nil, apperr.Wrap(err, apperr.KindInternal, "remote transcription failed")
	}

	resp := &Response{
		Text:                strings.TrimSpace(apiResp.Text),
		Language:            apiResp.Language,
		LanguageProbability: 1.0,
		Segments:            make([]model.Segment, 0, len(apiResp.Segments)),
	}

	for i, s := range apiResp.Segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seg := model.Segment{
			Index: i,
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		}
		resp.Segments = append(resp.Segments, seg)

		if onSegment != nil {
			if err := onSegment(seg); err != nil {
				return nil, err
			}
		}
	}

	return resp, nil
}

// isTransient reports whether the API failure is worth another attempt:
// rate limits and server-side errors, not caller mistakes.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Network-level failures have no status code at all.
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}
