package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"whisperflow/internal/app/apperr"
	"whisperflow/internal/app/model"
)

// Substrings in whisper.cpp stderr that indicate the device or compute
// configuration, not the audio, is at fault.
var deviceFailureMarkers = []string{
	"CUDA error",
	"cudaMalloc",
	"out of memory",
	"failed to initialize",
	"ggml_backend",
	"no CUDA devices",
}

// WhisperCppEngine runs transcription through the whisper.cpp main binary.
type WhisperCppEngine struct {
	binaryPath string
	modelDir   string
	logger     *zap.Logger
}

func NewWhisperCppEngine(binaryPath, modelDir string, logger *zap.Logger) *WhisperCppEngine {
	return &WhisperCppEngine{binaryPath: binaryPath, modelDir: modelDir, logger: logger}
}

// Transcribe runs the binary with JSON output and replays the parsed
// segments through onSegment. Device failures surface as retryable
// ResourceUnavailable errors so the fallback chain can advance.
func (e *WhisperCppEngine) Transcribe(ctx context.Context, req *Request, onSegment SegmentFunc) (*Response, error) {
	modelPath := filepath.Join(e.modelDir, fmt.Sprintf("ggml-%s.bin", req.ModelSize))
	if _, err := os.Stat(modelPath); err != nil {
		return nil, apperr.Newf(apperr.KindValidation, "model %q not found at %s", req.ModelSize, modelPath)
	}

	outputBase := strings.TrimSuffix(req.AudioPath, filepath.Ext(req.AudioPath))

	args := []string{
		"-m", modelPath,
		"-f", req.AudioPath,
		"-oj",
		"-of", outputBase,
		"-bs", strconv.Itoa(req.BeamSize),
	}
	if req.Language != nil {
		args = append(args, "-l", *req.Language)
	} else {
		args = append(args, "-l", "auto")
	}
	if req.TaskType == model.TaskTranslate {
		args = append(args, "--translate")
	}
	if req.VADFilter {
		args = append(args, "--vad")
	}
	if req.Device == "cpu" {
		args = append(args, "-ng")
	}

	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Info("running inference",
		zap.String("model", req.ModelSize),
		zap.String("device", req.Device),
		zap.String("compute_type", req.ComputeType))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		runErr := fmt.Errorf("whisper.cpp: %w, stderr: %s", err, stderr.String())
		if isDeviceFailure(stderr.String()) {
			return nil, apperr.ResourceUnavailable(runErr, req.Device, req.ComputeType)
		}
		return nil, apperr.Wrap(runErr, apperr.KindInternal, "inference failed")
	}

	outputPath := outputBase + ".json"
	defer os.Remove(outputPath)

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to read inference output")
	}

	return parseWhisperCppOutput(ctx, data, onSegment)
}

type whisperCppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperCppOutput(ctx context.Context, data []byte, onSegment SegmentFunc) (*Response, error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "unparsable inference output")
	}

	resp := &Response{
		Language: out.Result.Language,
		// whisper.cpp reports no detection confidence; treat a detected
		// language as certain.
		LanguageProbability: 1.0,
		Segments:            make([]model.Segment, 0, len(out.Transcription)),
	}

	var text strings.Builder
	for i, t := range out.Transcription {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seg := model.Segment{
			Index: i,
			Start: float64(t.Offsets.From) / 1000.0,
			End:   float64(t.Offsets.To) / 1000.0,
			Text:  strings.TrimSpace(t.Text),
		}
		resp.Segments = append(resp.Segments, seg)
		text.WriteString(seg.Text)
		if i < len(out.Transcription)-1 {
			text.WriteString(" ")
		}

		if onSegment != nil {
			if err := onSegment(seg); err != nil {
				return nil, err
			}
		}
	}

	resp.Text = text.String()
	return resp, nil
}

func isDeviceFailure(stderr string) bool {
	for _, marker := range deviceFailureMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
