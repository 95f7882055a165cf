package audio

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
)

// Converter normalizes uploaded audio into the 16kHz mono WAV the inference
// engines expect, and measures duration.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (string, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpegConverter shells out to ffmpeg/ffprobe.
type FFmpegConverter struct {
	workDir string
	logger  *zap.Logger
}

// NewFFmpegConverter converts into workDir, created on first use.
func NewFFmpegConverter(workDir string, logger *zap.Logger) *FFmpegConverter {
	return &FFmpegConverter{workDir: workDir, logger: logger}
}

// Convert produces a 16kHz mono PCM WAV next to the conversion work dir. A
// file that is already in the target format is copied through ffmpeg anyway;
// the cost is negligible against inference time and keeps one code path.
func (c *FFmpegConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	if err := os.MkdirAll(c.workDir, 0o755); err != nil {
		return "", apperr.Wrap(err, apperr.KindConversion, "failed to create conversion directory")
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(c.workDir, base+"_16khz.wav")

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("converting audio",
		zap.String("input", inputPath),
		zap.String("output", outputPath))

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apperr.Wrap(
			fmt.Errorf("ffmpeg: %w, stderr: %s", err, stderr.String()),
			apperr.KindConversion, "audio conversion failed")
	}

	return outputPath, nil
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the audio duration in seconds via ffprobe.
func (c *FFmpegConverter) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindConversion, "ffprobe failed")
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, apperr.Wrap(err, apperr.KindConversion, "unparsable ffprobe output")
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.KindConversion, "unparsable duration")
	}
	return seconds, nil
}
