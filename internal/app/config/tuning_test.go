package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuning_EmptyPath(t *testing.T) {
	tuning, err := LoadTuning("")
	require.NoError(t, err)
	assert.False(t, tuning.Selector.DisableGPU)
	assert.Empty(t, tuning.Selector.Chain)
}

func TestLoadTuning_FullFile(t *testing.T) {
	path := writeTuning(t, `
selector:
  disable_gpu: true
  min_free_memory_mb: 2048
  chain:
    - device: cuda
      compute_type: float32
    - device: cpu
      compute_type: int8
`)

	tuning, err := LoadTuning(path)
	require.NoError(t, err)
	assert.True(t, tuning.Selector.DisableGPU)
	assert.Equal(t, 2048, tuning.Selector.MinFreeMemoryMB)
	require.Len(t, tuning.Selector.Chain, 2)
	assert.Equal(t, "cuda", tuning.Selector.Chain[0].Device)
	assert.Equal(t, "float32", tuning.Selector.Chain[0].ComputeType)
}

func TestLoadTuning_UnknownDevice(t *testing.T) {
	path := writeTuning(t, `
selector:
  chain:
    - device: tpu
      compute_type: bfloat16
`)

	_, err := LoadTuning(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown device")
}

func TestLoadTuning_MissingFile(t *testing.T) {
	_, err := LoadTuning(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
