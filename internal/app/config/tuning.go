package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the optional YAML tuning file for resource selection. It lets a
// deployment pin or reorder the fallback chain without a rebuild.
type Tuning struct {
	Selector SelectorTuning `yaml:"selector"`
}

// SelectorTuning overrides resource selector behavior.
type SelectorTuning struct {
	// DisableGPU forces the CPU floor even when a GPU is detected.
	DisableGPU bool `yaml:"disable_gpu"`

	// MinFreeMemoryMB is the free GPU memory required for a CUDA entry to
	// pass the capability test. Zero means the built-in default.
	MinFreeMemoryMB int `yaml:"min_free_memory_mb"`

	// Chain replaces the built-in fallback chain when non-empty. Entries are
	// tried in order.
	Chain []ChainEntry `yaml:"chain"`
}

// ChainEntry is one (device, compute type) pair of a configured chain.
type ChainEntry struct {
	Device      string `yaml:"device"`
	ComputeType string `yaml:"compute_type"`
}

// LoadTuning reads a tuning file. An empty path yields zero-value tuning.
func LoadTuning(path string) (*Tuning, error) {
	if path == "" {
		return &Tuning{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}

	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}

	for i, e := range t.Selector.Chain {
		if e.Device != "cuda" && e.Device != "cpu" {
			return nil, fmt.Errorf("tuning chain entry %d: unknown device %q", i, e.Device)
		}
	}

	return &t, nil
}
