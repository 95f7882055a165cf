package resource

import (
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"whisperflow/internal/app/config"
)

// Config is one (device, compute type) pair the inference engine can be
// asked to run with.
type Config struct {
	Device          string
	ComputeType     string
	ThroughputClass string
}

func (c Config) String() string {
	return c.Device + "/" + c.ComputeType
}

// cpuFloor always works; it terminates every fallback chain.
var cpuFloor = Config{Device: "cpu", ComputeType: "int8", ThroughputClass: "slow"}

// defaultChain is the built-in preference order for a machine with a
// working GPU. Throughput classes annotate the expected relative speed.
var defaultChain = []Config{
	{Device: "cuda", ComputeType: "float16", ThroughputClass: "fast"},
	{Device: "cuda", ComputeType: "int8_float32", ThroughputClass: "fast"},
	{Device: "cuda", ComputeType: "float32", ThroughputClass: "medium"},
	cpuFloor,
}

const defaultMinFreeMemoryMB = 1024

// Prober answers whether hardware can serve a given configuration. The
// production prober shells out to nvidia-smi; tests inject fakes.
type Prober interface {
	// HasGPU reports whether a usable CUDA device is present.
	HasGPU() bool
	// FreeMemoryMB returns free memory on the first GPU, or 0 when unknown.
	FreeMemoryMB() int
}

// NvidiaSMIProber probes GPU state through the nvidia-smi binary.
type NvidiaSMIProber struct {
	logger *zap.Logger
}

func NewNvidiaSMIProber(logger *zap.Logger) *NvidiaSMIProber {
	return &NvidiaSMIProber{logger: logger}
}

func (p *NvidiaSMIProber) HasGPU() bool {
	out, err := exec.Command("nvidia-smi", "--query-gpu=count", "--format=csv,noheader").Output()
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0]))
	return err == nil && n > 0
}

func (p *NvidiaSMIProber) FreeMemoryMB() int {
	out, err := exec.Command("nvidia-smi",
		"--query-gpu=memory.free", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0
	}
	mb, err := strconv.Atoi(strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0]))
	if err != nil {
		p.logger.Warn("unparsable nvidia-smi output", zap.ByteString("output", out))
		return 0
	}
	return mb
}

// Selector produces the ordered fallback chain of inference configurations.
// For a fixed probe outcome the chain is deterministic.
type Selector struct {
	prober Prober
	tuning config.SelectorTuning
	logger *zap.Logger
}

func NewSelector(prober Prober, tuning config.SelectorTuning, logger *zap.Logger) *Selector {
	return &Selector{prober: prober, tuning: tuning, logger: logger}
}

// Probe returns candidate configurations best-first. The CPU floor is always
// the final entry, so the chain is never empty.
func (s *Selector) Probe() []Config {
	if len(s.tuning.Chain) > 0 {
		return s.configuredChain()
	}

	if s.tuning.DisableGPU || !s.prober.HasGPU() {
		return []Config{cpuFloor}
	}

	chain := make([]Config, len(defaultChain))
	copy(chain, defaultChain)
	return chain
}

// Test reports whether the given configuration is currently viable. CPU is
// always viable; CUDA entries need a GPU with enough free memory.
func (s *Selector) Test(cfg Config) bool {
	if cfg.Device == "cpu" {
		return true
	}
	if s.tuning.DisableGPU || !s.prober.HasGPU() {
		return false
	}

	minFree := s.tuning.MinFreeMemoryMB
	if minFree <= 0 {
		minFree = defaultMinFreeMemoryMB
	}
	if free := s.prober.FreeMemoryMB(); free < minFree {
		s.logger.Warn("insufficient GPU memory",
			zap.Int("free_mb", free),
			zap.Int("required_mb", minFree))
		return false
	}
	return true
}

// Recommend returns the first viable configuration. It never fails because
// the CPU floor always passes.
func (s *Selector) Recommend() Config {
	for _, cfg := range s.Probe() {
		if s.Test(cfg) {
			s.logger.Info("selected inference configuration",
				zap.String("device", cfg.Device),
				zap.String("compute_type", cfg.ComputeType))
			return cfg
		}
	}
	return cpuFloor
}

func (s *Selector) configuredChain() []Config {
	chain := make([]Config, 0, len(s.tuning.Chain)+1)
	hasCPU := false
	for _, e := range s.tuning.Chain {
		cfg := Config{Device: e.Device, ComputeType: e.ComputeType, ThroughputClass: classify(e)}
		if cfg.Device == "cpu" {
			hasCPU = true
		}
		chain = append(chain, cfg)
	}
	// A chain with no CPU entry could dead-end; append the floor.
	if !hasCPU {
		chain = append(chain, cpuFloor)
	}
	return chain
}

func classify(e config.ChainEntry) string {
	if e.Device == "cpu" {
		return "slow"
	}
	if e.ComputeType == "float32" {
		return "medium"
	}
	return "fast"
}
