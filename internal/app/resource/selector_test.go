package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"whisperflow/internal/app/config"
)

type fakeProber struct {
	hasGPU bool
	freeMB int
}

func (f *fakeProber) HasGPU() bool      { return f.hasGPU }
func (f *fakeProber) FreeMemoryMB() int { return f.freeMB }

func newSelector(prober Prober, tuning config.SelectorTuning) *Selector {
	return NewSelector(prober, tuning, zap.NewNop())
}

func TestProbe_WithGPU(t *testing.T) {
	s := newSelector(&fakeProber{hasGPU: true, freeMB: 8192}, config.SelectorTuning{})

	chain := s.Probe()
	want := []Config{
		{Device: "cuda", ComputeType: "float16", ThroughputClass: "fast"},
		{Device: "cuda", ComputeType: "int8_float32", ThroughputClass: "fast"},
		{Device: "cuda", ComputeType: "float32", ThroughputClass: "medium"},
		{Device: "cpu", ComputeType: "int8", ThroughputClass: "slow"},
	}
	assert.Equal(t, want, chain)
}

func TestProbe_WithoutGPU(t *testing.T) {
	s := newSelector(&fakeProber{hasGPU: false}, config.SelectorTuning{})

	chain := s.Probe()
	assert.Equal(t, []Config{{Device: "cpu", ComputeType: "int8", ThroughputClass: "slow"}}, chain)
}

func TestProbe_Deterministic(t *testing.T) {
	s := newSelector(&fakeProber{hasGPU: true, freeMB: 8192}, config.SelectorTuning{})
	assert.Equal(t, s.Probe(), s.Probe())
}

func TestProbe_DisableGPUOverride(t *testing.T) {
	s := newSelector(&fakeProber{hasGPU: true, freeMB: 8192},
		config.SelectorTuning{DisableGPU: true})

	chain := s.Probe()
	assert.Len(t, chain, 1)
	assert.Equal(t, "cpu", chain[0].Device)
}

func TestProbe_ConfiguredChainGetsCPUFloor(t *testing.T) {
	s := newSelector(&fakeProber{hasGPU: true, freeMB: 8192}, config.SelectorTuning{
		Chain: []config.ChainEntry{
			{Device: "cuda", ComputeType: "float32"},
		},
	})

	chain := s.Probe()
	assert.Len(t, chain, 2)
	assert.Equal(t, "cuda", chain[0].Device)
	assert.Equal(t, "cpu", chain[1].Device, "configured chain must end at the CPU floor")
}

func TestTest(t *testing.T) {
	tests := []struct {
		name   string
		prober fakeProber
		tuning config.SelectorTuning
		cfg    Config
		want   bool
	}{
		{"cpu always viable", fakeProber{}, config.SelectorTuning{},
			Config{Device: "cpu", ComputeType: "int8"}, true},
		{"cuda with memory", fakeProber{hasGPU: true, freeMB: 4096}, config.SelectorTuning{},
			Config{Device: "cuda", ComputeType: "float16"}, true},
		{"cuda without gpu", fakeProber{hasGPU: false}, config.SelectorTuning{},
			Config{Device: "cuda", ComputeType: "float16"}, false},
		{"cuda low memory", fakeProber{hasGPU: true, freeMB: 512}, config.SelectorTuning{},
			Config{Device: "cuda", ComputeType: "float16"}, false},
		{"cuda memory threshold override", fakeProber{hasGPU: true, freeMB: 512},
			config.SelectorTuning{MinFreeMemoryMB: 256},
			Config{Device: "cuda", ComputeType: "float16"}, true},
		{"cuda disabled by tuning", fakeProber{hasGPU: true, freeMB: 4096},
			config.SelectorTuning{DisableGPU: true},
			Config{Device: "cuda", ComputeType: "float16"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSelector(&tt.prober, tt.tuning)
			assert.Equal(t, tt.want, s.Test(tt.cfg))
		})
	}
}

func TestRecommend(t *testing.T) {
	s := newSelector(&fakeProber{hasGPU: true, freeMB: 8192}, config.SelectorTuning{})
	got := s.Recommend()
	assert.Equal(t, "cuda", got.Device)
	assert.Equal(t, "float16", got.ComputeType)

	s = newSelector(&fakeProber{hasGPU: false}, config.SelectorTuning{})
	got = s.Recommend()
	assert.Equal(t, "cpu", got.Device)
	assert.Equal(t, "int8", got.ComputeType)
}
