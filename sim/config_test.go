package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridqueue/gridqueue-sim/sim/trace"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 1000.0, cfg.Horizon)
	assert.True(t, cfg.ExpireOnDeadline)
}

func TestConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero horizon", func(c *Config) { c.Horizon = 0 }},
		{"infinite horizon", func(c *Config) { c.Horizon = math.Inf(1) }},
		{"negative arrival rate", func(c *Config) { c.ArrivalRate = -0.5 }},
		{"zero controller rate", func(c *Config) { c.ControllerRate = 0 }},
		{"NaN source rate", func(c *Config) { c.SourceRate = math.NaN() }},
		{"zero deadline scale", func(c *Config) { c.DeadlineScale = 0 }},
		{"negative overhead", func(c *Config) { c.Overhead = -1 }},
		{"no consumers", func(c *Config) { c.NumConsumers = 0 }},
		{"unknown dispatch source", func(c *Config) { c.DispatchProbs = map[EnergySource]float64{"solar": 1} }},
		{"negative dispatch weight", func(c *Config) { c.DispatchProbs[SourceBattery] = -1 }},
		{"zero dispatch sum", func(c *Config) {
			c.DispatchProbs = map[EnergySource]float64{SourceRenewable: 0, SourceBattery: 0}
		}},
		{"nonrenewable outage", func(c *Config) { c.OutageRate[SourceNonRenewable] = 0.1 }},
		{"negative outage duration", func(c *Config) { c.OutageMeanDuration[SourceBattery] = -3 }},
		{"unknown trace level", func(c *Config) { c.TraceLevel = "verbose" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestConfig_ZeroOverheadAndEmptyOutagesAreValid(t *testing.T) {
	cfg := DefaultConfig().WithoutOutages()
	cfg.Overhead = 0
	cfg.TraceLevel = trace.TraceLevelDecisions
	assert.NoError(t, cfg.Validate())

	cfg.OutageRate, cfg.OutageMeanDuration = nil, nil
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NormalizedDispatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DispatchProbs = map[EnergySource]float64{SourceRenewable: 3, SourceBattery: 1}

	norm := cfg.normalizedDispatch()

	assert.InDelta(t, 0.75, norm[SourceRenewable], 1e-12)
	assert.InDelta(t, 0.25, norm[SourceBattery], 1e-12)
	assert.Zero(t, norm[SourceNonRenewable])
}

func TestConfig_CloneIsDeep(t *testing.T) {
	orig := DefaultConfig()
	clone := orig.Clone()
	clone.DispatchProbs[SourceRenewable] = 99
	clone.OutageRate[SourceBattery] = 99

	assert.Equal(t, 0.6, orig.DispatchProbs[SourceRenewable])
	assert.Equal(t, 0.001, orig.OutageRate[SourceBattery])
}

func TestConfig_WithoutOutagesLeavesOriginal(t *testing.T) {
	orig := DefaultConfig()
	off := orig.WithoutOutages()

	assert.Empty(t, off.OutageRate)
	assert.Empty(t, off.OutageMeanDuration)
	assert.Len(t, orig.OutageRate, 2)
}
