package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/gridqueue/gridqueue-sim/sim/trace"
)

// ErrInvalidConfig is wrapped by every configuration error returned from
// Config.Validate, NewScheduler and NewSimulator.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Demand and deadline synthesis constants.
const (
	demandMean          = 1.0
	demandStdDev        = 0.3
	demandFloor         = 0.1
	deadlineOffsetFloor = 0.1

	// defaultOutageMeanDuration applies to a source that has an onset rate but no duration.
	defaultOutageMeanDuration = 10.0
)

// Config groups every recognized engine option.
// Map fields are keyed by energy source; iteration always follows AllSources.
type Config struct {
	Horizon        float64 `yaml:"horizon" json:"horizon"`                 // simulated-time cutoff (> 0)
	Seed           int64   `yaml:"seed" json:"seed"`                       // master seed for all RNG streams
	ArrivalRate    float64 `yaml:"arrival_rate" json:"arrival_rate"`       // Poisson arrival rate (> 0)
	ControllerRate float64 `yaml:"controller_rate" json:"controller_rate"` // Exp rate of the controller stage (> 0)
	SourceRate     float64 `yaml:"source_rate" json:"source_rate"`         // Exp rate of renewable/battery latency (> 0)
	Overhead       float64 `yaml:"overhead" json:"overhead"`               // fixed per-service overhead (>= 0)
	DeadlineScale  float64 `yaml:"deadline_scale" json:"deadline_scale"`   // mean relative deadline (> 0)
	NumConsumers   int     `yaml:"consumers" json:"consumers"`             // number of consumers (>= 1)

	// DispatchProbs is normalized to sum 1 by NewSimulator. Keys must be energy sources.
	DispatchProbs map[EnergySource]float64 `yaml:"dispatch_probs" json:"dispatch_probs"`

	ExpireOnDeadline bool `yaml:"expire_on_deadline" json:"expire_on_deadline"`
	RecordTimeline   bool `yaml:"record_timeline" json:"record_timeline"`

	// Sources absent from OutageRate never fail. nonrenewable may not appear.
	OutageRate         map[EnergySource]float64 `yaml:"outage_rate" json:"outage_rate"`
	OutageMeanDuration map[EnergySource]float64 `yaml:"outage_mean_duration" json:"outage_mean_duration"`

	TraceLevel trace.TraceLevel `yaml:"trace_level" json:"trace_level"`
}

// DefaultConfig returns the reference parameter set.
func DefaultConfig() Config {
	return Config{
		Horizon:        1000,
		Seed:           42,
		ArrivalRate:    0.8,
		ControllerRate: 1.5,
		SourceRate:     0.5,
		Overhead:       0.2,
		DeadlineScale:  5.0,
		NumConsumers:   6,
		DispatchProbs: map[EnergySource]float64{
			SourceRenewable:    0.6,
			SourceBattery:      0.2,
			SourceNonRenewable: 0.2,
		},
		ExpireOnDeadline: true,
		RecordTimeline:   true,
		OutageRate: map[EnergySource]float64{
			SourceRenewable: 0.002,
			SourceBattery:   0.001,
		},
		OutageMeanDuration: map[EnergySource]float64{
			SourceRenewable: 30.0,
			SourceBattery:   20.0,
		},
		TraceLevel: trace.TraceLevelNone,
	}
}

// ReferenceOutageRate and ReferenceOutageDuration are the elevated outage
// parameters used by outage comparison experiments.
func ReferenceOutageRate() map[EnergySource]float64 {
	return map[EnergySource]float64{SourceRenewable: 0.004, SourceBattery: 0.002}
}

func ReferenceOutageDuration() map[EnergySource]float64 {
	return map[EnergySource]float64{SourceRenewable: 25.0, SourceBattery: 15.0}
}

// WithoutOutages returns a copy of c with both outage mappings cleared.
func (c Config) WithoutOutages() Config {
	c.OutageRate = map[EnergySource]float64{}
	c.OutageMeanDuration = map[EnergySource]float64{}
	return c
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	c.DispatchProbs = cloneSourceMap(c.DispatchProbs)
	c.OutageRate = cloneSourceMap(c.OutageRate)
	c.OutageMeanDuration = cloneSourceMap(c.OutageMeanDuration)
	return c
}

func cloneSourceMap(m map[EnergySource]float64) map[EnergySource]float64 {
	if m == nil {
		return nil
	}
	out := make(map[EnergySource]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate checks every parameter range and mapping key.
// All returned errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if !(c.Horizon > 0) || math.IsInf(c.Horizon, 0) {
		return invalid("horizon must be a finite positive number, got %v", c.Horizon)
	}
	if err := positive("arrival_rate", c.ArrivalRate); err != nil {
		return err
	}
	if err := positive("controller_rate", c.ControllerRate); err != nil {
		return err
	}
	if err := positive("source_rate", c.SourceRate); err != nil {
		return err
	}
	if err := positive("deadline_scale", c.DeadlineScale); err != nil {
		return err
	}
	if c.Overhead < 0 || math.IsNaN(c.Overhead) {
		return invalid("overhead must be non-negative, got %v", c.Overhead)
	}
	if c.NumConsumers < 1 {
		return invalid("consumers must be >= 1, got %d", c.NumConsumers)
	}

	total := 0.0
	for src, p := range c.DispatchProbs {
		if !IsValidSource(src) {
			return invalid("unknown energy source %q in dispatch_probs", src)
		}
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return invalid("dispatch_probs[%s] must be a finite non-negative number, got %v", src, p)
		}
		total += p
	}
	if total <= 0 {
		return invalid("dispatch_probs must have a positive sum, got %v", total)
	}

	for _, m := range []struct {
		name   string
		values map[EnergySource]float64
	}{{"outage_rate", c.OutageRate}, {"outage_mean_duration", c.OutageMeanDuration}} {
		for src, v := range m.values {
			if !IsValidSource(src) {
				return invalid("unknown energy source %q in %s", src, m.name)
			}
			if src == SourceNonRenewable {
				return invalid("%s: %s is dispatchable and cannot be subject to outages", m.name, src)
			}
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return invalid("%s[%s] must be a finite non-negative number, got %v", m.name, src, v)
			}
		}
	}

	if !trace.IsValidTraceLevel(string(c.TraceLevel)) {
		return invalid("unknown trace level %q", c.TraceLevel)
	}
	return nil
}

// normalizedDispatch returns DispatchProbs scaled to sum 1. Must be called after Validate.
func (c *Config) normalizedDispatch() map[EnergySource]float64 {
	total := 0.0
	for _, p := range c.DispatchProbs {
		total += p
	}
	out := make(map[EnergySource]float64, len(c.DispatchProbs))
	for src, p := range c.DispatchProbs {
		out[src] = p / total
	}
	return out
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return invalid("%s must be a finite positive number, got %v", name, v)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
