package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridqueue/gridqueue-sim/sim/trace"
)

// ExperimentBundle holds one experiment's configuration, loadable from a YAML file.
// Nil pointer fields mean "not set in YAML"; they do not override the base Config.
// String fields use empty string for "not set".
type ExperimentBundle struct {
	Scheduler  string          `yaml:"scheduler"`
	Weights    GroupWeights    `yaml:"weights"`
	Simulation SimulationPatch `yaml:"simulation"`
	Outages    *OutagePatch    `yaml:"outages"`
}

// SimulationPatch overrides scalar engine options.
type SimulationPatch struct {
	Horizon          *float64                 `yaml:"horizon"`
	Seed             *int64                   `yaml:"seed"`
	ArrivalRate      *float64                 `yaml:"arrival_rate"`
	ControllerRate   *float64                 `yaml:"controller_rate"`
	SourceRate       *float64                 `yaml:"source_rate"`
	Overhead         *float64                 `yaml:"overhead"`
	DeadlineScale    *float64                 `yaml:"deadline_scale"`
	Consumers        *int                     `yaml:"consumers"`
	DispatchProbs    map[EnergySource]float64 `yaml:"dispatch_probs"`
	ExpireOnDeadline *bool                    `yaml:"expire_on_deadline"`
	RecordTimeline   *bool                    `yaml:"record_timeline"`
	TraceLevel       string                   `yaml:"trace_level"`
}

// OutagePatch replaces both outage mappings when present.
// An outages block with empty mappings disables outages entirely.
type OutagePatch struct {
	Rate         map[EnergySource]float64 `yaml:"rate"`
	MeanDuration map[EnergySource]float64 `yaml:"mean_duration"`
}

// GroupWeights is an ordered weight list. In YAML it is written either as a
// mapping (group: weight), whose key order is preserved, or as a sequence of
// {group, weight} entries.
type GroupWeights []GroupWeight

// UnmarshalYAML implements yaml.Unmarshaler, preserving mapping order.
func (gw *GroupWeights) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		out := make(GroupWeights, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			var w int
			if err := value.Content[i+1].Decode(&w); err != nil {
				return fmt.Errorf("weight for group %q: %w", value.Content[i].Value, err)
			}
			out = append(out, GroupWeight{Group: value.Content[i].Value, Weight: w})
		}
		*gw = out
		return nil
	case yaml.SequenceNode:
		var list []GroupWeight
		if err := value.Decode(&list); err != nil {
			return err
		}
		*gw = list
		return nil
	default:
		return fmt.Errorf("line %d: weights must be a mapping or a sequence", value.Line)
	}
}

// LoadBundle reads and strictly parses a YAML experiment file.
// Unknown fields are errors so that typos do not silently fall back to defaults.
func LoadBundle(path string) (*ExperimentBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment config: %w", err)
	}
	return ParseBundle(data)
}

// ParseBundle strictly parses YAML experiment data.
func ParseBundle(data []byte) (*ExperimentBundle, error) {
	var bundle ExperimentBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing experiment config: %w", err)
	}
	return &bundle, nil
}

// Validate checks scheduler name and weights. Engine parameters are checked by Config.Validate after ApplyTo.
func (b *ExperimentBundle) Validate() error {
	if !IsValidScheduler(b.Scheduler) {
		return fmt.Errorf("%w: unknown scheduler %q", ErrInvalidConfig, b.Scheduler)
	}
	if err := ValidateGroupWeights(b.Weights); err != nil {
		return err
	}
	if !trace.IsValidTraceLevel(b.Simulation.TraceLevel) {
		return fmt.Errorf("%w: unknown trace level %q", ErrInvalidConfig, b.Simulation.TraceLevel)
	}
	return nil
}

// ApplyTo overlays every set field of the bundle onto cfg.
func (b *ExperimentBundle) ApplyTo(cfg *Config) {
	p := b.Simulation
	setFloat(&cfg.Horizon, p.Horizon)
	setFloat(&cfg.ArrivalRate, p.ArrivalRate)
	setFloat(&cfg.ControllerRate, p.ControllerRate)
	setFloat(&cfg.SourceRate, p.SourceRate)
	setFloat(&cfg.Overhead, p.Overhead)
	setFloat(&cfg.DeadlineScale, p.DeadlineScale)
	if p.Seed != nil {
		cfg.Seed = *p.Seed
	}
	if p.Consumers != nil {
		cfg.NumConsumers = *p.Consumers
	}
	if p.DispatchProbs != nil {
		cfg.DispatchProbs = cloneSourceMap(p.DispatchProbs)
	}
	if p.ExpireOnDeadline != nil {
		cfg.ExpireOnDeadline = *p.ExpireOnDeadline
	}
	if p.RecordTimeline != nil {
		cfg.RecordTimeline = *p.RecordTimeline
	}
	if p.TraceLevel != "" {
		cfg.TraceLevel = trace.TraceLevel(p.TraceLevel)
	}
	if b.Outages != nil {
		cfg.OutageRate = cloneSourceMap(b.Outages.Rate)
		cfg.OutageMeanDuration = cloneSourceMap(b.Outages.MeanDuration)
		if cfg.OutageRate == nil {
			cfg.OutageRate = map[EnergySource]float64{}
		}
		if cfg.OutageMeanDuration == nil {
			cfg.OutageMeanDuration = map[EnergySource]float64{}
		}
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
