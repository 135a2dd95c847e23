package sim

import (
	"math"
	"math/rand"
)

// OutageStats is the per-source availability summary of one run.
type OutageStats struct {
	Count        int     `json:"count" yaml:"count"`               // available → unavailable transitions
	Downtime     float64 `json:"downtime" yaml:"downtime"`         // cumulative unavailable time
	Availability float64 `json:"availability" yaml:"availability"` // 1 - Downtime/horizon
}

// sourceAvailability is the two-state machine of one outage-prone source.
type sourceAvailability struct {
	onsetRate    float64
	meanDuration float64

	down     bool
	downAt   float64
	count    int
	downtime float64
}

// OutageModel tracks availability of every energy source.
//
// Only sources with a configured onset rate can fail. Onsets form a Poisson
// process independent of the current state: an onset that finds its source
// already down changes nothing, but the next onset is still drawn.
type OutageModel struct {
	sources map[EnergySource]*sourceAvailability
	order   []EnergySource // outage-prone sources in AllSources order
}

// NewOutageModel builds the model from the onset-rate and mean-duration mappings.
// A source with an onset rate but no duration uses a mean duration of 10.
func NewOutageModel(rates, durations map[EnergySource]float64) *OutageModel {
	m := &OutageModel{sources: make(map[EnergySource]*sourceAvailability)}
	for _, src := range AllSources {
		rate, ok := rates[src]
		if !ok {
			continue
		}
		dur, ok := durations[src]
		if !ok {
			dur = defaultOutageMeanDuration
		}
		m.sources[src] = &sourceAvailability{onsetRate: rate, meanDuration: dur}
		m.order = append(m.order, src)
	}
	return m
}

// Sources returns the outage-prone sources in deterministic order.
func (m *OutageModel) Sources() []EnergySource {
	return m.order
}

// Reset marks every source available and clears the counters.
func (m *OutageModel) Reset() {
	for _, s := range m.sources {
		rate, dur := s.onsetRate, s.meanDuration
		*s = sourceAvailability{onsetRate: rate, meanDuration: dur}
	}
}

// Available reports whether src can currently be dispatched to.
// Sources without outage configuration are always available.
func (m *OutageModel) Available(src EnergySource) bool {
	s, ok := m.sources[src]
	return !ok || !s.down
}

// NextOnset draws the time of the next onset of src after now.
// Returns +Inf for sources that never fail.
func (m *OutageModel) NextOnset(src EnergySource, now float64, rng *rand.Rand) float64 {
	s, ok := m.sources[src]
	if !ok {
		return math.Inf(1)
	}
	return now + expRate(rng, s.onsetRate)
}

// Onset applies an onset event for src at now. If src was available it goes
// down and the repair time is returned with transitioned=true; otherwise the
// onset is a no-op renewal.
func (m *OutageModel) Onset(src EnergySource, now float64, rng *rand.Rand) (repairAt float64, transitioned bool) {
	s, ok := m.sources[src]
	if !ok || s.down {
		return 0, false
	}
	s.down = true
	s.downAt = now
	s.count++
	return now + expMean(rng, s.meanDuration), true
}

// Repair applies a repair event for src at now, accruing the outage duration.
// Returns false if src was not down.
func (m *OutageModel) Repair(src EnergySource, now float64) bool {
	s, ok := m.sources[src]
	if !ok || !s.down {
		return false
	}
	s.downtime += now - s.downAt
	s.down = false
	return true
}

// Finalize closes every open outage at the horizon as if repaired there.
func (m *OutageModel) Finalize(horizon float64) {
	for _, src := range m.order {
		s := m.sources[src]
		if s.down {
			s.downtime += math.Max(0, horizon-s.downAt)
			s.down = false
		}
	}
}

// Stats returns the availability summary for every energy source, including
// those that never fail (count 0, availability 1).
func (m *OutageModel) Stats(horizon float64) map[EnergySource]OutageStats {
	out := make(map[EnergySource]OutageStats, len(AllSources))
	for _, src := range AllSources {
		st := OutageStats{Availability: 1}
		if s, ok := m.sources[src]; ok {
			st.Count = s.count
			st.Downtime = s.downtime
			if horizon > 0 {
				st.Availability = 1 - s.downtime/horizon
			}
		}
		out[src] = st
	}
	return out
}
