package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDispatches    int
	TotalDrops         int
	Reroutes           int
	OutageTransitions  int
	MeanLateness       float64
	MaxLateness        float64
	MeanWait           float64
	SourceDistribution map[string]int // source → count of dispatches
	GroupDistribution  map[string]int // group → count of dispatches
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		SourceDistribution: make(map[string]int),
		GroupDistribution:  make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDispatches = len(st.Dispatches)
	if len(st.Dispatches) > 0 {
		totalWait := 0.0
		for _, d := range st.Dispatches {
			summary.SourceDistribution[d.Source]++
			summary.GroupDistribution[d.Group]++
			totalWait += d.Wait
			if d.Rerouted {
				summary.Reroutes++
			}
		}
		summary.MeanWait = totalWait / float64(len(st.Dispatches))
	}

	summary.TotalDrops = len(st.Drops)
	if len(st.Drops) > 0 {
		totalLateness := 0.0
		for _, d := range st.Drops {
			totalLateness += d.Lateness
			if d.Lateness > summary.MaxLateness {
				summary.MaxLateness = d.Lateness
			}
		}
		summary.MeanLateness = totalLateness / float64(len(st.Drops))
	}

	summary.OutageTransitions = len(st.Outages)

	return summary
}
