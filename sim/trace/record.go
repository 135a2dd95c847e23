// Package trace provides decision-trace recording for dispatch analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// DispatchRecord captures a single dispatch decision.
type DispatchRecord struct {
	RequestID int64    `json:"request_id" yaml:"request_id"`
	Clock     float64  `json:"clock" yaml:"clock"`
	Scheduler string   `json:"scheduler" yaml:"scheduler"`
	Group     string   `json:"group" yaml:"group"`
	Priority  int      `json:"priority" yaml:"priority"`
	Source    string   `json:"source" yaml:"source"`
	Available []string `json:"available" yaml:"available"` // sources eligible for the weighted draw
	Rerouted  bool     `json:"rerouted" yaml:"rerouted"`   // chosen source was marked unavailable
	Wait      float64  `json:"wait" yaml:"wait"`
}

// DropRecord captures a request discarded because its deadline had passed.
type DropRecord struct {
	RequestID int64   `json:"request_id" yaml:"request_id"`
	Clock     float64 `json:"clock" yaml:"clock"`
	Deadline  float64 `json:"deadline" yaml:"deadline"`
	Lateness  float64 `json:"lateness" yaml:"lateness"` // Clock - Deadline
}

// OutageRecord captures a source availability transition.
type OutageRecord struct {
	Source    string  `json:"source" yaml:"source"`
	Clock     float64 `json:"clock" yaml:"clock"`
	Available bool    `json:"available" yaml:"available"` // state after the transition
}
