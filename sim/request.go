// Defines the Request, Consumer and EnergySource records that flow through the simulation.
// Requests are synthesized at arrival, queued in exactly one scheduler, dispatched once
// and completed once.

package sim

import (
	"fmt"
)

// EnergySource names one of the three fixed supply kinds a request can be dispatched to.
type EnergySource string

const (
	SourceRenewable    EnergySource = "renewable"
	SourceBattery      EnergySource = "battery"
	SourceNonRenewable EnergySource = "nonrenewable"
)

// AllSources lists every energy source in reporting order.
// Iteration over sources always uses this slice, never a map, so that
// categorical draws and result composition are deterministic.
var AllSources = []EnergySource{SourceRenewable, SourceBattery, SourceNonRenewable}

// IsValidSource returns true if s names one of the three energy sources.
func IsValidSource(s EnergySource) bool {
	for _, src := range AllSources {
		if src == s {
			return true
		}
	}
	return false
}

// intermittent reports whether dispatching to s adds the stochastic source latency.
func (s EnergySource) intermittent() bool {
	return s == SourceRenewable || s == SourceBattery
}

// Priority classes. Higher is more urgent.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// Consumer is an arrival source identity. Immutable after creation.
type Consumer struct {
	ID         int
	DemandMean float64 // documentation only; demand draws use a fixed mean
}

// Request models one unit of work.
//
// Invariant: ArrivalTime <= StartServiceTime <= FinishTime once the latter are set,
// Priority is in [1,3] and Deadline > ArrivalTime.
type Request struct {
	ID          int64   // monotonic, starts at 1
	ConsumerID  int     // owning consumer
	ArrivalTime float64 // simulated time of arrival
	Demand      float64 // informational, never used by scheduling math
	Priority    int     // 1..3, higher = more urgent
	Deadline    float64 // absolute simulated time
	Group       string  // fairness group tag used by the WRR family

	Source           EnergySource // set at dispatch
	StartServiceTime float64      // set at dispatch
	FinishTime       float64      // set at completion
	Dispatched       bool
	Finished         bool
}

// NewRequest creates a queued Request with the required identity and timing fields.
// The group tag is derived from the consumer id via GroupForConsumer.
func NewRequest(id int64, consumerID int, arrival, demand float64, priority int, deadline float64) *Request {
	return &Request{
		ID:          id,
		ConsumerID:  consumerID,
		ArrivalTime: arrival,
		Demand:      demand,
		Priority:    priority,
		Deadline:    deadline,
		Group:       GroupForConsumer(consumerID),
	}
}

// GroupForConsumer maps a consumer id to its fairness group: even ids go to "A", odd to "B".
func GroupForConsumer(consumerID int) string {
	if consumerID%2 == 0 {
		return "A"
	}
	return "B"
}

// WaitTime returns StartServiceTime - ArrivalTime, or 0 if the request was never dispatched.
func (req *Request) WaitTime() float64 {
	if !req.Dispatched {
		return 0
	}
	return req.StartServiceTime - req.ArrivalTime
}

// ResponseTime returns FinishTime - ArrivalTime, or 0 if the request has not completed.
func (req *Request) ResponseTime() float64 {
	if !req.Finished {
		return 0
	}
	return req.FinishTime - req.ArrivalTime
}

// This method returns a human-readable string representation of a Request.
func (req Request) String() string {
	return fmt.Sprintf("Request: (ID: %d, Group: %s, Priority: %d, ArrivalTime: %.3f, Deadline: %.3f)",
		req.ID, req.Group, req.Priority, req.ArrivalTime, req.Deadline)
}
