// Tracks running aggregates during a run and composes the final Result record.

package sim

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/gridqueue/gridqueue-sim/sim/trace"
)

// Distribution captures statistical summary of a metric.
type Distribution struct {
	Mean  float64 `json:"mean" yaml:"mean"`
	P50   float64 `json:"p50" yaml:"p50"`
	P95   float64 `json:"p95" yaml:"p95"`
	P99   float64 `json:"p99" yaml:"p99"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Count int     `json:"count" yaml:"count"`
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// ClassStats holds mean wait and response for one priority class or fairness group.
// Means are 0 when Count is 0.
type ClassStats struct {
	AvgWait     float64 `json:"avg_wait" yaml:"avg_wait"`
	AvgResponse float64 `json:"avg_response" yaml:"avg_response"`
	Count       int     `json:"n" yaml:"n"`
}

// TimelinePoint is one queue-length sample.
type TimelinePoint struct {
	Time     float64 `json:"t" yaml:"t"`
	QueueLen int     `json:"queue_len" yaml:"queue_len"`
}

// Result is the flat aggregate produced once at the end of a run.
type Result struct {
	Scheduler string  `json:"scheduler" yaml:"scheduler"`
	Seed      int64   `json:"seed" yaml:"seed"`
	Horizon   float64 `json:"horizon" yaml:"horizon"`

	Arrivals           int  `json:"arrivals" yaml:"arrivals"`
	Processed          int  `json:"processed" yaml:"processed"`
	DeadlineDrops      int  `json:"drops_deadline" yaml:"drops_deadline"`
	StillQueued        int  `json:"still_queued" yaml:"still_queued"`
	InServiceAtHorizon bool `json:"in_service_at_horizon" yaml:"in_service_at_horizon"`

	AvgWait     float64 `json:"avg_wait" yaml:"avg_wait"`
	AvgResponse float64 `json:"avg_response" yaml:"avg_response"`
	AvgService  float64 `json:"avg_service" yaml:"avg_service"`
	Utilization float64 `json:"utilization" yaml:"utilization"`

	EnergyMix   map[EnergySource]float64 `json:"energy_mix" yaml:"energy_mix"`
	SourceUsage map[EnergySource]int     `json:"source_usage" yaml:"source_usage"`

	ByPriority map[int]ClassStats    `json:"by_priority" yaml:"by_priority"`
	ByGroup    map[string]ClassStats `json:"by_group" yaml:"by_group"`

	Outages  map[EnergySource]OutageStats `json:"outages" yaml:"outages"`
	Reroutes int                          `json:"reroute_due_outage" yaml:"reroute_due_outage"`

	WaitDistribution     Distribution `json:"wait_distribution" yaml:"wait_distribution"`
	ResponseDistribution Distribution `json:"response_distribution" yaml:"response_distribution"`

	QueueTimeline []TimelinePoint `json:"queue_timeline,omitempty" yaml:"queue_timeline,omitempty"`

	Trace *trace.SimulationTrace `json:"-" yaml:"-"`
}

// EnergyMixSum returns the sum of the energy mix fractions.
func (r *Result) EnergyMixSum() float64 {
	total := 0.0
	for _, src := range AllSources {
		total += r.EnergyMix[src]
	}
	return total
}

// classAccumulator keeps running sums for one priority class or group.
type classAccumulator struct {
	waitSum     float64
	responseSum float64
	n           int
}

func (a *classAccumulator) add(wait, response float64) {
	a.waitSum += wait
	a.responseSum += response
	a.n++
}

func (a *classAccumulator) stats() ClassStats {
	if a.n == 0 {
		return ClassStats{}
	}
	return ClassStats{
		AvgWait:     a.waitSum / float64(a.n),
		AvgResponse: a.responseSum / float64(a.n),
		Count:       a.n,
	}
}

// Metrics aggregates statistics about the simulation
// for final reporting.
type Metrics struct {
	Arrivals      int
	DeadlineDrops int
	Reroutes      int

	waitSum, responseSum, serviceSum float64
	waits, responses                 []float64

	usage      map[EnergySource]int
	byPriority map[int]*classAccumulator
	byGroup    map[string]*classAccumulator
	groupOrder []string

	busyTime       float64
	lastBusyChange float64

	timeline []TimelinePoint
}

// NewMetrics creates zeroed Metrics.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.reset()
	return m
}

func (m *Metrics) reset() {
	*m = Metrics{
		usage:      make(map[EnergySource]int, len(AllSources)),
		byPriority: make(map[int]*classAccumulator),
		byGroup:    make(map[string]*classAccumulator),
	}
	for p := PriorityLow; p <= PriorityHigh; p++ {
		m.byPriority[p] = &classAccumulator{}
	}
}

// Processed returns the number of completed services.
func (m *Metrics) Processed() int {
	return len(m.responses)
}

// recordArrival registers the request's group so groups without completions still report zeros.
func (m *Metrics) recordArrival(req *Request) {
	m.Arrivals++
	m.group(req.Group)
}

func (m *Metrics) group(name string) *classAccumulator {
	acc, ok := m.byGroup[name]
	if !ok {
		acc = &classAccumulator{}
		m.byGroup[name] = acc
		m.groupOrder = append(m.groupOrder, name)
	}
	return acc
}

// recordCompletion folds a finished request into every running aggregate.
func (m *Metrics) recordCompletion(req *Request, serviceTime float64) {
	wait := req.WaitTime()
	response := req.ResponseTime()

	m.waitSum += wait
	m.responseSum += response
	m.serviceSum += serviceTime
	m.waits = append(m.waits, wait)
	m.responses = append(m.responses, response)
	m.usage[req.Source]++

	acc, ok := m.byPriority[req.Priority]
	if !ok {
		acc = &classAccumulator{}
		m.byPriority[req.Priority] = acc
	}
	acc.add(wait, response)
	m.group(req.Group).add(wait, response)
}

// markBusy records the idle→busy transition time.
func (m *Metrics) markBusy(now float64) {
	m.lastBusyChange = now
}

// markIdle accrues the busy interval that ends at now.
func (m *Metrics) markIdle(now float64) {
	m.busyTime += now - m.lastBusyChange
	m.lastBusyChange = now
}

func (m *Metrics) sampleQueue(now float64, queueLen int) {
	m.timeline = append(m.timeline, TimelinePoint{Time: now, QueueLen: queueLen})
}

// compose builds the Result. busy reports whether a service interval is still open at the horizon.
func (m *Metrics) compose(horizon float64, busy bool) *Result {
	if busy {
		m.busyTime += max(0, horizon-m.lastBusyChange)
		m.lastBusyChange = horizon
	}

	n := m.Processed()
	r := &Result{
		Horizon:              horizon,
		Arrivals:             m.Arrivals,
		Processed:            n,
		DeadlineDrops:        m.DeadlineDrops,
		Reroutes:             m.Reroutes,
		EnergyMix:            make(map[EnergySource]float64, len(AllSources)),
		SourceUsage:          make(map[EnergySource]int, len(AllSources)),
		ByPriority:           make(map[int]ClassStats, len(m.byPriority)),
		ByGroup:              make(map[string]ClassStats, len(m.byGroup)),
		WaitDistribution:     NewDistribution(m.waits),
		ResponseDistribution: NewDistribution(m.responses),
	}
	if n > 0 {
		r.AvgWait = m.waitSum / float64(n)
		r.AvgResponse = m.responseSum / float64(n)
		r.AvgService = m.serviceSum / float64(n)
	}
	if horizon > 0 {
		r.Utilization = m.busyTime / horizon
	}
	for _, src := range AllSources {
		r.SourceUsage[src] = m.usage[src]
		if n > 0 {
			r.EnergyMix[src] = float64(m.usage[src]) / float64(n)
		} else {
			r.EnergyMix[src] = 0
		}
	}
	for p, acc := range m.byPriority {
		r.ByPriority[p] = acc.stats()
	}
	for _, g := range m.groupOrder {
		r.ByGroup[g] = m.byGroup[g].stats()
	}
	if m.timeline != nil {
		r.QueueTimeline = make([]TimelinePoint, len(m.timeline))
		copy(r.QueueTimeline, m.timeline)
	}
	return r
}
