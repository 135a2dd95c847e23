package sim

import (
	"fmt"
	"sort"
)

// Scheduler holds queued requests and decides which one is dispatched next.
// The variant set is closed: see SchedulerKind and NewScheduler.
//
// Enqueue never fails. Dequeue returns nil when the scheduler is empty.
// The now argument is accepted by every variant but no current variant reads it.
// Reset returns the scheduler to its freshly constructed state.
type Scheduler interface {
	Name() string
	Enqueue(req *Request)
	Dequeue(now float64) *Request
	Len() int
	Reset()
}

// SchedulerKind names one of the six scheduler variants.
type SchedulerKind string

const (
	KindFIFO    SchedulerKind = "fifo"
	KindNPPS    SchedulerKind = "npps"
	KindEDF     SchedulerKind = "edf"
	KindWRR     SchedulerKind = "wrr"
	KindWRREDF  SchedulerKind = "wrr-edf"
	KindWRRNPPS SchedulerKind = "wrr-npps"
)

// AllSchedulerKinds lists every variant in reporting order.
var AllSchedulerKinds = []SchedulerKind{KindFIFO, KindNPPS, KindEDF, KindWRR, KindWRREDF, KindWRRNPPS}

// ValidSchedulers is the set of recognized scheduler names.
// Empty string defaults to fifo.
var ValidSchedulers = map[string]bool{
	"":               true,
	string(KindFIFO): true, string(KindNPPS): true, string(KindEDF): true,
	string(KindWRR): true, string(KindWRREDF): true, string(KindWRRNPPS): true,
}

// IsValidScheduler returns true if name is a recognized scheduler name.
func IsValidScheduler(name string) bool {
	return ValidSchedulers[name]
}

// ValidSchedulerNames returns the sorted non-empty scheduler names, for error messages and help text.
func ValidSchedulerNames() []string {
	names := make([]string, 0, len(ValidSchedulers))
	for name := range ValidSchedulers {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GroupWeight assigns a round-robin weight to a fairness group.
// A slice of GroupWeight is used instead of a map because schedule order follows configuration order.
type GroupWeight struct {
	Group  string `yaml:"group" json:"group"`
	Weight int    `yaml:"weight" json:"weight"`
}

// DefaultGroupWeights returns the reference weighting {A:2, B:1}.
func DefaultGroupWeights() []GroupWeight {
	return []GroupWeight{{Group: "A", Weight: 2}, {Group: "B", Weight: 1}}
}

// ValidateGroupWeights rejects empty group labels and duplicate groups.
// Weights below 1 are accepted here and floored to 1 when the schedule is built.
func ValidateGroupWeights(weights []GroupWeight) error {
	seen := make(map[string]bool, len(weights))
	for i, gw := range weights {
		if gw.Group == "" {
			return fmt.Errorf("%w: weights[%d] has an empty group label", ErrInvalidConfig, i)
		}
		if seen[gw.Group] {
			return fmt.Errorf("%w: group %q listed more than once in weights", ErrInvalidConfig, gw.Group)
		}
		seen[gw.Group] = true
	}
	return nil
}

// NewScheduler creates a Scheduler by name.
// weights is only used by the WRR family; nil or empty selects DefaultGroupWeights.
// Empty name defaults to fifo.
func NewScheduler(name string, weights []GroupWeight) (Scheduler, error) {
	if !IsValidScheduler(name) {
		return nil, fmt.Errorf("%w: unknown scheduler %q (valid: %v)", ErrInvalidConfig, name, ValidSchedulerNames())
	}
	kind := SchedulerKind(name)
	switch kind {
	case "", KindFIFO:
		return NewFIFOScheduler(), nil
	case KindNPPS:
		return NewNPPSScheduler(), nil
	case KindEDF:
		return NewEDFScheduler(), nil
	}
	if len(weights) == 0 {
		weights = DefaultGroupWeights()
	}
	if err := ValidateGroupWeights(weights); err != nil {
		return nil, err
	}
	switch kind {
	case KindWRR:
		return NewWRRScheduler(weights), nil
	case KindWRREDF:
		return NewWRREDFScheduler(weights), nil
	case KindWRRNPPS:
		return NewWRRNPPSScheduler(weights), nil
	default:
		panic(fmt.Sprintf("unhandled scheduler %q", name))
	}
}

// QueueScheduler is a single ordered queue. FIFO, NPPS and EDF differ only in the ordering.
type QueueScheduler struct {
	kind  SchedulerKind
	queue *RequestQueue
	seq   uint64
}

// NewFIFOScheduler orders by arrival time, then insertion order.
func NewFIFOScheduler() *QueueScheduler {
	return &QueueScheduler{kind: KindFIFO, queue: newRequestQueue(byArrival)}
}

// NewNPPSScheduler is non-preemptive priority: priority descending, then arrival time, then insertion order.
func NewNPPSScheduler() *QueueScheduler {
	return &QueueScheduler{kind: KindNPPS, queue: newRequestQueue(byPriority)}
}

// NewEDFScheduler is earliest-deadline-first: deadline ascending, then arrival time, then insertion order.
func NewEDFScheduler() *QueueScheduler {
	return &QueueScheduler{kind: KindEDF, queue: newRequestQueue(byDeadline)}
}

func (s *QueueScheduler) Name() string { return string(s.kind) }

func (s *QueueScheduler) Enqueue(req *Request) {
	s.queue.PushRequest(req, s.seq)
	s.seq++
}

func (s *QueueScheduler) Dequeue(_ float64) *Request {
	return s.queue.PopRequest()
}

func (s *QueueScheduler) Len() int { return s.queue.Len() }

func (s *QueueScheduler) Reset() {
	s.queue.Clear()
	s.seq = 0
}
