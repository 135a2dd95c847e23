package sim

import "fmt"

// EventKind identifies what an Event does when it fires.
type EventKind int

const (
	EventArrival EventKind = iota
	EventDeparture
	EventOutageOnset
	EventOutageRepair
)

func (k EventKind) String() string {
	switch k {
	case EventArrival:
		return "arrival"
	case EventDeparture:
		return "departure"
	case EventOutageOnset:
		return "outage_onset"
	case EventOutageRepair:
		return "outage_repair"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one scheduled occurrence in simulated time.
// Seq is the insertion sequence assigned by the EventHeap; events with equal
// Time fire in Seq order.
type Event struct {
	Time    float64
	Seq     uint64
	Kind    EventKind
	Request *Request     // departure payload
	Source  EnergySource // outage payload
}

func (e Event) String() string {
	switch e.Kind {
	case EventDeparture:
		return fmt.Sprintf("%s(req=%d)@%.4f", e.Kind, e.Request.ID, e.Time)
	case EventOutageOnset, EventOutageRepair:
		return fmt.Sprintf("%s(%s)@%.4f", e.Kind, e.Source, e.Time)
	default:
		return fmt.Sprintf("%s@%.4f", e.Kind, e.Time)
	}
}
