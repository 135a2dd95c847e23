package sim

import "container/heap"

// EventHeap implements a priority queue with deterministic ordering
// Ordering: time → insertion sequence
//
// Events later than the horizon are discarded at schedule time and never enter the heap.
type EventHeap struct {
	events  []Event
	horizon float64
	nextSeq uint64
}

// NewEventHeap creates a new event heap that drops events scheduled after horizon
func NewEventHeap(horizon float64) *EventHeap {
	h := &EventHeap{
		events:  make([]Event, 0),
		horizon: horizon,
	}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *EventHeap) Len() int {
	return len(h.events)
}

// Less implements heap.Interface with deterministic ordering
func (h *EventHeap) Less(i, j int) bool {
	ei, ej := h.events[i], h.events[j]

	// Primary: time (lower first)
	if ei.Time != ej.Time {
		return ei.Time < ej.Time
	}

	// Secondary: insertion sequence (lower first)
	return ei.Seq < ej.Seq
}

// Swap implements heap.Interface
func (h *EventHeap) Swap(i, j int) {
	h.events[i], h.events[j] = h.events[j], h.events[i]
}

// Push implements heap.Interface
func (h *EventHeap) Push(x interface{}) {
	h.events = append(h.events, x.(Event))
}

// Pop implements heap.Interface
func (h *EventHeap) Pop() interface{} {
	old := h.events
	n := len(old)
	item := old[n-1]
	h.events = old[0 : n-1]
	return item
}

// Schedule stamps e with the next insertion sequence and adds it to the heap.
// Returns false if e.Time is beyond the horizon, in which case e is discarded.
// The sequence counter only advances for accepted events.
func (h *EventHeap) Schedule(e Event) bool {
	if e.Time > h.horizon {
		return false
	}
	e.Seq = h.nextSeq
	h.nextSeq++
	heap.Push(h, e)
	return true
}

// PopNext removes and returns the next event; ok is false if the heap is empty
func (h *EventHeap) PopNext() (Event, bool) {
	if h.Len() == 0 {
		return Event{}, false
	}
	return heap.Pop(h).(Event), true
}

// Peek returns the next event without removing it
func (h *EventHeap) Peek() (Event, bool) {
	if h.Len() == 0 {
		return Event{}, false
	}
	return h.events[0], true
}

// Reset empties the heap and rewinds the sequence counter
func (h *EventHeap) Reset(horizon float64) {
	h.events = h.events[:0]
	h.horizon = horizon
	h.nextSeq = 0
}
