package sim

import (
	"math"
	"testing"
)

func TestEventHeap_OrdersByTimeThenSequence(t *testing.T) {
	// GIVEN events scheduled out of time order with two at the same time
	h := NewEventHeap(100)
	h.Schedule(Event{Time: 5, Kind: EventDeparture, Request: &Request{ID: 1}})
	h.Schedule(Event{Time: 2, Kind: EventArrival})
	h.Schedule(Event{Time: 5, Kind: EventOutageOnset, Source: SourceRenewable})
	h.Schedule(Event{Time: 1, Kind: EventOutageRepair, Source: SourceBattery})

	// WHEN popped
	var kinds []EventKind
	var times []float64
	for {
		ev, ok := h.PopNext()
		if !ok {
			break
		}
		kinds = append(kinds, ev.Kind)
		times = append(times, ev.Time)
	}

	// THEN time ascends and the equal-time pair keeps its scheduling order
	wantKinds := []EventKind{EventOutageRepair, EventArrival, EventDeparture, EventOutageOnset}
	wantTimes := []float64{1, 2, 5, 5}
	for i := range wantKinds {
		if kinds[i] != wantKinds[i] || times[i] != wantTimes[i] {
			t.Errorf("event %d: got %s@%v, want %s@%v", i, kinds[i], times[i], wantKinds[i], wantTimes[i])
		}
	}
}

func TestEventHeap_DiscardsBeyondHorizon(t *testing.T) {
	h := NewEventHeap(10)

	if !h.Schedule(Event{Time: 10, Kind: EventArrival}) {
		t.Error("event exactly at the horizon must be accepted")
	}
	if h.Schedule(Event{Time: 10.0001, Kind: EventArrival}) {
		t.Error("event past the horizon must be discarded")
	}
	if h.Schedule(Event{Time: math.Inf(1), Kind: EventOutageOnset}) {
		t.Error("event at +Inf must be discarded")
	}
	if h.Len() != 1 {
		t.Errorf("Len: got %d, want 1", h.Len())
	}
}

func TestEventHeap_PeekAndReset(t *testing.T) {
	h := NewEventHeap(10)
	if _, ok := h.Peek(); ok {
		t.Error("Peek on empty heap must report !ok")
	}
	h.Schedule(Event{Time: 3, Kind: EventArrival})
	h.Schedule(Event{Time: 1, Kind: EventArrival})

	ev, ok := h.Peek()
	if !ok || ev.Time != 1 || ev.Seq != 1 {
		t.Errorf("Peek: got %+v, want time 1 seq 1", ev)
	}

	h.Reset(50)
	if h.Len() != 0 {
		t.Errorf("Len after Reset: got %d, want 0", h.Len())
	}
	h.Schedule(Event{Time: 40, Kind: EventArrival})
	ev, _ = h.PopNext()
	if ev.Seq != 0 {
		t.Errorf("sequence after Reset: got %d, want 0", ev.Seq)
	}
}

func TestEventKind_String(t *testing.T) {
	if got := EventOutageOnset.String(); got != "outage_onset" {
		t.Errorf("got %q", got)
	}
	if got := EventKind(42).String(); got != "EventKind(42)" {
		t.Errorf("got %q", got)
	}
	ev := Event{Time: 2, Kind: EventDeparture, Request: &Request{ID: 9}}
	if got := ev.String(); got != "departure(req=9)@2.0000" {
		t.Errorf("got %q", got)
	}
}
