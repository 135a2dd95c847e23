// Implements the ordered request queue shared by every scheduler variant.
// Entries carry an insertion sequence so that equal primary keys dequeue in
// enqueue order.

package sim

import (
	"container/heap"
	"fmt"
	"strings"
)

// queueEntry pairs a request with its insertion sequence.
type queueEntry struct {
	seq uint64
	req *Request
}

// requestOrder reports whether a must be served before b on the primary keys.
// Returning false for both (a,b) and (b,a) means the keys are tied and the
// insertion sequence decides.
type requestOrder func(a, b *Request) bool

// byArrival orders by arrival time (FIFO).
func byArrival(a, b *Request) bool {
	return a.ArrivalTime < b.ArrivalTime
}

// byPriority orders by priority descending, then arrival time (NPPS).
func byPriority(a, b *Request) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ArrivalTime < b.ArrivalTime
}

// byDeadline orders by absolute deadline, then arrival time (EDF).
func byDeadline(a, b *Request) bool {
	if a.Deadline != b.Deadline {
		return a.Deadline < b.Deadline
	}
	return a.ArrivalTime < b.ArrivalTime
}

// RequestQueue is a min-heap of requests under a fixed ordering.
// It implements heap.Interface; use Push/Pop methods on the queue type
// (PushRequest, PopRequest) rather than the container/heap functions directly.
type RequestQueue struct {
	entries []queueEntry
	less    requestOrder
}

// newRequestQueue creates an empty queue ordered by less.
func newRequestQueue(less requestOrder) *RequestQueue {
	if less == nil {
		panic("newRequestQueue: less must not be nil")
	}
	return &RequestQueue{less: less}
}

// Len implements heap.Interface
func (q *RequestQueue) Len() int { return len(q.entries) }

// Less implements heap.Interface with the insertion sequence as final tie-break.
func (q *RequestQueue) Less(i, j int) bool {
	ei, ej := q.entries[i], q.entries[j]
	if q.less(ei.req, ej.req) {
		return true
	}
	if q.less(ej.req, ei.req) {
		return false
	}
	return ei.seq < ej.seq
}

// Swap implements heap.Interface
func (q *RequestQueue) Swap(i, j int) { q.entries[i], q.entries[j] = q.entries[j], q.entries[i] }

// Push implements heap.Interface
func (q *RequestQueue) Push(x any) { q.entries = append(q.entries, x.(queueEntry)) }

// Pop implements heap.Interface
func (q *RequestQueue) Pop() any {
	old := q.entries
	n := len(old)
	item := old[n-1]
	old[n-1] = queueEntry{}
	q.entries = old[0 : n-1]
	return item
}

// PushRequest adds req with the given insertion sequence.
func (q *RequestQueue) PushRequest(req *Request, seq uint64) {
	heap.Push(q, queueEntry{seq: seq, req: req})
}

// PopRequest removes and returns the head request, or nil if the queue is empty.
func (q *RequestQueue) PopRequest() *Request {
	if len(q.entries) == 0 {
		return nil
	}
	return heap.Pop(q).(queueEntry).req
}

// Peek returns the head request without removing it, or nil if empty.
func (q *RequestQueue) Peek() *Request {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0].req
}

// Clear drops every queued request.
func (q *RequestQueue) Clear() {
	q.entries = nil
}

func (q *RequestQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, e := range q.entries {
		sb.WriteString(fmt.Sprint(e.req.ID))
		if i < len(q.entries)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
