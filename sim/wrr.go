package sim

// WRRScheduler serves fairness groups in proportion to integer weights.
//
// Each configured group contributes weight copies of its label to a cyclic
// schedule, in configuration order ({A:2,B:1} → [A,A,B]). A persistent cursor
// walks the schedule one slot per inspected position. Within a group, requests
// are ordered by the variant's sub-queue ordering (FIFO, EDF or NPPS).
//
// A request whose group was never configured registers that group at weight 1:
// its sub-queue is created and its label is appended once to the schedule.
type WRRScheduler struct {
	kind       SchedulerKind
	less       requestOrder
	configured []GroupWeight

	groups   []string                 // registration order
	queues   map[string]*RequestQueue // group -> sub-queue
	schedule []string                 // cyclic slot list
	cursor   int
	seq      uint64
	size     int
}

// NewWRRScheduler creates a weighted round robin scheduler with FIFO sub-queues.
func NewWRRScheduler(weights []GroupWeight) *WRRScheduler {
	return newWRRScheduler(KindWRR, byArrival, weights)
}

// NewWRREDFScheduler creates a weighted round robin scheduler with EDF sub-queues.
func NewWRREDFScheduler(weights []GroupWeight) *WRRScheduler {
	return newWRRScheduler(KindWRREDF, byDeadline, weights)
}

// NewWRRNPPSScheduler creates a weighted round robin scheduler with NPPS sub-queues.
func NewWRRNPPSScheduler(weights []GroupWeight) *WRRScheduler {
	return newWRRScheduler(KindWRRNPPS, byPriority, weights)
}

func newWRRScheduler(kind SchedulerKind, less requestOrder, weights []GroupWeight) *WRRScheduler {
	configured := make([]GroupWeight, len(weights))
	copy(configured, weights)
	s := &WRRScheduler{kind: kind, less: less, configured: configured}
	s.Reset()
	return s
}

func (s *WRRScheduler) Name() string { return string(s.kind) }

// Reset rebuilds the schedule from the configured weights, forgetting any
// auto-registered groups and rewinding the cursor.
func (s *WRRScheduler) Reset() {
	s.groups = nil
	s.queues = make(map[string]*RequestQueue)
	s.schedule = nil
	s.cursor = 0
	s.seq = 0
	s.size = 0
	for _, gw := range s.configured {
		s.register(gw.Group, gw.Weight)
	}
}

// register adds a group with max(1, weight) schedule slots. No-op for known groups.
func (s *WRRScheduler) register(group string, weight int) {
	if _, ok := s.queues[group]; ok {
		return
	}
	weight = max(1, weight)
	s.groups = append(s.groups, group)
	s.queues[group] = newRequestQueue(s.less)
	for i := 0; i < weight; i++ {
		s.schedule = append(s.schedule, group)
	}
}

func (s *WRRScheduler) Enqueue(req *Request) {
	s.register(req.Group, 1)
	s.queues[req.Group].PushRequest(req, s.seq)
	s.seq++
	s.size++
}

// Dequeue inspects at most len(schedule) consecutive slots starting at the
// cursor and serves the first non-empty group. If every inspected slot was
// empty it falls back to the first non-empty group in registration order.
// An empty scheduler returns nil without moving the cursor.
func (s *WRRScheduler) Dequeue(_ float64) *Request {
	if s.size == 0 {
		return nil
	}
	n := len(s.schedule)
	for tried := 0; tried < n; tried++ {
		group := s.schedule[s.cursor%n]
		s.cursor = (s.cursor + 1) % n
		if q := s.queues[group]; q.Len() > 0 {
			return s.take(q)
		}
	}
	for _, group := range s.groups {
		if q := s.queues[group]; q.Len() > 0 {
			return s.take(q)
		}
	}
	return nil
}

func (s *WRRScheduler) take(q *RequestQueue) *Request {
	s.size--
	return q.PopRequest()
}

// Len returns the total number of queued requests across all groups.
func (s *WRRScheduler) Len() int { return s.size }

// Schedule returns a copy of the current cyclic slot list.
func (s *WRRScheduler) Schedule() []string {
	out := make([]string, len(s.schedule))
	copy(out, s.schedule)
	return out
}

// Groups returns the known groups in registration order.
func (s *WRRScheduler) Groups() []string {
	out := make([]string, len(s.groups))
	copy(out, s.groups)
	return out
}

// GroupLen returns the number of requests queued for group (0 for unknown groups).
func (s *WRRScheduler) GroupLen(group string) int {
	if q, ok := s.queues[group]; ok {
		return q.Len()
	}
	return 0
}
