package sim

import "testing"

// newTestRequest builds a queued request. Even consumer ids belong to group A.
func newTestRequest(id int64, consumer int, arrival float64, priority int, deadline float64) *Request {
	return NewRequest(id, consumer, arrival, 1.0, priority, deadline)
}

// drain dequeues until the scheduler is empty and returns the request ids in order.
func drain(s Scheduler) []int64 {
	var ids []int64
	for {
		req := s.Dequeue(0)
		if req == nil {
			return ids
		}
		ids = append(ids, req.ID)
	}
}

// scenarioConfig is the reference scenario: seed 123, horizon 1000, arrival rate 0.8, no outages.
func scenarioConfig() Config {
	cfg := DefaultConfig().WithoutOutages()
	cfg.Seed = 123
	cfg.Horizon = 1000
	cfg.ArrivalRate = 0.8
	return cfg
}

func mustRun(t *testing.T, cfg Config, scheduler string) *Result {
	t.Helper()
	sched, err := NewScheduler(scheduler, nil)
	if err != nil {
		t.Fatalf("NewScheduler(%q): %v", scheduler, err)
	}
	s, err := NewSimulator(cfg, sched)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return s.Run()
}
