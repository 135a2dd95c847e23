package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridqueue/gridqueue-sim/sim/trace"
)

func TestNewSimulator_RejectsBadInput(t *testing.T) {
	_, err := NewSimulator(DefaultConfig(), nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg := DefaultConfig()
	cfg.ArrivalRate = -1
	_, err = NewSimulator(cfg, NewFIFOScheduler())
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewSimulator_NormalizesAndIsolatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DispatchProbs = map[EnergySource]float64{SourceRenewable: 2, SourceBattery: 2}
	s, err := NewSimulator(cfg, NewFIFOScheduler())
	require.NoError(t, err)

	// Mutating the caller's config after construction has no effect
	cfg.DispatchProbs[SourceRenewable] = 100

	probs := s.DispatchProbabilities()
	assert.InDelta(t, 0.5, probs[SourceRenewable], 1e-12)
	assert.InDelta(t, 0.5, probs[SourceBattery], 1e-12)
	assert.Equal(t, 2.0, s.Config().DispatchProbs[SourceRenewable])
	assert.Len(t, s.Consumers(), cfg.NumConsumers)
}

func TestSimulator_Determinism(t *testing.T) {
	// GIVEN two independent simulators with the same seed and configuration
	cfg := DefaultConfig()
	cfg.Horizon = 2000

	for _, kind := range AllSchedulerKinds {
		t.Run(string(kind), func(t *testing.T) {
			// WHEN both run
			r1 := mustRun(t, cfg, string(kind))
			r2 := mustRun(t, cfg, string(kind))

			// THEN the results are identical
			assert.Equal(t, r1, r2)
		})
	}
}

func TestSimulator_RerunIsIdentical(t *testing.T) {
	// GIVEN a WRR simulator that auto-registers no extra groups
	sched, err := NewScheduler("wrr", nil)
	require.NoError(t, err)
	s, err := NewSimulator(DefaultConfig(), sched)
	require.NoError(t, err)

	// WHEN Run is called twice on the same instance
	first := s.Run()
	second := s.Run()

	// THEN the second run starts from a clean state
	assert.Equal(t, first, second)
}

func TestSimulator_DifferentSeedsDiffer(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	b.Seed = a.Seed + 1

	ra := mustRun(t, a, "fifo")
	rb := mustRun(t, b, "fifo")

	assert.NotEqual(t, ra.QueueTimeline, rb.QueueTimeline)
}

func TestSimulator_Conservation(t *testing.T) {
	// GIVEN runs across every scheduler, with and without outages
	for _, cfg := range []Config{DefaultConfig(), scenarioConfig()} {
		for _, kind := range AllSchedulerKinds {
			res := mustRun(t, cfg, string(kind))

			// THEN every arrival is processed, dropped, still queued or in service
			inService := 0
			if res.InServiceAtHorizon {
				inService = 1
			}
			if got := res.Processed + res.DeadlineDrops + res.StillQueued + inService; got != res.Arrivals {
				t.Errorf("%s seed %d: processed %d + drops %d + queued %d + in-service %d = %d, want arrivals %d",
					kind, cfg.Seed, res.Processed, res.DeadlineDrops, res.StillQueued, inService, got, res.Arrivals)
			}
			if res.Processed+res.DeadlineDrops < res.Arrivals-res.StillQueued-inService {
				t.Errorf("%s: processed + drops below arrivals minus queued", kind)
			}
		}
	}
}

func TestSimulator_EnergyMixSumsToOne(t *testing.T) {
	for _, kind := range AllSchedulerKinds {
		res := mustRun(t, DefaultConfig(), string(kind))
		require.Positive(t, res.Processed, kind)
		assert.InDelta(t, 1.0, res.EnergyMixSum(), 1e-9, "scheduler %s", kind)
		total := 0
		for _, n := range res.SourceUsage {
			total += n
		}
		assert.Equal(t, res.Processed, total)
	}
}

func TestSimulator_ReferenceScenario(t *testing.T) {
	// GIVEN seed 123, horizon 1000, arrival rate 0.8, FIFO, no outages
	cfg := scenarioConfig()

	// WHEN run with and without deadline expiry
	withExpiry := mustRun(t, cfg, "fifo")
	cfg.ExpireOnDeadline = false
	withoutExpiry := mustRun(t, cfg, "fifo")

	// THEN the run makes progress and disabling expiry never adds drops
	assert.Positive(t, withExpiry.Processed)
	assert.Greater(t, withExpiry.Utilization, 0.0)
	assert.Less(t, withExpiry.Utilization, 1.0)
	assert.Zero(t, withoutExpiry.DeadlineDrops)
	assert.LessOrEqual(t, withoutExpiry.DeadlineDrops, withExpiry.DeadlineDrops)
	assert.Zero(t, withExpiry.Reroutes)
	for _, src := range AllSources {
		assert.Equal(t, OutageStats{Availability: 1}, withExpiry.Outages[src], string(src))
	}
}

func TestSimulator_EDFDropsNoMoreThanFIFO(t *testing.T) {
	// GIVEN the reference scenario, where arrivals are identical across schedulers
	cfg := scenarioConfig()

	fifo := mustRun(t, cfg, "fifo")
	edf := mustRun(t, cfg, "edf")

	// THEN serving imminent deadlines first does not increase drops
	assert.Equal(t, fifo.Arrivals, edf.Arrivals)
	assert.LessOrEqual(t, edf.DeadlineDrops, fifo.DeadlineDrops)
}

func TestSimulator_OutageBounds(t *testing.T) {
	// GIVEN the elevated reference outage rates over a long horizon
	cfg := DefaultConfig()
	cfg.Horizon = 5000
	cfg.OutageRate = ReferenceOutageRate()
	cfg.OutageMeanDuration = ReferenceOutageDuration()

	res := mustRun(t, cfg, "edf")

	// THEN downtime is bounded by the horizon and nonrenewable never fails
	for _, src := range AllSources {
		st := res.Outages[src]
		assert.GreaterOrEqual(t, st.Downtime, 0.0, string(src))
		assert.LessOrEqual(t, st.Downtime, cfg.Horizon, string(src))
		assert.GreaterOrEqual(t, st.Availability, 0.0, string(src))
		assert.LessOrEqual(t, st.Availability, 1.0, string(src))
	}
	assert.Positive(t, res.Outages[SourceRenewable].Count)
	assert.Equal(t, OutageStats{Availability: 1}, res.Outages[SourceNonRenewable])
	assert.Zero(t, res.Reroutes, "the nonrenewable fallback is always available")
}

func TestSimulator_UnconfiguredSourceAlwaysAvailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutageRate = map[EnergySource]float64{SourceRenewable: 0.05}
	cfg.OutageMeanDuration = map[EnergySource]float64{SourceRenewable: 5}

	res := mustRun(t, cfg, "fifo")

	assert.Equal(t, OutageStats{Availability: 1}, res.Outages[SourceBattery])
	assert.Positive(t, res.Outages[SourceRenewable].Count)
}

func TestSimulator_ChooseSourceSkipsUnavailable(t *testing.T) {
	// GIVEN renewable and battery both down
	s, err := NewSimulator(DefaultConfig(), NewFIFOScheduler())
	require.NoError(t, err)
	s.reset()
	s.outages.setAvailable(SourceRenewable, false, 0)
	s.outages.setAvailable(SourceBattery, false, 0)

	// WHEN sources are drawn repeatedly
	// THEN only nonrenewable is eligible
	for i := 0; i < 50; i++ {
		src, eligible := s.chooseSource()
		assert.Equal(t, SourceNonRenewable, src)
		assert.Equal(t, []EnergySource{SourceNonRenewable}, eligible)
	}
}

func TestSimulator_RerouteWhenFallbackUnavailable(t *testing.T) {
	// GIVEN every source marked unavailable, including the fallback
	s, err := NewSimulator(DefaultConfig(), NewFIFOScheduler())
	require.NoError(t, err)
	s.reset()
	for _, src := range AllSources {
		s.outages.setAvailable(src, false, 0)
	}
	req := newTestRequest(1, 0, 0, PriorityLow, 50)
	s.scheduler.Enqueue(req)

	// WHEN service starts
	s.startService()

	// THEN the request is dispatched to nonrenewable and counted as a reroute
	assert.True(t, s.Busy())
	assert.Equal(t, SourceNonRenewable, req.Source)
	assert.Equal(t, 1, s.metrics.Reroutes)
}

func TestSimulator_DropsExpiredBeforeDispatch(t *testing.T) {
	// GIVEN two expired requests ahead of a valid one
	s, err := NewSimulator(DefaultConfig().WithoutOutages(), NewFIFOScheduler())
	require.NoError(t, err)
	s.reset()
	s.Clock = 10
	s.scheduler.Enqueue(newTestRequest(1, 0, 1, PriorityLow, 5))
	s.scheduler.Enqueue(newTestRequest(2, 0, 2, PriorityLow, 9.5))
	valid := newTestRequest(3, 0, 3, PriorityLow, 10)
	s.scheduler.Enqueue(valid)

	// WHEN service starts at t=10
	s.startService()

	// THEN both expired requests are dropped and a deadline equal to now still dispatches
	assert.Equal(t, 2, s.metrics.DeadlineDrops)
	assert.Same(t, valid, s.inService)
	assert.Equal(t, 0, s.scheduler.Len())
}

func TestSimulator_TimelineRecording(t *testing.T) {
	cfg := DefaultConfig()
	res := mustRun(t, cfg, "npps")

	require.NotEmpty(t, res.QueueTimeline)
	assert.Equal(t, TimelinePoint{Time: 0, QueueLen: 0}, res.QueueTimeline[0])
	for i := 1; i < len(res.QueueTimeline); i++ {
		if res.QueueTimeline[i].Time < res.QueueTimeline[i-1].Time {
			t.Fatalf("timeline not monotonic at %d", i)
		}
	}

	cfg.RecordTimeline = false
	assert.Nil(t, mustRun(t, cfg, "npps").QueueTimeline)
}

func TestSimulator_DecisionTrace(t *testing.T) {
	// GIVEN decision tracing with outages enabled
	cfg := DefaultConfig()
	cfg.Horizon = 3000
	cfg.OutageRate = ReferenceOutageRate()
	cfg.OutageMeanDuration = ReferenceOutageDuration()
	cfg.TraceLevel = trace.TraceLevelDecisions

	res := mustRun(t, cfg, "wrr-npps")

	// THEN every dispatch and drop is recorded
	require.NotNil(t, res.Trace)
	inService := 0
	if res.InServiceAtHorizon {
		inService = 1
	}
	assert.Len(t, res.Trace.Dispatches, res.Processed+inService)
	assert.Len(t, res.Trace.Drops, res.DeadlineDrops)
	onsets := 0
	for _, rec := range res.Trace.Outages {
		if !rec.Available {
			onsets++
		}
	}
	assert.Equal(t, res.Outages[SourceRenewable].Count+res.Outages[SourceBattery].Count, onsets)

	summary := trace.Summarize(res.Trace)
	assert.Equal(t, len(res.Trace.Dispatches), summary.TotalDispatches)

	// Tracing is off by default
	cfg.TraceLevel = trace.TraceLevelNone
	assert.Nil(t, mustRun(t, cfg, "wrr-npps").Trace)
}

func TestSimulator_ByClassReporting(t *testing.T) {
	res := mustRun(t, DefaultConfig(), "wrr")

	assert.Len(t, res.ByPriority, 3)
	assert.Contains(t, res.ByGroup, "A")
	assert.Contains(t, res.ByGroup, "B")
	total := 0
	for _, st := range res.ByGroup {
		total += st.Count
	}
	assert.Equal(t, res.Processed, total)
}
