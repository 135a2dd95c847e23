// sim/simulator.go
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gridqueue/gridqueue-sim/sim/trace"
)

// Simulator is the core object that holds simulation time, system state, and the event loop.
// It owns a single service resource that is either idle or busy.
//
// A Simulator is not safe for concurrent use. Independent instances share no state
// and may run in parallel.
type Simulator struct {
	Clock   float64
	Horizon float64

	cfg       Config
	dispatch  map[EnergySource]float64 // normalized dispatch probabilities
	scheduler Scheduler
	events    *EventHeap
	rng       *PartitionedRNG
	outages   *OutageModel
	metrics   *Metrics
	consumers []Consumer
	trace     *trace.SimulationTrace

	busy           bool
	inService      *Request
	serviceTime    float64
	nextRequestID  int64
	eventsExecuted int
}

// NewSimulator validates cfg and binds it to scheduler.
// This is the only fallible step: once construction succeeds Run cannot fail.
func NewSimulator(cfg Config, scheduler Scheduler) (*Simulator, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("%w: scheduler must not be nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	consumers := make([]Consumer, cfg.NumConsumers)
	for i := range consumers {
		consumers[i] = Consumer{ID: i, DemandMean: demandMean}
	}

	s := &Simulator{
		Horizon:   cfg.Horizon,
		cfg:       cfg,
		dispatch:  cfg.normalizedDispatch(),
		scheduler: scheduler,
		events:    NewEventHeap(cfg.Horizon),
		outages:   NewOutageModel(cfg.OutageRate, cfg.OutageMeanDuration),
		metrics:   NewMetrics(),
		consumers: consumers,
	}
	return s, nil
}

// Config returns a copy of the validated configuration.
func (sim *Simulator) Config() Config {
	return sim.cfg.Clone()
}

// DispatchProbabilities returns the normalized dispatch mapping.
func (sim *Simulator) DispatchProbabilities() map[EnergySource]float64 {
	return cloneSourceMap(sim.dispatch)
}

// Consumers returns the consumer identities requests are drawn from.
func (sim *Simulator) Consumers() []Consumer {
	out := make([]Consumer, len(sim.consumers))
	copy(out, sim.consumers)
	return out
}

// schedule pushes an event; events past the horizon are silently discarded.
func (sim *Simulator) schedule(ev Event) {
	if !sim.events.Schedule(ev) {
		logrus.Tracef("[t=%.4f] discarding %s beyond horizon", sim.Clock, ev)
	}
}

// reset restores the freshly constructed state: clock, RNG streams, event heap,
// scheduler contents, outage flags and every counter.
func (sim *Simulator) reset() {
	sim.Clock = 0
	sim.busy = false
	sim.inService = nil
	sim.serviceTime = 0
	sim.nextRequestID = 0
	sim.eventsExecuted = 0
	sim.rng = NewPartitionedRNG(NewSimulationKey(sim.cfg.Seed))
	sim.events.Reset(sim.cfg.Horizon)
	sim.scheduler.Reset()
	sim.outages.Reset()
	sim.metrics.reset()
	sim.trace = nil
	if sim.cfg.TraceLevel.Enabled() {
		sim.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: sim.cfg.TraceLevel})
	}

	sim.schedule(Event{Time: expRate(sim.rng.ForSubsystem(SubsystemWorkload), sim.cfg.ArrivalRate), Kind: EventArrival})
	if sim.cfg.RecordTimeline {
		sim.metrics.sampleQueue(0, 0)
	}
	outageRNG := sim.rng.ForSubsystem(SubsystemOutage)
	for _, src := range sim.outages.Sources() {
		sim.schedule(Event{Time: sim.outages.NextOnset(src, 0, outageRNG), Kind: EventOutageOnset, Source: src})
	}
}

// Run executes the simulation to the horizon and returns the result record.
// Every call starts from a fresh clock with the RNG streams reseeded, so repeated
// calls on the same Simulator return equal results.
func (sim *Simulator) Run() *Result {
	sim.reset()
	logrus.Debugf("Starting run: scheduler=%s seed=%d horizon=%.1f", sim.scheduler.Name(), sim.cfg.Seed, sim.Horizon)

	for {
		ev, ok := sim.events.PopNext()
		if !ok {
			break
		}
		if ev.Time > sim.Horizon {
			break
		}
		sim.Clock = ev.Time
		sim.eventsExecuted++
		logrus.Tracef("[t=%.4f] Executing %s", sim.Clock, ev)
		sim.execute(ev)
	}

	sim.outages.Finalize(sim.Horizon)
	res := sim.metrics.compose(sim.Horizon, sim.busy)
	res.Scheduler = sim.scheduler.Name()
	res.Seed = sim.cfg.Seed
	res.StillQueued = sim.scheduler.Len()
	res.InServiceAtHorizon = sim.busy
	res.Outages = sim.outages.Stats(sim.Horizon)
	res.Trace = sim.trace
	if !sim.cfg.RecordTimeline {
		res.QueueTimeline = nil
	}

	logrus.Debugf("Run finished: %d events, processed=%d drops=%d queued=%d",
		sim.eventsExecuted, res.Processed, res.DeadlineDrops, res.StillQueued)
	return res
}

func (sim *Simulator) execute(ev Event) {
	switch ev.Kind {
	case EventArrival:
		sim.handleArrival()
	case EventDeparture:
		sim.handleDeparture(ev.Request)
	case EventOutageOnset:
		sim.handleOutageOnset(ev.Source)
	case EventOutageRepair:
		sim.handleOutageRepair(ev.Source)
	default:
		panic(fmt.Sprintf("unhandled event kind %v", ev.Kind))
	}
}

// handleArrival synthesizes a request, enqueues it and schedules the next arrival.
func (sim *Simulator) handleArrival() {
	rng := sim.rng.ForSubsystem(SubsystemWorkload)
	now := sim.Clock

	consumer := sim.consumers[rng.Intn(len(sim.consumers))]
	demand := clippedGaussian(rng, consumer.DemandMean, demandStdDev, demandFloor)
	priority := PriorityLow + int(rng.Float64()*3)
	deadline := now + max(deadlineOffsetFloor, expMean(rng, sim.cfg.DeadlineScale))

	sim.nextRequestID++
	req := NewRequest(sim.nextRequestID, consumer.ID, now, demand, priority, deadline)
	logrus.Debugf("<< Arrival: req %d (group %s, prio %d) at %.4f", req.ID, req.Group, req.Priority, now)

	sim.metrics.recordArrival(req)
	sim.scheduler.Enqueue(req)
	sim.sampleQueue()

	sim.schedule(Event{Time: now + expRate(rng, sim.cfg.ArrivalRate), Kind: EventArrival})

	if !sim.busy {
		sim.startService()
	}
}

// startService pulls requests until one can be dispatched or the scheduler is empty.
// Expired requests are counted as deadline drops and discarded. Each iteration
// removes one request, so the loop ends within Len() iterations.
func (sim *Simulator) startService() {
	now := sim.Clock
	for {
		req := sim.scheduler.Dequeue(now)
		if req == nil {
			return
		}
		if sim.cfg.ExpireOnDeadline && now > req.Deadline {
			sim.metrics.DeadlineDrops++
			logrus.Debugf("Dropping req %d: deadline %.4f passed at %.4f", req.ID, req.Deadline, now)
			if sim.trace != nil {
				sim.trace.RecordDrop(trace.DropRecord{
					RequestID: req.ID, Clock: now, Deadline: req.Deadline, Lateness: now - req.Deadline,
				})
			}
			sim.sampleQueue()
			continue
		}
		sim.dispatchRequest(req)
		return
	}
}

// dispatchRequest assigns an energy source, marks the resource busy and schedules the departure.
func (sim *Simulator) dispatchRequest(req *Request) {
	now := sim.Clock
	src, eligible := sim.chooseSource()
	rerouted := !sim.outages.Available(src)
	if rerouted {
		sim.metrics.Reroutes++
		logrus.Warnf("Dispatching req %d to unavailable source %s", req.ID, src)
	}

	req.Source = src
	req.StartServiceTime = now
	req.Dispatched = true
	sim.busy = true
	sim.inService = req
	sim.metrics.markBusy(now)

	rng := sim.rng.ForSubsystem(SubsystemService)
	duration := expRate(rng, sim.cfg.ControllerRate) + sim.cfg.Overhead
	if src.intermittent() {
		duration += expRate(rng, sim.cfg.SourceRate)
	}
	sim.serviceTime = duration

	if sim.trace != nil {
		available := make([]string, len(eligible))
		for i, e := range eligible {
			available[i] = string(e)
		}
		sim.trace.RecordDispatch(trace.DispatchRecord{
			RequestID: req.ID, Clock: now, Scheduler: sim.scheduler.Name(),
			Group: req.Group, Priority: req.Priority, Source: string(src),
			Available: available, Rerouted: rerouted, Wait: req.WaitTime(),
		})
	}
	logrus.Debugf(">> Dispatch: req %d to %s at %.4f for %.4f", req.ID, src, now, duration)

	sim.schedule(Event{Time: now + duration, Kind: EventDeparture, Request: req})
	sim.sampleQueue()
}

// chooseSource draws from the dispatch mapping restricted to available sources,
// renormalized over that subset. With no eligible source it falls back to nonrenewable.
// The eligible sources are returned for tracing.
func (sim *Simulator) chooseSource() (EnergySource, []EnergySource) {
	var eligible []EnergySource
	total := 0.0
	for _, src := range AllSources {
		p := sim.dispatch[src]
		if p > 0 && sim.outages.Available(src) {
			eligible = append(eligible, src)
			total += p
		}
	}
	if len(eligible) == 0 {
		return SourceNonRenewable, eligible
	}
	u := sim.rng.ForSubsystem(SubsystemDispatch).Float64() * total
	cum := 0.0
	for _, src := range eligible {
		cum += sim.dispatch[src]
		if u <= cum {
			return src, eligible
		}
	}
	return eligible[len(eligible)-1], eligible
}

// handleDeparture closes out the in-service request and starts the next one.
func (sim *Simulator) handleDeparture(req *Request) {
	now := sim.Clock
	req.FinishTime = now
	req.Finished = true
	logrus.Debugf("<< Departure: req %d at %.4f (response %.4f)", req.ID, now, req.ResponseTime())

	sim.metrics.markIdle(now)
	sim.metrics.recordCompletion(req, sim.serviceTime)
	sim.busy = false
	sim.inService = nil
	sim.serviceTime = 0

	sim.startService()
}

// handleOutageOnset applies the onset and always draws the next onset.
func (sim *Simulator) handleOutageOnset(src EnergySource) {
	now := sim.Clock
	rng := sim.rng.ForSubsystem(SubsystemOutage)
	if repairAt, down := sim.outages.Onset(src, now, rng); down {
		logrus.Infof("[t=%.4f] Outage: %s unavailable until %.4f", now, src, repairAt)
		sim.recordOutage(src, false)
		sim.schedule(Event{Time: repairAt, Kind: EventOutageRepair, Source: src})
	}
	sim.schedule(Event{Time: sim.outages.NextOnset(src, now, rng), Kind: EventOutageOnset, Source: src})
}

func (sim *Simulator) handleOutageRepair(src EnergySource) {
	if sim.outages.Repair(src, sim.Clock) {
		logrus.Infof("[t=%.4f] Repair: %s available", sim.Clock, src)
		sim.recordOutage(src, true)
	}
}

func (sim *Simulator) recordOutage(src EnergySource, available bool) {
	if sim.trace != nil {
		sim.trace.RecordOutage(trace.OutageRecord{Source: string(src), Clock: sim.Clock, Available: available})
	}
}

func (sim *Simulator) sampleQueue() {
	if sim.cfg.RecordTimeline {
		sim.metrics.sampleQueue(sim.Clock, sim.scheduler.Len())
	}
}

// Busy reports whether the service resource is currently serving a request.
func (sim *Simulator) Busy() bool {
	return sim.busy
}
