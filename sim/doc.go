// Package sim provides the discrete-event engine that compares request
// scheduling disciplines on a single service resource fed by energy sources
// that suffer random outages.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - request.go: Request lifecycle (queued → dispatched → finished) and energy sources
//   - event.go: Event kinds that drive the simulation (arrival, departure, outage onset and repair)
//   - simulator.go: The event loop, dispatch and source selection
//
// # Architecture
//
// The sim package holds the engine and its policies; optional outputs live in
// sub-packages:
//   - sim/trace/: Decision trace recording (dispatches, drops, outage transitions)
//   - sim/export/: Prometheus gauges over finished Result records
//
// # Key Interfaces
//
// Scheduler is the single extension point: Enqueue, Dequeue, Len and Reset.
// NewScheduler builds one of six variants by name (fifo, npps, edf, wrr,
// wrr-edf, wrr-npps). OutageModel tracks per-source availability and Metrics
// folds completions into the final Result.
//
// All randomness flows through PartitionedRNG so that arrivals are identical
// across schedulers for a given seed.
package sim
