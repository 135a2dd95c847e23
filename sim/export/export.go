// Package export publishes simulation result records as Prometheus metrics.
// Each observed run is labeled by scheduler and scenario so that several
// runs (for example one per policy) can be scraped side by side.
package export

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridqueue/gridqueue-sim/sim"
)

var runLabels = []string{"scheduler", "scenario"}

// Exporter holds one gauge family per result field on a private registry.
type Exporter struct {
	registry *prometheus.Registry

	processed    *prometheus.GaugeVec
	drops        *prometheus.GaugeVec
	avgWait      *prometheus.GaugeVec
	avgResponse  *prometheus.GaugeVec
	utilization  *prometheus.GaugeVec
	reroutes     *prometheus.GaugeVec
	energyMix    *prometheus.GaugeVec
	outageCount  *prometheus.GaugeVec
	outageTime   *prometheus.GaugeVec
	availability *prometheus.GaugeVec
	priorityWait *prometheus.GaugeVec
	groupWait    *prometheus.GaugeVec
	runsObserved prometheus.Counter
}

func gauge(name, help string, extra ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gridqueue",
			Name:      name,
			Help:      help,
		},
		append(append([]string{}, runLabels...), extra...),
	)
}

// NewExporter creates an Exporter with all collectors registered.
func NewExporter() *Exporter {
	e := &Exporter{
		registry:     prometheus.NewRegistry(),
		processed:    gauge("processed_requests", "Requests that completed service before the horizon."),
		drops:        gauge("deadline_drops", "Requests discarded at dispatch because their deadline had passed."),
		avgWait:      gauge("avg_wait", "Mean wait time of completed requests."),
		avgResponse:  gauge("avg_response", "Mean response time of completed requests."),
		utilization:  gauge("utilization", "Fraction of the horizon the service resource was busy."),
		reroutes:     gauge("reroutes", "Dispatches that landed on an unavailable source."),
		energyMix:    gauge("energy_mix", "Fraction of completed services per energy source.", "source"),
		outageCount:  gauge("outage_count", "Outage onsets that took a source down.", "source"),
		outageTime:   gauge("outage_time", "Cumulative downtime per source.", "source"),
		availability: gauge("availability", "1 - downtime/horizon per source.", "source"),
		priorityWait: gauge("priority_avg_wait", "Mean wait per priority class.", "priority"),
		groupWait:    gauge("group_avg_wait", "Mean wait per fairness group.", "group"),
		runsObserved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridqueue",
			Name:      "runs_observed_total",
			Help:      "Number of result records exported.",
		}),
	}
	e.registry.MustRegister(
		e.processed, e.drops, e.avgWait, e.avgResponse, e.utilization, e.reroutes,
		e.energyMix, e.outageCount, e.outageTime, e.availability,
		e.priorityWait, e.groupWait, e.runsObserved,
	)
	return e
}

// Registry exposes the underlying registry, mainly for tests and embedding.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe sets every gauge from res under the given scenario label.
// Observing the same scheduler and scenario again overwrites the previous values.
func (e *Exporter) Observe(scenario string, res *sim.Result) {
	if res == nil {
		return
	}
	l := []string{res.Scheduler, scenario}
	e.processed.WithLabelValues(l...).Set(float64(res.Processed))
	e.drops.WithLabelValues(l...).Set(float64(res.DeadlineDrops))
	e.avgWait.WithLabelValues(l...).Set(res.AvgWait)
	e.avgResponse.WithLabelValues(l...).Set(res.AvgResponse)
	e.utilization.WithLabelValues(l...).Set(res.Utilization)
	e.reroutes.WithLabelValues(l...).Set(float64(res.Reroutes))

	for _, src := range sim.AllSources {
		s := string(src)
		e.energyMix.WithLabelValues(res.Scheduler, scenario, s).Set(res.EnergyMix[src])
		o := res.Outages[src]
		e.outageCount.WithLabelValues(res.Scheduler, scenario, s).Set(float64(o.Count))
		e.outageTime.WithLabelValues(res.Scheduler, scenario, s).Set(o.Downtime)
		e.availability.WithLabelValues(res.Scheduler, scenario, s).Set(o.Availability)
	}
	for p, st := range res.ByPriority {
		e.priorityWait.WithLabelValues(res.Scheduler, scenario, strconv.Itoa(p)).Set(st.AvgWait)
	}
	for g, st := range res.ByGroup {
		e.groupWait.WithLabelValues(res.Scheduler, scenario, g).Set(st.AvgWait)
	}
	e.runsObserved.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
