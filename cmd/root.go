package cmd

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gridqueue/gridqueue-sim/sim"
	"github.com/gridqueue/gridqueue-sim/sim/export"
	"github.com/gridqueue/gridqueue-sim/sim/trace"
)

// simFlags holds the CLI flags shared by run, compare and sweep.
type simFlags struct {
	configPath string // YAML experiment bundle (optional)
	logLevel   string // Log verbosity level
	output     string // text, json or yaml
	metrics    string // address to serve Prometheus metrics on after the runs (optional)

	seed             int64    // Seed for all random streams
	horizon          float64  // Simulated-time cutoff
	arrivalRate      float64  // Poisson arrival rate
	controllerRate   float64  // Controller stage Exp rate
	sourceRate       float64  // Intermittent source latency Exp rate
	overhead         float64  // Fixed per-service overhead
	deadlineScale    float64  // Mean relative deadline
	consumers        int      // Number of consumers
	dispatch         []string // source=probability pairs
	expireOnDeadline bool     // Drop requests whose deadline passed before dispatch
	timeline         bool     // Record the queue-length timeline
	outageRate       []string // source=rate pairs
	outageDuration   []string // source=mean pairs
	noOutages        bool     // Disable outages entirely
	traceLevel       string   // none or decisions

	scheduler string   // Scheduler name
	weights   []string // group=weight pairs for the WRR family
}

var runFlags simFlags

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "gridqueue-sim",
	Short: "Discrete-event simulator comparing request scheduling disciplines under energy-source outages",
}

// runCmd executes one simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging(runFlags.logLevel)

		exp, err := buildExperiment(cmd.Flags(), &runFlags)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		logrus.Infof("Starting simulation: scheduler=%s seed=%d horizon=%.1f arrival_rate=%.3f",
			exp.schedulerName(), exp.cfg.Seed, exp.cfg.Horizon, exp.cfg.ArrivalRate)

		res, err := exp.run(exp.cfg)
		if err != nil {
			logrus.Fatalf("Simulation setup failed: %v", err)
		}
		if err := writeReport(os.Stdout, runFlags.output, newReport("run", res)); err != nil {
			logrus.Fatalf("Writing report failed: %v", err)
		}
		if res.Trace != nil && (runFlags.output == "" || runFlags.output == "text") {
			printTraceSummary(os.Stdout, trace.Summarize(res.Trace))
		}

		logrus.Info("Simulation complete.")
		if runFlags.metrics != "" {
			exporter := export.NewExporter()
			exporter.Observe("run", res)
			serveMetrics(runFlags.metrics, exporter)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", level)
	}
	logrus.SetLevel(lvl)
}

// serveMetrics blocks serving the exporter's registry on addr.
func serveMetrics(addr string, exporter *export.Exporter) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())
	logrus.Infof("Serving Prometheus metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.Fatalf("Metrics server failed: %v", err)
	}
}

// experiment is a resolved configuration plus scheduler selection.
type experiment struct {
	cfg       sim.Config
	scheduler string
	weights   []sim.GroupWeight
}

func (e *experiment) schedulerName() string {
	if e.scheduler == "" {
		return string(sim.KindFIFO)
	}
	return e.scheduler
}

// run builds a fresh scheduler and simulator for cfg and runs it.
func (e *experiment) run(cfg sim.Config) (*sim.Result, error) {
	return runOne(cfg, e.scheduler, e.weights)
}

func runOne(cfg sim.Config, scheduler string, weights []sim.GroupWeight) (*sim.Result, error) {
	sched, err := sim.NewScheduler(scheduler, weights)
	if err != nil {
		return nil, err
	}
	s, err := sim.NewSimulator(cfg, sched)
	if err != nil {
		return nil, err
	}
	return s.Run(), nil
}

// buildExperiment resolves defaults, then the YAML bundle, then explicitly set flags.
// Flags only override when the user set them (fs.Changed), so bundle values survive flag defaults.
func buildExperiment(fs *pflag.FlagSet, f *simFlags) (*experiment, error) {
	exp := &experiment{cfg: sim.DefaultConfig()}
	exp.cfg.RecordTimeline = false

	if f.configPath != "" {
		bundle, err := sim.LoadBundle(f.configPath)
		if err != nil {
			return nil, err
		}
		if err := bundle.Validate(); err != nil {
			return nil, err
		}
		bundle.ApplyTo(&exp.cfg)
		exp.scheduler = bundle.Scheduler
		exp.weights = bundle.Weights
	}

	changed := func(name string) bool { return fs.Changed(name) }
	if changed("seed") {
		exp.cfg.Seed = f.seed
	}
	if changed("horizon") {
		exp.cfg.Horizon = f.horizon
	}
	if changed("arrival-rate") {
		exp.cfg.ArrivalRate = f.arrivalRate
	}
	if changed("controller-rate") {
		exp.cfg.ControllerRate = f.controllerRate
	}
	if changed("source-rate") {
		exp.cfg.SourceRate = f.sourceRate
	}
	if changed("overhead") {
		exp.cfg.Overhead = f.overhead
	}
	if changed("deadline-scale") {
		exp.cfg.DeadlineScale = f.deadlineScale
	}
	if changed("consumers") {
		exp.cfg.NumConsumers = f.consumers
	}
	if changed("expire-on-deadline") {
		exp.cfg.ExpireOnDeadline = f.expireOnDeadline
	}
	if changed("timeline") {
		exp.cfg.RecordTimeline = f.timeline
	}
	if changed("trace") {
		exp.cfg.TraceLevel = trace.TraceLevel(f.traceLevel)
	}
	if changed("dispatch") {
		m, err := parseSourceMap(f.dispatch)
		if err != nil {
			return nil, fmt.Errorf("--dispatch: %w", err)
		}
		exp.cfg.DispatchProbs = m
	}
	if changed("outage-rate") {
		m, err := parseSourceMap(f.outageRate)
		if err != nil {
			return nil, fmt.Errorf("--outage-rate: %w", err)
		}
		exp.cfg.OutageRate = m
	}
	if changed("outage-duration") {
		m, err := parseSourceMap(f.outageDuration)
		if err != nil {
			return nil, fmt.Errorf("--outage-duration: %w", err)
		}
		exp.cfg.OutageMeanDuration = m
	}
	if f.noOutages {
		exp.cfg = exp.cfg.WithoutOutages()
	}
	if changed("scheduler") {
		exp.scheduler = f.scheduler
	}
	if changed("weights") {
		w, err := parseGroupWeights(f.weights)
		if err != nil {
			return nil, fmt.Errorf("--weights: %w", err)
		}
		exp.weights = w
	}

	if !sim.IsValidScheduler(exp.scheduler) {
		return nil, fmt.Errorf("%w: unknown scheduler %q (valid: %v)", sim.ErrInvalidConfig, exp.scheduler, sim.ValidSchedulerNames())
	}
	if err := sim.ValidateGroupWeights(exp.weights); err != nil {
		return nil, err
	}
	if err := exp.cfg.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

// parseSourceMap parses "source=value" pairs into an energy-source mapping.
func parseSourceMap(pairs []string) (map[sim.EnergySource]float64, error) {
	out := make(map[sim.EnergySource]float64, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected source=value, got %q", pair)
		}
		src := sim.EnergySource(strings.TrimSpace(k))
		if !sim.IsValidSource(src) {
			return nil, fmt.Errorf("unknown energy source %q", k)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("value for %s: %w", src, err)
		}
		out[src] = f
	}
	return out, nil
}

// parseGroupWeights parses ordered "group=weight" pairs.
func parseGroupWeights(pairs []string) ([]sim.GroupWeight, error) {
	out := make([]sim.GroupWeight, 0, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected group=weight, got %q", pair)
		}
		w, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("weight for %s: %w", k, err)
		}
		out = append(out, sim.GroupWeight{Group: strings.TrimSpace(k), Weight: w})
	}
	return out, nil
}

// bindSimFlags registers the shared simulation flags on fs.
func bindSimFlags(fs *pflag.FlagSet, f *simFlags) {
	def := sim.DefaultConfig()

	fs.StringVar(&f.configPath, "config", "", "Path to a YAML experiment file (flags override its values)")
	fs.StringVar(&f.logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	fs.StringVar(&f.output, "output", "text", "Report format: text, json or yaml")
	fs.StringVar(&f.metrics, "metrics-addr", "", "After the run, serve Prometheus metrics on this address (e.g. :9100)")

	fs.Int64Var(&f.seed, "seed", def.Seed, "Seed for all random streams")
	fs.Float64Var(&f.horizon, "horizon", def.Horizon, "Simulated-time horizon")
	fs.Float64Var(&f.arrivalRate, "arrival-rate", def.ArrivalRate, "Poisson arrival rate")
	fs.Float64Var(&f.controllerRate, "controller-rate", def.ControllerRate, "Controller processing rate (exponential)")
	fs.Float64Var(&f.sourceRate, "source-rate", def.SourceRate, "Renewable/battery processing rate (exponential)")
	fs.Float64Var(&f.overhead, "overhead", def.Overhead, "Fixed overhead added to every service")
	fs.Float64Var(&f.deadlineScale, "deadline-scale", def.DeadlineScale, "Mean relative deadline")
	fs.IntVar(&f.consumers, "consumers", def.NumConsumers, "Number of consumers")
	fs.StringSliceVar(&f.dispatch, "dispatch", []string{"renewable=0.6", "battery=0.2", "nonrenewable=0.2"}, "Dispatch probabilities as source=p pairs (normalized)")
	fs.BoolVar(&f.expireOnDeadline, "expire-on-deadline", def.ExpireOnDeadline, "Drop requests whose deadline passed before dispatch")
	fs.BoolVar(&f.timeline, "timeline", false, "Record the queue-length timeline")
	fs.StringSliceVar(&f.outageRate, "outage-rate", []string{"renewable=0.002", "battery=0.001"}, "Outage onset rates as source=rate pairs")
	fs.StringSliceVar(&f.outageDuration, "outage-duration", []string{"renewable=30", "battery=20"}, "Mean outage durations as source=mean pairs")
	fs.BoolVar(&f.noOutages, "no-outages", false, "Disable outages for every source")
	fs.StringVar(&f.traceLevel, "trace", "none", "Decision trace level: none or decisions")
}

// init sets up CLI flags and subcommands
func init() {
	bindSimFlags(runCmd.Flags(), &runFlags)
	runCmd.Flags().StringVar(&runFlags.scheduler, "scheduler", "fifo", fmt.Sprintf("Scheduler %v", sim.ValidSchedulerNames()))
	runCmd.Flags().StringSliceVar(&runFlags.weights, "weights", []string{"A=2", "B=1"}, "WRR group weights as ordered group=weight pairs")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
