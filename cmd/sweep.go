package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/gridqueue/gridqueue-sim/sim"
)

// defaultSweepSeed differs from the run default so sweeps sample an independent workload.
const defaultSweepSeed = 321

var (
	sweepFlags      simFlags
	sweepMinRate    float64
	sweepMaxRate    float64
	sweepPoints     int
	sweepSchedulers []string
)

// sweepCmd varies the arrival rate over an evenly spaced grid and runs each
// selected scheduler at every point.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Sweep the arrival rate across schedulers",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging(sweepFlags.logLevel)

		exp, err := buildExperiment(cmd.Flags(), &sweepFlags)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		if !cmd.Flags().Changed("seed") && sweepFlags.configPath == "" {
			exp.cfg.Seed = defaultSweepSeed
		}
		rates, err := sweepRates(sweepMinRate, sweepMaxRate, sweepPoints)
		if err != nil {
			logrus.Fatalf("Invalid sweep: %v", err)
		}
		for _, name := range sweepSchedulers {
			if name == "" || !sim.IsValidScheduler(name) {
				logrus.Fatalf("Unknown scheduler %q (valid: %v)", name, sim.ValidSchedulerNames())
			}
		}

		rows, err := runSweep(exp.cfg, rates, sweepSchedulers, exp.weights)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		title := fmt.Sprintf("Arrival-rate sweep (seed %d)", exp.cfg.Seed)
		if err := writeComparison(os.Stdout, sweepFlags.output, title, rows); err != nil {
			logrus.Fatalf("Writing report failed: %v", err)
		}
	},
}

// sweepRates returns n evenly spaced rates from lo to hi inclusive.
func sweepRates(lo, hi float64, n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("points must be >= 1, got %d", n)
	}
	if !(lo > 0) || hi < lo {
		return nil, fmt.Errorf("rates must satisfy 0 < min <= max, got [%v, %v]", lo, hi)
	}
	if n == 1 {
		return []float64{lo}, nil
	}
	return floats.Span(make([]float64, n), lo, hi), nil
}

// runSweep runs every scheduler at every rate; rows are ordered rate-major.
func runSweep(base sim.Config, rates []float64, schedulers []string, weights []sim.GroupWeight) ([]comparisonRow, error) {
	rows := make([]comparisonRow, 0, len(rates)*len(schedulers))
	for _, rate := range rates {
		cfg := base.Clone()
		cfg.ArrivalRate = rate
		for _, name := range schedulers {
			res, err := runOne(cfg, name, weights)
			if err != nil {
				return nil, fmt.Errorf("rate %.3f scheduler %s: %w", rate, name, err)
			}
			rows = append(rows, comparisonRow{Label: fmt.Sprintf("%s@%.2f", res.Scheduler, rate), Result: res})
		}
	}
	return rows, nil
}

func init() {
	bindSimFlags(sweepCmd.Flags(), &sweepFlags)
	seed := sweepCmd.Flags().Lookup("seed")
	seed.DefValue = strconv.Itoa(defaultSweepSeed)
	sweepFlags.seed = defaultSweepSeed
	sweepCmd.Flags().Float64Var(&sweepMinRate, "min-rate", 0.4, "Lowest arrival rate")
	sweepCmd.Flags().Float64Var(&sweepMaxRate, "max-rate", 1.2, "Highest arrival rate")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 5, "Number of arrival-rate points")
	sweepCmd.Flags().StringSliceVar(&sweepSchedulers, "schedulers", []string{"fifo", "npps", "edf", "wrr"}, "Schedulers to sweep")
	sweepCmd.Flags().StringSliceVar(&sweepFlags.weights, "weights", []string{"A=2", "B=1"}, "WRR group weights as ordered group=weight pairs")
	rootCmd.AddCommand(sweepCmd)
}
