package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gridqueue/gridqueue-sim/sim"
	"github.com/gridqueue/gridqueue-sim/sim/export"
)

var compareFlags simFlags

// compareCmd runs every scheduler on the same parameters, once without outages
// and once under the elevated reference outage rates.
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare all schedulers with and without energy-source outages",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging(compareFlags.logLevel)

		exp, err := buildExperiment(cmd.Flags(), &compareFlags)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		scenarios := compareScenarios(exp.cfg)
		exporter := export.NewExporter()
		for _, sc := range scenarios {
			rows, err := compareSchedulers(sc.cfg, exp.weights)
			if err != nil {
				logrus.Fatalf("Scenario %s failed: %v", sc.name, err)
			}
			for _, row := range rows {
				exporter.Observe(sc.name, row.Result)
			}
			if err := writeComparison(os.Stdout, compareFlags.output, sc.title, rows); err != nil {
				logrus.Fatalf("Writing report failed: %v", err)
			}
			fmt.Fprintln(os.Stdout)
		}

		if compareFlags.metrics != "" {
			serveMetrics(compareFlags.metrics, exporter)
		}
	},
}

type scenario struct {
	name  string
	title string
	cfg   sim.Config
}

// compareScenarios derives the outage-free and reference-outage variants of base.
func compareScenarios(base sim.Config) []scenario {
	withOutages := base.Clone()
	withOutages.OutageRate = sim.ReferenceOutageRate()
	withOutages.OutageMeanDuration = sim.ReferenceOutageDuration()
	return []scenario{
		{name: "no_outages", title: "Schedulers without outages", cfg: base.WithoutOutages()},
		{name: "outages", title: "Schedulers with outages", cfg: withOutages},
	}
}

// compareSchedulers runs every scheduler kind on cfg in AllSchedulerKinds order.
func compareSchedulers(cfg sim.Config, weights []sim.GroupWeight) ([]comparisonRow, error) {
	rows := make([]comparisonRow, 0, len(sim.AllSchedulerKinds))
	for _, kind := range sim.AllSchedulerKinds {
		res, err := runOne(cfg, string(kind), weights)
		if err != nil {
			return nil, fmt.Errorf("scheduler %s: %w", kind, err)
		}
		logrus.Infof("%-10s processed=%d drops=%d avg_wait=%.3f", kind, res.Processed, res.DeadlineDrops, res.AvgWait)
		rows = append(rows, comparisonRow{Label: res.Scheduler, Result: res})
	}
	return rows, nil
}

func init() {
	bindSimFlags(compareCmd.Flags(), &compareFlags)
	compareCmd.Flags().StringSliceVar(&compareFlags.weights, "weights", []string{"A=2", "B=1"}, "WRR group weights as ordered group=weight pairs")
	rootCmd.AddCommand(compareCmd)
}
