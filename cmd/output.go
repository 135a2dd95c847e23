package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/gridqueue/gridqueue-sim/sim"
	"github.com/gridqueue/gridqueue-sim/sim/trace"
)

// report wraps a result record with run identity for machine-readable output.
type report struct {
	RunID     string      `json:"run_id" yaml:"run_id"`
	Scenario  string      `json:"scenario" yaml:"scenario"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
	Result    *sim.Result `json:"result" yaml:"result"`
}

func newReport(scenario string, res *sim.Result) report {
	return report{
		RunID:     uuid.NewString(),
		Scenario:  scenario,
		CreatedAt: time.Now().UTC(),
		Result:    res,
	}
}

// writeReport renders rep in the requested format.
func writeReport(w io.Writer, format string, rep report) error {
	switch format {
	case "", "text":
		printResult(w, rep)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (valid: text, json, yaml)", format)
	}
}

// printResult prints a human-readable summary of one run.
func printResult(w io.Writer, rep report) {
	r := rep.Result
	fmt.Fprintf(w, "=== Simulation Result (%s) ===\n", rep.RunID)
	fmt.Fprintf(w, "Scheduler            : %s\n", r.Scheduler)
	fmt.Fprintf(w, "Seed / Horizon       : %d / %.1f\n", r.Seed, r.Horizon)
	fmt.Fprintf(w, "Arrivals             : %d\n", r.Arrivals)
	fmt.Fprintf(w, "Processed            : %d\n", r.Processed)
	fmt.Fprintf(w, "Deadline Drops       : %d\n", r.DeadlineDrops)
	fmt.Fprintf(w, "Still Queued         : %d\n", r.StillQueued)
	fmt.Fprintf(w, "Average Wait         : %.3f\n", r.AvgWait)
	fmt.Fprintf(w, "Average Response     : %.3f\n", r.AvgResponse)
	fmt.Fprintf(w, "Utilization          : %.3f\n", r.Utilization)
	fmt.Fprintf(w, "Wait p50/p95/p99     : %.3f / %.3f / %.3f\n",
		r.WaitDistribution.P50, r.WaitDistribution.P95, r.WaitDistribution.P99)
	fmt.Fprintf(w, "Reroutes             : %d\n", r.Reroutes)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSOURCE\tMIX\tUSED\tOUTAGES\tDOWNTIME\tAVAILABILITY")
	for _, src := range sim.AllSources {
		o := r.Outages[src]
		fmt.Fprintf(tw, "%s\t%.3f\t%d\t%d\t%.2f\t%.4f\n", src, r.EnergyMix[src], r.SourceUsage[src], o.Count, o.Downtime, o.Availability)
	}
	fmt.Fprintln(tw, "\nPRIORITY\tN\tAVG WAIT\tAVG RESPONSE")
	for _, p := range sortedPriorities(r.ByPriority) {
		st := r.ByPriority[p]
		fmt.Fprintf(tw, "%d\t%d\t%.3f\t%.3f\n", p, st.Count, st.AvgWait, st.AvgResponse)
	}
	fmt.Fprintln(tw, "\nGROUP\tN\tAVG WAIT\tAVG RESPONSE")
	for _, g := range sortedGroups(r.ByGroup) {
		st := r.ByGroup[g]
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\n", g, st.Count, st.AvgWait, st.AvgResponse)
	}
	_ = tw.Flush()
}

func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "\n=== Decision Trace ===")
	fmt.Fprintf(w, "Dispatches           : %d\n", s.TotalDispatches)
	fmt.Fprintf(w, "Drops                : %d (mean lateness %.3f, max %.3f)\n", s.TotalDrops, s.MeanLateness, s.MaxLateness)
	fmt.Fprintf(w, "Outage Transitions   : %d\n", s.OutageTransitions)
	srcs := make([]string, 0, len(s.SourceDistribution))
	for k := range s.SourceDistribution {
		srcs = append(srcs, k)
	}
	sort.Strings(srcs)
	parts := make([]string, len(srcs))
	for i, k := range srcs {
		parts[i] = fmt.Sprintf("%s=%d", k, s.SourceDistribution[k])
	}
	fmt.Fprintf(w, "Dispatch Sources     : %s\n", strings.Join(parts, " "))
}

// comparisonRow is one line of a compare or sweep table.
type comparisonRow struct {
	Label  string      `json:"label" yaml:"label"`
	Result *sim.Result `json:"result" yaml:"result"`
}

// printComparison prints one row per result with the headline metrics.
func printComparison(w io.Writer, title string, rows []comparisonRow) {
	fmt.Fprintf(w, "=== %s ===\n", title)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tPROCESSED\tDROPS\tAVG WAIT\tAVG RESP\tUTIL\tRENEWABLE\tAVAIL(R)\tAVAIL(B)")
	for _, row := range rows {
		r := row.Result
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.4f\t%.4f\n",
			row.Label, r.Processed, r.DeadlineDrops, r.AvgWait, r.AvgResponse, r.Utilization,
			r.EnergyMix[sim.SourceRenewable],
			r.Outages[sim.SourceRenewable].Availability, r.Outages[sim.SourceBattery].Availability)
	}
	_ = tw.Flush()
}

func writeComparison(w io.Writer, format, title string, rows []comparisonRow) error {
	switch format {
	case "", "text":
		printComparison(w, title, rows)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		return yaml.NewEncoder(w).Encode(rows)
	default:
		return fmt.Errorf("unknown output format %q (valid: text, json, yaml)", format)
	}
}

func sortedPriorities(m map[int]sim.ClassStats) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedGroups(m map[string]sim.ClassStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
