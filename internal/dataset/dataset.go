// Package dataset holds the observation tables produced by repeated
// simulation runs and reads and writes them as CSV.
package dataset

import (
	"fmt"
	"math"
)

// RepresentativeID is the run number written for the representative run of a
// group. Regular runs are numbered from 1.
const RepresentativeID = 0

// Missing is the sentinel the engine reports for an undefined metric value
// (e.g. the average tolerance of an empty population).
const Missing = -1.0

// Run is one independent stochastic execution of the model.
type Run struct {
	// ID is the 1-based run number. RepresentativeID only appears in files.
	ID int
	// Values is indexed [tick][metric].
	Values [][]float64
}

// Ticks returns the number of recorded ticks.
func (r Run) Ticks() int { return len(r.Values) }

// Series returns the per-tick values of a single metric.
func (r Run) Series(metric int) []float64 {
	out := make([]float64, len(r.Values))
	for t, row := range r.Values {
		out[t] = row[metric]
	}
	return out
}

// Group is the set of runs simulated with the same sweep value.
type Group struct {
	Value float64
	Runs  []Run
	// Representative is the position in Runs of the most representative run,
	// or -1 when no run has been selected.
	Representative int
	// Scores are the final selector scores, aligned with Runs. Empty when the
	// group was read from a file.
	Scores []float64
}

// NewGroup returns an unmarked group.
func NewGroup(value float64, runs []Run) Group {
	return Group{Value: value, Runs: runs, Representative: -1}
}

// Ticks returns the longest tick count across the group's runs.
func (g Group) Ticks() int {
	n := 0
	for _, r := range g.Runs {
		n = max(n, r.Ticks())
	}
	return n
}

// RepresentativeRun returns the marked run, if any.
func (g Group) RepresentativeRun() (Run, bool) {
	if g.Representative < 0 || g.Representative >= len(g.Runs) {
		return Run{}, false
	}
	return g.Runs[g.Representative], true
}

// Experiment is the full result of a simulation: one group without a sweep,
// one group per sweep value otherwise.
type Experiment struct {
	// Parameter names the swept global variable. Empty without a sweep.
	Parameter string
	// Metrics are the reporter names (or CSV column labels), in column order.
	Metrics []string
	Groups  []Group
}

// Swept reports whether the experiment varied a global parameter.
func (e *Experiment) Swept() bool { return e.Parameter != "" }

// Group returns the group simulated with the given sweep value.
func (e *Experiment) Group(value float64) (Group, error) {
	for _, g := range e.Groups {
		if g.Value == value {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("no runs for %s = %v", e.Parameter, value)
}

// TotalRuns counts runs across all groups.
func (e *Experiment) TotalRuns() int {
	n := 0
	for _, g := range e.Groups {
		n += len(g.Runs)
	}
	return n
}

// MeanSeries averages one metric across the group's runs at every tick,
// ignoring missing values. Ticks where every value is missing yield NaN.
func MeanSeries(g Group, metric int) []float64 {
	ticks := g.Ticks()
	out := make([]float64, ticks)
	for t := 0; t < ticks; t++ {
		var sum float64
		var n int
		for _, r := range g.Runs {
			if t >= r.Ticks() {
				continue
			}
			v := r.Values[t][metric]
			if IsMissing(v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			out[t] = math.NaN()
			continue
		}
		out[t] = sum / float64(n)
	}
	return out
}

// IsMissing reports whether v is the engine's missing-value sentinel or below it.
func IsMissing(v float64) bool { return v <= Missing || math.IsNaN(v) }
