// Package selection picks the most representative run of a group of
// stochastic simulation runs.
//
// Every run accumulates, tick by tick, the squared deviation of its metrics
// from the cross-run mean, normalised by the cross-run variance:
//
//	score[k] += Σ_m ((x[k][t][m] - mean[t][m]) / var[t][m])²
//
// Metrics whose variance is zero at a tick are skipped for that tick. After
// each tick the smallest score is subtracted from all scores. The run with the
// lowest final score is the representative one.
package selection

import (
	"errors"
	"fmt"

	"github.com/simbacat/simbacat/internal/dataset"
)

var (
	// ErrNoRuns is returned when there is nothing to select from.
	ErrNoRuns = errors.New("selection: no runs")
	// ErrRaggedTable is returned when runs disagree on tick count or metric width.
	ErrRaggedTable = errors.New("selection: runs differ in shape")
)

// Result is the outcome of a selection.
type Result struct {
	// Index is the position of the selected run in the input slice.
	Index int
	// Scores holds the final accumulated score of every run. The selected
	// run's score is always zero.
	Scores []float64
}

// Select returns the most representative of runs. Ties go to the lowest index.
func Select(runs []dataset.Run) (Result, error) {
	if len(runs) == 0 {
		return Result{}, ErrNoRuns
	}
	ticks, metrics, err := shape(runs)
	if err != nil {
		return Result{}, err
	}

	n := float64(len(runs))
	scores := make([]float64, len(runs))
	means := make([]float64, metrics)
	vars := make([]float64, metrics)

	for t := 0; t < ticks; t++ {
		for m := 0; m < metrics; m++ {
			var sum float64
			for _, r := range runs {
				sum += r.Values[t][m]
			}
			mean := sum / n
			var sq float64
			for _, r := range runs {
				d := r.Values[t][m] - mean
				sq += d * d
			}
			means[m] = mean
			vars[m] = sq / n
		}

		for k, r := range runs {
			for m := 0; m < metrics; m++ {
				if vars[m] == 0 {
					continue
				}
				z := (r.Values[t][m] - means[m]) / vars[m]
				scores[k] += z * z
			}
		}

		lo := scores[argmin(scores)]
		for k := range scores {
			scores[k] -= lo
		}
	}

	return Result{Index: argmin(scores), Scores: scores}, nil
}

// MarkGroup selects the representative run of g and records it on the group.
func MarkGroup(g *dataset.Group) error {
	res, err := Select(g.Runs)
	if err != nil {
		return err
	}
	g.Representative = res.Index
	g.Scores = res.Scores
	return nil
}

// MarkExperiment marks every group of exp.
func MarkExperiment(exp *dataset.Experiment) error {
	for i := range exp.Groups {
		if err := MarkGroup(&exp.Groups[i]); err != nil {
			if exp.Swept() {
				return fmt.Errorf("%s = %v: %w", exp.Parameter, exp.Groups[i].Value, err)
			}
			return err
		}
	}
	return nil
}

func shape(runs []dataset.Run) (ticks, metrics int, err error) {
	ticks = runs[0].Ticks()
	if ticks > 0 {
		metrics = len(runs[0].Values[0])
	}
	for _, r := range runs {
		if r.Ticks() != ticks {
			return 0, 0, fmt.Errorf("%w: run %d has %d ticks, want %d", ErrRaggedTable, r.ID, r.Ticks(), ticks)
		}
		for t, row := range r.Values {
			if len(row) != metrics {
				return 0, 0, fmt.Errorf("%w: run %d tick %d has %d metrics, want %d", ErrRaggedTable, r.ID, t, len(row), metrics)
			}
		}
	}
	return ticks, metrics, nil
}

func argmin(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x < xs[best] {
			best = i
		}
	}
	return best
}
