// harness/results.go
// Package: harness
package harness

import (
	"github.com/simbacat/simbacat/internal/dataset"
)

// Summarize builds per-group summaries of the final tick of every run.
// Missing values are left out of the statistics.
func Summarize(exp *dataset.Experiment) []GroupSummary {
	out := make([]GroupSummary, 0, len(exp.Groups))
	for _, g := range exp.Groups {
		gs := GroupSummary{
			Swept: exp.Swept(),
			Value: g.Value,
			Runs:  len(g.Runs),
			Ticks: g.Ticks(),
		}
		if r, ok := g.RepresentativeRun(); ok {
			gs.RepresentativeRun = r.ID
		}

		for m, name := range exp.Metrics {
			var finals []float64
			for _, r := range g.Runs {
				if r.Ticks() == 0 {
					continue
				}
				v := r.Values[r.Ticks()-1][m]
				if dataset.IsMissing(v) {
					continue
				}
				finals = append(finals, v)
			}
			gs.Metrics = append(gs.Metrics, describe(name, finals))
		}
		out = append(out, gs)
	}
	return out
}
