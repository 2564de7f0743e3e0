// harness/metrics.go
// Package: harness
package harness

import (
	"math"
	"slices"
)

// describe summarises a sample: mean, population std, p50 and p95.
func describe(metric string, values []float64) MetricSummary {
	ms := MetricSummary{Metric: metric, Samples: len(values)}
	if len(values) == 0 {
		return ms
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	ms.Mean = sum / float64(len(sorted))
	var sq float64
	for _, v := range sorted {
		d := v - ms.Mean
		sq += d * d
	}
	ms.Std = math.Sqrt(sq / float64(len(sorted)))
	ms.P50 = quantileSorted(sorted, 0.50)
	ms.P95 = quantileSorted(sorted, 0.95)
	return ms
}

// quantileSorted interpolates linearly between the closest ranks of an
// ascending sample.
func quantileSorted(sorted []float64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(pos)), int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
