package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simbacat/simbacat/internal/dataset"
)

func TestSummarize(t *testing.T) {
	g := dataset.NewGroup(0, []dataset.Run{
		{ID: 1, Values: [][]float64{{0, 0}, {10, 0.5}}},
		{ID: 2, Values: [][]float64{{0, 0}, {20, -1}}},
		{ID: 3, Values: [][]float64{{0, 0}, {30, 0.7}}},
	})
	g.Representative = 1
	exp := &dataset.Experiment{Metrics: []string{"count bacteria", "avg-tolerance"}, Groups: []dataset.Group{g}}

	sums := Summarize(exp)
	require.Len(t, sums, 1)
	s := sums[0]
	assert.False(t, s.Swept)
	assert.Equal(t, 3, s.Runs)
	assert.Equal(t, 2, s.Ticks)
	assert.Equal(t, 2, s.RepresentativeRun)

	count := s.Metrics[0]
	assert.Equal(t, "count bacteria", count.Metric)
	assert.InDelta(t, 20, count.Mean, 1e-9)
	assert.InDelta(t, 8.16496580927726, count.Std, 1e-9)
	assert.InDelta(t, 20, count.P50, 1e-9)
	assert.InDelta(t, 29, count.P95, 1e-9)
	assert.Equal(t, 3, count.Samples)

	tol := s.Metrics[1]
	assert.Equal(t, 2, tol.Samples, "missing final value is skipped")
	assert.InDelta(t, 0.6, tol.Mean, 1e-9)
}

func TestDescribe_Empty(t *testing.T) {
	ms := describe("x", nil)
	assert.Equal(t, MetricSummary{Metric: "x"}, ms)
}

func TestQuantileSorted(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, quantileSorted(xs, 0))
	assert.Equal(t, 4.0, quantileSorted(xs, 1))
	assert.InDelta(t, 2.5, quantileSorted(xs, 0.5), 1e-12)
	assert.Equal(t, 7.0, quantileSorted([]float64{7}, 0.95))
}
