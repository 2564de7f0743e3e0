package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simbacat/simbacat/internal/dataset"
)

// runsFrom builds runs from values indexed [run][tick][metric], numbering
// them from 1.
func runsFrom(values [][][]float64) []dataset.Run {
	runs := make([]dataset.Run, len(values))
	for i, v := range values {
		runs[i] = dataset.Run{ID: i + 1, Values: v}
	}
	return runs
}

func TestSelect_ThreeRunsOneMetric(t *testing.T) {
	runs := runsFrom([][][]float64{
		{{1}, {1}},
		{{2}, {2}},
		{{3}, {3}},
	})

	res, err := Select(runs)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Index, "run holding the mean should be selected")
	assert.Equal(t, 2, runs[res.Index].ID)
	// (1/(2/3))² = 2.25 per tick, two ticks.
	assert.InDelta(t, 4.5, res.Scores[0], 1e-9)
	assert.InDelta(t, 0, res.Scores[1], 1e-9)
	assert.InDelta(t, 4.5, res.Scores[2], 1e-9)
}

func TestSelect_RunAtMeanIsSelected(t *testing.T) {
	// Run 3 sits exactly on the cross-run mean at every tick for both metrics.
	runs := runsFrom([][][]float64{
		{{10, 0.2}, {14, 0.1}, {20, 0.5}},
		{{30, 0.6}, {22, 0.5}, {40, 0.9}},
		{{20, 0.4}, {18, 0.3}, {30, 0.7}},
	})

	res, err := Select(runs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Index)
	assert.Zero(t, res.Scores[2])
	for i, s := range res.Scores {
		assert.GreaterOrEqual(t, s, res.Scores[res.Index], "score %d", i)
	}
}

func TestSelect_IdenticalRunsTieToFirst(t *testing.T) {
	runs := runsFrom([][][]float64{
		{{5, 1}, {6, 1}},
		{{5, 1}, {6, 1}},
		{{5, 1}, {6, 1}},
	})

	res, err := Select(runs)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Index)
	assert.Equal(t, []float64{0, 0, 0}, res.Scores)
}

func TestSelect_ZeroVarianceMetricIsSkipped(t *testing.T) {
	// The second metric is constant, so only the first one decides.
	runs := runsFrom([][][]float64{
		{{1, 7}},
		{{2, 7}},
		{{3, 7}},
	})

	res, err := Select(runs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Index)
	assert.InDelta(t, 2.25, res.Scores[0], 1e-9)
}

func TestSelect_ZeroVarianceTickContributesNothing(t *testing.T) {
	withFlat := runsFrom([][][]float64{
		{{4}, {1}},
		{{4}, {2}},
		{{4}, {3}},
	})
	without := runsFrom([][][]float64{
		{{1}},
		{{2}},
		{{3}},
	})

	a, err := Select(withFlat)
	require.NoError(t, err)
	b, err := Select(without)
	require.NoError(t, err)
	assert.Equal(t, b.Index, a.Index)
	assert.InDeltaSlice(t, b.Scores, a.Scores, 1e-9)
}

func TestSelect_MinimumSubtractedEveryTick(t *testing.T) {
	// Run 1 leads after tick 0, run 3 after tick 1; scores stay anchored at zero.
	runs := runsFrom([][][]float64{
		{{2}, {0}},
		{{0}, {1}},
		{{1}, {2}},
	})

	res, err := Select(runs)
	require.NoError(t, err)
	lo := res.Scores[0]
	for _, s := range res.Scores {
		lo = min(lo, s)
	}
	assert.Zero(t, lo)
	assert.Zero(t, res.Scores[res.Index])
}

func TestSelect_Errors(t *testing.T) {
	_, err := Select(nil)
	assert.ErrorIs(t, err, ErrNoRuns)

	_, err = Select(runsFrom([][][]float64{
		{{1}, {2}},
		{{1}},
	}))
	assert.ErrorIs(t, err, ErrRaggedTable)

	_, err = Select(runsFrom([][][]float64{
		{{1, 2}},
		{{1}},
	}))
	assert.ErrorIs(t, err, ErrRaggedTable)
}

func TestMarkExperiment(t *testing.T) {
	exp := &dataset.Experiment{
		Parameter: "dose",
		Metrics:   []string{"count bacteria"},
		Groups: []dataset.Group{
			dataset.NewGroup(0.5, runsFrom([][][]float64{{{1}}, {{2}}, {{3}}})),
			dataset.NewGroup(1.0, runsFrom([][][]float64{{{9}}, {{1}}, {{5}}})),
		},
	}

	require.NoError(t, MarkExperiment(exp))
	assert.Equal(t, 1, exp.Groups[0].Representative)
	assert.Equal(t, 2, exp.Groups[1].Representative)
	assert.Len(t, exp.Groups[1].Scores, 3)

	exp.Groups = append(exp.Groups, dataset.NewGroup(2.0, nil))
	err := MarkExperiment(exp)
	assert.ErrorIs(t, err, ErrNoRuns)
	assert.Contains(t, err.Error(), "dose = 2")
}
