package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simbacat/simbacat/internal/dataset"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sweepExperiment() *dataset.Experiment {
	low := dataset.NewGroup(0.5, []dataset.Run{
		{ID: 1, Values: [][]float64{{100, 0.25}, {120, 0.5}}},
		{ID: 2, Values: [][]float64{{90, 0.75}, {80, -1}}},
	})
	low.Representative = 1
	low.Scores = []float64{3.5, 0}
	high := dataset.NewGroup(1.5, []dataset.Run{
		{ID: 1, Values: [][]float64{{100, 0.5}, {60, 1}}},
	})
	return &dataset.Experiment{
		Parameter: "mutation-rate",
		Metrics:   []string{"count bacteria", "avg-tolerance"},
		Groups:    []dataset.Group{low, high},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)

	for _, table := range []string{"experiments", "run_groups", "runs", "observations"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q", table)
	}

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestSaveAndLoadExperiment(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	exp := sweepExperiment()

	rec, err := s.SaveExperiment(ctx, exp, Meta{
		Name:   "data.csv",
		Model:  "tolerance.nlogo",
		Config: map[string]any{"ticks": 2},
	})
	require.NoError(t, err)

	parsed, err := uuid.Parse(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Equal(t, 2, rec.Groups)
	assert.Equal(t, 3, rec.Runs)

	got, loaded, err := s.LoadExperiment(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, exp, got)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, "tolerance.nlogo", loaded.Model)
	assert.JSONEq(t, `{"ticks": 2}`, string(loaded.Config))
	assert.WithinDuration(t, rec.CreatedAt, loaded.CreatedAt, time.Microsecond)
}

func TestLoadExperiment_Unscored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	exp := &dataset.Experiment{
		Metrics: []string{"x"},
		Groups:  []dataset.Group{dataset.NewGroup(0, []dataset.Run{{ID: 1, Values: [][]float64{{1}, {2}}}})},
	}
	rec, err := s.SaveExperiment(ctx, exp, Meta{})
	require.NoError(t, err)

	got, loaded, err := s.LoadExperiment(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Groups[0].Scores)
	assert.Equal(t, -1, got.Groups[0].Representative)
	assert.False(t, got.Swept())
	assert.JSONEq(t, `{}`, string(loaded.Config))
}

func TestLoadExperiment_Prefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec, err := s.SaveExperiment(ctx, sweepExperiment(), Meta{})
	require.NoError(t, err)

	got, _, err := s.LoadExperiment(ctx, rec.ID[:13])
	require.NoError(t, err)
	assert.Len(t, got.Groups, 2)

	_, _, err = s.LoadExperiment(ctx, "ffffffff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_Ambiguous(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a, err := s.SaveExperiment(ctx, sweepExperiment(), Meta{})
	require.NoError(t, err)
	b, err := s.SaveExperiment(ctx, sweepExperiment(), Meta{})
	require.NoError(t, err)

	common := 0
	for common < len(a.ID) && a.ID[common] == b.ID[common] {
		common++
	}
	_, err = s.Resolve(ctx, a.ID[:common])
	assert.ErrorIs(t, err, ErrAmbiguousID)

	id, err := s.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)
}

func TestResolve_LiteralPrefix(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec, err := s.SaveExperiment(ctx, sweepExperiment(), Meta{})
	require.NoError(t, err)

	for _, pattern := range []string{"%", "_", "________", rec.ID[:4] + "%", ""} {
		_, err := s.Resolve(ctx, pattern)
		assert.ErrorIs(t, err, ErrNotFound, "pattern %q", pattern)
	}

	_, err = s.DeleteExperiment(ctx, "________")
	assert.ErrorIs(t, err, ErrNotFound)
	records, err := s.ListExperiments(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListExperiments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	records, err := s.ListExperiments(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	first, err := s.SaveExperiment(ctx, sweepExperiment(), Meta{Name: "first"})
	require.NoError(t, err)
	second, err := s.SaveExperiment(ctx, sweepExperiment(), Meta{Name: "second"})
	require.NoError(t, err)

	records, err = s.ListExperiments(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second.ID, records[0].ID, "newest first")
	assert.Equal(t, first.ID, records[1].ID)
	assert.Equal(t, "mutation-rate", records[0].Parameter)
	assert.Equal(t, []string{"count bacteria", "avg-tolerance"}, records[0].Metrics)
	assert.Equal(t, 3, records[0].Runs)
	assert.Nil(t, records[0].Config)
}

func TestDeleteExperiment(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec, err := s.SaveExperiment(ctx, sweepExperiment(), Meta{})
	require.NoError(t, err)

	id, err := s.DeleteExperiment(ctx, rec.ID[:13])
	require.NoError(t, err)
	assert.Equal(t, rec.ID, id)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&n))
	assert.Zero(t, n, "observations cascade")

	_, err = s.DeleteExperiment(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveExperiment_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SaveExperiment(ctx, sweepExperiment(), Meta{})
	assert.ErrorIs(t, err, context.Canceled)

	records, err := s.ListExperiments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
