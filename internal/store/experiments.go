package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simbacat/simbacat/internal/dataset"
)

// timeLayout has a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Meta describes where an experiment came from.
type Meta struct {
	Name  string
	Model string
	// Config is stored as JSON. Nil stores an empty object.
	Config any
}

// Record summarises an archived experiment.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Parameter string    `json:"parameter,omitempty"`
	Metrics   []string  `json:"metrics"`
	Groups    int       `json:"groups"`
	Runs      int       `json:"runs"`
	// Config is the JSON snapshot saved with the experiment.
	Config json.RawMessage `json:"config,omitempty"`
}

// SaveExperiment archives exp under a new time-ordered ID.
func (s *Store) SaveExperiment(ctx context.Context, exp *dataset.Experiment, meta Meta) (Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, fmt.Errorf("save experiment: %w", err)
	}
	metrics, err := json.Marshal(exp.Metrics)
	if err != nil {
		return Record{}, fmt.Errorf("save experiment: %w", err)
	}
	cfg := []byte("{}")
	if meta.Config != nil {
		if cfg, err = json.Marshal(meta.Config); err != nil {
			return Record{}, fmt.Errorf("save experiment config: %w", err)
		}
	}

	rec := Record{
		ID:        id.String(),
		Name:      meta.Name,
		Model:     meta.Model,
		CreatedAt: time.Now().UTC(),
		Parameter: exp.Parameter,
		Metrics:   exp.Metrics,
		Groups:    len(exp.Groups),
		Runs:      exp.TotalRuns(),
		Config:    cfg,
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO experiments (id, name, model, created_at, parameter, metrics, config)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.Name, rec.Model, rec.CreatedAt.Format(timeLayout), rec.Parameter, string(metrics), string(cfg)); err != nil {
			return fmt.Errorf("insert experiment: %w", err)
		}
		return insertGroups(ctx, tx, rec.ID, exp)
	})
	if err != nil {
		return Record{}, fmt.Errorf("save experiment: %w", err)
	}
	return rec, nil
}

func insertGroups(ctx context.Context, tx *sql.Tx, id string, exp *dataset.Experiment) error {
	groupStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_groups (experiment_id, position, value, representative) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer groupStmt.Close()
	runStmt, err := tx.PrepareContext(ctx, `INSERT INTO runs (experiment_id, group_pos, position, run_no, score) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer runStmt.Close()
	obsStmt, err := tx.PrepareContext(ctx, `INSERT INTO observations (experiment_id, group_pos, run_pos, tick, metric, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer obsStmt.Close()

	for gp, g := range exp.Groups {
		if _, err := groupStmt.ExecContext(ctx, id, gp, g.Value, g.Representative); err != nil {
			return fmt.Errorf("insert group %d: %w", gp, err)
		}
		for rp, r := range g.Runs {
			var score sql.NullFloat64
			if rp < len(g.Scores) {
				score = sql.NullFloat64{Float64: g.Scores[rp], Valid: true}
			}
			if _, err := runStmt.ExecContext(ctx, id, gp, rp, r.ID, score); err != nil {
				return fmt.Errorf("insert run %d: %w", r.ID, err)
			}
			for t, row := range r.Values {
				for m, v := range row {
					if _, err := obsStmt.ExecContext(ctx, id, gp, rp, t, m, v); err != nil {
						return fmt.Errorf("insert observation run %d tick %d: %w", r.ID, t, err)
					}
				}
			}
		}
	}
	return nil
}

// ListExperiments returns every archived experiment, newest first.
func (s *Store) ListExperiments(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.model, e.created_at, e.parameter, e.metrics,
		       (SELECT COUNT(*) FROM run_groups g WHERE g.experiment_id = e.id),
		       (SELECT COUNT(*) FROM runs r WHERE r.experiment_id = e.id)
		FROM experiments e
		ORDER BY e.created_at DESC, e.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return records, nil
}

// Resolve expands a full ID or a unique ID prefix.
func (s *Store) Resolve(ctx context.Context, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	// Compared literally so % and _ in the prefix are not wildcards.
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM experiments WHERE substr(id, 1, length(?1)) = ?1 ORDER BY id LIMIT 2`, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", idOrPrefix, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		if id == idOrPrefix {
			return id, nil
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("%w: %s", ErrAmbiguousID, idOrPrefix)
}

// LoadExperiment reads an experiment back. idOrPrefix may be any unique
// prefix of the ID.
func (s *Store) LoadExperiment(ctx context.Context, idOrPrefix string) (*dataset.Experiment, Record, error) {
	id, err := s.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, Record{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.name, e.model, e.created_at, e.parameter, e.metrics,
		       (SELECT COUNT(*) FROM run_groups g WHERE g.experiment_id = e.id),
		       (SELECT COUNT(*) FROM runs r WHERE r.experiment_id = e.id),
		       e.config
		FROM experiments e WHERE e.id = ?
	`, id)
	var cfg string
	rec, err := scanRecord(func(dest ...any) error {
		return row.Scan(append(dest, &cfg)...)
	})
	if err != nil {
		return nil, Record{}, err
	}
	rec.Config = json.RawMessage(cfg)

	exp := &dataset.Experiment{Parameter: rec.Parameter, Metrics: rec.Metrics}
	if err := s.loadGroups(ctx, id, exp); err != nil {
		return nil, Record{}, err
	}
	if err := s.loadObservations(ctx, id, exp); err != nil {
		return nil, Record{}, err
	}
	return exp, rec, nil
}

func (s *Store) loadGroups(ctx context.Context, id string, exp *dataset.Experiment) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.position, g.value, g.representative, r.position, r.run_no, r.score
		FROM run_groups g
		LEFT JOIN runs r ON r.experiment_id = g.experiment_id AND r.group_pos = g.position
		WHERE g.experiment_id = ?
		ORDER BY g.position, r.position
	`, id)
	if err != nil {
		return fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	scored := map[int]bool{}
	for rows.Next() {
		var (
			gp, rep       int
			value         float64
			runPos, runNo sql.NullInt64
			score         sql.NullFloat64
		)
		if err := rows.Scan(&gp, &value, &rep, &runPos, &runNo, &score); err != nil {
			return fmt.Errorf("scan group: %w", err)
		}
		if gp == len(exp.Groups) {
			g := dataset.NewGroup(value, nil)
			g.Representative = rep
			exp.Groups = append(exp.Groups, g)
			scored[gp] = true
		}
		if !runPos.Valid {
			continue
		}
		g := &exp.Groups[gp]
		g.Runs = append(g.Runs, dataset.Run{ID: int(runNo.Int64)})
		g.Scores = append(g.Scores, score.Float64)
		scored[gp] = scored[gp] && score.Valid
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate groups: %w", err)
	}
	for gp := range exp.Groups {
		if !scored[gp] || len(exp.Groups[gp].Runs) == 0 {
			exp.Groups[gp].Scores = nil
		}
	}
	return nil
}

func (s *Store) loadObservations(ctx context.Context, id string, exp *dataset.Experiment) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_pos, run_pos, tick, metric, value
		FROM observations
		WHERE experiment_id = ?
		ORDER BY group_pos, run_pos, tick, metric
	`, id)
	if err != nil {
		return fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	width := len(exp.Metrics)
	for rows.Next() {
		var gp, rp, t, m int
		var v float64
		if err := rows.Scan(&gp, &rp, &t, &m, &v); err != nil {
			return fmt.Errorf("scan observation: %w", err)
		}
		if gp >= len(exp.Groups) || rp >= len(exp.Groups[gp].Runs) || m >= width {
			return fmt.Errorf("observation (%d, %d, %d, %d) outside the experiment", gp, rp, t, m)
		}
		r := &exp.Groups[gp].Runs[rp]
		for len(r.Values) <= t {
			r.Values = append(r.Values, make([]float64, width))
		}
		r.Values[t][m] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate observations: %w", err)
	}
	return nil
}

// DeleteExperiment removes an experiment and everything recorded for it.
func (s *Store) DeleteExperiment(ctx context.Context, idOrPrefix string) (string, error) {
	id, err := s.Resolve(ctx, idOrPrefix)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("delete experiment %s: %w", id, err)
	}
	return id, nil
}

func scanRecord(scan func(dest ...any) error) (Record, error) {
	var (
		rec       Record
		createdAt string
		metrics   string
	)
	err := scan(&rec.ID, &rec.Name, &rec.Model, &createdAt, &rec.Parameter, &metrics, &rec.Groups, &rec.Runs)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan experiment: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Record{}, fmt.Errorf("experiment %s: created_at: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(metrics), &rec.Metrics); err != nil {
		return Record{}, fmt.Errorf("experiment %s: metrics: %w", rec.ID, err)
	}
	return rec, nil
}
