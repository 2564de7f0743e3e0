// harness/runner.go
// Package: harness
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/simbacat/simbacat/engine"
	"github.com/simbacat/simbacat/internal/dataset"
)

// Simulate runs the experiment described by cfg and returns every observation.
//
// Global setup commands are applied to every workspace first. Without a sweep
// all runs go to the first engine. With a sweep the values are dealt out
// round-robin, one worker per engine; the first failure cancels the rest.
// Groups are returned in sweep order regardless of which engine ran them.
func Simulate(ctx context.Context, engines []engine.Engine, cfg SimulateConfig, logger *slog.Logger, progress ProgressFunc) (*dataset.Experiment, error) {
	if len(engines) == 0 {
		return nil, errors.New("at least one engine is required")
	}
	if len(cfg.Reports) == 0 {
		return nil, errors.New("at least one reporter is required")
	}
	if cfg.Ticks <= 0 || cfg.Runs <= 0 {
		return nil, fmt.Errorf("ticks and runs must be positive (ticks=%d runs=%d)", cfg.Ticks, cfg.Runs)
	}
	if cfg.Go == "" {
		cfg.Go = "go"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	exp := &dataset.Experiment{Metrics: append([]string(nil), cfg.Reports...)}
	values := []float64{0}
	if cfg.Sweep != nil {
		if len(cfg.Sweep.Values) == 0 {
			return nil, fmt.Errorf("sweep over %s has no values", cfg.Sweep.Parameter)
		}
		exp.Parameter = cfg.Sweep.Parameter
		values = cfg.Sweep.Values
	} else {
		engines = engines[:1]
	}
	if len(engines) > len(values) {
		engines = engines[:len(values)]
	}

	for _, e := range engines {
		if err := applySetup(ctx, e, cfg.Setup, logger); err != nil {
			return nil, err
		}
	}

	groups := make([]dataset.Group, len(values))
	tracker := &progressTracker{total: len(values) * cfg.Runs, fn: progress}

	g, gctx := errgroup.WithContext(ctx)
	for w, e := range engines {
		g.Go(func() error {
			for i := w; i < len(values); i += len(engines) {
				runs, err := simulateGroup(gctx, e, cfg, exp.Parameter, values[i], logger, tracker)
				if err != nil {
					if exp.Parameter != "" {
						return fmt.Errorf("%s: %s = %v: %w", e.Name(), exp.Parameter, values[i], err)
					}
					return fmt.Errorf("%s: %w", e.Name(), err)
				}
				groups[i] = dataset.NewGroup(values[i], runs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	exp.Groups = groups
	return exp, nil
}

// applySetup sets every global variable, in name order so logs are stable.
func applySetup(ctx context.Context, e engine.Engine, setup map[string]any, logger *slog.Logger) error {
	names := make([]string, 0, len(setup))
	for name := range setup {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := engine.SetCommand(name, setup[name])
		logger.Debug("setup command", "engine", e.Name(), "command", cmd)
		if err := e.Command(ctx, cmd); err != nil {
			return fmt.Errorf("%s: %s: %w", e.Name(), cmd, err)
		}
	}
	return nil
}

// simulateGroup performs cfg.Runs runs on e, after setting the sweep
// parameter when there is one.
func simulateGroup(ctx context.Context, e engine.Engine, cfg SimulateConfig, parameter string, value float64, logger *slog.Logger, tracker *progressTracker) ([]dataset.Run, error) {
	log := logger.With("engine", e.Name())
	if parameter != "" {
		cmd := engine.SetCommand(parameter, value)
		log.Debug("sweep value", "command", cmd)
		if err := e.Command(ctx, cmd); err != nil {
			return nil, err
		}
		log = log.With(parameter, value)
	}

	runs := make([]dataset.Run, 0, cfg.Runs)
	for i := 1; i <= cfg.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debug("run", "run", i, "command", engine.RepeatCommand(cfg.Ticks, cfg.Go))

		if err := e.Command(ctx, "setup"); err != nil {
			return nil, fmt.Errorf("run %d: setup: %w", i, err)
		}
		rep, err := e.RepeatReport(ctx, cfg.Reports, cfg.Ticks, cfg.Go)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		run, err := toRun(i, cfg.Reports, rep)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		for m, name := range cfg.Reports {
			log.Debug("report", "run", i, "reporter", name, "last", lastValue(run, m))
		}
		runs = append(runs, run)
		tracker.done(Progress{Engine: e.Name(), Swept: parameter != "", Value: value, Run: i})
	}
	return runs, nil
}

// toRun transposes a reporter → series map into a [tick][metric] table.
func toRun(id int, reporters []string, rep map[string][]float64) (dataset.Run, error) {
	ticks, err := engine.CheckReport(reporters, rep)
	if err != nil {
		return dataset.Run{}, err
	}
	values := make([][]float64, ticks)
	for t := range values {
		row := make([]float64, len(reporters))
		for m, name := range reporters {
			row[m] = rep[name][t]
		}
		values[t] = row
	}
	return dataset.Run{ID: id, Values: values}, nil
}

func lastValue(r dataset.Run, metric int) float64 {
	if r.Ticks() == 0 {
		return 0
	}
	return r.Values[r.Ticks()-1][metric]
}

// progressTracker serialises progress callbacks from the engine workers.
type progressTracker struct {
	mu    sync.Mutex
	n     int
	total int
	fn    ProgressFunc
}

func (p *progressTracker) done(pr Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	pr.Done, pr.Total = p.n, p.total
	p.fn(pr)
}
