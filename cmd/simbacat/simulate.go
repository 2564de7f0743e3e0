// cmd/simbacat/simulate.go
package simbacat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/simbacat/simbacat/cli"
	"github.com/simbacat/simbacat/engine"
	"github.com/simbacat/simbacat/harness"
	"github.com/simbacat/simbacat/internal/config"
	"github.com/simbacat/simbacat/internal/dataset"
	"github.com/simbacat/simbacat/internal/plot"
	"github.com/simbacat/simbacat/internal/selection"
	"github.com/simbacat/simbacat/internal/store"
)

var (
	dialEngines     = engine.Dial
	runWithProgress = cli.RunProgress
)

var simulateFlags struct {
	engines []string
	image   string
	plots   []int
	db      string
	tui     bool
	noMark  bool
}

// simulateCmd represents the 'simulate' command.
var simulateCmd = &cobra.Command{
	Use:   "simulate <data.csv> [-p panel...]",
	Short: "Run the model repeatedly and write the observations as CSV",
	Long: `The 'simulate' command loads the model into every configured engine, applies
the setup values, runs the configured number of simulations (per sweep value
when a sweep is configured), marks the most representative run of each group
and writes every observation to the given CSV file. The engine workspaces are
always closed again, also on failure.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plots, err := panelArgs(cmd, simulateFlags.plots, args[1:])
		if err != nil {
			return err
		}
		if len(plots) > 0 && simulateFlags.image == "" {
			return errors.New("--plots requires --image")
		}
		simulateFlags.plots = plots
		return runSimulate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.StringP("model", "m", "", "model file to load (overrides engine.model)")
	f.BoolP("gui", "g", false, "open the engine GUI")
	f.IntP("runs", "n", 0, "runs per group (overrides simulate.runs)")
	f.IntP("ticks", "t", 0, "ticks per run (overrides simulate.ticks)")
	f.StringSliceVar(&simulateFlags.engines, "engine", nil, "engine URLs to use instead of engine.hosts")
	f.StringVarP(&simulateFlags.image, "image", "i", "", "also render a plot to this PNG file")
	f.IntSliceVarP(&simulateFlags.plots, "plots", "p", nil, "metric panels to plot, numbered from 1")
	f.StringVar(&simulateFlags.db, "db", "", "archive the experiment in this SQLite database")
	f.BoolVar(&simulateFlags.tui, "tui", false, "show an interactive progress view")
	f.BoolVar(&simulateFlags.noMark, "no-mark", false, "do not select representative runs")
}

func runSimulate(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := *appConfig
	if len(simulateFlags.engines) > 0 {
		cfg.Engine.Hosts = make([]engine.Host, len(simulateFlags.engines))
		for i, u := range simulateFlags.engines {
			cfg.Engine.Hosts[i] = engine.Host{Name: fmt.Sprintf("engine-%d", i+1), URL: u}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if verbose {
		pp.Fprintln(cmd.ErrOrStderr(), cfg)
	}

	logger.Info("starting engines", "hosts", len(cfg.Engine.Hosts), "model", cfg.Engine.Model)
	engines, err := dialEngines(ctx, cfg.DialConfig())
	if err != nil {
		return fmt.Errorf("start engines: %w", err)
	}
	defer func() {
		if err := engine.CloseAll(context.WithoutCancel(ctx), engines); err != nil {
			logger.Error("closing engines", "error", err)
		}
	}()

	exp, err := simulate(ctx, &cfg, engines)
	if err != nil {
		return err
	}

	if !simulateFlags.noMark {
		if err := selection.MarkExperiment(exp); err != nil {
			return fmt.Errorf("select representative runs: %w", err)
		}
	}

	if err := dataset.WriteFile(path, exp, cfg.MetricLabels()); err != nil {
		return err
	}
	logger.Info("observations written", "path", path, "runs", exp.TotalRuns())

	if simulateFlags.image != "" {
		if err := plot.WriteFile(simulateFlags.image, exp, plotOptions(&cfg, simulateFlags.plots)); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
		logger.Info("plot written", "path", simulateFlags.image)
	}

	if simulateFlags.db != "" {
		id, err := archive(ctx, simulateFlags.db, exp, store.Meta{Name: filepath.Base(path), Model: cfg.Engine.Model, Config: cfg})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived as %s\n", id)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.Title("Final tick"))
	fmt.Fprintln(cmd.OutOrStdout(), cli.SummaryTable(harness.Summarize(exp), exp.Parameter))
	return nil
}

// simulate runs the experiment, through the progress view when --tui is set
// and with one log line per finished run otherwise.
func simulate(ctx context.Context, cfg *config.Config, engines []engine.Engine) (*dataset.Experiment, error) {
	var exp *dataset.Experiment
	job := func(ctx context.Context, report harness.ProgressFunc) error {
		var err error
		exp, err = harness.Simulate(ctx, engines, cfg.Simulate, logger, report)
		return err
	}

	if simulateFlags.tui {
		groups := 1
		if cfg.Simulate.Sweep != nil {
			groups = len(cfg.Simulate.Sweep.Values)
		}
		title := "Simulating " + filepath.Base(cfg.Engine.Model)
		if err := runWithProgress(ctx, title, groups*cfg.Simulate.Runs, job); err != nil {
			return nil, err
		}
		return exp, nil
	}

	err := job(ctx, func(p harness.Progress) {
		args := []any{"engine", p.Engine, "run", p.Run, "done", p.Done, "total", p.Total}
		if p.Swept {
			args = append(args, "value", p.Value)
		}
		logger.Info("run finished", args...)
	})
	if err != nil {
		return nil, err
	}
	return exp, nil
}

func archive(ctx context.Context, path string, exp *dataset.Experiment, meta store.Meta) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("closing archive", "error", err)
		}
	}()
	rec, err := st.SaveExperiment(ctx, exp, meta)
	if err != nil {
		return "", err
	}
	logger.Info("experiment archived", "id", rec.ID, "db", path)
	return rec.ID, nil
}

// plotOptions labels plot panels from the configuration.
func plotOptions(cfg *config.Config, plots []int) plot.Options {
	return plot.Options{
		Plots:       plots,
		TimeUnit:    cfg.Plot.TimeUnit,
		Titles:      cfg.Plot.Titles,
		Units:       cfg.Plot.Units,
		PanelWidth:  cfg.Plot.PanelWidth,
		PanelHeight: cfg.Plot.PanelHeight,
	}
}
