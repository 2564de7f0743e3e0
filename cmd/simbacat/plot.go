// cmd/simbacat/plot.go
package simbacat

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simbacat/simbacat/internal/dataset"
	"github.com/simbacat/simbacat/internal/plot"
)

var plotFlags struct {
	plots []int
	value float64
	image string
}

// plotCmd represents the 'plot' command.
var plotCmd = &cobra.Command{
	Use:   "plot <data.csv> [-p panel...]",
	Short: "Render a CSV written by simulate as a PNG plot",
	Long: `The 'plot' command draws one panel per selected metric. Without a sweep every
run is drawn faintly together with the mean and the representative run. With a
sweep one mean line is drawn per sweep value, unless --value picks a single
group. The image is written next to the CSV unless --image is given.
Panels may be listed as "-p 1,3" or "-p 1 3".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plots, err := panelArgs(cmd, plotFlags.plots, args[1:])
		if err != nil {
			return err
		}
		plotFlags.plots = plots
		return runPlot(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotCmd.Flags().IntSliceVarP(&plotFlags.plots, "plots", "p", nil, "metric panels to plot, numbered from 1 (default all)")
	plotCmd.Flags().Float64Var(&plotFlags.value, "value", 0, "plot only the runs of this sweep value")
	plotCmd.Flags().StringVarP(&plotFlags.image, "image", "i", "", "output PNG (default: the CSV path with .png)")
}

func runPlot(cmd *cobra.Command, path string) error {
	exp, err := dataset.ReadFile(path)
	if err != nil {
		return err
	}

	opts := plotOptions(appConfig, plotFlags.plots)
	if cmd.Flags().Changed("value") {
		if !exp.Swept() {
			return fmt.Errorf("--value: %s has no sweep column", path)
		}
		v := plotFlags.value
		opts.Value = &v
		opts.Caption = fmt.Sprintf("%s = %v", exp.Parameter, v)
	}

	out := plotFlags.image
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
	}
	if err := plot.WriteFile(out, exp, opts); err != nil {
		if errors.Is(err, plot.ErrInvalidPlot) {
			return fmt.Errorf("--plots: %w", err)
		}
		return err
	}
	logger.Info("plot written", "path", out)
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// panelArgs appends the panel numbers that follow -p as separate arguments,
// as in "plot data.csv -p 1 2 3".
func panelArgs(cmd *cobra.Command, plots []int, extra []string) ([]int, error) {
	if len(extra) == 0 {
		return plots, nil
	}
	if !cmd.Flags().Changed("plots") {
		return nil, fmt.Errorf("unexpected arguments %v", extra)
	}
	for _, a := range extra {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("--plots: %q is not a panel number", a)
		}
		plots = append(plots, n)
	}
	return plots, nil
}
