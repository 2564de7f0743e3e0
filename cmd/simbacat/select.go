// cmd/simbacat/select.go
package simbacat

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simbacat/simbacat/cli"
	"github.com/simbacat/simbacat/internal/dataset"
	"github.com/simbacat/simbacat/internal/selection"
)

var selectOutput string

// selectCmd represents the 'select' command.
var selectCmd = &cobra.Command{
	Use:   "select <data.csv>",
	Short: "Select the most representative run of every group",
	Long: `The 'select' command recomputes the representative run of every group of a
CSV written by simulate and prints the score of each run. With --output the
observations are written again with the new representative marked as run 0.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exp, err := dataset.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := selection.MarkExperiment(exp); err != nil {
			return err
		}
		for _, g := range exp.Groups {
			if r, ok := g.RepresentativeRun(); ok {
				logger.Debug("representative selected", "value", g.Value, "run", r.ID)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.Title("Representative runs"))
		fmt.Fprintln(cmd.OutOrStdout(), cli.ScoresTable(exp))

		if selectOutput != "" {
			if err := dataset.WriteFile(selectOutput, exp, nil); err != nil {
				return err
			}
			logger.Info("observations written", "path", selectOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().StringVarP(&selectOutput, "output", "o", "", "write the marked observations to this CSV")
}
