// cmd/simbacat/delete_experiment.go
package simbacat

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteDB string

// deleteExperimentCmd represents the 'delete experiment' subcommand.
var deleteExperimentCmd = &cobra.Command{
	Use:   "experiment <experiment-id>",
	Short: "Delete an archived experiment",
	Long:  `The 'experiment' subcommand removes an archived experiment and all of its observations. Any unique prefix of the ID is accepted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openArchive(deleteDB)
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.DeleteExperiment(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		return nil
	},
}

// init adds the deleteExperimentCmd to the deleteCmd.
func init() {
	deleteCmd.AddCommand(deleteExperimentCmd)
	deleteExperimentCmd.Flags().StringVar(&deleteDB, "db", "simbacat.db", "path to the SQLite archive")
}
