// cmd/simbacat/list_experiments.go
package simbacat

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simbacat/simbacat/cli"
)

var dbPath string

// experimentsCmd implements 'list experiments'.
var experimentsCmd = &cobra.Command{
	Use:   "experiments",
	Short: "List the experiments archived in a database",
	Long:  `The 'experiments' subcommand lists every experiment archived with 'simulate --db', newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openArchive(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListExperiments(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no experiments in %s\n", dbPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cli.Title("Experiments in "+dbPath))
		fmt.Fprintln(cmd.OutOrStdout(), cli.ExperimentsTable(records))
		return nil
	},
}

func init() {
	listCmd.AddCommand(experimentsCmd)
	experimentsCmd.Flags().StringVar(&dbPath, "db", "simbacat.db", "path to the SQLite archive")
}
