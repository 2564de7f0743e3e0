// cmd/simbacat/export.go
package simbacat

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/simbacat/simbacat/internal/dataset"
	"github.com/simbacat/simbacat/internal/store"
)

var exportFlags struct {
	db     string
	output string
}

// exportCmd represents the 'export' command.
var exportCmd = &cobra.Command{
	Use:   "export <experiment-id>",
	Short: "Write an archived experiment back to CSV",
	Long: `The 'export' command re-creates the CSV of an experiment archived with
'simulate --db'. Any unique prefix of the experiment ID is accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openArchive(exportFlags.db)
		if err != nil {
			return err
		}
		defer st.Close()

		exp, rec, err := st.LoadExperiment(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := exportFlags.output
		if out == "" {
			out = rec.ID + ".csv"
		}
		if err := dataset.WriteFile(out, exp, nil); err != nil {
			return err
		}
		logger.Info("experiment exported", "id", rec.ID, "path", out)
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFlags.db, "db", "simbacat.db", "path to the SQLite archive")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output CSV (default: <id>.csv)")
}

// openArchive opens an existing archive. Unlike store.Open it never creates
// the file, so a mistyped --db path is reported instead of read as empty.
func openArchive(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("archive %s does not exist", path)
		}
		return nil, err
	}
	return store.Open(path)
}
