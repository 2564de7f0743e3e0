// cmd/simbacat/config.go
package simbacat

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the 'config' command group.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Group commands for inspecting the configuration",
	Long:  `The 'config' command groups subcommands that inspect the effective configuration. It performs no action on its own.`,
}

// configShowCmd prints the configuration after file, environment and flag
// overrides have been applied.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long:  `The 'show' subcommand prints the configuration as loaded from the config file, SIMBACAT_* environment variables and flags, in YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(appConfig); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}
