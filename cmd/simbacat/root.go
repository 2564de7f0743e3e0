// cmd/simbacat/root.go
package simbacat

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/simbacat/simbacat/internal/config"
	"github.com/simbacat/simbacat/internal/logging"
)

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string

	// appConfig and logger are set before any subcommand runs.
	appConfig = func() *config.Config { c := config.Default(); return &c }()
	logger    = logging.Discard()
)

// flagKeys maps configuration keys to the flags that override them. Flags a
// command does not define are skipped.
var flagKeys = map[string]string{
	"log.level":      "log-level",
	"log.format":     "log-format",
	"engine.model":   "model",
	"engine.gui":     "gui",
	"simulate.runs":  "runs",
	"simulate.ticks": "ticks",
}

// rootCmd is the base Cobra command for the simbacat application.
// All subcommands are attached to this root to form the complete CLI.
var rootCmd = &cobra.Command{
	Use:   "simbacat",
	Short: "Simulate bacteria, antibiotics and antimicrobial tolerance",
	Long: `simbacat drives a NetLogo tolerance model through an engine link, repeats
stochastic runs, selects the most representative run and writes the
observations as CSV and PNG plots.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// loadConfig reads the configuration file and flag overrides and sets up the
// logger. A missing config file is only an error when --config was given.
func loadConfig(cmd *cobra.Command) error {
	v := viper.New()
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(v, cfgFile, !cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	l, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	appConfig, logger = cfg, l
	return nil
}

// Execute runs the root Cobra command and all registered subcommands.
// Interrupts cancel the command's context. Any returned error is printed and
// the process exits with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.json", "config file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every engine command")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
}
