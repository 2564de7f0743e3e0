package simbacat

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// execute runs the root command with args and returns everything it printed.
// Flag values are reset afterwards so tests do not leak into each other.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// writeConfig writes a small config file and returns its path.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRoot_SubcommandsPresent(t *testing.T) {
	have := map[string]*cobra.Command{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = c
	}
	for _, want := range []string{"simulate", "plot", "select", "list", "export", "delete", "config"} {
		if have[want] == nil {
			t.Fatalf("missing subcommand %s", want)
		}
	}

	sub := map[string]bool{}
	for _, sc := range have["list"].Commands() {
		sub[sc.Name()] = true
	}
	if !sub["commands"] || !sub["experiments"] {
		t.Fatalf("list subcommands missing: %v", sub)
	}
	if len(have["delete"].Commands()) != 1 || have["delete"].Commands()[0].Name() != "experiment" {
		t.Fatalf("delete must have an experiment subcommand")
	}
}

func TestCommands_HaveDescriptions(t *testing.T) {
	var check func(*cobra.Command)
	check = func(cmd *cobra.Command) {
		if !cmd.IsAvailableCommand() && cmd != rootCmd {
			return
		}
		if cmd.Short == "" || cmd.Long == "" {
			t.Fatalf("command %s missing Short/Long", cmd.Name())
		}
		for _, sc := range cmd.Commands() {
			check(sc)
		}
	}
	check(rootCmd)
}

func TestListCommands_PrintsTree(t *testing.T) {
	var buf bytes.Buffer
	listAllCommands(&buf, rootCmd)
	out := buf.String()
	for _, want := range []string{"simbacat simulate", "  simbacat list commands", "simbacat delete experiment"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestListCommands_Execute(t *testing.T) {
	out, err := execute(t, "list", "commands")
	if err != nil {
		t.Fatalf("list commands: %v", err)
	}
	if !strings.HasPrefix(out, "Commands and Subcommands:") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestConfigShow(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
simulate:
  ticks: 3
  runs: 2
  setup:
    initial-bacteria: 50
log:
  level: error
`)
	out, err := execute(t, "config", "show", "-c", path, "--log-format", "json")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"ticks: 3", "runs: 2", "initial-bacteria: 50", "format: json"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestConfig_MissingExplicitFile(t *testing.T) {
	_, err := execute(t, "config", "show", "-c", filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected an error for a missing --config file")
	}
}

func TestConfig_InvalidFlag(t *testing.T) {
	_, err := execute(t, "config", "show", "--log-level", "loud")
	if err == nil || !strings.Contains(err.Error(), "Level") {
		t.Fatalf("expected a validation error, got %v", err)
	}
}
