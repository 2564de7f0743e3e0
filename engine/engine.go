// engine/engine.go
// Package: engine
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrShortReport is returned when a repeat report is missing a reporter or
// returns series of unequal length.
var ErrShortReport = errors.New("engine: incomplete report")

// Engine is the remote-command link to one simulation workspace.
// Implementations are not safe for concurrent use; a workspace runs one
// model at a time.
type Engine interface {
	// LoadModel opens a model file in the workspace.
	LoadModel(ctx context.Context, path string, gui bool) error
	// Command executes a single command such as "setup" or "set dose 5".
	Command(ctx context.Context, cmd string) error
	// Report evaluates a numeric reporter once.
	Report(ctx context.Context, reporter string) (float64, error)
	// RepeatReport runs goCmd reps times and returns, per reporter, the value
	// observed at every tick.
	RepeatReport(ctx context.Context, reporters []string, reps int, goCmd string) (map[string][]float64, error)
	// Close kills the workspace.
	Close(ctx context.Context) error
	// Name identifies the workspace in logs.
	Name() string
}

// Host is one engine endpoint from the configuration.
type Host struct {
	Name string `json:"name" mapstructure:"name" yaml:"name"`
	URL  string `json:"url" mapstructure:"url" yaml:"url" validate:"required,url"`
}

// DialConfig describes how to reach the engine workspaces.
type DialConfig struct {
	Hosts          []Host
	Model          string
	GUI            bool
	RequestTimeout time.Duration
}

// Dial connects to every host and loads the model into each workspace. On
// failure every workspace opened so far is closed again.
func Dial(ctx context.Context, cfg DialConfig) ([]Engine, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("at least one engine host is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("a model path is required")
	}

	engines := make([]Engine, 0, len(cfg.Hosts))
	for i, h := range cfg.Hosts {
		name := h.Name
		if name == "" {
			name = fmt.Sprintf("engine-%d", i+1)
		}
		link := NewLink(name, h.URL, cfg.RequestTimeout)
		if err := link.LoadModel(ctx, cfg.Model, cfg.GUI); err != nil {
			CloseAll(context.WithoutCancel(ctx), engines)
			return nil, fmt.Errorf("%s: load model %s: %w", name, cfg.Model, err)
		}
		engines = append(engines, link)
	}
	return engines, nil
}

// CloseAll kills every workspace and joins the errors.
func CloseAll(ctx context.Context, engines []Engine) error {
	var errs []error
	for _, e := range engines {
		if err := e.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SetCommand formats a global variable assignment.
func SetCommand(name string, value any) string {
	return fmt.Sprintf("set %s %v", name, value)
}

// RepeatCommand formats the command a repeat report stands for, for logs.
func RepeatCommand(reps int, goCmd string) string {
	return fmt.Sprintf("repeat %d [%s]", reps, goCmd)
}

// CheckReport verifies every reporter is present with the same series length
// and returns that length.
func CheckReport(reporters []string, results map[string][]float64) (int, error) {
	length := -1
	var missing []string
	for _, r := range reporters {
		series, ok := results[r]
		if !ok {
			missing = append(missing, r)
			continue
		}
		if length >= 0 && len(series) != length {
			return 0, fmt.Errorf("%w: %q has %d values, want %d", ErrShortReport, r, len(series), length)
		}
		length = len(series)
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("%w: missing %s", ErrShortReport, strings.Join(missing, ", "))
	}
	return length, nil
}
