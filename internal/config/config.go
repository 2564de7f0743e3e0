// Package config loads and validates the SimBacAT configuration.
//
// Configuration comes from a JSON, YAML or TOML file read by viper, overlaid
// with SIMBACAT_* environment variables and any cobra flags bound to the
// same viper instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/simbacat/simbacat/engine"
	"github.com/simbacat/simbacat/harness"
)

// EnvPrefix prefixes environment overrides, e.g. SIMBACAT_SIMULATE_RUNS=20.
const EnvPrefix = "SIMBACAT"

// EngineConfig describes the engine workspaces to drive.
type EngineConfig struct {
	Hosts          []engine.Host `json:"hosts" mapstructure:"hosts" yaml:"hosts" validate:"required,min=1,dive"`
	Model          string        `json:"model" mapstructure:"model" yaml:"model" validate:"required"`
	GUI            bool          `json:"gui" mapstructure:"gui" yaml:"gui"`
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout" yaml:"request_timeout"`
}

// PlotConfig labels the rendered panels.
type PlotConfig struct {
	TimeUnit    string   `json:"timeunit" mapstructure:"timeunit" yaml:"timeunit"`
	Titles      []string `json:"titles" mapstructure:"titles" yaml:"titles"`
	Units       []string `json:"units" mapstructure:"units" yaml:"units"`
	PanelWidth  int      `json:"panel_width" mapstructure:"panel_width" yaml:"panel_width" validate:"min=100"`
	PanelHeight int      `json:"panel_height" mapstructure:"panel_height" yaml:"panel_height" validate:"min=100"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// Config is the complete application configuration.
type Config struct {
	Engine   EngineConfig           `json:"engine" mapstructure:"engine" yaml:"engine"`
	Simulate harness.SimulateConfig `json:"simulate" mapstructure:"simulate" yaml:"simulate"`
	Plot     PlotConfig             `json:"plot" mapstructure:"plot" yaml:"plot"`
	Log      LogConfig              `json:"log" mapstructure:"log" yaml:"log"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the configuration used when no file overrides a value:
// the bacteria, tolerance and antibiotic reporters of the tolerance model.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Hosts:          []engine.Host{{Name: "local", URL: "http://localhost:7700"}},
			Model:          "model.nlogo",
			RequestTimeout: 10 * time.Minute,
		},
		Simulate: harness.SimulateConfig{
			Reports: []string{"count bacteria", "avg-tolerance", "antibiotic"},
			Ticks:   1000,
			Runs:    10,
			Go:      "go",
		},
		Plot: PlotConfig{
			TimeUnit:    "Zeit [min]",
			Titles:      []string{"", "", ""},
			Units:       []string{"Anzahl Bakterien", "Toleranz", "Konzentration Ampicillin [µg/ml]"},
			PanelWidth:  500,
			PanelHeight: 500,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers Default() with v so that partial files inherit it.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("engine.hosts", []map[string]any{{"name": d.Engine.Hosts[0].Name, "url": d.Engine.Hosts[0].URL}})
	v.SetDefault("engine.model", d.Engine.Model)
	v.SetDefault("engine.gui", d.Engine.GUI)
	v.SetDefault("engine.request_timeout", d.Engine.RequestTimeout)
	v.SetDefault("simulate.reports", d.Simulate.Reports)
	v.SetDefault("simulate.ticks", d.Simulate.Ticks)
	v.SetDefault("simulate.runs", d.Simulate.Runs)
	v.SetDefault("simulate.go", d.Simulate.Go)
	v.SetDefault("plot.timeunit", d.Plot.TimeUnit)
	v.SetDefault("plot.titles", d.Plot.Titles)
	v.SetDefault("plot.units", d.Plot.Units)
	v.SetDefault("plot.panel_width", d.Plot.PanelWidth)
	v.SetDefault("plot.panel_height", d.Plot.PanelHeight)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads path into v (a missing file is tolerated only when optional is
// true), applies environment overrides, and returns the validated result.
func Load(v *viper.Viper, path string, optional bool) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !(optional && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist))) {
				return nil, fmt.Errorf("could not read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct constraints of every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// MetricLabel returns the CSV column label for report i: "<title> in <unit>",
// falling back to the reporter name when neither is configured.
func (c *Config) MetricLabel(i int) string {
	title := at(c.Plot.Titles, i)
	unit := at(c.Plot.Units, i)
	switch {
	case title == "" && unit == "":
		return at(c.Simulate.Reports, i)
	case unit == "":
		return title
	case title == "":
		return at(c.Simulate.Reports, i) + " in " + unit
	}
	return title + " in " + unit
}

// MetricLabels returns MetricLabel for every report.
func (c *Config) MetricLabels() []string {
	out := make([]string, len(c.Simulate.Reports))
	for i := range out {
		out[i] = c.MetricLabel(i)
	}
	return out
}

// DialConfig converts the engine section for engine.Dial.
func (c *Config) DialConfig() engine.DialConfig {
	return engine.DialConfig{
		Hosts:          c.Engine.Hosts,
		Model:          c.Engine.Model,
		GUI:            c.Engine.GUI,
		RequestTimeout: c.Engine.RequestTimeout,
	}
}

func at(xs []string, i int) string {
	if i < 0 || i >= len(xs) {
		return ""
	}
	return xs[i]
}
