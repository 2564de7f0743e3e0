// harness/types.go
// Package: harness
package harness

// Sweep varies one global parameter across simulations.
type Sweep struct {
	// Parameter is the global variable to set, e.g. "antibiotic-dose".
	Parameter string `json:"parameter" mapstructure:"parameter" yaml:"parameter" validate:"required"`
	// Values are simulated in order; each gets its own group of runs.
	Values []float64 `json:"values" mapstructure:"values" yaml:"values" validate:"required,min=1"`
}

// SimulateConfig configures an experiment.
type SimulateConfig struct {
	// Reports are the reporters recorded at every tick.
	Reports []string `json:"reports" mapstructure:"reports" yaml:"reports" validate:"required,min=1,dive,required"`

	// Ticks is the number of times the go command runs per run.
	Ticks int `json:"ticks" mapstructure:"ticks" yaml:"ticks" validate:"min=1"`

	// Runs is the number of independent runs per group.
	Runs int `json:"runs" mapstructure:"runs" yaml:"runs" validate:"min=1"`

	// Go is the per-tick command.
	Go string `json:"go" mapstructure:"go" yaml:"go" validate:"required"`

	// Setup holds global variables set once per workspace before any run.
	Setup map[string]any `json:"setup" mapstructure:"setup" yaml:"setup"`

	// Sweep is optional.
	Sweep *Sweep `json:"sweep,omitempty" mapstructure:"sweep" yaml:"sweep,omitempty" validate:"omitempty"`
}

// Progress reports a completed run.
type Progress struct {
	Engine string
	// Swept is true when Value is meaningful.
	Swept bool
	Value float64
	Run   int
	// Done counts finished runs across all engines; Total is the experiment size.
	Done  int
	Total int
}

// ProgressFunc receives progress updates. It may be called from several
// goroutines, one per engine, but never concurrently.
type ProgressFunc func(Progress)

// MetricSummary aggregates one metric's final-tick value across a group's runs.
type MetricSummary struct {
	Metric string  `json:"metric"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
	// Samples counts runs with a non-missing final value.
	Samples int `json:"samples"`
}

// GroupSummary describes one group of an experiment.
type GroupSummary struct {
	Swept bool    `json:"swept"`
	Value float64 `json:"value"`
	Runs  int     `json:"runs"`
	Ticks int     `json:"ticks"`
	// RepresentativeRun is the 1-based run number of the selected run, or 0.
	RepresentativeRun int             `json:"representative_run"`
	Metrics           []MetricSummary `json:"metrics"`
}
