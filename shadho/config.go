package shadho

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or "10m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("%w: duration must be a string like \"30s\"", ErrConfiguration)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrConfiguration, s)
	}
	*d = Duration(parsed)
	return nil
}

// BackoffConfig groups dispatch retry parameters.
type BackoffConfig struct {
	// InitialInterval is the first retry delay; subsequent delays grow
	// exponentially.
	InitialInterval Duration `yaml:"initial_interval"`
	// MaxRetries bounds retries per trial submission before the trial is
	// marked failed.
	MaxRetries uint64 `yaml:"max_retries"`
	// AbortThreshold is the number of consecutive trials lost to dispatch
	// failures before the run transitions to ABORTED.
	AbortThreshold int `yaml:"abort_threshold"`
}

// DriverConfig groups the run-level settings of a search.
type DriverConfig struct {
	// Timeout is the global wall-clock budget for the run.
	Timeout Duration `yaml:"timeout"`
	// TrialTimeout is the per-trial soft deadline; a trial running longer is
	// marked failed and its slot released. 0 disables the deadline.
	TrialTimeout Duration `yaml:"trial_timeout"`
	// PollInterval paces the driver loop.
	PollInterval Duration `yaml:"poll_interval"`
	// DrainGrace bounds how long the driver waits for in-flight trials after
	// the stopping condition fires.
	DrainGrace Duration `yaml:"drain_grace"`

	// Seed is the master seed for all sampling.
	Seed int64 `yaml:"seed"`
	// Allocator selects the compute-class offer policy ("round-robin" or
	// "weighted").
	Allocator string `yaml:"allocator"`
	// MaxTasks is the capacity of the default compute class when none is
	// configured. 0 means unbounded.
	MaxTasks int `yaml:"max_tasks"`

	// JournalFile is the crash-recoverable trial journal path; empty keeps
	// trials in memory only.
	JournalFile string `yaml:"journal_file"`
	// ResultsFile receives the full trial collection on stop; empty skips
	// the export.
	ResultsFile string `yaml:"results_file"`

	// Command is the worker task command passed to the dispatch layer.
	Command string `yaml:"command"`
	// InputFiles are shipped to the worker alongside every task.
	InputFiles []string `yaml:"input_files"`
	// ParamFile is where the worker finds its sampled parameters.
	ParamFile string `yaml:"param_file"`
	// ResultFile is where the worker leaves its result payload.
	ResultFile string `yaml:"result_file"`

	Backoff BackoffConfig `yaml:"backoff"`
}

// DefaultDriverConfig returns the documented defaults.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		Timeout:      Duration(10 * time.Minute),
		PollInterval: Duration(100 * time.Millisecond),
		DrainGrace:   Duration(30 * time.Second),
		Allocator:    "round-robin",
		MaxTasks:     100,
		ResultsFile:  "results.json",
		ParamFile:    "hyperparameters.json",
		ResultFile:   "performance.json",
		Backoff: BackoffConfig{
			InitialInterval: Duration(100 * time.Millisecond),
			MaxRetries:      3,
			AbortThreshold:  5,
		},
	}
}

// LoadDriverConfig reads a YAML config file over the defaults.
func LoadDriverConfig(path string) (DriverConfig, error) {
	cfg := DefaultDriverConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: config %s: %v", ErrConfiguration, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config before a run starts.
func (c *DriverConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrConfiguration)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrConfiguration)
	}
	if c.TrialTimeout < 0 || c.DrainGrace < 0 {
		return fmt.Errorf("%w: negative duration", ErrConfiguration)
	}
	if c.MaxTasks < 0 {
		return fmt.Errorf("%w: max_tasks must be >= 0", ErrConfiguration)
	}
	if !IsValidAllocator(c.Allocator) {
		return fmt.Errorf("%w: unknown allocator %q", ErrConfiguration, c.Allocator)
	}
	if c.Backoff.AbortThreshold <= 0 {
		return fmt.Errorf("%w: backoff abort_threshold must be positive", ErrConfiguration)
	}
	return nil
}
