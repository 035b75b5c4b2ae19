package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsoleConfig controls terminal output formatting.
type ConsoleConfig struct {
	// EnableColor enables colored output.
	EnableColor bool `yaml:"enable_color"`

	// EnableProgressBar enables the live wave/task progress bar.
	EnableProgressBar bool `yaml:"enable_progress_bar"`

	// CompactMode enables a single-line-per-event output format.
	CompactMode bool `yaml:"compact_mode"`

	// ShowDurations shows per-task execution durations in output.
	ShowDurations bool `yaml:"show_durations"`
}

// RetryConfig controls the retry policy applied to failed tasks.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts allowed after the first
	// failure before a task is marked terminally failed.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `yaml:"base_delay"`

	// ExponentialBackoff multiplies BaseDelay by BackoffMultiplier^(attempts-1)
	// on each subsequent retry when true; otherwise every retry waits BaseDelay.
	ExponentialBackoff bool `yaml:"exponential_backoff"`

	// BackoffMultiplier is the exponential backoff growth factor.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// ClusterConfig holds options specific to the local-cluster backend.
type ClusterConfig struct {
	// WorkDir is the directory cluster state (tasks.json, jobs.json,
	// scripts/, logs/, results/) is written under.
	WorkDir string `yaml:"work_dir"`
}

// CloudBatchConfig holds options specific to the managed-cloud-batch backend.
type CloudBatchConfig struct {
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	JobQueue      string `yaml:"job_queue"`
	JobDefinition string `yaml:"job_definition"`
	VCPUs         int    `yaml:"vcpus"`
	Memory        int    `yaml:"memory"`
	Timeout       int    `yaml:"timeout_seconds"`
}

// ContainerConfig holds options specific to the local-containers backend.
type ContainerConfig struct {
	Image   string `yaml:"image"`
	Network string `yaml:"network"`
}

// Config represents the orchestrator's run-time configuration.
type Config struct {
	// MaxExecutors caps the number of tasks that may run concurrently
	// (0 = one worker per task in the plan).
	MaxExecutors int `yaml:"max_executors"`

	// OutputDir is the directory per-task output is written under, and the
	// default parent of the cluster backend's state directory. Logs go to
	// LogDir; run history is stored under the home directory.
	OutputDir string `yaml:"output_dir"`

	// Backend selects the execution backend: "memory", "cluster",
	// "cloudbatch", or "container".
	Backend string `yaml:"backend"`

	// WaitCeiling bounds how long a run waits for completion before giving
	// up on the remaining in-flight tasks.
	WaitCeiling time.Duration `yaml:"wait_ceiling"`

	// PollInterval is how often durable backends poll external job state.
	PollInterval time.Duration `yaml:"poll_interval"`

	// DryRun validates the plan and prints the execution order without
	// submitting any task to a backend.
	DryRun bool `yaml:"dry_run"`

	// LogLevel sets logging verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where log files will be written.
	LogDir string `yaml:"log_dir"`

	Console    ConsoleConfig    `yaml:"console"`
	Retry      RetryConfig      `yaml:"retry"`
	Cluster    ClusterConfig    `yaml:"cluster"`
	CloudBatch CloudBatchConfig `yaml:"cloudbatch"`
	Container  ContainerConfig  `yaml:"container"`
}

// DefaultConsoleConfig returns ConsoleConfig with sensible default values.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		EnableColor:       true,
		EnableProgressBar: true,
		CompactMode:       false,
		ShowDurations:     true,
	}
}

// DefaultRetryConfig returns RetryConfig mirroring the scheduler's own
// built-in default policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         3,
		BaseDelay:          5 * time.Second,
		ExponentialBackoff: true,
		BackoffMultiplier:  2.0,
	}
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		MaxExecutors: 0,
		OutputDir:    ".parallelorc/runs",
		Backend:      "memory",
		WaitCeiling:  2 * time.Hour,
		PollInterval: 10 * time.Second,
		DryRun:       false,
		LogLevel:     "info",
		LogDir:       ".parallelorc/logs",
		Console:      DefaultConsoleConfig(),
		Retry:        DefaultRetryConfig(),
		Cluster: ClusterConfig{
			WorkDir: "",
		},
		CloudBatch: CloudBatchConfig{
			VCPUs:  1,
			Memory: 2048,
		},
		Container: ContainerConfig{
			Network: "bridge",
		},
	}
}

func interfaceSliceToStringSlice(slice []interface{}) []string {
	result := make([]string, 0, len(slice))
	for _, item := range slice {
		if str, ok := item.(string); ok {
			result = append(result, str)
		}
	}
	return result
}

// applyConsoleEnvOverrides applies environment variable overrides to console
// configuration. Environment variables take precedence over config file
// values. Only "true" (lowercase) or "1" are recognized as true.
//
// Recognized variables:
//   - PARALLELORC_CONSOLE_COLOR (enable_color)
//   - PARALLELORC_CONSOLE_PROGRESS_BAR (enable_progress_bar)
//   - PARALLELORC_CONSOLE_COMPACT (compact_mode)
//   - PARALLELORC_CONSOLE_DURATIONS (show_durations)
func applyConsoleEnvOverrides(cfg *ConsoleConfig) {
	if val := os.Getenv("PARALLELORC_CONSOLE_COLOR"); val != "" {
		cfg.EnableColor = val == "true" || val == "1"
	}
	if val := os.Getenv("PARALLELORC_CONSOLE_PROGRESS_BAR"); val != "" {
		cfg.EnableProgressBar = val == "true" || val == "1"
	}
	if val := os.Getenv("PARALLELORC_CONSOLE_COMPACT"); val != "" {
		cfg.CompactMode = val == "true" || val == "1"
	}
	if val := os.Getenv("PARALLELORC_CONSOLE_DURATIONS"); val != "" {
		cfg.ShowDurations = val == "true" || val == "1"
	}
}

// LoadConfig loads configuration from the specified file path. If the file
// doesn't exist, returns default configuration without error. If the file
// exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyConsoleEnvOverrides(&cfg.Console)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Use a temporary struct to handle duration parsing; durations are
	// written as strings ("10s", "2h") in YAML, not as a yaml.Duration type.
	type yamlConfig struct {
		MaxExecutors int              `yaml:"max_executors"`
		OutputDir    string           `yaml:"output_dir"`
		Backend      string           `yaml:"backend"`
		WaitCeiling  string           `yaml:"wait_ceiling"`
		PollInterval string           `yaml:"poll_interval"`
		DryRun       bool             `yaml:"dry_run"`
		LogLevel     string           `yaml:"log_level"`
		LogDir       string           `yaml:"log_dir"`
		Console      ConsoleConfig    `yaml:"console"`
		Retry        RetryConfig      `yaml:"retry"`
		Cluster      ClusterConfig    `yaml:"cluster"`
		CloudBatch   CloudBatchConfig `yaml:"cloudbatch"`
		Container    ContainerConfig  `yaml:"container"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.MaxExecutors != 0 {
		cfg.MaxExecutors = yamlCfg.MaxExecutors
	}
	if yamlCfg.OutputDir != "" {
		cfg.OutputDir = yamlCfg.OutputDir
	}
	if yamlCfg.Backend != "" {
		cfg.Backend = yamlCfg.Backend
	}
	if yamlCfg.WaitCeiling != "" {
		d, err := time.ParseDuration(yamlCfg.WaitCeiling)
		if err != nil {
			return nil, fmt.Errorf("invalid wait_ceiling format %q: %w", yamlCfg.WaitCeiling, err)
		}
		cfg.WaitCeiling = d
	}
	if yamlCfg.PollInterval != "" {
		d, err := time.ParseDuration(yamlCfg.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid poll_interval format %q: %w", yamlCfg.PollInterval, err)
		}
		cfg.PollInterval = d
	}
	if yamlCfg.DryRun {
		cfg.DryRun = yamlCfg.DryRun
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}

	// Section-presence detection: a zero-value nested field in yamlCfg is
	// ambiguous between "not in the file" and "explicitly set to zero", so
	// re-unmarshal into a raw map and only copy fields the file actually
	// names.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, exists := rawMap["console"]; exists && section != nil {
			consoleMap, _ := section.(map[string]interface{})
			console := yamlCfg.Console
			if _, ok := consoleMap["enable_color"]; ok {
				cfg.Console.EnableColor = console.EnableColor
			}
			if _, ok := consoleMap["enable_progress_bar"]; ok {
				cfg.Console.EnableProgressBar = console.EnableProgressBar
			}
			if _, ok := consoleMap["compact_mode"]; ok {
				cfg.Console.CompactMode = console.CompactMode
			}
			if _, ok := consoleMap["show_durations"]; ok {
				cfg.Console.ShowDurations = console.ShowDurations
			}
		}

		if section, exists := rawMap["retry"]; exists && section != nil {
			retryMap, _ := section.(map[string]interface{})
			retry := yamlCfg.Retry
			if _, ok := retryMap["max_retries"]; ok {
				cfg.Retry.MaxRetries = retry.MaxRetries
			}
			if _, ok := retryMap["base_delay"]; ok {
				cfg.Retry.BaseDelay = retry.BaseDelay
			}
			if _, ok := retryMap["exponential_backoff"]; ok {
				cfg.Retry.ExponentialBackoff = retry.ExponentialBackoff
			}
			if _, ok := retryMap["backoff_multiplier"]; ok {
				cfg.Retry.BackoffMultiplier = retry.BackoffMultiplier
			}
		}

		if section, exists := rawMap["cluster"]; exists && section != nil {
			clusterMap, _ := section.(map[string]interface{})
			if _, ok := clusterMap["work_dir"]; ok {
				cfg.Cluster.WorkDir = yamlCfg.Cluster.WorkDir
			}
		}

		if section, exists := rawMap["cloudbatch"]; exists && section != nil {
			cbMap, _ := section.(map[string]interface{})
			cb := yamlCfg.CloudBatch
			if _, ok := cbMap["bucket"]; ok {
				cfg.CloudBatch.Bucket = cb.Bucket
			}
			if _, ok := cbMap["prefix"]; ok {
				cfg.CloudBatch.Prefix = cb.Prefix
			}
			if _, ok := cbMap["region"]; ok {
				cfg.CloudBatch.Region = cb.Region
			}
			if _, ok := cbMap["job_queue"]; ok {
				cfg.CloudBatch.JobQueue = cb.JobQueue
			}
			if _, ok := cbMap["job_definition"]; ok {
				cfg.CloudBatch.JobDefinition = cb.JobDefinition
			}
			if _, ok := cbMap["vcpus"]; ok {
				cfg.CloudBatch.VCPUs = cb.VCPUs
			}
			if _, ok := cbMap["memory"]; ok {
				cfg.CloudBatch.Memory = cb.Memory
			}
			if _, ok := cbMap["timeout_seconds"]; ok {
				cfg.CloudBatch.Timeout = cb.Timeout
			}
		}

		if section, exists := rawMap["container"]; exists && section != nil {
			containerMap, _ := section.(map[string]interface{})
			container := yamlCfg.Container
			if _, ok := containerMap["image"]; ok {
				cfg.Container.Image = container.Image
			}
			if _, ok := containerMap["network"]; ok {
				cfg.Container.Network = container.Network
			}
		}
	}

	applyConsoleEnvOverrides(&cfg.Console)

	return cfg, nil
}

// MergeWithFlags merges CLI flags into the configuration. Non-nil flag
// values override configuration values, so CLI flags take precedence over
// config file settings.
func (c *Config) MergeWithFlags(maxExecutors *int, outputDir *string, backend *string, dryRun *bool, maxRetries *int) {
	if maxExecutors != nil {
		c.MaxExecutors = *maxExecutors
	}
	if outputDir != nil {
		c.OutputDir = *outputDir
	}
	if backend != nil {
		c.Backend = *backend
	}
	if dryRun != nil {
		c.DryRun = *dryRun
	}
	if maxRetries != nil {
		c.Retry.MaxRetries = *maxRetries
	}
}

var validBackends = map[string]bool{
	"memory":     true,
	"cluster":    true,
	"cloudbatch": true,
	"container":  true,
}

// Validate validates the configuration values, returning an error if any
// values are invalid.
func (c *Config) Validate() error {
	if c.MaxExecutors < 0 {
		return fmt.Errorf("max_executors must be >= 0, got %d", c.MaxExecutors)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if !validBackends[c.Backend] {
		return fmt.Errorf("invalid backend %q, must be one of: memory, cluster, cloudbatch, container", c.Backend)
	}

	if c.WaitCeiling < 0 {
		return fmt.Errorf("wait_ceiling must be >= 0, got %v", c.WaitCeiling)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0, got %v", c.PollInterval)
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("retry.base_delay must be >= 0, got %v", c.Retry.BaseDelay)
	}
	if c.Retry.ExponentialBackoff && c.Retry.BackoffMultiplier <= 1.0 {
		return fmt.Errorf("retry.backoff_multiplier must be > 1.0 when exponential_backoff is enabled, got %v", c.Retry.BackoffMultiplier)
	}

	switch c.Backend {
	case "cloudbatch":
		if strings.TrimSpace(c.CloudBatch.Bucket) == "" {
			return fmt.Errorf("cloudbatch.bucket is required when backend is cloudbatch")
		}
		if strings.TrimSpace(c.CloudBatch.JobQueue) == "" {
			return fmt.Errorf("cloudbatch.job_queue is required when backend is cloudbatch")
		}
		if strings.TrimSpace(c.CloudBatch.JobDefinition) == "" {
			return fmt.Errorf("cloudbatch.job_definition is required when backend is cloudbatch")
		}
	case "container":
		if strings.TrimSpace(c.Container.Image) == "" {
			return fmt.Errorf("container.image is required when backend is container")
		}
	}

	return nil
}
