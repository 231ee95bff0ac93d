// Package config loads the autodev.yaml configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	autoerrors "github.com/silver2dream/autodev/internal/errors"
)

// Duration is a time.Duration that unmarshals from the usual "30s"/"20m"
// YAML string form.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the autodev.yaml file.
type Config struct {
	Worker     WorkerConfig     `yaml:"worker"`
	Git        GitConfig        `yaml:"git"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Controller ControllerConfig `yaml:"controller"`
}

// WorkerConfig controls the coding agent invocation.
type WorkerConfig struct {
	Command      string   `yaml:"command"`
	Model        string   `yaml:"model"`
	MaxTurns     int      `yaml:"max_turns"`
	AllowedTools []string `yaml:"allowed_tools"`
	// Timeout is the wall-clock budget per invocation.
	Timeout Duration `yaml:"timeout"`
	// DonePattern is an optional regexp treated as a completion signal;
	// empty disables the feature.
	DonePattern string   `yaml:"done_pattern"`
	GracePeriod Duration `yaml:"grace_period"`
	UsePTY      bool     `yaml:"use_pty"`
}

// GitConfig holds repository settings for workspaces.
type GitConfig struct {
	BaseBranch string `yaml:"base_branch"`
	Remote     string `yaml:"remote"`
}

// TrackerConfig holds issue tracker settings.
type TrackerConfig struct {
	// Labels is the triage priority list, highest priority first.
	Labels      []string `yaml:"labels"`
	ReviewLabel string   `yaml:"review_label"`
	Timeout     Duration `yaml:"timeout"`
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
}

// ControllerConfig holds task-cycle settings.
type ControllerConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	Parallel     int      `yaml:"parallel"`
	SkipTriage   bool     `yaml:"skip_triage"`
	ReviewersDir string   `yaml:"reviewers_dir"`
	// StateRoot holds the seen-set file, worktrees and invocation logs.
	StateRoot string `yaml:"state_root"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			Command:     "claude",
			Model:       "sonnet",
			MaxTurns:    30,
			Timeout:     Duration(20 * time.Minute),
			GracePeriod: Duration(30 * time.Second),
		},
		Git: GitConfig{
			BaseBranch: "main",
			Remote:     "origin",
		},
		Tracker: TrackerConfig{
			Labels:      []string{"bug", "enhancement"},
			ReviewLabel: "needs-review",
			Timeout:     Duration(30 * time.Second),
			MaxAttempts: 3,
			BaseDelay:   Duration(2 * time.Second),
		},
		Controller: ControllerConfig{
			PollInterval: Duration(5 * time.Minute),
			Parallel:     1,
			ReviewersDir: ".autodev/reviewers",
			StateRoot:    ".autodev",
		},
	}
}

// Load reads path and merges it over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, autoerrors.NewConfig(fmt.Sprintf("failed to read config file: %v", err))
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, autoerrors.NewConfig(fmt.Sprintf("failed to parse config file: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Worker.Command == "" {
		return autoerrors.NewConfig("worker.command must not be empty")
	}
	if c.Worker.MaxTurns < 0 {
		return autoerrors.NewConfig(fmt.Sprintf("worker.max_turns must not be negative: %d", c.Worker.MaxTurns))
	}
	if c.Worker.Timeout < 0 {
		return autoerrors.NewConfig(fmt.Sprintf("worker.timeout must not be negative: %v", c.Worker.Timeout.Std()))
	}
	if c.Git.BaseBranch == "" {
		return autoerrors.NewConfig("git.base_branch must not be empty")
	}
	if len(c.Tracker.Labels) == 0 {
		return autoerrors.NewConfig("tracker.labels must list at least one label")
	}
	if c.Controller.Parallel < 1 {
		return autoerrors.NewConfig(fmt.Sprintf("controller.parallel must be at least 1: %d", c.Controller.Parallel))
	}
	return nil
}
