// Package config loads and validates ctrain session files (ctrain.yaml).
package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// DefaultFileName is the session file looked up when --config is not given.
const DefaultFileName = "ctrain.yaml"

// DefaultDataDir is used when neither the file nor CTRAIN_DATA_DIR sets one.
const DefaultDataDir = ".ctrain"

// Evaluator kinds.
const (
	EvaluatorScript     = "script"
	EvaluatorResultsCSV = "results_csv"
)

// File is the raw YAML shape of a session file. Durations are Go duration strings.
type File struct {
	DataDir           string         `yaml:"data_dir,omitempty"`
	Log               LogFile        `yaml:"log,omitempty"`
	Dataset           string         `yaml:"dataset,omitempty"`
	InitialCheckpoint string         `yaml:"initial_checkpoint,omitempty"`
	Params            map[string]any `yaml:"params,omitempty"`
	Target            TargetFile     `yaml:"target,omitempty"`
	Budget            BudgetFile     `yaml:"budget,omitempty"`
	Round             RoundFile      `yaml:"round,omitempty"`
	Trainer           TrainerFile    `yaml:"trainer,omitempty"`
	Evaluator         EvaluatorFile  `yaml:"evaluator,omitempty"`
	Metrics           MetricsFile    `yaml:"metrics,omitempty"`
}

// LogFile configures the structured logger.
type LogFile struct {
	Level string `yaml:"level,omitempty"`
}

// TargetFile is the success criterion.
type TargetFile struct {
	Metric    string  `yaml:"metric,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`
}

// BudgetFile holds optional limits; at least one must be set.
type BudgetFile struct {
	MaxRounds    int    `yaml:"max_rounds,omitempty"`
	MaxWallClock string `yaml:"max_wall_clock,omitempty"`
}

// RoundFile is the per-round failure policy.
type RoundFile struct {
	Timeout     string `yaml:"timeout,omitempty"`
	MaxAttempts *int   `yaml:"max_attempts,omitempty"`
	Cooldown    string `yaml:"cooldown,omitempty"`
}

// TrainerFile configures the training script.
type TrainerFile struct {
	Command        string `yaml:"command,omitempty"`
	CheckpointPath string `yaml:"checkpoint_path,omitempty"`
	Dir            string `yaml:"dir,omitempty"`
	Grace          string `yaml:"grace,omitempty"`
}

// EvaluatorFile configures how checkpoints are scored.
type EvaluatorFile struct {
	Kind        string            `yaml:"kind,omitempty"`
	Command     string            `yaml:"command,omitempty"`
	MetricsFile string            `yaml:"metrics_file,omitempty"`
	MetricPaths map[string]string `yaml:"metric_paths,omitempty"`
	Columns     map[string]string `yaml:"columns,omitempty"`
	Dir         string            `yaml:"dir,omitempty"`
	Grace       string            `yaml:"grace,omitempty"`
}

// MetricsFile configures the Prometheus textfile export.
type MetricsFile struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Config is a validated session file with env overrides applied.
type Config struct {
	// Path is the file the config was loaded from ("" when parsed from bytes).
	Path string

	// File is the decoded file with env overrides applied and relative
	// paths resolved. Snapshot writes it back out for resume.
	File File

	DataDir  string
	LogLevel string

	Training core.TrainingConfig
	Target   core.Target
	Budget   core.Budget
	Round    core.RoundPolicy

	Trainer   TrainerConfig
	Evaluator EvaluatorConfig

	MetricsTextfile string
}

// TrainerConfig is the validated trainer section.
type TrainerConfig struct {
	Command        string
	CheckpointPath string
	Dir            string
	Grace          time.Duration
}

// EvaluatorConfig is the validated evaluator section.
type EvaluatorConfig struct {
	Kind        string
	Command     string
	MetricsFile string
	MetricPaths map[string]string
	Columns     map[string]string
	Dir         string
	Grace       time.Duration
}

// Load reads path, loads .env files next to it, applies CTRAIN_* overrides
// and validates the result. Relative paths in the file resolve against its directory.
// Returns E_INVALID_CONFIG on any failure.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.NewWithDetails(errors.EInvalidConfig, "config file not found",
				map[string]string{"path": path, "hint": "pass --config or create " + DefaultFileName})
		}
		return Config{}, errors.Wrap(errors.EInvalidConfig, "failed to read config file", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return Config{}, errors.Wrap(errors.EInvalidConfig, "failed to resolve config directory", err)
	}
	if err := LoadEnvFiles(dir); err != nil {
		return Config{}, err
	}

	cfg, err := Parse(data, dir)
	if err != nil {
		return Config{}, err
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes and validates session-file bytes. baseDir anchors relative paths.
// Env overrides are applied; .env files are not loaded.
func Parse(data []byte, baseDir string) (Config, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if stderrors.Is(err, io.EOF) {
			return Config{}, errors.New(errors.EInvalidConfig, "config file is empty")
		}
		return Config{}, errors.New(errors.EInvalidConfig, "invalid yaml: "+err.Error())
	}

	ApplyEnv(&f, os.LookupEnv)

	return Validate(f, baseDir)
}

// Snapshot encodes the resolved file as YAML. Parsing a snapshot yields the
// same Config regardless of the directory it is stored in.
func (c Config) Snapshot() ([]byte, error) {
	data, err := yaml.Marshal(c.File)
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to encode config snapshot", err)
	}
	return data, nil
}
