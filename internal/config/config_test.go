package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

const validYAML = `
data_dir: runs
log:
  level: debug
dataset: hyper/dataset.yaml
initial_checkpoint: model/original/yolo11n.pt
params:
  epochs: 50
  imgsz: 640
target:
  metric: mAP50
  threshold: 0.85
budget:
  max_rounds: 10
  max_wall_clock: 12h
round:
  timeout: 2h
  max_attempts: 3
  cooldown: 30s
trainer:
  command: python train.py
  dir: scripts
evaluator:
  kind: script
  command: python eval.py
  metric_paths:
    mAP50: box.map50
metrics:
  textfile: metrics/ctrain.prom
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDataDir, EnvLogLevel, EnvRoundTimeout, EnvMaxRounds} {
		t.Setenv(k, "")
	}
}

func TestParseValid(t *testing.T) {
	clearEnv(t)
	base := t.TempDir()

	cfg, err := Parse([]byte(validYAML), base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "runs"), cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "hyper/dataset.yaml", cfg.Training.Dataset, "missing dataset file stays a bare reference")
	assert.Equal(t, 50, cfg.Training.Params["epochs"])
	assert.Equal(t, core.Target{Metric: "mAP50", Threshold: 0.85}, cfg.Target)
	assert.Equal(t, core.BudgetBoth, cfg.Budget.Kind())
	assert.Equal(t, core.RoundPolicy{Timeout: 2 * time.Hour, MaxAttempts: 3, Cooldown: 30 * time.Second}, cfg.Round)
	assert.Equal(t, "python train.py", cfg.Trainer.Command)
	assert.Equal(t, filepath.Join(base, "scripts"), cfg.Trainer.Dir)
	assert.Equal(t, EvaluatorScript, cfg.Evaluator.Kind)
	assert.Equal(t, map[string]string{"mAP50": "box.map50"}, cfg.Evaluator.MetricPaths)
	assert.Equal(t, filepath.Join(base, "metrics", "ctrain.prom"), cfg.MetricsTextfile)
}

func TestParseDefaults(t *testing.T) {
	clearEnv(t)
	base := t.TempDir()

	cfg, err := Parse([]byte(`
dataset: coco8.yaml
target: {metric: mAP50, threshold: 0.5}
budget: {max_rounds: 3}
trainer: {command: ./train.sh}
`), base)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, DefaultDataDir), cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, core.DefaultRoundPolicy(), cfg.Round)
	assert.Equal(t, EvaluatorResultsCSV, cfg.Evaluator.Kind, "no evaluator command means results.csv")
}

func TestParseResolvesExistingDataset(t *testing.T) {
	clearEnv(t)
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "hyper"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "hyper", "dataset.yaml"), []byte("path: x"), 0o644))

	cfg, err := Parse([]byte(validYAML), base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "hyper", "dataset.yaml"), cfg.Training.Dataset)
}

func TestParseRejects(t *testing.T) {
	clearEnv(t)

	base := `
dataset: d.yaml
target: {metric: mAP50, threshold: 0.5}
budget: {max_rounds: 3}
trainer: {command: ./train.sh}
`
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"empty", "", ""},
		{"unknown field", base + "bogus: 1\n", ""},
		{"unbounded budget", `
dataset: d.yaml
target: {metric: mAP50, threshold: 0.5}
trainer: {command: ./train.sh}
`, ""},
		{"threshold above one", `
dataset: d.yaml
target: {metric: mAP50, threshold: 85}
budget: {max_rounds: 3}
trainer: {command: ./train.sh}
`, ""},
		{"threshold zero", `
dataset: d.yaml
target: {metric: mAP50}
budget: {max_rounds: 3}
trainer: {command: ./train.sh}
`, ""},
		{"no dataset", `
target: {metric: mAP50, threshold: 0.5}
budget: {max_rounds: 3}
trainer: {command: ./train.sh}
`, "dataset"},
		{"no trainer", `
dataset: d.yaml
target: {metric: mAP50, threshold: 0.5}
budget: {max_rounds: 3}
`, "trainer.command"},
		{"bad duration", base + "round: {timeout: soon}\n", "round.timeout"},
		{"zero attempts", base + "round: {max_attempts: 0}\n", ""},
		{"bad evaluator kind", base + "evaluator: {kind: oracle}\n", "evaluator.kind"},
		{"script evaluator without command", base + "evaluator: {kind: script}\n", "evaluator.command"},
		{"bad log level", base + "log: {level: loud}\n", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), t.TempDir())
			require.Error(t, err)
			assert.Equal(t, errors.EInvalidConfig, errors.GetCode(err))
			if tt.field != "" {
				ce, ok := errors.AsCtrainError(err)
				require.True(t, ok)
				assert.Equal(t, tt.field, ce.Details["field"])
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDataDir, "/var/lib/ctrain")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvRoundTimeout, "45m")
	t.Setenv(EnvMaxRounds, "4")

	cfg, err := Parse([]byte(validYAML), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ctrain", cfg.DataDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 45*time.Minute, cfg.Round.Timeout)
	n, ok := cfg.Budget.MaxRounds()
	assert.True(t, ok)
	assert.Equal(t, 4, n)
}

func TestEnvMaxRoundsMustBeNumeric(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMaxRounds, "many")

	_, err := Parse([]byte(validYAML), t.TempDir())
	assert.Equal(t, errors.EInvalidConfig, errors.GetCode(err))
}

func TestLoadReadsEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CTRAIN_ROUND_TIMEOUT=5m\nCTRAIN_LOG_LEVEL=error\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("CTRAIN_ROUND_TIMEOUT=7m\n"), 0o644))

	// t.Setenv above registered cleanup; unset so godotenv can fill them.
	require.NoError(t, os.Unsetenv(EnvRoundTimeout))
	require.NoError(t, os.Unsetenv(EnvLogLevel))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, 7*time.Minute, cfg.Round.Timeout, ".env.local wins over .env")
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, errors.EInvalidConfig, errors.GetCode(err))
}

func TestSnapshotRoundTrip(t *testing.T) {
	clearEnv(t)
	base := t.TempDir()

	cfg, err := Parse([]byte(validYAML), base)
	require.NoError(t, err)

	data, err := cfg.Snapshot()
	require.NoError(t, err)

	again, err := Parse(data, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, again.DataDir)
	assert.Equal(t, cfg.Trainer, again.Trainer)
	assert.Equal(t, cfg.Evaluator, again.Evaluator)
	assert.Equal(t, cfg.Round, again.Round)
	assert.Equal(t, cfg.Budget, again.Budget)
}

func TestFirstValidationError(t *testing.T) {
	assert.Equal(t, "", FirstValidationError(nil))
	assert.Equal(t, "trainer.command: is required", FirstValidationError(invalid("trainer.command", "is required")))
	assert.Equal(t, "budget not set", FirstValidationError(errors.New(errors.EInvalidConfig, "budget not set")))
}
