package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/logger"
)

// ValidationError is a single invalid field.
type ValidationError struct {
	Field string
	Msg   string
}

func (v *ValidationError) Error() string {
	if v.Field != "" {
		return v.Field + ": " + v.Msg
	}
	return v.Msg
}

func invalid(field, msg string) error {
	ve := &ValidationError{Field: field, Msg: msg}
	return errors.WrapWithDetails(errors.EInvalidConfig, ve.Error(), ve,
		map[string]string{"field": field})
}

// Validate checks f and converts it into a Config. Relative paths resolve
// against baseDir; dataset and initial_checkpoint only when they exist there,
// since trainers also accept registry names such as "coco8.yaml".
func Validate(f File, baseDir string) (Config, error) {
	var cfg Config

	resolved := f
	resolved.DataDir = resolvePath(baseDir, f.DataDir)
	if resolved.DataDir == "" {
		resolved.DataDir = resolvePath(baseDir, DefaultDataDir)
	}
	resolved.Dataset = resolveIfExists(baseDir, f.Dataset)
	resolved.InitialCheckpoint = resolveIfExists(baseDir, f.InitialCheckpoint)
	resolved.Trainer.Dir = resolvePath(baseDir, f.Trainer.Dir)
	resolved.Evaluator.Dir = resolvePath(baseDir, f.Evaluator.Dir)
	resolved.Metrics.Textfile = resolvePath(baseDir, f.Metrics.Textfile)
	cfg.File = resolved

	cfg.DataDir = resolved.DataDir
	cfg.LogLevel = f.Log.Level
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, invalid("log.level", err.Error())
	}

	if f.Dataset == "" {
		return cfg, invalid("dataset", "is required")
	}
	cfg.Training = core.TrainingConfig{
		Params:            f.Params,
		Dataset:           resolved.Dataset,
		InitialCheckpoint: resolved.InitialCheckpoint,
	}

	cfg.Target = core.Target{Metric: f.Target.Metric, Threshold: f.Target.Threshold}
	if err := cfg.Target.Validate(); err != nil {
		return cfg, err
	}

	wall, err := parseDuration("budget.max_wall_clock", f.Budget.MaxWallClock)
	if err != nil {
		return cfg, err
	}
	cfg.Budget, err = core.NewBudget(f.Budget.MaxRounds, wall)
	if err != nil {
		return cfg, err
	}

	if cfg.Round, err = validateRound(f.Round); err != nil {
		return cfg, err
	}
	if cfg.Trainer, err = validateTrainer(resolved.Trainer); err != nil {
		return cfg, err
	}
	if cfg.Evaluator, err = validateEvaluator(resolved.Evaluator); err != nil {
		return cfg, err
	}
	cfg.MetricsTextfile = resolved.Metrics.Textfile

	return cfg, nil
}

func validateRound(r RoundFile) (core.RoundPolicy, error) {
	policy := core.DefaultRoundPolicy()
	if r.MaxAttempts != nil {
		policy.MaxAttempts = *r.MaxAttempts
	}
	var err error
	if policy.Timeout, err = parseDuration("round.timeout", r.Timeout); err != nil {
		return policy, err
	}
	if policy.Cooldown, err = parseDuration("round.cooldown", r.Cooldown); err != nil {
		return policy, err
	}
	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

func validateTrainer(t TrainerFile) (TrainerConfig, error) {
	out := TrainerConfig{Command: strings.TrimSpace(t.Command), CheckpointPath: t.CheckpointPath, Dir: t.Dir}
	if out.Command == "" {
		return out, invalid("trainer.command", "is required")
	}
	if filepath.IsAbs(t.CheckpointPath) {
		return out, invalid("trainer.checkpoint_path", "must be relative to the training output dir")
	}
	var err error
	out.Grace, err = parseDuration("trainer.grace", t.Grace)
	return out, err
}

func validateEvaluator(e EvaluatorFile) (EvaluatorConfig, error) {
	out := EvaluatorConfig{
		Kind:        e.Kind,
		Command:     strings.TrimSpace(e.Command),
		MetricsFile: e.MetricsFile,
		MetricPaths: e.MetricPaths,
		Columns:     e.Columns,
		Dir:         e.Dir,
	}
	if out.Kind == "" {
		out.Kind = EvaluatorScript
		if out.Command == "" {
			out.Kind = EvaluatorResultsCSV
		}
	}

	switch out.Kind {
	case EvaluatorScript:
		if out.Command == "" {
			return out, invalid("evaluator.command", "is required for kind "+EvaluatorScript)
		}
		for name, path := range out.MetricPaths {
			if name == "" || path == "" {
				return out, invalid("evaluator.metric_paths", "names and paths must be non-empty")
			}
		}
	case EvaluatorResultsCSV:
		if out.Command != "" {
			return out, invalid("evaluator.command", "is not used by kind "+EvaluatorResultsCSV)
		}
	default:
		return out, invalid("evaluator.kind",
			fmt.Sprintf("must be %q or %q, got %q", EvaluatorScript, EvaluatorResultsCSV, out.Kind))
	}

	var err error
	out.Grace, err = parseDuration("evaluator.grace", e.Grace)
	return out, err
}

// parseDuration parses an optional non-negative Go duration string.
func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, invalid(field, fmt.Sprintf("invalid duration %q", s))
	}
	if d < 0 {
		return 0, invalid(field, "must not be negative")
	}
	return d, nil
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

func resolveIfExists(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	joined := filepath.Join(baseDir, p)
	if _, err := os.Stat(joined); err == nil {
		return joined
	}
	return p
}

// FirstValidationError returns the field-level message of a config error,
// or err.Error() for anything else.
func FirstValidationError(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve.Error()
	}
	if ce, ok := errors.AsCtrainError(err); ok {
		return ce.Msg
	}
	return err.Error()
}
