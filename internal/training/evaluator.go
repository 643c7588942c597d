package training

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/script"
)

// DefaultMetricsFile is the report the evaluation command writes under its output dir.
const DefaultMetricsFile = "metrics.json"

// ScriptEvaluator runs a shell command that scores a checkpoint and reads the
// scores from a JSON report.
type ScriptEvaluator struct {
	// Command is run via `sh -lc`.
	Command string

	// MetricsFile is relative to the output dir unless absolute.
	MetricsFile string

	// MetricPaths maps metric names to gjson paths into the report.
	// When empty, every top-level number in the report is a metric.
	MetricPaths map[string]string

	Dir   string
	Grace time.Duration
}

// Evaluate runs the evaluation command for req and parses its report.
func (e *ScriptEvaluator) Evaluate(ctx context.Context, req core.EvalRequest) (core.Metrics, error) {
	if e.Command == "" {
		return nil, errors.New(errors.EInvalidConfig, "evaluator command is empty")
	}

	env := append(baseEnv(req.SessionID, req.Round, req.Attempt, req.OutputDir, req.Dataset),
		"CTRAIN_CHECKPOINT="+req.Checkpoint,
	)
	res, err := script.Run(ctx, script.Command{
		Name:    "eval",
		Script:  e.Command,
		Dir:     e.Dir,
		Env:     env,
		LogPath: filepath.Join(req.OutputDir, "logs", "eval.log"),
		Grace:   e.Grace,
	})
	if err != nil {
		return nil, errors.Wrap(errors.EEvalFailed, "failed to run eval script", err)
	}
	if err := res.Err("eval", errors.EEvalFailed); err != nil {
		return nil, err
	}

	path := e.MetricsFile
	if path == "" {
		path = DefaultMetricsFile
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(req.OutputDir, path)
	}
	return ReadMetricsFile(path, e.MetricPaths)
}

// ReadMetricsFile parses a JSON metrics report.
//
// With no paths, top-level numbers in [0, 1] become metrics. Other fields,
// including numbers outside that range such as epochs or timings, are
// ignored; a target reported on another scale therefore reads as missing. With paths, only the named metrics are read; a path that does not
// resolve is skipped and a path that resolves to a non-number is an error.
func ReadMetricsFile(path string, paths map[string]string) (core.Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewWithDetails(errors.EEvalFailed,
				"eval script exited 0 but wrote no metrics report",
				map[string]string{"path": path})
		}
		return nil, errors.Wrap(errors.EEvalFailed, "failed to read metrics report", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.NewWithDetails(errors.EEvalFailed, "metrics report is not valid json",
			map[string]string{"path": path})
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, errors.NewWithDetails(errors.EEvalFailed, "metrics report must be a json object",
			map[string]string{"path": path})
	}

	m := core.Metrics{}
	if len(paths) == 0 {
		doc.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Number {
				if v := value.Float(); v >= 0 && v <= 1 {
					m[key.String()] = v
				}
			}
			return true
		})
		return m, nil
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := doc.Get(paths[name])
		if !v.Exists() {
			continue
		}
		if v.Type != gjson.Number {
			return nil, errors.NewWithDetails(errors.EEvalFailed,
				fmt.Sprintf("metric %q at %q is not a number", name, paths[name]),
				map[string]string{"path": path, "metric": name})
		}
		m[name] = v.Float()
	}
	return m, nil
}
