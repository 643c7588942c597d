package training

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// DefaultResultsColumns maps Ultralytics results.csv columns to metric names.
var DefaultResultsColumns = map[string]string{
	"metrics/mAP50(B)":     "mAP50",
	"metrics/mAP50-95(B)":  "mAP50-95",
	"metrics/precision(B)": "precision",
	"metrics/recall(B)":    "recall",
}

// ResultsCSVEvaluator scores a checkpoint from the results.csv that training
// left next to its weights/ directory. The final epoch row is used.
type ResultsCSVEvaluator struct {
	// Columns overrides DefaultResultsColumns when non-empty.
	Columns map[string]string
}

// Evaluate reads <run>/results.csv for a checkpoint at <run>/weights/<file>.
func (e *ResultsCSVEvaluator) Evaluate(ctx context.Context, req core.EvalRequest) (core.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ECancelled, "evaluation cancelled", err)
	}
	if req.Checkpoint == "" {
		return nil, errors.New(errors.EEvalFailed, "no checkpoint to evaluate")
	}

	path := filepath.Join(filepath.Dir(filepath.Dir(req.Checkpoint)), "results.csv")
	columns := e.Columns
	if len(columns) == 0 {
		columns = DefaultResultsColumns
	}
	return ReadResultsCSV(path, columns)
}

// ReadResultsCSV returns the named columns of the last data row of path.
// Header cells are trimmed because older Ultralytics releases pad them.
func ReadResultsCSV(path string, columns map[string]string) (core.Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewWithDetails(errors.EEvalFailed, "results.csv not found",
				map[string]string{"path": path})
		}
		return nil, errors.Wrap(errors.EEvalFailed, "failed to open results.csv", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EEvalFailed, "results.csv has no header", err,
			map[string]string{"path": path})
	}

	var last []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapWithDetails(errors.EEvalFailed, "failed to parse results.csv", err,
				map[string]string{"path": path})
		}
		if len(row) > 0 {
			last = row
		}
	}
	if last == nil {
		return nil, errors.NewWithDetails(errors.EEvalFailed, "results.csv has no data rows",
			map[string]string{"path": path})
	}

	m := core.Metrics{}
	for i, col := range header {
		name, ok := columns[strings.TrimSpace(col)]
		if !ok || i >= len(last) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(last[i]), 64)
		if err != nil {
			return nil, errors.NewWithDetails(errors.EEvalFailed,
				fmt.Sprintf("results.csv column %q is not a number: %q", col, last[i]),
				map[string]string{"path": path, "metric": name})
		}
		m[name] = v
	}
	return m, nil
}
