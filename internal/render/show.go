package render

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/NielsdaWheelz/ctrain/internal/core"
)

// ReasonMaxLen bounds the failure reason column in human output.
const ReasonMaxLen = 60

// ShowPathsData holds the paths for --path output.
type ShowPathsData struct {
	SessionDir  string
	SessionPath string
	ParamsPath  string
	ConfigPath  string
	EventsPath  string
	RoundsDir   string
	WorkDir     string
}

// RoundRow is one attempt record in show output.
type RoundRow struct {
	Round           int           `json:"round_index"`
	Attempt         int           `json:"attempt"`
	Status          core.Status   `json:"status"`
	Metric          *float64      `json:"target_value,omitempty"`
	Duration        time.Duration `json:"-"`
	DurationMS      int64         `json:"duration_ms"`
	Checkpoint      string        `json:"checkpoint,omitempty"`
	CheckpointBytes int64         `json:"checkpoint_bytes,omitempty"`
	Reason          string        `json:"failure_reason,omitempty"`
}

// ShowData holds a session summary for show output.
type ShowData struct {
	ID                string        `json:"session_id"`
	CreatedAt         time.Time     `json:"created_at"`
	Dataset           string        `json:"dataset"`
	InitialCheckpoint string        `json:"initial_checkpoint,omitempty"`
	Target            core.Target   `json:"target"`
	Budget            string        `json:"budget"`
	MaxAttempts       int           `json:"max_attempts"`
	RoundTimeout      time.Duration `json:"-"`
	Verdict           core.Verdict  `json:"verdict"`
	Elapsed           time.Duration `json:"-"`
	ElapsedMS         int64         `json:"elapsed_ms"`
	NextRound         int           `json:"next_round"`
	BestRound         int           `json:"best_round,omitempty"`
	Best              *float64      `json:"best,omitempty"`
	Rounds            []RoundRow    `json:"rounds"`
}

// NewRoundRows converts records into rows. sizeOf reports an archived
// checkpoint's size; it may be nil.
func NewRoundRows(records []core.RunRecord, metric string, sizeOf func(path string) (int64, bool)) []RoundRow {
	rows := make([]RoundRow, 0, len(records))
	for _, r := range records {
		row := RoundRow{
			Round:      r.RoundIndex,
			Attempt:    r.Attempt,
			Status:     r.Status,
			Duration:   r.Duration(),
			DurationMS: r.Duration().Milliseconds(),
			Checkpoint: r.ResumeCheckpoint(),
			Reason:     r.FailureReason,
		}
		if v, ok := r.Metric(metric); ok {
			row.Metric = &v
		}
		if sizeOf != nil && row.Checkpoint != "" {
			if n, ok := sizeOf(row.Checkpoint); ok {
				row.CheckpointBytes = n
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteShowHuman writes key/value session lines followed by a round table.
func WriteShowHuman(w io.Writer, d ShowData) error {
	timeout := "none"
	if d.RoundTimeout > 0 {
		timeout = d.RoundTimeout.String()
	}
	best := None
	if d.Best != nil {
		best = fmt.Sprintf("%s (round %d)", FormatScore(*d.Best), d.BestRound)
	}

	_, _ = fmt.Fprintf(w, "session: %s\n", d.ID)
	_, _ = fmt.Fprintf(w, "created: %s\n", d.CreatedAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "dataset: %s\n", d.Dataset)
	_, _ = fmt.Fprintf(w, "initial_checkpoint: %s\n", orNone(d.InitialCheckpoint))
	_, _ = fmt.Fprintf(w, "target: %s >= %s\n", d.Target.Metric, FormatScore(d.Target.Threshold))
	_, _ = fmt.Fprintf(w, "budget: %s\n", d.Budget)
	_, _ = fmt.Fprintf(w, "round: max_attempts=%d timeout=%s\n", d.MaxAttempts, timeout)

	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintf(w, "rounds: %d\n", d.NextRound-1)
	_, _ = fmt.Fprintf(w, "elapsed: %s\n", d.Elapsed.Round(time.Second))
	_, _ = fmt.Fprintf(w, "best: %s\n", best)
	_, _ = fmt.Fprintf(w, "verdict: %s\n", d.Verdict)
	if d.Verdict == core.Continue {
		_, _ = fmt.Fprintf(w, "next: round %d (ctrain resume %s)\n", d.NextRound, d.ID)
	}

	if len(d.Rounds) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ROUND", "ATTEMPT", "STATUS", d.Target.Metric, "DURATION", "CHECKPOINT", "REASON"})
	for _, r := range d.Rounds {
		metric := None
		if r.Metric != nil {
			metric = FormatScore(*r.Metric)
		}
		ckpt := None
		if r.CheckpointBytes > 0 {
			ckpt = humanize.Bytes(uint64(r.CheckpointBytes))
		} else if r.Checkpoint != "" {
			ckpt = "missing"
		}
		t.AppendRow(table.Row{
			r.Round,
			r.Attempt,
			r.Status,
			metric,
			r.Duration.Round(time.Second).String(),
			ckpt,
			orNone(Truncate(r.Reason, ReasonMaxLen)),
		})
	}
	t.Render()
	return nil
}

// WriteShowJSON writes show output as a JSON object.
func WriteShowJSON(w io.Writer, d ShowData) error {
	if d.Rounds == nil {
		d.Rounds = []RoundRow{}
	}
	d.ElapsedMS = d.Elapsed.Milliseconds()
	return writeJSON(w, d)
}

// WriteShowPaths writes --path output as key: value lines.
func WriteShowPaths(w io.Writer, data ShowPathsData) error {
	lines := []struct {
		key   string
		value string
	}{
		{"session_dir", data.SessionDir},
		{"session_path", data.SessionPath},
		{"params_path", data.ParamsPath},
		{"config_path", data.ConfigPath},
		{"events_path", data.EventsPath},
		{"rounds_dir", data.RoundsDir},
		{"work_dir", data.WorkDir},
	}

	for _, line := range lines {
		if _, err := fmt.Fprintf(w, "%s: %s\n", line.key, line.value); err != nil {
			return err
		}
	}
	return nil
}
