// Package render formats ctrain command output for humans and machines.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Placeholders for human output.
const (
	// Broken is displayed for sessions whose session.json is unreadable.
	Broken = "<broken>"

	// None is displayed for absent values.
	None = "-"
)

// SessionRow is one session in ls output.
type SessionRow struct {
	ID         string     `json:"session_id"`
	Broken     bool       `json:"broken,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	Metric     string     `json:"target_metric,omitempty"`
	Threshold  float64    `json:"target_threshold,omitempty"`
	Budget     string     `json:"budget,omitempty"`
	Rounds     int        `json:"rounds"`
	Attempts   int        `json:"attempts"`
	LastStatus string     `json:"last_status,omitempty"`
	Best       *float64   `json:"best,omitempty"`
	Verdict    string     `json:"verdict,omitempty"`
}

// WriteLSHuman writes sessions as a table, newest first as given.
func WriteLSHuman(w io.Writer, rows []SessionRow, now time.Time) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no sessions found")
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"SESSION", "CREATED", "TARGET", "BUDGET", "ROUNDS", "LAST", "BEST", "VERDICT"})
	for _, r := range rows {
		if r.Broken {
			t.AppendRow(table.Row{r.ID, Broken, None, None, None, None, None, None})
			continue
		}
		created := None
		if r.CreatedAt != nil {
			created = humanize.RelTime(*r.CreatedAt, now, "ago", "from now")
		}
		rounds := fmt.Sprintf("%d", r.Rounds)
		if r.Attempts > r.Rounds {
			rounds = fmt.Sprintf("%d (%d attempts)", r.Rounds, r.Attempts)
		}
		t.AppendRow(table.Row{
			r.ID,
			created,
			fmt.Sprintf("%s >= %s", r.Metric, FormatScore(r.Threshold)),
			orNone(r.Budget),
			rounds,
			orNone(r.LastStatus),
			formatBest(r.Best),
			orNone(r.Verdict),
		})
	}
	t.Render()
	return nil
}

// WriteLSJSON writes sessions as a JSON array.
func WriteLSJSON(w io.Writer, rows []SessionRow) error {
	if rows == nil {
		rows = []SessionRow{}
	}
	return writeJSON(w, rows)
}

// FormatScore prints a metric value with four decimals.
func FormatScore(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// Truncate shortens s to maxLen runes, adding an ellipsis when cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

func formatBest(v *float64) string {
	if v == nil {
		return None
	}
	return FormatScore(*v)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return None
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
