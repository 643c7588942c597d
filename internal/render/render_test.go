package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

var t0 = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func record(round, attempt int, status core.Status, metric float64, reason string) core.RunRecord {
	r := core.RunRecord{
		SchemaVersion: core.RecordSchemaVersion,
		SessionID:     "s1",
		RoundIndex:    round,
		Attempt:       attempt,
		StartedAt:     t0,
		FinishedAt:    t0.Add(90 * time.Second),
		Status:        status,
		FailureReason: reason,
	}
	if status == core.StatusSucceeded {
		r.CheckpointRef = "/work/best.pt"
		r.Metrics = core.Metrics{"mAP50": metric}
	}
	return r
}

func TestWriteLSHuman_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLSHuman(&buf, nil, t0); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "no sessions found\n" {
		t.Errorf("got %q", got)
	}
}

func TestWriteLSHuman_Rows(t *testing.T) {
	created := t0.Add(-3 * time.Hour)
	best := 0.61
	rows := []SessionRow{
		{ID: "abc", CreatedAt: &created, Metric: "mAP50", Threshold: 0.85, Budget: "10 rounds",
			Rounds: 2, Attempts: 3, LastStatus: "SUCCEEDED", Best: &best, Verdict: "STOP_EXHAUSTED"},
		{ID: "broken-one", Broken: true},
	}

	var buf bytes.Buffer
	if err := WriteLSHuman(&buf, rows, t0); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"SESSION", "abc", "3 hours ago", "mAP50 >= 0.8500", "2 (3 attempts)", "0.6100", "STOP_EXHAUSTED", "broken-one", Broken} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteLSJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLSJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("got %q, want []", buf.String())
	}
}

func TestNewRoundRows(t *testing.T) {
	records := []core.RunRecord{
		record(1, 1, core.StatusFailed, 0, "train: exit 1"),
		record(1, 2, core.StatusSucceeded, 0.42, ""),
	}
	sizes := func(path string) (int64, bool) { return 5_300_000, path == "/work/best.pt" }

	rows := NewRoundRows(records, "mAP50", sizes)
	if len(rows) != 2 {
		t.Fatalf("len = %d", len(rows))
	}
	if rows[0].Metric != nil || rows[0].Reason != "train: exit 1" {
		t.Errorf("failed row = %+v", rows[0])
	}
	if rows[1].Metric == nil || *rows[1].Metric != 0.42 || rows[1].CheckpointBytes != 5_300_000 {
		t.Errorf("succeeded row = %+v", rows[1])
	}
	if rows[1].DurationMS != 90_000 {
		t.Errorf("DurationMS = %d", rows[1].DurationMS)
	}
}

func TestWriteShowHuman(t *testing.T) {
	best := 0.42
	d := ShowData{
		ID:          "s1",
		CreatedAt:   t0,
		Dataset:     "hyper/dataset.yaml",
		Target:      core.Target{Metric: "mAP50", Threshold: 0.85},
		Budget:      "3 rounds",
		MaxAttempts: 2,
		Verdict:     core.Continue,
		Elapsed:     90 * time.Second,
		NextRound:   2,
		BestRound:   1,
		Best:        &best,
		Rounds: NewRoundRows([]core.RunRecord{record(1, 1, core.StatusSucceeded, 0.42, "")}, "mAP50",
			func(string) (int64, bool) { return 5_300_000, true }),
	}

	var buf bytes.Buffer
	if err := WriteShowHuman(&buf, d); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"session: s1\n",
		"initial_checkpoint: -\n",
		"round: max_attempts=2 timeout=none\n",
		"rounds: 1\n",
		"best: 0.4200 (round 1)\n",
		"verdict: CONTINUE\n",
		"next: round 2 (ctrain resume s1)\n",
		"5.3 MB",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteShowJSON(t *testing.T) {
	var buf bytes.Buffer
	d := ShowData{ID: "s1", Verdict: core.StopSuccess, Elapsed: 2 * time.Second, NextRound: 1}
	if err := WriteShowJSON(&buf, d); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["verdict"] != "STOP_SUCCESS" || got["elapsed_ms"] != float64(2000) {
		t.Errorf("got %v", got)
	}
	if rounds, ok := got["rounds"].([]any); !ok || len(rounds) != 0 {
		t.Errorf("rounds = %v, want empty array", got["rounds"])
	}
}

func TestWriteShowPaths(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteShowPaths(&buf, ShowPathsData{SessionDir: "/d/s1", EventsPath: "/d/s1/events.jsonl"}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 || lines[0] != "session_dir: /d/s1" || lines[4] != "events_path: /d/s1/events.jsonl" {
		t.Errorf("lines = %q", lines)
	}
}

func TestWriteRoundLine(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteRoundLine(&buf, record(2, 1, core.StatusSucceeded, 0.5, ""), "mAP50")
	_ = WriteRoundLine(&buf, record(3, 2, core.StatusFailed, 0, "timeout: round exceeded 2h0m0s"), "mAP50")

	want := "round 2 attempt 1: SUCCEEDED mAP50=0.5000 (1m30s)\n" +
		"round 3 attempt 2: FAILED timeout: round exceeded 2h0m0s (1m30s)\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteOutcome(t *testing.T) {
	best := record(2, 1, core.StatusSucceeded, 0.9, "")
	failed := record(3, 2, core.StatusFailed, 0, "eval: crash")
	out := core.Outcome{
		Verdict:    core.Aborted,
		Best:       &best,
		LastFailed: &failed,
		History:    []core.RunRecord{record(1, 1, core.StatusSucceeded, 0.5, ""), best},
		Err:        errors.New(errors.ERoundAborted, "round 3 failed"),
	}

	var buf bytes.Buffer
	if err := WriteOutcome(&buf, "s1", out, core.Target{Metric: "mAP50", Threshold: 0.95}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"verdict: ABORTED\n", "rounds: 2\n", "best: round 2 mAP50=0.9000\n", "last_failed: round 3 attempt 2: eval: crash\n"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := WriteOutcomeJSON(&buf, "s1", out); err != nil {
		t.Fatal(err)
	}
	var got OutcomeJSON
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ErrorCode != errors.ERoundAborted || got.Best.RoundIndex != 2 || len(got.History) != 2 {
		t.Errorf("got %+v", got)
	}
}
