// Package core holds the ctrain data model: run records, sessions, budgets and outcomes.
// Types here carry no I/O; persistence lives in store and archive.
package core

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// RecordSchemaVersion is written to every archived record.json.
const RecordSchemaVersion = "1.0"

// Status is the terminal state of a single attempt.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Failure reason prefixes. FailureReason strings start with one of these.
const (
	ReasonTrain     = "train"
	ReasonEval      = "eval"
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
)

// Metrics maps a metric name (e.g. "mAP50", "mAP50-95") to a score in [0, 1].
type Metrics map[string]float64

// Clone returns a copy of m (nil for an empty map).
func (m Metrics) Clone() Metrics {
	if len(m) == 0 {
		return nil
	}
	cp := make(Metrics, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Names returns metric names in sorted order.
func (m Metrics) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Check verifies every value is a finite score in [0, 1] and that target is present.
// A missing target is a contract violation, never an implicit zero.
func (m Metrics) Check(target string) error {
	for _, name := range m.Names() {
		v := m[name]
		if math.IsNaN(v) || v < 0 || v > 1 {
			return errors.NewWithDetails(errors.EMetricMissing,
				fmt.Sprintf("metric %q = %v is outside [0, 1]", name, v),
				map[string]string{"metric": name})
		}
	}
	if _, ok := m[target]; !ok {
		return errors.NewWithDetails(errors.EMetricMissing,
			fmt.Sprintf("evaluator did not report target metric %q", target),
			map[string]string{"metric": target})
	}
	return nil
}

// Artifacts are the archived copies of a round's outputs, filled in by the archiver.
type Artifacts struct {
	// Checkpoint is the archived checkpoint file path. Empty for failed attempts.
	Checkpoint string `json:"checkpoint,omitempty"`

	// LogsDir is the archived logs directory. Empty if the attempt produced no logs.
	LogsDir string `json:"logs_dir,omitempty"`
}

// RunRecord is the outcome of one attempt of one training round.
// A record is immutable once archived; copy it rather than mutating shared values.
type RunRecord struct {
	SchemaVersion string `json:"schema_version"`
	SessionID     string `json:"session_id"`

	// RoundIndex starts at 1 and increases by one per completed round.
	RoundIndex int `json:"round_index"`

	// Attempt starts at 1; retries of the same round increment it.
	Attempt int `json:"attempt"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// RoundStartedAt is the start of the round's first attempt. Equal to
	// StartedAt for attempt 1; zero in records written before it existed.
	RoundStartedAt time.Time `json:"round_started_at"`

	// StartingCheckpoint is the checkpoint training resumed from ("" = cold start).
	StartingCheckpoint string `json:"starting_checkpoint,omitempty"`

	// CheckpointRef is the checkpoint produced by the trainer. Empty on failure
	// before training finished.
	CheckpointRef string `json:"checkpoint_ref,omitempty"`

	Metrics Metrics `json:"metrics,omitempty"`

	Status        Status `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`

	// Archived is set by the archiver when the record is published.
	Archived *Artifacts `json:"archived,omitempty"`
}

// Succeeded reports whether the attempt finished with status SUCCEEDED.
func (r RunRecord) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Metric returns the named metric value.
func (r RunRecord) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// ResumeCheckpoint returns the checkpoint the next round should start from:
// the archived copy when present, else the trainer's original reference.
func (r RunRecord) ResumeCheckpoint() string {
	if r.Archived != nil && r.Archived.Checkpoint != "" {
		return r.Archived.Checkpoint
	}
	return r.CheckpointRef
}

// RoundStart returns when the round's first attempt started, falling back to
// StartedAt for records that predate RoundStartedAt.
func (r RunRecord) RoundStart() time.Time {
	if r.RoundStartedAt.IsZero() {
		return r.StartedAt
	}
	return r.RoundStartedAt
}

// Duration returns FinishedAt - StartedAt.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Clone returns a deep copy of r.
func (r RunRecord) Clone() RunRecord {
	cp := r
	cp.Metrics = r.Metrics.Clone()
	if r.Archived != nil {
		a := *r.Archived
		cp.Archived = &a
	}
	return cp
}

// Validate checks the record's structural invariants.
func (r RunRecord) Validate() error {
	switch {
	case r.SessionID == "":
		return fmt.Errorf("record has no session_id")
	case r.RoundIndex < 1:
		return fmt.Errorf("round_index %d must be >= 1", r.RoundIndex)
	case r.Attempt < 1:
		return fmt.Errorf("attempt %d must be >= 1", r.Attempt)
	case r.StartedAt.IsZero():
		return fmt.Errorf("round %d: started_at is unset", r.RoundIndex)
	case r.FinishedAt.Before(r.StartedAt):
		return fmt.Errorf("round %d: finished_at precedes started_at", r.RoundIndex)
	case r.RoundStartedAt.After(r.StartedAt):
		return fmt.Errorf("round %d: round_started_at follows started_at", r.RoundIndex)
	}

	switch r.Status {
	case StatusSucceeded:
		if r.FailureReason != "" {
			return fmt.Errorf("round %d: succeeded record carries failure_reason", r.RoundIndex)
		}
		if r.CheckpointRef == "" {
			return fmt.Errorf("round %d: succeeded record has no checkpoint_ref", r.RoundIndex)
		}
	case StatusFailed:
		if r.FailureReason == "" {
			return fmt.Errorf("round %d: failed record has no failure_reason", r.RoundIndex)
		}
	default:
		return fmt.Errorf("round %d: unknown status %q", r.RoundIndex, r.Status)
	}
	return nil
}

// BestRecord returns the SUCCEEDED record with the highest value of metric.
// Ties go to the lowest round index. Records missing the metric are skipped.
func BestRecord(history []RunRecord, metric string) (RunRecord, bool) {
	var best RunRecord
	found := false
	for _, r := range history {
		if !r.Succeeded() {
			continue
		}
		v, ok := r.Metric(metric)
		if !ok {
			continue
		}
		if !found {
			best, found = r, true
			continue
		}
		bv, _ := best.Metric(metric)
		if v > bv || (v == bv && r.RoundIndex < best.RoundIndex) {
			best = r
		}
	}
	if !found {
		return RunRecord{}, false
	}
	return best.Clone(), true
}
