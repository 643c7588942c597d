package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

var t0 = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func succeeded(round int, metric float64) RunRecord {
	return RunRecord{
		SchemaVersion: RecordSchemaVersion,
		SessionID:     "s1",
		RoundIndex:    round,
		Attempt:       1,
		StartedAt:     t0.Add(time.Duration(round-1) * time.Hour),
		FinishedAt:    t0.Add(time.Duration(round) * time.Hour),
		CheckpointRef: "/work/best.pt",
		Metrics:       Metrics{"mAP50": metric},
		Status:        StatusSucceeded,
	}
}

func failed(round int, reason string) RunRecord {
	r := succeeded(round, 0)
	r.CheckpointRef = ""
	r.Metrics = nil
	r.Status = StatusFailed
	r.FailureReason = reason
	return r
}

func TestRunRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunRecord)
		wantErr bool
	}{
		{"valid", func(*RunRecord) {}, false},
		{"no session", func(r *RunRecord) { r.SessionID = "" }, true},
		{"round zero", func(r *RunRecord) { r.RoundIndex = 0 }, true},
		{"attempt zero", func(r *RunRecord) { r.Attempt = 0 }, true},
		{"finished before started", func(r *RunRecord) { r.FinishedAt = r.StartedAt.Add(-time.Second) }, true},
		{"succeeded with reason", func(r *RunRecord) { r.FailureReason = "train: x" }, true},
		{"succeeded without checkpoint", func(r *RunRecord) { r.CheckpointRef = "" }, true},
		{"failed without reason", func(r *RunRecord) { r.Status = StatusFailed }, true},
		{"unknown status", func(r *RunRecord) { r.Status = "RUNNING" }, true},
		{"round started before attempt", func(r *RunRecord) { r.RoundStartedAt = r.StartedAt.Add(-time.Hour) }, false},
		{"round started after attempt", func(r *RunRecord) { r.RoundStartedAt = r.StartedAt.Add(time.Second) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := succeeded(1, 0.4)
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunRecordRoundStart(t *testing.T) {
	r := succeeded(2, 0.4)
	assert.Equal(t, r.StartedAt, r.RoundStart(), "records without round_started_at use started_at")

	r.RoundStartedAt = t0
	assert.Equal(t, t0, r.RoundStart())
}

func TestMetricsCheck(t *testing.T) {
	assert.NoError(t, Metrics{"mAP50": 0.5, "mAP50-95": 0.3}.Check("mAP50"))

	err := Metrics{"mAP50-95": 0.3}.Check("mAP50")
	assert.Equal(t, errors.EMetricMissing, errors.GetCode(err))

	err = Metrics{"mAP50": 1.2}.Check("mAP50")
	assert.Equal(t, errors.EMetricMissing, errors.GetCode(err))
}

func TestResumeCheckpointPrefersArchivedCopy(t *testing.T) {
	r := succeeded(1, 0.4)
	assert.Equal(t, "/work/best.pt", r.ResumeCheckpoint())

	r.Archived = &Artifacts{Checkpoint: "/archive/best.pt"}
	assert.Equal(t, "/archive/best.pt", r.ResumeCheckpoint())
}

func TestCloneIsDeep(t *testing.T) {
	r := succeeded(1, 0.4)
	r.Archived = &Artifacts{Checkpoint: "/a"}

	cp := r.Clone()
	cp.Metrics["mAP50"] = 0.9
	cp.Archived.Checkpoint = "/b"

	assert.Equal(t, 0.4, r.Metrics["mAP50"])
	assert.Equal(t, "/a", r.Archived.Checkpoint)
}

func TestBestRecord(t *testing.T) {
	tests := []struct {
		name      string
		history   []RunRecord
		wantRound int
		wantFound bool
	}{
		{"empty", nil, 0, false},
		{"only failures", []RunRecord{failed(1, "train: boom")}, 0, false},
		{"highest wins", []RunRecord{succeeded(1, 0.3), succeeded(2, 0.45), succeeded(3, 0.55)}, 3, true},
		{"dip is ignored", []RunRecord{succeeded(1, 0.6), succeeded(2, 0.4)}, 1, true},
		{"tie goes to lowest round", []RunRecord{succeeded(1, 0.3), succeeded(2, 0.5), succeeded(3, 0.5)}, 2, true},
		{"failures skipped", []RunRecord{succeeded(1, 0.3), failed(2, "eval: x")}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, ok := BestRecord(tt.history, "mAP50")
			require.Equal(t, tt.wantFound, ok)
			if ok {
				assert.Equal(t, tt.wantRound, best.RoundIndex)
			}
		})
	}
}
