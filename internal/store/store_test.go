package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
}

func testSession(t *testing.T, id string) *core.Session {
	t.Helper()
	budget, err := core.RoundsAndWallClockBudget(3, 6*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	policy := core.RoundPolicy{Timeout: 2 * time.Hour, MaxAttempts: 2, Cooldown: 10 * time.Second}
	s, err := core.NewSession(id, fixedNow(),
		core.TrainingConfig{
			Params:            map[string]any{"epochs": 10, "imgsz": 640},
			Dataset:           "hyper/dataset.yaml",
			InitialCheckpoint: "model/original/yolo11n.pt",
		},
		core.Target{Metric: "mAP50", Threshold: 0.85},
		budget, policy)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPaths(t *testing.T) {
	s := NewStore("/data", fixedNow)

	tests := []struct {
		got  string
		want string
	}{
		{s.CatalogPath(), "/data/catalog.db"},
		{s.SessionPath("abc"), "/data/sessions/abc/session.json"},
		{s.ParamsPath("abc"), "/data/sessions/abc/config.json"},
		{s.EventsPath("abc"), "/data/sessions/abc/events.jsonl"},
		{s.WorkDir("abc", 2, 1), "/data/sessions/abc/work/2-1"},
		{s.RoundDir("abc", 2, 1), "/data/sessions/abc/rounds/000002-1"},
		{s.RecordPath("abc", 12, 2), "/data/sessions/abc/rounds/000012-2/record.json"},
		{s.StagingDir("abc", 2, 1), "/data/sessions/abc/rounds/.staging-000002-1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseRoundKey(t *testing.T) {
	tests := []struct {
		name        string
		wantRound   int
		wantAttempt int
		wantOK      bool
	}{
		{"000001-1", 1, 1, true},
		{"000042-2", 42, 2, true},
		{RoundKey(7, 3), 7, 3, true},
		{"1-1", 0, 0, false},
		{"000000-1", 0, 0, false},
		{"000001-0", 0, 0, false},
		{"000001", 0, 0, false},
		{".staging-000001-1", 0, 0, false},
	}
	for _, tt := range tests {
		round, attempt, ok := ParseRoundKey(tt.name)
		if ok != tt.wantOK || round != tt.wantRound || attempt != tt.wantAttempt {
			t.Errorf("ParseRoundKey(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tt.name, round, attempt, ok, tt.wantRound, tt.wantAttempt, tt.wantOK)
		}
	}
}

func TestWriteReadSession(t *testing.T) {
	s := NewStore(t.TempDir(), fixedNow)
	sess := testSession(t, "sess-1")

	if err := s.WriteSession(sess); err != nil {
		t.Fatalf("WriteSession() error = %v", err)
	}
	if sess.Config.ParamsPath != s.ParamsPath("sess-1") {
		t.Errorf("ParamsPath = %q, want %q", sess.Config.ParamsPath, s.ParamsPath("sess-1"))
	}
	if _, err := os.Stat(sess.Config.ParamsPath); err != nil {
		t.Errorf("params file missing: %v", err)
	}

	got, err := s.ReadSession("sess-1")
	if err != nil {
		t.Fatalf("ReadSession() error = %v", err)
	}
	if got.Target != sess.Target {
		t.Errorf("Target = %+v, want %+v", got.Target, sess.Target)
	}
	if got.Budget != sess.Budget {
		t.Errorf("Budget = %v, want %v", got.Budget, sess.Budget)
	}
	if got.Policy != sess.Policy {
		t.Errorf("Policy = %+v, want %+v", got.Policy, sess.Policy)
	}
	if got.Config.ParamsPath != sess.Config.ParamsPath {
		t.Errorf("Config.ParamsPath = %q", got.Config.ParamsPath)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, sess.CreatedAt)
	}
	if len(got.History) != 0 {
		t.Errorf("History = %v, want empty", got.History)
	}
}

func TestReadSession_NotFound(t *testing.T) {
	s := NewStore(t.TempDir(), fixedNow)
	_, err := s.ReadSession("missing")
	if errors.GetCode(err) != errors.ESessionNotFound {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.ESessionNotFound)
	}
}

func TestReadSession_Corrupt(t *testing.T) {
	s := NewStore(t.TempDir(), fixedNow)
	path := s.SessionPath("bad")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.ReadSession("bad")
	if errors.GetCode(err) != errors.EStoreCorrupt {
		t.Errorf("code = %q, want %q", errors.GetCode(err), errors.EStoreCorrupt)
	}
}

func TestConfigSnapshot(t *testing.T) {
	s := NewStore(t.TempDir(), fixedNow)

	if _, err := s.ReadConfigSnapshot("sess"); errors.GetCode(err) != errors.EStoreCorrupt {
		t.Fatalf("missing snapshot: code = %q, want %q", errors.GetCode(err), errors.EStoreCorrupt)
	}

	want := "dataset: /data/hyper/dataset.yaml\n"
	if err := s.WriteConfigSnapshot("sess", []byte(want)); err != nil {
		t.Fatalf("WriteConfigSnapshot: %v", err)
	}
	got, err := s.ReadConfigSnapshot("sess")
	if err != nil {
		t.Fatalf("ReadConfigSnapshot: %v", err)
	}
	if string(got) != want {
		t.Errorf("snapshot = %q, want %q", got, want)
	}
	if filepath.Base(s.ConfigSnapshotPath("sess")) != "ctrain.yaml" {
		t.Errorf("ConfigSnapshotPath = %q", s.ConfigSnapshotPath("sess"))
	}
}
