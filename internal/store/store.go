// Package store owns the on-disk layout of the ctrain data directory.
// Files are written atomically via temp file + rename.
package store

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/fs"
)

// Store resolves paths under the data directory and persists session metadata.
type Store struct {
	DataDir string           // resolved CTRAIN_DATA_DIR
	Now     func() time.Time // injectable clock for deterministic tests
}

// NewStore creates a new Store rooted at dataDir.
func NewStore(dataDir string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{DataDir: dataDir, Now: now}
}

// CatalogPath returns the path to the SQLite catalog.
func (s *Store) CatalogPath() string {
	return filepath.Join(s.DataDir, "catalog.db")
}

// SessionsDir returns ${CTRAIN_DATA_DIR}/sessions/.
func (s *Store) SessionsDir() string {
	return filepath.Join(s.DataDir, "sessions")
}

// SessionDir returns ${CTRAIN_DATA_DIR}/sessions/<session_id>/.
func (s *Store) SessionDir(sessionID string) string {
	return filepath.Join(s.SessionsDir(), sessionID)
}

// SessionPath returns the path to a session's session.json.
func (s *Store) SessionPath(sessionID string) string {
	return filepath.Join(s.SessionDir(sessionID), "session.json")
}

// ParamsPath returns the path to the trainer parameters file, config.json.
func (s *Store) ParamsPath(sessionID string) string {
	return filepath.Join(s.SessionDir(sessionID), "config.json")
}

// ConfigSnapshotPath returns the resolved ctrain.yaml a session was started
// with. Resume rebuilds its trainer and evaluator from this file.
func (s *Store) ConfigSnapshotPath(sessionID string) string {
	return filepath.Join(s.SessionDir(sessionID), "ctrain.yaml")
}

// EventsPath returns the path to a session's events.jsonl.
func (s *Store) EventsPath(sessionID string) string {
	return filepath.Join(s.SessionDir(sessionID), "events.jsonl")
}

// WorkDir returns the scratch directory for one attempt:
// ${CTRAIN_DATA_DIR}/sessions/<session_id>/work/<round>-<attempt>/
func (s *Store) WorkDir(sessionID string, round, attempt int) string {
	return filepath.Join(s.SessionDir(sessionID), "work", fmt.Sprintf("%d-%d", round, attempt))
}

// RoundsDir returns ${CTRAIN_DATA_DIR}/sessions/<session_id>/rounds/.
func (s *Store) RoundsDir(sessionID string) string {
	return filepath.Join(s.SessionDir(sessionID), "rounds")
}

// RoundDir returns the published archive directory of one attempt.
func (s *Store) RoundDir(sessionID string, round, attempt int) string {
	return filepath.Join(s.RoundsDir(sessionID), RoundKey(round, attempt))
}

// RecordPath returns the path to an archived record.json.
func (s *Store) RecordPath(sessionID string, round, attempt int) string {
	return filepath.Join(s.RoundDir(sessionID, round, attempt), "record.json")
}

// StagingDir returns the private directory an attempt is assembled in before publish.
// Staging directories start with a dot so scans skip them.
func (s *Store) StagingDir(sessionID string, round, attempt int) string {
	return filepath.Join(s.RoundsDir(sessionID), stagingPrefix+RoundKey(round, attempt))
}

const stagingPrefix = ".staging-"

// RoundKey formats the directory name for (round, attempt): "000001-1".
// Zero padding keeps lexical and numeric order aligned.
func RoundKey(round, attempt int) string {
	return fmt.Sprintf("%06d-%d", round, attempt)
}

// ParseRoundKey is the inverse of RoundKey.
func ParseRoundKey(name string) (round, attempt int, ok bool) {
	r, a, found := strings.Cut(name, "-")
	if !found || len(r) != 6 {
		return 0, 0, false
	}
	round, err := strconv.Atoi(r)
	if err != nil || round < 1 {
		return 0, 0, false
	}
	attempt, err = strconv.Atoi(a)
	if err != nil || attempt < 1 {
		return 0, 0, false
	}
	return round, attempt, true
}

// RemoveStaging removes a staging directory of sessionID. Published round
// directories and anything outside the session's rounds/ are refused.
func (s *Store) RemoveStaging(sessionID, dir string) error {
	return fs.RemoveStagingDir(dir, s.RoundsDir(sessionID), stagingPrefix)
}

// IsStagingName reports whether a rounds/ entry is a staging directory.
func IsStagingName(name string) bool {
	return strings.HasPrefix(name, stagingPrefix)
}
