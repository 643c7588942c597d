package store

import (
	"fmt"
	"os"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/fs"
)

// SessionSchemaVersion is written to every session.json.
const SessionSchemaVersion = "1.0"

// SessionFile is the persisted form of a session, without its history.
// History lives in the per-round archive directories.
type SessionFile struct {
	SchemaVersion string              `json:"schema_version"`
	ID            string              `json:"session_id"`
	CreatedAt     time.Time           `json:"created_at"`
	Config        core.TrainingConfig `json:"config"`
	Target        core.Target         `json:"target"`
	Budget        core.Budget         `json:"budget"`
	Round         RoundPolicyFile     `json:"round_policy"`
}

// RoundPolicyFile stores durations in milliseconds.
type RoundPolicyFile struct {
	TimeoutMS   int64 `json:"timeout_ms,omitempty"`
	MaxAttempts int   `json:"max_attempts"`
	CooldownMS  int64 `json:"cooldown_ms,omitempty"`
}

// NewSessionFile converts a session into its persisted form.
func NewSessionFile(s *core.Session) SessionFile {
	return SessionFile{
		SchemaVersion: SessionSchemaVersion,
		ID:            s.ID,
		CreatedAt:     s.CreatedAt.UTC(),
		Config:        s.Config,
		Target:        s.Target,
		Budget:        s.Budget,
		Round: RoundPolicyFile{
			TimeoutMS:   s.Policy.Timeout.Milliseconds(),
			MaxAttempts: s.Policy.MaxAttempts,
			CooldownMS:  s.Policy.Cooldown.Milliseconds(),
		},
	}
}

// Session rebuilds a validated session with empty history.
func (f SessionFile) Session() (*core.Session, error) {
	policy := core.RoundPolicy{
		Timeout:     time.Duration(f.Round.TimeoutMS) * time.Millisecond,
		MaxAttempts: f.Round.MaxAttempts,
		Cooldown:    time.Duration(f.Round.CooldownMS) * time.Millisecond,
	}
	return core.NewSession(f.ID, f.CreatedAt, f.Config, f.Target, f.Budget, policy)
}

// WriteSession persists session.json and, when the config carries params,
// the trainer parameters file. It sets s.Config.ParamsPath.
func (s *Store) WriteSession(sess *core.Session) error {
	if len(sess.Config.Params) > 0 {
		path := s.ParamsPath(sess.ID)
		if err := fs.WriteJSONAtomic(path, sess.Config.Params, 0o644); err != nil {
			return errors.Wrap(errors.EArchiveFailed, "failed to write trainer params", err)
		}
		sess.Config.ParamsPath = path
	}

	if err := fs.WriteJSONAtomic(s.SessionPath(sess.ID), NewSessionFile(sess), 0o644); err != nil {
		return errors.Wrap(errors.EArchiveFailed, "failed to write session.json", err)
	}
	return nil
}

// ReadSessionFile reads session.json for sessionID.
// Returns E_SESSION_NOT_FOUND if missing and E_STORE_CORRUPT if unreadable.
func (s *Store) ReadSessionFile(sessionID string) (SessionFile, error) {
	var f SessionFile
	path := s.SessionPath(sessionID)
	if err := fs.ReadJSON(path, &f); err != nil {
		if os.IsNotExist(err) {
			return f, errors.NewWithDetails(errors.ESessionNotFound,
				fmt.Sprintf("session not found: %s", sessionID),
				map[string]string{"session_id": sessionID})
		}
		return f, errors.WrapWithDetails(errors.EStoreCorrupt, "session.json is unreadable", err,
			map[string]string{"session_id": sessionID, "path": path})
	}
	if f.ID != sessionID {
		return f, errors.NewWithDetails(errors.EStoreCorrupt,
			fmt.Sprintf("session.json names session %q", f.ID),
			map[string]string{"session_id": sessionID, "path": path})
	}
	return f, nil
}

// ReadSession loads and validates a session with empty history.
func (s *Store) ReadSession(sessionID string) (*core.Session, error) {
	f, err := s.ReadSessionFile(sessionID)
	if err != nil {
		return nil, err
	}
	sess, err := f.Session()
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EStoreCorrupt, "session.json is invalid", err,
			map[string]string{"session_id": sessionID})
	}
	return sess, nil
}

// WriteConfigSnapshot stores the resolved config a session was started with.
func (s *Store) WriteConfigSnapshot(sessionID string, data []byte) error {
	if err := fs.WriteFileAtomic(s.ConfigSnapshotPath(sessionID), data, 0o644); err != nil {
		return errors.Wrap(errors.EArchiveFailed, "failed to write config snapshot", err)
	}
	return nil
}

// ReadConfigSnapshot returns the stored config of sessionID.
func (s *Store) ReadConfigSnapshot(sessionID string) ([]byte, error) {
	path := s.ConfigSnapshotPath(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWithDetails(errors.EStoreCorrupt, "session has no config snapshot",
				map[string]string{"session_id": sessionID, "path": path})
		}
		return nil, errors.WrapWithDetails(errors.EStoreCorrupt, "config snapshot is unreadable", err,
			map[string]string{"session_id": sessionID, "path": path})
	}
	return data, nil
}
