// Package events provides the per-session event journal.
// Events are stored in an append-only JSONL file next to session.json.
package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion is written to every event.
const SchemaVersion = "1.0"

// Event names.
const (
	SessionStart  = "session_start"
	SessionResume = "session_resume"
	RoundStart    = "round_start"
	AttemptFailed = "attempt_failed"
	RoundArchived = "round_archived"
	Decision      = "decision"
	SessionEnd    = "session_end"
)

// Event represents a single line in events.jsonl.
// This is the public contract for the events file format.
type Event struct {
	SchemaVersion string         `json:"schema_version"`
	Timestamp     string         `json:"timestamp"` // RFC3339
	SessionID     string         `json:"session_id"`
	Event         string         `json:"event"`
	Data          map[string]any `json:"data,omitempty"`
}

// AppendEvent appends a single event to path, creating the file lazily.
//
// Best-effort: errors are returned but callers should typically log them
// and continue with the main operation.
func AppendEvent(path string, e Event) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

// ReadEvents reads every event in path. A missing file yields no events.
// Lines that fail to parse are skipped.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// Journal appends events for one session.
type Journal struct {
	Path      string
	SessionID string
	Now       func() time.Time
}

// NewJournal creates a journal writing to path.
func NewJournal(path, sessionID string, now func() time.Time) *Journal {
	if now == nil {
		now = time.Now
	}
	return &Journal{Path: path, SessionID: sessionID, Now: now}
}

// Append writes one event.
func (j *Journal) Append(name string, data map[string]any) error {
	return AppendEvent(j.Path, Event{
		SchemaVersion: SchemaVersion,
		Timestamp:     j.Now().UTC().Format(time.RFC3339),
		SessionID:     j.SessionID,
		Event:         name,
		Data:          data,
	})
}
