package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// SessionEntry is a session discovered by scanning the data directory.
type SessionEntry struct {
	// ID is the directory name (canonical identity).
	ID string

	// Broken indicates session.json is missing, unreadable or names another session.
	// When true, File is nil but ID is still populated from the directory name.
	Broken bool

	// File is the parsed session.json. Nil if Broken.
	File *SessionFile

	// Attempts is the number of published attempt directories.
	Attempts int

	// Dir is ${CTRAIN_DATA_DIR}/sessions/<session_id>.
	Dir string
}

// ScanSessions discovers sessions by scanning the filesystem.
// Returns entries sorted newest first by created_at, then by ID; broken entries sort last.
// A missing sessions directory yields an empty slice, not an error.
func ScanSessions(dataDir string) ([]SessionEntry, error) {
	sessionsDir := filepath.Join(dataDir, "sessions")
	dirEntries, err := os.ReadDir(sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []SessionEntry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		id := de.Name()
		dir := filepath.Join(sessionsDir, id)
		entry := SessionEntry{ID: id, Dir: dir}

		data, err := os.ReadFile(filepath.Join(dir, "session.json"))
		if err != nil {
			entry.Broken = true
		} else {
			var f SessionFile
			if err := json.Unmarshal(data, &f); err != nil || f.ID != id {
				entry.Broken = true
			} else {
				entry.File = &f
			}
		}

		keys, _ := ListRoundKeys(filepath.Join(dir, "rounds"))
		entry.Attempts = len(keys)
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Broken != b.Broken {
			return !a.Broken
		}
		if !a.Broken && !a.File.CreatedAt.Equal(b.File.CreatedAt) {
			return a.File.CreatedAt.After(b.File.CreatedAt)
		}
		return a.ID < b.ID
	})
	return entries, nil
}

// SessionIDs returns the IDs of every session directory, for prefix resolution.
func SessionIDs(dataDir string) ([]string, error) {
	dirEntries, err := os.ReadDir(filepath.Join(dataDir, "sessions"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, de := range dirEntries {
		if de.IsDir() {
			ids = append(ids, de.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RoundRef identifies one published attempt directory.
type RoundRef struct {
	Round   int
	Attempt int
	Dir     string
}

// ListRoundKeys lists published attempt directories under roundsDir, ordered by
// (round, attempt). Staging directories and unrecognised names are skipped.
func ListRoundKeys(roundsDir string) ([]RoundRef, error) {
	dirEntries, err := os.ReadDir(roundsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var refs []RoundRef
	for _, de := range dirEntries {
		if !de.IsDir() || IsStagingName(de.Name()) {
			continue
		}
		round, attempt, ok := ParseRoundKey(de.Name())
		if !ok {
			continue
		}
		refs = append(refs, RoundRef{Round: round, Attempt: attempt, Dir: filepath.Join(roundsDir, de.Name())})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Round != refs[j].Round {
			return refs[i].Round < refs[j].Round
		}
		return refs[i].Attempt < refs[j].Attempt
	})
	return refs, nil
}

// ListStaging lists leftover staging directories under roundsDir.
func ListStaging(roundsDir string) ([]string, error) {
	dirEntries, err := os.ReadDir(roundsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []string
	for _, de := range dirEntries {
		if de.IsDir() && IsStagingName(de.Name()) {
			dirs = append(dirs, filepath.Join(roundsDir, de.Name()))
		}
	}
	return dirs, nil
}
