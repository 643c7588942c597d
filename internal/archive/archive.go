// Package archive persists run records and their artifacts write-once.
//
// Every attempt of every round is published under its own key
// (session_id, round_index, attempt). An attempt is assembled in a private
// staging directory and published with a single no-overwrite rename, so a
// crash leaves either nothing or a complete attempt, never a partial one.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/fs"
	"github.com/NielsdaWheelz/ctrain/internal/logger"
	"github.com/NielsdaWheelz/ctrain/internal/store"
)

// Indexer receives published sessions and attempts. Failures are logged, never fatal.
type Indexer interface {
	RecordSession(ctx context.Context, s *core.Session) error
	RecordRound(ctx context.Context, r core.RunRecord) error
}

// Artifacts are the files produced by an attempt, copied into the archive on save.
type Artifacts struct {
	// Checkpoint is a checkpoint file. Empty when the attempt produced none.
	Checkpoint string

	// LogsDir is copied recursively. Empty or missing directories are skipped.
	LogsDir string
}

// Receipt describes a published attempt.
type Receipt struct {
	// Dir is the published attempt directory.
	Dir string

	// Record is the record as archived, with Archived paths filled in.
	Record core.RunRecord
}

// Archiver writes and reads the archive under a store's data directory.
type Archiver struct {
	store *store.Store
	index Indexer
	log   logger.Logger
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithIndexer mirrors every publish into idx.
func WithIndexer(idx Indexer) Option {
	return func(a *Archiver) { a.index = idx }
}

// WithLogger sets the archiver's logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Archiver) { a.log = l }
}

// New creates an Archiver over st.
func New(st *store.Store, opts ...Option) *Archiver {
	a := &Archiver{store: st, log: logger.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the underlying store.
func (a *Archiver) Store() *store.Store {
	return a.store
}

// Save archives r and its artifacts under (session_id, round_index, attempt).
//
// If the key is already published, Save leaves it untouched and returns an
// error: E_ALREADY_ARCHIVED with a valid Receipt for the existing attempt when
// the archived record equals r, or E_ARCHIVE_CONFLICT otherwise. Any other
// failure is E_ARCHIVE_FAILED.
func (a *Archiver) Save(ctx context.Context, r core.RunRecord, art Artifacts) (Receipt, error) {
	r = normalize(r)
	details := recordDetails(r)

	if err := r.Validate(); err != nil {
		return Receipt{}, errors.WrapWithDetails(errors.EArchiveFailed, "refusing to archive invalid record", err, details)
	}

	dst := a.store.RoundDir(r.SessionID, r.RoundIndex, r.Attempt)
	if _, err := os.Lstat(dst); err == nil {
		return a.existing(dst, r)
	} else if !os.IsNotExist(err) {
		return Receipt{}, errors.WrapWithDetails(errors.EArchiveFailed, "failed to check archive key", err, details)
	}

	staging := a.store.StagingDir(r.SessionID, r.RoundIndex, r.Attempt)
	archived, err := a.stage(ctx, staging, dst, r, art)
	if err != nil {
		_ = a.store.RemoveStaging(r.SessionID, staging)
		return Receipt{}, errors.WrapWithDetails(errors.EArchiveFailed, "failed to stage attempt", err, details)
	}

	if err := fs.PublishDir(staging, dst); err != nil {
		_ = a.store.RemoveStaging(r.SessionID, staging)
		if stderrors.Is(err, fs.ErrExists) {
			// Lost a race with another writer of the same key.
			return a.existing(dst, r)
		}
		return Receipt{}, errors.WrapWithDetails(errors.EArchiveFailed, "failed to publish attempt", err, details)
	}

	a.log.Info("attempt archived",
		logger.String("session_id", r.SessionID),
		logger.Round(r.RoundIndex, r.Attempt),
		logger.String("status", string(archived.Status)),
		logger.String("dir", dst),
	)

	if a.index != nil {
		if err := a.index.RecordRound(ctx, archived); err != nil {
			a.log.Warn("catalog index failed",
				logger.String("session_id", r.SessionID),
				logger.Round(r.RoundIndex, r.Attempt),
				logger.Error(err),
			)
		}
	}

	return Receipt{Dir: dst, Record: archived}, nil
}

// stage assembles the attempt in staging and returns the record as it will be published.
func (a *Archiver) stage(ctx context.Context, staging, dst string, r core.RunRecord, art Artifacts) (core.RunRecord, error) {
	if _, err := os.Lstat(staging); err == nil {
		a.log.Warn("removing leftover staging directory", logger.String("dir", staging))
		if err := a.store.RemoveStaging(r.SessionID, staging); err != nil {
			return r, fmt.Errorf("remove leftover staging: %w", err)
		}
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return r, err
	}

	archived := r.Clone()
	arts := &core.Artifacts{}

	if art.Checkpoint != "" {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		name := filepath.Base(art.Checkpoint)
		if err := fs.CopyFile(art.Checkpoint, filepath.Join(staging, "checkpoint", name)); err != nil {
			return r, fmt.Errorf("copy checkpoint: %w", err)
		}
		arts.Checkpoint = filepath.Join(dst, "checkpoint", name)
	}

	if art.LogsDir != "" {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		info, err := os.Stat(art.LogsDir)
		switch {
		case err == nil && info.IsDir():
			if err := fs.CopyDir(art.LogsDir, filepath.Join(staging, "logs")); err != nil {
				return r, fmt.Errorf("copy logs: %w", err)
			}
			arts.LogsDir = filepath.Join(dst, "logs")
		case err != nil && !os.IsNotExist(err):
			return r, fmt.Errorf("stat logs: %w", err)
		}
	}

	if *arts != (core.Artifacts{}) {
		archived.Archived = arts
	}

	if err := fs.WriteJSONAtomic(filepath.Join(staging, "record.json"), archived, 0o644); err != nil {
		return r, err
	}
	return archived, fs.SyncDir(staging)
}

// existing compares r with the record already published at dst.
func (a *Archiver) existing(dst string, r core.RunRecord) (Receipt, error) {
	details := recordDetails(r)
	details["record"] = filepath.Join(dst, "record.json")

	prev, err := readRecord(filepath.Join(dst, "record.json"))
	if err != nil {
		return Receipt{}, errors.WrapWithDetails(errors.EArchiveConflict,
			"archive key exists but its record is unreadable", err, details)
	}

	same, err := sameRecord(prev, r)
	if err != nil {
		return Receipt{}, errors.WrapWithDetails(errors.EArchiveFailed, "failed to compare records", err, details)
	}
	if !same {
		return Receipt{}, errors.NewWithDetails(errors.EArchiveConflict,
			fmt.Sprintf("round %d attempt %d is already archived with a different record", r.RoundIndex, r.Attempt),
			details)
	}
	return Receipt{Dir: dst, Record: prev}, errors.NewWithDetails(errors.EAlreadyArchived,
		fmt.Sprintf("round %d attempt %d is already archived", r.RoundIndex, r.Attempt), details)
}

// sameRecord compares records ignoring archiver-owned fields.
func sameRecord(archived, r core.RunRecord) (bool, error) {
	archived = normalize(archived)
	archived.Archived = nil
	r.Archived = nil

	a, err := json.Marshal(archived)
	if err != nil {
		return false, err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}

func normalize(r core.RunRecord) core.RunRecord {
	r = r.Clone()
	if r.SchemaVersion == "" {
		r.SchemaVersion = core.RecordSchemaVersion
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	r.RoundStartedAt = r.RoundStartedAt.UTC()
	return r
}

func readRecord(path string) (core.RunRecord, error) {
	var r core.RunRecord
	if err := fs.ReadJSON(path, &r); err != nil {
		return r, err
	}
	return r, nil
}

func recordDetails(r core.RunRecord) map[string]string {
	return map[string]string{
		"session_id": r.SessionID,
		"round":      strconv.Itoa(r.RoundIndex),
		"attempt":    strconv.Itoa(r.Attempt),
	}
}
