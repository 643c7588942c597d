package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/logger"
	"github.com/NielsdaWheelz/ctrain/internal/store"
)

// LoadAttempts returns every archived attempt of a session ordered by
// (round_index, attempt). Unfinished staging directories are ignored.
func (a *Archiver) LoadAttempts(ctx context.Context, sessionID string) ([]core.RunRecord, error) {
	refs, err := store.ListRoundKeys(a.store.RoundsDir(sessionID))
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EStoreCorrupt, "failed to list archived rounds", err,
			map[string]string{"session_id": sessionID})
	}

	records := make([]core.RunRecord, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(ref.Dir, "record.json")
		details := map[string]string{
			"session_id": sessionID,
			"round":      strconv.Itoa(ref.Round),
			"attempt":    strconv.Itoa(ref.Attempt),
			"record":     path,
		}

		r, err := readRecord(path)
		if err != nil {
			return nil, errors.WrapWithDetails(errors.EStoreCorrupt, "archived record is unreadable", err, details)
		}
		if r.SessionID != sessionID || r.RoundIndex != ref.Round || r.Attempt != ref.Attempt {
			return nil, errors.NewWithDetails(errors.EStoreCorrupt,
				fmt.Sprintf("record.json names %s round %d attempt %d", r.SessionID, r.RoundIndex, r.Attempt),
				details)
		}
		if err := r.Validate(); err != nil {
			return nil, errors.WrapWithDetails(errors.EStoreCorrupt, "archived record is invalid", err, details)
		}
		records = append(records, r)
	}
	return records, nil
}

// LoadHistory returns the session history: the final attempt of each round,
// ordered by round_index. A missing round is E_STORE_CORRUPT.
func (a *Archiver) LoadHistory(ctx context.Context, sessionID string) ([]core.RunRecord, error) {
	attempts, err := a.LoadAttempts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history := FinalAttempts(attempts)
	if err := core.CheckHistory(history); err != nil {
		return nil, errors.WrapWithDetails(errors.EStoreCorrupt, "archived history has gaps", err,
			map[string]string{"session_id": sessionID})
	}
	return history, nil
}

// FinalAttempts keeps the highest attempt of each round.
// Input must be ordered by (round_index, attempt). A round interrupted
// between attempts is closed by its last archived attempt; resume does not
// retry it.
func FinalAttempts(attempts []core.RunRecord) []core.RunRecord {
	var out []core.RunRecord
	for _, r := range attempts {
		if n := len(out); n > 0 && out[n-1].RoundIndex == r.RoundIndex {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

// SaveSession persists session metadata and indexes the session.
func (a *Archiver) SaveSession(ctx context.Context, s *core.Session) error {
	if err := a.store.WriteSession(s); err != nil {
		return err
	}
	if a.index != nil {
		if err := a.index.RecordSession(ctx, s); err != nil {
			a.log.Warn("catalog index failed", logger.String("session_id", s.ID), logger.Error(err))
		}
	}
	return nil
}

// LoadSession reads session metadata and its archived history.
func (a *Archiver) LoadSession(ctx context.Context, sessionID string) (*core.Session, error) {
	s, err := a.store.ReadSession(sessionID)
	if err != nil {
		return nil, err
	}
	history, err := a.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, r := range history {
		if err := s.Append(r); err != nil {
			return nil, errors.WrapWithDetails(errors.EStoreCorrupt, "archived history does not fit session", err,
				map[string]string{"session_id": sessionID})
		}
	}
	return s, nil
}
