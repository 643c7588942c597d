package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/NielsdaWheelz/ctrain/internal/archive"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/policy"
	"github.com/NielsdaWheelz/ctrain/internal/render"
	"github.com/NielsdaWheelz/ctrain/internal/store"
)

// ShowOpts holds options for the show command.
type ShowOpts struct {
	// SessionRef is a session id or unique prefix.
	SessionRef string

	// DataDir overrides CTRAIN_DATA_DIR.
	DataDir string

	// JSON outputs machine-readable JSON.
	JSON bool

	// Path outputs only resolved filesystem paths.
	Path bool

	// Attempts lists every archived attempt instead of the final attempt per round.
	Attempts bool
}

// Show renders one session's archived history, best record and verdict.
// This is a read-only command.
func Show(ctx context.Context, opts ShowOpts, stdout, stderr io.Writer) error {
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return err
	}
	id, err := resolveSession(dataDir, opts.SessionRef)
	if err != nil {
		return err
	}
	st := store.NewStore(dataDir, nil)

	if opts.Path {
		return render.WriteShowPaths(stdout, render.ShowPathsData{
			SessionDir:  st.SessionDir(id),
			SessionPath: st.SessionPath(id),
			ParamsPath:  st.ParamsPath(id),
			ConfigPath:  st.ConfigSnapshotPath(id),
			EventsPath:  st.EventsPath(id),
			RoundsDir:   st.RoundsDir(id),
			WorkDir:     filepath.Join(st.SessionDir(id), "work"),
		})
	}

	arch := archive.New(st)
	s, err := arch.LoadSession(ctx, id)
	if err != nil {
		return err
	}
	records := s.History
	if opts.Attempts {
		if records, err = arch.LoadAttempts(ctx, id); err != nil {
			return err
		}
	}

	d := policy.Evaluate(s)
	data := render.ShowData{
		ID:                s.ID,
		CreatedAt:         s.CreatedAt,
		Dataset:           s.Config.Dataset,
		InitialCheckpoint: s.Config.InitialCheckpoint,
		Target:            s.Target,
		Budget:            s.Budget.String(),
		MaxAttempts:       s.Policy.MaxAttempts,
		RoundTimeout:      s.Policy.Timeout,
		Verdict:           d.Verdict,
		Elapsed:           d.Elapsed,
		NextRound:         s.NextRound(),
		Rounds:            render.NewRoundRows(records, s.Target.Metric, fileSize),
	}
	if best, ok := s.Best(); ok {
		v, _ := best.Metric(s.Target.Metric)
		data.BestRound = best.RoundIndex
		data.Best = &v
	}

	if opts.JSON {
		if err := render.WriteShowJSON(stdout, data); err != nil {
			return errors.Wrap(errors.EInternal, "failed to write json output", err)
		}
		return nil
	}
	return render.WriteShowHuman(stdout, data)
}

func fileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}
