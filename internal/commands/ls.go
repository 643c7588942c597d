package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/archive"
	"github.com/NielsdaWheelz/ctrain/internal/catalog"
	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/render"
	"github.com/NielsdaWheelz/ctrain/internal/store"
)

// LSOpts holds options for the ls command.
type LSOpts struct {
	// DataDir overrides CTRAIN_DATA_DIR.
	DataDir string

	// JSON outputs machine-readable JSON.
	JSON bool
}

// LS lists sessions newest first. Rows come from the catalog; sessions the
// catalog does not know (or all of them, when there is no catalog) are read
// from the filesystem archive. This is a read-only command.
func LS(ctx context.Context, opts LSOpts, stdout, stderr io.Writer) error {
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return err
	}
	st := store.NewStore(dataDir, nil)

	entries, err := store.ScanSessions(dataDir)
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to scan sessions", err)
	}

	indexed := catalogRows(ctx, st, stderr)
	rows := make([]render.SessionRow, 0, len(entries))
	for _, e := range entries {
		if row, ok := indexed[e.ID]; ok {
			rows = append(rows, row)
			continue
		}
		rows = append(rows, scanRow(ctx, st, e))
	}

	if opts.JSON {
		if err := render.WriteLSJSON(stdout, rows); err != nil {
			return errors.Wrap(errors.EInternal, "failed to write json output", err)
		}
		return nil
	}
	return render.WriteLSHuman(stdout, rows, time.Now())
}

// catalogRows returns catalog summaries by session id. A missing or broken
// catalog yields nil; ls then falls back to the filesystem.
func catalogRows(ctx context.Context, st *store.Store, stderr io.Writer) map[string]render.SessionRow {
	if _, err := os.Stat(st.CatalogPath()); err != nil {
		return nil
	}
	cat, err := catalog.Open(st.CatalogPath())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "warning: catalog unavailable, scanning sessions: %v\n", err)
		return nil
	}
	defer func() { _ = cat.Close() }()

	sums, err := cat.ListSessions(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "warning: catalog unreadable, scanning sessions: %v\n", err)
		return nil
	}
	rows := make(map[string]render.SessionRow, len(sums))
	for _, sum := range sums {
		created := sum.CreatedAt
		rows[sum.ID] = render.SessionRow{
			ID:         sum.ID,
			CreatedAt:  &created,
			Metric:     sum.Metric,
			Threshold:  sum.Threshold,
			Budget:     sum.Budget,
			Rounds:     sum.Rounds,
			Attempts:   sum.Attempts,
			LastStatus: string(sum.LastStatus),
			Best:       sum.Best,
			Verdict:    string(sum.Verdict),
		}
	}
	return rows
}

// scanRow builds a row from a session directory and its archived records.
func scanRow(ctx context.Context, st *store.Store, e store.SessionEntry) render.SessionRow {
	row := render.SessionRow{ID: e.ID, Broken: e.Broken, Attempts: e.Attempts}
	if e.Broken {
		return row
	}
	created := e.File.CreatedAt
	row.CreatedAt = &created
	row.Metric = e.File.Target.Metric
	row.Threshold = e.File.Target.Threshold
	row.Budget = e.File.Budget.String()

	attempts, err := archive.New(st).LoadAttempts(ctx, e.ID)
	if err != nil {
		return row
	}
	seen := make(map[int]bool)
	for _, r := range attempts {
		seen[r.RoundIndex] = true
		row.LastStatus = string(r.Status)
	}
	row.Rounds = len(seen)
	row.Attempts = len(attempts)
	if best, ok := core.BestRecord(attempts, row.Metric); ok {
		v, _ := best.Metric(row.Metric)
		row.Best = &v
	}
	return row
}
