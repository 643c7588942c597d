// Package commands implements ctrain CLI commands.
package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/NielsdaWheelz/ctrain/internal/archive"
	"github.com/NielsdaWheelz/ctrain/internal/catalog"
	"github.com/NielsdaWheelz/ctrain/internal/config"
	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/ids"
	"github.com/NielsdaWheelz/ctrain/internal/logger"
	"github.com/NielsdaWheelz/ctrain/internal/store"
)

// ExitExhausted is the process exit code for STOP_EXHAUSTED.
const ExitExhausted = 3

// resolveDataDir picks the data directory: the flag, then CTRAIN_DATA_DIR,
// then ./.ctrain.
func resolveDataDir(flag string) (string, error) {
	dir := flag
	if dir == "" {
		dir = os.Getenv(config.EnvDataDir)
	}
	if dir == "" {
		dir = config.DefaultDataDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(errors.EInternal, "failed to resolve data directory", err)
	}
	return abs, nil
}

// resolveSession maps an exact id or unique prefix to a session id.
func resolveSession(dataDir, ref string) (string, error) {
	if ref == "" {
		return "", errors.New(errors.EUsage, "session id is required")
	}
	known, err := store.SessionIDs(dataDir)
	if err != nil {
		return "", errors.Wrap(errors.EInternal, "failed to scan sessions", err)
	}
	return ids.Resolve(ref, known)
}

func openLogger(level string, outputs []string) (logger.Logger, error) {
	log, err := logger.New(logger.Config{Level: level, OutputPaths: outputs})
	if err != nil {
		return nil, errors.Wrap(errors.EInvalidConfig, "failed to create logger", err)
	}
	return log, nil
}

// workspace is the data directory opened for a run or resume.
type workspace struct {
	store    *store.Store
	archiver *archive.Archiver
	catalog  *catalog.Catalog // nil when the catalog could not be opened
	log      logger.Logger
}

// openWorkspace creates dataDir if needed and opens the catalog. A catalog
// failure is logged; the filesystem archive stays authoritative without it.
func openWorkspace(ctx context.Context, dataDir string) (*workspace, error) {
	log := logger.FromContext(ctx)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.WrapWithDetails(errors.EArchiveFailed, "failed to create data directory", err,
			map[string]string{"path": dataDir})
	}

	st := store.NewStore(dataDir, nil)
	ws := &workspace{store: st, log: log}

	opts := []archive.Option{archive.WithLogger(log)}
	cat, err := catalog.Open(st.CatalogPath())
	if err != nil {
		log.Warn("catalog unavailable", logger.String("path", st.CatalogPath()), logger.Error(err))
	} else {
		ws.catalog = cat
		opts = append(opts, archive.WithIndexer(cat))
	}
	ws.archiver = archive.New(st, opts...)
	return ws, nil
}

func (w *workspace) recordVerdict(ctx context.Context, id string, v core.Verdict) {
	if w.catalog == nil {
		return
	}
	if err := w.catalog.RecordVerdict(context.WithoutCancel(ctx), id, v, w.store.Now()); err != nil {
		w.log.Warn("catalog verdict update failed", logger.String("session_id", id), logger.Error(err))
	}
}

func (w *workspace) Close() {
	if w.catalog != nil {
		_ = w.catalog.Close()
	}
}

// SessionIDs lists known session ids for shell completion. Errors yield nil.
func SessionIDs(dataDirFlag string) []string {
	dataDir, err := resolveDataDir(dataDirFlag)
	if err != nil {
		return nil
	}
	known, _ := store.SessionIDs(dataDir)
	return known
}
