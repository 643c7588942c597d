package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/NielsdaWheelz/ctrain/internal/config"
	"github.com/NielsdaWheelz/ctrain/internal/logger"
	"github.com/NielsdaWheelz/ctrain/internal/store"
)

// ResumeOpts holds options for the resume command.
type ResumeOpts struct {
	// SessionRef is a session id or unique prefix.
	SessionRef string

	// DataDir overrides CTRAIN_DATA_DIR.
	DataDir string

	// JSON prints the outcome as JSON and suppresses progress lines.
	JSON bool

	// LogOutputs are zap sinks for structured logs. Defaults to stderr.
	LogOutputs []string
}

// Resume reloads a session's archived history and continues the loop at
// max(round_index)+1. Trainer and evaluator come from the config snapshot
// stored when the session started; the session itself (target, budget,
// round policy) comes from session.json.
//
// Resuming a session whose history already satisfies the stopping policy
// runs no rounds and reports the existing verdict.
func Resume(ctx context.Context, opts ResumeOpts, stdout, stderr io.Writer) error {
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return err
	}
	id, err := resolveSession(dataDir, opts.SessionRef)
	if err != nil {
		return err
	}

	st := store.NewStore(dataDir, nil)
	snapshot, err := st.ReadConfigSnapshot(id)
	if err != nil {
		return err
	}
	cfg, err := config.Parse(snapshot, st.SessionDir(id))
	if err != nil {
		return err
	}
	cfg.DataDir = dataDir

	log, err := openLogger(cfg.LogLevel, opts.LogOutputs)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx = logger.WithContext(ctx, log)

	ws, err := openWorkspace(ctx, dataDir)
	if err != nil {
		return err
	}
	defer ws.Close()

	s, err := ws.archiver.LoadSession(ctx, id)
	if err != nil {
		return err
	}

	if !opts.JSON {
		_, _ = fmt.Fprintf(stdout, "session %s: resuming at round %d\n", s.ID, s.NextRound())
	}
	return ws.drive(ctx, cfg, s, opts.JSON, stdout)
}
