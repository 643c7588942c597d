package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/NielsdaWheelz/ctrain/internal/config"
	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/ids"
	"github.com/NielsdaWheelz/ctrain/internal/logger"
)

// RunOpts holds options for the run command.
type RunOpts struct {
	// ConfigPath is the session file. Defaults to ctrain.yaml.
	ConfigPath string

	// DataDir overrides the configured data directory.
	DataDir string

	// JSON prints the outcome as JSON and suppresses progress lines.
	JSON bool

	// LogOutputs are zap sinks for structured logs. Defaults to stderr.
	LogOutputs []string
}

// Run starts a new session from a config file and drives it to a verdict.
//
// The session is persisted before the first round: session.json, the trainer
// params and a snapshot of the resolved config, so `ctrain resume` can pick it
// up after a crash or cancellation.
func Run(ctx context.Context, opts RunOpts, stdout, stderr io.Writer) error {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultFileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if opts.DataDir != "" {
		abs, err := filepath.Abs(opts.DataDir)
		if err != nil {
			return errors.Wrap(errors.EInternal, "failed to resolve data directory", err)
		}
		cfg.DataDir, cfg.File.DataDir = abs, abs
	}

	log, err := openLogger(cfg.LogLevel, opts.LogOutputs)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx = logger.WithContext(ctx, log)

	ws, err := openWorkspace(ctx, cfg.DataDir)
	if err != nil {
		return err
	}
	defer ws.Close()

	s, err := core.NewSession(ids.NewSessionID(), ws.store.Now(), cfg.Training, cfg.Target, cfg.Budget, cfg.Round)
	if err != nil {
		return err
	}

	snapshot, err := cfg.Snapshot()
	if err != nil {
		return err
	}
	if err := ws.archiver.SaveSession(ctx, s); err != nil {
		return err
	}
	if err := ws.store.WriteConfigSnapshot(s.ID, snapshot); err != nil {
		return err
	}

	if !opts.JSON {
		_, _ = fmt.Fprintf(stdout, "session %s: target %s >= %s, budget %s\n",
			s.ID, s.Target.Metric, fmt.Sprint(s.Target.Threshold), s.Budget.String())
	}
	return ws.drive(ctx, cfg, s, opts.JSON, stdout)
}
