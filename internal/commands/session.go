package commands

import (
	"context"
	"io"

	"github.com/NielsdaWheelz/ctrain/internal/config"
	"github.com/NielsdaWheelz/ctrain/internal/controller"
	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/events"
	"github.com/NielsdaWheelz/ctrain/internal/logger"
	"github.com/NielsdaWheelz/ctrain/internal/metrics"
	"github.com/NielsdaWheelz/ctrain/internal/render"
	"github.com/NielsdaWheelz/ctrain/internal/training"
)

// newTrainer builds the trainer described by cfg.
func newTrainer(cfg config.TrainerConfig) controller.Trainer {
	return &training.ScriptTrainer{
		Command:        cfg.Command,
		CheckpointPath: cfg.CheckpointPath,
		Dir:            cfg.Dir,
		Grace:          cfg.Grace,
	}
}

// newEvaluator builds the evaluator described by cfg.
func newEvaluator(cfg config.EvaluatorConfig) (controller.Evaluator, error) {
	switch cfg.Kind {
	case config.EvaluatorScript:
		return &training.ScriptEvaluator{
			Command:     cfg.Command,
			MetricsFile: cfg.MetricsFile,
			MetricPaths: cfg.MetricPaths,
			Dir:         cfg.Dir,
			Grace:       cfg.Grace,
		}, nil
	case config.EvaluatorResultsCSV:
		return &training.ResultsCSVEvaluator{Columns: cfg.Columns}, nil
	}
	return nil, errors.NewWithDetails(errors.EInvalidConfig, "unknown evaluator kind: "+cfg.Kind,
		map[string]string{"field": "evaluator.kind"})
}

// drive runs s to a terminal verdict and renders the outcome to stdout.
// Per-round progress lines are printed unless asJSON is set.
func (w *workspace) drive(ctx context.Context, cfg config.Config, s *core.Session, asJSON bool, stdout io.Writer) error {
	evaluator, err := newEvaluator(cfg.Evaluator)
	if err != nil {
		return err
	}

	m := metrics.New()
	journal := events.NewJournal(w.store.EventsPath(s.ID), s.ID, w.store.Now)
	c := controller.New(newTrainer(cfg.Trainer), evaluator, w.archiver,
		controller.WithLogger(w.log),
		controller.WithJournal(journal),
		controller.WithMetrics(m),
		controller.WithWorkDir(w.store.WorkDir),
		controller.WithOnRound(func(r core.RunRecord) {
			if !asJSON {
				_ = render.WriteRoundLine(stdout, r, s.Target.Metric)
			}
		}),
	)

	out, runErr := c.Run(ctx, s)
	w.recordVerdict(ctx, s.ID, out.Verdict)

	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			w.log.Warn("failed to write metrics textfile",
				logger.String("path", cfg.MetricsTextfile), logger.Error(err))
		}
	}

	if asJSON {
		if err := render.WriteOutcomeJSON(stdout, s.ID, out); err != nil {
			return errors.Wrap(errors.EInternal, "failed to write outcome", err)
		}
	} else {
		_ = render.WriteOutcome(stdout, s.ID, out, s.Target)
	}
	return verdictError(out, runErr)
}

// verdictError maps an outcome to the command's error: nil for STOP_SUCCESS,
// a silent exit code for STOP_EXHAUSTED and the abort cause otherwise.
func verdictError(out core.Outcome, runErr error) error {
	switch out.Verdict {
	case core.StopSuccess:
		return nil
	case core.StopExhausted:
		return errors.Silent(ExitExhausted)
	}
	if runErr == nil {
		runErr = errors.New(errors.EInternal, "session aborted without a cause")
	}
	return runErr
}
