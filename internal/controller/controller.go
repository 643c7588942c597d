// Package controller runs the continuous-training loop: train, evaluate,
// archive, decide, repeat until the stopping policy returns a terminal verdict.
//
// Every attempt, failed or not, is archived before the next decision, so a
// crash loses at most the in-flight attempt. One goroutine of control per
// session; collaborators are called synchronously.
package controller

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/archive"
	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/events"
	"github.com/NielsdaWheelz/ctrain/internal/logger"
	"github.com/NielsdaWheelz/ctrain/internal/metrics"
	"github.com/NielsdaWheelz/ctrain/internal/policy"
)

// Trainer produces a checkpoint for one attempt.
type Trainer interface {
	Train(ctx context.Context, req core.TrainRequest) (core.TrainResult, error)
}

// Evaluator scores a checkpoint.
type Evaluator interface {
	Evaluate(ctx context.Context, req core.EvalRequest) (core.Metrics, error)
}

// Archiver persists attempt records write-once.
type Archiver interface {
	Save(ctx context.Context, r core.RunRecord, art archive.Artifacts) (archive.Receipt, error)
}

// Journal records session events. Append failures are logged and ignored.
type Journal interface {
	Append(name string, data map[string]any) error
}

// Controller sequences rounds for a session.
type Controller struct {
	trainer   Trainer
	evaluator Evaluator
	archiver  Archiver

	log     logger.Logger
	journal Journal
	metrics *metrics.Metrics
	now     func() time.Time
	workDir func(sessionID string, round, attempt int) string
	onRound func(core.RunRecord)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithJournal appends session events to j.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithMetrics records controller metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithWorkDir sets the scratch directory for each attempt. The directory is
// created before the trainer runs.
func WithWorkDir(fn func(sessionID string, round, attempt int) string) Option {
	return func(c *Controller) { c.workDir = fn }
}

// WithOnRound calls fn after each attempt is archived.
func WithOnRound(fn func(core.RunRecord)) Option {
	return func(c *Controller) { c.onRound = fn }
}

// New creates a controller over the given collaborators.
func New(trainer Trainer, evaluator Evaluator, archiver Archiver, opts ...Option) *Controller {
	c := &Controller{
		trainer:   trainer,
		evaluator: evaluator,
		archiver:  archiver,
		log:       logger.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drives s until the stopping policy returns a terminal verdict or the
// session aborts. A non-empty history resumes at max(round_index)+1 from the
// last successful checkpoint. s.History is extended in place.
//
// The returned error is non-nil exactly when the verdict is ABORTED, and is
// also available as Outcome.Err:
//   - E_INVALID_CONFIG: the session failed validation; no round ran
//   - E_ROUND_ABORTED: a round failed on every attempt
//   - E_CANCELLED: ctx was cancelled
//   - E_ARCHIVE_FAILED / E_ARCHIVE_CONFLICT: the archive could not be written
func (c *Controller) Run(ctx context.Context, s *core.Session) (core.Outcome, error) {
	if s == nil {
		err := errors.New(errors.EInvalidConfig, "session is nil")
		return core.Outcome{Verdict: core.Aborted, Err: err}, err
	}
	if err := s.Validate(); err != nil {
		out := core.NewOutcome(core.Aborted, s)
		out.Err = err
		return out, err
	}

	log := c.log.With(logger.String("session_id", s.ID))
	resuming := len(s.History) > 0

	startEvent := events.SessionStart
	if resuming {
		startEvent = events.SessionResume
	}
	c.event(log, startEvent, events.SessionStartData(s.NextRound(), s.StartingCheckpoint(), s.Budget.String()))
	log.Info("session started",
		logger.Bool("resume", resuming),
		logger.Int("next_round", s.NextRound()),
		logger.String("target_metric", s.Target.Metric),
		logger.Float64("threshold", s.Target.Threshold),
		logger.String("budget", s.Budget.String()),
	)

	if resuming {
		if d := policy.Evaluate(s); d.Verdict.Terminal() {
			log.Info("session already finished", logger.String("verdict", string(d.Verdict)))
			return c.finish(log, s, d.Verdict, nil, nil)
		}
	}

	for {
		round := s.NextRound()
		if err := ctx.Err(); err != nil {
			return c.finish(log, s, core.Aborted, nil,
				errors.WrapWithDetails(errors.ECancelled, "session cancelled between rounds", err,
					map[string]string{"session_id": s.ID, "round": fmt.Sprint(round)}))
		}

		rec, lastFailed, err := c.runRound(ctx, log, s, round)
		if err != nil {
			// An archived final attempt is part of history even when the
			// round aborts, so the outcome matches a reload of the archive.
			if rec.RoundIndex == round {
				if appendErr := s.Append(rec); appendErr != nil {
					log.Error("failed to extend history", logger.Error(appendErr))
				}
			}
			return c.finish(log, s, core.Aborted, lastFailed, err)
		}
		if err := s.Append(rec); err != nil {
			return c.finish(log, s, core.Aborted, nil, errors.Wrap(errors.EInternal, "failed to extend history", err))
		}

		d := policy.Evaluate(s)
		c.observeProgress(s, d)
		c.event(log, events.Decision, events.DecisionData(round, string(d.Verdict), d.Elapsed))
		log.Info("stopping policy decided",
			logger.Int("round", round),
			logger.String("verdict", string(d.Verdict)),
			logger.Duration("elapsed", d.Elapsed),
		)
		if d.Verdict.Terminal() {
			return c.finish(log, s, d.Verdict, nil, nil)
		}

		if err := sleep(ctx, s.Policy.Cooldown); err != nil {
			return c.finish(log, s, core.Aborted, nil,
				errors.WrapWithDetails(errors.ECancelled, "session cancelled during cooldown", err,
					map[string]string{"session_id": s.ID, "round": fmt.Sprint(round + 1)}))
		}
	}
}

// runRound runs attempts of round until one succeeds, the attempt budget is
// spent, ctx is cancelled, or archiving fails. It returns the record to
// append to history. On abort it also returns the last failed record and the
// cause; the record to append is then the archived final attempt, or zero
// when archiving itself failed.
func (c *Controller) runRound(ctx context.Context, log logger.Logger, s *core.Session, round int) (core.RunRecord, *core.RunRecord, error) {
	start := s.StartingCheckpoint()
	var roundStart time.Time
	if c.metrics != nil {
		c.metrics.CurrentRound.Set(float64(round))
	}

	for attempt := 1; ; attempt++ {
		c.event(log, events.RoundStart, events.RoundStartData(round, attempt, start))
		log.Info("attempt started", logger.Round(round, attempt), logger.String("starting_checkpoint", start))

		res := c.attempt(ctx, s, round, attempt, start, roundStart)
		if attempt == 1 {
			roundStart = res.record.RoundStartedAt
		}

		archived, err := c.save(ctx, log, res)
		if err != nil {
			var failed *core.RunRecord
			if !res.record.Succeeded() {
				r := res.record
				failed = &r
			}
			return core.RunRecord{}, failed, err
		}
		if c.onRound != nil {
			c.onRound(archived.Clone())
		}
		if archived.Succeeded() {
			return archived, nil, nil
		}

		cancelled := res.code == errors.ECancelled
		retry := !cancelled && attempt < s.Policy.MaxAttempts
		c.observeFailure(res.kind, retry)
		c.event(log, events.AttemptFailed,
			events.AttemptFailedData(round, attempt, string(res.code), archived.FailureReason, retry))
		log.Warn("attempt failed",
			logger.Round(round, attempt),
			logger.String("error_code", string(res.code)),
			logger.String("reason", archived.FailureReason),
			logger.Bool("will_retry", retry),
		)

		details := map[string]string{
			"session_id": s.ID,
			"round":      fmt.Sprint(round),
			"attempt":    fmt.Sprint(attempt),
		}
		switch {
		case cancelled:
			return archived, &archived, errors.WrapWithDetails(errors.ECancelled,
				fmt.Sprintf("round %d cancelled", round), res.cause, details)
		case !retry:
			return archived, &archived, errors.WrapWithDetails(errors.ERoundAborted,
				fmt.Sprintf("round %d failed on all %d attempts", round, attempt), res.cause, details)
		}
	}
}

// save archives an attempt with a context detached from cancellation, so a
// cancelled round still leaves its FAILED record behind. An identical record
// already in the archive counts as saved.
func (c *Controller) save(ctx context.Context, log logger.Logger, res attemptResult) (core.RunRecord, error) {
	r := res.record
	rcpt, err := c.archiver.Save(context.WithoutCancel(ctx), r, res.artifacts)
	if err != nil {
		if errors.GetCode(err) == errors.EAlreadyArchived {
			log.Info("attempt already archived", logger.Round(r.RoundIndex, r.Attempt))
			return rcpt.Record, nil
		}
		if c.metrics != nil {
			c.metrics.ArchiveErrorsTotal.Inc()
		}
		log.Error("archive failed", logger.Round(r.RoundIndex, r.Attempt), logger.Error(err))
		return core.RunRecord{}, err
	}

	if c.metrics != nil {
		c.metrics.ObserveAttempt(string(rcpt.Record.Status), rcpt.Record.Duration())
	}
	c.event(log, events.RoundArchived, events.RoundArchivedData(
		r.RoundIndex, r.Attempt, string(rcpt.Record.Status), rcpt.Dir, rcpt.Record.Metrics))
	return rcpt.Record, nil
}

func (c *Controller) finish(log logger.Logger, s *core.Session, v core.Verdict, lastFailed *core.RunRecord, cause error) (core.Outcome, error) {
	out := core.NewOutcome(v, s)
	out.LastFailed = lastFailed
	out.Err = cause

	bestRound := 0
	if out.Best != nil {
		bestRound = out.Best.RoundIndex
	}
	if c.metrics != nil {
		c.metrics.SessionsTotal.WithLabelValues(string(v)).Inc()
	}
	c.event(log, events.SessionEnd,
		events.SessionEndData(string(v), len(out.History), bestRound, string(errors.GetCode(cause))))

	fields := []logger.Field{
		logger.String("verdict", string(v)),
		logger.Int("rounds", len(out.History)),
		logger.Int("best_round", bestRound),
	}
	if cause != nil {
		log.Error("session aborted", append(fields, logger.Error(cause))...)
		return out, cause
	}
	log.Info("session finished", fields...)
	return out, nil
}

func (c *Controller) observeProgress(s *core.Session, d policy.Decision) {
	if c.metrics == nil {
		return
	}
	if d.HasLatest {
		c.metrics.LatestMetric.Set(d.LatestMetric)
	}
	if best, ok := s.Best(); ok {
		v, _ := best.Metric(s.Target.Metric)
		c.metrics.BestMetric.Set(v)
	}
}

func (c *Controller) observeFailure(kind string, retry bool) {
	if c.metrics != nil {
		c.metrics.ObserveFailure(kind, retry)
	}
}

func (c *Controller) event(log logger.Logger, name string, data map[string]any) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Append(name, data); err != nil {
		log.Warn("failed to append event", logger.String("event", name), logger.Error(err))
	}
}

func (c *Controller) prepareWorkDir(sessionID string, round, attempt int) (string, error) {
	if c.workDir == nil {
		return "", nil
	}
	dir := c.workDir(sessionID, round, attempt)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dir, err
	}
	return dir, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
