package controller

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/archive"
	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// attemptResult is one finished attempt, ready to archive.
type attemptResult struct {
	record    core.RunRecord
	artifacts archive.Artifacts

	// For failed attempts: the failure kind (core.Reason*), its stable code
	// and the collaborator error.
	kind  string
	code  errors.Code
	cause error
}

// attempt runs train then evaluate once. It never returns an error: every
// failure becomes a FAILED record. roundStart is the first attempt's start,
// zero when this is the first attempt.
func (c *Controller) attempt(ctx context.Context, s *core.Session, round, attempt int, start string, roundStart time.Time) attemptResult {
	rec := core.RunRecord{
		SchemaVersion:      core.RecordSchemaVersion,
		SessionID:          s.ID,
		RoundIndex:         round,
		Attempt:            attempt,
		StartedAt:          c.now().UTC(),
		StartingCheckpoint: start,
	}
	rec.RoundStartedAt = rec.StartedAt
	if !roundStart.IsZero() {
		rec.RoundStartedAt = roundStart
	}

	actx, cancel := ctx, context.CancelFunc(func() {})
	if s.Policy.Timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, s.Policy.Timeout)
	}
	defer cancel()

	outDir, err := c.prepareWorkDir(s.ID, round, attempt)
	if err != nil {
		return c.failed(ctx, actx, s, rec, archive.Artifacts{}, core.ReasonTrain,
			errors.Wrap(errors.ETrainFailed, "failed to create work directory", err))
	}

	trained, err := c.trainer.Train(actx, core.TrainRequest{
		SessionID:          s.ID,
		Round:              round,
		Attempt:            attempt,
		Config:             s.Config,
		StartingCheckpoint: start,
		OutputDir:          outDir,
	})
	art := archive.Artifacts{LogsDir: trained.LogsDir}
	if err == nil && trained.Checkpoint == "" {
		err = errors.New(errors.ETrainFailed, "trainer reported success without a checkpoint")
	}
	if err != nil {
		return c.failed(ctx, actx, s, rec, art, core.ReasonTrain, err)
	}
	rec.CheckpointRef = trained.Checkpoint

	scores, err := c.evaluator.Evaluate(actx, core.EvalRequest{
		SessionID:  s.ID,
		Round:      round,
		Attempt:    attempt,
		Checkpoint: trained.Checkpoint,
		Dataset:    s.Config.Dataset,
		OutputDir:  outDir,
	})
	if err == nil {
		err = scores.Check(s.Target.Metric)
	}
	if err != nil {
		return c.failed(ctx, actx, s, rec, art, core.ReasonEval, err)
	}

	rec.Metrics = scores.Clone()
	rec.Status = core.StatusSucceeded
	rec.FinishedAt = c.now().UTC()
	art.Checkpoint = trained.Checkpoint
	return attemptResult{record: rec, artifacts: art}
}

// failed classifies err and completes rec as FAILED.
//
// Cancellation of the session context wins over everything else; an expired
// attempt deadline is a timeout; anything else is a failure of stage kind.
func (c *Controller) failed(ctx, actx context.Context, s *core.Session, rec core.RunRecord, art archive.Artifacts, kind string, err error) attemptResult {
	code := errors.GetCode(err)
	var reason string
	switch {
	case ctx.Err() != nil:
		kind, code = core.ReasonCancelled, errors.ECancelled
		reason = fmt.Sprintf("%s: %s interrupted", core.ReasonCancelled, stage(rec))
	case stderrors.Is(actx.Err(), context.DeadlineExceeded) || code == errors.ERoundTimeout:
		kind, code = core.ReasonTimeout, errors.ERoundTimeout
		reason = fmt.Sprintf("%s: %s exceeded %s", core.ReasonTimeout, stage(rec), s.Policy.Timeout)
	default:
		if code == "" {
			code = errors.ETrainFailed
			if kind == core.ReasonEval {
				code = errors.EEvalFailed
			}
		}
		reason = kind + ": " + message(err)
	}

	rec.Status = core.StatusFailed
	rec.FailureReason = reason
	rec.FinishedAt = c.now().UTC()
	if rec.FinishedAt.Before(rec.StartedAt) {
		rec.FinishedAt = rec.StartedAt
	}
	return attemptResult{record: rec, artifacts: art, kind: kind, code: code, cause: err}
}

// stage names the step an attempt was in, judged by whether training finished.
func stage(rec core.RunRecord) string {
	if rec.CheckpointRef == "" {
		return "training"
	}
	return "evaluation"
}

// message is the human part of err without the stable code prefix.
func message(err error) string {
	ce, ok := errors.AsCtrainError(err)
	if !ok {
		return err.Error()
	}
	if ce.Cause != nil {
		return ce.Msg + ": " + ce.Cause.Error()
	}
	return ce.Msg
}
