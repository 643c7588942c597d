package render

import (
	"fmt"
	"io"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/core"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// WriteRoundLine writes one progress line for an archived attempt.
func WriteRoundLine(w io.Writer, r core.RunRecord, metric string) error {
	var detail string
	if r.Succeeded() {
		v, _ := r.Metric(metric)
		detail = fmt.Sprintf("%s=%s", metric, FormatScore(v))
	} else {
		detail = Truncate(r.FailureReason, ReasonMaxLen)
	}
	_, err := fmt.Fprintf(w, "round %d attempt %d: %s %s (%s)\n",
		r.RoundIndex, r.Attempt, r.Status, detail, r.Duration().Round(time.Second))
	return err
}

// OutcomeJSON is the machine-readable form of a session outcome.
type OutcomeJSON struct {
	SessionID  string           `json:"session_id"`
	Verdict    core.Verdict     `json:"verdict"`
	Rounds     int              `json:"rounds"`
	Best       *core.RunRecord  `json:"best,omitempty"`
	LastFailed *core.RunRecord  `json:"last_failed,omitempty"`
	ErrorCode  errors.Code      `json:"error_code,omitempty"`
	Error      string           `json:"error,omitempty"`
	History    []core.RunRecord `json:"history"`
}

// WriteOutcome writes the final summary of a run or resume.
func WriteOutcome(w io.Writer, sessionID string, out core.Outcome, target core.Target) error {
	_, _ = fmt.Fprintf(w, "session: %s\n", sessionID)
	_, _ = fmt.Fprintf(w, "verdict: %s\n", out.Verdict)
	_, _ = fmt.Fprintf(w, "rounds: %d\n", len(out.History))
	if out.Best != nil {
		v, _ := out.Best.Metric(target.Metric)
		_, _ = fmt.Fprintf(w, "best: round %d %s=%s\n", out.Best.RoundIndex, target.Metric, FormatScore(v))
		_, _ = fmt.Fprintf(w, "best_checkpoint: %s\n", out.Best.ResumeCheckpoint())
	} else {
		_, _ = fmt.Fprintf(w, "best: %s\n", None)
	}
	if out.LastFailed != nil {
		_, _ = fmt.Fprintf(w, "last_failed: round %d attempt %d: %s\n",
			out.LastFailed.RoundIndex, out.LastFailed.Attempt, out.LastFailed.FailureReason)
	}
	return nil
}

// WriteOutcomeJSON writes the outcome as a JSON object.
func WriteOutcomeJSON(w io.Writer, sessionID string, out core.Outcome) error {
	o := OutcomeJSON{
		SessionID:  sessionID,
		Verdict:    out.Verdict,
		Rounds:     len(out.History),
		Best:       out.Best,
		LastFailed: out.LastFailed,
		History:    out.History,
	}
	if o.History == nil {
		o.History = []core.RunRecord{}
	}
	if out.Err != nil {
		o.ErrorCode = errors.GetCode(out.Err)
		o.Error = out.Err.Error()
	}
	return writeJSON(w, o)
}
