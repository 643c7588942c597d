// Package policy decides whether a continuous-training session should stop.
//
// Decide is a pure function of the session's history and static configuration.
// The wall-clock budget is measured from the recorded timestamps in history,
// never from the current time, so repeated calls always agree.
package policy

import (
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/core"
)

// Decision is a verdict plus the facts it was derived from.
type Decision struct {
	Verdict core.Verdict

	// Rounds is the number of completed rounds considered.
	Rounds int

	// Elapsed is finished_at of the last round minus the start of the first
	// round's first attempt.
	Elapsed time.Duration

	// LatestMetric is the target metric of the most recent SUCCEEDED round.
	// Only meaningful when HasLatest is true.
	LatestMetric float64
	HasLatest    bool
}

// Decide returns CONTINUE, STOP_SUCCESS or STOP_EXHAUSTED for s.
func Decide(s *core.Session) core.Verdict {
	return Evaluate(s).Verdict
}

// Evaluate is Decide with the supporting facts attached.
//
// STOP_SUCCESS wins over STOP_EXHAUSTED when both hold, so a round that meets
// the target on the last budgeted round still reports success.
func Evaluate(s *core.Session) Decision {
	d := Decision{Verdict: core.Continue, Rounds: len(s.History)}
	if len(s.History) == 0 {
		return d
	}

	d.Elapsed = Elapsed(s.History)

	if last, ok := s.LastSucceeded(); ok {
		if v, ok := last.Metric(s.Target.Metric); ok {
			d.LatestMetric, d.HasLatest = v, true
			if v >= s.Target.Threshold {
				d.Verdict = core.StopSuccess
				return d
			}
		}
	}

	if limit, ok := s.Budget.MaxRounds(); ok && d.Rounds >= limit {
		d.Verdict = core.StopExhausted
		return d
	}
	if limit, ok := s.Budget.MaxWallClock(); ok && d.Elapsed >= limit {
		d.Verdict = core.StopExhausted
		return d
	}
	return d
}

// Elapsed is the span from the first round's start to the last round's finish.
// Time spent on retried attempts of the first round counts.
func Elapsed(history []core.RunRecord) time.Duration {
	if len(history) == 0 {
		return 0
	}
	first := history[0].RoundStart()
	last := history[len(history)-1].FinishedAt
	if last.Before(first) {
		return 0
	}
	return last.Sub(first)
}
