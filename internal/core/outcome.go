package core

// Verdict is the stopping decision for a session.
type Verdict string

const (
	Continue      Verdict = "CONTINUE"
	StopSuccess   Verdict = "STOP_SUCCESS"
	StopExhausted Verdict = "STOP_EXHAUSTED"
	Aborted       Verdict = "ABORTED"
)

// Terminal reports whether v ends the session.
func (v Verdict) Terminal() bool {
	return v != Continue
}

// Outcome is the final result of running a session.
type Outcome struct {
	Verdict Verdict

	// Best is the best record so far, even on ABORTED. Nil if no round succeeded.
	Best *RunRecord

	// LastFailed is the failed record that caused an ABORTED verdict.
	LastFailed *RunRecord

	// History is the session's final history.
	History []RunRecord

	// Err is the cause of an ABORTED verdict.
	Err error
}

// NewOutcome builds an outcome for session s with the best record derived from history.
func NewOutcome(v Verdict, s *Session) Outcome {
	out := Outcome{Verdict: v, History: s.HistoryCopy()}
	if best, ok := s.Best(); ok {
		out.Best = &best
	}
	return out
}

// TrainRequest is the input to one training attempt.
type TrainRequest struct {
	SessionID          string
	Round              int
	Attempt            int
	Config             TrainingConfig
	StartingCheckpoint string

	// OutputDir is a scratch directory owned by this attempt.
	OutputDir string
}

// TrainResult is what a trainer produced.
type TrainResult struct {
	// Checkpoint is the produced checkpoint path.
	Checkpoint string

	// LogsDir holds training logs to archive alongside the checkpoint. Optional,
	// and may be set together with an error so failed attempts keep their logs.
	LogsDir string
}

// EvalRequest is the input to one evaluation.
type EvalRequest struct {
	SessionID  string
	Round      int
	Attempt    int
	Checkpoint string
	Dataset    string

	// OutputDir is the same scratch directory the trainer used.
	OutputDir string
}
