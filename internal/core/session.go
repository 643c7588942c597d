package core

import (
	"fmt"
	"math"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// DefaultMaxAttempts is one initial attempt plus one retry.
const DefaultMaxAttempts = 2

// Target defines success: the most recent successful round reaching Threshold on Metric.
type Target struct {
	Metric    string  `json:"metric"`
	Threshold float64 `json:"threshold"`
}

// Validate rejects an empty metric name or a threshold outside (0, 1].
func (t Target) Validate() error {
	if t.Metric == "" {
		return errors.New(errors.EInvalidConfig, "target.metric is required")
	}
	if math.IsNaN(t.Threshold) || t.Threshold <= 0 || t.Threshold > 1 {
		return errors.NewWithDetails(errors.EInvalidConfig,
			fmt.Sprintf("target.threshold must be in (0, 1], got %v", t.Threshold),
			map[string]string{"metric": t.Metric})
	}
	return nil
}

// RoundPolicy governs a single round's failure handling.
type RoundPolicy struct {
	// Timeout bounds each attempt. Zero means no per-attempt timeout.
	Timeout time.Duration

	// MaxAttempts is the number of tries a round gets before the session aborts.
	MaxAttempts int

	// Cooldown is the pause between a CONTINUE decision and the next round.
	Cooldown time.Duration
}

// DefaultRoundPolicy returns one retry, no timeout, no cooldown.
func DefaultRoundPolicy() RoundPolicy {
	return RoundPolicy{MaxAttempts: DefaultMaxAttempts}
}

// Validate rejects negative durations and fewer than one attempt.
func (p RoundPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return errors.New(errors.EInvalidConfig, fmt.Sprintf("round.max_attempts must be >= 1, got %d", p.MaxAttempts))
	case p.Timeout < 0:
		return errors.New(errors.EInvalidConfig, "round.timeout must not be negative")
	case p.Cooldown < 0:
		return errors.New(errors.EInvalidConfig, "round.cooldown must not be negative")
	}
	return nil
}

// TrainingConfig is the immutable configuration shared by every round of a session.
// Rounds differ only in their starting checkpoint.
type TrainingConfig struct {
	// Params are hyperparameters handed to the trainer as a JSON file.
	Params map[string]any `json:"params,omitempty"`

	// Dataset is the validation dataset reference passed to the evaluator
	// (and to the trainer, which needs the same dataset description).
	Dataset string `json:"dataset"`

	// InitialCheckpoint is used when no round has succeeded yet ("" = cold start).
	InitialCheckpoint string `json:"initial_checkpoint,omitempty"`

	// ParamsPath is where Params were persisted for the trainer. Set by the store.
	ParamsPath string `json:"params_path,omitempty"`
}

// Session is one continuous-training invocation.
// History is append-only and ordered by RoundIndex with no gaps.
type Session struct {
	ID        string
	CreatedAt time.Time
	Config    TrainingConfig
	Target    Target
	Budget    Budget
	Policy    RoundPolicy
	History   []RunRecord
}

// NewSession validates and assembles a session with empty history.
func NewSession(id string, createdAt time.Time, cfg TrainingConfig, target Target, budget Budget, policy RoundPolicy) (*Session, error) {
	s := &Session{
		ID:        id,
		CreatedAt: createdAt.UTC(),
		Config:    cfg,
		Target:    target,
		Budget:    budget,
		Policy:    policy,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks session-level configuration and history ordering.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New(errors.EInvalidConfig, "session id is required")
	}
	if err := s.Target.Validate(); err != nil {
		return err
	}
	if !s.Budget.Valid() {
		return errors.New(errors.EInvalidConfig, "session budget is not set")
	}
	if err := s.Policy.Validate(); err != nil {
		return err
	}
	if s.Config.Dataset == "" {
		return errors.New(errors.EInvalidConfig, "dataset is required")
	}
	return CheckHistory(s.History)
}

// CheckHistory verifies records are valid and numbered 1..n without gaps or duplicates.
func CheckHistory(history []RunRecord) error {
	for i, r := range history {
		if err := r.Validate(); err != nil {
			return errors.Wrap(errors.EStoreCorrupt, "invalid record in history", err)
		}
		if r.RoundIndex != i+1 {
			return errors.New(errors.EStoreCorrupt,
				fmt.Sprintf("history position %d holds round %d; rounds must be contiguous from 1", i+1, r.RoundIndex))
		}
	}
	return nil
}

// NextRound returns max(round_index)+1, or 1 for an empty history.
func (s *Session) NextRound() int {
	if len(s.History) == 0 {
		return 1
	}
	return s.History[len(s.History)-1].RoundIndex + 1
}

// Append adds the final record of a completed round.
func (s *Session) Append(r RunRecord) error {
	if r.SessionID != s.ID {
		return fmt.Errorf("record belongs to session %q, not %q", r.SessionID, s.ID)
	}
	if r.RoundIndex != s.NextRound() {
		return fmt.Errorf("cannot append round %d; next round is %d", r.RoundIndex, s.NextRound())
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.History = append(s.History, r.Clone())
	return nil
}

// LastSucceeded returns the most recent SUCCEEDED record.
func (s *Session) LastSucceeded() (RunRecord, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Succeeded() {
			return s.History[i], true
		}
	}
	return RunRecord{}, false
}

// StartingCheckpoint is the checkpoint of the last SUCCEEDED round,
// else the configured initial checkpoint.
func (s *Session) StartingCheckpoint() string {
	if r, ok := s.LastSucceeded(); ok {
		return r.ResumeCheckpoint()
	}
	return s.Config.InitialCheckpoint
}

// Best returns the best record for the session's target metric.
func (s *Session) Best() (RunRecord, bool) {
	return BestRecord(s.History, s.Target.Metric)
}

// HistoryCopy returns a deep copy of the history.
func (s *Session) HistoryCopy() []RunRecord {
	out := make([]RunRecord, len(s.History))
	for i, r := range s.History {
		out[i] = r.Clone()
	}
	return out
}
