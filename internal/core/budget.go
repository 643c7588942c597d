package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// BudgetKind says which resource limits a Budget enforces.
type BudgetKind string

const (
	BudgetRounds    BudgetKind = "rounds"
	BudgetWallClock BudgetKind = "wall_clock"
	BudgetBoth      BudgetKind = "rounds_and_wall_clock"
)

// Budget bounds a session. At least one limit is always finite, so a session
// governed by a Budget terminates. The zero value is invalid; use a constructor.
type Budget struct {
	kind         BudgetKind
	maxRounds    int
	maxWallClock time.Duration
}

// RoundsBudget limits a session to maxRounds completed rounds.
func RoundsBudget(maxRounds int) (Budget, error) {
	if maxRounds < 1 {
		return Budget{}, invalidBudget(fmt.Sprintf("max_rounds must be >= 1, got %d", maxRounds))
	}
	return Budget{kind: BudgetRounds, maxRounds: maxRounds}, nil
}

// WallClockBudget limits a session to d of elapsed round time.
func WallClockBudget(d time.Duration) (Budget, error) {
	if d <= 0 {
		return Budget{}, invalidBudget(fmt.Sprintf("max_wall_clock must be > 0, got %s", d))
	}
	return Budget{kind: BudgetWallClock, maxWallClock: d}, nil
}

// RoundsAndWallClockBudget enforces both limits; whichever is reached first stops the session.
func RoundsAndWallClockBudget(maxRounds int, d time.Duration) (Budget, error) {
	if _, err := RoundsBudget(maxRounds); err != nil {
		return Budget{}, err
	}
	if _, err := WallClockBudget(d); err != nil {
		return Budget{}, err
	}
	return Budget{kind: BudgetBoth, maxRounds: maxRounds, maxWallClock: d}, nil
}

// NewBudget builds a budget from optional limits, where zero means "no limit".
// Both limits zero is rejected because the session could never end.
func NewBudget(maxRounds int, maxWallClock time.Duration) (Budget, error) {
	switch {
	case maxRounds < 0 || maxWallClock < 0:
		return Budget{}, invalidBudget("budget limits must not be negative")
	case maxRounds > 0 && maxWallClock > 0:
		return RoundsAndWallClockBudget(maxRounds, maxWallClock)
	case maxRounds > 0:
		return RoundsBudget(maxRounds)
	case maxWallClock > 0:
		return WallClockBudget(maxWallClock)
	default:
		return Budget{}, errors.NewWithDetails(errors.EInvalidConfig,
			"budget has neither max_rounds nor max_wall_clock; the session would never terminate",
			map[string]string{"hint": "set budget.max_rounds and/or budget.max_wall_clock"})
	}
}

// Kind returns the budget's tag.
func (b Budget) Kind() BudgetKind { return b.kind }

// Valid reports whether b was built by a constructor.
func (b Budget) Valid() bool { return b.kind != "" }

// MaxRounds returns the round limit and whether it applies.
func (b Budget) MaxRounds() (int, bool) {
	return b.maxRounds, b.kind == BudgetRounds || b.kind == BudgetBoth
}

// MaxWallClock returns the wall-clock limit and whether it applies.
func (b Budget) MaxWallClock() (time.Duration, bool) {
	return b.maxWallClock, b.kind == BudgetWallClock || b.kind == BudgetBoth
}

func (b Budget) String() string {
	switch b.kind {
	case BudgetRounds:
		return fmt.Sprintf("%d rounds", b.maxRounds)
	case BudgetWallClock:
		return b.maxWallClock.String()
	case BudgetBoth:
		return fmt.Sprintf("%d rounds or %s", b.maxRounds, b.maxWallClock)
	}
	return "<invalid>"
}

type budgetJSON struct {
	Kind           BudgetKind `json:"kind"`
	MaxRounds      int        `json:"max_rounds,omitempty"`
	MaxWallClockMS int64      `json:"max_wall_clock_ms,omitempty"`
}

// MarshalJSON encodes the tagged budget.
func (b Budget) MarshalJSON() ([]byte, error) {
	return json.Marshal(budgetJSON{
		Kind:           b.kind,
		MaxRounds:      b.maxRounds,
		MaxWallClockMS: b.maxWallClock.Milliseconds(),
	})
}

// UnmarshalJSON decodes and re-validates a tagged budget.
func (b *Budget) UnmarshalJSON(data []byte) error {
	var raw budgetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	wall := time.Duration(raw.MaxWallClockMS) * time.Millisecond

	var (
		out Budget
		err error
	)
	switch raw.Kind {
	case BudgetRounds:
		out, err = RoundsBudget(raw.MaxRounds)
	case BudgetWallClock:
		out, err = WallClockBudget(wall)
	case BudgetBoth:
		out, err = RoundsAndWallClockBudget(raw.MaxRounds, wall)
	default:
		err = invalidBudget(fmt.Sprintf("unknown budget kind %q", raw.Kind))
	}
	if err != nil {
		return err
	}
	*b = out
	return nil
}

func invalidBudget(msg string) error {
	return errors.New(errors.EInvalidConfig, msg)
}
