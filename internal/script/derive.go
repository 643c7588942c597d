package script

import (
	"fmt"
	"strconv"
	"time"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

// OK reports whether the script exited 0 without timeout or cancellation.
func (r Result) OK() bool {
	if r.TimedOut || r.Cancelled {
		return false
	}
	return r.ExitCode != nil && *r.ExitCode == 0
}

// Summary is a one-line description of how the script ended.
//
// Precedence: timeout, cancellation, signal, missing exit code, exit code.
func (r Result) Summary() string {
	switch {
	case r.TimedOut:
		return "timed out"
	case r.Cancelled:
		return "cancelled"
	case r.Signal != "":
		return fmt.Sprintf("killed by %s", r.Signal)
	case r.ExitCode == nil:
		return "failed (no exit code)"
	case *r.ExitCode == 0:
		return "succeeded"
	}
	return fmt.Sprintf("failed (exit %d)", *r.ExitCode)
}

// Err converts a failed result into a coded error, or nil when OK.
// code is used for plain script failures (non-zero exit or signal).
func (r Result) Err(name string, code errors.Code) error {
	if r.OK() {
		return nil
	}

	details := map[string]string{
		"command":  name,
		"log":      r.LogPath,
		"duration": r.Duration.Round(time.Millisecond).String(),
	}
	if r.ExitCode != nil {
		details["exit_code"] = strconv.Itoa(*r.ExitCode)
	}
	if r.Signal != "" {
		details["signal"] = r.Signal
	}

	switch {
	case r.TimedOut:
		return errors.NewWithDetails(errors.ERoundTimeout, fmt.Sprintf("%s script timed out", name), details)
	case r.Cancelled:
		return errors.NewWithDetails(errors.ECancelled, fmt.Sprintf("%s script cancelled", name), details)
	}
	return errors.NewWithDetails(code, fmt.Sprintf("%s script %s", name, r.Summary()), details)
}
