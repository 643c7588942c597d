package events

import "time"

// SessionStartData returns the data map for a session_start or session_resume event.
func SessionStartData(nextRound int, startingCheckpoint, budget string) map[string]any {
	return map[string]any{
		"next_round":          nextRound,
		"starting_checkpoint": startingCheckpoint,
		"budget":              budget,
	}
}

// RoundStartData returns the data map for a round_start event.
func RoundStartData(round, attempt int, startingCheckpoint string) map[string]any {
	return map[string]any{
		"round":               round,
		"attempt":             attempt,
		"starting_checkpoint": startingCheckpoint,
	}
}

// AttemptFailedData returns the data map for an attempt_failed event.
// Reasons are bounded to 512 bytes.
func AttemptFailedData(round, attempt int, errorCode, reason string, willRetry bool) map[string]any {
	const maxReasonLen = 512
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}
	data := map[string]any{
		"round":      round,
		"attempt":    attempt,
		"reason":     reason,
		"will_retry": willRetry,
	}
	if errorCode != "" {
		data["error_code"] = errorCode
	}
	return data
}

// RoundArchivedData returns the data map for a round_archived event.
func RoundArchivedData(round, attempt int, status, dir string, metrics map[string]float64) map[string]any {
	data := map[string]any{
		"round":   round,
		"attempt": attempt,
		"status":  status,
		"dir":     dir,
	}
	if len(metrics) > 0 {
		data["metrics"] = metrics
	}
	return data
}

// DecisionData returns the data map for a decision event.
func DecisionData(round int, verdict string, elapsed time.Duration) map[string]any {
	return map[string]any{
		"round":      round,
		"verdict":    verdict,
		"elapsed_ms": elapsed.Milliseconds(),
	}
}

// SessionEndData returns the data map for a session_end event.
// bestRound is 0 when no round succeeded.
func SessionEndData(verdict string, rounds, bestRound int, errorCode string) map[string]any {
	data := map[string]any{
		"verdict": verdict,
		"rounds":  rounds,
	}
	if bestRound > 0 {
		data["best_round"] = bestRound
	}
	if errorCode != "" {
		data["error_code"] = errorCode
	}
	return data
}
