// Package errors provides error formatting for ctrain CLI output.
package errors

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// PrintOptions controls error output formatting.
type PrintOptions struct {
	// Verbose enables detailed error output with more context keys and longer tails.
	Verbose bool

	// Tailer provides output tail lines for collaborator script failures.
	// If nil, PrintWithOptions reads the log file directly (bounded I/O).
	Tailer func(logPath string, maxLines int) ([]string, error)
}

// Context key whitelist (default mode, in order)
var defaultContextKeys = []string{
	"op",
	"session_id",
	"round",
	"attempt",
	"command",
	"checkpoint",
	"metric",
	"exit_code",
	"duration",
	"log",
	"record",
}

// Additional context keys for verbose mode
var verboseContextKeys = []string{
	"op",
	"session_id",
	"round",
	"attempt",
	"command",
	"workdir",
	"checkpoint",
	"start_checkpoint",
	"dataset",
	"metric",
	"threshold",
	"exit_code",
	"duration",
	"duration_ms",
	"log",
	"record",
	"path",
	"signal",
	"timed_out",
	"cancelled",
	"hint",
}

// Truncation limits
const (
	defaultMaxLines = 20
	defaultMaxChars = 8 * 1024 // 8 KB
	verboseMaxLines = 100
	verboseMaxChars = 64 * 1024 // 64 KB

	maxValueLen      = 256 // Max chars for single-line context values
	maxExtraValueLen = 128 // Max chars for extra section values
	maxOutputLineLen = 512 // Max chars per line in output blocks
)

// Format formats an error for display without I/O.
// It never reads files; the log tail is added by PrintWithOptions.
func Format(err error, opts PrintOptions) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	ce, ok := AsCtrainError(err)
	if !ok {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString("error_code: ")
	sb.WriteString(string(ce.Code))
	sb.WriteString("\n")

	sb.WriteString(ce.Msg)
	sb.WriteString("\n")

	if ce.Cause != nil && opts.Verbose {
		sb.WriteString("cause: ")
		sb.WriteString(sanitizeValue(ce.Cause.Error(), maxValueLen))
		sb.WriteString("\n")
	}

	contextKeys := defaultContextKeys
	if opts.Verbose {
		contextKeys = verboseContextKeys
	}

	printedKeys := make(map[string]bool)
	wroteBlank := false
	for _, key := range contextKeys {
		val, ok := ce.Details[key]
		if !ok || val == "" || key == "hint" {
			continue
		}
		if !wroteBlank {
			sb.WriteString("\n")
			wroteBlank = true
		}
		printedKeys[key] = true
		sb.WriteString(key)
		sb.WriteString(": ")
		sb.WriteString(sanitizeValue(val, maxValueLen))
		sb.WriteString("\n")
	}

	// In verbose mode, print unlisted keys under extra:
	if opts.Verbose && len(ce.Details) > 0 {
		var extraKeys []string
		for key, val := range ce.Details {
			if !printedKeys[key] && key != "hint" && val != "" {
				extraKeys = append(extraKeys, key)
			}
		}
		if len(extraKeys) > 0 {
			sort.Strings(extraKeys)
			sb.WriteString("\nextra:\n")
			for _, key := range extraKeys {
				sb.WriteString("  ")
				sb.WriteString(key)
				sb.WriteString(": ")
				sb.WriteString(sanitizeValue(ce.Details[key], maxExtraValueLen))
				sb.WriteString("\n")
			}
		}
	}

	if hint := ce.Details["hint"]; hint != "" {
		sb.WriteString("\nhint: ")
		sb.WriteString(hint)
		sb.WriteString("\n")
	}

	for _, try := range deriveTryLines(ce) {
		sb.WriteString("try: ")
		sb.WriteString(try)
		sb.WriteString("\n")
	}

	return sb.String()
}

// PrintWithOptions writes a formatted error to w with the given options.
// For script failures with a "log" detail it appends a bounded tail of that log.
func PrintWithOptions(w io.Writer, err error, opts PrintOptions) {
	if err == nil {
		return
	}

	output := Format(err, opts)

	if ce := tailSource(err); ce != nil {
		maxLines := defaultMaxLines
		maxChars := defaultMaxChars
		if opts.Verbose {
			maxLines = verboseMaxLines
			maxChars = verboseMaxChars
		}

		var lines []string
		var tailErr error
		logPath := ce.Details["log"]
		if opts.Tailer != nil {
			lines, tailErr = opts.Tailer(logPath, maxLines)
		} else {
			lines, tailErr = readTail(logPath, maxLines, maxChars)
		}
		if tailErr == nil && len(lines) > 0 {
			output = insertOutputBlock(output, lines, maxLines)
		}
	}

	_, _ = io.WriteString(w, output)
}

// sanitizeValue flattens a value onto one line and truncates it to maxLen chars.
func sanitizeValue(val string, maxLen int) string {
	val = strings.TrimRight(val, " \t\r\n")
	val = strings.ReplaceAll(val, "\r\n", "\n")
	val = strings.ReplaceAll(val, "\n", "\\n")
	if len(val) > maxLen {
		return val[:maxLen] + "…"
	}
	return val
}

// tailSource returns the first error in err's chain that carries a
// collaborator log worth tailing, or nil. An aborted round wraps the
// trainer or evaluator failure that holds the log.
func tailSource(err error) *CtrainError {
	for err != nil {
		if ce, ok := err.(*CtrainError); ok && hasLogTail(ce) {
			return ce
		}
		err = errors.Unwrap(err)
	}
	return nil
}

// hasLogTail reports whether the error carries a collaborator log worth tailing.
func hasLogTail(ce *CtrainError) bool {
	if ce.Details["log"] == "" {
		return false
	}
	switch ce.Code {
	case EScriptFailed, ETrainFailed, EEvalFailed, ERoundTimeout, ERoundAborted:
		return true
	}
	return false
}

// readTail reads the last maxLines lines from a file, up to maxChars total.
func readTail(path string, maxLines, maxChars int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := stat.Size()
	if size == 0 {
		return nil, nil
	}

	readSize := int64(maxChars)
	if readSize > size {
		readSize = size
	}
	if _, err := f.Seek(size-readSize, 0); err != nil {
		return nil, err
	}

	var allLines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := cleanLogLine(scanner.Text())
		if len(line) > maxOutputLineLen {
			line = line[:maxOutputLineLen] + "…"
		}
		allLines = append(allLines, strings.TrimRight(line, " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(allLines) > maxLines {
		return allLines[len(allLines)-maxLines:], nil
	}
	return allLines, nil
}

// insertOutputBlock inserts the output tail block before the hint line in the formatted output.
func insertOutputBlock(output string, lines []string, maxLines int) string {
	var block strings.Builder
	if len(lines) >= maxLines {
		block.WriteString(fmt.Sprintf("\noutput (last %d lines):\n", len(lines)))
	} else {
		block.WriteString(fmt.Sprintf("\noutput (%d lines):\n", len(lines)))
	}
	for _, line := range lines {
		block.WriteString("  ")
		block.WriteString(line)
		block.WriteString("\n")
	}

	if idx := strings.Index(output, "\nhint: "); idx >= 0 {
		return output[:idx] + block.String() + output[idx:]
	}
	if idx := strings.Index(output, "\ntry: "); idx >= 0 {
		return output[:idx] + block.String() + output[idx:]
	}
	return output + block.String()
}

// deriveTryLines returns actionable suggestions based on error code.
func deriveTryLines(ce *CtrainError) []string {
	if ce == nil {
		return nil
	}

	sessionID := ce.Details["session_id"]

	switch ce.Code {
	case ERoundAborted, ECancelled:
		if sessionID != "" {
			return []string{
				fmt.Sprintf("ctrain show %s --attempts", sessionID),
				fmt.Sprintf("ctrain resume %s", sessionID),
			}
		}
	case ESessionIDAmbiguous:
		return []string{"ctrain ls"}
	case EArchiveConflict, EStoreCorrupt:
		if sessionID != "" {
			return []string{fmt.Sprintf("ctrain show %s --attempts", sessionID)}
		}
	}
	return nil
}

// GetHint extracts the hint from an error's details, if present.
func GetHint(err error) string {
	ce, ok := AsCtrainError(err)
	if !ok {
		return ""
	}
	return ce.Details["hint"]
}
