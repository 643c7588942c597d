package errors

import (
	"regexp"
	"strings"
)

// ansiEscapeRegex matches terminal escape sequences: CSI, OSC, DCS/PM/APC,
// single-character escapes and a lone trailing ESC.
var ansiEscapeRegex = regexp.MustCompile(
	`\x1b\[[0-9;:<=>?]*[ -/]*[@-~]` +
		`|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)?` +
		`|\x1b[@-_]` +
		`|\x1b[PX^_][^\x1b]*\x1b\\` +
		`|\x1b.` +
		`|\x1b\[?$`,
)

// stripANSI removes terminal escape sequences from s.
func stripANSI(s string) string {
	if s == "" {
		return s
	}
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// cleanLogLine renders one line of training output the way a terminal shows
// it: escapes removed, and only the last redraw of a carriage-return
// progress bar kept.
func cleanLogLine(line string) string {
	line = strings.TrimRight(line, "\r")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	return stripANSI(line)
}
