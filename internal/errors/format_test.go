package errors

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatFirstLineAlwaysErrorCode(t *testing.T) {
	tests := []struct {
		name string
		code Code
		msg  string
	}{
		{"usage error", EUsage, "bad args"},
		{"train failed", ETrainFailed, "trainer exited 1"},
		{"archive conflict", EArchiveConflict, "round already archived"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := strings.Split(Format(New(tt.code, tt.msg), PrintOptions{}), "\n")
			if lines[0] != "error_code: "+string(tt.code) {
				t.Errorf("first line = %q, want %q", lines[0], "error_code: "+string(tt.code))
			}
			if lines[1] != tt.msg {
				t.Errorf("second line = %q, want %q", lines[1], tt.msg)
			}
		})
	}
}

func TestFormatContextKeysInOrder(t *testing.T) {
	err := NewWithDetails(ETrainFailed, "trainer failed", map[string]string{
		"log":        "/data/sessions/abc/work/000002-1/train.log",
		"exit_code":  "1",
		"round":      "2",
		"session_id": "abc",
	})

	output := Format(err, PrintOptions{})

	sessionIdx := strings.Index(output, "session_id:")
	roundIdx := strings.Index(output, "round:")
	exitIdx := strings.Index(output, "exit_code:")
	logIdx := strings.Index(output, "log:")

	if !(sessionIdx < roundIdx && roundIdx < exitIdx && exitIdx < logIdx) {
		t.Errorf("context keys out of order:\n%s", output)
	}
}

func TestFormatUnknownKeysHiddenByDefault(t *testing.T) {
	err := NewWithDetails(EEvalFailed, "eval failed", map[string]string{
		"round":       "1",
		"unknown_key": "hidden",
	})

	if strings.Contains(Format(err, PrintOptions{}), "unknown_key") {
		t.Error("unknown_key should not appear in default mode")
	}

	verbose := Format(err, PrintOptions{Verbose: true})
	if !strings.Contains(verbose, "extra:") || !strings.Contains(verbose, "unknown_key: hidden") {
		t.Errorf("verbose output should list extras, got:\n%s", verbose)
	}
}

func TestFormatVerboseShowsCause(t *testing.T) {
	err := Wrap(EArchiveFailed, "publish failed", errors.New("disk full"))

	if strings.Contains(Format(err, PrintOptions{}), "disk full") {
		t.Error("cause should be hidden in default mode")
	}
	if !strings.Contains(Format(err, PrintOptions{Verbose: true}), "cause: disk full") {
		t.Error("cause should be shown in verbose mode")
	}
}

func TestFormatMultilineValueEscaped(t *testing.T) {
	err := NewWithDetails(EEvalFailed, "eval failed", map[string]string{
		"command": "line1\r\nline2\n",
	})

	output := Format(err, PrintOptions{})
	if !strings.Contains(output, `command: line1\nline2`+"\n") {
		t.Errorf("multiline value should be escaped, got:\n%s", output)
	}
}

func TestFormatHintLine(t *testing.T) {
	err := NewWithDetails(EInvalidConfig, "budget unbounded", map[string]string{
		"hint": "set budget.max_rounds or budget.max_wall_clock",
	})

	output := Format(err, PrintOptions{})
	if !strings.Contains(output, "\nhint: set budget.max_rounds or budget.max_wall_clock\n") {
		t.Errorf("missing hint line, got:\n%s", output)
	}
	if GetHint(err) != "set budget.max_rounds or budget.max_wall_clock" {
		t.Errorf("GetHint() = %q", GetHint(err))
	}
}

func TestFormatNonCtrainError(t *testing.T) {
	if got := Format(errors.New("plain"), PrintOptions{}); got != "plain\n" {
		t.Errorf("Format() = %q, want %q", got, "plain\n")
	}
	if got := Format(nil, PrintOptions{}); got != "" {
		t.Errorf("Format(nil) = %q, want empty", got)
	}
}

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"simple", 10, "simple"},
		{"trailing  \n", 20, "trailing"},
		{"a\nb", 10, `a\nb`},
		{"abcdefghij", 5, "abcde…"},
	}

	for _, tt := range tests {
		if got := sanitizeValue(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("sanitizeValue(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestReadTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.log")
	var content strings.Builder
	for i := 0; i < 30; i++ {
		content.WriteString("epoch line\n")
	}
	content.WriteString("last line\n")
	if err := os.WriteFile(path, []byte(content.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := readTail(path, 5, 8*1024)
	if err != nil {
		t.Fatalf("readTail: %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	if lines[4] != "last line" {
		t.Errorf("last line = %q", lines[4])
	}
}

func TestReadTailMissingFile(t *testing.T) {
	if _, err := readTail(filepath.Join(t.TempDir(), "missing.log"), 5, 1024); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPrintWithOptionsTailsRoundLog(t *testing.T) {
	err := NewWithDetails(ETrainFailed, "trainer failed", map[string]string{
		"log":  "/work/train.log",
		"hint": "inspect the trainer log",
	})

	var gotPath string
	tailer := func(logPath string, maxLines int) ([]string, error) {
		gotPath = logPath
		return []string{"CUDA out of memory"}, nil
	}

	var buf bytes.Buffer
	PrintWithOptions(&buf, err, PrintOptions{Tailer: tailer})

	if gotPath != "/work/train.log" {
		t.Errorf("tailer path = %q", gotPath)
	}
	output := buf.String()
	blockIdx := strings.Index(output, "output (1 lines):")
	hintIdx := strings.Index(output, "hint:")
	if blockIdx < 0 || hintIdx < blockIdx {
		t.Errorf("output block should precede hint, got:\n%s", output)
	}
}

func TestPrintWithOptionsSkipsTailForOtherCodes(t *testing.T) {
	err := NewWithDetails(EInvalidConfig, "bad", map[string]string{"log": "/x.log"})

	called := false
	tailer := func(string, int) ([]string, error) {
		called = true
		return nil, nil
	}

	PrintWithOptions(&bytes.Buffer{}, err, PrintOptions{Tailer: tailer})
	if called {
		t.Error("tailer should not be called for E_INVALID_CONFIG")
	}
}

func TestDeriveTryLines(t *testing.T) {
	tests := []struct {
		name     string
		code     Code
		details  map[string]string
		contains string
	}{
		{"aborted suggests resume", ERoundAborted, map[string]string{"session_id": "s1"}, "ctrain resume s1"},
		{"cancelled suggests show", ECancelled, map[string]string{"session_id": "s2"}, "ctrain show s2 --attempts"},
		{"ambiguous suggests ls", ESessionIDAmbiguous, nil, "ctrain ls"},
		{"corrupt suggests show", EStoreCorrupt, map[string]string{"session_id": "s3"}, "ctrain show s3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := deriveTryLines(&CtrainError{Code: tt.code, Msg: "x", Details: tt.details})
			found := false
			for _, line := range lines {
				if strings.Contains(line, tt.contains) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected try line containing %q, got %v", tt.contains, lines)
			}
		})
	}
}

func TestPrintWithOptionsTailsWrappedRoundLog(t *testing.T) {
	cause := NewWithDetails(ETrainFailed, "train script failed (exit 1)", map[string]string{"log": "/work/1-2/logs/train.log"})
	err := WrapWithDetails(ERoundAborted, "round 1 failed on all 2 attempts", cause, map[string]string{"round": "1"})

	var gotPath string
	tailer := func(logPath string, maxLines int) ([]string, error) {
		gotPath = logPath
		return []string{"RuntimeError: CUDA out of memory"}, nil
	}

	var buf bytes.Buffer
	PrintWithOptions(&buf, err, PrintOptions{Tailer: tailer})

	if gotPath != "/work/1-2/logs/train.log" {
		t.Errorf("tailer path = %q, want the wrapped trainer log", gotPath)
	}
	if !strings.HasPrefix(buf.String(), "error_code: E_ROUND_ABORTED\n") {
		t.Errorf("output should lead with the round abort, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "CUDA out of memory") {
		t.Errorf("output should include the log tail, got:\n%s", buf.String())
	}
}

func TestReadTailCleansProgressBars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.log")
	content := "\x1b[34mEpoch 1/2\x1b[0m\n  10%\r  60%\r 100%\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := readTail(path, 5, 1024)
	if err != nil {
		t.Fatalf("readTail: %v", err)
	}
	want := []string{"Epoch 1/2", " 100%"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}
