// Package script runs collaborator commands (training and evaluation scripts)
// through `sh -lc` in their own process group, with output captured to a log.
package script

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// DefaultGracePeriod is the time between SIGINT and SIGKILL when a script is
// terminated by timeout or cancellation.
const DefaultGracePeriod = 10 * time.Second

// Command describes one script invocation.
type Command struct {
	// Name labels the log header, e.g. "train" or "eval".
	Name string

	// Script is passed verbatim to `sh -lc`.
	Script string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the parent environment.
	Env []string

	// LogPath receives stdout and stderr. It is truncated first.
	LogPath string

	// Grace overrides DefaultGracePeriod when positive.
	Grace time.Duration
}

// Result describes how a script ended.
type Result struct {
	// ExitCode is nil when the process was killed by a signal.
	ExitCode *int

	// Signal is set when the process was terminated by a signal.
	Signal string

	// TimedOut is true when ctx's deadline expired first.
	TimedOut bool

	// Cancelled is true when ctx was cancelled first.
	Cancelled bool

	Duration time.Duration
	LogPath  string
}

// Run executes c and waits for it to finish or for ctx to end.
//
// Script failure (non-zero exit, timeout, cancel) is reported in Result,
// not as an error. The error is only for failures that prevent running:
// creating the log or starting the process.
func Run(ctx context.Context, c Command) (Result, error) {
	res := Result{LogPath: c.LogPath}

	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return res, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return res, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	start := time.Now()
	_, _ = fmt.Fprintf(logFile, "# ctrain %s log\n", c.Name)
	_, _ = fmt.Fprintf(logFile, "# timestamp: %s\n", start.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(logFile, "# command: sh -lc %s\n", c.Script)
	_, _ = fmt.Fprintf(logFile, "# cwd: %s\n", c.Dir)
	for _, kv := range c.Env {
		if strings.HasPrefix(kv, "CTRAIN_") {
			_, _ = fmt.Fprintf(logFile, "# env: %s\n", kv)
		}
	}
	_, _ = fmt.Fprintf(logFile, "# ---\n\n")

	if err := ctx.Err(); err != nil {
		res.TimedOut, res.Cancelled = classify(err)
		return res, nil
	}

	cmd := osexec.Command("sh", "-lc", c.Script)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return res, fmt.Errorf("failed to open /dev/null: %w", err)
	}
	defer devnull.Close()
	cmd.Stdin = devnull

	if err := cmd.Start(); err != nil {
		return res, fmt.Errorf("failed to start %s script: %w", c.Name, err)
	}
	pgid := cmd.Process.Pid

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var runErr error
	select {
	case runErr = <-waitDone:
	case <-ctx.Done():
		res.TimedOut, res.Cancelled = classify(ctx.Err())
		grace := c.Grace
		if grace <= 0 {
			grace = DefaultGracePeriod
		}
		runErr = terminateGroup(pgid, grace, waitDone)
	}

	res.Duration = time.Since(start)
	res.ExitCode, res.Signal = exitStatus(runErr)
	_, _ = fmt.Fprintf(logFile, "\n# ---\n# %s\n", res.Summary())
	return res, nil
}

func classify(err error) (timedOut, cancelled bool) {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true, false
	}
	return false, true
}

// terminateGroup sends SIGINT to the process group, waits up to grace for the
// leader to exit, then sends SIGKILL to the group.
func terminateGroup(pgid int, grace time.Duration, waitDone <-chan error) error {
	_ = syscall.Kill(-pgid, syscall.SIGINT)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitDone:
		// Leader exited; make sure no stragglers keep the group alive.
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return err
	case <-timer.C:
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return <-waitDone
	}
}

func exitStatus(runErr error) (*int, string) {
	if runErr == nil {
		code := 0
		return &code, ""
	}
	var exitErr *osexec.ExitError
	if !stderrors.As(runErr, &exitErr) || exitErr.ProcessState == nil {
		return nil, ""
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return nil, status.Signal().String()
	}
	code := exitErr.ExitCode()
	return &code, ""
}
