package cmdutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kballard/go-shellquote"
)

// DefaultWaitDelay bounds how long Run waits for output pipes to drain after
// the process has been killed.
const DefaultWaitDelay = 2 * time.Second

// ExecOptions configures command execution.
type ExecOptions struct {
	// Dir is the working directory for the command.
	Dir string

	// Timeout is the maximum execution time.
	// If zero, only the deadline of the supplied context applies.
	Timeout time.Duration

	// Env contains environment variables for the command.
	// Each entry should be in the form "KEY=value". A nil Env inherits the
	// environment of the current process.
	Env []string

	// WaitDelay overrides DefaultWaitDelay.
	WaitDelay time.Duration
}

// Result contains the result of a command execution.
type Result struct {
	Stdout []byte
	Stderr []byte

	// ExitCode is the exit code of the command, or -1 if it was killed.
	ExitCode int

	// TimedOut reports whether the command was killed because its deadline passed.
	TimedOut bool

	// Duration is how long the command took to execute.
	Duration time.Duration
}

// OK reports whether the command ran to completion with exit code 0.
func (r *Result) OK() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// Run executes a command with the given options.
//
// The command runs in its own process group; when the deadline passes the whole
// group is killed and Result.TimedOut is set. A nonzero exit status is reported
// through Result.ExitCode, not as an error. An error is returned only when the
// process could not be started, or when ctx was cancelled rather than timed out.
func Run(ctx context.Context, opts ExecOptions, cmdParts []string) (*Result, error) {
	if len(cmdParts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cmdParts[0], cmdParts[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.WaitDelay = opts.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	setProcessGroup(cmd)

	// killed records that the deadline or cancellation actually took the
	// process down, as opposed to ctx expiring after it had already exited.
	var killed atomic.Bool
	kill := cmd.Cancel
	cmd.Cancel = func() error {
		err := kill()
		if err == nil {
			killed.Store(true)
		}
		return err
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	// Wait always runs so the child is reaped on every path.
	waitErr := cmd.Wait()

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	exited := false
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
		exited = cmd.ProcessState.Exited()
	}

	if killed.Load() && !exited {
		ctxErr := ctx.Err()
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			result.TimedOut = true
			result.ExitCode = -1
			return result, nil
		}
		return result, fmt.Errorf("command cancelled: %w", ctxErr)
	}

	// A process that exited on its own keeps its exit status even if ctx
	// expired while Wait was still draining output.
	if exited && (errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(waitErr, context.Canceled)) {
		waitErr = nil
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return result, fmt.Errorf("command failed: %w", waitErr)
	}

	return result, nil
}

// ParseCommandString parses a shell-quoted command string into parts.
//
// Example:
//
//	"/usr/bin/env bash -e" -> ["/usr/bin/env", "bash", "-e"]
func ParseCommandString(cmdStr string) ([]string, error) {
	parts, err := shellquote.Split(cmdStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command string: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command string")
	}
	return parts, nil
}

// FormatCommand formats command parts into a readable string for logging.
// Example: ["git", "commit", "-m", "my message"] -> "git commit -m 'my message'"
func FormatCommand(cmdParts []string) string {
	if len(cmdParts) == 0 {
		return "<empty command>"
	}

	quoted := make([]string, len(cmdParts))
	for i, part := range cmdParts {
		if strings.ContainsAny(part, " \t\n\"'") {
			quoted[i] = shellquote.Join(part)
		} else {
			quoted[i] = part
		}
	}

	return strings.Join(quoted, " ")
}

// SanitizeOutput removes sensitive information from command output.
func SanitizeOutput(output []byte, secrets []string) []byte {
	sanitized := string(output)
	for _, secret := range secrets {
		if secret != "" {
			sanitized = strings.ReplaceAll(sanitized, secret, "***REDACTED***")
		}
	}
	return []byte(sanitized)
}

// FilterEnv returns env without the entries whose key is in drop.
func FilterEnv(env []string, drop ...string) []string {
	filtered := make([]string, 0, len(env))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		skip := false
		for _, d := range drop {
			if key == d {
				skip = true
				break
			}
		}
		if !skip {
			filtered = append(filtered, kv)
		}
	}
	return filtered
}
