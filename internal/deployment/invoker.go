// Package deployment decides whether a verified push should deploy and runs
// the service's deployment script.
package deployment

//go:generate mockgen -destination=mocks/mock_invoker.go -package=mocks deployhook/internal/deployment Invoker

import (
	"context"
	"os"
	"time"

	"deployhook/internal/service"
	"deployhook/pkg/cmdutil"
)

// Invoker runs one deployment and reports how it ended.
//
// A nonzero exit or a timeout is reported through Result. An error means the
// deployment could not be run at all.
type Invoker interface {
	Invoke(ctx context.Context) (*Result, error)
}

// Result is the outcome of one script run. It is never persisted.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// OK reports whether the script exited 0 before its deadline.
func (r *Result) OK() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// ScriptInvoker runs a fixed command as a child process.
type ScriptInvoker struct {
	Command []string
	Dir     string
	Timeout time.Duration

	// Env is the child environment. Nil inherits the gateway's environment.
	Env []string

	// Redact lists strings scrubbed from captured output.
	Redact []string
}

// NewScriptInvoker builds the invoker for svc. The variable named secretEnv
// is removed from the child environment and secret is scrubbed from output.
func NewScriptInvoker(svc *service.Service, secretEnv, secret string) *ScriptInvoker {
	return &ScriptInvoker{
		Command: svc.Command(),
		Dir:     svc.Dir,
		Timeout: svc.Timeout,
		Env:     cmdutil.FilterEnv(os.Environ(), secretEnv),
		Redact:  []string{secret},
	}
}

// Invoke runs the command and blocks until it exits or its timeout passes.
func (i *ScriptInvoker) Invoke(ctx context.Context) (*Result, error) {
	res, err := cmdutil.Run(ctx, cmdutil.ExecOptions{
		Dir:     i.Dir,
		Timeout: i.Timeout,
		Env:     i.Env,
	}, i.Command)
	if res == nil {
		return nil, err
	}

	result := &Result{
		ExitCode: res.ExitCode,
		Stdout:   string(cmdutil.SanitizeOutput(res.Stdout, i.Redact)),
		Stderr:   string(cmdutil.SanitizeOutput(res.Stderr, i.Redact)),
		TimedOut: res.TimedOut,
		Duration: res.Duration,
	}
	return result, err
}
