// Package command provides command execution adapters.
package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// RealRunner executes actual processes.
type RealRunner struct {
	env       []string
	waitDelay time.Duration
}

// Option configures a RealRunner.
type Option func(*RealRunner)

// WithEnv adds KEY=VALUE pairs to every command's environment.
func WithEnv(env ...string) Option {
	return func(r *RealRunner) {
		r.env = append(r.env, env...)
	}
}

// WithWaitDelay bounds how long a cancelled command may keep its output
// pipes open after it was killed.
func WithWaitDelay(d time.Duration) Option {
	return func(r *RealRunner) {
		r.waitDelay = d
	}
}

// NewRealRunner creates a new RealRunner.
func NewRealRunner(opts ...Option) *RealRunner {
	r := &RealRunner{waitDelay: 5 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NonInteractive returns the environment that keeps package managers from
// prompting.
func NonInteractive() Option {
	return WithEnv("DEBIAN_FRONTEND=noninteractive", "NONINTERACTIVE=1")
}

// Run executes a command and returns the result.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	return r.RunCommand(ctx, ports.Command{Name: command, Args: args})
}

// RunCommand executes cmd. A non-zero exit status is reported in the result,
// not as an error. Failing to start the process or a cancelled context is an
// error.
func (r *RealRunner) RunCommand(ctx context.Context, c ports.Command) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(r.env) > 0 || len(c.Env) > 0 {
		env := os.Environ()
		env = append(env, r.env...)
		cmd.Env = append(env, c.Env...)
	}
	cmd.Stdin = nil
	// Own process group so installers spawned by shell scripts die with us.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = r.waitDelay

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := ports.CommandResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.ExitCode = -1
			return result, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}

	return result, nil
}

// Ensure RealRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*RealRunner)(nil)
