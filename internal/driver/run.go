package driver

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// tailLines is how much command output failure details keep.
const tailLines = 5

// CommandError is a command that ran and exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

// Error returns the command line, exit code and output tail.
func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Output)
}

// Run executes cmd and turns a non-zero exit into a *CommandError and a
// missing executable into ErrToolNotFound.
func Run(ctx context.Context, runner ports.CommandRunner, cmd ports.Command) (ports.CommandResult, error) {
	if logger := ports.LoggerFromContext(ctx); logger != nil {
		logger.Debug(ctx, "running command", ports.F("cmd", cmd.String()), ports.F("dir", cmd.Dir))
	}

	result, err := runner.RunCommand(ctx, cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s: %w", cmd.String(), ctxErr)
		}
		if IsCommandNotFound(err) {
			return result, fmt.Errorf("%w: %s", ErrToolNotFound, cmd.Name)
		}
		return result, fmt.Errorf("%s: %w", cmd.String(), err)
	}
	if !result.Success() {
		return result, &CommandError{Command: cmd.String(), ExitCode: result.ExitCode, Output: result.Tail(tailLines)}
	}
	return result, nil
}

// Probe runs a read-only query command. A non-zero exit is reported as
// false, not as an error.
func Probe(ctx context.Context, runner ports.CommandRunner, cmd ports.Command) (ports.CommandResult, bool, error) {
	result, err := runner.RunCommand(ctx, cmd)
	if err != nil {
		if IsCommandNotFound(err) {
			return result, false, nil
		}
		return result, false, err
	}
	return result, result.Success(), nil
}
