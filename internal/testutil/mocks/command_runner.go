// Package mocks provides test doubles for testing.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// CommandRunner is a thread-safe test double for ports.CommandRunner.
// Results registered with AddSequence are consumed one per call; the last
// entry is repeated once the sequence is exhausted.
type CommandRunner struct {
	mu        sync.Mutex
	results   map[string]ports.CommandResult
	sequences map[string][]ports.CommandResult
	errors    map[string]error
	fallback  *ports.CommandResult
	calls     []ports.CommandCall
}

// NewCommandRunner creates a new CommandRunner mock.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results:   make(map[string]ports.CommandResult),
		sequences: make(map[string][]ports.CommandResult),
		errors:    make(map[string]error),
		calls:     make([]ports.CommandCall, 0),
	}
}

// AddResult registers an expected command and its result.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(command, args)] = result
}

// AddSequence registers results returned in order on successive calls.
func (m *CommandRunner) AddSequence(command string, args []string, results ...ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[buildKey(command, args)] = results
}

// AddError registers an expected command that should return an error.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// SetFallback sets the result returned for commands with no registration.
func (m *CommandRunner) SetFallback(result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &result
}

// Run executes a mock command.
func (m *CommandRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	return m.RunCommand(ctx, ports.Command{Name: command, Args: args})
}

// RunCommand executes a mock command, recording its directory and environment.
func (m *CommandRunner) RunCommand(_ context.Context, cmd ports.Command) (ports.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ports.CommandCall{
		Command: cmd.Name,
		Args:    cmd.Args,
		Dir:     cmd.Dir,
		Env:     cmd.Env,
	})

	key := buildKey(cmd.Name, cmd.Args)

	if err, ok := m.errors[key]; ok {
		return ports.CommandResult{}, err
	}

	if seq, ok := m.sequences[key]; ok && len(seq) > 0 {
		result := seq[0]
		if len(seq) > 1 {
			m.sequences[key] = seq[1:]
		}
		return result, nil
	}

	if result, ok := m.results[key]; ok {
		return result, nil
	}

	if m.fallback != nil {
		return *m.fallback, nil
	}

	return ports.CommandResult{}, fmt.Errorf("no mock result for command: %s %v", cmd.Name, cmd.Args)
}

// Calls returns all recorded command invocations.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]ports.CommandCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many times the given command line was run.
func (m *CommandRunner) CallCount(command string, args ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := buildKey(command, args)
	n := 0
	for _, call := range m.calls {
		if buildKey(call.Command, call.Args) == key {
			n++
		}
	}
	return n
}

// Reset clears all registered results, errors, and recorded calls.
func (m *CommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]ports.CommandResult)
	m.sequences = make(map[string][]ports.CommandResult)
	m.errors = make(map[string]error)
	m.fallback = nil
	m.calls = make([]ports.CommandCall, 0)
}

// buildKey creates a unique key for a command and its arguments.
func buildKey(command string, args []string) string {
	return command + ":" + strings.Join(args, ":")
}

// Ensure CommandRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*CommandRunner)(nil)
