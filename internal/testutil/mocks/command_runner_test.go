package mocks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/felixgeelhaar/envira/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRunner_AddResult(t *testing.T) {
	runner := NewCommandRunner()
	runner.AddResult("cargo", []string{"--version"}, ports.CommandResult{Stdout: "cargo 1.79.0"})

	result, err := runner.Run(context.Background(), "cargo", "--version")
	require.NoError(t, err)
	assert.Equal(t, "cargo 1.79.0", result.Stdout)
}

func TestCommandRunner_NotFound(t *testing.T) {
	runner := NewCommandRunner()

	_, err := runner.Run(context.Background(), "unknown", "command")
	assert.Error(t, err)
}

func TestCommandRunner_Fallback(t *testing.T) {
	runner := NewCommandRunner()
	runner.SetFallback(ports.CommandResult{ExitCode: 1})

	result, err := runner.Run(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, result.Success())
}

func TestCommandRunner_Sequence(t *testing.T) {
	runner := NewCommandRunner()
	runner.AddSequence("pipx", []string{"install", "uv"},
		ports.CommandResult{ExitCode: 1, Stderr: "network unreachable"},
		ports.CommandResult{ExitCode: 0},
	)

	first, err := runner.Run(context.Background(), "pipx", "install", "uv")
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), "pipx", "install", "uv")
	require.NoError(t, err)
	third, err := runner.Run(context.Background(), "pipx", "install", "uv")
	require.NoError(t, err)

	assert.False(t, first.Success())
	assert.True(t, second.Success())
	assert.True(t, third.Success(), "last result repeats")
	assert.Equal(t, 3, runner.CallCount("pipx", "install", "uv"))
}

func TestCommandRunner_AddError(t *testing.T) {
	runner := NewCommandRunner()
	boom := errors.New("exec: \"cargo\": executable file not found in $PATH")
	runner.AddError("cargo", []string{"install", "bottom"}, boom)

	_, err := runner.Run(context.Background(), "cargo", "install", "bottom")
	assert.ErrorIs(t, err, boom)
}

func TestCommandRunner_RecordsDirAndEnv(t *testing.T) {
	runner := NewCommandRunner()
	runner.SetFallback(ports.CommandResult{})

	_, _ = runner.RunCommand(context.Background(), ports.Command{
		Name: "sh",
		Args: []string{"install.sh", "--unattended"},
		Dir:  "/tmp/work",
		Env:  []string{"RUNZSH=no"},
	})

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sh", calls[0].Command)
	assert.Equal(t, "/tmp/work", calls[0].Dir)
	assert.Equal(t, []string{"RUNZSH=no"}, calls[0].Env)
}

func TestCommandRunner_Reset(t *testing.T) {
	runner := NewCommandRunner()
	runner.AddResult("git", []string{"--version"}, ports.CommandResult{})
	_, _ = runner.Run(context.Background(), "git", "--version")

	runner.Reset()

	assert.Empty(t, runner.Calls())
	_, err := runner.Run(context.Background(), "git", "--version")
	assert.Error(t, err)
}

func TestCommandRunner_ThreadSafety(t *testing.T) {
	runner := NewCommandRunner()
	for i := 0; i < 26; i++ {
		runner.AddResult("cmd", []string{string(rune('a' + i))}, ports.CommandResult{})
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, _ = runner.Run(context.Background(), "cmd", string(rune('a'+idx%26)))
			_ = runner.Calls()
		}(i)
	}
	wg.Wait()

	assert.Len(t, runner.Calls(), 100)
}
