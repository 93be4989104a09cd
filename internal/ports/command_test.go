package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandResult_Success(t *testing.T) {
	t.Parallel()

	assert.True(t, CommandResult{ExitCode: 0}.Success())
	assert.False(t, CommandResult{ExitCode: 1, Stderr: "error"}.Success())
}

func TestCommandResult_Tail(t *testing.T) {
	t.Parallel()

	result := CommandResult{
		Stdout: "line1\nline2\n\nline3\n",
		Stderr: "E: Unable to locate package foo\n",
	}

	assert.Equal(t, "line3\nE: Unable to locate package foo", result.Tail(2))
	assert.Equal(t, "line1\nline2\nline3\nE: Unable to locate package foo", result.Tail(10))
}

func TestCommand_String(t *testing.T) {
	t.Parallel()

	cmd := Command{Name: "apt-get", Args: []string{"install", "-y", "git"}}
	assert.Equal(t, "apt-get install -y git", cmd.String())
	assert.Equal(t, "true", Command{Name: "true"}.String())
}
