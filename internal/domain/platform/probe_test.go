package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/envira/internal/ports"
	"github.com/felixgeelhaar/envira/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
)

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestParseOSRelease(t *testing.T) {
	t.Parallel()

	values := ParseOSRelease(`# comment
NAME="Ubuntu"
ID=ubuntu
ID_LIKE=debian
PRETTY_NAME='Ubuntu 22.04'
garbage
`)

	assert.Equal(t, "Ubuntu", values["NAME"])
	assert.Equal(t, "ubuntu", values["ID"])
	assert.Equal(t, "debian", values["ID_LIKE"])
	assert.Equal(t, "Ubuntu 22.04", values["PRETTY_NAME"])
	assert.NotContains(t, values, "garbage")
}

func TestProbe_Detect(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile("/etc/os-release", "ID=manjaro\nID_LIKE=arch\n")
	fs.AddFile("/usr/bin/pacman", "")
	fs.AddFile("/.dockerenv", "")
	runner := mocks.NewCommandRunner()
	runner.AddResult("id", []string{"-u"}, ports.CommandResult{Stdout: "1000\n"})

	probe := NewProbe(fs, runner,
		WithEnv(env(map[string]string{"HOME": "/home/dev", "PATH": "/usr/bin:/bin"})),
		WithEUID(func() int { return 0 }),
	)
	facts := probe.Detect(context.Background(), ModeUser)

	assert.Equal(t, FamilyArch, facts.Family())
	assert.Equal(t, "manjaro", facts.DistroID())
	assert.Equal(t, ModeUser, facts.Mode())
	assert.Equal(t, "/home/dev", facts.Home())
	assert.Equal(t, []string{"/usr/bin", "/bin"}, facts.PathEntries())
	assert.False(t, facts.IsRoot(), "id -u wins over the euid fallback")
	assert.Equal(t, PMPacman, facts.PackageManager())
	assert.Equal(t, EnvContainer, facts.Environment())
}

func TestProbe_DetectDegradesGracefully(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile("/proc/version", "Linux version 5.15.0-microsoft-standard-WSL2")
	runner := mocks.NewCommandRunner()
	runner.AddError("id", []string{"-u"}, errors.New("id: not found"))

	probe := NewProbe(fs, runner,
		WithEnv(env(map[string]string{})),
		WithHomeDir(func() (string, error) { return "/root", nil }),
		WithEUID(func() int { return 0 }),
	)
	facts := probe.Detect(context.Background(), ModeElevated)

	assert.Equal(t, FamilyUnknown, facts.Family())
	assert.Equal(t, "/root", facts.Home())
	assert.True(t, facts.IsRoot())
	assert.Equal(t, PMNone, facts.PackageManager())
	assert.Equal(t, EnvWSL, facts.Environment())
	assert.False(t, facts.NeedsSudo())
}

func TestProbe_PackageManagerFallback(t *testing.T) {
	t.Parallel()

	fs := mocks.NewFileSystem()
	fs.AddFile("/usr/lib/os-release", "ID=alpine\n")
	fs.AddFile("/usr/bin/dnf", "")
	runner := mocks.NewCommandRunner()
	runner.AddResult("id", []string{"-u"}, ports.CommandResult{Stdout: "0"})

	facts := NewProbe(fs, runner, WithEnv(env(map[string]string{"PATH": "/usr/bin"}))).
		Detect(context.Background(), ModeElevated)

	assert.Equal(t, FamilyUnknown, facts.Family())
	assert.Equal(t, "alpine", facts.DistroID())
	assert.Equal(t, PMDnf, facts.PackageManager())
}
