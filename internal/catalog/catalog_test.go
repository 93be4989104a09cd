package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/envira/internal/catalog"
	"github.com/felixgeelhaar/envira/internal/domain/config"
	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/domain/verify"
)

func TestLoad_EmbeddedCatalogIsValid(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Load()
	require.NoError(t, err)

	assert.Equal(t, catalog.EmbeddedSource, cat.Source)
	assert.Greater(t, len(cat.Steps), 50)
	assert.Greater(t, len(cat.Checks), 50)

	ordered, err := cat.Ordered()
	require.NoError(t, err)
	require.Len(t, ordered, len(cat.Steps))
	assert.Equal(t, "essentials", ordered[0].ID.String())

	seen := make(map[step.ID]bool)
	for _, s := range ordered {
		for _, dep := range s.DependsOn {
			assert.True(t, seen[dep], "%s runs before its dependency %s", s.ID, dep)
		}
		seen[s.ID] = true
	}
}

func TestLoad_EmbeddedSteps(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Load()
	require.NoError(t, err)

	get := func(id string) step.Step {
		t.Helper()
		s, ok := cat.Step(step.MustNewID(id))
		require.True(t, ok, id)
		return s
	}

	essentials := get("essentials")
	assert.Equal(t, step.MethodDistroPackage, essentials.Method)
	assert.True(t, essentials.Spec.Packages.Refresh)
	assert.Contains(t, essentials.Spec.Packages.Names[platform.FamilyDebian], "build-essential")
	assert.Contains(t, essentials.Spec.Packages.Names[platform.FamilyArch], "base-devel")
	assert.Contains(t, essentials.Spec.Packages.Names[platform.FamilyFedora], "pipx")
	assert.Equal(t, []platform.PrivilegeMode{platform.ModeElevated}, essentials.AppliesTo.Modes)

	batDebian := get("bat:debian")
	require.Len(t, batDebian.Spec.Packages.Links, 1)
	assert.Equal(t, "/usr/bin/batcat", batDebian.Spec.Packages.Links[0].Target)
	assert.Equal(t, []platform.Family{platform.FamilyDebian}, batDebian.AppliesTo.Families)

	nvm := get("nvm")
	assert.Equal(t, "https://raw.githubusercontent.com/nvm-sh/nvm/v0.39.7/install.sh", nvm.Spec.Installer.URL)

	node := get("nodejs")
	assert.Equal(t, step.InstallerCommand, node.Spec.Installer.Kind)
	assert.Equal(t, step.IDs("nvm"), node.DependsOn)
	assert.Equal(t, []string{"~/.nvm/versions/node/v20*"}, node.Satisfied.Globs)

	omz := get("oh-my-zsh")
	assert.Contains(t, omz.Spec.Installer.Args, "--unattended")

	yazi := get("cargo:yazi")
	assert.Equal(t, step.LangCargo, yazi.Spec.Lang.Manager)
	assert.Equal(t, []string{"yazi-fm", "yazi-cli"}, yazi.Spec.Lang.Packages)
	assert.Equal(t, 45*time.Minute, yazi.Timeout)

	neovim := get("neovim")
	assert.Equal(t, step.ArchiveTarGz, neovim.Spec.Archive.Format)
	assert.Equal(t, "", neovim.Spec.Archive.URLFor("arm64"))
	assert.Contains(t, neovim.Spec.Archive.URLFor("amd64"), "v0.9.5/nvim-linux64.tar.gz")

	zellij := get("zellij-config")
	assert.Equal(t, step.PatchReplace, zellij.Spec.Patch.Mode)
	assert.Equal(t, `default_mode "locked"`, zellij.Spec.Patch.Line)
	assert.Equal(t, step.IDs("zellij-config:dump"), zellij.DependsOn)

	dump := get("zellij-config:dump")
	assert.Equal(t, step.InstallerCommand, dump.Spec.Installer.Kind)
	assert.Equal(t, []string{"setup", "--dump-config"}, dump.Spec.Installer.Run.Args)
	assert.Equal(t, "~/.config/zellij/config.kdl", dump.Spec.Installer.Run.Stdout)
	assert.Equal(t, []string{"~/.config/zellij/config.kdl"}, dump.Satisfied.Paths)

	for id, section := range map[string]string{
		"zellij-config:keybinds":       "keybinds",
		"zellij-config:locked-tmux":    "keybinds/locked",
		"zellij-config:tmux-returns":   "keybinds/tmux",
		"zellij-config:shared-returns": `keybinds/shared_except "normal" "locked"`,
	} {
		s := get(id)
		assert.Equal(t, step.PatchKDL, s.Spec.Patch.Mode, id)
		assert.Equal(t, section, s.Spec.Patch.Section, id)
	}
	assert.Equal(t, `SwitchToMode "Locked"`, get("zellij-config:tmux-returns").Spec.Patch.Value)

	btop := get("btop")
	assert.Equal(t, step.InstallerGit, btop.Spec.Installer.Kind)
	assert.Equal(t, "make", btop.Spec.Installer.Run.Name)
	assert.Contains(t, btop.Spec.Installer.Run.Args, "install")

	vnc := get("vnc")
	assert.Equal(t, []string{"tigervnc-server"}, vnc.Spec.Packages.Names[platform.FamilyFedora])
	assert.Equal(t, []string{"tigervnc"}, vnc.Spec.Packages.Names[platform.FamilyArch])

	lvim := get("lunarvim")
	assert.Equal(t, step.InstallerScript, lvim.Spec.Installer.Kind)
	assert.Equal(t, step.IDs("neovim", "miniconda"), lvim.DependsOn)

	assert.Equal(t, step.ArchiveTarGz, get("gitkraken").Spec.Archive.Format)
	assert.Equal(t, []platform.Family{platform.FamilyDebian}, get("gitkraken:deb").AppliesTo.Families)
	assert.Equal(t, "dnf", get("gitkraken:rpm").Spec.Installer.Run.Name)

	superfile := get("superfile:config")
	assert.Equal(t, step.PatchTOML, superfile.Spec.Patch.Mode)
	assert.False(t, superfile.Spec.Patch.Create)
	assert.Equal(t, false, superfile.Spec.Patch.Value)

	alias := get("git-config:alias")
	assert.Equal(t, step.PatchINI, alias.Spec.Patch.Mode)
	assert.Equal(t, "log --graph --decorate --pretty=oneline --abbrev-commit --all", alias.Spec.Patch.Value)

	jupyter := get("jupyter")
	assert.Equal(t, step.LangConda, jupyter.Spec.Lang.Manager)
}

func TestLoad_EmbeddedChecks(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Load()
	require.NoError(t, err)

	byLabel := make(map[string]verify.Check, len(cat.Checks))
	for _, c := range cat.Checks {
		_, dup := byLabel[c.Label]
		assert.False(t, dup, "duplicate check label %q", c.Label)
		byLabel[c.Label] = c
	}

	node := byLabel["Node.js 20 installed"]
	assert.Equal(t, verify.KindDirectoryExists, node.Kind)
	assert.Equal(t, "~/.nvm/versions/node/v20*", node.Target)

	nvim := byLabel["nvim version"]
	assert.Equal(t, verify.KindCommandRuns, nvim.Kind)
	assert.Equal(t, []string{"--version"}, nvim.Args)
	assert.Equal(t, "0.9.0", nvim.Expected.MinVersion)

	zellij := byLabel["zellij config valid"]
	assert.Equal(t, verify.KindCommandRuns, zellij.Kind)
	assert.Equal(t, []string{"setup", "--check"}, zellij.Args)

	docker := byLabel["docker on PATH"]
	assert.Equal(t, []platform.PrivilegeMode{platform.ModeElevated}, docker.AppliesTo.Modes)
}

const minimal = `
steps:
  - id: shell-framework
    method: binary-installer
    installer: {kind: script, url: "https://example.com/install.sh", interpreter: sh}
  - id: shell-plugin-a
    method: config-patch
    depends_on: [shell-framework]
    patch: {path: ~/.zshrc, mode: line, line: "plugins=(a)"}
checks:
  - {label: zsh, kind: command-on-path, target: zsh}
`

func TestParse_Minimal(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Parse([]byte(minimal), "test.yaml")
	require.NoError(t, err)
	require.Len(t, cat.Steps, 2)
	require.Len(t, cat.Checks, 1)
	assert.Equal(t, "test.yaml", cat.Source)
	assert.Equal(t, step.IDs("shell-framework"), cat.Steps[1].DependsOn)
	assert.True(t, cat.Steps[0].AppliesTo.IsZero())
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		yaml   string
		assert func(t *testing.T, err error)
	}{
		{
			name: "syntax",
			yaml: "steps: [\n",
			assert: func(t *testing.T, err error) {
				assert.True(t, config.IsUserError(err, config.ErrCodeCatalogParse))
			},
		},
		{
			name: "unknown field",
			yaml: strings.Replace(minimal, "depends_on:", "dependson:", 1),
			assert: func(t *testing.T, err error) {
				assert.True(t, config.IsUserError(err, config.ErrCodeCatalogParse))
			},
		},
		{
			name: "no steps",
			yaml: "checks: []\n",
			assert: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "steps")
			},
		},
		{
			name: "bad method",
			yaml: strings.Replace(minimal, "method: config-patch", "method: magic", 1),
			assert: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "steps[1].method")
			},
		},
		{
			name: "bad mode",
			yaml: strings.Replace(minimal, "method: config-patch", "method: config-patch\n    applies_to: {modes: [admin]}", 1),
			assert: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "steps[1].applies_to.modes[0]")
			},
		},
		{
			name: "spec does not match method",
			yaml: strings.Replace(minimal, "method: config-patch", "method: language-package", 1),
			assert: func(t *testing.T, err error) {
				assert.True(t, config.IsUserError(err, config.ErrCodeCatalogInvalid) || isList(err))
				assert.Contains(t, err.Error(), "shell-plugin-a")
			},
		},
		{
			name: "missing dependency",
			yaml: strings.Replace(minimal, "depends_on: [shell-framework]", "depends_on: [shell-frmework]", 1),
			assert: func(t *testing.T, err error) {
				require.True(t, step.IsConfigurationError(err))
				assert.Contains(t, err.Error(), "shell-frmework")
			},
		},
		{
			name: "cycle",
			yaml: strings.Replace(minimal, "method: binary-installer\n", "method: binary-installer\n    depends_on: [shell-plugin-a]\n", 1),
			assert: func(t *testing.T, err error) {
				require.True(t, step.IsConfigurationError(err))
				assert.Contains(t, err.Error(), "cyclic dependency")
			},
		},
		{
			name: "duplicate id",
			yaml: strings.Replace(minimal, "checks:", "  - id: shell-framework\n    method: config-patch\n    patch: {path: ~/.bashrc, mode: line, line: x}\nchecks:", 1),
			assert: func(t *testing.T, err error) {
				assert.True(t, step.IsConfigurationError(err))
			},
		},
		{
			name: "unsafe package name",
			yaml: strings.Replace(minimal, "checks:", "  - id: tools\n    method: language-package\n    lang: {manager: npm, packages: [\"pm2;curl x\"]}\nchecks:", 1),
			assert: func(t *testing.T, err error) {
				assert.True(t, isList(err))
				assert.Contains(t, err.Error(), "shell metacharacters")
			},
		},
		{
			name: "local git url",
			yaml: strings.Replace(minimal, "checks:", "  - id: plugin\n    method: binary-installer\n    installer: {kind: git, url: \"file:///srv/plugin\", dest: ~/.plugin}\nchecks:", 1),
			assert: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "HTTPS or SSH")
			},
		},
		{
			name: "check without pattern",
			yaml: minimal + "  - {label: theme, kind: file-contains-pattern, target: ~/.zshrc}\n",
			assert: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "requires a pattern")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cat, err := catalog.Parse([]byte(tt.yaml), "test.yaml")
			require.Error(t, err)
			assert.Nil(t, cat)
			tt.assert(t, err)
		})
	}
}

func isList(err error) bool {
	_, ok := err.(*config.ErrorList)
	return ok
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	cat, err := catalog.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, cat.Source)

	_, err = catalog.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, config.IsUserError(err, config.ErrCodeCatalogNotFound))
}
