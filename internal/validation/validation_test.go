package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "simple name", input: "git", wantErr: nil},
		{name: "with hyphen", input: "build-essential", wantErr: nil},
		{name: "with dot", input: "python3.11", wantErr: nil},
		{name: "with plus", input: "g++", wantErr: nil},

		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "with semicolon", input: "git;rm -rf", wantErr: ErrCommandInjection},
		{name: "with backtick", input: "git`whoami`", wantErr: ErrCommandInjection},
		{name: "with newline", input: "git\nrm", wantErr: ErrCommandInjection},
		{name: "with space", input: "git repo", wantErr: ErrInvalidPackageName},
		{name: "starts with hyphen", input: "-git", wantErr: ErrInvalidPackageName},
		{name: "too long", input: strings.Repeat("a", 300), wantErr: ErrInvalidPackageName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PackageName(tt.input)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLangPackage(t *testing.T) {
	tests := []struct {
		manager string
		input   string
		valid   bool
	}{
		{"cargo", "yazi-fm", true},
		{"cargo", "bat@0.22.1", true},
		{"cargo", "--locked", false},
		{"go", "mvdan.cc/sh/v3/cmd/shfmt@latest", true},
		{"go", "shfmt", false},
		{"pipx", "huggingface_hub[cli,hf_xet]", true},
		{"pipx", "ruff>=0.1.0", true},
		{"pipx", "black<24", true},
		{"conda", "numpy<2", true},
		{"pipx", "uv; curl evil", false},
		{"pipx", "ruff>=0.1.0|sh", false},
		{"cargo", "bat>1", false},
		{"conda", "jupyterlab", true},
		{"npm", "@anthropic-ai/claude-code", true},
		{"npm", "pnpm@10.24.0", true},
		{"npm", "$(whoami)", false},
	}

	for _, tt := range tests {
		t.Run(tt.manager+"/"+tt.input, func(t *testing.T) {
			err := LangPackage(tt.manager, tt.input)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	assert.ErrorIs(t, LangPackage("gem", "rails"), ErrUnknownManager)
	assert.ErrorIs(t, LangPackage("pipx", "ruff>=0.1.0$(id)"), ErrCommandInjection)
	assert.ErrorIs(t, PackageName("bat>out"), ErrCommandInjection)
}

func TestGitURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "https", input: "https://github.com/junegunn/fzf.git", wantErr: nil},
		{name: "https without suffix", input: "https://github.com/zsh-users/zsh-autosuggestions", wantErr: nil},
		{name: "ssh", input: "git@github.com:user/repo.git", wantErr: nil},
		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "local path", input: "/srv/repo", wantErr: ErrInvalidGitURL},
		{name: "plain http", input: "http://example.com/repo.git", wantErr: ErrInvalidGitURL},
		{name: "injection", input: "https://github.com/x/y;rm", wantErr: ErrCommandInjection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GitURL(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValue(t *testing.T) {
	assert.NoError(t, ConfigValue("log --graph --decorate --pretty=oneline"))
	assert.NoError(t, ConfigValue(""))
	assert.ErrorIs(t, ConfigValue("x\n[core]"), ErrNewlineInjection)
	assert.ErrorIs(t, ConfigValue("x\x00y"), ErrInvalidConfigValue)
}
