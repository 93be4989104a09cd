package filesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRealFileSystem(t *testing.T) {
	fs := NewRealFileSystem()
	if fs == nil {
		t.Error("NewRealFileSystem() should not return nil")
	}
}

func TestRealFileSystem_WriteFileIsAtomic(t *testing.T) {
	fs := NewRealFileSystem()
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "config.kdl")

	if err := fs.WriteFile(target, []byte("default_mode \"locked\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := fs.WriteFile(target, []byte("v2\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	content, err := fs.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "v2\n" {
		t.Errorf("ReadFile() = %q, want %q", content, "v2\n")
	}

	info, err := fs.GetFileInfo(target)
	if err != nil {
		t.Fatalf("GetFileInfo() error = %v", err)
	}
	if info.Mode.Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode.Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestRealFileSystem_AppendFile(t *testing.T) {
	fs := NewRealFileSystem()
	target := filepath.Join(t.TempDir(), ".tmux.conf")

	if err := fs.AppendFile(target, []byte("a\n"), 0o644); err != nil {
		t.Fatalf("AppendFile() error = %v", err)
	}
	if err := fs.AppendFile(target, []byte("b\n"), 0o644); err != nil {
		t.Fatalf("AppendFile() error = %v", err)
	}

	content, _ := fs.ReadFile(target)
	if string(content) != "a\nb\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRealFileSystem_Symlink(t *testing.T) {
	fs := NewRealFileSystem()
	dir := t.TempDir()
	target := filepath.Join(dir, "batcat")
	link := filepath.Join(dir, "bat")

	if err := fs.WriteFile(target, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := fs.CreateSymlink(target, link); err != nil {
		t.Fatalf("CreateSymlink() error = %v", err)
	}

	isLink, got := fs.IsSymlink(link)
	if !isLink || got != target {
		t.Errorf("IsSymlink() = %v, %q", isLink, got)
	}
	if isLink, _ := fs.IsSymlink(target); isLink {
		t.Error("IsSymlink() should be false for regular file")
	}
}

func TestRealFileSystem_TreeOperations(t *testing.T) {
	fs := NewRealFileSystem()
	dir := t.TempDir()
	tree := filepath.Join(dir, "nvim-linux64", "bin")

	if err := fs.MkdirAll(tree, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := fs.WriteFile(filepath.Join(tree, "nvim"), []byte("elf"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := fs.Chmod(filepath.Join(tree, "nvim"), 0o755); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}

	dest := filepath.Join(dir, ".nvim")
	if err := fs.Rename(filepath.Join(dir, "nvim-linux64"), dest); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if !fs.IsDir(dest) {
		t.Error("IsDir() should be true after rename")
	}

	matches, err := fs.Glob(filepath.Join(dest, "bin", "nv*"))
	if err != nil || len(matches) != 1 {
		t.Errorf("Glob() = %v, %v", matches, err)
	}

	if err := fs.RemoveAll(dest); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if fs.Exists(dest) {
		t.Error("Exists() should be false after RemoveAll")
	}
}

func TestRealFileSystem_ReadMissing(t *testing.T) {
	fs := NewRealFileSystem()

	_, err := fs.ReadFile(filepath.Join(t.TempDir(), "missing"))
	if !os.IsNotExist(err) {
		t.Errorf("ReadFile() error = %v, want not-exist", err)
	}
}
