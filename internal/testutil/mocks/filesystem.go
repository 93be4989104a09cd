package mocks

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// FileSystem is a thread-safe in-memory test double for ports.FileSystem.
// A directory exists if it was created explicitly or if any entry lives below it.
type FileSystem struct {
	mu       sync.RWMutex
	files    map[string][]byte
	modes    map[string]os.FileMode
	symlinks map[string]string
	dirs     map[string]bool
	writes   map[string]int
}

// NewFileSystem creates a new FileSystem mock.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files:    make(map[string][]byte),
		modes:    make(map[string]os.FileMode),
		symlinks: make(map[string]string),
		dirs:     make(map[string]bool),
		writes:   make(map[string]int),
	}
}

// AddFile adds a file to the mock filesystem.
func (fs *FileSystem) AddFile(path string, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = []byte(content)
	fs.modes[path] = 0o644
}

// AddSymlink adds a symlink to the mock filesystem.
func (fs *FileSystem) AddSymlink(link, target string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.symlinks[link] = target
}

// AddDir adds a directory to the mock filesystem.
func (fs *FileSystem) AddDir(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[path] = true
}

// Content returns a file's content as a string, or "" when absent.
func (fs *FileSystem) Content(path string) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return string(fs.files[path])
}

// Mode returns the recorded permission bits of a file.
func (fs *FileSystem) Mode(path string) os.FileMode {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.modes[path]
}

// Writes returns how many times a path was written or appended to.
func (fs *FileSystem) Writes(path string) int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.writes[path]
}

// ReadFile reads a file from the mock filesystem.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if content, ok := fs.files[path]; ok {
		return append([]byte(nil), content...), nil
	}
	return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
}

// WriteFile writes a file to the mock filesystem.
func (fs *FileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = append([]byte(nil), data...)
	fs.modes[path] = perm
	fs.writes[path]++
	return nil
}

// AppendFile appends to a file in the mock filesystem, creating it if needed.
func (fs *FileSystem) AppendFile(path string, data []byte, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[path]; !ok {
		fs.modes[path] = perm
	}
	fs.files[path] = append(fs.files[path], data...)
	fs.writes[path]++
	return nil
}

// Exists checks if a path exists in the mock filesystem.
func (fs *FileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if _, ok := fs.files[path]; ok {
		return true
	}
	if _, ok := fs.symlinks[path]; ok {
		return true
	}
	return fs.isDirLocked(path)
}

// IsDir checks if a path is a directory in the mock filesystem.
func (fs *FileSystem) IsDir(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.isDirLocked(path)
}

func (fs *FileSystem) isDirLocked(path string) bool {
	if fs.dirs[path] {
		return true
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range fs.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for p := range fs.dirs {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// IsSymlink checks if a path is a symlink in the mock filesystem.
func (fs *FileSystem) IsSymlink(path string) (bool, string) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if target, ok := fs.symlinks[path]; ok {
		return true, target
	}
	return false, ""
}

// CreateSymlink creates a symlink in the mock filesystem.
func (fs *FileSystem) CreateSymlink(target, link string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.symlinks[link]; ok {
		return &os.LinkError{Op: "symlink", Old: target, New: link, Err: os.ErrExist}
	}
	if _, ok := fs.files[link]; ok {
		return &os.LinkError{Op: "symlink", Old: target, New: link, Err: os.ErrExist}
	}
	fs.symlinks[link] = target
	return nil
}

// Remove removes a single entry from the mock filesystem.
func (fs *FileSystem) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, path)
	delete(fs.modes, path)
	delete(fs.symlinks, path)
	delete(fs.dirs, path)
	return nil
}

// RemoveAll removes a path and everything below it.
func (fs *FileSystem) RemoveAll(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range fs.files {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.files, p)
			delete(fs.modes, p)
		}
	}
	for p := range fs.symlinks {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.symlinks, p)
		}
	}
	for p := range fs.dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(fs.dirs, p)
		}
	}
	return nil
}

// MkdirAll creates a directory in the mock filesystem.
func (fs *FileSystem) MkdirAll(path string, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[path] = true
	return nil
}

// Rename renames a file, symlink or directory tree in the mock filesystem.
func (fs *FileSystem) Rename(oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if content, ok := fs.files[oldPath]; ok {
		fs.files[newPath] = content
		fs.modes[newPath] = fs.modes[oldPath]
		delete(fs.files, oldPath)
		delete(fs.modes, oldPath)
		return nil
	}
	if target, ok := fs.symlinks[oldPath]; ok {
		fs.symlinks[newPath] = target
		delete(fs.symlinks, oldPath)
		return nil
	}
	if fs.isDirLocked(oldPath) {
		prefix := strings.TrimSuffix(oldPath, "/") + "/"
		for p, content := range fs.files {
			if strings.HasPrefix(p, prefix) {
				moved := newPath + "/" + strings.TrimPrefix(p, prefix)
				fs.files[moved] = content
				fs.modes[moved] = fs.modes[p]
				delete(fs.files, p)
				delete(fs.modes, p)
			}
		}
		delete(fs.dirs, oldPath)
		fs.dirs[newPath] = true
		return nil
	}
	return &os.LinkError{Op: "rename", Old: oldPath, New: newPath, Err: os.ErrNotExist}
}

// Chmod records permission bits for a file.
func (fs *FileSystem) Chmod(path string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[path]; !ok {
		return &os.PathError{Op: "chmod", Path: path, Err: os.ErrNotExist}
	}
	fs.modes[path] = perm
	return nil
}

// Glob matches files, symlinks and directories, implicit ones included,
// against a shell pattern.
func (fs *FileSystem) Glob(pattern string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	seen := make(map[string]bool)
	var matches []string
	try := func(p string) error {
		ok, err := filepath.Match(pattern, p)
		if err != nil {
			return err
		}
		if ok && !seen[p] {
			seen[p] = true
			matches = append(matches, p)
		}
		return nil
	}
	for p := range fs.files {
		// Parents of files are implicit directories.
		for dir := p; dir != "/" && dir != "."; dir = filepath.Dir(dir) {
			if err := try(dir); err != nil {
				return nil, err
			}
		}
	}
	for p := range fs.symlinks {
		if err := try(p); err != nil {
			return nil, err
		}
	}
	for p := range fs.dirs {
		if err := try(p); err != nil {
			return nil, err
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// GetFileInfo returns metadata about a file in the mock filesystem.
func (fs *FileSystem) GetFileInfo(path string) (ports.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if content, ok := fs.files[path]; ok {
		return ports.FileInfo{
			Size:    int64(len(content)),
			Mode:    fs.modes[path],
			ModTime: time.Now(),
		}, nil
	}

	if fs.isDirLocked(path) {
		return ports.FileInfo{
			Mode:    os.ModeDir | 0o755,
			ModTime: time.Now(),
			IsDir:   true,
		}, nil
	}

	return ports.FileInfo{}, fmt.Errorf("stat %s: %w", path, os.ErrNotExist)
}

// Ensure FileSystem implements ports.FileSystem.
var _ ports.FileSystem = (*FileSystem)(nil)
