// Package vfs provides the virtual file systems scripts are loaded from.
//
// Paths are slash separated and always interpreted relative to the file
// system root: "/lib/a.l" and "lib/a.l" name the same file, and ".."
// cannot climb above the root.
package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileSystem is the read/write surface used by the module loader and by
// hosts that seed library files.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// DirChecker is implemented by file systems that can tell directories
// apart from files.
type DirChecker interface {
	IsDir(name string) bool
}

// IsDir reports whether name is a directory in fs. File systems that do
// not implement DirChecker have no directories.
func IsDir(fs FileSystem, name string) bool {
	dc, ok := fs.(DirChecker)
	return ok && dc.IsDir(name)
}

// Clean normalises a virtual path to its rooted form.
func Clean(name string) string {
	return path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
}

// MemFS is an in-memory file system. The zero value is not usable; call
// NewMemFS.
type MemFS struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemFS returns an empty in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// ReadFile returns a copy of the named file.
func (m *MemFS) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[Clean(name)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// WriteFile stores data under name, replacing any previous content.
func (m *MemFS) WriteFile(name string, data []byte) error {
	clean := Clean(name)
	if clean == "/" {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[clean] = append([]byte(nil), data...)
	return nil
}

// IsDir reports whether any file lives below name.
func (m *MemFS) IsDir(name string) bool {
	prefix := Clean(name)
	if prefix != "/" {
		prefix += "/"
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Paths lists every stored file in lexical order.
func (m *MemFS) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ErrOutsideRoot is returned when a path resolves, through symlinks, to a
// location outside a DirFS root.
var ErrOutsideRoot = errors.New("path escapes the file system root")

// DirFS serves files from a directory on the local disk. Symlinks are
// followed only while they stay below the root.
type DirFS struct {
	root     string
	realRoot string // root with symlinks resolved
}

// NewDirFS returns a file system rooted at dir.
func NewDirFS(dir string) (*DirFS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	realRoot, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	return &DirFS{root: abs, realRoot: realRoot}, nil
}

// Root returns the absolute directory backing the file system.
func (d *DirFS) Root() string { return d.root }

// resolve maps name below the root and rejects it if a symlink on the way
// leads outside. Missing trailing components are allowed so that writes
// can create them.
func (d *DirFS) resolve(op, name string) (string, error) {
	full := filepath.Join(d.root, filepath.FromSlash(Clean(name)))

	existing, rest := full, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			existing = filepath.Join(resolved, rest)
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return full, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}

	rel, err := filepath.Rel(d.realRoot, existing)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &fs.PathError{Op: op, Path: name, Err: ErrOutsideRoot}
	}
	return full, nil
}

func (d *DirFS) ReadFile(name string) ([]byte, error) {
	full, err := d.resolve("read", name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// WriteFile writes data to name, creating parent directories as needed.
func (d *DirFS) WriteFile(name string, data []byte) error {
	full, err := d.resolve("write", name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (d *DirFS) IsDir(name string) bool {
	full, err := d.resolve("stat", name)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.IsDir()
}
