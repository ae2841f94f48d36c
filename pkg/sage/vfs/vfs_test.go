package vfs

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/sftp"
)

func TestClean(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"lib1.l", "/lib1.l"},
		{"/dir/lib2.l", "/dir/lib2.l"},
		{"../../etc/passwd", "/etc/passwd"},
		{"a/./b/../c.l", "/a/c.l"},
		{`dir\win.l`, "/dir/win.l"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.expected {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMemFS(t *testing.T) {
	m := NewMemFS()
	if err := m.WriteFile("/dir/lib2.l", []byte("(defn two [] 2)")); err != nil {
		t.Fatal(err)
	}

	data, err := m.ReadFile("dir/lib2.l")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "(defn two [] 2)" {
		t.Errorf("unexpected content %q", data)
	}

	if _, err := m.ReadFile("/missing.l"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if !m.IsDir("/dir") || m.IsDir("/dir/lib2.l") {
		t.Error("IsDir should recognise directories only")
	}
	if err := m.WriteFile("/", nil); err == nil {
		t.Error("writing the root should fail")
	}
}

type flatFS struct{ *MemFS }

func (flatFS) IsDir(string) bool { return false }

type plainFS struct{ m *MemFS }

func (p plainFS) ReadFile(name string) ([]byte, error)    { return p.m.ReadFile(name) }
func (p plainFS) WriteFile(name string, data []byte) error { return p.m.WriteFile(name, data) }

func TestIsDir(t *testing.T) {
	m := NewMemFS()
	if err := m.WriteFile("/docs/index.l", nil); err != nil {
		t.Fatal(err)
	}
	if !IsDir(m, "/docs") {
		t.Error("IsDir should use the file system's DirChecker")
	}
	if IsDir(flatFS{m}, "/docs") {
		t.Error("IsDir should defer to an overriding DirChecker")
	}
	if IsDir(plainFS{m}, "/docs") {
		t.Error("a file system without DirChecker has no directories")
	}
}

func TestMemFSReturnsCopies(t *testing.T) {
	m := NewMemFS()
	src := []byte("abc")
	_ = m.WriteFile("a.l", src)
	src[0] = 'x'

	data, _ := m.ReadFile("a.l")
	data[1] = 'y'

	again, _ := m.ReadFile("a.l")
	if string(again) != "abc" {
		t.Errorf("stored content was aliased: %q", again)
	}
}

func TestDirFS(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDirFS(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.WriteFile("/nested/lib.l", []byte("(+ 1 2)")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested", "lib.l")); err != nil {
		t.Errorf("file not created on disk: %v", err)
	}

	data, err := d.ReadFile("../../nested/lib.l")
	if err != nil {
		t.Fatalf("paths must stay inside the root: %v", err)
	}
	if string(data) != "(+ 1 2)" {
		t.Errorf("unexpected content %q", data)
	}
	if !d.IsDir("nested") {
		t.Error("expected nested to be a directory")
	}
}

func TestDirFSSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require admin on Windows")
	}

	// tmp/
	//   root/
	//     real.l
	//     alias.l -> real.l
	//     lib -> ../outside
	//   outside/
	//     secret.l
	tmp := t.TempDir()
	root := filepath.Join(tmp, "root")
	outside := filepath.Join(tmp, "outside")
	for _, dir := range []string{root, outside} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "real.l"), []byte("(def ok t)"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outside, "secret.l"), []byte("(def secret t)"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "real.l"), filepath.Join(root, "alias.l")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "lib")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	d, err := NewDirFS(root)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("link inside the root", func(t *testing.T) {
		data, err := d.ReadFile("/alias.l")
		if err != nil || string(data) != "(def ok t)" {
			t.Errorf("ReadFile = %q, %v", data, err)
		}
	})

	t.Run("read through an escaping link", func(t *testing.T) {
		if _, err := d.ReadFile("/lib/secret.l"); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("error = %v, want ErrOutsideRoot", err)
		}
		if d.IsDir("/lib") {
			t.Error("IsDir should not see through an escaping link")
		}
	})

	t.Run("write through an escaping link", func(t *testing.T) {
		if err := d.WriteFile("/lib/deep/new.l", []byte("x")); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("error = %v, want ErrOutsideRoot", err)
		}
		if _, err := os.Stat(filepath.Join(outside, "deep")); !os.IsNotExist(err) {
			t.Error("write created files outside the root")
		}
	})

	t.Run("new file below the root", func(t *testing.T) {
		if err := d.WriteFile("/fresh/a.l", []byte("x")); err != nil {
			t.Errorf("write: %v", err)
		}
	})
}

func TestNewDirFSRejectsFiles(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f.l")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDirFS(file); err == nil {
		t.Error("expected an error for a non-directory root")
	}
}

func TestSFTPFS(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go server.Serve()
	defer server.Close()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	s := NewSFTPFS(client, "/")
	defer s.Close()

	if err := s.WriteFile("remote.l", []byte("(defn r [] 1)")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := s.ReadFile("/remote.l")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "(defn r [] 1)" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 8)

	w, err := NewWatcher([]string{dir}, []string{".l"}, func(p string) { changed <- p }, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "page.l")
	if err := os.WriteFile(target, []byte("(println 1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got != target {
			t.Errorf("expected change for %s, got %s", target, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
