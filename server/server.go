// Package server is the HTTP host for Sage pages.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/sambeau/sage/config"
	"github.com/sambeau/sage/pkg/sage/sage"
	"github.com/sambeau/sage/pkg/sage/vfs"
)

// Server renders Sage pages over HTTP.
type Server struct {
	config  *config.Config
	stdout  io.Writer
	stderr  io.Writer
	fs      vfs.FileSystem
	closer  io.Closer
	opts    sage.Options
	pages   *pageCache
	server  *http.Server
	watcher *vfs.Watcher
}

// New creates a server for cfg, opening the script file system it names.
func New(cfg *config.Config, stdout, stderr io.Writer) (*Server, error) {
	fs, closer, err := OpenFS(cfg)
	if err != nil {
		return nil, err
	}
	s := NewWithFS(cfg, fs, stdout, stderr)
	s.closer = closer
	return s, nil
}

// NewWithFS creates a server reading scripts from fs.
func NewWithFS(cfg *config.Config, fs vfs.FileSystem, stdout, stderr io.Writer) *Server {
	return &Server{
		config: cfg,
		stdout: stdout,
		stderr: stderr,
		fs:     fs,
		closer: nopCloser{},
		opts:   ScriptOptions(cfg, fs),
		pages:  newPageCache(fs),
	}
}

// Handler returns the full handler chain: pages, compression and request
// logging.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = &pageHandler{server: s}
	handler = newCompressionHandler(handler, s.config.Compression)
	if !s.config.Logging.Quiet && s.config.Logging.Level != "error" {
		handler = newRequestLogger(handler, s.stdout, s.config.Logging.Format)
	}
	return handler
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.closer.Close()

	if s.config.Server.Dev {
		if err := s.startWatcher(ctx); err != nil {
			s.logError("failed to start watcher: %v", err)
		} else {
			defer s.watcher.Close()
		}
	}

	addr := s.listenAddr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		mode := ""
		if s.config.Server.Dev {
			mode = " in development mode"
		}
		fmt.Fprintf(s.stdout, "Starting Sage%s on http://%s\n", mode, addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintf(s.stdout, "\nShutting down gracefully...\n")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// startWatcher evicts cached pages when files below a local script root
// change. Remote file systems are not watched.
func (s *Server) startWatcher(ctx context.Context) error {
	dir, ok := s.fs.(*vfs.DirFS)
	if !ok {
		return nil
	}
	root := dir.Root()
	w, err := vfs.NewWatcher([]string{root}, []string{ScriptExt}, func(changed string) {
		rel, err := filepath.Rel(root, changed)
		if err != nil || strings.HasPrefix(rel, "..") {
			s.pages.clear()
			return
		}
		s.pages.evict("/" + filepath.ToSlash(rel))
	}, s.stdout, s.stderr)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Close()
		return err
	}
	s.watcher = w
	return nil
}

// listenAddr returns the address to listen on based on configuration.
func (s *Server) listenAddr() string {
	return net.JoinHostPort(s.config.Server.Host, fmt.Sprint(s.config.Server.Port))
}

func (s *Server) logError(format string, args ...any) {
	fmt.Fprintf(s.stderr, "[ERROR] "+format+"\n", args...)
}
