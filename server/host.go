package server

import (
	"fmt"
	"io"

	"github.com/sambeau/sage/config"
	"github.com/sambeau/sage/pkg/sage/evaluator"
	"github.com/sambeau/sage/pkg/sage/filters"
	"github.com/sambeau/sage/pkg/sage/sage"
	"github.com/sambeau/sage/pkg/sage/vfs"
)

// OpenFS returns the file system scripts are read from: the configured
// SFTP directory when one is set, otherwise scripts.root on local disk.
// The returned closer releases the SFTP connection and is never nil.
func OpenFS(cfg *config.Config) (vfs.FileSystem, io.Closer, error) {
	if cfg.SFTP.Enabled() {
		fs, err := vfs.DialSFTP(vfs.SFTPConfig{
			Host:           cfg.SFTP.Host,
			Port:           cfg.SFTP.Port,
			User:           cfg.SFTP.User,
			Password:       cfg.SFTP.Password,
			KeyFile:        cfg.SFTP.KeyFile,
			Passphrase:     cfg.SFTP.Passphrase,
			KnownHostsFile: cfg.SFTP.KnownHostsFile,
			Root:           cfg.SFTP.Root,
			Timeout:        cfg.SFTP.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to sftp %s: %w", cfg.SFTP.Host, err)
		}
		return fs, fs, nil
	}

	fs, err := vfs.NewDirFS(cfg.Scripts.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("opening scripts root: %w", err)
	}
	return fs, nopCloser{}, nil
}

// ScriptOptions builds the interpreter options for cfg: the standard host
// registry, the loader settings and a module cache shared by every
// evaluation made with them.
func ScriptOptions(cfg *config.Config, fs vfs.FileSystem) sage.Options {
	var db *filters.Database
	if cfg.Database.Enabled() {
		db = &filters.Database{
			Driver:  cfg.Database.Driver,
			DSN:     cfg.Database.DSN,
			MaxOpen: cfg.Database.MaxOpen,
		}
	}

	fetcher := evaluator.NewHTTPFetcher(cfg.Scripts.FetchTimeout)
	opts := sage.Options{
		Host: filters.Standard(filters.Config{
			Locale:      cfg.Locale,
			FS:          fs,
			Database:    db,
			HTTPTimeout: cfg.Scripts.FetchTimeout,
		}),
		FS:       fs,
		Root:     "/",
		Fetcher:  fetcher,
		GistAPI:  cfg.Scripts.GistAPI,
		Cache:    evaluator.NewModuleCache(),
		MaxDepth: cfg.Scripts.MaxDepth,
	}
	if cfg.Scripts.IndexURL != "" {
		opts.Index = &evaluator.ManifestIndex{URL: cfg.Scripts.IndexURL, Fetcher: fetcher}
	}
	return opts
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
