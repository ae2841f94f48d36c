package vfs

import (
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig describes a remote script directory reached over SSH.
type SFTPConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	KeyFile        string
	Passphrase     string
	KnownHostsFile string
	Root           string
	Timeout        time.Duration
}

// SFTPFS serves files from a directory on an SFTP server.
type SFTPFS struct {
	client *sftp.Client
	ssh    *ssh.Client
	root   string
}

// DialSFTP connects to the server described by cfg.
func DialSFTP(cfg SFTPConfig) (*SFTPFS, error) {
	var auth []ssh.AuthMethod

	if cfg.KeyFile != "" {
		keyData, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		var signer ssh.Signer
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyData)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("sftp: no authentication method configured for %s@%s", cfg.User, cfg.Host)
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known_hosts: %w", err)
		}
		hostKey = cb
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}

	sshClient, err := ssh.Dial("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(port)), &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, err
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, err
	}
	return &SFTPFS{client: client, ssh: sshClient, root: cfg.Root}, nil
}

// NewSFTPFS wraps an existing client. root is the remote directory that
// virtual paths are resolved against.
func NewSFTPFS(client *sftp.Client, root string) *SFTPFS {
	return &SFTPFS{client: client, root: root}
}

func (s *SFTPFS) resolve(name string) string {
	return path.Join("/", s.root, Clean(name))
}

func (s *SFTPFS) ReadFile(name string) ([]byte, error) {
	f, err := s.client.Open(s.resolve(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile writes data to name, creating parent directories as needed.
func (s *SFTPFS) WriteFile(name string, data []byte) error {
	full := s.resolve(name)
	if dir := path.Dir(full); dir != "/" {
		if err := s.client.MkdirAll(dir); err != nil {
			return err
		}
	}
	f, err := s.client.Create(full)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *SFTPFS) IsDir(name string) bool {
	info, err := s.client.Stat(s.resolve(name))
	return err == nil && info.IsDir()
}

// Close releases the SFTP session and, when DialSFTP opened it, the SSH
// connection.
func (s *SFTPFS) Close() error {
	err := s.client.Close()
	if s.ssh != nil {
		if cerr := s.ssh.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
