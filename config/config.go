package config

import "time"

// Config represents the complete Sage configuration
type Config struct {
	BaseDir     string            `yaml:"-"` // Directory containing config file, for resolving relative paths
	Server      ServerConfig      `yaml:"server"`
	Scripts     ScriptsConfig     `yaml:"scripts"`
	Database    DatabaseConfig    `yaml:"database"`
	SFTP        SFTPConfig        `yaml:"sftp"`
	Locale      string            `yaml:"locale"` // Default locale for /date-format and /format-number (e.g. "en_GB")
	Compression CompressionConfig `yaml:"compression"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Dev  bool   `yaml:"-"` // Set via CLI flag, not config
}

// ScriptsConfig controls where scripts come from and how `load` resolves
// remote locators.
type ScriptsConfig struct {
	Root         string        `yaml:"root"`          // Directory pages and bare `load` names resolve against
	AllowRemote  *bool         `yaml:"allow_remote"`  // Permit gist, URL and index loads (default: true)
	IndexURL     string        `yaml:"index_url"`     // Manifest mapping short names to URLs
	GistAPI      string        `yaml:"gist_api"`      // Gist API base (default: https://api.github.com/gists/)
	FetchTimeout time.Duration `yaml:"fetch_timeout"` // Timeout for one remote fetch (default: 30s)
	MaxDepth     int           `yaml:"max_depth"`     // Recursion limit (0 = interpreter default)
}

// RemoteAllowed reports the effective allow_remote setting.
func (s ScriptsConfig) RemoteAllowed() bool {
	return s.AllowRemote == nil || *s.AllowRemote
}

// DatabaseConfig configures the /db-* host operations. An empty driver
// and DSN leaves them unregistered.
type DatabaseConfig struct {
	Driver  string `yaml:"driver"`   // sqlite, mysql or postgres
	DSN     string `yaml:"dsn"`      // Driver data source name; a path for sqlite
	MaxOpen int    `yaml:"max_open"` // Maximum open connections (0 = driver default)
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.DSN != ""
}

// SFTPConfig serves scripts from a remote directory instead of
// scripts.root.
type SFTPConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"` // default: 22
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	KeyFile        string        `yaml:"key_file"`
	Passphrase     string        `yaml:"passphrase"`
	KnownHostsFile string        `yaml:"known_hosts_file"`
	Root           string        `yaml:"root"` // Remote script directory
	Timeout        time.Duration `yaml:"timeout"`
}

// Enabled reports whether an SFTP host was configured.
func (s SFTPConfig) Enabled() bool {
	return s.Host != ""
}

// CompressionConfig holds HTTP response compression settings
type CompressionConfig struct {
	Enabled bool   `yaml:"enabled"`  // Enable gzip compression (default: true)
	Level   string `yaml:"level"`    // Compression level: "fastest", "default", "best", "none" (default: "default")
	MinSize int    `yaml:"min_size"` // Minimum response size to compress in bytes (default: 1024)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stderr, stdout, or file path
	Quiet  bool   `yaml:"quiet"`  // suppress request logs
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Scripts: ScriptsConfig{
			Root:         ".",
			FetchTimeout: 30 * time.Second,
		},
		SFTP: SFTPConfig{
			Port:    22,
			Timeout: 10 * time.Second,
		},
		Compression: CompressionConfig{
			Enabled: true,
			Level:   "default",
			MinSize: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
