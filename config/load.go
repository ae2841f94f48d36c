package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the resolved path.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Dir(absPath), getenv)
	if err != nil {
		return nil, "", err
	}
	return cfg, absPath, nil
}

// Parse decodes YAML over Defaults() and resolves relative paths against
// baseDir.
func Parse(data []byte, baseDir string, getenv func(string) string) (*Config, error) {
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.BaseDir = baseDir

	if cfg.Scripts.Root != "" && !filepath.IsAbs(cfg.Scripts.Root) {
		cfg.Scripts.Root = filepath.Join(baseDir, cfg.Scripts.Root)
	}

	// Only a sqlite DSN is a path
	if isSQLite(cfg.Database.Driver) && cfg.Database.DSN != "" && !filepath.IsAbs(cfg.Database.DSN) &&
		!strings.HasPrefix(cfg.Database.DSN, "file:") && cfg.Database.DSN != ":memory:" {
		cfg.Database.DSN = filepath.Join(baseDir, cfg.Database.DSN)
	}

	for _, p := range []*string{&cfg.SFTP.KeyFile, &cfg.SFTP.KnownHostsFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}

	if err := validateBasic(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isSQLite(driver string) bool {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return true
	}
	return false
}

// Warnings returns non-fatal configuration issues that should be reported to the user.
func Warnings(cfg *Config) []string {
	var warnings []string

	if !cfg.Scripts.RemoteAllowed() && (cfg.Scripts.IndexURL != "" || cfg.Scripts.GistAPI != "") {
		warnings = append(warnings, "scripts: allow_remote is false - index_url and gist_api will not be used")
	}

	if cfg.SFTP.Enabled() && cfg.SFTP.KnownHostsFile == "" {
		warnings = append(warnings, "sftp: no known_hosts_file - the server's host key will not be verified")
	}

	if cfg.Database.Enabled() && isSQLite(cfg.Database.Driver) && cfg.Database.MaxOpen > 1 {
		warnings = append(warnings, "database: sqlite with max_open > 1 may see 'database is locked' errors under write load")
	}

	return warnings
}

// ErrNoConfig is returned by Load when no path was given and none of the
// default locations holds a config file.
var ErrNoConfig = errors.New("no config file found (tried SAGE_CONFIG, sage.yaml, ~/.config/sage/sage.yaml)")

// resolveConfigPath finds the config file to use.
// Search order: explicit path > SAGE_CONFIG env > ./sage.yaml > ~/.config/sage/sage.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("SAGE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("SAGE_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	if _, err := os.Stat("sage.yaml"); err == nil {
		return "sage.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "sage", "sage.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", ErrNoConfig
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		value := getenv(string(parts[1]))
		if value == "" && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// validateBasic collects every configuration problem into one error.
func validateBasic(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port: %d (must be 1-65535)", cfg.Server.Port))
	}

	if cfg.Scripts.FetchTimeout < 0 {
		errs = append(errs, "scripts: fetch_timeout must not be negative")
	}
	if cfg.Scripts.MaxDepth < 0 {
		errs = append(errs, "scripts: max_depth must not be negative")
	}
	for _, field := range []struct{ name, value string }{
		{"index_url", cfg.Scripts.IndexURL},
		{"gist_api", cfg.Scripts.GistAPI},
	} {
		if field.value == "" {
			continue
		}
		if u, err := url.Parse(field.value); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("scripts: %s must be an http or https URL, got %q", field.name, field.value))
		}
	}

	validDrivers := map[string]bool{"": true, "sqlite": true, "sqlite3": true, "mysql": true, "mariadb": true, "postgres": true, "postgresql": true, "pq": true}
	if !validDrivers[strings.ToLower(cfg.Database.Driver)] {
		errs = append(errs, fmt.Sprintf("database: unsupported driver %q (must be sqlite, mysql or postgres)", cfg.Database.Driver))
	}
	if cfg.Database.Driver != "" && cfg.Database.DSN == "" {
		errs = append(errs, "database: dsn is required when a driver is set")
	}
	if cfg.Database.MaxOpen < 0 {
		errs = append(errs, "database: max_open must not be negative")
	}

	if cfg.SFTP.Enabled() {
		if cfg.SFTP.User == "" {
			errs = append(errs, "sftp: user is required")
		}
		if cfg.SFTP.Password == "" && cfg.SFTP.KeyFile == "" {
			errs = append(errs, "sftp: password or key_file is required")
		}
	}

	validLevels := map[string]bool{"fastest": true, "default": true, "best": true, "none": true}
	if !validLevels[cfg.Compression.Level] {
		errs = append(errs, fmt.Sprintf("invalid compression level: %s (must be fastest, default, best, or none)", cfg.Compression.Level))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
