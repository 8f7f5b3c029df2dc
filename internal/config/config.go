// Package config loads and saves the vpncert YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vpncert/internal/vpn"
)

const (
	appName = "vpncert"

	// DefaultCacheFile is the artifact name used when requests carry no path.
	DefaultCacheFile = "openvpn.ovpn"
	// DefaultListen is the HTTP API address.
	DefaultListen = "127.0.0.1:8095"
)

// ErrInvalid is returned by Validate for unusable configurations.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level application configuration.
type Config struct {
	CacheDir        string `yaml:"cache_dir"`
	CacheFile       string `yaml:"cache_file"`
	TemplateDir     string `yaml:"template_dir,omitempty"`
	OpenVPNTemplate string `yaml:"openvpn_template"`
	Database        string `yaml:"database"`
	SessionFile     string `yaml:"session_file"`
	ErrorMode       string `yaml:"error_mode"`
	Listen          string `yaml:"listen"`
	LogLevel        string `yaml:"log_level"`

	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Auth        AuthConfig        `yaml:"auth"`
}

// DiagnosticsConfig controls the persistent diagnostics log file.
type DiagnosticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Level   string `yaml:"level"`
}

// AuthConfig holds the credentials sessions are issued against.
type AuthConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash,omitempty"`
	SessionTTL   string `yaml:"session_ttl"`
}

// SessionTTLDuration parses the session TTL, falling back to 12h.
func (a AuthConfig) SessionTTLDuration() time.Duration {
	dur, err := time.ParseDuration(strings.TrimSpace(a.SessionTTL))
	if err != nil || dur <= 0 {
		return 12 * time.Hour
	}
	return dur
}

// Defaults returns a Config with the XDG based default locations.
func Defaults() Config {
	cacheHome := xdgDir("XDG_CACHE_HOME", ".cache")
	dataHome := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	stateHome := xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
	return Config{
		CacheDir:        filepath.Join(cacheHome, appName),
		CacheFile:       DefaultCacheFile,
		OpenVPNTemplate: "openvpn.ovpn.tmpl",
		Database:        filepath.Join(dataHome, appName, appName+".db"),
		SessionFile:     filepath.Join(stateHome, appName, "session"),
		ErrorMode:       string(vpn.ErrorModeStrict),
		Listen:          DefaultListen,
		LogLevel:        "info",
		Diagnostics: DiagnosticsConfig{
			Path:  filepath.Join(stateHome, appName, "diagnostics.log"),
			Level: "info",
		},
		Auth: AuthConfig{
			Username:   "admin",
			SessionTTL: "12h",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/vpncert/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), appName, "config.yaml")
}

// Load reads the config at path. If the file doesn't exist, returns defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path, replacing any previous file atomically.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks that required fields are present and enumerations are known.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CacheDir) == "" {
		return fmt.Errorf("%w: cache_dir is required", ErrInvalid)
	}
	name := strings.TrimSpace(c.CacheFile)
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("%w: cache_file must be a plain file name", ErrInvalid)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("%w: database is required", ErrInvalid)
	}
	if _, err := vpn.ParseErrorMode(c.ErrorMode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if ttl := strings.TrimSpace(c.Auth.SessionTTL); ttl != "" {
		if _, err := time.ParseDuration(ttl); err != nil {
			return fmt.Errorf("%w: auth.session_ttl: %v", ErrInvalid, err)
		}
	}
	return nil
}

// CachePath returns the default artifact path.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir, c.CacheFile)
}

// Mode returns the parsed error mode. Validate has already rejected unknown values.
func (c *Config) Mode() vpn.ErrorMode {
	mode, err := vpn.ParseErrorMode(c.ErrorMode)
	if err != nil {
		return vpn.ErrorModeStrict
	}
	return mode
}

func xdgDir(env, fallback string) string {
	if dir := strings.TrimSpace(os.Getenv(env)); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, fallback)
}
