package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".userindex.yaml"

// Config represents the complete userindex configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Source    SourceConfig    `yaml:"source" json:"source"`
	Ingestion IngestionConfig `yaml:"ingestion" json:"ingestion"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// SourceConfig configures the remote user source.
type SourceConfig struct {
	// URL is an http(s) endpoint or a file:// path returning the users document.
	URL string `yaml:"url" json:"url"`
	// CollectionKey is the document field holding the records (default: users).
	CollectionKey string `yaml:"collection_key" json:"collection_key"`
	// Timeout bounds a single HTTP request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// IngestionConfig configures the ingestion pipeline and its retry policy.
type IngestionConfig struct {
	// MaxAttempts is the total number of fetch attempts per run (default: 3).
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// RetryDelay is the fixed wait between attempts (default: 2s).
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// AttemptTimeout bounds each attempt; zero means only Source.Timeout applies.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" json:"attempt_timeout"`
	// LoadOnStart runs one ingestion when the server starts.
	LoadOnStart bool `yaml:"load_on_start" json:"load_on_start"`
	// Watch re-runs ingestion when a file:// source changes.
	Watch bool `yaml:"watch" json:"watch"`
	// WatchDebounce coalesces bursts of file events.
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// StoreConfig selects and configures the user store.
type StoreConfig struct {
	// Backend is one of memory, sqlite or postgres.
	Backend string `yaml:"backend" json:"backend"`
	// Path is the SQLite database file.
	Path string `yaml:"path" json:"path"`
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn" json:"dsn"`
}

// SearchConfig configures the search index and result cutoff.
type SearchConfig struct {
	// Backend is bleve (default) or scan.
	Backend      string `yaml:"backend" json:"backend"`
	DefaultLimit int    `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int    `yaml:"max_limit" json:"max_limit"`
}

// CacheConfig sizes the result caches.
type CacheConfig struct {
	SearchSize int `yaml:"search_size" json:"search_size"`
	LookupSize int `yaml:"lookup_size" json:"lookup_size"`
}

// ServerConfig configures the daemon, MCP and metrics servers.
type ServerConfig struct {
	SocketPath  string `yaml:"socket_path" json:"socket_path"`
	Transport   string `yaml:"transport" json:"transport"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Version: 1,
		Source: SourceConfig{
			URL:           "https://dummyjson.com/users",
			CollectionKey: "users",
			Timeout:       10 * time.Second,
		},
		Ingestion: IngestionConfig{
			MaxAttempts:   3,
			RetryDelay:    2 * time.Second,
			LoadOnStart:   true,
			Watch:         false,
			WatchDebounce: 500 * time.Millisecond,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    filepath.Join(dataDir, "users.db"),
		},
		Search: SearchConfig{
			Backend:      "bleve",
			DefaultLimit: 20,
			MaxLimit:     100,
		},
		Cache: CacheConfig{
			SearchSize: 1000,
			LookupSize: 5000,
		},
		Server: ServerConfig{
			SocketPath: filepath.Join(filepath.Dir(dataDir), "daemon.sock"),
			Transport:  "daemon",
			LogLevel:   "info",
		},
	}
}

// DefaultDataDir returns ~/.userindex/data.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".userindex", "data")
	}
	return filepath.Join(home, ".userindex", "data")
}

// DataDir returns the directory holding the store and the ingestion lock.
func (c *Config) DataDir() string {
	if c.Store.Backend == "sqlite" && c.Store.Path != "" {
		return filepath.Dir(c.Store.Path)
	}
	return DefaultDataDir()
}

// LockPath returns the cross-process ingestion lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir(), "ingest.lock")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/userindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/userindex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "userindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "userindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "userindex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/userindex/config.yaml)
//  3. Project config (.userindex.yaml in dir)
//  4. Environment variables (USERINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads .userindex.yaml (or .yml) from dir if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, ".userindex.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes a YAML file over the current values.
// Keys absent from the file keep their current value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return apperrors.New(apperrors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file %s not found", path), err).
			WithDetail("path", path)
	case errors.Is(err, fs.ErrPermission):
		return apperrors.New(apperrors.ErrCodeConfigPermission,
			fmt.Sprintf("cannot read config file %s", path), err).
			WithDetail("path", path).
			WithSuggestion("Check the file's owner and mode")
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies USERINDEX_* environment variable overrides.
// Malformed numeric or duration values are reported rather than ignored.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("USERINDEX_SOURCE_URL"); v != "" {
		c.Source.URL = v
	}
	if v := os.Getenv("USERINDEX_COLLECTION_KEY"); v != "" {
		c.Source.CollectionKey = v
	}
	if err := envDuration("USERINDEX_SOURCE_TIMEOUT", &c.Source.Timeout); err != nil {
		return err
	}
	if err := envInt("USERINDEX_MAX_ATTEMPTS", &c.Ingestion.MaxAttempts); err != nil {
		return err
	}
	if err := envDuration("USERINDEX_RETRY_DELAY", &c.Ingestion.RetryDelay); err != nil {
		return err
	}
	if err := envDuration("USERINDEX_ATTEMPT_TIMEOUT", &c.Ingestion.AttemptTimeout); err != nil {
		return err
	}
	if v := os.Getenv("USERINDEX_LOAD_ON_START"); v != "" {
		c.Ingestion.LoadOnStart = parseBool(v)
	}
	if v := os.Getenv("USERINDEX_WATCH"); v != "" {
		c.Ingestion.Watch = parseBool(v)
	}
	if v := os.Getenv("USERINDEX_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("USERINDEX_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("USERINDEX_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("USERINDEX_SEARCH_BACKEND"); v != "" {
		c.Search.Backend = v
	}
	if v := os.Getenv("USERINDEX_SOCKET_PATH"); v != "" {
		c.Server.SocketPath = v
	}
	if v := os.Getenv("USERINDEX_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("USERINDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("USERINDEX_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url must be set")
	}
	u, err := url.Parse(c.Source.URL)
	if err != nil {
		return fmt.Errorf("source.url is not a valid URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return fmt.Errorf("source.url scheme must be http, https or file, got %q", u.Scheme)
	}
	if c.Source.CollectionKey == "" {
		return fmt.Errorf("source.collection_key must be set")
	}
	if c.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must be non-negative, got %s", c.Source.Timeout)
	}

	if c.Ingestion.MaxAttempts < 1 {
		return fmt.Errorf("ingestion.max_attempts must be at least 1, got %d", c.Ingestion.MaxAttempts)
	}
	if c.Ingestion.RetryDelay < 0 || c.Ingestion.AttemptTimeout < 0 {
		return fmt.Errorf("ingestion delays must be non-negative")
	}

	switch strings.ToLower(c.Store.Backend) {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be 'memory', 'sqlite' or 'postgres', got %s", c.Store.Backend)
	}

	switch strings.ToLower(c.Search.Backend) {
	case "bleve", "scan":
	default:
		return fmt.Errorf("search.backend must be 'bleve' or 'scan', got %s", c.Search.Backend)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= default_limit (%d)", c.Search.MaxLimit, c.Search.DefaultLimit)
	}

	if c.Cache.SearchSize <= 0 || c.Cache.LookupSize <= 0 {
		return fmt.Errorf("cache sizes must be positive")
	}

	validTransports := map[string]bool{"daemon": true, "stdio": true, "both": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'daemon', 'stdio' or 'both', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file over the defaults.
// A missing file is ErrCodeConfigNotFound; an unreadable one is
// ErrCodeConfigPermission.
func LoadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeConfigNotFound) {
			err = apperrors.New(apperrors.ErrCodeConfigNotFound,
				fmt.Sprintf("no user configuration at %s", path), err).
				WithSuggestion("Run 'userindex config init' to create one")
		}
		return nil, err
	}
	return cfg, nil
}
