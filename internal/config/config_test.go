package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

// isolate points user config lookups at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)

	assert.Equal(t, "https://dummyjson.com/users", cfg.Source.URL)
	assert.Equal(t, "users", cfg.Source.CollectionKey)
	assert.Equal(t, 10*time.Second, cfg.Source.Timeout)

	assert.Equal(t, 3, cfg.Ingestion.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Ingestion.RetryDelay)
	assert.True(t, cfg.Ingestion.LoadOnStart)
	assert.False(t, cfg.Ingestion.Watch)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "users.db", filepath.Base(cfg.Store.Path))

	assert.Equal(t, "bleve", cfg.Search.Backend)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)

	assert.Equal(t, "daemon", cfg.Server.Transport)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "daemon.sock", filepath.Base(cfg.Server.SocketPath))

	assert.NoError(t, cfg.Validate())
}

func TestConfig_LockPathNextToDatabase(t *testing.T) {
	cfg := NewConfig()
	cfg.Store.Path = "/var/lib/userindex/users.db"

	assert.Equal(t, "/var/lib/userindex/ingest.lock", cfg.LockPath())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	// Given: a project config
	isolate(t)
	dir := t.TempDir()
	yaml := `
source:
  url: file:///data/users.json
ingestion:
  retry_delay: 500ms
  load_on_start: false
search:
  backend: scan
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte(yaml), 0o644))

	// When: loading
	cfg, err := Load(dir)

	// Then: file values win, other keys keep defaults
	require.NoError(t, err)
	assert.Equal(t, "file:///data/users.json", cfg.Source.URL)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingestion.RetryDelay)
	assert.False(t, cfg.Ingestion.LoadOnStart)
	assert.Equal(t, "scan", cfg.Search.Backend)
	assert.Equal(t, "users", cfg.Source.CollectionKey)
	assert.Equal(t, 3, cfg.Ingestion.MaxAttempts)
}

func TestLoad_PrecedenceUserProjectEnv(t *testing.T) {
	// Given: user config, project config and env all set the log level
	isolate(t)
	writeUserConfig(t, "server:\n  log_level: warn\ncache:\n  search_size: 7\n")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".userindex.yml"), []byte("server:\n  log_level: error\n"), 0o644))
	t.Setenv("USERINDEX_LOG_LEVEL", "debug")

	// When: loading
	cfg, err := Load(dir)

	// Then: env beats project beats user; untouched user keys survive
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 7, cfg.Cache.SearchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("USERINDEX_SOURCE_URL", "http://localhost:9999/users")
	t.Setenv("USERINDEX_MAX_ATTEMPTS", "5")
	t.Setenv("USERINDEX_RETRY_DELAY", "1s")
	t.Setenv("USERINDEX_STORE_BACKEND", "memory")
	t.Setenv("USERINDEX_LOAD_ON_START", "false")
	t.Setenv("USERINDEX_WATCH", "1")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/users", cfg.Source.URL)
	assert.Equal(t, 5, cfg.Ingestion.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Ingestion.RetryDelay)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.False(t, cfg.Ingestion.LoadOnStart)
	assert.True(t, cfg.Ingestion.Watch)
}

func TestLoad_MalformedEnvIsAnError(t *testing.T) {
	isolate(t)
	t.Setenv("USERINDEX_RETRY_DELAY", "soon")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "USERINDEX_RETRY_DELAY")
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("source: [unclosed"), 0o644))

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"empty url", func(c *Config) { c.Source.URL = "" }, "source.url"},
		{"bad scheme", func(c *Config) { c.Source.URL = "ftp://x/users" }, "scheme"},
		{"empty collection key", func(c *Config) { c.Source.CollectionKey = "" }, "collection_key"},
		{"zero attempts", func(c *Config) { c.Ingestion.MaxAttempts = 0 }, "max_attempts"},
		{"unknown store", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }, "store.dsn"},
		{"memory store", func(c *Config) { c.Store.Backend = "memory"; c.Store.Path = "" }, ""},
		{"unknown search backend", func(c *Config) { c.Search.Backend = "vector" }, "search.backend"},
		{"max below default", func(c *Config) { c.Search.MaxLimit = 5 }, "max_limit"},
		{"zero cache", func(c *Config) { c.Cache.LookupSize = 0 }, "cache"},
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }, "server.transport"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a config with non-default values written as a project file
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Source.URL = "file:///srv/users.json"
	cfg.Ingestion.AttemptTimeout = 3 * time.Second
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	// When: loading it back
	loaded, err := Load(dir)

	// Then: values survive, durations included
	require.NoError(t, err)
	assert.Equal(t, cfg.Source.URL, loaded.Source.URL)
	assert.Equal(t, 3*time.Second, loaded.Ingestion.AttemptTimeout)
}

func TestLoadUserConfig(t *testing.T) {
	isolate(t)

	// Given: no user config file
	cfg, err := LoadUserConfig()

	// Then: the miss is reported with its own code
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigNotFound))
	assert.Contains(t, apperrors.FormatForCLI(err), "userindex config init")

	writeUserConfig(t, "search:\n  default_limit: 10\n")
	cfg, err = LoadUserConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
}

func TestLoadUserConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T)
		code   string
		asRoot bool
	}{
		{
			name:   "malformed yaml",
			setup:  func(t *testing.T) { writeUserConfig(t, "search: [unclosed\n") },
			code:   apperrors.ErrCodeConfigInvalid,
			asRoot: true,
		},
		{
			name: "unreadable file",
			setup: func(t *testing.T) {
				path := writeUserConfig(t, "version: 1\n")
				require.NoError(t, os.Chmod(path, 0o000))
			},
			code: apperrors.ErrCodeConfigPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.asRoot && os.Geteuid() == 0 {
				t.Skip("root ignores file modes")
			}
			isolate(t)
			tt.setup(t)

			_, err := LoadUserConfig()
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)

			// Load reports the same code through its wrapping
			_, err = Load(t.TempDir())
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}
