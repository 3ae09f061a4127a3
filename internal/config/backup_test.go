package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUserConfig(t *testing.T, content string) string {
	t.Helper()
	path := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBackupUserConfig_NoConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	backupPath, err := BackupUserConfig()

	require.NoError(t, err)
	assert.Empty(t, backupPath)
}

func TestBackupUserConfig_CopiesContent(t *testing.T) {
	// Given: an existing user config
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	content := "source:\n  url: file:///tmp/users.json\n"
	writeUserConfig(t, content)

	// When: backing it up
	backupPath, err := BackupUserConfig()

	// Then: the backup holds the same bytes
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)
	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestBackupUserConfig_PrunesToMaxBackups(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeUserConfig(t, "version: 1\n")

	for i := 0; i < MaxBackups+2; i++ {
		_, err := BackupUserConfig()
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}

func TestListUserConfigBackups_NewestFirst(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := writeUserConfig(t, "version: 1\n")
	older := path + BackupSuffix + ".20240101-000000.000"
	newer := path + BackupSuffix + ".20250101-000000.000"
	require.NoError(t, os.WriteFile(older, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("b"), 0o644))

	backups, err := ListUserConfigBackups()

	require.NoError(t, err)
	assert.Equal(t, []string{newer, older}, backups)
}

func TestListUserConfigBackups_NoDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "missing"))

	backups, err := ListUserConfigBackups()

	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestRestoreUserConfig(t *testing.T) {
	// Given: a current config and an older backup
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := writeUserConfig(t, "version: 2\n")
	backup := filepath.Join(t.TempDir(), "old.yaml")
	require.NoError(t, os.WriteFile(backup, []byte("version: 1\n"), 0o644))

	// When: restoring
	require.NoError(t, RestoreUserConfig(backup))

	// Then: the config has the backup content and the previous one was saved
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestRestoreUserConfig_MissingBackup(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	err := RestoreUserConfig(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}
