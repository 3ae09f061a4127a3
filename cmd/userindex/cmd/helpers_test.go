package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const usersDoc = `{"users": [
  {"id": 1, "firstName": "John", "lastName": "Smith", "email": "john@x.com", "ssn": "111", "age": 40, "role": "admin"},
  {"id": 2, "firstName": "Zed", "lastName": "Major", "email": "Z@x.com", "ssn": "222"},
  {"id": 3, "firstName": "Jo", "lastName": "Doe", "email": "jo@x.com", "ssn": "333"},
  "not a record"
]}`

// isolateEnv points HOME and the user config at temp dirs.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{
		"USERINDEX_SOURCE_URL", "USERINDEX_STORE_BACKEND", "USERINDEX_STORE_PATH",
		"USERINDEX_SEARCH_BACKEND", "USERINDEX_SOCKET_PATH", "USERINDEX_TRANSPORT",
	} {
		t.Setenv(key, "")
	}
	t.Cleanup(func() { _ = stopProfilingAndLogging() })
}

// projectDir writes a users document and a project config using a SQLite
// store and the scan index, and returns the directory.
func projectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	usersPath := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(usersPath, []byte(usersDoc), 0o644))

	sockDir, err := os.MkdirTemp("", "uidx")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })

	cfg := fmt.Sprintf(`source:
  url: file://%s
ingestion:
  max_attempts: 1
  load_on_start: false
store:
  backend: sqlite
  path: %s
search:
  backend: scan
server:
  socket_path: %s
`, usersPath, filepath.Join(dir, "data", "users.db"), filepath.Join(sockDir, "d.sock"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".userindex.yaml"), []byte(cfg), 0o644))
	return dir
}

// runCLI executes the root command with args.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}
