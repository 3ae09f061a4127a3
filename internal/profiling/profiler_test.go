package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_WritesRequestedProfiles(t *testing.T) {
	// Given: both profiles requested
	dir := t.TempDir()
	opts := Options{CPUPath: filepath.Join(dir, "cpu.pprof"), HeapPath: filepath.Join(dir, "heap.pprof")}
	require.True(t, opts.Enabled())

	// When: a session runs and stops twice
	s, err := Start(opts)
	require.NoError(t, err)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	// Then: both files hold data
	for _, p := range []string{opts.CPUPath, opts.HeapPath} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}
}

func TestStart_Disabled(t *testing.T) {
	s, err := Start(Options{})

	require.NoError(t, err)
	assert.False(t, Options{}.Enabled())
	assert.NoError(t, s.Stop())

	var nilSession *Session
	assert.NoError(t, nilSession.Stop())
}

func TestStart_BadPath(t *testing.T) {
	_, err := Start(Options{CPUPath: filepath.Join(t.TempDir(), "missing", "cpu.pprof")})

	assert.Error(t, err)
}
