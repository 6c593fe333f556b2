package runstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmpty(t *testing.T) {
	store := NewStore(t.TempDir())
	assert.Empty(t, store.Load())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("run-abc"))
	assert.Equal(t, "run-abc", store.Load())
}

func TestCorruptBlobReadsAsNoRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.json"), []byte("garbage"), 0o644))
	assert.Empty(t, NewStore(dir).Load())
}

func TestClear(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("run-abc"))
	require.NoError(t, store.Clear())
	assert.Empty(t, store.Load())
	assert.NoError(t, store.Clear())
}

func TestSaveCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "AutoFighter")
	store := NewStore(dir)
	require.NoError(t, store.Save("run-abc"))
	assert.Equal(t, "run-abc", store.Load())
}
