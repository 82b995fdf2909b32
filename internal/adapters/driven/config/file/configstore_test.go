package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestConfigDefaults(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, 4, store.GetInt("ingest.workers"))
	assert.Equal(t, "10s", store.GetString("ingest.store_timeout"))
	assert.InDelta(t, 0.55, store.GetFloat("detect.threshold"), 1e-9)
	assert.Equal(t, 20, store.GetInt("keywords.max_terms"))

	_, ok := store.Get("no.such.key")
	assert.False(t, ok)
}

func TestConfigSetPersistsImmediately(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("ingest.workers", int64(8)))
	require.NoError(t, store.Set("cases.path", "/etc/radnorm/cases"))
	require.NoError(t, store.Set("watch.enabled", true))

	// A fresh store reads back what was written.
	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, reloaded.GetInt("ingest.workers"))
	assert.Equal(t, "/etc/radnorm/cases", reloaded.GetString("cases.path"))
	assert.True(t, reloaded.GetBool("watch.enabled"))
}

func TestConfigFlattensNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := "[ingest]\nworkers = 2\n\n[detect]\nthreshold = 0.7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, store.GetInt("ingest.workers"))
	assert.InDelta(t, 0.7, store.GetFloat("detect.threshold"), 1e-9)
}

func TestConfigTypeMismatchesReturnZeroValues(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("key", "text"))

	assert.Zero(t, store.GetInt("key"))
	assert.Zero(t, store.GetFloat("key"))
	assert.False(t, store.GetBool("key"))
	assert.Empty(t, store.GetString("ingest.workers"))
}

func TestConfigFloatWidensIntegers(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("limit", int64(3)))
	assert.InDelta(t, 3.0, store.GetFloat("limit"), 1e-9)
}

func TestConfigPath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
}
