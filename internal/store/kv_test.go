package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKVRoundTrip(t *testing.T, kv KeyValueStore) {
	t.Helper()

	// Missing key reads as absent, not as an error.
	data, err := kv.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, kv.Set("agentwire.sessions", []byte(`{"a":1}`)))
	data, err = kv.Get("agentwire.sessions")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), data)

	require.NoError(t, kv.Set("agentwire.sessions", []byte(`{"a":2}`)))
	data, err = kv.Get("agentwire.sessions")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), data)

	require.NoError(t, kv.Delete("agentwire.sessions"))
	data, err = kv.Get("agentwire.sessions")
	require.NoError(t, err)
	assert.Nil(t, data)

	// Deleting an absent key is fine.
	require.NoError(t, kv.Delete("agentwire.sessions"))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	testKVRoundTrip(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	kv := NewMemoryStore()
	value := []byte("original")
	require.NoError(t, kv.Set("k", value))
	value[0] = 'X'

	got, err := kv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestFileStoreRoundTrip(t *testing.T) {
	kv, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	testKVRoundTrip(t, kv)
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Set("../escape/attempt", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), string(filepath.Separator))

	got, err := kv.Get("../escape/attempt")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Set("agentwire.current_session", []byte(`"abc"`)))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get("agentwire.current_session")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"abc"`), got)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	kv, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer kv.Close()
	testKVRoundTrip(t, kv)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	kv, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("k", []byte("v")))
	require.NoError(t, kv.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
