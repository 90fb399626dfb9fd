package statestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	return New(t.TempDir(), zap.NewNop())
}

func TestLoadDefaultsToFalse(t *testing.T) {
	store := newTestStore(t)
	assert.False(t, store.Load())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(true))
	assert.True(t, store.Load())

	require.NoError(t, store.Save(false))
	assert.False(t, store.Load())
}

func TestLoadCorruptFileDefaultsToFalse(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, zap.NewNop())

	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0o644))
	assert.False(t, store.Load())
}

func TestAcquireLockExcludesSecondRun(t *testing.T) {
	dir := t.TempDir()
	first := New(dir, zap.NewNop())
	second := New(dir, zap.NewNop())

	release, err := first.AcquireLock()
	require.NoError(t, err)

	_, err = second.AcquireLock()
	assert.Error(t, err)

	release()

	release2, err := second.AcquireLock()
	require.NoError(t, err)
	release2()
}

func TestAcquireLockTakesOverStaleLock(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, zap.NewNop())

	lockPath := filepath.Join(dir, lockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte("12345\n"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	release, err := store.AcquireLock()
	require.NoError(t, err)
	release()
}
