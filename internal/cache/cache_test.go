package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestLoadMissingFileIsMiss(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"), time.Hour, zap.NewNop())
	var p payload
	assert.False(t, f.Load(&p))
}

func TestStoreLoadRoundTrip(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "cache.json"), time.Hour, zap.NewNop())

	require.NoError(t, f.Store(payload{Name: "solar", Value: 4.2}))

	var p payload
	require.True(t, f.Load(&p))
	assert.Equal(t, "solar", p.Name)
	assert.Equal(t, 4.2, p.Value)
}

func TestLoadExpiredEntryIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	f := NewFile(path, 1*time.Nanosecond, zap.NewNop())

	require.NoError(t, f.Store(payload{Name: "solar"}))
	time.Sleep(time.Millisecond)

	var p payload
	assert.False(t, f.Load(&p))
}

func TestLoadCorruptEntryIsMissAndRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	f := NewFile(path, time.Hour, zap.NewNop())

	require.NoError(t, os.WriteFile(path, []byte("][garbage"), 0o644))

	var p payload
	assert.False(t, f.Load(&p))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "corrupt cache file should be removed")
}

func TestLoadCorruptPayloadIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	f := NewFile(path, time.Hour, zap.NewNop())

	require.NoError(t, os.WriteFile(path,
		[]byte(`{"timestamp":"2099-01-01T00:00:00Z","payload":"not-an-object"}`), 0o644))

	var p payload
	assert.False(t, f.Load(&p))
}
