// Package cache is a small TTL'd JSON file cache for fetched payloads.
// A corrupt or expired entry is a miss, never an error: cache corruption
// must not propagate a stale or garbage payload silently.
package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

type envelope struct {
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type File struct {
	path   string
	ttl    time.Duration
	logger *zap.Logger
}

func NewFile(path string, ttl time.Duration, logger *zap.Logger) *File {
	return &File{path: path, ttl: ttl, logger: logger}
}

// Load unmarshals the cached payload into v and reports whether a fresh
// entry was found.
func (f *File) Load(v any) bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("cache unreadable", zap.String("path", f.path), zap.Error(err))
		}
		return false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		f.discardCorrupt(err)
		return false
	}
	if env.Timestamp.IsZero() || time.Since(env.Timestamp) >= f.ttl {
		f.logger.Info("cache expired, will fetch fresh data", zap.String("path", f.path))
		return false
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		f.discardCorrupt(err)
		return false
	}
	return true
}

// Store writes v with the current timestamp.
func (f *File) Store(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Timestamp: time.Now(), Payload: payload})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *File) discardCorrupt(err error) {
	f.logger.Error("cache file corrupted, removing", zap.String("path", f.path), zap.Error(err))
	if rmErr := os.Remove(f.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		f.logger.Warn("could not remove corrupted cache file", zap.Error(rmErr))
	}
}
