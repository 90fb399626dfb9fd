// Package statestore owns the single durable record of this system: whether
// the inverter is believed to be in forced charge mode. No other component
// touches its backing storage.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nightcharge/nightcharge/internal/domain"

	"go.uber.org/zap"
)

const (
	stateFileName = "charging_state.json"
	lockFileName  = "nightcharge.lock"

	// a lock older than this belongs to a run that died without cleanup
	lockStaleAfter = 1 * time.Hour
)

type Store struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Load returns the last persisted charging state. Absent or unreadable
// storage yields false: a false negative costs at most a missed charge
// window, while a false positive could suppress a needed charge.
func (s *Store) Load() bool {
	data, err := os.ReadFile(s.statePath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("could not load charging state, assuming not charging", zap.Error(err))
		}
		return false
	}
	var state domain.ChargingState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("charging state file corrupted, assuming not charging", zap.Error(err))
		return false
	}
	return state.CurrentlyCharging
}

// Save persists the charging state. It must only be called after a confirmed
// inverter transition, never speculatively.
func (s *Store) Save(charging bool) error {
	state := domain.ChargingState{
		CurrentlyCharging: charging,
		UpdatedAt:         time.Now(),
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	// write-then-rename so a crash mid-write never leaves a torn state file
	tmp := s.statePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.statePath())
}

// AcquireLock grants run-level mutual exclusion. Two concurrent forced-charge
// transitions racing on the same inverter is a correctness hazard, so a run
// must hold the lock for its entire decision-and-actuate sequence.
func (s *Store) AcquireLock() (release func(), err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	path := s.lockPath()

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() {
				if err := os.Remove(path); err != nil {
					s.logger.Warn("could not remove run lock", zap.Error(err))
				}
			}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < lockStaleAfter {
			return nil, fmt.Errorf("another run holds the lock at %s", path)
		}
		s.logger.Warn("removing stale run lock", zap.String("path", path))
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not acquire run lock at %s", path)
}

func (s *Store) statePath() string {
	return filepath.Join(s.dir, stateFileName)
}

func (s *Store) lockPath() string {
	return filepath.Join(s.dir, lockFileName)
}
