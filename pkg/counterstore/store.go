// Package counterstore implements persistent, file-backed integer counters.
//
// A CounterSlot is a named, non-negative integer stored as a single line
// of decimal ASCII in a file. Slots are created lazily on first read and
// never deleted. Corruption or I/O failure is treated as "zero" — the
// store favors availability of the watchdog over accuracy of the counter,
// since a lost increment at worst delays escalation by one tier.
package counterstore

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/edgewatch/nwwatchdog/pkg/reporting"
)

// Store reads and writes CounterSlot values backed by plain files.
//
// A Store has no locking of its own beyond a local mutex protecting the
// warned-once bookkeeping: the watchdog is the only process writing
// these files, so cross-process coordination is out of scope.
type Store struct {
	logger *reporting.Logger

	mu     sync.Mutex
	warned map[string]bool // path -> has a read/write failure already been logged
}

// New creates a Store that logs I/O problems through logger.
func New(logger *reporting.Logger) *Store {
	return &Store{
		logger: logger,
		warned: make(map[string]bool),
	}
}

// Read returns the integer stored at path. If the backing file does not
// exist, it is created (along with any parent directories) holding "0",
// and 0 is returned. If the file exists but cannot be read or parsed,
// the failure is logged at most once per path and kind of failure, and
// 0 is returned.
//
// Read never fails to the caller.
func (s *Store) Read(path string) int64 {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
				s.warnOnce(path, "create parent directory for counter slot", mkErr)
				return 0
			}
			if writeErr := s.writeRaw(path, 0); writeErr != nil {
				s.warnOnce(path, "create counter slot", writeErr)
			}
			return 0
		}
		s.warnOnce(path, "read counter slot", err)
		return 0
	}

	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || n < 0 {
		s.warnOnce(path, "parse counter slot", err)
		return 0
	}
	return n
}

// Write sets the stored value at path to n by truncating and rewriting
// the file (not an atomic rename; Read treats a partial file as
// corrupt and returns 0). On failure, the
// error is logged once and swallowed: the in-memory value the caller
// holds for this tick remains authoritative.
func (s *Store) Write(path string, n int64) {
	if err := s.writeRaw(path, n); err != nil {
		s.warnOnce(path, "write counter slot", err)
	}
}

// Increment reads the current value at path and writes back value+1.
func (s *Store) Increment(path string) {
	s.Write(path, s.Read(path)+1)
}

// SetIfDiffers writes n to path only if the stored value is not already
// n, avoiding needless writes on every healthy tick.
func (s *Store) SetIfDiffers(path string, n int64) {
	if s.Read(path) != n {
		s.Write(path, n)
	}
}

func (s *Store) writeRaw(path string, n int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.FormatInt(n, 10)), 0o644)
}

func (s *Store) warnOnce(path, action string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := action + ":" + path
	if s.warned[key] {
		return
	}
	s.warned[key] = true
	s.logger.Warn("counter slot I/O failure, treating as zero",
		"path", path, "action", action, "error", err)
}
