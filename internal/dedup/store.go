// Package dedup persists which slot improvements have already been reported,
// so the same finding is not re-sent on every run.
package dedup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"slotwatch/internal/timeutil"
)

// Store is a flat current-appointment-key -> last-notified-first-available-key
// mapping backed by a JSON file. The file is read fully on every query and
// written back in full on every mutation; entries are never evicted.
//
// A missing file is an empty mapping. A malformed file is an error: falling
// back to empty would silently lose dedup history and re-spam notifications.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Key formats a timestamp as the minute-precision map key. Seconds are
// deliberately dropped; the portal only exposes minute precision.
func Key(t time.Time) string {
	return timeutil.MinuteKey(t)
}

// WasNotified reports whether the stored mapping for currentKey equals
// firstAvailKey exactly. Key absent, or present with a different value, both
// mean "this specific improvement has not been reported yet".
func (s *Store) WasNotified(currentKey, firstAvailKey string) (bool, error) {
	m, err := s.load()
	if err != nil {
		return false, err
	}
	return m[currentKey] == firstAvailKey, nil
}

// MarkNotified overwrites (or inserts) the mapping for currentKey. Callers
// must only call this after a confirmed notification send.
func (s *Store) MarkNotified(currentKey, firstAvailKey string) error {
	m, err := s.load()
	if err != nil {
		return err
	}
	m[currentKey] = firstAvailKey
	return s.save(m)
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read notifications file: %w", err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal notifications file %s: %w", s.path, err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func (s *Store) save(m map[string]string) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create notifications dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal notifications: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write notifications file: %w", err)
	}
	return nil
}
