// Package health gates the once-per-day liveness notification.
package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Gate decides whether the daily liveness ping is due. It is a once-per-day
// gate anchored at a configured local hour, not a fixed-interval timer, so it
// tolerates runs firing at irregular times: as long as one run per day lands
// after the threshold hour, exactly one ping goes out.
type Gate struct {
	path    string
	hour    int
	enabled bool
}

// state is the persisted form: a single timestamp.
type state struct {
	LastSentAt time.Time `json:"last_health_check_sent_at"`
}

// NewGate builds a gate persisting to path. A nil hour disables the gate
// entirely (never due).
func NewGate(path string, hour *int) *Gate {
	g := &Gate{path: path}
	if hour != nil {
		g.enabled = true
		g.hour = *hour
	}
	return g
}

func (g *Gate) Enabled() bool { return g.enabled }

// Due reports whether a liveness notification should be sent at now.
// A malformed state file is an error, not an empty state.
func (g *Gate) Due(now time.Time) (bool, error) {
	if !g.enabled {
		return false, nil
	}
	lastSent, err := g.load()
	if err != nil {
		return false, err
	}
	return due(now, g.hour, lastSent), nil
}

// due holds the pure gate rule: not due before today's threshold hour, and
// not due again once a ping has been recorded at or after that threshold.
func due(now time.Time, hour int, lastSent *time.Time) bool {
	threshold := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if now.Before(threshold) {
		return false
	}
	if lastSent != nil && !lastSent.Before(threshold) {
		return false
	}
	return true
}

// RecordSent persists now as the last liveness send, overwriting any prior value.
func (g *Gate) RecordSent(now time.Time) error {
	if dir := filepath.Dir(g.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create health state dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(state{LastSentAt: now}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal health state: %w", err)
	}
	if err := os.WriteFile(g.path, data, 0o644); err != nil {
		return fmt.Errorf("write health state file: %w", err)
	}
	return nil
}

func (g *Gate) load() (*time.Time, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read health state file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal health state file %s: %w", g.path, err)
	}
	if st.LastSentAt.IsZero() {
		return nil, nil
	}
	t := st.LastSentAt
	return &t, nil
}
