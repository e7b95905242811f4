package health

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 14, hour, min, 0, 0, time.Local)
}

func TestDueRule(t *testing.T) {
	t.Parallel()

	yesterday := at(9, 30).AddDate(0, 0, -1)
	today := at(9, 5)

	tests := []struct {
		name     string
		now      time.Time
		hour     int
		lastSent *time.Time
		want     bool
	}{
		{"before threshold, never sent", at(8, 59), 9, nil, false},
		{"at threshold, never sent", at(9, 0), 9, nil, true},
		{"after threshold, never sent", at(14, 0), 9, nil, true},
		{"after threshold, sent yesterday", at(9, 30), 9, &yesterday, true},
		{"after threshold, sent today after threshold", at(14, 0), 9, &today, false},
		{"midnight threshold fires immediately", at(0, 0), 0, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := due(tt.now, tt.hour, tt.lastSent); got != tt.want {
				t.Fatalf("due(%v, %d, %v) = %v, want %v", tt.now, tt.hour, tt.lastSent, got, tt.want)
			}
		})
	}
}

func TestDueSentBeforeThresholdSameDay(t *testing.T) {
	t.Parallel()

	// A send recorded before today's threshold (e.g. after an hour change in
	// config) does not satisfy today's gate.
	early := at(7, 0)
	if !due(at(9, 30), 9, &early) {
		t.Fatal("send before today's threshold must not suppress today's ping")
	}
}

func TestDisabledGateNeverDue(t *testing.T) {
	t.Parallel()

	g := NewGate(filepath.Join(t.TempDir(), "healthcheck.json"), nil)
	if g.Enabled() {
		t.Fatal("nil hour must disable the gate")
	}
	sendDue, err := g.Due(at(23, 59))
	if err != nil {
		t.Fatal(err)
	}
	if sendDue {
		t.Fatal("disabled gate must never be due")
	}
}

func TestRecordSentRoundTrip(t *testing.T) {
	t.Parallel()

	hour := 9
	g := NewGate(filepath.Join(t.TempDir(), "healthcheck.json"), &hour)

	sendDue, err := g.Due(at(9, 30))
	if err != nil {
		t.Fatal(err)
	}
	if !sendDue {
		t.Fatal("fresh gate after threshold must be due")
	}

	if err := g.RecordSent(at(9, 30)); err != nil {
		t.Fatalf("RecordSent: %v", err)
	}

	sendDue, err = g.Due(at(14, 0))
	if err != nil {
		t.Fatal(err)
	}
	if sendDue {
		t.Fatal("gate must not fire twice on the same day")
	}

	// Next day it is due again.
	sendDue, err = g.Due(at(9, 30).AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !sendDue {
		t.Fatal("gate must be due again the following day")
	}
}

func TestRecordSentOverwrites(t *testing.T) {
	t.Parallel()

	hour := 9
	path := filepath.Join(t.TempDir(), "healthcheck.json")
	g := NewGate(path, &hour)

	if err := g.RecordSent(at(9, 30).AddDate(0, 0, -1)); err != nil {
		t.Fatal(err)
	}
	if err := g.RecordSent(at(9, 30)); err != nil {
		t.Fatal(err)
	}

	sendDue, err := g.Due(at(14, 0))
	if err != nil {
		t.Fatal(err)
	}
	if sendDue {
		t.Fatal("latest recorded send must win")
	}
}

func TestMalformedStateFileIsError(t *testing.T) {
	t.Parallel()

	hour := 9
	path := filepath.Join(t.TempDir(), "healthcheck.json")
	if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := NewGate(path, &hour)
	if _, err := g.Due(at(9, 30)); err == nil {
		t.Fatal("malformed state file must be an error")
	}
}
