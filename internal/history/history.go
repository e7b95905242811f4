// Package history keeps an append-only audit log of what each run observed
// per target. It is purely informational: runs behave identically with it
// disabled.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"slotwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

var ErrDisabled = errors.New("history disabled")

// Observation is one checked target in one run.
type Observation struct {
	At             time.Time
	Patient        string
	Doctor         string
	Current        time.Time
	FirstAvailable time.Time
	Outcome        string
}

// Store is a SQLite-backed observation log. A nil *Store is a valid disabled
// store: all methods are nil-safe.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (creating if needed) the observation database at path.
// An empty path returns a nil, disabled store.
func Open(path string, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &Store{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one observation.
func (s *Store) Append(ctx context.Context, o Observation) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if o.At.IsZero() {
		o.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations(at, patient, doctor, current_at, first_available, outcome)
		 VALUES(?,?,?,?,?,?)`,
		o.At.Format(time.RFC3339Nano), o.Patient, o.Doctor,
		o.Current.Format(time.RFC3339), o.FirstAvailable.Format(time.RFC3339), o.Outcome,
	)
	return err
}

// Recent returns up to n observations, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Observation, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, patient, doctor, current_at, first_available, outcome
		 FROM observations ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		var at, cur, first string
		if err := rows.Scan(&at, &o.Patient, &o.Doctor, &cur, &first, &o.Outcome); err != nil {
			return nil, err
		}
		if o.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse observation timestamp: %w", err)
		}
		if o.Current, err = time.Parse(time.RFC3339, cur); err != nil {
			return nil, fmt.Errorf("parse current timestamp: %w", err)
		}
		if o.FirstAvailable, err = time.Parse(time.RFC3339, first); err != nil {
			return nil, fmt.Errorf("parse first-available timestamp: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
