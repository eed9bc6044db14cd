// Package journal keeps a durable audit trail of file writes and operator
// commands in a local SQLite database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mfateev/agens/internal/gate"
)

// Kind distinguishes journal events.
type Kind string

const (
	KindApply   Kind = "apply"
	KindCommand Kind = "command"
)

// Event is one journal row.
type Event struct {
	ID        int64
	SessionID string
	Kind      Kind
	// Status is the report entry status for applies ("plan", "write",
	// "error", "cancelled"). Commands use "blocked", "declined", "failed"
	// or "ran".
	Status   string
	Target   string
	Detail   string
	Bytes    int
	ExitCode int
	At       time.Time
}

// Journal is the SQLite-backed gate.Recorder.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

var _ gate.Recorder = (*Journal)(nil)

// DefaultPath returns the journal location inside stateDir.
func DefaultPath(stateDir string) string {
	return filepath.Join(stateDir, "journal.db")
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	j := &Journal{db: db, now: time.Now}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			status     TEXT NOT NULL,
			target     TEXT NOT NULL DEFAULT '',
			detail     TEXT NOT NULL DEFAULT '',
			bytes      INTEGER NOT NULL DEFAULT 0,
			exit_code  INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	`)
	return err
}

// RecordApply stores one row per report entry.
func (j *Journal) RecordApply(ctx context.Context, sessionID string, decision gate.Decision, report gate.Report) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	at := j.now().UTC().Format(time.RFC3339Nano)
	for _, e := range report.Entries {
		detail := decision.String()
		if e.Status == gate.StatusError {
			detail = string(e.Kind)
			if e.Err != nil {
				detail += ": " + e.Err.Error()
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (session_id, kind, status, target, detail, bytes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sessionID, KindApply, string(e.Status), e.Target, detail, e.Bytes, at,
		); err != nil {
			return fmt.Errorf("journal: insert apply: %w", err)
		}
	}
	return tx.Commit()
}

// RecordCommand stores the outcome of one operator command.
func (j *Journal) RecordCommand(ctx context.Context, sessionID string, outcome gate.CommandOutcome) error {
	status := "ran"
	detail := ""
	switch {
	case outcome.Blocked():
		status = "blocked"
		detail = string(outcome.Verdict)
	case outcome.Declined:
		status = "declined"
	case outcome.StartErr != nil:
		status = "failed"
		detail = outcome.StartErr.Error()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (session_id, kind, status, target, detail, bytes, exit_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, KindCommand, status, outcome.Request.Command, detail,
		len(outcome.Result.Output), outcome.Result.ExitCode, j.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal: insert command: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, status, target, detail, bytes, exit_code, created_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			kind string
			at   string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &e.Status, &e.Target, &e.Detail, &e.Bytes, &e.ExitCode, &at); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Kind = Kind(kind)
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		events = append(events, e)
	}
	return events, rows.Err()
}

// String renders the event as one history line.
func (e Event) String() string {
	ts := e.At.Local().Format("2006-01-02 15:04:05")
	switch e.Kind {
	case KindCommand:
		if e.Status == "ran" {
			return fmt.Sprintf("%s  command  %-8s %s [exit=%d]", ts, e.Status, e.Target, e.ExitCode)
		}
		return fmt.Sprintf("%s  command  %-8s %s %s", ts, e.Status, e.Target, e.Detail)
	default:
		return fmt.Sprintf("%s  file     %-8s %s (%d bytes) %s", ts, e.Status, e.Target, e.Bytes, e.Detail)
	}
}
