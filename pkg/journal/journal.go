// Package journal persists finalized actions to sqlite so a hosting
// application can inspect what past sessions did. It is strictly
// observational: the in-memory record store stays the single source of
// truth while a session is live.
package journal

import (
	"database/sql"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"

	"github.com/arthur-debert/runlet/pkg/errors"
	"github.com/arthur-debert/runlet/pkg/types"
)

// Entry is one journaled action.
type Entry struct {
	ID         string
	Session    string
	Kind       types.ActionKind
	Status     types.ActionStatus
	Error      string
	Output     string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Journal records terminal-state actions for one session.
type Journal struct {
	db      *sql.DB
	session string
}

// DefaultPath returns the journal location under the XDG state dir.
func DefaultPath() string {
	path, err := xdg.StateFile(filepath.Join("runlet", "journal.db"))
	if err != nil {
		return "runlet-journal.db"
	}
	return path
}

// Open opens (creating if needed) the journal at path, tagging entries
// with the given session identifier.
func Open(path, session string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrJournalOpen, "failed to open journal database")
	}

	j := &Journal{db: db, session: session}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return j, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actions (
		id TEXT NOT NULL,
		session TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		output TEXT,
		created_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		PRIMARY KEY (session, id)
	);

	CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session);
	CREATE INDEX IF NOT EXISTS idx_actions_status ON actions(status);
	`

	if _, err := j.db.Exec(schema); err != nil {
		return errors.Wrap(err, errors.ErrJournalOpen, "failed to migrate journal schema")
	}
	return nil
}

// Record upserts a terminal-state action. Implements scheduler.Recorder.
func (j *Journal) Record(action types.Action) error {
	var errMsg, output string
	if action.Err != nil {
		errMsg = action.Err.Message
		output = action.Err.Output
	}

	_, err := j.db.Exec(
		`INSERT INTO actions (id, session, kind, status, error, output, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session, id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			output = excluded.output,
			finished_at = excluded.finished_at`,
		action.ID, j.session, action.Kind, action.Status, errMsg, output,
		action.CreatedAt, action.FinishedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrJournalWrite, "failed to record action")
	}
	return nil
}

// List returns the most recent entries for this journal's session, newest
// first.
func (j *Journal) List(limit int) ([]*Entry, error) {
	rows, err := j.db.Query(
		`SELECT id, session, kind, status, error, output, created_at, finished_at
		 FROM actions WHERE session = ? ORDER BY created_at DESC LIMIT ?`,
		j.session, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrJournalOpen, "failed to list journal entries")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var errMsg, output sql.NullString
		var finishedAt sql.NullTime

		err := rows.Scan(&e.ID, &e.Session, &e.Kind, &e.Status, &errMsg, &output, &e.CreatedAt, &finishedAt)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrJournalOpen, "failed to scan journal entry")
		}

		if errMsg.Valid {
			e.Error = errMsg.String
		}
		if output.Valid {
			e.Output = output.String
		}
		if finishedAt.Valid {
			e.FinishedAt = finishedAt.Time
		}

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
