package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"

	_ "modernc.org/sqlite"
)

// tsLayout is fixed width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one processed message as recorded in the journal.
type Entry struct {
	ID          int64     `json:"id"`
	SourceID    string    `json:"source_id"`
	Admission   string    `json:"admission"`
	Kind        string    `json:"kind"`
	Transition  string    `json:"transition"`
	Region      string    `json:"region,omitempty"`
	Text        string    `json:"text"`
	Permalink   string    `json:"permalink"`
	Fingerprint string    `json:"fingerprint"`
	Notified    bool      `json:"notified"`
	Reasons     string    `json:"reasons,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Journal is an append-only SQLite log of classification decisions.
type Journal struct {
	db *sql.DB
}

func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open journal", goerr.V("path", path))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to enable WAL", goerr.V("path", path))
	}

	schema := `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL,
		admission TEXT NOT NULL,
		kind TEXT NOT NULL,
		transition TEXT NOT NULL,
		region TEXT,
		text TEXT,
		permalink TEXT,
		fingerprint TEXT,
		notified INTEGER NOT NULL DEFAULT 0,
		reasons TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS events_created_at ON events(created_at);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to create journal schema", goerr.V("path", path))
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events(source_id, admission, kind, transition, region, text, permalink, fingerprint, notified, reasons, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		e.SourceID, e.Admission, e.Kind, e.Transition, e.Region, e.Text, e.Permalink, e.Fingerprint,
		e.Notified, e.Reasons, e.CreatedAt.UTC().Format(tsLayout))
	if err != nil {
		return goerr.Wrap(err, "failed to record journal entry", goerr.V("source", e.SourceID))
	}
	return nil
}

// Recent returns the newest entries first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, source_id, admission, kind, transition, region, text, permalink, fingerprint, notified, reasons, created_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query journal")
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e                                    Entry
			region, text, permalink, fp, reasons sql.NullString
			ts                                   string
		)
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Admission, &e.Kind, &e.Transition,
			&region, &text, &permalink, &fp, &e.Notified, &reasons, &ts); err != nil {
			return nil, goerr.Wrap(err, "failed to scan journal row")
		}
		e.Region, e.Text, e.Permalink, e.Fingerprint, e.Reasons = region.String, text.String, permalink.String, fp.String, reasons.String
		if t, err := time.Parse(tsLayout, ts); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate journal rows")
	}
	return out, nil
}

// Prune removes entries older than cutoff and reports how many were
// deleted.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff.UTC().Format(tsLayout))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to prune journal")
	}
	return res.RowsAffected()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
