// Package catalog tracks which sessions have been converted. The catalog
// is one SQLite database shared by all conversions of a lab's data; each
// row records a session's alignment diagnostics, its source fingerprint,
// and where the archive ended up. Batch runs consult it to skip sessions
// whose inputs have not changed since their last conversion.
package catalog

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// Record is one cataloged conversion.
type Record struct {
	SessionID   string
	SubjectID   string
	TimeShift   float64
	Branch      string
	Fingerprint uint64
	ArchivePath string
	RemotePath  string
	TrialCount  int64
	CreatedAt   time.Time
}

// Catalog is the conversions registry.
type Catalog struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	session_id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	time_shift REAL NOT NULL,
	branch TEXT NOT NULL,
	fingerprint INTEGER NOT NULL,
	archive_path TEXT NOT NULL,
	remote_path TEXT,
	trial_count INTEGER NOT NULL,
	created_at TEXT NOT NULL
) WITHOUT ROWID;
CREATE INDEX IF NOT EXISTS idx_conversions_subject ON conversions(subject_id);
`

// Open opens the catalog database at path, creating the schema on first use.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, types.NewCatalogError("catalog: open database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, types.NewCatalogError("catalog: create schema", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Register records a completed conversion. Re-registering a session
// replaces its previous row: a re-run with changed inputs supersedes the
// old conversion.
func (c *Catalog) Register(ctx context.Context, rec Record) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversions
		 (session_id, subject_id, time_shift, branch, fingerprint, archive_path, remote_path, trial_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.SubjectID, rec.TimeShift, rec.Branch,
		int64(rec.Fingerprint), rec.ArchivePath, rec.RemotePath,
		rec.TrialCount, rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return types.NewCatalogError("catalog: register conversion", err)
	}
	return nil
}

// AlreadyConverted reports whether the session was previously converted
// from sources with the given fingerprint. A cataloged session whose
// fingerprint differs counts as not converted: its inputs changed and it
// must be converted again.
func (c *Catalog) AlreadyConverted(ctx context.Context, sessionID string, fingerprint uint64) (bool, error) {
	var stored int64
	err := c.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM conversions WHERE session_id = ?`, sessionID).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, types.NewCatalogError("catalog: query conversion", err)
	}
	return uint64(stored) == fingerprint, nil
}

// Lookup returns the cataloged record for a session, or nil when the
// session has never been converted.
func (c *Catalog) Lookup(ctx context.Context, sessionID string) (*Record, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT session_id, subject_id, time_shift, branch, fingerprint,
		        archive_path, remote_path, trial_count, created_at
		 FROM conversions WHERE session_id = ?`, sessionID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewCatalogError("catalog: lookup conversion", err)
	}
	return rec, nil
}

// BySubject returns every cataloged conversion for one subject, newest first.
func (c *Catalog) BySubject(ctx context.Context, subjectID string) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT session_id, subject_id, time_shift, branch, fingerprint,
		        archive_path, remote_path, trial_count, created_at
		 FROM conversions WHERE subject_id = ? ORDER BY created_at DESC`, subjectID)
	if err != nil {
		return nil, types.NewCatalogError("catalog: list conversions", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, types.NewCatalogError("catalog: scan conversion row", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewCatalogError("catalog: iterate conversions", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var fingerprint int64
	var createdAt string
	var remote sql.NullString
	err := s.Scan(&rec.SessionID, &rec.SubjectID, &rec.TimeShift, &rec.Branch,
		&fingerprint, &rec.ArchivePath, &remote, &rec.TrialCount, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Fingerprint = uint64(fingerprint)
	rec.RemotePath = remote.String
	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
