// Package archive writes aligned sessions to self-contained SQLite files.
// One archive holds one session: its metadata, trial tables, and every
// recording timeline, all in the common aligned frame. Archives are
// immutable once written; a failed write leaves no file behind.
package archive

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/trials"
	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// ArchiveInfo describes a written session archive.
type ArchiveInfo struct {
	ArchiveID   string
	ArchivePath string
	TrialCount  int64
	SeriesCount int64
	SizeBytes   int64
	CreatedAt   time.Time
}

// Writer creates session archives under a fixed output directory.
type Writer struct {
	outputDir string
}

// NewWriter creates a Writer rooted at outputDir.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// Write persists one aligned session. The file is built under WAL for
// write throughput, then checkpointed and switched to DELETE journal mode
// so the result is a single immutable file. Any error removes the partial
// file before returning.
func (w *Writer) Write(ctx context.Context, session *types.AlignedSession) (*ArchiveInfo, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return nil, types.NewArchiveError("archive: create output directory", err)
	}

	archiveID := fmt.Sprintf("%s-%s", session.SessionID, uuid.New().String()[:8])
	path := filepath.Clean(filepath.Join(w.outputDir, archiveID+".sqlite"))
	createdAt := time.Now()

	info, err := w.write(ctx, path, archiveID, session, createdAt)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

func (w *Writer) write(ctx context.Context, path, archiveID string, session *types.AlignedSession, createdAt time.Time) (*ArchiveInfo, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, types.NewArchiveError("archive: create SQLite file", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, types.NewArchiveError("archive: set journal mode", err)
	}
	for _, ddl := range tableDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, types.NewArchiveError("archive: create tables", err)
		}
	}

	if err := w.writeSession(ctx, db, session, createdAt); err != nil {
		return nil, err
	}
	if err := w.writeMetadata(ctx, db, session); err != nil {
		return nil, err
	}
	if err := w.writeColumns(ctx, db, session); err != nil {
		return nil, err
	}
	if err := w.writeTrials(ctx, db, session); err != nil {
		return nil, err
	}
	if err := w.writeTables(ctx, db, session); err != nil {
		return nil, err
	}
	seriesCount, err := w.writeSeries(ctx, db, session)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, types.NewArchiveError("archive: checkpoint WAL", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, types.NewArchiveError("archive: switch journal mode to DELETE", err)
	}
	if err := db.Close(); err != nil {
		return nil, types.NewArchiveError("archive: close SQLite file", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, types.NewArchiveError("archive: stat archive file", err)
	}
	return &ArchiveInfo{
		ArchiveID:   archiveID,
		ArchivePath: path,
		TrialCount:  int64(session.TrialStarts.Len()),
		SeriesCount: seriesCount,
		SizeBytes:   stat.Size(),
		CreatedAt:   createdAt,
	}, nil
}

var tableDDL = []string{
	`CREATE TABLE session (
		session_id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		epoch_utc TEXT NOT NULL,
		time_shift REAL NOT NULL,
		branch TEXT NOT NULL,
		created_at TEXT NOT NULL
	) WITHOUT ROWID`,
	`CREATE TABLE trials (
		trial INTEGER PRIMARY KEY,
		start_time REAL NOT NULL,
		stop_time REAL NOT NULL,
		params BLOB
	) WITHOUT ROWID`,
	`CREATE TABLE states (
		trial INTEGER NOT NULL,
		name TEXT NOT NULL,
		start_time REAL NOT NULL,
		stop_time REAL NOT NULL
	)`,
	`CREATE TABLE events (
		trial INTEGER NOT NULL,
		name TEXT NOT NULL,
		event_time REAL NOT NULL,
		value TEXT
	)`,
	`CREATE TABLE actions (
		trial INTEGER NOT NULL,
		name TEXT NOT NULL,
		action_time REAL NOT NULL,
		value TEXT
	)`,
	`CREATE TABLE metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	) WITHOUT ROWID`,
	`CREATE TABLE columns (
		name TEXT PRIMARY KEY,
		description TEXT NOT NULL
	) WITHOUT ROWID`,
	`CREATE TABLE series (
		recording TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		sample_count INTEGER NOT NULL,
		timestamps BLOB NOT NULL,
		PRIMARY KEY (recording, name)
	) WITHOUT ROWID`,
	`CREATE INDEX idx_states_trial ON states(trial)`,
	`CREATE INDEX idx_events_trial ON events(trial)`,
	`CREATE INDEX idx_actions_trial ON actions(trial)`,
}

func (w *Writer) writeSession(ctx context.Context, db *sql.DB, session *types.AlignedSession, createdAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO session (session_id, subject_id, epoch_utc, time_shift, branch, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.SubjectID,
		session.Epoch.UTC().Format(time.RFC3339),
		session.TimeShift, session.Branch.String(),
		createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return types.NewArchiveError("archive: insert session row", err)
	}
	return nil
}

// writeMetadata stores the merged session metadata as key/value rows.
// Empty values are left out so readers can tell "not recorded" from "".
func (w *Writer) writeMetadata(ctx context.Context, db *sql.DB, session *types.AlignedSession) error {
	stmt, err := db.PrepareContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`)
	if err != nil {
		return types.NewArchiveError("archive: prepare metadata insert", err)
	}
	defer stmt.Close()

	meta := session.Metadata
	rows := [][2]string{
		{"session_description", meta.Description},
		{"experimenter", meta.Experimenter},
		{"institution", meta.Institution},
		{"lab", meta.Lab},
		{"subject_description", meta.Subject.Description},
		{"subject_species", meta.Subject.Species},
		{"subject_sex", meta.Subject.Sex},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, row[0], row[1]); err != nil {
			return types.NewArchiveError(
				fmt.Sprintf("archive: insert metadata key %s", row[0]), err)
		}
	}
	return nil
}

// writeColumns stores the effective trial column descriptions, keyed by
// archived column name, with the session's metadata overrides applied.
func (w *Writer) writeColumns(ctx context.Context, db *sql.DB, session *types.AlignedSession) error {
	stmt, err := db.PrepareContext(ctx,
		`INSERT OR REPLACE INTO columns (name, description) VALUES (?, ?)`)
	if err != nil {
		return types.NewArchiveError("archive: prepare column insert", err)
	}
	defer stmt.Close()

	for field, spec := range trials.MergeColumns(session.Metadata.Columns) {
		name := spec.Name
		if name == "" {
			name = field
		}
		if spec.Description == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, name, spec.Description); err != nil {
			return types.NewArchiveError(
				fmt.Sprintf("archive: insert column %s", name), err)
		}
	}
	return nil
}

func (w *Writer) writeTrials(ctx context.Context, db *sql.DB, session *types.AlignedSession) error {
	stmt, err := db.PrepareContext(ctx,
		`INSERT INTO trials (trial, start_time, stop_time, params) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return types.NewArchiveError("archive: prepare trial insert", err)
	}
	defer stmt.Close()

	for i := 0; i < session.TrialStarts.Len(); i++ {
		var params []byte
		if i < len(session.TrialParams) && session.TrialParams[i] != nil {
			encoded, err := json.Marshal(session.TrialParams[i])
			if err != nil {
				return types.NewArchiveError(fmt.Sprintf("archive: marshal trial %d params", i), err)
			}
			params = snappy.Encode(nil, encoded)
		}
		if _, err := stmt.ExecContext(ctx, i, session.TrialStarts.At(i), session.TrialStops.At(i), params); err != nil {
			return types.NewArchiveError(fmt.Sprintf("archive: insert trial %d", i), err)
		}
	}
	return nil
}

func (w *Writer) writeTables(ctx context.Context, db *sql.DB, session *types.AlignedSession) error {
	states, err := db.PrepareContext(ctx,
		`INSERT INTO states (trial, name, start_time, stop_time) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return types.NewArchiveError("archive: prepare state insert", err)
	}
	defer states.Close()
	for _, s := range session.States {
		if _, err := states.ExecContext(ctx, s.Trial, s.Name, s.Start, s.Stop); err != nil {
			return types.NewArchiveError("archive: insert state row", err)
		}
	}

	events, err := db.PrepareContext(ctx,
		`INSERT INTO events (trial, name, event_time, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return types.NewArchiveError("archive: prepare event insert", err)
	}
	defer events.Close()
	for _, e := range session.Events {
		if _, err := events.ExecContext(ctx, e.Trial, e.Name, e.Time, e.Value); err != nil {
			return types.NewArchiveError("archive: insert event row", err)
		}
	}

	actions, err := db.PrepareContext(ctx,
		`INSERT INTO actions (trial, name, action_time, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return types.NewArchiveError("archive: prepare action insert", err)
	}
	defer actions.Close()
	for _, a := range session.Actions {
		if _, err := actions.ExecContext(ctx, a.Trial, a.Name, a.Time, a.Value); err != nil {
			return types.NewArchiveError("archive: insert action row", err)
		}
	}
	return nil
}

func (w *Writer) writeSeries(ctx context.Context, db *sql.DB, session *types.AlignedSession) (int64, error) {
	stmt, err := db.PrepareContext(ctx,
		`INSERT INTO series (recording, name, kind, sample_count, timestamps) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, types.NewArchiveError("archive: prepare series insert", err)
	}
	defer stmt.Close()

	var count int64
	insert := func(recording, name string, kind types.RecordingKind, tl types.Timeline) error {
		if tl.IsEmpty() {
			return nil
		}
		if _, err := stmt.ExecContext(ctx, recording, name, string(kind),
			tl.Len(), encodeTimestamps(tl)); err != nil {
			return types.NewArchiveError(
				fmt.Sprintf("archive: insert series %s/%s", recording, name), err)
		}
		count++
		return nil
	}

	for _, rec := range session.Recordings {
		if err := insert(rec.Name, "samples", rec.Kind, rec.Samples); err != nil {
			return 0, err
		}
		if err := insert(rec.Name, "markers", rec.Kind, rec.Markers); err != nil {
			return 0, err
		}
		for name, tl := range rec.Aux {
			if err := insert(rec.Name, name, rec.Kind, tl); err != nil {
				return 0, err
			}
		}
	}
	return count, nil
}

// encodeTimestamps materializes a timeline into a snappy-compressed block
// of little-endian float64 values.
func encodeTimestamps(tl types.Timeline) []byte {
	raw := make([]byte, 8*tl.Len())
	for i, v := range tl.Materialize() {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	return snappy.Encode(nil, raw)
}

// DecodeTimestamps reverses encodeTimestamps. Readers of archives use it
// to recover a series block.
func DecodeTimestamps(block []byte) ([]float64, error) {
	raw, err := snappy.Decode(nil, block)
	if err != nil {
		return nil, types.NewInputError(types.CodeParseFailed, "archive: decompress series block", err)
	}
	if len(raw)%8 != 0 {
		return nil, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("archive: series block length %d is not a multiple of 8", len(raw)), nil)
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}
