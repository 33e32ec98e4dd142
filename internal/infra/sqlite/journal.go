package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"edu-quiz-engine/internal/domain"
)

// Journal keeps suspect writes in a local SQLite file, for single-node
// deployments without Postgres.
type Journal struct {
	db *sql.DB
}

func NewJournal(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		path = "suspect_writes.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS suspect_writes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			local_ref TEXT NOT NULL,
			student_id INTEGER NOT NULL,
			quiz_id INTEGER NOT NULL,
			attempt_id INTEGER NOT NULL DEFAULT 0,
			operation TEXT NOT NULL,
			payload TEXT NOT NULL,
			reconciled INTEGER NOT NULL DEFAULT 0,
			recorded_at_unix INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_suspect_writes_pending ON suspect_writes(reconciled, recorded_at_unix);`,
	}
	for _, stmt := range statements {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Record(ctx context.Context, entry domain.SuspectWrite) error {
	reconciled := 0
	if entry.Reconciled {
		reconciled = 1
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO suspect_writes (local_ref, student_id, quiz_id, attempt_id, operation, payload, reconciled, recorded_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.LocalRef, entry.StudentID, entry.QuizID, entry.AttemptID, entry.Operation,
		string(entry.Payload), reconciled, entry.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record suspect write: %w", err)
	}
	return nil
}

// Pending lists unreconciled writes, oldest first. A limit <= 0 lists all.
func (j *Journal) Pending(ctx context.Context, limit int) ([]domain.SuspectWrite, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT local_ref, student_id, quiz_id, attempt_id, operation, payload, recorded_at_unix
		 FROM suspect_writes WHERE reconciled = 0 ORDER BY recorded_at_unix, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list suspect writes: %w", err)
	}
	defer rows.Close()

	var out []domain.SuspectWrite
	for rows.Next() {
		var (
			entry    domain.SuspectWrite
			payload  string
			recorded int64
		)
		if err := rows.Scan(&entry.LocalRef, &entry.StudentID, &entry.QuizID, &entry.AttemptID,
			&entry.Operation, &payload, &recorded); err != nil {
			return nil, fmt.Errorf("scan suspect write: %w", err)
		}
		entry.Payload = []byte(payload)
		entry.RecordedAt = time.Unix(0, recorded).UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}
