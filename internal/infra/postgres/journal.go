package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"edu-quiz-engine/internal/domain"
)

// Journal persists suspect writes in the suspect_writes table.
type Journal struct {
	pool *pgxpool.Pool
}

func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

func (j *Journal) Record(ctx context.Context, entry domain.SuspectWrite) error {
	var attemptID *int64
	if entry.AttemptID != 0 {
		attemptID = &entry.AttemptID
	}
	payload := string(entry.Payload)
	if payload == "" {
		payload = "[]"
	}
	_, err := j.pool.Exec(ctx,
		`INSERT INTO suspect_writes (local_ref, student_id, quiz_id, attempt_id, operation, payload, reconciled, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.LocalRef, entry.StudentID, entry.QuizID, attemptID, entry.Operation, payload, entry.Reconciled, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("record suspect write: %w", err)
	}
	return nil
}

// Pending lists unreconciled writes, oldest first. A limit <= 0 lists all.
func (j *Journal) Pending(ctx context.Context, limit int) ([]domain.SuspectWrite, error) {
	// LIMIT NULL is unbounded.
	var bound interface{}
	if limit > 0 {
		bound = limit
	}
	rows, err := j.pool.Query(ctx,
		`SELECT local_ref, student_id, quiz_id, COALESCE(attempt_id, 0), operation, payload::text, reconciled, recorded_at
		 FROM suspect_writes WHERE NOT reconciled ORDER BY recorded_at LIMIT $1`, bound)
	if err != nil {
		return nil, fmt.Errorf("list suspect writes: %w", err)
	}
	defer rows.Close()

	var out []domain.SuspectWrite
	for rows.Next() {
		var (
			entry   domain.SuspectWrite
			payload string
		)
		if err := rows.Scan(&entry.LocalRef, &entry.StudentID, &entry.QuizID, &entry.AttemptID,
			&entry.Operation, &payload, &entry.Reconciled, &entry.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan suspect write: %w", err)
		}
		entry.Payload = []byte(payload)
		out = append(out, entry)
	}
	return out, rows.Err()
}
