package memory

import (
	"context"
	"sync"

	"edu-quiz-engine/internal/domain"
)

// Journal keeps suspect writes in process memory.
type Journal struct {
	mu      sync.Mutex
	entries []domain.SuspectWrite
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Record(_ context.Context, entry domain.SuspectWrite) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

// Entries returns the recorded writes in order.
func (j *Journal) Entries() []domain.SuspectWrite {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.SuspectWrite(nil), j.entries...)
}

// Pending lists unreconciled writes, oldest first. A limit <= 0 lists all.
func (j *Journal) Pending(_ context.Context, limit int) ([]domain.SuspectWrite, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.SuspectWrite
	for _, e := range j.entries {
		if e.Reconciled {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}
