package memory

import (
	"context"
	"sync"
	"time"
)

type claimKey struct {
	studentID int64
	badgeID   int64
}

// ClaimStore keeps badge claims for a single process. A ttl of 0 keeps claims
// until released.
type ClaimStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	claims map[claimKey]time.Time
}

func NewClaimStore(ttl time.Duration) *ClaimStore {
	return &ClaimStore{
		ttl:    ttl,
		now:    time.Now,
		claims: make(map[claimKey]time.Time),
	}
}

// Claim reports whether the caller now holds the (student, badge) claim.
func (s *ClaimStore) Claim(_ context.Context, studentID, badgeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimKey{studentID: studentID, badgeID: badgeID}
	now := s.now()
	if expires, ok := s.claims[key]; ok && (expires.IsZero() || now.Before(expires)) {
		return false, nil
	}

	var expires time.Time
	if s.ttl > 0 {
		expires = now.Add(s.ttl)
	}
	s.claims[key] = expires
	return true, nil
}

func (s *ClaimStore) Release(_ context.Context, studentID, badgeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, claimKey{studentID: studentID, badgeID: badgeID})
	return nil
}
