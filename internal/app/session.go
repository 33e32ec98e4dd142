package app

import (
	"sync"
	"time"

	"edu-quiz-engine/internal/domain"
)

// Session holds the current attempt of one quiz-taking session. Exactly one
// attempt is current at a time; starting another quiz replaces it.
type Session struct {
	id       string
	now      func() time.Time
	onChange func(domain.SessionSnapshot)

	mu          sync.RWMutex
	studentID   int64
	quizID      int64
	state       domain.AttemptState
	attempt     *domain.Attempt
	result      *domain.Result
	quiz        *domain.Quiz
	suspect     bool
	updatedAt   time.Time
	subscribers map[chan domain.SessionSnapshot]struct{}
}

// NewSession creates an empty session. onChange, when set, receives every new
// snapshot after the session lock is released (stores use it to persist state).
func NewSession(id string, onChange func(domain.SessionSnapshot)) *Session {
	return NewSessionWithClock(id, time.Now, onChange)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, now func() time.Time, onChange func(domain.SessionSnapshot)) *Session {
	return &Session{
		id:          id,
		now:         now,
		onChange:    onChange,
		updatedAt:   now(),
		subscribers: make(map[chan domain.SessionSnapshot]struct{}),
	}
}

// RestoreSession rebuilds a session from a persisted snapshot.
func RestoreSession(snapshot domain.SessionSnapshot, onChange func(domain.SessionSnapshot)) *Session {
	s := NewSession(snapshot.SessionID, onChange)
	s.studentID = snapshot.StudentID
	s.quizID = snapshot.QuizID
	s.state = snapshot.State
	s.suspect = snapshot.Suspect
	s.updatedAt = snapshot.UpdatedAt
	if snapshot.Attempt != nil {
		attempt := *snapshot.Attempt
		s.attempt = &attempt
	}
	if snapshot.Result != nil {
		result := *snapshot.Result
		s.result = &result
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Quiz returns the aggregated quiz attached to this session, if any.
func (s *Session) Quiz() (domain.Quiz, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.quiz == nil || s.quiz.ID != s.quizID {
		return domain.Quiz{}, false
	}
	return *s.quiz, true
}

func (s *Session) current() (domain.Attempt, domain.AttemptState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.attempt == nil {
		return domain.Attempt{}, s.state
	}
	return *s.attempt, s.state
}

func (s *Session) attachQuiz(quiz domain.Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quiz = &quiz
}

// begin makes attempt the current, in-progress attempt.
func (s *Session) begin(studentID, quizID int64, attempt domain.Attempt) {
	s.update(func() {
		if s.quizID != quizID {
			s.quiz = nil
		}
		s.studentID = studentID
		s.quizID = quizID
		s.state = domain.StateInProgress
		s.attempt = &attempt
		s.result = nil
		s.suspect = attempt.Placeholder
	})
}

// adopt swaps a placeholder for the identity confirmed by the backend.
func (s *Session) adopt(attempt domain.Attempt) {
	s.update(func() {
		s.attempt = &attempt
	})
}

// complete marks the attempt terminal. result may be nil when it could not be read.
func (s *Session) complete(studentID, quizID int64, attempt domain.Attempt, result *domain.Result) {
	s.update(func() {
		if s.quizID != quizID {
			s.quiz = nil
			s.suspect = false
		}
		s.studentID = studentID
		s.quizID = quizID
		s.state = domain.StateCompleted
		s.attempt = &attempt
		s.result = result
	})
}

func (s *Session) setResult(result domain.Result) {
	s.update(func() {
		s.result = &result
	})
}

func (s *Session) reset() {
	s.update(func() {
		s.state = domain.StateNoAttempt
		s.attempt = nil
		s.result = nil
		s.suspect = false
	})
}

func (s *Session) update(mutate func()) {
	s.mu.Lock()
	mutate()
	s.updatedAt = s.now()
	snapshot := s.broadcastLocked()
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}

// Subscribe returns a channel of snapshots starting with the current one. The
// caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	// The buffer is empty, so this cannot block, and Close cannot run before it.
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close ends every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) broadcastLocked() domain.SessionSnapshot {
	snapshot := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Slow subscriber: drop its oldest update so the latest state wins.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
	return snapshot
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snapshot := domain.SessionSnapshot{
		SessionID: s.id,
		StudentID: s.studentID,
		QuizID:    s.quizID,
		State:     s.state,
		Suspect:   s.suspect,
		UpdatedAt: s.updatedAt,
	}
	if s.attempt != nil {
		attempt := *s.attempt
		snapshot.Attempt = &attempt
	}
	if s.result != nil {
		result := *s.result
		snapshot.Result = &result
	}
	return snapshot
}
