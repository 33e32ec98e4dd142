package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/logging"
	"edu-quiz-engine/internal/metrics"
)

// AttemptManager resolves the attempt a student works on for a quiz and keeps
// the session's current attempt in step with the backend.
type AttemptManager struct {
	attempts AttemptGateway
	log      *zap.Logger
	newRef   func() string
	sf       singleflight.Group
}

func NewAttemptManager(attempts AttemptGateway, log *zap.Logger) *AttemptManager {
	return &AttemptManager{
		attempts: attempts,
		log:      logging.OrNop(log),
		newRef:   uuid.NewString,
	}
}

type resolution struct {
	attempt domain.Attempt
	result  *domain.Result
	how     string
}

// StartOrResume moves the session to the (student, quiz) attempt: an existing
// unsubmitted attempt is resumed, a submitted one completes the session, and
// only when none exists is a new one created.
func (m *AttemptManager) StartOrResume(ctx context.Context, session *Session, studentID, quizID int64) (domain.SessionSnapshot, error) {
	key := fmt.Sprintf("%d:%d", studentID, quizID)
	v, err := joinFlight(ctx, &m.sf, key, func(ctx context.Context) (interface{}, error) {
		return m.resolve(ctx, studentID, quizID)
	})
	if err != nil {
		return session.Snapshot(), err
	}

	res := v.(resolution)
	metrics.AttemptTransitions.WithLabelValues(res.how).Inc()
	m.log.Info("attempt resolved",
		zap.String("session_id", session.ID()),
		zap.Int64("student_id", studentID),
		zap.Int64("quiz_id", quizID),
		zap.Int64("attempt_id", res.attempt.ID),
		zap.String("resolution", res.how))

	if res.attempt.Submitted() {
		session.complete(studentID, quizID, res.attempt, res.result)
	} else {
		session.begin(studentID, quizID, res.attempt)
	}
	return session.Snapshot(), nil
}

func (m *AttemptManager) resolve(ctx context.Context, studentID, quizID int64) (resolution, error) {
	existing, found, err := m.find(ctx, studentID, quizID)
	switch {
	case err != nil:
		// Creation is conflict-guarded, so a failed lookup is not fatal.
		m.log.Warn("listing attempts failed, trying to create",
			zap.Int64("student_id", studentID), zap.Int64("quiz_id", quizID), zap.Error(err))
	case found:
		return m.reuse(ctx, existing, "resumed"), nil
	}

	created, err := m.attempts.CreateAttempt(ctx, quizID, studentID)
	if err == nil {
		return resolution{attempt: created, how: "created"}, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return resolution{}, fmt.Errorf("create attempt for quiz %d: %w", quizID, err)
	}

	m.log.Info("attempt already exists, re-querying",
		zap.Int64("student_id", studentID), zap.Int64("quiz_id", quizID))
	existing, found, lookupErr := m.find(ctx, studentID, quizID)
	if lookupErr == nil && found {
		return m.reuse(ctx, existing, "conflict_reused"), nil
	}

	placeholder := domain.Attempt{
		QuizID:      quizID,
		StudentID:   studentID,
		Placeholder: true,
		LocalRef:    m.newRef(),
	}
	m.log.Warn("attempt conflict unresolved, continuing with placeholder",
		zap.Int64("student_id", studentID),
		zap.Int64("quiz_id", quizID),
		zap.String("local_ref", placeholder.LocalRef),
		zap.NamedError("lookup_error", lookupErr))
	return resolution{attempt: placeholder, how: "placeholder"}, nil
}

// reuse adopts an existing attempt; a submitted one is completed with its results.
func (m *AttemptManager) reuse(ctx context.Context, attempt domain.Attempt, how string) resolution {
	if !attempt.Submitted() {
		return resolution{attempt: attempt, how: how}
	}
	result, err := m.attempts.GetResults(ctx, attempt.ID)
	if err != nil {
		m.log.Warn("results unavailable for submitted attempt",
			zap.Int64("attempt_id", attempt.ID), zap.Error(err))
		return resolution{attempt: attempt, how: "completed"}
	}
	return resolution{attempt: attempt, result: &result, how: "completed"}
}

func (m *AttemptManager) find(ctx context.Context, studentID, quizID int64) (domain.Attempt, bool, error) {
	attempts, err := m.attempts.ListAttempts(ctx, studentID)
	if err != nil {
		return domain.Attempt{}, false, err
	}
	for _, attempt := range attempts {
		if attempt.QuizID == quizID {
			return attempt, true, nil
		}
	}
	return domain.Attempt{}, false, nil
}

// Reconcile replaces a placeholder attempt with the backend's identity when it
// can now be found. It reports whether the session holds a confirmed attempt.
func (m *AttemptManager) Reconcile(ctx context.Context, session *Session) (bool, error) {
	attempt, _ := session.current()
	if !attempt.Placeholder {
		return true, nil
	}

	existing, found, err := m.find(ctx, attempt.StudentID, attempt.QuizID)
	if err != nil {
		return false, fmt.Errorf("reconcile attempt %s: %w", attempt.LocalRef, err)
	}
	if !found {
		return false, nil
	}

	m.log.Info("placeholder attempt reconciled",
		zap.String("local_ref", attempt.LocalRef), zap.Int64("attempt_id", existing.ID))
	if existing.Submitted() {
		res := m.reuse(ctx, existing, "completed")
		session.complete(attempt.StudentID, attempt.QuizID, res.attempt, res.result)
		return true, nil
	}
	session.adopt(existing)
	return true, nil
}

// Abandon deletes the in-progress attempt and leaves the session without one.
func (m *AttemptManager) Abandon(ctx context.Context, session *Session) error {
	attempt, state := session.current()
	switch state {
	case domain.StateNoAttempt:
		return domain.ErrAttemptNotInProgress
	case domain.StateCompleted:
		return domain.ErrAttemptCompleted
	}

	if !attempt.Placeholder {
		if err := m.attempts.DeleteAttempt(ctx, attempt.ID); err != nil {
			return fmt.Errorf("delete attempt %d: %w", attempt.ID, err)
		}
	}
	session.reset()
	return nil
}

// RefreshResults re-reads the results of a completed attempt.
func (m *AttemptManager) RefreshResults(ctx context.Context, session *Session) (domain.Result, error) {
	attempt, state := session.current()
	if state != domain.StateCompleted || attempt.Placeholder {
		return domain.Result{}, domain.ErrAttemptNotCompleted
	}
	result, err := m.attempts.GetResults(ctx, attempt.ID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("fetch results for attempt %d: %w", attempt.ID, err)
	}
	session.setResult(result)
	return result, nil
}
