package app

import (
	"context"

	"edu-quiz-engine/internal/domain"
)

// QuizGateway reads quiz content from the backend.
type QuizGateway interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, page, size int) (domain.QuizPage, error)
	ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)
	ListOptions(ctx context.Context, questionID int64) ([]domain.Option, error)
}

// AttemptGateway manages submissions (attempts) on the backend.
type AttemptGateway interface {
	CreateAttempt(ctx context.Context, quizID, studentID int64) (domain.Attempt, error)
	ListAttempts(ctx context.Context, studentID int64) ([]domain.Attempt, error)
	DeleteAttempt(ctx context.Context, attemptID int64) error
	GetResults(ctx context.Context, attemptID int64) (domain.Result, error)
}

// AnswerGateway writes answers and reads the computed results.
type AnswerGateway interface {
	SubmitAnswers(ctx context.Context, attemptID int64, answers []domain.AnswerSelection) ([]domain.Answer, error)
	GetResults(ctx context.Context, attemptID int64) (domain.Result, error)
}

// BadgeGateway reads the badge catalog and student ownership, and assigns badges.
type BadgeGateway interface {
	ListBadges(ctx context.Context) ([]domain.Badge, error)
	ListStudentBadges(ctx context.Context, studentID int64) ([]domain.Badge, error)
	AssignBadge(ctx context.Context, badgeID, studentID int64) (domain.Badge, error)
}

// Gateway is everything the engine needs from the backend.
type Gateway interface {
	QuizGateway
	AttemptGateway
	AnswerGateway
	BadgeGateway
}

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(sessionID string) *Session
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// ClaimStore records best-effort (student, badge) claims so concurrent
// completions sharing the store do not pick the same badge. The backend's
// uniqueness constraint remains the real guarantee.
type ClaimStore interface {
	Claim(ctx context.Context, studentID, badgeID int64) (bool, error)
	Release(ctx context.Context, studentID, badgeID int64) error
}

// SuspectJournal keeps writes issued while a session held a placeholder attempt.
type SuspectJournal interface {
	Record(ctx context.Context, entry domain.SuspectWrite) error
}

type noClaims struct{}

func (noClaims) Claim(context.Context, int64, int64) (bool, error) { return true, nil }
func (noClaims) Release(context.Context, int64, int64) error       { return nil }

type noJournal struct{}

func (noJournal) Record(context.Context, domain.SuspectWrite) error { return nil }
