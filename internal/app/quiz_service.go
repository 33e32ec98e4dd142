package app

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/logging"
)

// SessionView is what a student sees after starting a quiz.
type SessionView struct {
	Session domain.SessionSnapshot `json:"session"`
	Quiz    domain.Quiz            `json:"quiz"`
}

// Outcome reports a submission and the reward it earned. RewardErr is set when
// the reward step failed; the completion itself stands.
type Outcome struct {
	Session   domain.SessionSnapshot `json:"session"`
	Result    domain.Result          `json:"result"`
	Award     Award                  `json:"award"`
	RewardErr error                  `json:"-"`
}

// QuizService contains the quiz-taking use cases.
type QuizService struct {
	sessions    SessionRepository
	aggregator  *QuizAggregator
	attempts    *AttemptManager
	submissions *SubmissionService
	rewards     *BadgeAssigner
	log         *zap.Logger
}

func NewQuizService(sessions SessionRepository, aggregator *QuizAggregator, attempts *AttemptManager, submissions *SubmissionService, rewards *BadgeAssigner, log *zap.Logger) *QuizService {
	return &QuizService{
		sessions:    sessions,
		aggregator:  aggregator,
		attempts:    attempts,
		submissions: submissions,
		rewards:     rewards,
		log:         logging.OrNop(log),
	}
}

// Start ensures the student's attempt and loads the full quiz. An empty
// sessionID opens a new session.
func (s *QuizService) Start(ctx context.Context, sessionID string, studentID, quizID int64) (SessionView, error) {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}
	session := s.sessions.GetOrCreate(sessionID)

	snapshot, err := s.attempts.StartOrResume(ctx, session, studentID, quizID)
	if err != nil {
		return SessionView{Session: snapshot}, err
	}

	quiz, err := s.aggregator.LoadFullQuiz(ctx, quizID)
	if err != nil {
		return SessionView{Session: snapshot}, err
	}
	session.attachQuiz(quiz)
	return SessionView{Session: session.Snapshot(), Quiz: quiz}, nil
}

// Submit grades the session's attempt and then runs reward assignment.
func (s *QuizService) Submit(ctx context.Context, sessionID string, answers []domain.AnswerSelection) (Outcome, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return Outcome{}, domain.ErrSessionNotFound
	}

	result, err := s.submissions.Submit(ctx, session, answers)
	if err != nil {
		return Outcome{Session: session.Snapshot()}, err
	}

	snapshot := session.Snapshot()
	outcome := Outcome{Session: snapshot, Result: result}
	if s.rewards == nil {
		return outcome, nil
	}
	award, err := s.rewards.AssignForCompletion(ctx, snapshot.StudentID, snapshot.QuizID, result.Score)
	if err != nil {
		s.log.Error("reward assignment failed",
			zap.String("session_id", sessionID),
			zap.Int64("student_id", snapshot.StudentID),
			zap.Error(err))
		outcome.RewardErr = err
		return outcome, nil
	}
	outcome.Award = award
	return outcome, nil
}

// Results re-reads the results of the session's completed attempt.
func (s *QuizService) Results(ctx context.Context, sessionID string) (domain.Result, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Result{}, domain.ErrSessionNotFound
	}
	return s.attempts.RefreshResults(ctx, session)
}

// Abandon discards the session's in-progress attempt.
func (s *QuizService) Abandon(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return s.attempts.Abandon(ctx, session)
}

// Snapshot returns the current state of a session.
func (s *QuizService) Snapshot(sessionID string) (domain.SessionSnapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionSnapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel that receives the session's snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionSnapshot, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Close ends a quiz-taking session and drops its state.
func (s *QuizService) Close(sessionID string) {
	if session, ok := s.sessions.Get(sessionID); ok {
		session.Close()
	}
	s.sessions.Delete(sessionID)
}

func (s *QuizService) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return s.aggregator.LoadFullQuiz(ctx, quizID)
}

func (s *QuizService) QuizzesForStory(ctx context.Context, storyID int64) (domain.QuizPage, error) {
	return s.aggregator.LoadQuizzesForStory(ctx, storyID)
}
