package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/logging"
)

const (
	operationSubmitAnswers = "submit_answers"
	// Answers collected on a placeholder whose backend attempt turned out to
	// be submitted already; they are never sent.
	operationSubmitAnswersDropped = "submit_answers_dropped"
)

// SubmissionService writes a student's answers in one bulk request and reads
// back the computed results.
type SubmissionService struct {
	answers  AnswerGateway
	attempts *AttemptManager
	journal  SuspectJournal
	validate *validator.Validate
	now      func() time.Time
	log      *zap.Logger
}

// NewSubmissionService wires the answer gateway; journal may be nil.
func NewSubmissionService(answers AnswerGateway, attempts *AttemptManager, journal SuspectJournal, log *zap.Logger) *SubmissionService {
	if journal == nil {
		journal = noJournal{}
	}
	return &SubmissionService{
		answers:  answers,
		attempts: attempts,
		journal:  journal,
		validate: validator.New(),
		now:      time.Now,
		log:      logging.OrNop(log),
	}
}

// Submit sends answers for the session's in-progress attempt. No request is
// made unless the answers are valid and the attempt is in progress. A failed
// write leaves the session untouched so the same answers can be retried.
func (s *SubmissionService) Submit(ctx context.Context, session *Session, answers []domain.AnswerSelection) (domain.Result, error) {
	if err := s.checkAnswers(session, answers); err != nil {
		return domain.Result{}, err
	}

	attempt, state := session.current()
	if state != domain.StateInProgress || attempt.Submitted() {
		return domain.Result{}, domain.ErrAttemptNotInProgress
	}

	if attempt.Placeholder {
		confirmed, err := s.confirmPlaceholder(ctx, session, attempt, answers)
		if err != nil {
			return domain.Result{}, err
		}
		attempt = confirmed
	}

	if _, err := s.answers.SubmitAnswers(ctx, attempt.ID, answers); err != nil {
		return domain.Result{}, fmt.Errorf("submit answers for attempt %d: %w", attempt.ID, err)
	}
	submittedAt := s.now()
	attempt.SubmittedAt = &submittedAt

	result, err := s.answers.GetResults(ctx, attempt.ID)
	if err != nil {
		// The backend accepted the answers; the attempt is terminal either way.
		session.complete(attempt.StudentID, attempt.QuizID, attempt, nil)
		return domain.Result{}, fmt.Errorf("fetch results for attempt %d: %w", attempt.ID, err)
	}
	score := result.Score
	attempt.Score = &score
	session.complete(attempt.StudentID, attempt.QuizID, attempt, &result)

	s.log.Info("answers submitted",
		zap.Int64("attempt_id", attempt.ID),
		zap.Int("answers", len(answers)),
		zap.Int("correct", result.CorrectAnswers),
		zap.Float64("score", result.Score))
	return result, nil
}

// confirmPlaceholder tries to swap the placeholder for the real attempt. Both
// outcomes are journaled since the answers were collected against an
// unconfirmed identity.
func (s *SubmissionService) confirmPlaceholder(ctx context.Context, session *Session, placeholder domain.Attempt, answers []domain.AnswerSelection) (domain.Attempt, error) {
	entry := domain.SuspectWrite{
		LocalRef:   placeholder.LocalRef,
		StudentID:  placeholder.StudentID,
		QuizID:     placeholder.QuizID,
		Operation:  operationSubmitAnswers,
		RecordedAt: s.now(),
	}
	if payload, err := json.Marshal(answers); err == nil {
		entry.Payload = payload
	}

	confirmed, reconcileErr := s.attempts.Reconcile(ctx, session)
	attempt, state := session.current()
	reconciled := reconcileErr == nil && confirmed && !attempt.Placeholder
	writable := reconciled && state == domain.StateInProgress && !attempt.Submitted()
	switch {
	case writable:
		entry.AttemptID = attempt.ID
		entry.Reconciled = true
	case reconciled:
		entry.AttemptID = attempt.ID
		entry.Operation = operationSubmitAnswersDropped
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.log.Warn("suspect write not journaled", zap.String("local_ref", entry.LocalRef), zap.Error(err))
	}

	if !reconciled {
		if reconcileErr != nil {
			return domain.Attempt{}, fmt.Errorf("%w: %v", domain.ErrSuspectAttempt, reconcileErr)
		}
		return domain.Attempt{}, domain.ErrSuspectAttempt
	}
	if !writable {
		return domain.Attempt{}, domain.ErrAttemptNotInProgress
	}
	return attempt, nil
}

func (s *SubmissionService) checkAnswers(session *Session, answers []domain.AnswerSelection) error {
	if len(answers) == 0 {
		return fmt.Errorf("%w: no answers selected", domain.ErrValidation)
	}
	seen := make(map[int64]struct{}, len(answers))
	for i := range answers {
		if err := s.validate.Struct(answers[i]); err != nil {
			return fmt.Errorf("%w: answer %d: %v", domain.ErrValidation, i, err)
		}
		if _, dup := seen[answers[i].QuestionID]; dup {
			return fmt.Errorf("%w: question %d answered twice", domain.ErrValidation, answers[i].QuestionID)
		}
		seen[answers[i].QuestionID] = struct{}{}
	}
	if quiz, ok := session.Quiz(); ok && quiz.Aggregated() {
		return matchSelections(quiz, answers)
	}
	return nil
}

// matchSelections checks every selection against the aggregated quiz tree.
// Questions whose options could not be loaded accept any option.
func matchSelections(quiz domain.Quiz, answers []domain.AnswerSelection) error {
	for _, sel := range answers {
		var question *domain.Question
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == sel.QuestionID {
				question = &quiz.Questions[i]
				break
			}
		}
		if question == nil {
			return fmt.Errorf("%w: %w: %d", domain.ErrValidation, domain.ErrQuestionNotFound, sel.QuestionID)
		}
		if len(question.Options) == 0 {
			continue
		}

		found := false
		for i := range question.Options {
			if question.Options[i].ID == sel.OptionID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %w: %d", domain.ErrValidation, domain.ErrOptionNotFound, sel.OptionID)
		}
	}
	return nil
}
