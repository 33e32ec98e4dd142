package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"edu-quiz-engine/internal/domain"
)

var errBackendDown = errors.New("backend down")

// fakeGateway is an in-memory backend with per-operation call counters and
// injectable failures.
type fakeGateway struct {
	mu sync.Mutex

	quizzes   map[int64]domain.Quiz
	questions map[int64][]domain.Question
	options   map[int64][]domain.Option

	attempts    map[int64][]domain.Attempt
	nextAttempt int64
	results     map[int64]domain.Result

	catalog []domain.Badge
	owned   map[int64][]domain.Badge

	failQuiz       error
	failQuestions  error
	failOptions    map[int64]error
	optionDelay    map[int64]time.Duration
	createDelay    time.Duration
	failList       error
	failListOnce   error
	failCreate     error
	hideOnConflict bool
	failSubmit     error
	failResults    error
	failAssign     error

	calls map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		quizzes:     map[int64]domain.Quiz{},
		questions:   map[int64][]domain.Question{},
		options:     map[int64][]domain.Option{},
		attempts:    map[int64][]domain.Attempt{},
		nextAttempt: 501,
		results:     map[int64]domain.Result{},
		owned:       map[int64][]domain.Badge{},
		failOptions: map[int64]error{},
		optionDelay: map[int64]time.Duration{},
		calls:       map[string]int{},
	}
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeGateway) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

// seedQuiz registers a quiz with n questions, each with two options; the first
// option of every question is correct.
func (f *fakeGateway) seedQuiz(quizID, storyID int64, n int) {
	f.quizzes[quizID] = domain.Quiz{ID: quizID, Title: "Quiz", StoryID: storyID, QuestionCount: n}
	questions := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		qID := quizID*100 + int64(i)
		questions = append(questions, domain.Question{ID: qID, QuizID: quizID, Text: "Question"})
		f.options[qID] = []domain.Option{
			{ID: qID*10 + 1, QuestionID: qID, Text: "right", Correct: true},
			{ID: qID*10 + 2, QuestionID: qID, Text: "wrong"},
		}
	}
	f.questions[quizID] = questions
}

func (f *fakeGateway) GetQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	f.record("GetQuiz")
	if f.failQuiz != nil {
		return domain.Quiz{}, f.failQuiz
	}
	quiz, ok := f.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrNotFound
	}
	return quiz, nil
}

func (f *fakeGateway) ListQuizzes(_ context.Context, page, size int) (domain.QuizPage, error) {
	f.record("ListQuizzes")
	out := make([]domain.Quiz, 0, len(f.quizzes))
	for id := int64(1); id <= 100; id++ {
		if q, ok := f.quizzes[id]; ok {
			out = append(out, q)
		}
	}
	return domain.QuizPage{Quizzes: out, Meta: domain.PageMeta{Page: page, Size: size, TotalPages: 1, TotalElements: int64(len(out))}}, nil
}

func (f *fakeGateway) ListQuestions(_ context.Context, quizID int64) ([]domain.Question, error) {
	f.record("ListQuestions")
	if f.failQuestions != nil {
		return nil, f.failQuestions
	}
	return append([]domain.Question{}, f.questions[quizID]...), nil
}

// wait sleeps like a slow backend call, giving up when ctx ends.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *fakeGateway) ListOptions(ctx context.Context, questionID int64) ([]domain.Option, error) {
	f.record("ListOptions")
	f.mu.Lock()
	delay := f.optionDelay[questionID]
	err := f.failOptions[questionID]
	options := append([]domain.Option{}, f.options[questionID]...)
	f.mu.Unlock()

	if werr := wait(ctx, delay); werr != nil {
		return nil, werr
	}
	if err != nil {
		return nil, err
	}
	return options, nil
}

func (f *fakeGateway) CreateAttempt(ctx context.Context, quizID, studentID int64) (domain.Attempt, error) {
	f.record("CreateAttempt")
	f.mu.Lock()
	delay := f.createDelay
	f.mu.Unlock()
	if err := wait(ctx, delay); err != nil {
		return domain.Attempt{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return domain.Attempt{}, f.failCreate
	}
	for _, a := range f.attempts[studentID] {
		if a.QuizID == quizID {
			return domain.Attempt{}, domain.ErrConflict
		}
	}
	attempt := domain.Attempt{ID: f.nextAttempt, QuizID: quizID, StudentID: studentID}
	f.nextAttempt++
	f.attempts[studentID] = append(f.attempts[studentID], attempt)
	return attempt, nil
}

func (f *fakeGateway) ListAttempts(_ context.Context, studentID int64) ([]domain.Attempt, error) {
	f.record("ListAttempts")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	if err := f.failListOnce; err != nil {
		f.failListOnce = nil
		return nil, err
	}
	if f.hideOnConflict {
		return nil, nil
	}
	return append([]domain.Attempt{}, f.attempts[studentID]...), nil
}

func (f *fakeGateway) DeleteAttempt(_ context.Context, attemptID int64) error {
	f.record("DeleteAttempt")
	f.mu.Lock()
	defer f.mu.Unlock()
	for student, list := range f.attempts {
		for i, a := range list {
			if a.ID == attemptID {
				f.attempts[student] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (f *fakeGateway) SubmitAnswers(_ context.Context, attemptID int64, answers []domain.AnswerSelection) ([]domain.Answer, error) {
	f.record("SubmitAnswers")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubmit != nil {
		return nil, f.failSubmit
	}

	result := domain.Result{SubmissionID: attemptID, TotalQuestions: len(answers)}
	saved := make([]domain.Answer, 0, len(answers))
	for i, sel := range answers {
		saved = append(saved, domain.Answer{ID: int64(i + 1), SubmissionID: attemptID, QuestionID: sel.QuestionID, OptionID: sel.OptionID})
		correct := sel.OptionID == sel.QuestionID*10+1
		if correct {
			result.CorrectAnswers++
		}
		result.Questions = append(result.Questions, domain.QuestionResult{QuestionID: sel.QuestionID, Correct: correct})
	}
	result.Score = float64(result.CorrectAnswers) * 100 / float64(len(answers))
	f.results[attemptID] = result

	now := time.Now()
	for student, list := range f.attempts {
		for i := range list {
			if list[i].ID == attemptID {
				score := result.Score
				f.attempts[student][i].SubmittedAt = &now
				f.attempts[student][i].Score = &score
			}
		}
	}
	return saved, nil
}

func (f *fakeGateway) GetResults(_ context.Context, attemptID int64) (domain.Result, error) {
	f.record("GetResults")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failResults != nil {
		return domain.Result{}, f.failResults
	}
	result, ok := f.results[attemptID]
	if !ok {
		return domain.Result{}, domain.ErrNotFound
	}
	return result, nil
}

func (f *fakeGateway) ListBadges(context.Context) ([]domain.Badge, error) {
	f.record("ListBadges")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Badge{}, f.catalog...), nil
}

func (f *fakeGateway) ListStudentBadges(_ context.Context, studentID int64) ([]domain.Badge, error) {
	f.record("ListStudentBadges")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Badge{}, f.owned[studentID]...), nil
}

func (f *fakeGateway) AssignBadge(ctx context.Context, badgeID, studentID int64) (domain.Badge, error) {
	f.record("AssignBadge")
	if err := ctx.Err(); err != nil {
		return domain.Badge{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAssign != nil {
		return domain.Badge{}, f.failAssign
	}
	for _, b := range f.catalog {
		if b.ID == badgeID {
			f.owned[studentID] = append(f.owned[studentID], b)
			return b, nil
		}
	}
	return domain.Badge{}, domain.ErrNotFound
}

func badges(ids ...int64) []domain.Badge {
	out := make([]domain.Badge, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Badge{ID: id, Title: "Badge"})
	}
	return out
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
