package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"edu-quiz-engine/internal/domain"
)

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func (c *Client) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	if _, err := c.do(ctx, http.MethodGet, "quiz", "/quizzes/"+id(quizID), nil, &quiz); err != nil {
		return domain.Quiz{}, err
	}
	// The tree is populated by the aggregator only.
	quiz.Questions = nil
	return quiz, nil
}

func (c *Client) ListQuizzes(ctx context.Context, page, size int) (domain.QuizPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	var quizzes []domain.Quiz
	meta, err := c.do(ctx, http.MethodGet, "quiz", "/quizzes?"+query.Encode(), nil, &quizzes)
	if err != nil {
		return domain.QuizPage{}, err
	}
	result := domain.QuizPage{Quizzes: quizzes}
	if meta != nil {
		result.Meta = *meta
	}
	return result, nil
}

func (c *Client) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var questions []domain.Question
	if _, err := c.do(ctx, http.MethodGet, "question", "/questions/quiz/"+id(quizID), nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (c *Client) ListOptions(ctx context.Context, questionID int64) ([]domain.Option, error) {
	var options []domain.Option
	if _, err := c.do(ctx, http.MethodGet, "option", "/options/question/"+id(questionID), nil, &options); err != nil {
		return nil, err
	}
	return options, nil
}

func (c *Client) CreateAttempt(ctx context.Context, quizID, studentID int64) (domain.Attempt, error) {
	var attempt domain.Attempt
	path := fmt.Sprintf("/submissions/quiz/%d/student/%d", quizID, studentID)
	if _, err := c.do(ctx, http.MethodPost, "submission", path, struct{}{}, &attempt); err != nil {
		return domain.Attempt{}, err
	}
	if attempt.QuizID == 0 {
		attempt.QuizID = quizID
	}
	if attempt.StudentID == 0 {
		attempt.StudentID = studentID
	}
	return attempt, nil
}

func (c *Client) ListAttempts(ctx context.Context, studentID int64) ([]domain.Attempt, error) {
	var attempts []domain.Attempt
	if _, err := c.do(ctx, http.MethodGet, "submission", "/submissions/student/"+id(studentID), nil, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

func (c *Client) DeleteAttempt(ctx context.Context, attemptID int64) error {
	_, err := c.do(ctx, http.MethodDelete, "submission", "/submissions/"+id(attemptID), nil, nil)
	return err
}

func (c *Client) SubmitAnswers(ctx context.Context, attemptID int64, answers []domain.AnswerSelection) ([]domain.Answer, error) {
	var saved []domain.Answer
	path := "/answers/submission/" + id(attemptID) + "/bulk"
	if _, err := c.do(ctx, http.MethodPost, "answer", path, answers, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (c *Client) GetResults(ctx context.Context, attemptID int64) (domain.Result, error) {
	var result domain.Result
	path := "/answers/submission/" + id(attemptID) + "/results"
	if _, err := c.do(ctx, http.MethodGet, "answer", path, nil, &result); err != nil {
		return domain.Result{}, err
	}
	if result.SubmissionID == 0 {
		result.SubmissionID = attemptID
	}
	return result, nil
}

func (c *Client) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	var badges []domain.Badge
	if _, err := c.do(ctx, http.MethodGet, "badge", "/badges", nil, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

func (c *Client) ListStudentBadges(ctx context.Context, studentID int64) ([]domain.Badge, error) {
	var badges []domain.Badge
	if _, err := c.do(ctx, http.MethodGet, "badge", "/badges/student/"+id(studentID), nil, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

func (c *Client) AssignBadge(ctx context.Context, badgeID, studentID int64) (domain.Badge, error) {
	var badge domain.Badge
	path := fmt.Sprintf("/badges/%d/students/%d", badgeID, studentID)
	if _, err := c.do(ctx, http.MethodPost, "badge", path, struct{}{}, &badge); err != nil {
		return domain.Badge{}, err
	}
	if badge.ID == 0 {
		badge.ID = badgeID
	}
	return badge, nil
}
