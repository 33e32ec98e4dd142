package domain

import "time"

// Option represents a possible answer for a question.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Text       string `json:"optionText"`
	Correct    bool   `json:"isCorrect"`
}

// Question belongs to a quiz and owns its options.
type Question struct {
	ID      int64    `json:"id"`
	QuizID  int64    `json:"quizId"`
	Text    string   `json:"questionText"`
	Options []Option `json:"options,omitempty"`
}

// Quiz is the aggregate root served to students. Questions stays nil until the
// aggregator has resolved every question together with its options.
type Quiz struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	AutoGenerate  bool       `json:"generateContentAutomatically"`
	QuestionCount int        `json:"numberOfQuestions"`
	StoryID       int64      `json:"storyId"`
	Questions     []Question `json:"questions,omitempty"`
}

// Aggregated reports whether the question tree has been resolved.
func (q Quiz) Aggregated() bool {
	return q.Questions != nil
}

// PageMeta carries pagination fields from the response envelope.
type PageMeta struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
}

// QuizPage is one page of quizzes plus its pagination state.
type QuizPage struct {
	Quizzes []Quiz   `json:"quizzes"`
	Meta    PageMeta `json:"meta"`
}

// Attempt is one student's submission for one quiz.
type Attempt struct {
	ID          int64      `json:"id"`
	QuizID      int64      `json:"quizId"`
	StudentID   int64      `json:"studentId"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	Score       *float64   `json:"score,omitempty"`

	// Placeholder marks an identity fabricated locally after an unresolved
	// creation conflict. LocalRef correlates writes made against it.
	Placeholder bool   `json:"placeholder,omitempty"`
	LocalRef    string `json:"localRef,omitempty"`
}

// Submitted reports whether the attempt is terminal.
func (a Attempt) Submitted() bool {
	return a.SubmittedAt != nil
}

// AnswerSelection is the student's choice for one question.
type AnswerSelection struct {
	QuestionID int64 `json:"questionId" validate:"required,gt=0"`
	OptionID   int64 `json:"optionId" validate:"required,gt=0"`
}

// Answer is a persisted selection as returned by the backend.
type Answer struct {
	ID           int64 `json:"id"`
	SubmissionID int64 `json:"submissionId"`
	QuestionID   int64 `json:"questionId"`
	OptionID     int64 `json:"optionId"`
}

// QuestionResult is the per-question grading breakdown.
type QuestionResult struct {
	QuestionID     int64  `json:"questionId"`
	QuestionText   string `json:"questionText"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	Correct        bool   `json:"isCorrect"`
}

// Result is computed by the backend for a submitted attempt.
type Result struct {
	SubmissionID   int64            `json:"submissionId"`
	TotalQuestions int              `json:"totalQuestions"`
	CorrectAnswers int              `json:"correctAnswers"`
	Score          float64          `json:"score"`
	Questions      []QuestionResult `json:"questions"`
}

// Badge is a reward a student can own.
type Badge struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// AttemptState is the lifecycle position of a (student, quiz) pair.
type AttemptState int

const (
	StateNoAttempt AttemptState = iota
	StateInProgress
	StateCompleted
)

func (s AttemptState) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	default:
		return "no_attempt"
	}
}

// MarshalText keeps the state readable in JSON snapshots.
func (s AttemptState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *AttemptState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "in_progress":
		*s = StateInProgress
	case "completed":
		*s = StateCompleted
	default:
		*s = StateNoAttempt
	}
	return nil
}

// SessionSnapshot is the observable view of one quiz-taking session.
type SessionSnapshot struct {
	SessionID string       `json:"sessionId"`
	StudentID int64        `json:"studentId"`
	QuizID    int64        `json:"quizId"`
	State     AttemptState `json:"state"`
	Attempt   *Attempt     `json:"attempt,omitempty"`
	Result    *Result      `json:"result,omitempty"`
	Suspect   bool         `json:"suspect"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// SuspectWrite records a write issued while the session held a placeholder attempt.
type SuspectWrite struct {
	LocalRef   string    `json:"localRef"`
	StudentID  int64     `json:"studentId"`
	QuizID     int64     `json:"quizId"`
	AttemptID  int64     `json:"attemptId"`
	Operation  string    `json:"operation"`
	Payload    []byte    `json:"payload"`
	Reconciled bool      `json:"reconciled"`
	RecordedAt time.Time `json:"recordedAt"`
}
