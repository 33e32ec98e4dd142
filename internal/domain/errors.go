package domain

import "errors"

var (
	// ErrTransport wraps network level failures talking to the backend.
	ErrTransport = errors.New("backend unreachable")
	// ErrNotFound is returned when the backend has no such resource.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict signals a duplicate creation rejected by the backend.
	ErrConflict = errors.New("resource already exists")
	// ErrValidation indicates a write was refused before or by the backend for bad input.
	ErrValidation = errors.New("validation failed")

	// ErrSessionNotFound is returned when a quiz session has not been started.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrAttemptNotInProgress guards writes against missing or terminal attempts.
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	// ErrAttemptCompleted is returned when trying to discard a submitted attempt.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrAttemptNotCompleted is returned when results are requested before submission.
	ErrAttemptNotCompleted = errors.New("attempt not completed")
	// ErrSuspectAttempt is returned when a write targets an unreconciled placeholder attempt.
	ErrSuspectAttempt = errors.New("attempt identity could not be confirmed with the backend")
	// ErrQuestionNotFound indicates a selected question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a selected option ID is not part of its question.
	ErrOptionNotFound = errors.New("option not found")
)
