package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/logging"
)

// QuizHandler serves aggregated quiz reads.
type QuizHandler struct {
	service *app.QuizService
	log     *zap.Logger
}

func NewQuizHandler(service *app.QuizService, log *zap.Logger) *QuizHandler {
	return &QuizHandler{service: service, log: logging.OrNop(log)}
}

// Register mounts the quiz routes on mux.
func (h *QuizHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /quizzes/{id}", h.GetQuiz)
	mux.HandleFunc("GET /stories/{id}/quizzes", h.ListStoryQuizzes)
}

type response struct {
	Data    any              `json:"data"`
	Message string           `json:"message"`
	Meta    *domain.PageMeta `json:"meta,omitempty"`
}

func (h *QuizHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r)
	if !ok {
		return
	}
	quiz, err := h.service.LoadQuiz(r.Context(), quizID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Data: quiz, Message: "ok"})
}

func (h *QuizHandler) ListStoryQuizzes(w http.ResponseWriter, r *http.Request) {
	storyID, ok := pathID(w, r)
	if !ok {
		return
	}
	page, err := h.service.QuizzesForStory(r.Context(), storyID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Data: page.Quizzes, Message: "ok", Meta: &page.Meta})
}

func (h *QuizHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("quiz read failed", zap.Error(err))
	}
	writeJSON(w, status, response{Message: err.Error()})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || v <= 0 {
		writeJSON(w, http.StatusBadRequest, response{Message: "invalid id"})
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAttemptNotInProgress):
		return "attempt_not_in_progress"
	case errors.Is(err, domain.ErrAttemptCompleted):
		return "attempt_completed"
	case errors.Is(err, domain.ErrAttemptNotCompleted):
		return "attempt_not_completed"
	case errors.Is(err, domain.ErrSuspectAttempt):
		return "suspect_attempt"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}
