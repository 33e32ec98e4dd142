package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/gateway"
	"edu-quiz-engine/internal/infra/memory"
)

// fakeBackend serves the REST endpoints for one quiz (10, story 3) with two
// questions; the first option of each question is correct.
type fakeBackend struct {
	mu       sync.Mutex
	attempts map[int64]domain.Attempt
	results  map[int64]domain.Result
	owned    []domain.Badge
	nextID   int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		attempts: map[int64]domain.Attempt{},
		results:  map[int64]domain.Result{},
		nextID:   501,
	}
}

var (
	backendQuiz = domain.Quiz{ID: 10, Title: "Animals", StoryID: 3, QuestionCount: 2}
	backendQuestions = []domain.Question{
		{ID: 1001, QuizID: 10, Text: "Which animal barks?"},
		{ID: 1002, QuizID: 10, Text: "Which animal meows?"},
	}
	backendOptions = map[int64][]domain.Option{
		1001: {{ID: 10011, QuestionID: 1001, Text: "dog", Correct: true}, {ID: 10012, QuestionID: 1001, Text: "cat"}},
		1002: {{ID: 10021, QuestionID: 1002, Text: "cat", Correct: true}, {ID: 10022, QuestionID: 1002, Text: "dog"}},
	}
	backendBadges = []domain.Badge{{ID: 1, Title: "First steps"}, {ID: 2, Title: "Reader"}}
)

func reply(w http.ResponseWriter, status int, data any, meta *domain.PageMeta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "message": "ok", "meta": meta})
}

func pathInt(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return v
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /quizzes/{id}", func(w http.ResponseWriter, r *http.Request) {
		if pathInt(r, "id") != backendQuiz.ID {
			reply(w, http.StatusNotFound, nil, nil)
			return
		}
		reply(w, http.StatusOK, backendQuiz, nil)
	})
	mux.HandleFunc("GET /quizzes", func(w http.ResponseWriter, r *http.Request) {
		other := domain.Quiz{ID: 11, Title: "Colours", StoryID: 4}
		reply(w, http.StatusOK, []domain.Quiz{backendQuiz, other}, &domain.PageMeta{Size: 1000, TotalPages: 1, TotalElements: 2})
	})
	mux.HandleFunc("GET /questions/quiz/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, backendQuestions, nil)
	})
	mux.HandleFunc("GET /options/question/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, backendOptions[pathInt(r, "id")], nil)
	})
	mux.HandleFunc("POST /submissions/quiz/{quiz}/student/{student}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		quizID, studentID := pathInt(r, "quiz"), pathInt(r, "student")
		for _, a := range b.attempts {
			if a.QuizID == quizID && a.StudentID == studentID {
				reply(w, http.StatusConflict, nil, nil)
				return
			}
		}
		attempt := domain.Attempt{ID: b.nextID, QuizID: quizID, StudentID: studentID}
		b.nextID++
		b.attempts[attempt.ID] = attempt
		reply(w, http.StatusCreated, attempt, nil)
	})
	mux.HandleFunc("GET /submissions/student/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := []domain.Attempt{}
		for _, a := range b.attempts {
			if a.StudentID == pathInt(r, "id") {
				out = append(out, a)
			}
		}
		reply(w, http.StatusOK, out, nil)
	})
	mux.HandleFunc("DELETE /submissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.attempts, pathInt(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /answers/submission/{id}/bulk", func(w http.ResponseWriter, r *http.Request) {
		var answers []domain.AnswerSelection
		if err := json.NewDecoder(r.Body).Decode(&answers); err != nil {
			reply(w, http.StatusBadRequest, nil, nil)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		attemptID := pathInt(r, "id")
		result := domain.Result{SubmissionID: attemptID, TotalQuestions: len(answers)}
		for _, sel := range answers {
			correct := sel.OptionID == sel.QuestionID*10+1
			if correct {
				result.CorrectAnswers++
			}
			result.Questions = append(result.Questions, domain.QuestionResult{QuestionID: sel.QuestionID, Correct: correct})
		}
		result.Score = float64(result.CorrectAnswers) * 100 / float64(len(answers))
		b.results[attemptID] = result
		attempt := b.attempts[attemptID]
		now := time.Now()
		attempt.SubmittedAt = &now
		b.attempts[attemptID] = attempt
		reply(w, http.StatusCreated, []domain.Answer{}, nil)
	})
	mux.HandleFunc("GET /answers/submission/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		result, ok := b.results[pathInt(r, "id")]
		if !ok {
			reply(w, http.StatusNotFound, nil, nil)
			return
		}
		reply(w, http.StatusOK, result, nil)
	})
	mux.HandleFunc("GET /badges", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, backendBadges, nil)
	})
	mux.HandleFunc("GET /badges/student/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		reply(w, http.StatusOK, append([]domain.Badge{}, b.owned...), nil)
	})
	mux.HandleFunc("POST /badges/{badge}/students/{student}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, badge := range backendBadges {
			if badge.ID == pathInt(r, "badge") {
				b.owned = append(b.owned, badge)
				reply(w, http.StatusOK, badge, nil)
				return
			}
		}
		reply(w, http.StatusNotFound, nil, nil)
	})
	return mux
}

// newTestService wires the engine against a fake backend served over HTTP.
func newTestService(t *testing.T) *app.QuizService {
	t.Helper()
	backend := httptest.NewServer(newFakeBackend().handler())
	t.Cleanup(backend.Close)

	client := gateway.NewClient(backend.URL, backend.Client())
	manager := app.NewAttemptManager(client, nil)
	return app.NewQuizService(
		memory.NewSessionStore(),
		app.NewQuizAggregator(client, app.AggregatorOptions{}),
		manager,
		app.NewSubmissionService(client, manager, memory.NewJournal(), nil),
		app.NewBadgeAssigner(client, memory.NewClaimStore(time.Minute), 0, nil),
		nil,
	)
}
