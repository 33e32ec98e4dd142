package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/logging"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logging.OrNop(log),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	Answers []domain.AnswerSelection `json:"answers"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

// ServeWS upgrades the request and drives one quiz-taking session over it.
// Passing sessionId resumes an existing session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	studentID, errStudent := strconv.ParseInt(query.Get("studentId"), 10, 64)
	quizID, errQuiz := strconv.ParseInt(query.Get("quizId"), 10, 64)
	if errStudent != nil || errQuiz != nil || studentID <= 0 || quizID <= 0 {
		http.Error(w, "missing or invalid studentId or quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	view, err := h.service.Start(ctx, query.Get("sessionId"), studentID, quizID)
	if err != nil {
		h.log.Error("quiz start failed",
			zap.Int64("student_id", studentID), zap.Int64("quiz_id", quizID), zap.Error(err))
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	sessionID := view.Session.SessionID

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()
	defer h.release(sessionID)

	out := newOutbox(16)
	closeSignals := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the outbox writer touches conn for writes.
	go out.run(conn.WriteJSON, func(err error) {
		h.log.Warn("ws write failed", zap.String("session_id", sessionID), zap.Error(err))
		// Unblocks the read loop below.
		_ = conn.Close()
	})

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !out.deliver(outboundMessage[any]{Type: "session", Payload: update}, closeSignals) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if out.deliver(outboundMessage[any]{Type: "quiz", Payload: view.Quiz}, nil) {
	read:
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			for _, msg := range h.handle(ctx, sessionID, inbound) {
				if !out.deliver(msg, nil) {
					break read
				}
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	out.stop()
}

// outbox queues messages for a single writer goroutine. Once the writer has
// failed, deliver stops blocking and reports false.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{
		send: make(chan outboundMessage[any], size),
		done: make(chan struct{}),
	}
}

func (o *outbox) run(write func(v interface{}) error, onErr func(error)) {
	defer close(o.done)
	for msg := range o.send {
		if err := write(msg); err != nil {
			onErr(err)
			return
		}
	}
}

// deliver queues msg unless the writer is gone or abort closes first.
func (o *outbox) deliver(msg outboundMessage[any], abort <-chan struct{}) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	case <-abort:
		return false
	}
}

// stop closes the queue and waits for the writer to finish.
func (o *outbox) stop() {
	close(o.send)
	<-o.done
}

func (h *WSHandler) handle(ctx context.Context, sessionID string, inbound inboundMessage) []outboundMessage[any] {
	switch inbound.Type {
	case "submit":
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []outboundMessage[any]{errorMessage(domain.ErrValidation)}
		}
		outcome, err := h.service.Submit(ctx, sessionID, payload.Answers)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		out := []outboundMessage[any]{{Type: "result", Payload: outcome.Result}}
		switch {
		case outcome.RewardErr != nil:
			out = append(out, outboundMessage[any]{Type: "error", Payload: errorPayload{Code: "reward_failed", Message: outcome.RewardErr.Error()}})
		case outcome.Award.Assigned():
			out = append(out, outboundMessage[any]{Type: "badge", Payload: outcome.Award})
		}
		return out
	case "results":
		result, err := h.service.Results(ctx, sessionID)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return []outboundMessage[any]{{Type: "result", Payload: result}}
	case "abandon":
		if err := h.service.Abandon(ctx, sessionID); err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return nil
	default:
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Code: "unsupported", Message: "unsupported message type"}}}
	}
}

// release drops sessions that have nothing left to resume.
func (h *WSHandler) release(sessionID string) {
	snapshot, err := h.service.Snapshot(sessionID)
	if err != nil || snapshot.State == domain.StateInProgress {
		return
	}
	h.service.Close(sessionID)
}
