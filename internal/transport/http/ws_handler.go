package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"classquiz-service/internal/app"
	"classquiz-service/internal/auth"
	"classquiz-service/internal/domain"
)

// WSHandler drives the interactive quiz-taking flow over a websocket: the
// client walks the questions with select/advance/skip messages and the server
// pushes the next question, progress, time-up and final results.
type WSHandler struct {
	attempts *app.AttemptService
	tokens   *auth.TokenService
	upgrader websocket.Upgrader
}

func NewWSHandler(attempts *app.AttemptService, tokens *auth.TokenService) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option string `json:"option"`
}

type questionPayload struct {
	Index            int      `json:"index"`
	Total            int      `json:"total"`
	Text             string   `json:"text"`
	Options          []string `json:"options"`
	RemainingSeconds int      `json:"remainingSeconds"`
}

type resultsPayload struct {
	app.Result
	SubmitError string `json:"submitError,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one attempt for the authenticated
// viewer. Students are scored respondents; teachers and admins preview the
// quiz without a persisted result.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	claims, err := h.tokens.Parse(auth.BearerToken(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	respondent := domain.Respondent{
		UserID: claims.Subject,
		Name:   claims.Name,
		Scored: domain.Role(claims.Role) == domain.RoleStudent,
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	attemptID, session, err := h.attempts.Start(r.Context(), quizID, respondent)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.attempts.Finish(attemptID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	expiryDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// The countdown can end the attempt while the read loop is blocked on the
	// client; watch for it and push the forced results.
	go func() {
		defer close(expiryDone)
		select {
		case <-session.Done():
			result, err := session.Result()
			if err != nil || !result.TimedOut {
				return
			}
			select {
			case send <- outboundMessage[any]{Type: "timeUp", Payload: struct{}{}}:
			case <-closeSignals:
				return
			}
			select {
			case send <- resultsMessage(result):
			case <-closeSignals:
			}
		case <-closeSignals:
		}
	}()

	send <- questionMessage(session)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if session.Completed() {
			// Any message racing the countdown past completion is moot.
			continue
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
				continue
			}
			if err := session.Select(payload.Option); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "advance":
			done, err := session.Advance(r.Context())
			if errors.Is(err, domain.ErrNoSelection) {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "please select an option before proceeding"}}
				continue
			}
			if err != nil {
				continue
			}
			h.afterStep(session, send, done)
		case "skip":
			done, err := session.Skip(r.Context())
			if err != nil {
				continue
			}
			h.afterStep(session, send, done)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	session.Abandon()
	close(closeSignals)
	<-expiryDone
	close(send)
	<-writerDone
}

func (h *WSHandler) afterStep(session *app.Session, send chan outboundMessage[any], done bool) {
	if done {
		if result, err := session.Result(); err == nil && !result.TimedOut {
			send <- resultsMessage(result)
		}
		return
	}
	send <- outboundMessage[any]{Type: "progress", Payload: session.Progress()}
	send <- questionMessage(session)
}

func questionMessage(session *app.Session) outboundMessage[any] {
	idx, question, err := session.Current()
	if err != nil {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	progress := session.Progress()
	return outboundMessage[any]{Type: "question", Payload: questionPayload{
		Index:            idx,
		Total:            progress.Total,
		Text:             question.Text,
		Options:          question.Options,
		RemainingSeconds: int(progress.Remaining.Seconds()),
	}}
}

func resultsMessage(result app.Result) outboundMessage[any] {
	msg := resultsPayload{Result: result}
	if result.SubmitErr != nil {
		msg.SubmitError = "your score could not be recorded, please notify your teacher"
	}
	return outboundMessage[any]{Type: "results", Payload: msg}
}
