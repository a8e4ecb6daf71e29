package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"classquiz-service/internal/app"
	"classquiz-service/internal/auth"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
)

func TestWebSocketAttemptFlow(t *testing.T) {
	sink := memory.NewCatalogStore()
	server, tokens := newWSServer(t, sink)
	defer server.Close()

	conn := dialAttempt(t, server, tokens, domain.User{ID: "stu-1", Name: "Alice", Role: domain.RoleStudent})
	defer conn.Close()

	typ, payload := readNext(conn, t, "question")
	if typ != "question" {
		t.Fatalf("expected question first, got %s", typ)
	}
	if payload["text"] != "What is the capital of France?" {
		t.Fatalf("unexpected first question: %v", payload["text"])
	}

	// Advancing without a staged selection is refused.
	writeMsg(conn, t, "advance", nil)
	readNext(conn, t, "error")

	writeMsg(conn, t, "select", map[string]any{"option": "paris"})
	writeMsg(conn, t, "advance", nil)
	readNext(conn, t, "progress")
	typ, payload = readNext(conn, t, "question")
	if payload["index"].(float64) != 1 {
		t.Fatalf("expected second question at index 1, got %v", payload["index"])
	}

	writeMsg(conn, t, "select", map[string]any{"option": "Green"})
	writeMsg(conn, t, "advance", nil)
	readNext(conn, t, "progress")
	readNext(conn, t, "question")

	// Skip the last question; the attempt completes and results follow.
	writeMsg(conn, t, "skip", nil)
	typ, payload = readNext(conn, t, "results")
	if typ != "results" {
		t.Fatalf("expected results after last step, got %s", typ)
	}
	if payload["score"].(float64) != 1 {
		t.Fatalf("expected score 1, got %v", payload["score"])
	}
	if payload["skipped"].(float64) != 1 {
		t.Fatalf("expected 1 skipped, got %v", payload["skipped"])
	}
	if payload["persisted"] != true {
		t.Fatalf("expected student result to be persisted")
	}

	results, err := sink.ListResults(context.Background(), "quiz-1", "stu-1")
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(results) != 1 || results[0].Score != 1 {
		t.Fatalf("expected one persisted result with score 1, got %+v", results)
	}
}

func TestWebSocketTeacherPreviewNotPersisted(t *testing.T) {
	sink := memory.NewCatalogStore()
	server, tokens := newWSServer(t, sink)
	defer server.Close()

	conn := dialAttempt(t, server, tokens, domain.User{ID: "tch-1", Name: "Ms. Reed", Role: domain.RoleTeacher})
	defer conn.Close()

	readNext(conn, t, "question")
	for i := 0; i < 3; i++ {
		writeMsg(conn, t, "skip", nil)
		typ, payload := readNext(conn, t, "")
		if typ == "results" {
			if payload["persisted"] != false {
				t.Fatalf("preview result must not be persisted")
			}
			if results, _ := sink.ListResults(context.Background(), "quiz-1", ""); len(results) != 0 {
				t.Fatalf("preview wrote %d results", len(results))
			}
			return
		}
		readNext(conn, t, "question")
	}
	t.Fatalf("never received results")
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	server, _ := newWSServer(t, memory.NewCatalogStore())
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/attempt?quizId=quiz-1&token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for a bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestWebSocketUnknownQuiz(t *testing.T) {
	server, tokens := newWSServer(t, memory.NewCatalogStore())
	defer server.Close()

	token, err := tokens.Issue(domain.User{ID: "stu-1", Name: "Alice", Role: domain.RoleStudent})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	u := "ws" + server.URL[len("http"):] + "/ws/attempt?quizId=missing&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	typ, payload := readNext(conn, t, "error")
	if typ != "error" || payload["message"] == "" {
		t.Fatalf("expected error payload for unknown quiz, got %s %v", typ, payload)
	}
}

func newWSServer(t *testing.T, sink app.ResultSink) (*httptest.Server, *auth.TokenService) {
	t.Helper()
	store := memory.NewAttemptStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewAttemptService(store, quizRepo, sink)
	tokens := auth.NewTokenService("test-secret", time.Hour)
	handler := NewWSHandler(service, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/attempt", handler.ServeWS)
	return httptest.NewServer(mux), tokens
}

func dialAttempt(t *testing.T, server *httptest.Server, tokens *auth.TokenService, user domain.User) *websocket.Conn {
	t.Helper()
	token, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	u := "ws" + server.URL[len("http"):] + "/ws/attempt?quizId=quiz-1&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func writeMsg(conn *websocket.Conn, t *testing.T, typ string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:   "quiz-1",
			Name: "Geography basics",
			Questions: []domain.Question{
				{
					ID:            "q1",
					Text:          "What is the capital of France?",
					Options:       []string{"Paris", "London", "Berlin"},
					CorrectAnswer: "Paris",
				},
				{
					ID:            "q2",
					Text:          "What color is the sky?",
					Options:       []string{"Blue", "Green", "Red"},
					CorrectAnswer: "Blue",
				},
				{
					ID:            "q3",
					Text:          "Largest ocean?",
					Options:       []string{"Atlantic", "Pacific", "Indian"},
					CorrectAnswer: "Pacific",
				},
			},
		},
	}
}
