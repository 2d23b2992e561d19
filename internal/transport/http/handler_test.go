package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trivia-live/internal/app"
	"trivia-live/internal/domain"
	"trivia-live/internal/infra/memory"
)

const tick = 5 * time.Millisecond

type testServer struct {
	*httptest.Server
	service *app.Service
	store   *memory.SessionStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewSessionStore()
	source := memory.NewStaticQuestionSource(map[string][]domain.Question{
		"capitals": sampleQuestions(),
		"anthems":  anthemQuestions(),
	})
	media := memory.NewMediaLibrary("https://cdn.example.com")
	service := app.NewService(store, source,
		app.WithMediaResolver(media),
		app.WithMediaInventory(media),
		app.WithTimerOptions(app.WithTickInterval(tick)),
	)
	handler := NewHandler(service, WithCatalog(source), WithMediaUploader(media))

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		service.Close()
	})
	return &testServer{Server: server, service: service, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, role domain.Role, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if role != "" {
		req.Header.Set(RoleHeader, string(role))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// publishedSession creates a session and publishes the capitals set.
func (s *testServer) publishedSession(t *testing.T) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/sessions", domain.RoleQuizmaster, map[string]int{"questionTimer": 1})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	var session domain.GameSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	resp = s.do(t, http.MethodPost, "/sessions/"+session.ID+"/publish", domain.RoleQuizmaster, map[string]string{"questionSet": "capitals"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish: status %d", resp.StatusCode)
	}
	return session.ID
}

func TestSessionRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/sessions", domain.RolePlayer, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for player, got %d", resp.StatusCode)
	}

	id := srv.publishedSession(t)

	resp = srv.do(t, http.MethodGet, "/sessions/"+id, "", nil)
	var session domain.GameSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.State != domain.StateActive || len(session.Questions) != 2 || session.QuestionTimer != 1 {
		t.Fatalf("unexpected session %+v", session)
	}

	resp = srv.do(t, http.MethodPost, "/sessions/"+id+"/publish", domain.RoleQuizmaster, map[string]string{"questionSet": "nope"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown set, got %d", resp.StatusCode)
	}

	resp = srv.do(t, http.MethodGet, "/sessions/missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	resp = srv.do(t, http.MethodGet, "/question-sets", "", nil)
	var sets []string
	_ = json.NewDecoder(resp.Body).Decode(&sets)
	if len(sets) != 2 || sets[0] != "anthems" || sets[1] != "capitals" {
		t.Fatalf("unexpected question sets %v", sets)
	}

	resp = srv.do(t, http.MethodPost, "/sessions/"+id+"/archive", domain.RoleQuizmaster, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on archive, got %d", resp.StatusCode)
	}
	resp = srv.do(t, http.MethodGet, "/sessions/"+id+"/scores", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected scores after archive, got %d", resp.StatusCode)
	}
}

func TestMediaUpload(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/media/anthem.mp3", strings.NewReader("ID3"))
	req.Header.Set("Content-Type", "audio/mpeg")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without quizmaster role, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/media/anthem.mp3", strings.NewReader("ID3"))
	req.Header.Set(RoleHeader, string(domain.RoleQuizmaster))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

func TestMissingMediaRoute(t *testing.T) {
	srv := newTestServer(t)

	missing := func() []string {
		t.Helper()
		resp := srv.do(t, http.MethodGet, "/question-sets/anthems/missing-media", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var body struct {
			QuestionSet string   `json:"questionSet"`
			Missing     []string `json:"missing"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.QuestionSet != "anthems" {
			t.Fatalf("unexpected question set %q", body.QuestionSet)
		}
		return body.Missing
	}

	if got := missing(); len(got) != 2 || got[0] != "anthem.mp3" || got[1] != "flag.png" {
		t.Fatalf("expected both files missing, got %v", got)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/media/flag.png", strings.NewReader("PNG"))
	req.Header.Set(RoleHeader, string(domain.RoleQuizmaster))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()

	if got := missing(); len(got) != 1 || got[0] != "anthem.mp3" {
		t.Fatalf("expected only anthem.mp3 missing, got %v", got)
	}

	resp = srv.do(t, http.MethodGet, "/question-sets/nope/missing-media", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown set, got %d", resp.StatusCode)
	}
}

func TestDeleteSessionRoute(t *testing.T) {
	srv := newTestServer(t)
	id := srv.publishedSession(t)

	resp := srv.do(t, http.MethodDelete, "/sessions/"+id, domain.RolePlayer, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for player, got %d", resp.StatusCode)
	}
	resp = srv.do(t, http.MethodDelete, "/sessions/"+id, domain.RoleQuizmaster, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = srv.do(t, http.MethodGet, "/sessions/"+id, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestQuizmasterSocketAdvancesAndCountsDown(t *testing.T) {
	srv := newTestServer(t)
	id := srv.publishedSession(t)

	conn := dial(t, srv, "/ws/quizmaster?sessionId="+id)
	readUntil(t, conn, "session", nil)

	send(t, conn, "advance", map[string]int{"delta": 1})
	readUntil(t, conn, "ack", func(p map[string]any) bool { return p["current"] == float64(1) })
	readUntil(t, conn, "timer", func(p map[string]any) bool {
		return p["timer"] == float64(0) && p["timerActive"] == false
	})

	send(t, conn, "view", map[string]string{"view": "scores"})
	readUntil(t, conn, "ack", nil)
	send(t, conn, "advance", map[string]int{"delta": -1})
	readUntil(t, conn, "error", func(p map[string]any) bool { return p["code"] == "navigation_disabled" })

	send(t, conn, "settings", map[string]int{"questionTimer": 500})
	readUntil(t, conn, "error", func(p map[string]any) bool { return p["code"] == "invalid_timer" })
}

func TestPlayerSocketHidesAnswersAndScoresSubmission(t *testing.T) {
	srv := newTestServer(t)
	id := srv.publishedSession(t)

	conn := dial(t, srv, "/ws/player?sessionId="+id+"&team=Owls")
	payload := readUntil(t, conn, "session", nil)
	question := payload["question"].(map[string]any)
	answers := question["answers"].([]any)
	if len(answers) != 3 || answers[0] != "Berlin" || answers[1] != "Paris" {
		t.Fatalf("expected display order, got %v", answers)
	}
	if _, ok := question["correctAnswer"]; ok {
		t.Fatalf("correct answer leaked to player: %v", question)
	}

	send(t, conn, "select", map[string][]int{"indices": {1}})
	readUntil(t, conn, "state", nil)
	send(t, conn, "submit", nil)
	result := readUntil(t, conn, "result", nil)
	if result["correct"] != true || result["points"] != float64(10) {
		t.Fatalf("expected correct result, got %v", result)
	}

	send(t, conn, "submit", nil)
	readUntil(t, conn, "error", func(p map[string]any) bool { return p["code"] == "answer_locked" })
}

func TestPlayerSocketAutoSubmitsOnTimeout(t *testing.T) {
	srv := newTestServer(t)
	id := srv.publishedSession(t)

	conn := dial(t, srv, "/ws/player?sessionId="+id+"&team=Foxes")
	readUntil(t, conn, "session", nil)

	ctrl, err := srv.service.Controller(context.Background(), id)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if err := ctrl.StartTimer(context.Background(), domain.RoleQuizmaster); err != nil {
		t.Fatalf("start timer: %v", err)
	}

	result := readUntil(t, conn, "result", nil)
	if result["correct"] != false || result["team"] != "Foxes" {
		t.Fatalf("expected incorrect auto result, got %v", result)
	}
}

func TestPlayerSocketRequiresTeam(t *testing.T) {
	srv := newTestServer(t)
	id := srv.publishedSession(t)

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/player?sessionId=" + id
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure without team")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", resp)
	}
}

func TestScoresSocketStreamsBoards(t *testing.T) {
	srv := newTestServer(t)
	id := srv.publishedSession(t)

	conn := dial(t, srv, "/ws/scores?sessionId="+id)
	first := readUntil(t, conn, "scoreboard", nil)
	if first["teams"] != float64(0) || first["maxPoints"] != float64(20) {
		t.Fatalf("unexpected first board %v", first)
	}

	if _, err := srv.service.Collector().Submit(context.Background(), id, "Owls", 0, []int{1}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	board := readUntil(t, conn, "scoreboard", func(p map[string]any) bool { return p["teams"] == float64(1) })
	entry := board["entries"].([]any)[0].(map[string]any)
	if entry["team"] != "Owls" || entry["prefix"] != "🥇" || entry["points"] != float64(10) {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func dial(t *testing.T, srv *testServer, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (match == nil || match(msg.Payload)) {
			return msg.Payload
		}
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Question:      "Capital of France?",
			Answers:       []string{"Paris", "Rome", "Berlin"},
			AnswersOrder:  []int{2, 0, 1},
			Type:          domain.SingleChoice,
			CorrectAnswer: 0,
		},
		{
			Question:      "Capital of Italy?",
			Answers:       []string{"Paris", "Rome"},
			AnswersOrder:  []int{1, 0},
			Type:          domain.SingleChoice,
			CorrectAnswer: 1,
		},
	}
}

func anthemQuestions() []domain.Question {
	sound, flag := "anthem.mp3", "flag.png?token=abc"
	return []domain.Question{
		{
			Question:      "Which anthem is this?",
			Answers:       []string{"France", "Italy"},
			AnswersOrder:  []int{0, 1},
			Type:          domain.SingleChoice,
			CorrectAnswer: 0,
			Sound:         &sound,
			Background:    &flag,
		},
	}
}
