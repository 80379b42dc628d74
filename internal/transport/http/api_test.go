package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"buzzboard/internal/app"
	"buzzboard/internal/auth"
	"buzzboard/internal/domain"
	"buzzboard/internal/infra/memory"
)

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	if err := store.SeedQuestions(context.Background(), catalogQuestions()); err != nil {
		t.Fatalf("seed questions: %v", err)
	}
	game := app.NewGameService(store, memory.NewCatalogCache(store, time.Minute))
	authService := auth.NewService(store, memory.NewTokenStore(), time.Hour)
	server := httptest.NewServer(NewHandler(authService, game).Routes())
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store}
}

func catalogQuestions() []*domain.Question {
	var questions []*domain.Question
	for _, value := range []int{100, 200, 300, 500} {
		questions = append(questions, &domain.Question{
			ID:            fmt.Sprintf("q-%d", value),
			Category:      "History",
			CategoryIndex: 0,
			RoundIndex:    0,
			BaseValue:     value,
			Prompt:        fmt.Sprintf("prompt %d", value),
			Answer:        fmt.Sprintf("answer %d", value),
		})
	}
	return questions
}

// call sends a JSON request with an optional bearer token and decodes the
// JSON response body into a generic map.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func (e *testEnv) callList(t *testing.T, method, path, token string) (int, []map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded []map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

// signUp registers a user and returns a live session token.
func (e *testEnv) signUp(t *testing.T, username string) string {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/api/register", "", map[string]string{
		"email":       username + "@example.com",
		"username":    username,
		"displayName": username,
		"password":    "password123",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", username, status, body)
	}

	status, body = e.call(t, http.MethodPost, "/api/login", "", map[string]string{
		"identifier": username,
		"password":   "password123",
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", username, status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected token, got %v", body)
	}
	return token
}

func TestFullGameFlowOverREST(t *testing.T) {
	env := newTestEnv(t)

	host := env.signUp(t, "host")
	player := env.signUp(t, "player")

	status, lobby := env.call(t, http.MethodPost, "/api/lobbies", host, map[string]string{"name": "Friday Night"})
	if status != http.StatusCreated {
		t.Fatalf("create lobby: status %d body %v", status, lobby)
	}
	code, _ := lobby["code"].(string)
	if len(code) != 6 {
		t.Fatalf("expected 6-char code, got %q", code)
	}

	status, joined := env.call(t, http.MethodPost, "/api/lobbies/join", player, map[string]string{"code": code})
	if status != http.StatusOK {
		t.Fatalf("join: status %d body %v", status, joined)
	}
	participants, _ := joined["participants"].([]any)
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}

	var playerParticipantID string
	for _, raw := range participants {
		p := raw.(map[string]any)
		if p["role"] == "PLAYER" {
			playerParticipantID, _ = p["id"].(string)
		}
	}
	if playerParticipantID == "" {
		t.Fatalf("player participant missing in %v", participants)
	}

	status, board := env.call(t, http.MethodGet, "/api/lobbies/"+code+"/board", player, nil)
	if status != http.StatusOK {
		t.Fatalf("board: status %d body %v", status, board)
	}
	rounds, _ := board["rounds"].([]any)
	if len(rounds) != 1 {
		t.Fatalf("expected 1 round, got %d", len(rounds))
	}
	categories := rounds[0].(map[string]any)["categories"].([]any)
	questions := categories[0].(map[string]any)["questions"].([]any)
	stateID, _ := questions[2].(map[string]any)["id"].(string)
	value := int(questions[2].(map[string]any)["value"].(float64))

	status, selected := env.call(t, http.MethodPost, "/api/lobbies/"+code+"/board/select", host,
		map[string]string{"questionStateId": stateID})
	if status != http.StatusOK {
		t.Fatalf("select: status %d body %v", status, selected)
	}

	status, attempt := env.call(t, http.MethodPost, "/api/lobbies/"+code+"/board/buzz", player, nil)
	if status != http.StatusCreated {
		t.Fatalf("buzz: status %d body %v", status, attempt)
	}
	attemptID, _ := attempt["id"].(string)
	if attemptID == "" {
		t.Fatalf("expected attempt id in %v", attempt)
	}

	status, marked := env.call(t, http.MethodPost, "/api/lobbies/"+code+"/board/buzz/"+attemptID+"/result", host,
		map[string]string{"result": "CORRECT"})
	if status != http.StatusOK {
		t.Fatalf("mark result: status %d body %v", status, marked)
	}

	status, events := env.callList(t, http.MethodGet, "/api/lobbies/"+code+"/score-events", player)
	if status != http.StatusOK {
		t.Fatalf("score events: status %d", status)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 score event, got %d", len(events))
	}
	if int(events[0]["delta"].(float64)) != value {
		t.Fatalf("expected delta %d, got %v", value, events[0]["delta"])
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.call(t, http.MethodPost, "/api/lobbies", "", map[string]string{"name": "No Auth"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	status, _ = env.call(t, http.MethodPost, "/api/lobbies", "bogus-token", map[string]string{"name": "Bad Token"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	env := newTestEnv(t)

	host := env.signUp(t, "host")
	outsider := env.signUp(t, "outsider")

	status, lobby := env.call(t, http.MethodPost, "/api/lobbies", host, map[string]string{"name": "Mapped"})
	if status != http.StatusCreated {
		t.Fatalf("create lobby: status %d body %v", status, lobby)
	}
	code := lobby["code"].(string)

	// Validation error on a short lobby name.
	status, _ = env.call(t, http.MethodPost, "/api/lobbies", host, map[string]string{"name": "ab"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for short name, got %d", status)
	}

	// Unknown join code.
	status, _ = env.call(t, http.MethodPost, "/api/lobbies/join", outsider, map[string]string{"code": "ZZZZZZ"})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", status)
	}

	// Non-member reading the board.
	status, _ = env.call(t, http.MethodGet, "/api/lobbies/"+code+"/board", outsider, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", status)
	}

	// Buzz with no active question.
	env.call(t, http.MethodPost, "/api/lobbies/join", outsider, map[string]string{"code": code})
	status, _ = env.call(t, http.MethodPost, "/api/lobbies/"+code+"/board/buzz", outsider, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for no active question, got %d", status)
	}

	// Duplicate registration.
	status, _ = env.call(t, http.MethodPost, "/api/register", "", map[string]string{
		"email":       "host@example.com",
		"username":    "someoneelse",
		"displayName": "Someone",
		"password":    "password123",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", status)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)

	token := env.signUp(t, "host")
	status, _ := env.call(t, http.MethodPost, "/api/logout", token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", status)
	}

	status, _ = env.call(t, http.MethodPost, "/api/lobbies", token, map[string]string{"name": "After Logout"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", status)
	}
}

func TestScoreEventLimitValidation(t *testing.T) {
	env := newTestEnv(t)

	host := env.signUp(t, "host")
	status, lobby := env.call(t, http.MethodPost, "/api/lobbies", host, map[string]string{"name": "Limits"})
	if status != http.StatusCreated {
		t.Fatalf("create lobby: status %d", status)
	}
	code := lobby["code"].(string)

	status, _ = env.call(t, http.MethodGet, "/api/lobbies/"+code+"/score-events?limit=0", host, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", status)
	}
	status, _ = env.call(t, http.MethodGet, "/api/lobbies/"+code+"/score-events?limit=10", host, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for limit=10, got %d", status)
	}
}
