// Package http exposes the game operations over REST and websocket.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"buzzboard/internal/app"
	"buzzboard/internal/auth"
	"buzzboard/internal/domain"
)

// Handler wires the auth and game services into HTTP endpoints. Handlers
// only translate: identity resolution, JSON codec, and error mapping; all
// rules live in the services.
type Handler struct {
	auth *auth.Service
	game *app.GameService
	ws   *WSHandler
}

func NewHandler(authService *auth.Service, game *app.GameService) *Handler {
	return &Handler{
		auth: authService,
		game: game,
		ws:   NewWSHandler(authService, game),
	}
}

// Routes builds the HTTP mux for the full operation surface.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ws", h.ws.ServeWS)

	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("POST /api/logout", h.handleLogout)

	mux.HandleFunc("POST /api/lobbies", h.handleCreateLobby)
	mux.HandleFunc("POST /api/lobbies/join", h.handleJoinLobby)
	mux.HandleFunc("GET /api/lobbies", h.handleListLobbies)
	mux.HandleFunc("GET /api/lobbies/{code}/board", h.handleGetBoard)
	mux.HandleFunc("POST /api/lobbies/{code}/board/select", h.handleSelectQuestion)
	mux.HandleFunc("POST /api/lobbies/{code}/board/resolve", h.handleResolveQuestion)
	mux.HandleFunc("POST /api/lobbies/{code}/board/buzz", h.handleBuzz)
	mux.HandleFunc("POST /api/lobbies/{code}/board/buzz/{attemptId}/result", h.handleBuzzResult)
	mux.HandleFunc("GET /api/lobbies/{code}/score-events", h.handleScoreEvents)
	return mux
}

type registerRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse(user))
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, user, err := h.auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  userResponse(user),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createLobbyRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleCreateLobby(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req createLobbyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	lobby, err := h.game.CreateLobby(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lobbyResponse(lobby))
}

type joinLobbyRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleJoinLobby(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req joinLobbyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	lobby, err := h.game.JoinLobby(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lobbyResponse(lobby))
}

func (h *Handler) handleListLobbies(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	lobbies, err := h.game.ListLobbiesForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(lobbies))
	for _, lobby := range lobbies {
		out = append(out, lobbyResponse(lobby))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	userID, lobby, ok := h.requireLobby(w, r)
	if !ok {
		return
	}
	board, err := h.game.GetBoard(r.Context(), lobby.ID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

type selectQuestionRequest struct {
	QuestionStateID string `json:"questionStateId"`
}

func (h *Handler) handleSelectQuestion(w http.ResponseWriter, r *http.Request) {
	userID, lobby, ok := h.requireLobby(w, r)
	if !ok {
		return
	}
	var req selectQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.game.SelectQuestion(r.Context(), lobby.ID, req.QuestionStateID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type resolveQuestionRequest struct {
	QuestionStateID string         `json:"questionStateId"`
	ParticipantID   string         `json:"participantId"`
	Verdict         domain.Verdict `json:"verdict"`
}

func (h *Handler) handleResolveQuestion(w http.ResponseWriter, r *http.Request) {
	userID, lobby, ok := h.requireLobby(w, r)
	if !ok {
		return
	}
	var req resolveQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.game.ResolveQuestion(r.Context(), app.ResolveParams{
		LobbyID:         lobby.ID,
		QuestionStateID: req.QuestionStateID,
		ParticipantID:   req.ParticipantID,
		ActingUserID:    userID,
		Verdict:         req.Verdict,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleBuzz(w http.ResponseWriter, r *http.Request) {
	userID, lobby, ok := h.requireLobby(w, r)
	if !ok {
		return
	}
	attempt, err := h.game.SubmitBuzzAttempt(r.Context(), lobby.ID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

type buzzResultRequest struct {
	Result domain.Verdict `json:"result"`
}

func (h *Handler) handleBuzzResult(w http.ResponseWriter, r *http.Request) {
	userID, lobby, ok := h.requireLobby(w, r)
	if !ok {
		return
	}
	var req buzzResultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	attempt, err := h.game.MarkBuzzAttemptResult(r.Context(), lobby.ID, r.PathValue("attemptId"), userID, req.Result)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleScoreEvents(w http.ResponseWriter, r *http.Request) {
	userID, lobby, ok := h.requireLobby(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			writeError(w, domain.Validationf("limit", "must be a number between 1 and 200"))
			return
		}
		limit = parsed
	}
	events, err := h.game.LobbyScoreEvents(r.Context(), lobby.ID, userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// requireUser resolves the bearer token to a verified user id.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := h.auth.ResolveToken(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return userID, true
}

// requireLobby resolves the caller and the {code} path segment. Membership
// checks stay in the game service.
func (h *Handler) requireLobby(w http.ResponseWriter, r *http.Request) (string, *domain.Lobby, bool) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return "", nil, false
	}
	lobby, err := h.game.LobbyByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return "", nil, false
	}
	return userID, lobby, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func userResponse(user *domain.User) map[string]any {
	return map[string]any{
		"id":          user.ID,
		"email":       user.Email,
		"username":    user.Username,
		"displayName": user.DisplayName,
	}
}

func lobbyResponse(lobby *domain.Lobby) map[string]any {
	return map[string]any{
		"id":           lobby.ID,
		"code":         lobby.Code,
		"name":         lobby.Name,
		"status":       lobby.Status,
		"roundIndex":   lobby.RoundIndex,
		"createdAt":    lobby.CreatedAt.Format(time.RFC3339),
		"participants": app.ParticipantViewsOf(lobby.Participants),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, domain.Validationf("", "invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeJSON(w, status, map[string]string{"message": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

// statusFor maps business-rule errors to distinguishable HTTP statuses.
// Anything unmapped is an infrastructure failure the caller may retry.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAdminRequired),
		errors.Is(err, domain.ErrNotAMember),
		errors.Is(err, domain.ErrPlayersOnly),
		errors.Is(err, domain.ErrInactiveParticipant):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrLobbyNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLobbyFull),
		errors.Is(err, domain.ErrWrongLobby),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrQuestionAlreadyActive),
		errors.Is(err, domain.ErrNoActiveQuestion),
		errors.Is(err, domain.ErrTimerExpired),
		errors.Is(err, domain.ErrAlreadyBuzzed),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrQuestionNotActive),
		errors.Is(err, domain.ErrEmailOrUsernameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
