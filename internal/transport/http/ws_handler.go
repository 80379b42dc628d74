package http

import (
	"log"
	"net/http"

	"buzzboard/internal/app"
	"buzzboard/internal/auth"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	auth     *auth.Service
	game     *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(authService *auth.Service, game *app.GameService) *WSHandler {
	return &WSHandler{
		auth: authService,
		game: game,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type wsInbound struct {
	Type string `json:"type"`
}

type wsOutbound[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type wsError struct {
	Message string `json:"message"`
}

// queueMessage hands a message to the writer goroutine, giving up once the
// writer has exited so a full buffer can never wedge the caller.
func queueMessage(send chan<- wsOutbound[any], writerDone <-chan struct{}, msg wsOutbound[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// ServeWS upgrades the connection and streams board updates for one lobby.
// Credentials and lobby code come in as query params because browsers cannot
// set headers on websocket handshakes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	code := r.URL.Query().Get("code")
	if token == "" || code == "" {
		http.Error(w, "missing token or code", http.StatusBadRequest)
		return
	}

	userID, err := h.auth.ResolveToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}
	lobby, err := h.game.LobbyByCode(r.Context(), code)
	if err != nil {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// GetBoard doubles as the membership check before we subscribe.
	board, err := h.game.GetBoard(r.Context(), lobby.ID, userID)
	if err != nil {
		_ = conn.WriteJSON(wsOutbound[wsError]{Type: "error", Payload: wsError{Message: err.Error()}})
		return
	}

	updates, cancel := h.game.Subscribe(lobby.ID)
	defer cancel()

	send := make(chan wsOutbound[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer goroutine so the feed and the read loop never write
	// to the connection concurrently.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	queue := func(msg wsOutbound[any]) bool {
		return queueMessage(send, writerDone, msg)
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !queue(wsOutbound[any]{Type: update.Type, Payload: update.Board}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	queue(wsOutbound[any]{Type: app.FeedBoard, Payload: board})

readLoop:
	for {
		var inbound wsInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "buzz":
			attempt, err := h.game.SubmitBuzzAttempt(r.Context(), lobby.ID, userID)
			if err != nil {
				if !queue(wsOutbound[any]{Type: "error", Payload: wsError{Message: err.Error()}}) {
					break readLoop
				}
				continue
			}
			if !queue(wsOutbound[any]{Type: "buzzResult", Payload: attempt}) {
				break readLoop
			}
		default:
			if !queue(wsOutbound[any]{Type: "error", Payload: wsError{Message: "unsupported message type"}}) {
				break readLoop
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
