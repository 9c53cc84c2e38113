package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	chatservice "github.com/zhaokun/timetavern/backend/internal/service/chat"
	"github.com/zhaokun/timetavern/backend/pkg/utils"
)

// Handler runs conversations over a websocket. Slow turns first emit a
// placeholder frame; the final frame repeats the placeholder's id in its
// `replaces` field so the client overwrites the indicator in place.
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type textPayload struct {
	Content string `json:"content"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Replaces  string `json:"replaces,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type turnPayload struct {
	Kind    string `json:"kind"`
	Persona string `json:"persona,omitempty"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)

	h.send(conn, outgoingMessage{
		Type:      "status",
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Data:      textPayload{Content: chatservice.WelcomeText},
		Timestamp: time.Now().UnixMilli(),
	})

	// The read loop is serial on purpose: one turn at a time per session.
	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read error for session=%s: %v", sessionID, err)
			}
			return
		}

		if in.Type != "message" {
			h.sendError(conn, sessionID, "", "unsupported message type: "+in.Type)
			continue
		}

		var payload textPayload
		if err := json.Unmarshal(in.Data, &payload); err != nil {
			h.sendError(conn, sessionID, "", "invalid message payload")
			continue
		}
		if strings.TrimSpace(payload.Content) == "" {
			h.sendError(conn, sessionID, "", "content is required")
			continue
		}

		h.processTurn(conn, r, sessionID, payload.Content)
	}
}

func (h *Handler) processTurn(conn *websocket.Conn, r *http.Request, sessionID, content string) {
	var placeholderID string
	progress := func(text string) {
		placeholderID = uuid.NewString()
		h.send(conn, outgoingMessage{
			Type:      "placeholder",
			ID:        placeholderID,
			SessionID: sessionID,
			Data:      textPayload{Content: text},
			Timestamp: time.Now().UnixMilli(),
		})
	}

	turn, err := h.chatSvc.HandleMessage(r.Context(), sessionID, content, progress)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			h.sendError(conn, sessionID, placeholderID, err.Error())
			return
		}
		h.sendError(conn, sessionID, placeholderID, "turn failed: "+err.Error())
		return
	}

	frameType := "message"
	if turn.Kind == chatservice.TurnError {
		frameType = "error"
	}

	h.send(conn, outgoingMessage{
		Type:      frameType,
		ID:        uuid.NewString(),
		Replaces:  placeholderID,
		SessionID: sessionID,
		Data: turnPayload{
			Kind:    string(turn.Kind),
			Persona: turn.Persona,
			Text:    turn.Reply,
			Error:   turn.Err,
		},
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, replaces, message string) {
	h.send(conn, outgoingMessage{
		Type:      "error",
		ID:        uuid.NewString(),
		Replaces:  replaces,
		SessionID: sessionID,
		Data:      turnPayload{Kind: string(chatservice.TurnError), Text: message, Error: message},
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write error for session=%s: %v", msg.SessionID, err)
	}
}
