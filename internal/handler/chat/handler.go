package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/zhaokun/timetavern/backend/internal/service/chat"
	"github.com/zhaokun/timetavern/backend/pkg/utils"
)

// Handler exposes session management and turn processing over plain REST.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}/messages", h.handleTranscript)
	r.Post("/messages", h.handleMessage)
}

// handleCreateSession provisions a fresh conversation awaiting its persona.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.chatSvc.CreateSession(r.Context())

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"session":  session,
		"greeting": chatservice.WelcomeText,
	})
}

// handleTranscript returns the session's stored history.
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}

type turnResponse struct {
	Kind    string `json:"kind"`
	Persona string `json:"persona,omitempty"`
	Reply   string `json:"reply"`
	Error   string `json:"error,omitempty"`
}

// handleMessage runs one turn. The response carries the final outcome only;
// clients that want the intermediate placeholder use the websocket or SSE
// surface instead.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Content   string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	turn, err := h.chatSvc.HandleMessage(r.Context(), payload.SessionID, payload.Content, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	status := http.StatusOK
	if turn.Kind == chatservice.TurnError {
		// The session survives a completion failure; the user may resend.
		status = http.StatusBadGateway
	}

	utils.RespondJSON(w, status, turnResponse{
		Kind:    string(turn.Kind),
		Persona: turn.Persona,
		Reply:   turn.Reply,
		Error:   turn.Err,
	})
}
