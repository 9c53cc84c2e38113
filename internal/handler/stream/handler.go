package stream

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/zhaokun/timetavern/backend/internal/service/chat"
	"github.com/zhaokun/timetavern/backend/pkg/utils"
)

// Handler runs one turn over Server-Sent Events for clients without
// websocket support. The event order mirrors the placeholder contract:
// start (placeholder text), then message or error, then end.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the stream handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the SSE route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// StreamResponse is one SSE event chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	Persona   string `json:"persona,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")
	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)

	progress := func(text string) {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "start",
			SessionID: sessionID,
			Content:   text,
		})
	}

	turn, err := h.chatSvc.HandleMessage(r.Context(), sessionID, userMessage, progress)
	if err != nil {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     err.Error(),
		})
		utils.SendSSEChunk(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
		return
	}

	event := "message"
	if turn.Kind == chatservice.TurnError {
		event = "error"
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     event,
		SessionID: sessionID,
		Persona:   turn.Persona,
		Content:   turn.Reply,
		Error:     turn.Err,
	})

	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})

	log.Printf("[stream] completed turn for session=%s kind=%s", sessionID, turn.Kind)
}
