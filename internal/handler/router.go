package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/zhaokun/timetavern/backend/internal/handler/chat"
	"github.com/zhaokun/timetavern/backend/internal/handler/stream"
	"github.com/zhaokun/timetavern/backend/internal/handler/ws"
	middlewarePkg "github.com/zhaokun/timetavern/backend/internal/middleware"
	chatService "github.com/zhaokun/timetavern/backend/internal/service/chat"
	"github.com/zhaokun/timetavern/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the chat service.
func NewRouter(chatSvc *chatService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	restHandler := chatHandler.New(chatSvc)
	wsHandler := ws.New(chatSvc)
	streamHandler := stream.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		restHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
