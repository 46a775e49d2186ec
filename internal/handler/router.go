package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/medassist/backend/internal/handler/chat"
	"github.com/zhouzirui/medassist/backend/internal/handler/preferences"
	"github.com/zhouzirui/medassist/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/medassist/backend/internal/middleware"
	"github.com/zhouzirui/medassist/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/medassist/backend/internal/service/chat"
	"github.com/zhouzirui/medassist/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, assistantSvc *assistant.Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	chatHandler := chat.New(chatSvc)
	preferencesHandler := preferences.New(chatSvc)
	streamHandler := stream.New(assistantSvc, chatSvc)
	wsHandler := stream.NewWebSocketHandler(assistantSvc, chatSvc)

	started := time.Now()

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":  "ok",
				"backend": assistantSvc.BackendName(),
				"uptime":  time.Since(started).Round(time.Second).String(),
			})
		})

		chatHandler.RegisterRoutes(api)
		preferencesHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
