package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zeuschat/backend/internal/handler/agent"
	"github.com/zeuschat/backend/internal/handler/chat"
	"github.com/zeuschat/backend/internal/handler/web"
	"github.com/zeuschat/backend/internal/handler/ws"
	middlewarePkg "github.com/zeuschat/backend/internal/middleware"
	"github.com/zeuschat/backend/internal/render"
	chatService "github.com/zeuschat/backend/internal/service/chat"
	"github.com/zeuschat/backend/internal/service/conversation"
	"github.com/zeuschat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(conv *conversation.Service, store *chatService.Service, markdown *render.Markdown) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": store.Len(),
		})
	})

	// Chat page
	web.New(conv, store, markdown).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.CORS)

		agent.New(conv.Profile()).RegisterRoutes(api)
		chat.New(conv, store).RegisterRoutes(api)
		ws.New(conv, store).RegisterRoutes(api)
	})

	return r
}
