package agent

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zeuschat/backend/internal/model/agent"
	"github.com/zeuschat/backend/pkg/utils"
)

// Handler exposes the public part of the agent profile.
type Handler struct {
	profile agent.Profile
}

// New 创建 agent 处理器
func New(profile agent.Profile) *Handler {
	return &Handler{profile: profile}
}

// RegisterRoutes 注册 agent 相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/agent", h.handleGetAgent)
}

// handleGetAgent returns the profile; instructions stay server side.
func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.profile)
}
