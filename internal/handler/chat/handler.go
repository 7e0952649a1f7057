package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zeuschat/backend/internal/model/chat"
	chatService "github.com/zeuschat/backend/internal/service/chat"
	"github.com/zeuschat/backend/internal/service/conversation"
	"github.com/zeuschat/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	conv  *conversation.Service
	store *chatService.Service
}

// New 创建聊天处理器
func New(conv *conversation.Service, store *chatService.Service) *Handler {
	return &Handler{
		conv:  conv,
		store: store,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(sessions chi.Router) {
		sessions.Post("/", h.handleCreateSession)
		sessions.Get("/{sessionID}", h.handleGetSession)
		sessions.Delete("/{sessionID}", h.handleDeleteSession)
		sessions.Post("/{sessionID}/messages", h.handleSendMessage)
	})
}

type sessionResponse struct {
	Session    chat.Session    `json:"session"`
	Transcript chat.Transcript `json:"transcript"`
}

type messageResponse struct {
	Reset      bool            `json:"reset"`
	Reply      string          `json:"reply,omitempty"`
	Error      string          `json:"error,omitempty"`
	Transcript chat.Transcript `json:"transcript"`
}

// handleCreateSession 创建会话，记录以问候语开头
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, transcript, err := h.conv.Start(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{Session: session, Transcript: transcript})
}

// handleGetSession 返回会话及完整记录
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.store.GetSession(r.Context(), sessionID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	transcript, err := h.store.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionResponse{Session: session, Transcript: transcript})
}

// handleDeleteSession 结束会话并丢弃记录
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.store.DeleteSession(r.Context(), sessionID); err != nil {
		respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSendMessage 处理一次用户输入
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.conv.Handle(r.Context(), sessionID, payload.Content)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	resp := messageResponse{
		Reset:      outcome.Reset,
		Reply:      outcome.Reply,
		Transcript: outcome.Transcript,
	}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
		utils.RespondJSON(w, http.StatusBadGateway, resp)
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
