package web

import (
	"embed"
	"encoding/base64"
	"errors"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zeuschat/backend/internal/model/chat"
	"github.com/zeuschat/backend/internal/render"
	chatservice "github.com/zeuschat/backend/internal/service/chat"
	"github.com/zeuschat/backend/internal/service/conversation"
)

const (
	// SessionCookie carries the session identifier between page loads.
	SessionCookie = "zeus_session"
	// NoticeCookie carries a failure notice to the next page load only.
	NoticeCookie = "zeus_notice"

	noticeMaxAge = 60
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Handler serves the single chat page.
type Handler struct {
	conv     *conversation.Service
	store    *chatservice.Service
	markdown *render.Markdown
}

// New 创建页面处理器
func New(conv *conversation.Service, store *chatservice.Service, markdown *render.Markdown) *Handler {
	return &Handler{
		conv:     conv,
		store:    store,
		markdown: markdown,
	}
}

// RegisterRoutes 注册页面路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/", h.handleSubmit)
}

type turnView struct {
	Role    chat.Role
	Content template.HTML
}

type pageView struct {
	Title       string
	Placeholder string
	Notice      string
	Turns       []turnView
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, transcript, err := h.ensureSession(w, r)
	if err != nil {
		log.Printf("[web] failed to open session: %v", err)
		http.Error(w, "failed to open session", http.StatusInternalServerError)
		return
	}

	profile := h.conv.Profile()
	view := pageView{
		Title:       profile.Title,
		Placeholder: profile.Placeholder,
		Notice:      takeNotice(w, r),
		Turns:       make([]turnView, 0, len(transcript)),
	}
	for _, turn := range transcript {
		view.Turns = append(view.Turns, turnView{Role: turn.Role, Content: h.markdown.Render(turn.Content)})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, view); err != nil {
		log.Printf("[web] failed to render page: %v", err)
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sessionID, _, err := h.ensureSession(w, r)
	if err != nil {
		log.Printf("[web] failed to open session: %v", err)
		http.Error(w, "failed to open session", http.StatusInternalServerError)
		return
	}

	outcome, err := h.conv.Handle(r.Context(), sessionID, r.PostFormValue("message"))
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		log.Printf("[web] failed to handle message session=%s: %v", sessionID, err)
		http.Error(w, "failed to handle message", http.StatusInternalServerError)
		return
	}

	if outcome.Err != nil {
		setNotice(w, outcome.Err.Error())
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ensureSession resolves the session from the cookie, opening a new one when
// the cookie is missing or its session has ended.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) (string, chat.Transcript, error) {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		transcript, err := h.store.LoadTranscript(r.Context(), cookie.Value)
		if err == nil {
			return cookie.Value, transcript, nil
		}
		if !errors.Is(err, chatservice.ErrSessionNotFound) {
			return "", nil, err
		}
	}

	session, transcript, err := h.conv.Start(r.Context())
	if err != nil {
		return "", nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return session.ID, transcript, nil
}

func setNotice(w http.ResponseWriter, notice string) {
	http.SetCookie(w, &http.Cookie{
		Name:     NoticeCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(notice)),
		Path:     "/",
		MaxAge:   noticeMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// takeNotice returns the pending notice, if any, and clears it.
func takeNotice(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(NoticeCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     NoticeCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	notice, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(notice)
}
