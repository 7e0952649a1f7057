package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatservice "github.com/zeuschat/backend/internal/service/chat"
	"github.com/zeuschat/backend/internal/service/conversation"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket 聊天处理器
type Handler struct {
	conv     *conversation.Service
	store    *chatservice.Service
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(conv *conversation.Service, store *chatservice.Service) *Handler {
	return &Handler{
		conv:  conv,
		store: store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.store.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go pingLoop(ctx, conn)

	transcript, err := h.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		h.sendError(conn, sessionID, err.Error(), nil)
		return
	}
	h.sendResult(conn, sessionID, map[string]any{
		"type":       "connected",
		"transcript": transcript,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, sessionID, "session mismatch", nil)
			continue
		}

		h.handleMessage(ctx, conn, sessionID, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, conn, sessionID, msg.Data)
	case "history":
		transcript, err := h.store.LoadTranscript(ctx, sessionID)
		if err != nil {
			h.sendError(conn, sessionID, err.Error(), nil)
			return
		}
		h.sendResult(conn, sessionID, map[string]any{"type": "history", "transcript": transcript})
	default:
		h.sendError(conn, sessionID, "unsupported message type: "+msg.Type, nil)
	}
}

func (h *Handler) handleTextMessage(ctx context.Context, conn *websocket.Conn, sessionID string, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, sessionID, "invalid text payload", nil)
		return
	}

	outcome, err := h.conv.Handle(ctx, sessionID, text.Text)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			h.sendError(conn, sessionID, "session not found", nil)
			return
		}
		h.sendError(conn, sessionID, err.Error(), nil)
		return
	}

	if outcome.Err != nil {
		h.sendError(conn, sessionID, outcome.Err.Error(), outcome.Transcript)
		return
	}

	h.sendResult(conn, sessionID, map[string]any{
		"type":       "turn",
		"reset":      outcome.Reset,
		"reply":      outcome.Reply,
		"transcript": outcome.Transcript,
	})
}

func (h *Handler) sendResult(conn *websocket.Conn, sessionID string, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write result failed: %v", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, message string, transcript interface{}) {
	data := map[string]any{"message": message}
	if transcript != nil {
		data["transcript"] = transcript
	}
	msg := outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// WriteControl may run concurrently with WriteJSON.
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
