package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zeuschat/backend/internal/model/agent"
	"github.com/zeuschat/backend/internal/model/chat"
	chatservice "github.com/zeuschat/backend/internal/service/chat"
	"github.com/zeuschat/backend/internal/service/conversation"
)

type stubResponder struct {
	reply string
	err   error
}

func (s *stubResponder) Reply(context.Context, chat.Transcript) (string, error) {
	return s.reply, s.err
}

func setupRouter(responder conversation.Responder) (*chi.Mux, *chatservice.Service) {
	store := chatservice.NewService()
	conv := conversation.NewService(store, responder, agent.Default())
	handler := New(conv, store)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, store
}

func createSession(t *testing.T, r http.Handler) sessionResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var created sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	return created
}

func sendMessage(t *testing.T, r http.Handler, sessionID, content string) (*httptest.ResponseRecorder, messageResponse) {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"content": content})
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var body messageResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	return resp, body
}

func TestCreateSessionStartsWithGreeting(t *testing.T) {
	r, _ := setupRouter(&stubResponder{reply: "hi"})
	created := createSession(t, r)

	if created.Session.ID == "" {
		t.Fatal("expected session id")
	}
	if len(created.Transcript) != 1 || created.Transcript[0].Content != agent.Default().Greeting {
		t.Fatalf("unexpected transcript: %+v", created.Transcript)
	}
}

func TestSendMessageAppendsReply(t *testing.T) {
	r, _ := setupRouter(&stubResponder{reply: "Hello there"})
	created := createSession(t, r)

	resp, body := sendMessage(t, r, created.Session.ID, "hello")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if body.Reply != "Hello there" {
		t.Fatalf("unexpected reply %q", body.Reply)
	}
	if len(body.Transcript) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(body.Transcript))
	}
}

func TestSendResetReturnsClearedTranscript(t *testing.T) {
	r, _ := setupRouter(&stubResponder{reply: "Hello there"})
	created := createSession(t, r)
	sendMessage(t, r, created.Session.ID, "hello")

	resp, body := sendMessage(t, r, created.Session.ID, "Forget")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !body.Reset {
		t.Fatal("expected reset flag")
	}
	if len(body.Transcript) != 1 || body.Transcript[0].Content != agent.Default().Cleared {
		t.Fatalf("unexpected transcript after reset: %+v", body.Transcript)
	}
}

func TestSendMessageModelFailure(t *testing.T) {
	r, store := setupRouter(&stubResponder{err: errors.New("quota exceeded")})
	created := createSession(t, r)

	resp, body := sendMessage(t, r, created.Session.ID, "hello")
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	if body.Error == "" {
		t.Fatal("expected error text")
	}

	transcript, err := store.LoadTranscript(context.Background(), created.Session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 || transcript[1].Role != chat.RoleUser {
		t.Fatalf("expected greeting plus user turn, got %+v", transcript)
	}
}

func TestSendMessageValidation(t *testing.T) {
	r, _ := setupRouter(&stubResponder{reply: "x"})
	created := createSession(t, r)

	resp, _ := sendMessage(t, r, created.Session.ID, "   ")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", resp.Code)
	}

	resp, _ = sendMessage(t, r, "missing", "hello")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+created.Session.ID+"/messages", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestGetAndDeleteSession(t *testing.T) {
	r, _ := setupRouter(&stubResponder{reply: "x"})
	created := createSession(t, r)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/sessions/"+created.Session.ID, nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/"+created.Session.ID, nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}
