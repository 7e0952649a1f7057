package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zeuschat/backend/internal/model/agent"
	"github.com/zeuschat/backend/internal/model/chat"
	"github.com/zeuschat/backend/internal/render"
	chatService "github.com/zeuschat/backend/internal/service/chat"
	"github.com/zeuschat/backend/internal/service/conversation"
)

type stubResponder struct{}

func (stubResponder) Reply(context.Context, chat.Transcript) (string, error) {
	return "ok", nil
}

func newTestRouter() http.Handler {
	store := chatService.NewService()
	conv := conversation.NewService(store, stubResponder{}, agent.Default())
	return NewRouter(conv, store, render.NewMarkdown())
}

func TestHealthz(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRoutesAreMounted(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/api/agent", http.StatusOK},
		{http.MethodPost, "/api/sessions", http.StatusCreated},
		{http.MethodGet, "/api/sessions/missing", http.StatusNotFound},
		{http.MethodGet, "/api/ws/missing", http.StatusNotFound},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, resp.Code)
		}
	}
}

func TestAPIPreflight(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://example.com")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}
