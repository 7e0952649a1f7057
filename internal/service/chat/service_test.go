package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	model "github.com/zeuschat/backend/internal/model/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "hello")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreateSessionSeedsGreeting(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, "greetings")
	transcript, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}

	if len(transcript) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(transcript))
	}
	if transcript[0] != model.AssistantTurn("greetings") {
		t.Fatalf("unexpected first turn: %+v", transcript[0])
	}
}

func TestLoadTranscriptReturnsCopy(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, "greetings")
	transcript, _ := svc.LoadTranscript(ctx, session.ID)
	transcript[0].Content = "mutated"

	again, _ := svc.LoadTranscript(ctx, session.ID)
	if again[0].Content != "greetings" {
		t.Fatalf("transcript was mutated through copy: %q", again[0].Content)
	}
}

func TestAppendAndResetTranscript(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, "greetings")
	if err := svc.AppendTurn(ctx, session.ID, model.UserTurn("hi")); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}
	if err := svc.AppendTurn(ctx, session.ID, model.AssistantTurn("hey")); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}

	transcript, _ := svc.LoadTranscript(ctx, session.ID)
	if len(transcript) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(transcript))
	}

	if err := svc.ResetTranscript(ctx, session.ID, model.AssistantTurn("cleared")); err != nil {
		t.Fatalf("ResetTranscript err: %v", err)
	}
	transcript, _ = svc.LoadTranscript(ctx, session.ID)
	if len(transcript) != 1 || transcript[0].Content != "cleared" {
		t.Fatalf("unexpected transcript after reset: %+v", transcript)
	}
}

func TestAppendTurnRejectsUnknownRole(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, "")
	err := svc.AppendTurn(ctx, session.ID, model.Turn{Role: "narrator", Content: "x"})
	if !errors.Is(err, ErrInvalidTurn) {
		t.Fatalf("expected ErrInvalidTurn, got %v", err)
	}
}

func TestAppendTurnUnknownSession(t *testing.T) {
	svc := NewService()
	err := svc.AppendTurn(context.Background(), "missing", model.UserTurn("hi"))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, "greetings")
	if err := svc.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if _, err := svc.LoadTranscript(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := svc.DeleteSession(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }

	stale, _ := svc.CreateSession(ctx, "old")
	current = current.Add(90 * time.Minute)
	fresh, _ := svc.CreateSession(ctx, "new")
	current = current.Add(45 * time.Minute)

	removed := svc.Sweep(time.Hour)
	if len(removed) != 1 || removed[0] != stale.ID {
		t.Fatalf("expected only the stale session to be removed, got %v", removed)
	}
	if _, err := svc.GetSession(ctx, stale.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected stale session to be removed")
	}
	if _, err := svc.GetSession(ctx, fresh.ID); err != nil {
		t.Fatalf("expected fresh session to survive: %v", err)
	}
	if len(svc.Sweep(0)) != 0 {
		t.Fatal("expected zero idle to disable sweeping")
	}
}
