package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeuschat/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidTurn     = errors.New("invalid turn")
)

type sessionEntry struct {
	session    chat.Session
	transcript chat.Transcript
}

// Service encapsulates conversation state management.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

// NewService bootstraps the in-memory session store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*sessionEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions an anonymous session whose transcript starts with the greeting.
func (s *Service) CreateSession(_ context.Context, greeting string) (chat.Session, error) {
	now := s.now()
	session := chat.Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActiveAt: now,
	}

	transcript := make(chat.Transcript, 0, 16)
	if greeting != "" {
		transcript = append(transcript, chat.AssistantTurn(greeting))
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionEntry{session: session, transcript: transcript}
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return entry.session, nil
}

// LoadTranscript returns a copy of the stored turns for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) (chat.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry.transcript.Clone(), nil
}

// AppendTurn appends a turn to the session history.
func (s *Service) AppendTurn(_ context.Context, sessionID string, turn chat.Turn) error {
	if !turn.Role.Valid() {
		return ErrInvalidTurn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	entry.transcript = append(entry.transcript, turn)
	entry.session.LastActiveAt = s.now()
	return nil
}

// ResetTranscript replaces the whole history with the supplied turns.
func (s *Service) ResetTranscript(_ context.Context, sessionID string, turns ...chat.Turn) error {
	for _, turn := range turns {
		if !turn.Role.Valid() {
			return ErrInvalidTurn
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	fresh := make(chat.Transcript, len(turns), len(turns)+16)
	copy(fresh, turns)
	entry.transcript = fresh
	entry.session.LastActiveAt = s.now()
	return nil
}

// DeleteSession ends a session and discards its transcript.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Sweep drops sessions idle for longer than idle and returns their identifiers.
func (s *Service) Sweep(idle time.Duration) []string {
	if idle <= 0 {
		return nil
	}
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, entry := range s.sessions {
		if entry.session.LastActiveAt.Before(cutoff) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
