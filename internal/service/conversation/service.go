// Package conversation applies one user interaction to a session transcript:
// reset keywords clear it, anything else is answered by the model.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/zeuschat/backend/internal/model/agent"
	"github.com/zeuschat/backend/internal/model/chat"
	chatservice "github.com/zeuschat/backend/internal/service/chat"
)

// ErrEmptyMessage is returned for blank input; the transcript is untouched.
var ErrEmptyMessage = errors.New("message must not be empty")

// Responder produces the assistant reply for a transcript ending in a user turn.
type Responder interface {
	Reply(ctx context.Context, transcript chat.Transcript) (string, error)
}

// Store is the session store the conversation reads and mutates.
type Store interface {
	CreateSession(ctx context.Context, greeting string) (chat.Session, error)
	LoadTranscript(ctx context.Context, sessionID string) (chat.Transcript, error)
	AppendTurn(ctx context.Context, sessionID string, turn chat.Turn) error
	ResetTranscript(ctx context.Context, sessionID string, turns ...chat.Turn) error
}

// Outcome describes what one interaction did to the transcript.
type Outcome struct {
	Reset      bool            `json:"reset"`
	Reply      string          `json:"reply,omitempty"`
	Transcript chat.Transcript `json:"transcript"`
	// Err is the model failure surfaced to the user, if any.
	Err error `json:"-"`
}

// Service coordinates the session store and the model.
type Service struct {
	store     Store
	responder Responder
	profile   agent.Profile

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

// sessionLock is held by every Handle call in flight for one session and
// removed once the last of them releases it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService wires a conversation service.
func NewService(store Store, responder Responder, profile agent.Profile) *Service {
	return &Service{
		store:     store,
		responder: responder,
		profile:   profile,
		locks:     make(map[string]*sessionLock),
	}
}

// Profile returns the agent profile used for greetings and resets.
func (s *Service) Profile() agent.Profile {
	return s.profile
}

// Start opens a session seeded with the greeting turn.
func (s *Service) Start(ctx context.Context) (chat.Session, chat.Transcript, error) {
	session, err := s.store.CreateSession(ctx, s.profile.Greeting)
	if err != nil {
		return chat.Session{}, nil, err
	}
	transcript, err := s.store.LoadTranscript(ctx, session.ID)
	if err != nil {
		return chat.Session{}, nil, err
	}
	return session, transcript, nil
}

// Handle applies one user input to the session transcript.
//
// A reset keyword replaces the transcript with the clearance message and makes
// no model call. Any other input is appended as a user turn and answered; when
// the model fails the user turn stays, no assistant turn is added and the
// failure is reported in Outcome.Err. The returned error covers input and
// storage problems only.
func (s *Service) Handle(ctx context.Context, sessionID, input string) (Outcome, error) {
	if strings.TrimSpace(input) == "" {
		return Outcome{}, ErrEmptyMessage
	}

	unlock := s.lock(sessionID)
	defer unlock()

	if s.profile.IsResetCommand(input) {
		if err := s.store.ResetTranscript(ctx, sessionID, chat.AssistantTurn(s.profile.Cleared)); err != nil {
			return Outcome{}, err
		}
		transcript, err := s.store.LoadTranscript(ctx, sessionID)
		if err != nil {
			return Outcome{}, err
		}
		log.Printf("[conversation] transcript cleared session=%s", sessionID)
		return Outcome{Reset: true, Transcript: transcript}, nil
	}

	if err := s.store.AppendTurn(ctx, sessionID, chat.UserTurn(input)); err != nil {
		return Outcome{}, err
	}
	transcript, err := s.store.LoadTranscript(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}

	reply, replyErr := s.responder.Reply(ctx, transcript)
	if replyErr != nil {
		log.Printf("[conversation] model call failed session=%s: %v", sessionID, replyErr)
		return Outcome{Transcript: transcript, Err: fmt.Errorf("an error occurred: %w", replyErr)}, nil
	}

	if err := s.store.AppendTurn(ctx, sessionID, chat.AssistantTurn(reply)); err != nil {
		return Outcome{}, err
	}
	transcript = append(transcript, chat.AssistantTurn(reply))

	return Outcome{Reply: reply, Transcript: transcript}, nil
}

func (s *Service) lock(sessionID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.locksMu.Unlock()
	}
}

var _ Store = (*chatservice.Service)(nil)
