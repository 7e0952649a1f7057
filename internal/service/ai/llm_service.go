package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/zeuschat/backend/internal/config"
	"github.com/zeuschat/backend/internal/model/agent"
	"github.com/zeuschat/backend/internal/model/chat"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Service sends the system prompt plus the full transcript to the chat model.
type Service struct {
	chatModel model.BaseChatModel
	profile   agent.Profile
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the chat model described by cfg and wraps it in a Service.
func NewService(ctx context.Context, profile agent.Profile, cfg config.AIConfig) (*Service, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, profile)
}

// NewServiceWithModel compiles the prompt chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, profile agent.Profile) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		profile:   profile,
		chain:     runnable,
	}, nil
}

// Reply runs one blocking model call over the whole transcript and returns the final text.
func (s *Service) Reply(ctx context.Context, transcript chat.Transcript) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(transcript))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyReply
	}

	log.Printf("[ai] generated response turns=%d length=%d", len(transcript), len(response.Content))
	return response.Content, nil
}

// Close releases provider resources when the model holds any.
func (s *Service) Close() error {
	if closer, ok := s.chatModel.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (s *Service) buildChainInput(transcript chat.Transcript) map[string]any {
	return map[string]any{
		"system":  strings.TrimSpace(s.profile.Instructions),
		"history": buildHistoryMessages(transcript),
	}
}

// buildHistoryMessages maps stored turns onto model messages. System turns are
// never stored in a transcript; the prompt template prepends the only one.
func buildHistoryMessages(transcript chat.Transcript) []*schema.Message {
	if len(transcript) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(transcript))
	for _, turn := range transcript {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
