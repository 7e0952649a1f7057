package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zeuschat/backend/internal/config"
)

const (
	geminiRoleUser  = "user"
	geminiRoleModel = "model"
)

var errNoUserTurn = errors.New("conversation must end with a user turn")

// geminiChatModel adapts the Generative AI SDK to eino's chat model interface.
type geminiChatModel struct {
	client      *genai.Client
	modelName   string
	temperature *float32
	topP        *float32
	maxTokens   *int
}

func newGeminiChatModel(ctx context.Context, cfg config.AIConfig) (*geminiChatModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	m := &geminiChatModel{
		client:    client,
		modelName: cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		m.temperature = &val
	}
	if cfg.TopP != nil {
		val := float32(*cfg.TopP)
		m.topP = &val
	}
	return m, nil
}

// Generate sends the conversation through a chat session and returns the candidate text.
func (m *geminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.modelName,
		Temperature: m.temperature,
		TopP:        m.topP,
		MaxTokens:   m.maxTokens,
	}, opts...)

	system, history, last, err := toGeminiContents(input)
	if err != nil {
		return nil, err
	}

	gm := m.client.GenerativeModel(*options.Model)
	if options.Temperature != nil {
		gm.SetTemperature(*options.Temperature)
	}
	if options.TopP != nil {
		gm.SetTopP(*options.TopP)
	}
	if options.MaxTokens != nil {
		gm.SetMaxOutputTokens(int32(*options.MaxTokens))
	}
	gm.SystemInstruction = system

	session := gm.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return nil, fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyReply
	}

	return schema.AssistantMessage(text, nil), nil
}

// Stream yields the blocking reply as a single chunk.
func (m *geminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported; the chat agent exposes no tools.
func (m *geminiChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	return errors.New("gemini chat model does not support tools")
}

// Close releases the underlying client.
func (m *geminiChatModel) Close() error {
	return m.client.Close()
}

// toGeminiContents splits eino messages into a system instruction, prior
// history and the final user content. Gemini requires conversations to open
// with a user turn, so assistant turns preceding the first user turn (the
// greeting) are dropped, and consecutive turns of one role are merged.
func toGeminiContents(messages []*schema.Message) (*genai.Content, []*genai.Content, *genai.Content, error) {
	var systemParts []string
	var contents []*genai.Content

	for _, msg := range messages {
		if msg == nil {
			continue
		}

		var role string
		switch msg.Role {
		case schema.System:
			if text := strings.TrimSpace(msg.Content); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		case schema.User:
			role = geminiRoleUser
		case schema.Assistant:
			role = geminiRoleModel
			if len(contents) == 0 {
				continue
			}
		default:
			continue
		}

		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.Text(msg.Content))
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}

	if len(contents) == 0 || contents[len(contents)-1].Role != geminiRoleUser {
		return nil, nil, nil, errNoUserTurn
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(systemParts, "\n\n"))}}
	}

	last := contents[len(contents)-1]
	return system, contents[:len(contents)-1], last, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	// Only the first candidate is shown.
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}
