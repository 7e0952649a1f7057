package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/zeuschat/backend/internal/config"
)

// NewChatModel 根据配置创建对应 provider 的模型实例。
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderArk:
		return newArkChatModel(ctx, cfg)
	case config.ProviderGemini:
		return newGeminiChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// newArkChatModel talks to any OpenAI-compatible chat-completions endpoint.
func newArkChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	var temperature *float32
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		temperature = &val
	}

	var topP *float32
	if cfg.TopP != nil {
		val := float32(*cfg.TopP)
		topP = &val
	}

	var maxTokens *int
	if cfg.MaxTokens != nil {
		val := *cfg.MaxTokens
		maxTokens = &val
	}

	arkCfg := &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	chatModel, err := ark.NewChatModel(ctx, arkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return chatModel, nil
}
