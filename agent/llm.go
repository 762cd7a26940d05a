package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"datachat/config"
)

// NewChatModel creates a chat model over the configured OpenAI-compatible
// endpoint. The reasoning loop and the chart synthesizer each get their
// own instance so tool bindings on one never leak into the other.
func NewChatModel(cfg config.LLMConfig) (model.ChatModel, error) {
	conf := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.ModelName,
		Timeout: 0,
	}
	if cfg.MaxTokens > 0 {
		conf.MaxTokens = &cfg.MaxTokens
	}
	chatModel, err := openai.NewChatModel(context.Background(), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %v", err)
	}
	return chatModel, nil
}
