package advisor

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"go.uber.org/zap"

	"github.com/dyike/CryptoViewer/config"
	"github.com/dyike/CryptoViewer/internal/logger"
)

// NewChatModel creates the chat model of the configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (ChatModel, error) {
	apiKey := cfg.LLMAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is required", cfg.LLMProvider)
	}

	switch cfg.LLMProvider {
	case config.ProviderDeepSeek:
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.UpstreamTimeout * 6,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek chat model: %w", err)
		}
		return cm, nil
	case config.ProviderOpenAI, "":
		maxTokens := cfg.LLMMaxTokens
		temperature := cfg.LLMTemperature
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			Timeout:     cfg.UpstreamTimeout * 6,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai chat model: %w", err)
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// NewFromConfig builds an Advisor. A missing or unusable key leaves the
// advisor unconfigured rather than failing.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Advisor, error) {
	opts := Options{
		Enabled:     cfg.EnableAIRecommendations,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}
	if cfg.LLMProvider == config.ProviderDeepSeek {
		opts.Unavailable = "AI recommendations are not available. Please check your DEEPSEEK_API_KEY configuration."
	}

	if cfg.LLMAPIKey() == "" {
		logger.Log.Warn("missing or invalid LLM API key", zap.String("provider", cfg.LLMProvider))
	} else {
		chatModel, err := NewChatModel(ctx, cfg)
		if err != nil {
			logger.Log.Error("failed to initialize chat model", zap.String("provider", cfg.LLMProvider), zap.Error(err))
		} else {
			opts.Model = chatModel
			logger.Log.Info("chat model initialized",
				zap.String("provider", cfg.LLMProvider),
				zap.String("model", cfg.LLMModel),
			)
		}
	}
	return New(opts)
}
