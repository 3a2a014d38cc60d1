package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/dyike/CryptoViewer/internal/logger"
	"github.com/dyike/CryptoViewer/internal/metrics"
	"github.com/dyike/CryptoViewer/internal/models"
	"github.com/dyike/CryptoViewer/internal/utils"
)

const (
	DisabledMessage    = "AI recommendations are disabled. Please enable them in the .env file."
	UnavailableMessage = "AI recommendations are not available. Please check your OPENAI_API_KEY configuration."
	FailureMessage     = "Unable to generate recommendations at this time. Please try again later."
)

// Outcome labels reported for each Generate call.
const (
	OutcomeGenerated    = "generated"
	OutcomeDisabled     = "disabled"
	OutcomeUnconfigured = "unconfigured"
	OutcomeFailed       = "failed"
)

// ChatModel is the part of an eino chat model the advisor calls.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

type Options struct {
	Enabled     bool
	Model       ChatModel
	Temperature float32
	MaxTokens   int
	// Unavailable overrides UnavailableMessage, e.g. to name another provider's key.
	Unavailable string
}

// Advisor turns a portfolio and its market data into recommendation text.
type Advisor struct {
	enabled     bool
	model       ChatModel
	temperature float32
	maxTokens   int
	unavailable string
	template    *prompt.DefaultChatTemplate
}

func New(opts Options) (*Advisor, error) {
	system, err := utils.LoadPrompt("advisor/system")
	if err != nil {
		return nil, err
	}
	user, err := utils.LoadPrompt("advisor/recommendations")
	if err != nil {
		return nil, err
	}
	if opts.Unavailable == "" {
		opts.Unavailable = UnavailableMessage
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}

	return &Advisor{
		enabled:     opts.Enabled,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		unavailable: opts.Unavailable,
		template: prompt.FromMessages(schema.FString,
			schema.SystemMessage(system),
			schema.UserMessage(user),
		),
	}, nil
}

// Enabled reports whether the feature flag is on.
func (a *Advisor) Enabled() bool { return a.enabled }

// Configured reports whether a chat model is available.
func (a *Advisor) Configured() bool { return a.model != nil }

// Messages renders the chat request for portfolio and marketData.
func (a *Advisor) Messages(ctx context.Context, portfolio []models.Holding, marketData any) ([]*schema.Message, error) {
	return a.template.Format(ctx, map[string]any{
		"portfolio":   dump(portfolio),
		"market_data": dump(marketData),
	})
}

// Generate always returns text: the model output, or one of the fixed
// messages when the feature is off, no model is configured, or the call fails.
func (a *Advisor) Generate(ctx context.Context, portfolio []models.Holding, marketData any) (text string) {
	if !a.enabled {
		metrics.RecommendationTotal.WithLabelValues(OutcomeDisabled).Inc()
		return DisabledMessage
	}
	if a.model == nil {
		metrics.RecommendationTotal.WithLabelValues(OutcomeUnconfigured).Inc()
		return a.unavailable
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("panic generating recommendations", zap.Any("panic", r))
			metrics.RecommendationTotal.WithLabelValues(OutcomeFailed).Inc()
			text = FailureMessage
		}
	}()

	messages, err := a.Messages(ctx, portfolio, marketData)
	if err != nil {
		logger.Log.Error("render recommendation prompt", zap.Error(err))
		metrics.RecommendationTotal.WithLabelValues(OutcomeFailed).Inc()
		return FailureMessage
	}

	resp, err := a.model.Generate(ctx, messages,
		model.WithTemperature(a.temperature),
		model.WithMaxTokens(a.maxTokens),
	)
	if err != nil {
		logger.Log.Error("chat model error", zap.Error(err))
		metrics.RecommendationTotal.WithLabelValues(OutcomeFailed).Inc()
		return FailureMessage
	}
	if resp == nil {
		logger.Log.Error("chat model returned no message")
		metrics.RecommendationTotal.WithLabelValues(OutcomeFailed).Inc()
		return FailureMessage
	}

	if usage := resp.ResponseMeta; usage != nil && usage.Usage != nil {
		logger.Log.Debug("recommendations generated",
			zap.Int("prompt_tokens", usage.Usage.PromptTokens),
			zap.Int("completion_tokens", usage.Usage.CompletionTokens),
		)
	}
	metrics.RecommendationTotal.WithLabelValues(OutcomeGenerated).Inc()
	return resp.Content
}

// dump renders v as compact JSON of its normalized form.
func dump(v any) string {
	data, err := json.Marshal(utils.Normalize(v))
	if err != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return string(data)
}
