package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"elicate/internal/logger"
	"elicate/pkg/chattypes"
)

const (
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	// Anthropic requires max_tokens on every request.
	defaultAnthropicMaxTokens = 1024
)

type anthropicSender struct {
	client anthropic.Client
}

func newAnthropicSender(apiKey string, cfg *config) *anthropicSender {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.httpClient))
	}
	return &anthropicSender{client: anthropic.NewClient(opts...)}
}

func (s *anthropicSender) Provider() string {
	return ProviderAnthropic
}

func (s *anthropicSender) Send(ctx context.Context, messages []chattypes.Message, params chattypes.Parameters) (string, error) {
	req := buildAnthropicParams(messages, params)
	logger.Debug("Sending Anthropic request", "model", req.Model, "message_count", len(req.Messages))

	message, err := s.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		content.WriteString(block.Text)
	}
	logger.Debug("Anthropic response received", "content_length", content.Len())
	return content.String(), nil
}

// buildAnthropicParams moves system messages into the System field, which is
// where the Messages API expects them.
func buildAnthropicParams(messages []chattypes.Message, params chattypes.Parameters) anthropic.MessageNewParams {
	converted := make([]anthropic.MessageParam, 0, len(messages))
	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case chattypes.RoleSystem:
			system = append(system, msg.Content)
		case chattypes.RoleUser:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case chattypes.RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelOr(params, defaultAnthropicModel)),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages:  converted,
	}
	if len(system) > 0 {
		req.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if v, ok := floatParam(params, ParamTemperature); ok {
		req.Temperature = anthropic.Float(v)
	}
	if v, ok := intParam(params, ParamMaxTokens); ok {
		req.MaxTokens = v
	}
	if v, ok := floatParam(params, ParamTopP); ok {
		req.TopP = anthropic.Float(v)
	}
	return req
}
