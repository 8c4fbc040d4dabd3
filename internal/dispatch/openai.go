package dispatch

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"elicate/internal/logger"
	"elicate/pkg/chattypes"
)

const defaultOpenAIModel = "gpt-4o-mini"

type openAISender struct {
	client openai.Client
}

func newOpenAISender(apiKey string, cfg *config) *openAISender {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.httpClient))
	}
	return &openAISender{client: openai.NewClient(opts...)}
}

func (s *openAISender) Provider() string {
	return ProviderOpenAI
}

func (s *openAISender) Send(ctx context.Context, messages []chattypes.Message, params chattypes.Parameters) (string, error) {
	req := buildOpenAIParams(messages, params)
	logger.Debug("Sending OpenAI request", "model", req.Model, "message_count", len(req.Messages))

	completion, err := s.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	content := completion.Choices[0].Message.Content
	logger.Debug("OpenAI response received", "content_length", len(content))
	return content, nil
}

func buildOpenAIParams(messages []chattypes.Message, params chattypes.Parameters) openai.ChatCompletionNewParams {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chattypes.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case chattypes.RoleUser:
			converted = append(converted, openai.UserMessage(msg.Content))
		case chattypes.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelOr(params, defaultOpenAIModel)),
		Messages: converted,
	}
	if v, ok := floatParam(params, ParamTemperature); ok {
		req.Temperature = openai.Float(v)
	}
	if v, ok := intParam(params, ParamMaxTokens); ok {
		req.MaxTokens = openai.Int(v)
	}
	if v, ok := floatParam(params, ParamTopP); ok {
		req.TopP = openai.Float(v)
	}
	return req
}
