package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"elicate/internal/logger"
	"elicate/pkg/chattypes"
)

const defaultGeminiModel = "gemini-2.0-flash"

// geminiSender creates its client on first use because genai.NewClient takes
// a context.
type geminiSender struct {
	cfg *genai.ClientConfig

	once    sync.Once
	client  *genai.Client
	initErr error
}

func newGeminiSender(apiKey string, cfg *config) *geminiSender {
	clientCfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if cfg.httpClient != nil {
		clientCfg.HTTPClient = cfg.httpClient
	}
	if cfg.baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	return &geminiSender{cfg: clientCfg}
}

func (s *geminiSender) Provider() string {
	return ProviderGemini
}

func (s *geminiSender) Send(ctx context.Context, messages []chattypes.Message, params chattypes.Parameters) (string, error) {
	s.once.Do(func() {
		s.client, s.initErr = genai.NewClient(ctx, s.cfg)
	})
	if s.initErr != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", s.initErr)
	}

	model := modelOr(params, defaultGeminiModel)
	contents, config := buildGeminiRequest(messages, params)
	logger.Debug("Sending Gemini request", "model", model, "content_count", len(contents))

	result, err := s.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	var content strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Thought || part.Text == "" {
				continue
			}
			content.WriteString(part.Text)
		}
	}
	logger.Debug("Gemini response received", "content_length", content.Len())
	return content.String(), nil
}

func buildGeminiRequest(messages []chattypes.Message, params chattypes.Parameters) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(messages))
	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case chattypes.RoleSystem:
			system = append(system, msg.Content)
		case chattypes.RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
		case chattypes.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}

	config := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if v, ok := floatParam(params, ParamTemperature); ok {
		t := float32(v)
		config.Temperature = &t
	}
	if v, ok := intParam(params, ParamMaxTokens); ok {
		config.MaxOutputTokens = int32(v)
	}
	if v, ok := floatParam(params, ParamTopP); ok {
		p := float32(v)
		config.TopP = &p
	}
	return contents, config
}
