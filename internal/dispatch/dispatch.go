// Package dispatch sends prepared chat requests to model APIs. The option and
// plugin core never calls it; the host passes it the pipeline output.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"

	"elicate/pkg/chattypes"
)

// Provider names accepted by NewSender.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Parameter names understood by every adapter.
const (
	ParamModel       = "model"
	ParamTemperature = "temperature"
	ParamMaxTokens   = "max_tokens"
	ParamTopP        = "top_p"
)

// Sender delivers messages to a model and returns the reply text.
type Sender interface {
	Provider() string
	Send(ctx context.Context, messages []chattypes.Message, params chattypes.Parameters) (string, error)
}

// Option configures a sender.
type Option func(*config)

type config struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL points the sender at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// NewSender returns the adapter for provider.
func NewSender(provider, apiKey string, opts ...Option) (Sender, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key not configured", provider)
	}

	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return newOpenAISender(apiKey, cfg), nil
	case ProviderAnthropic:
		return newAnthropicSender(apiKey, cfg), nil
	case ProviderGemini:
		return newGeminiSender(apiKey, cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

// DefaultModel returns the model a provider's adapter uses when the request
// names none.
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return defaultOpenAIModel
	case ProviderAnthropic:
		return defaultAnthropicModel
	case ProviderGemini:
		return defaultGeminiModel
	default:
		return ""
	}
}

func modelOr(params chattypes.Parameters, fallback string) string {
	if m := cast.ToString(params[ParamModel]); m != "" {
		return m
	}
	return fallback
}

// floatParam reads a numeric parameter. Values that do not convert are ignored.
func floatParam(params chattypes.Parameters, key string) (float64, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

func intParam(params chattypes.Parameters, key string) (int64, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false
	}
	i, err := cast.ToInt64E(v)
	if err != nil || i <= 0 {
		return 0, false
	}
	return i, true
}
