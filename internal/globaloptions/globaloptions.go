// Package globaloptions declares the option groups built into Elicate.
package globaloptions

import (
	"elicate/internal/options"
	"elicate/pkg/chattypes"
)

// Built-in group ids.
const (
	OpenAIGroup            = "openai"
	ParametersGroup        = "parameters"
	SpeechRecognitionGroup = "speech-recognition"
	InputGroup             = "input"
	PluginsGroup           = "plugins"
)

// Defaults carries host configuration that seeds built-in default values.
type Defaults struct {
	OpenAIAPIKey   string
	Provider       string
	Model          string
	EnabledPlugins []string
}

// Groups returns the built-in option groups in settings order.
func Groups(d Defaults) []chattypes.OptionGroup {
	provider := d.Provider
	if provider == "" {
		provider = "openai"
	}
	enabled := append([]string{}, d.EnabledPlugins...)

	return []chattypes.OptionGroup{
		{
			ID:              OpenAIGroup,
			Title:           "OpenAI",
			SeparateSection: true,
			Options: []chattypes.OptionDescriptor{
				{
					OptionID:      "apiKey",
					DefaultValue:  d.OpenAIAPIKey,
					Scope:         chattypes.ScopeUser,
					DisplayTarget: chattypes.DisplaySettingsScreen,
					RenderProps: chattypes.RenderProps{
						Type:        chattypes.ControlPassword,
						Label:       "Your OpenAI API Key",
						Placeholder: "sk-************************************************",
						Description: "Find your API key at https://platform.openai.com/account/api-keys. " +
							"The key is stored only on this device and is sent only to OpenAI.",
					},
				},
			},
		},
		{
			ID:    ParametersGroup,
			Title: "Model Parameters",
			Options: []chattypes.OptionDescriptor{
				{
					OptionID:      "provider",
					DefaultValue:  provider,
					Scope:         chattypes.ScopeUser,
					DisplayTarget: chattypes.DisplaySettingsScreen,
					RenderProps: chattypes.RenderProps{
						Type:    chattypes.ControlSelect,
						Label:   "Provider",
						Choices: []string{"openai", "anthropic", "gemini"},
					},
				},
				{
					OptionID:      "model",
					DefaultValue:  d.Model,
					Scope:         chattypes.ScopeChat,
					DisplayTarget: chattypes.DisplayQuickSettings,
					Resettable:    true,
					QuickLabel:    "Model",
					RenderProps: chattypes.RenderProps{
						Type:        chattypes.ControlText,
						Label:       "Model",
						Placeholder: "provider default",
						Description: "Leave empty to use the selected provider's default model.",
					},
				},
				{
					OptionID:      "temperature",
					DefaultValue:  0.7,
					Scope:         chattypes.ScopeChat,
					DisplayTarget: chattypes.DisplaySettingsScreen,
					Resettable:    true,
					RenderProps: chattypes.RenderProps{
						Type:        chattypes.ControlNumber,
						Label:       "Temperature",
						Description: "Higher values make answers more varied, lower values more focused.",
					},
				},
			},
		},
		{
			ID:    SpeechRecognitionGroup,
			Title: "Speech Recognition",
			Options: []chattypes.OptionDescriptor{
				{
					OptionID:      "use-whisper",
					DefaultValue:  true,
					Scope:         chattypes.ScopeUser,
					DisplayTarget: chattypes.DisplayQuickSettings,
					QuickLabel:    "Use Whisper transcription",
					RenderProps: chattypes.RenderProps{
						Type:        chattypes.ControlToggle,
						Label:       "Use OpenAI Whisper for speech recognition",
						Description: "Requires an OpenAI API key.",
					},
				},
				{
					OptionID:      "show-microphone",
					DefaultValue:  true,
					Scope:         chattypes.ScopeUser,
					DisplayTarget: chattypes.DisplaySettingsScreen,
					RenderProps: chattypes.RenderProps{
						Type:  chattypes.ControlToggle,
						Label: "Show microphone button",
					},
				},
			},
		},
		{
			ID:    InputGroup,
			Title: "Input",
			Options: []chattypes.OptionDescriptor{
				{
					OptionID:      "submit-on-enter",
					DefaultValue:  false,
					Scope:         chattypes.ScopeUser,
					DisplayTarget: chattypes.DisplayQuickSettings,
					QuickLabel:    "Ctrl+Enter submits",
					RenderProps: chattypes.RenderProps{
						Type:  chattypes.ControlToggle,
						Label: "Submit with Ctrl+Enter",
					},
				},
			},
		},
		{
			ID:    PluginsGroup,
			Title: "Plugins",
			Options: []chattypes.OptionDescriptor{
				{
					OptionID:      "enabled",
					DefaultValue:  enabled,
					Scope:         chattypes.ScopeUser,
					DisplayTarget: chattypes.DisplayHidden,
					Resettable:    true,
					RenderProps: chattypes.RenderProps{
						Type:  chattypes.ControlText,
						Label: "Enabled plugins",
					},
				},
			},
		},
	}
}

// Register adds every built-in group to reg.
func Register(reg *options.Registry, d Defaults) error {
	for _, g := range Groups(d) {
		if err := reg.RegisterGroup(g); err != nil {
			return err
		}
	}
	return nil
}
