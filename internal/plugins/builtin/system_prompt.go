package builtin

import (
	"context"
	"strings"
	"time"

	"elicate/pkg/chattypes"
)

// SystemPromptID is the plugin id and option group of the system prompt plugin.
const SystemPromptID = "system-prompt"

// DatetimeToken is replaced with the current local date and time.
const DatetimeToken = "{{ datetime }}"

// TimestampLayout renders the substituted date and time.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

// DefaultSystemPrompt is used when no override is set or the override is blank.
var DefaultSystemPrompt = strings.TrimSpace(`
You are Elicate, a mathematics assistant that explains solutions step by step.
Stay within mathematics. If greeted, reply briefly and politely, then offer help with a math problem.
Check every result before presenting it.
Knowledge cutoff: 2021-09
Current date and time: ` + DatetimeToken)

// SystemPrompt prepends a templated system message to every request.
type SystemPrompt struct {
	now func() time.Time
}

// NewSystemPrompt creates the plugin with the given clock.
func NewSystemPrompt(now func() time.Time) *SystemPrompt {
	return &SystemPrompt{now: now}
}

// Describe contributes the chat-scoped systemPrompt option.
func (p *SystemPrompt) Describe() chattypes.PluginDescription {
	return chattypes.PluginDescription{
		ID:      SystemPromptID,
		Name:    "System Prompt",
		Version: "1.0.0",
		Options: []chattypes.OptionDescriptor{
			{
				OptionID:      "systemPrompt",
				DefaultValue:  DefaultSystemPrompt,
				Scope:         chattypes.ScopeChat,
				DisplayTarget: chattypes.DisplayQuickSettings,
				Resettable:    true,
				QuickLabel:    "System Prompt",
				RenderProps: chattypes.RenderProps{
					Type:  chattypes.ControlTextarea,
					Label: "System Prompt",
					Description: "The System Prompt is an invisible message inserted at the start of the chat. " +
						"It tells the assistant about itself and how it should respond. " +
						"The " + DatetimeToken + " tag is replaced by the current date and time.",
				},
			},
		},
	}
}

// PreprocessModelInput renders the template and prepends it as a system message.
func (p *SystemPrompt) PreprocessModelInput(_ context.Context, opts chattypes.OptionReader, in chattypes.ModelInput) (chattypes.ModelInput, error) {
	template, err := chattypes.ReadString(opts, "systemPrompt")
	if err != nil {
		return in, err
	}
	if strings.TrimSpace(template) == "" {
		template = DefaultSystemPrompt
	}

	content := strings.ReplaceAll(template, DatetimeToken, p.now().Format(TimestampLayout))
	messages := make([]chattypes.Message, 0, len(in.Messages)+1)
	messages = append(messages, chattypes.Message{Role: chattypes.RoleSystem, Content: content})
	messages = append(messages, in.Messages...)

	return chattypes.ModelInput{Messages: messages, Parameters: in.Parameters}, nil
}
