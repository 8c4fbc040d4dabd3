package builtin

import (
	"context"

	"elicate/internal/tokens"
	"elicate/pkg/chattypes"
)

// ContextTrimmerID is the plugin id and option group of the context trimmer.
const ContextTrimmerID = "context-trimmer"

// ContextTrimmer drops the oldest messages so a request stays within a
// message count and token budget. The newest message is always kept.
type ContextTrimmer struct {
	counter tokens.Counter
}

// NewContextTrimmer creates the plugin with the given token counter.
func NewContextTrimmer(counter tokens.Counter) *ContextTrimmer {
	return &ContextTrimmer{counter: counter}
}

// Describe contributes the trimming limits.
func (p *ContextTrimmer) Describe() chattypes.PluginDescription {
	return chattypes.PluginDescription{
		ID:             ContextTrimmerID,
		Name:           "Context Trimmer",
		Version:        "1.0.0",
		MinHostVersion: ">= 0.1.0",
		Options: []chattypes.OptionDescriptor{
			{
				OptionID:     "maxMessages",
				DefaultValue: 0,
				Scope:        chattypes.ScopeChat,
				Resettable:   true,
				RenderProps: chattypes.RenderProps{
					Type:        chattypes.ControlNumber,
					Label:       "Maximum messages",
					Placeholder: "0 (unlimited)",
					Description: "Only the most recent messages are sent to the model. System messages do not count.",
				},
			},
			{
				OptionID:     "maxTokens",
				DefaultValue: 0,
				Scope:        chattypes.ScopeChat,
				Resettable:   true,
				RenderProps: chattypes.RenderProps{
					Type:        chattypes.ControlNumber,
					Label:       "Maximum context tokens",
					Placeholder: "0 (unlimited)",
				},
			},
			{
				OptionID:      "preserveSystemPrompt",
				DefaultValue:  true,
				Scope:         chattypes.ScopeUser,
				DisplayTarget: chattypes.DisplayHidden,
				RenderProps: chattypes.RenderProps{
					Type:  chattypes.ControlToggle,
					Label: "Never trim system messages",
				},
			},
		},
	}
}

// PreprocessModelInput trims in.Messages to the configured limits.
func (p *ContextTrimmer) PreprocessModelInput(_ context.Context, opts chattypes.OptionReader, in chattypes.ModelInput) (chattypes.ModelInput, error) {
	maxMessages, err := chattypes.ReadInt(opts, "maxMessages")
	if err != nil {
		return in, err
	}
	maxTokens, err := chattypes.ReadInt(opts, "maxTokens")
	if err != nil {
		return in, err
	}
	preserveSystem, err := chattypes.ReadBool(opts, "preserveSystemPrompt")
	if err != nil {
		return in, err
	}
	if maxMessages <= 0 && maxTokens <= 0 {
		return in, nil
	}

	keep := make([]bool, len(in.Messages))
	var droppable []int
	for i, m := range in.Messages {
		keep[i] = true
		if preserveSystem && m.Role == chattypes.RoleSystem {
			continue
		}
		droppable = append(droppable, i)
	}

	total := 0
	if maxTokens > 0 {
		total = tokens.CountMessages(p.counter, in.Messages)
	}
	over := func(remaining int) bool {
		if maxMessages > 0 && remaining > maxMessages {
			return true
		}
		return maxTokens > 0 && total > maxTokens
	}

	for len(droppable) > 1 && over(len(droppable)) {
		i := droppable[0]
		droppable = droppable[1:]
		keep[i] = false
		if maxTokens > 0 {
			total -= tokens.MessageOverhead + p.counter.Count(in.Messages[i].Content)
		}
	}

	messages := make([]chattypes.Message, 0, len(in.Messages))
	for i, m := range in.Messages {
		if keep[i] {
			messages = append(messages, m)
		}
	}
	return chattypes.ModelInput{Messages: messages, Parameters: in.Parameters}, nil
}
