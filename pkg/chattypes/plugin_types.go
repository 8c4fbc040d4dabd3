// Package chattypes defines the shared types for the Elicate chat core.
// This file contains the message pipeline types and the plugin contract.
package chattypes

import (
	"context"
	"fmt"
)

// Role identifies the author of a pipeline message.
type Role string

// Message roles exchanged with the model API.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one entry of the ordered sequence sent to the model API.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Parameters holds model-call parameters such as temperature or max_tokens.
type Parameters map[string]any

// Clone returns a shallow copy of the parameter map. Slice and map values are copied one level deep.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		switch tv := v.(type) {
		case []string:
			out[k] = append([]string(nil), tv...)
		case []any:
			out[k] = append([]any(nil), tv...)
		case map[string]any:
			m := make(map[string]any, len(tv))
			for mk, mv := range tv {
				m[mk] = mv
			}
			out[k] = m
		default:
			out[k] = v
		}
	}
	return out
}

// CloneMessages returns an independent copy of msgs.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// ModelInput is the value threaded through preprocessing hooks.
type ModelInput struct {
	Messages   []Message
	Parameters Parameters
}

// Validate checks that a hook produced a well-formed input.
func (in ModelInput) Validate() error {
	if in.Parameters == nil {
		return fmt.Errorf("parameters must not be nil")
	}
	for i, m := range in.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d has invalid role %q", i, m.Role)
		}
	}
	return nil
}

// ModelOutput is the value threaded through postprocessing hooks.
type ModelOutput struct {
	Content    string
	Parameters Parameters
}

// PluginDescription is the identity of a plugin and the options it contributes.
type PluginDescription struct {
	ID             string
	Name           string
	Version        string
	MinHostVersion string // Semver constraint on the host, e.g. ">= 0.1.0"; empty means any
	Options        []OptionDescriptor
}

// Group builds the option group a plugin contributes, keyed by the plugin id.
func (d PluginDescription) Group() OptionGroup {
	opts := make([]OptionDescriptor, len(d.Options))
	for i, o := range d.Options {
		o.GroupID = d.ID
		opts[i] = o
	}
	return OptionGroup{
		ID:      d.ID,
		Title:   d.Name,
		Owner:   d.ID,
		Options: opts,
	}
}

// Plugin is the contract every plugin implements.
type Plugin interface {
	Describe() PluginDescription
}

// Preprocessor is implemented by plugins that transform the model input before dispatch.
// Implementations must be pure functions of their arguments and must not perform network I/O.
type Preprocessor interface {
	PreprocessModelInput(ctx context.Context, opts OptionReader, in ModelInput) (ModelInput, error)
}

// Postprocessor is implemented by plugins that transform the model response.
type Postprocessor interface {
	PostprocessModelOutput(ctx context.Context, opts OptionReader, out ModelOutput) (ModelOutput, error)
}

// OptionReader resolves option values for one option group and one chat.
type OptionReader interface {
	Resolve(optionID string) (ResolvedOption, error)
}
