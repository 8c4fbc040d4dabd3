// Package chattypes defines the shared types for the Elicate chat core.
// This file contains the option schema types: scopes, layers, display targets,
// render metadata, descriptors, groups, and resolved values.
package chattypes

import (
	"fmt"
	"strings"
)

// Scope is the narrowest layer at which an option may be overridden.
type Scope int

const (
	// ScopeGlobal options are never overridden; they always resolve to their default.
	ScopeGlobal Scope = iota
	// ScopeUser options accept user-level overrides.
	ScopeUser
	// ScopeChat options accept user-level and chat-level overrides.
	ScopeChat
)

// String returns the lowercase scope name.
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeUser:
		return "user"
	case ScopeChat:
		return "chat"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// Permits reports whether an override at layer l is allowed by this scope.
// The default layer is always permitted for reads.
func (s Scope) Permits(l Layer) bool {
	switch l {
	case LayerDefault:
		return true
	case LayerUser:
		return s >= ScopeUser
	case LayerChat:
		return s >= ScopeChat
	default:
		return false
	}
}

// ParseScope converts a scope name into a Scope.
func ParseScope(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "global":
		return ScopeGlobal, nil
	case "user":
		return ScopeUser, nil
	case "chat":
		return ScopeChat, nil
	default:
		return ScopeGlobal, fmt.Errorf("unknown scope %q", name)
	}
}

// Layer is one of the precedence tiers consulted during resolution.
type Layer int

const (
	// LayerDefault is the descriptor's built-in default value.
	LayerDefault Layer = iota
	// LayerUser is a persisted user-wide override.
	LayerUser
	// LayerChat is a persisted override for one chat.
	LayerChat
)

// String returns the lowercase layer name. It is also the storage key prefix.
func (l Layer) String() string {
	switch l {
	case LayerDefault:
		return "default"
	case LayerUser:
		return "user"
	case LayerChat:
		return "chat"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// ParseLayer converts a layer name into a Layer.
func ParseLayer(name string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "default":
		return LayerDefault, nil
	case "user":
		return LayerUser, nil
	case "chat":
		return LayerChat, nil
	default:
		return LayerDefault, fmt.Errorf("unknown layer %q", name)
	}
}

// DisplayTarget describes where an option may be surfaced by the UI.
type DisplayTarget string

// Display targets understood by the settings collaborators.
const (
	DisplaySettingsScreen DisplayTarget = "settings-screen"
	DisplayQuickSettings  DisplayTarget = "quick-settings"
	DisplayHidden         DisplayTarget = "hidden"
)

// ControlType is the form control a settings UI should render for an option.
type ControlType string

// Supported control types.
const (
	ControlText     ControlType = "text"
	ControlPassword ControlType = "password"
	ControlTextarea ControlType = "textarea"
	ControlToggle   ControlType = "toggle"
	ControlNumber   ControlType = "number"
	ControlSelect   ControlType = "select"
)

// RenderProps is the declarative configuration a settings UI uses to build a form field.
type RenderProps struct {
	Type        ControlType `json:"type" yaml:"type"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder string      `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Choices     []string    `json:"choices,omitempty" yaml:"choices,omitempty"`
	Disabled    bool        `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// OptionDescriptor declares the identity and behavior of one configurable value.
type OptionDescriptor struct {
	GroupID       string        `json:"group_id"`
	OptionID      string        `json:"option_id"`
	DefaultValue  any           `json:"default_value"`
	Scope         Scope         `json:"scope"`
	DisplayTarget DisplayTarget `json:"display_target"`
	Resettable    bool          `json:"resettable"`
	RenderProps   RenderProps   `json:"render_props"`
	QuickLabel    string        `json:"quick_label,omitempty"` // Compact label used by quick settings
}

// Key returns the globally unique "groupId.optionId" key.
func (d OptionDescriptor) Key() string {
	return OptionKey(d.GroupID, d.OptionID)
}

// OptionKey joins a group id and an option id into a registry key.
func OptionKey(groupID, optionID string) string {
	return groupID + "." + optionID
}

// OptionGroup is a named collection of option descriptors.
// Owner is empty for built-in groups and holds the plugin id for plugin groups.
type OptionGroup struct {
	ID              string             `json:"id"`
	Title           string             `json:"title,omitempty"`
	Owner           string             `json:"owner,omitempty"`
	SeparateSection bool               `json:"separate_section,omitempty"`
	Options         []OptionDescriptor `json:"options"`
}

// IsBuiltin reports whether the group is owned by the host rather than a plugin.
func (g OptionGroup) IsBuiltin() bool {
	return g.Owner == ""
}

// ResolvedOption is the effective value of an option after merging all applicable layers.
type ResolvedOption struct {
	Value  any   `json:"value"`
	Source Layer `json:"source"`
}

// Change describes one mutation of the override layers.
type Change struct {
	GroupID  string
	OptionID string
	Layer    Layer
	ChatID   string
	Cleared  bool
}

// Key returns the "groupId.optionId" key of the changed option.
func (c Change) Key() string {
	return OptionKey(c.GroupID, c.OptionID)
}
