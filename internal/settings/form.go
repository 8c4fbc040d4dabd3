// Package settings builds the settings screen and quick-settings models from
// the option registry and renders them for the terminal.
package settings

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"elicate/internal/options"
	"elicate/pkg/chattypes"
)

// Field is one rendered option.
type Field struct {
	GroupID     string
	OptionID    string
	Control     chattypes.ControlType
	Label       string
	Placeholder string
	Help        string
	Choices     []string
	Disabled    bool
	Value       any
	Default     any
	Source      chattypes.Layer
	Scope       chattypes.Scope
	Resettable  bool
}

// Key returns "group.option".
func (f Field) Key() string {
	return chattypes.OptionKey(f.GroupID, f.OptionID)
}

// Masked reports whether the value must not be shown in clear text.
func (f Field) Masked() bool {
	return f.Control == chattypes.ControlPassword
}

// Overridden reports whether a user or chat layer supplies the value.
func (f Field) Overridden() bool {
	return f.Source != chattypes.LayerDefault
}

// Section groups the fields of one option group.
type Section struct {
	ID       string
	Title    string
	Owner    string
	Separate bool
	Fields   []Field
}

// Form is the settings screen model for one chat.
type Form struct {
	ChatID   string
	Sections []Section
}

// Field looks up a field by key.
func (f Form) Field(key string) (Field, bool) {
	for _, s := range f.Sections {
		for _, fl := range s.Fields {
			if fl.Key() == key {
				return fl, true
			}
		}
	}
	return Field{}, false
}

// BuildForm resolves every option matching filter for the facade's active
// chat. Hidden options are left out unless filter asks for them.
func BuildForm(reg *options.Registry, facade *options.Facade, filter options.Filter) (Form, error) {
	form := Form{ChatID: facade.ActiveChat()}
	for _, g := range reg.Groups(filter) {
		section := Section{ID: g.ID, Title: g.Title, Owner: g.Owner, Separate: g.SeparateSection}
		if section.Title == "" {
			section.Title = g.ID
		}
		for _, d := range g.Options {
			if d.DisplayTarget == chattypes.DisplayHidden && filter.DisplayTarget != chattypes.DisplayHidden {
				continue
			}
			resolved, err := facade.Get(d.GroupID, d.OptionID)
			if err != nil {
				return Form{}, fmt.Errorf("failed to resolve %s: %w", d.Key(), err)
			}
			section.Fields = append(section.Fields, newField(d, resolved))
		}
		if len(section.Fields) > 0 {
			form.Sections = append(form.Sections, section)
		}
	}
	return form, nil
}

func newField(d chattypes.OptionDescriptor, resolved chattypes.ResolvedOption) Field {
	label := d.RenderProps.Label
	if label == "" {
		label = d.OptionID
	}
	control := d.RenderProps.Type
	if control == "" {
		control = inferControl(d.DefaultValue)
	}
	return Field{
		GroupID:     d.GroupID,
		OptionID:    d.OptionID,
		Control:     control,
		Label:       label,
		Placeholder: d.RenderProps.Placeholder,
		Help:        d.RenderProps.Description,
		Choices:     d.RenderProps.Choices,
		Disabled:    d.RenderProps.Disabled,
		Value:       resolved.Value,
		Default:     d.DefaultValue,
		Source:      resolved.Source,
		Scope:       d.Scope,
		Resettable:  d.Resettable,
	}
}

func inferControl(def any) chattypes.ControlType {
	switch def.(type) {
	case bool:
		return chattypes.ControlToggle
	case int, int64, float32, float64:
		return chattypes.ControlNumber
	default:
		return chattypes.ControlText
	}
}

// QuickItem is a compact quick-settings entry.
type QuickItem struct {
	Key    string
	Label  string
	Toggle bool
	Value  any
	Source chattypes.Layer
}

// QuickSettings lists the options marked for the quick-settings panel.
func QuickSettings(reg *options.Registry, facade *options.Facade) ([]QuickItem, error) {
	var items []QuickItem
	for d := range reg.ListOptions(options.Filter{DisplayTarget: chattypes.DisplayQuickSettings}) {
		resolved, err := facade.Get(d.GroupID, d.OptionID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", d.Key(), err)
		}
		label := d.QuickLabel
		if label == "" {
			label = d.RenderProps.Label
		}
		_, isBool := d.DefaultValue.(bool)
		items = append(items, QuickItem{
			Key:    d.Key(),
			Label:  label,
			Toggle: isBool || d.RenderProps.Type == chattypes.ControlToggle,
			Value:  resolved.Value,
			Source: resolved.Source,
		})
	}
	return items, nil
}

// ParseInput converts text typed by a user into a value for d. Select
// controls only accept their listed choices and list options split on commas;
// everything else is left for the store to coerce.
func ParseInput(d chattypes.OptionDescriptor, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if d.RenderProps.Type == chattypes.ControlSelect && len(d.RenderProps.Choices) > 0 {
		if !slices.Contains(d.RenderProps.Choices, raw) {
			return nil, &chattypes.InvalidValueError{
				Key:   d.Key(),
				Cause: fmt.Errorf("%q is not one of %s", raw, strings.Join(d.RenderProps.Choices, ", ")),
			}
		}
		return raw, nil
	}

	switch d.DefaultValue.(type) {
	case []string:
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	case bool:
		v, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, &chattypes.InvalidValueError{Key: d.Key(), Cause: err}
		}
		return v, nil
	default:
		return raw, nil
	}
}
