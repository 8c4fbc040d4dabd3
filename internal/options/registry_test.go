package options

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elicate/pkg/chattypes"
)

func keys(reg *Registry, filter Filter) []string {
	var out []string
	for d := range reg.ListOptions(filter) {
		out = append(out, d.Key())
	}
	return out
}

func TestRegistry_RegisterGroup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterGroup(testGroup()))

	d, ok := reg.Lookup("chat", "prompt")
	require.True(t, ok)
	assert.Equal(t, "chat", d.GroupID)
	assert.Equal(t, chattypes.DisplaySettingsScreen, d.DisplayTarget, "empty display target defaults to the settings screen")
	assert.True(t, reg.HasGroup("chat"))

	_, ok = reg.Lookup("chat", "missing")
	assert.False(t, ok)
}

func TestRegistry_RegisterGroup_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		group chattypes.OptionGroup
	}{
		{name: "empty group id", group: chattypes.OptionGroup{Options: []chattypes.OptionDescriptor{{OptionID: "a"}}}},
		{name: "empty option id", group: chattypes.OptionGroup{ID: "g", Options: []chattypes.OptionDescriptor{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewRegistry().RegisterGroup(tt.group))
		})
	}
}

func TestRegistry_DuplicateOption(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterGroup(testGroup()))

	store := NewStore(reg, nil)
	require.NoError(t, store.SetOverride("chat", "model", "gpt-4o", chattypes.LayerUser, ""))

	// A second group claiming the same id overlaps on chat.model.
	err := reg.RegisterGroup(chattypes.OptionGroup{
		ID:    "chat",
		Owner: "rogue",
		Options: []chattypes.OptionDescriptor{
			{OptionID: "fresh", DefaultValue: 1},
			{OptionID: "model", DefaultValue: "other"},
		},
	})
	var dup *chattypes.DuplicateOptionError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "chat.model", dup.Key)
	_, ok := reg.Lookup("chat", "fresh")
	assert.False(t, ok, "failed registration must not add any option")

	// Colliding keys inside one group.
	err = reg.RegisterGroup(chattypes.OptionGroup{
		ID: "extra",
		Options: []chattypes.OptionDescriptor{
			{OptionID: "a", DefaultValue: 1},
			{OptionID: "a", DefaultValue: 2},
		},
	})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "extra.a", dup.Key)
	assert.False(t, reg.HasGroup("extra"), "failed registration must not leave a partial group")

	// The registry still resolves everything registered before.
	resolved, err := store.Resolve("chat", "model", "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resolved.Value)
	resolved, err = store.Resolve("chat", "prompt", "")
	require.NoError(t, err)
	assert.Equal(t, "default prompt", resolved.Value)
	assert.Len(t, keys(reg, Filter{}), len(testGroup().Options))
}

func TestRegistry_SameIDWithoutOverlap(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterGroup(chattypes.OptionGroup{
		ID:      "a",
		Options: []chattypes.OptionDescriptor{{OptionID: "x", DefaultValue: "1"}},
	}))

	err := reg.RegisterGroup(chattypes.OptionGroup{
		ID:      "a",
		Options: []chattypes.OptionDescriptor{{OptionID: "y", DefaultValue: "1"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Equal(t, []string{"a.x"}, keys(reg, Filter{}))
}

func TestRegistry_ListOptionsOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterGroup(chattypes.OptionGroup{
		ID:      "openai",
		Options: []chattypes.OptionDescriptor{{OptionID: "apiKey", DefaultValue: ""}},
	}))
	require.NoError(t, reg.RegisterGroup(chattypes.OptionGroup{
		ID:      "system-prompt",
		Owner:   "system-prompt",
		Options: []chattypes.OptionDescriptor{{OptionID: "systemPrompt", DefaultValue: ""}},
	}))
	// Built-in groups registered later still list before plugin groups.
	require.NoError(t, reg.RegisterGroup(chattypes.OptionGroup{
		ID: "input",
		Options: []chattypes.OptionDescriptor{
			{OptionID: "submit-on-enter", DefaultValue: true, DisplayTarget: chattypes.DisplayQuickSettings},
		},
	}))
	require.NoError(t, reg.RegisterGroup(chattypes.OptionGroup{
		ID:      "context-trimmer",
		Owner:   "context-trimmer",
		Options: []chattypes.OptionDescriptor{{OptionID: "maxMessages", DefaultValue: 0}},
	}))

	want := []string{"openai.apiKey", "input.submit-on-enter", "system-prompt.systemPrompt", "context-trimmer.maxMessages"}
	assert.Equal(t, want, keys(reg, Filter{}))
	assert.Equal(t, want, keys(reg, Filter{}), "the sequence is restartable")
	assert.Equal(t, []string{"input.submit-on-enter"}, keys(reg, Filter{DisplayTarget: chattypes.DisplayQuickSettings}))
	assert.Equal(t, []string{"system-prompt.systemPrompt"}, keys(reg, Filter{GroupID: "system-prompt"}))

	groups := reg.Groups(Filter{DisplayTarget: chattypes.DisplayQuickSettings})
	require.Len(t, groups, 1)
	assert.Equal(t, "input", groups[0].ID)
}

func TestRegistry_ListOptionsEarlyStop(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterGroup(testGroup()))

	var seen []string
	for d := range reg.ListOptions(Filter{}) {
		seen = append(seen, d.OptionID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"prompt", "model"}, seen)
}

func TestRegistry_UnregisterGroup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterGroup(testGroup()))
	require.NoError(t, reg.RegisterGroup(chattypes.OptionGroup{
		ID:      "plugin",
		Owner:   "plugin",
		Options: []chattypes.OptionDescriptor{{OptionID: "x", DefaultValue: "1"}},
	}))

	reg.UnregisterGroup("plugin")
	reg.UnregisterGroup("plugin")
	reg.UnregisterGroup("never-registered")

	assert.False(t, reg.HasGroup("plugin"))
	assert.False(t, slices.Contains(keys(reg, Filter{}), "plugin.x"))

	// The key can be registered again once the group is gone.
	require.NoError(t, reg.RegisterGroup(chattypes.OptionGroup{
		ID:      "plugin",
		Owner:   "plugin",
		Options: []chattypes.OptionDescriptor{{OptionID: "x", DefaultValue: "2"}},
	}))
}
