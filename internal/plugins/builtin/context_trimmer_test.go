package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elicate/internal/plugins"
	"elicate/pkg/chattypes"
)

func conversation() []chattypes.Message {
	return []chattypes.Message{
		{Role: chattypes.RoleSystem, Content: "s"},
		{Role: chattypes.RoleUser, Content: "aaaa"},
		{Role: chattypes.RoleAssistant, Content: "bb"},
		{Role: chattypes.RoleUser, Content: "c"},
	}
}

func contents(msgs []chattypes.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

func TestContextTrimmer(t *testing.T) {
	tests := []struct {
		name           string
		maxMessages    int
		maxTokens      int
		preserveSystem bool
		expected       []string
	}{
		{"no limits", 0, 0, true, []string{"s", "aaaa", "bb", "c"}},
		{"message limit keeps system", 2, 0, true, []string{"s", "bb", "c"}},
		{"message limit drops system", 1, 0, false, []string{"c"}},
		{"message limit not reached", 5, 0, true, []string{"s", "aaaa", "bb", "c"}},
		// overhead 4 per message: s=5 aaaa=8 bb=6 c=5
		{"token limit", 0, 12, true, []string{"s", "c"}},
		{"token limit drops one", 0, 18, true, []string{"s", "bb", "c"}},
		{"newest message always kept", 0, 1, true, []string{"s", "c"}},
		{"both limits", 3, 18, true, []string{"s", "bb", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewContextTrimmer(charCounter{})
			facade, store := newPluginStore(t, p)
			require.NoError(t, store.SetOverride(ContextTrimmerID, "maxMessages", tt.maxMessages, chattypes.LayerChat, "c1"))
			require.NoError(t, store.SetOverride(ContextTrimmerID, "maxTokens", tt.maxTokens, chattypes.LayerChat, "c1"))
			require.NoError(t, store.SetOverride(ContextTrimmerID, "preserveSystemPrompt", tt.preserveSystem, chattypes.LayerUser, ""))

			in := chattypes.ModelInput{Messages: conversation(), Parameters: chattypes.Parameters{}}
			out, err := p.PreprocessModelInput(context.Background(), facade.ReaderFor(ContextTrimmerID, "c1"), in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, contents(out.Messages))
			assert.Equal(t, contents(conversation()), contents(in.Messages), "input slice untouched")
		})
	}
}

func TestRegister(t *testing.T) {
	catalog := plugins.NewCatalog()
	require.NoError(t, Register(catalog, Deps{}))
	assert.Equal(t, DefaultEnabled, catalog.IDs())

	for _, id := range DefaultEnabled {
		factory, ok := catalog.Factory(id)
		require.True(t, ok)
		assert.Equal(t, id, factory().Describe().ID)
	}
	assert.Error(t, Register(catalog, Deps{}), "ids are unique")
}
