package options

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elicate/pkg/chattypes"
)

func TestPrecedence_Applicable(t *testing.T) {
	tests := []struct {
		name   string
		scope  chattypes.Scope
		chatID string
		want   []chattypes.Layer
	}{
		{"chat scope with chat", chattypes.ScopeChat, "c1", []chattypes.Layer{chattypes.LayerChat, chattypes.LayerUser, chattypes.LayerDefault}},
		{"chat scope without chat", chattypes.ScopeChat, "", []chattypes.Layer{chattypes.LayerUser, chattypes.LayerDefault}},
		{"user scope with chat", chattypes.ScopeUser, "c1", []chattypes.Layer{chattypes.LayerUser, chattypes.LayerDefault}},
		{"global scope", chattypes.ScopeGlobal, "c1", []chattypes.Layer{chattypes.LayerDefault}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Precedence.Applicable(tt.scope, tt.chatID))
		})
	}
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "user:openai.apiKey", StorageKey(chattypes.LayerUser, "openai", "apiKey", "ignored"))
	assert.Equal(t, "chat:system-prompt.systemPrompt:c1", StorageKey(chattypes.LayerChat, "system-prompt", "systemPrompt", "c1"))
}

func TestStore_ResolveDefaults(t *testing.T) {
	_, store := newTestStore(nil)

	resolved, err := store.Resolve("chat", "prompt", "c1")
	require.NoError(t, err)
	assert.Equal(t, chattypes.ResolvedOption{Value: "default prompt", Source: chattypes.LayerDefault}, resolved)

	_, err = store.Resolve("chat", "nope", "")
	var notFound *chattypes.OptionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "chat.nope", notFound.Key)
}

func TestStore_SetAndClearOverride(t *testing.T) {
	tests := []struct {
		name     string
		option   string
		value    any
		layer    chattypes.Layer
		chatID   string
		fallback chattypes.Layer
	}{
		{"chat layer", "prompt", "chat prompt", chattypes.LayerChat, "c1", chattypes.LayerUser},
		{"user layer on chat option", "prompt", "user prompt", chattypes.LayerUser, "", chattypes.LayerDefault},
		{"user layer", "model", "gpt-4o", chattypes.LayerUser, "", chattypes.LayerDefault},
		{"bool option", "stream", false, chattypes.LayerUser, "", chattypes.LayerDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, store := newTestStore(nil)
			if tt.fallback == chattypes.LayerUser {
				require.NoError(t, store.SetOverride("chat", tt.option, "user value", chattypes.LayerUser, ""))
			}

			require.NoError(t, store.SetOverride("chat", tt.option, tt.value, tt.layer, tt.chatID))
			resolved, err := store.Resolve("chat", tt.option, tt.chatID)
			require.NoError(t, err)
			assert.Equal(t, tt.value, resolved.Value)
			assert.Equal(t, tt.layer, resolved.Source)

			require.NoError(t, store.ClearOverride("chat", tt.option, tt.layer, tt.chatID))
			first, err := store.Resolve("chat", tt.option, tt.chatID)
			require.NoError(t, err)
			assert.Equal(t, tt.fallback, first.Source)

			require.NoError(t, store.ClearOverride("chat", tt.option, tt.layer, tt.chatID))
			second, err := store.Resolve("chat", tt.option, tt.chatID)
			require.NoError(t, err)
			assert.Equal(t, first, second, "clearing twice yields the same result")
		})
	}
}

func TestStore_ChatOverridesAreIsolated(t *testing.T) {
	_, store := newTestStore(nil)
	require.NoError(t, store.SetOverride("chat", "prompt", "for c1", chattypes.LayerChat, "c1"))

	r1, err := store.Resolve("chat", "prompt", "c1")
	require.NoError(t, err)
	r2, err := store.Resolve("chat", "prompt", "c2")
	require.NoError(t, err)
	r0, err := store.Resolve("chat", "prompt", "")
	require.NoError(t, err)

	assert.Equal(t, "for c1", r1.Value)
	assert.Equal(t, chattypes.LayerDefault, r2.Source)
	assert.Equal(t, chattypes.LayerDefault, r0.Source)
}

func TestStore_GlobalScopeRejectsOverrides(t *testing.T) {
	_, store := newTestStore(nil)
	before, err := store.Resolve("chat", "endpoint", "c1")
	require.NoError(t, err)

	for _, layer := range []chattypes.Layer{chattypes.LayerUser, chattypes.LayerChat} {
		err := store.SetOverride("chat", "endpoint", "http://localhost", layer, "c1")
		var scopeErr *chattypes.InvalidScopeError
		require.ErrorAs(t, err, &scopeErr, "layer %s", layer)
		assert.Equal(t, chattypes.ScopeGlobal, scopeErr.Scope)
		assert.Equal(t, layer, scopeErr.Layer)

		after, err := store.Resolve("chat", "endpoint", "c1")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
}

func TestStore_InvalidLayerWrites(t *testing.T) {
	_, store := newTestStore(nil)

	var scopeErr *chattypes.InvalidScopeError
	assert.ErrorAs(t, store.SetOverride("chat", "model", "x", chattypes.LayerChat, "c1"), &scopeErr, "user-scoped option at chat layer")
	assert.ErrorAs(t, store.SetOverride("chat", "model", "x", chattypes.LayerDefault, ""), &scopeErr, "default layer is read-only")
	assert.Error(t, store.SetOverride("chat", "prompt", "x", chattypes.LayerChat, ""), "chat layer needs a chat id")

	var notFound *chattypes.OptionNotFoundError
	assert.ErrorAs(t, store.SetOverride("ghost", "x", 1, chattypes.LayerUser, ""), &notFound)
	assert.ErrorAs(t, store.ClearOverride("ghost", "x", chattypes.LayerUser, ""), &notFound)
}

func TestStore_CoercesValues(t *testing.T) {
	_, store := newTestStore(nil)

	require.NoError(t, store.SetOverride("chat", "temperature", "0.2", chattypes.LayerUser, ""))
	resolved, err := store.Resolve("chat", "temperature", "")
	require.NoError(t, err)
	assert.Equal(t, 0.2, resolved.Value)

	require.NoError(t, store.SetOverride("chat", "stream", "false", chattypes.LayerUser, ""))
	resolved, err = store.Resolve("chat", "stream", "")
	require.NoError(t, err)
	assert.Equal(t, false, resolved.Value)

	err = store.SetOverride("chat", "stream", "sometimes", chattypes.LayerUser, "")
	var invalid *chattypes.InvalidValueError
	require.ErrorAs(t, err, &invalid)
	resolved, err = store.Resolve("chat", "stream", "")
	require.NoError(t, err)
	assert.Equal(t, false, resolved.Value, "rejected write keeps prior state")
}

func TestStore_NotifiesBeforeReturning(t *testing.T) {
	_, store := newTestStore(nil)

	var observed []any
	unsubscribe := store.Subscribe(func(c chattypes.Change) {
		// A read from inside the notification already sees the write.
		resolved, err := store.Resolve(c.GroupID, c.OptionID, c.ChatID)
		require.NoError(t, err)
		observed = append(observed, resolved.Value)
	})

	require.NoError(t, store.SetOverride("chat", "model", "gpt-4o", chattypes.LayerUser, ""))
	assert.Equal(t, []any{"gpt-4o"}, observed)

	require.NoError(t, store.ClearOverride("chat", "model", chattypes.LayerUser, ""))
	require.NoError(t, store.ClearOverride("chat", "model", chattypes.LayerUser, ""))
	assert.Equal(t, []any{"gpt-4o", "gpt-4o-mini"}, observed, "clearing an absent override does not notify")

	unsubscribe()
	require.NoError(t, store.SetOverride("chat", "model", "o1", chattypes.LayerUser, ""))
	assert.Len(t, observed, 2)
}

func TestStore_ConcurrentWrites(t *testing.T) {
	_, store := newTestStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chatID := "c" + string(rune('a'+i%5))
			assert.NoError(t, store.SetOverride("chat", "temperature", float64(i)/100, chattypes.LayerChat, chatID))
			_, err := store.Resolve("chat", "temperature", chatID)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestStore_PersistsAndHydrates(t *testing.T) {
	kv := newMemoryKV()
	_, store := newTestStore(kv)

	require.NoError(t, store.SetOverride("chat", "prompt", "chat prompt", chattypes.LayerChat, "c1"))
	require.NoError(t, store.SetOverride("chat", "model", "gpt-4o", chattypes.LayerUser, ""))
	require.NoError(t, store.SetOverride("chat", "stream", false, chattypes.LayerUser, ""))
	require.NoError(t, store.ClearOverride("chat", "stream", chattypes.LayerUser, ""))
	require.NoError(t, store.Flush(context.Background()))
	store.Close()

	assert.Equal(t, map[string]string{
		"chat:chat.prompt:c1": `"chat prompt"`,
		"user:chat.model":     `"gpt-4o"`,
	}, kv.snapshot())

	_, restored := newTestStore(kv)
	defer restored.Close()
	require.NoError(t, restored.Hydrate(context.Background(), kv, "c1"))

	resolved, err := restored.Resolve("chat", "prompt", "c1")
	require.NoError(t, err)
	assert.Equal(t, chattypes.ResolvedOption{Value: "chat prompt", Source: chattypes.LayerChat}, resolved)
	resolved, err = restored.Resolve("chat", "model", "")
	require.NoError(t, err)
	assert.Equal(t, chattypes.ResolvedOption{Value: "gpt-4o", Source: chattypes.LayerUser}, resolved)
}

func TestStore_HydrateKeepsConcurrentWrites(t *testing.T) {
	kv := newGatedKV("user:chat.model")
	kv.values["user:chat.model"] = `"old"`
	_, store := newTestStore(kv)
	defer store.Close()

	done := make(chan error, 1)
	go func() { done <- store.Hydrate(context.Background(), kv, "") }()

	<-kv.entered
	require.NoError(t, store.SetOverride("chat", "model", "new", chattypes.LayerUser, ""))
	close(kv.release)
	require.NoError(t, <-done)

	resolved, err := store.Resolve("chat", "model", "")
	require.NoError(t, err)
	assert.Equal(t, chattypes.ResolvedOption{Value: "new", Source: chattypes.LayerUser}, resolved)

	require.NoError(t, store.Flush(context.Background()))
	assert.Equal(t, `"new"`, kv.snapshot()["user:chat.model"])
}

func TestStore_HydrateKeepsConcurrentClears(t *testing.T) {
	kv := newGatedKV("user:chat.model")
	kv.values["user:chat.model"] = `"old"`
	_, store := newTestStore(kv)
	defer store.Close()

	done := make(chan error, 1)
	go func() { done <- store.Hydrate(context.Background(), kv, "") }()

	<-kv.entered
	require.NoError(t, store.ClearOverride("chat", "model", chattypes.LayerUser, ""))
	close(kv.release)
	require.NoError(t, <-done)

	resolved, err := store.Resolve("chat", "model", "")
	require.NoError(t, err)
	assert.Equal(t, chattypes.LayerDefault, resolved.Source)
}

func TestStore_ResolveWithout(t *testing.T) {
	_, store := newTestStore(nil)
	require.NoError(t, store.SetOverride("chat", "prompt", "user prompt", chattypes.LayerUser, ""))
	require.NoError(t, store.SetOverride("chat", "prompt", "chat prompt", chattypes.LayerChat, "c1"))

	tests := []struct {
		name     string
		layer    chattypes.Layer
		expected chattypes.ResolvedOption
	}{
		{"without chat", chattypes.LayerChat, chattypes.ResolvedOption{Value: "user prompt", Source: chattypes.LayerUser}},
		{"without user", chattypes.LayerUser, chattypes.ResolvedOption{Value: "chat prompt", Source: chattypes.LayerChat}},
		{"default is never skipped", chattypes.LayerDefault, chattypes.ResolvedOption{Value: "chat prompt", Source: chattypes.LayerChat}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := store.ResolveWithout("chat", "prompt", "c1", tt.layer)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resolved)
		})
	}

	_, err := store.ResolveWithout("chat", "missing", "c1", chattypes.LayerChat)
	var notFound *chattypes.OptionNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStore_HydrateSkipsBadValues(t *testing.T) {
	kv := newMemoryKV()
	kv.values["user:chat.stream"] = `"not a bool"`
	kv.values["user:chat.model"] = `"gpt-4o"`
	_, store := newTestStore(nil)

	err := store.Hydrate(context.Background(), kv, "")
	var invalid *chattypes.InvalidValueError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "chat.stream", invalid.Key)

	resolved, err := store.Resolve("chat", "model", "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resolved.Value)
}

func TestStore_HydrateGetError(t *testing.T) {
	kv := newMemoryKV()
	kv.getErr = errors.New("backend down")
	_, store := newTestStore(nil)

	err := store.Hydrate(context.Background(), kv, "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestStore_ResolvedValuesAreCopies(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterGroup(chattypes.OptionGroup{
		ID:      "plugins",
		Options: []chattypes.OptionDescriptor{{OptionID: "enabled", DefaultValue: []string{"a"}, Scope: chattypes.ScopeUser}},
	}))
	store := NewStore(reg, nil)

	resolved, err := store.Resolve("plugins", "enabled", "")
	require.NoError(t, err)
	resolved.Value.([]string)[0] = "mutated"

	again, err := store.Resolve("plugins", "enabled", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Value)
}
