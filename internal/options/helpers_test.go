package options

import (
	"context"
	"sync"

	"elicate/pkg/chattypes"
)

// memoryKV is a minimal KeyValueStore used by the package tests.
type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
	sets   []string
	getErr error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	m.sets = append(m.sets, key+"="+value)
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memoryKV) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

func testGroup() chattypes.OptionGroup {
	return chattypes.OptionGroup{
		ID: "chat",
		Options: []chattypes.OptionDescriptor{
			{OptionID: "prompt", DefaultValue: "default prompt", Scope: chattypes.ScopeChat, Resettable: true},
			{OptionID: "model", DefaultValue: "gpt-4o-mini", Scope: chattypes.ScopeUser},
			{OptionID: "endpoint", DefaultValue: "https://api.openai.com", Scope: chattypes.ScopeGlobal, DisplayTarget: chattypes.DisplayHidden},
			{OptionID: "temperature", DefaultValue: 0.7, Scope: chattypes.ScopeChat},
			{OptionID: "stream", DefaultValue: true, Scope: chattypes.ScopeUser, DisplayTarget: chattypes.DisplayQuickSettings},
		},
	}
}

func newTestStore(kv KeyValueStore) (*Registry, *Store) {
	reg := NewRegistry()
	if err := reg.RegisterGroup(testGroup()); err != nil {
		panic(err)
	}
	return reg, NewStore(reg, kv)
}

// gatedKV blocks Get of one key until release is closed. entered is closed
// when that Get starts.
type gatedKV struct {
	*memoryKV
	key     string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedKV(key string) *gatedKV {
	return &gatedKV{
		memoryKV: newMemoryKV(),
		key:      key,
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (g *gatedKV) Get(ctx context.Context, key string) (string, bool, error) {
	if key == g.key {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.memoryKV.Get(ctx, key)
}

// stalledKV blocks every Set until release is closed.
type stalledKV struct {
	*memoryKV
	release chan struct{}
}

func newStalledKV() *stalledKV {
	return &stalledKV{memoryKV: newMemoryKV(), release: make(chan struct{})}
}

func (s *stalledKV) Set(ctx context.Context, key, value string) error {
	<-s.release
	return s.memoryKV.Set(ctx, key, value)
}
