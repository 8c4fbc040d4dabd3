package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elicate/internal/options"
	"elicate/pkg/chattypes"
)

// exerciseBackend runs the KeyValueStore contract against kv.
func exerciseBackend(t *testing.T, kv Backend) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "user:chat.model")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "user:chat.model", `"gpt-4o"`))
	v, ok, err := kv.Get(ctx, "user:chat.model")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"gpt-4o"`, v)

	require.NoError(t, kv.Set(ctx, "user:chat.model", `"o3"`))
	v, _, err = kv.Get(ctx, "user:chat.model")
	require.NoError(t, err)
	assert.Equal(t, `"o3"`, v)

	require.NoError(t, kv.Delete(ctx, "user:chat.model"))
	_, ok, err = kv.Get(ctx, "user:chat.model")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Delete(ctx, "never-set"))
}

func TestMemoryStore(t *testing.T) {
	kv := NewMemoryStore()
	defer kv.Close()
	exerciseBackend(t, kv)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "overrides.yaml")
	kv, err := NewFileStore(path)
	require.NoError(t, err)
	exerciseBackend(t, kv)

	require.NoError(t, kv.Set(context.Background(), "chat:system-prompt.systemPrompt:c1", `"Be brief."`))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(context.Background(), "chat:system-prompt.systemPrompt:c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"Be brief."`, v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestFileStore_Errors(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))
	_, err = NewFileStore(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	kv, err := NewRedisStore(mr.Addr())
	require.NoError(t, err)
	defer kv.Close()
	exerciseBackend(t, kv)

	require.NoError(t, kv.Set(context.Background(), "user:input.submit-on-enter", "true"))
	got, err := mr.Get(DefaultRedisPrefix + "user:input.submit-on-enter")
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(addr)
	assert.Error(t, err)
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		url     string
		addrs   int
		master  string
		db      int
		tls     bool
		wantErr bool
	}{
		{url: "localhost:6379", addrs: 1},
		{url: "redis://:pass@localhost:6379/1", addrs: 1, db: 1},
		{url: "redis://host1:6379,host2:6379/0", addrs: 2},
		{url: "rediss://localhost:6379?db=3", addrs: 1, db: 3, tls: true},
		{url: "redis-sentinel://s1:26379,s2:26379/mymaster?db=2", addrs: 2, master: "mymaster", db: 2},
		{url: "redis://localhost:6379/abc", wantErr: true},
		{url: "http://localhost:6379", wantErr: true},
		{url: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			opts, err := parseRedisURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, opts.Addrs, tt.addrs)
			assert.Equal(t, tt.master, opts.MasterName)
			assert.Equal(t, tt.db, opts.DB)
			assert.Equal(t, tt.tls, opts.TLSConfig != nil)
		})
	}
}

func TestOpen(t *testing.T) {
	kv, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, kv)

	kv, err = Open(KindFile, filepath.Join(t.TempDir(), "o.yaml"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, kv)

	_, err = Open("etcd", "")
	assert.Error(t, err)
}

// Overrides written through a store survive into a fresh store over the same
// backend.
func TestBackendRoundTripThroughStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	kv, err := NewFileStore(path)
	require.NoError(t, err)

	group := chattypes.OptionGroup{
		ID: "parameters",
		Options: []chattypes.OptionDescriptor{
			{OptionID: "temperature", DefaultValue: 0.7, Scope: chattypes.ScopeChat},
		},
	}
	reg := options.NewRegistry()
	require.NoError(t, reg.RegisterGroup(group))

	store := options.NewStore(reg, kv)
	require.NoError(t, store.SetOverride("parameters", "temperature", 0.2, chattypes.LayerChat, "c1"))
	store.Close()

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	fresh := options.NewStore(reg, nil)
	require.NoError(t, fresh.Hydrate(context.Background(), reopened, "c1"))

	got, err := fresh.Resolve("parameters", "temperature", "c1")
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.Value)
	assert.Equal(t, chattypes.LayerChat, got.Source)
}
