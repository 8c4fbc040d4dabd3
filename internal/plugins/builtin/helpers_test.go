package builtin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"elicate/internal/options"
	"elicate/pkg/chattypes"
)

// fixedClock returns 2024-03-01 09:30:00 local time.
func fixedClock() time.Time {
	return time.Date(2024, time.March, 1, 9, 30, 0, 0, time.Local)
}

// charCounter counts one token per byte.
type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

// newPluginStore registers the plugin's options and returns a store over them.
func newPluginStore(t *testing.T, p chattypes.Plugin) (*options.Facade, *options.Store) {
	t.Helper()
	reg := options.NewRegistry()
	require.NoError(t, reg.RegisterGroup(p.Describe().Group()))
	store := options.NewStore(reg, nil)
	facade := options.NewFacade(store)
	t.Cleanup(facade.Close)
	return facade, store
}
