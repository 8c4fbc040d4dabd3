// Package builtin provides the plugins shipped with Elicate.
package builtin

import (
	"time"

	"elicate/internal/plugins"
	"elicate/internal/tokens"
	"elicate/pkg/chattypes"
)

// Deps are the host collaborators built-in plugins are constructed with.
type Deps struct {
	Now     func() time.Time
	Counter tokens.Counter
}

// DefaultEnabled lists the built-in plugins enabled on a fresh install, in pipeline order.
var DefaultEnabled = []string{SystemPromptID, ContextTrimmerID}

// Register adds every built-in plugin to catalog.
func Register(catalog *plugins.Catalog, deps Deps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Counter == nil {
		deps.Counter = tokens.Estimator{}
	}

	if err := catalog.Add(SystemPromptID, func() chattypes.Plugin {
		return NewSystemPrompt(deps.Now)
	}); err != nil {
		return err
	}
	return catalog.Add(ContextTrimmerID, func() chattypes.Plugin {
		return NewContextTrimmer(deps.Counter)
	})
}
