// Package plugins implements the plugin registry and the pipeline executor that
// runs enabled plugins' hooks around every outgoing model request.
package plugins

import (
	"fmt"
	"sync"

	"elicate/pkg/chattypes"
)

// Factory creates a fresh plugin instance.
type Factory func() chattypes.Plugin

// Catalog lists the plugins that can be enabled, keyed by plugin id.
type Catalog struct {
	mu        sync.RWMutex
	order     []string
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Add registers a factory under id.
func (c *Catalog) Add(id string, factory Factory) error {
	if id == "" {
		return fmt.Errorf("plugin id must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("plugin %s has no factory", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[id]; exists {
		return fmt.Errorf("plugin %s already in catalog", id)
	}
	c.factories[id] = factory
	c.order = append(c.order, id)
	return nil
}

// Factory returns the factory registered under id.
func (c *Catalog) Factory(id string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.factories[id]
	return f, ok
}

// IDs returns the catalog ids in insertion order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.order...)
}
