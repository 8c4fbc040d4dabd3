// Package options implements the option schema registry, the scoped option store
// and the access facade used by UI collaborators and plugins.
package options

import (
	"fmt"
	"iter"
	"sync"

	"elicate/internal/logger"
	"elicate/pkg/chattypes"
)

// Filter narrows ListOptions and Groups. Zero fields match everything.
type Filter struct {
	DisplayTarget chattypes.DisplayTarget
	GroupID       string
}

func (f Filter) matchesGroup(g chattypes.OptionGroup) bool {
	return f.GroupID == "" || f.GroupID == g.ID
}

func (f Filter) matches(d chattypes.OptionDescriptor) bool {
	return f.DisplayTarget == "" || f.DisplayTarget == d.DisplayTarget
}

// Registry holds the declared option groups.
// Built-in groups are listed before plugin groups; each kind keeps registration order.
type Registry struct {
	mu      sync.RWMutex
	builtin []string
	plugin  []string
	groups  map[string]chattypes.OptionGroup
	index   map[string]chattypes.OptionDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]chattypes.OptionGroup),
		index:  make(map[string]chattypes.OptionDescriptor),
	}
}

// RegisterGroup adds a group and all its descriptors. Registration is atomic:
// if any key collides with a registered option, nothing is added and a
// *chattypes.DuplicateOptionError is returned.
func (r *Registry) RegisterGroup(group chattypes.OptionGroup) error {
	if group.ID == "" {
		return fmt.Errorf("option group id must not be empty")
	}

	opts := make([]chattypes.OptionDescriptor, len(group.Options))
	seen := make(map[string]struct{}, len(group.Options))
	for i, o := range group.Options {
		if o.OptionID == "" {
			return fmt.Errorf("option %d of group %s has an empty id", i, group.ID)
		}
		o.GroupID = group.ID
		if o.DisplayTarget == "" {
			o.DisplayTarget = chattypes.DisplaySettingsScreen
		}
		if _, dup := seen[o.Key()]; dup {
			return &chattypes.DuplicateOptionError{Key: o.Key()}
		}
		seen[o.Key()] = struct{}{}
		opts[i] = o
	}
	group.Options = opts

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range opts {
		if _, exists := r.index[o.Key()]; exists {
			return &chattypes.DuplicateOptionError{Key: o.Key()}
		}
	}
	if _, exists := r.groups[group.ID]; exists {
		return fmt.Errorf("option group %s already registered", group.ID)
	}

	r.groups[group.ID] = group
	for _, o := range opts {
		r.index[o.Key()] = o
	}
	if group.IsBuiltin() {
		r.builtin = append(r.builtin, group.ID)
	} else {
		r.plugin = append(r.plugin, group.ID)
	}

	logger.Debug("Option group registered", "group", group.ID, "owner", group.Owner, "options", len(opts))
	return nil
}

// UnregisterGroup removes a group and its descriptors. It is a no-op if the group is absent.
func (r *Registry) UnregisterGroup(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, exists := r.groups[groupID]
	if !exists {
		return
	}
	for _, o := range group.Options {
		delete(r.index, o.Key())
	}
	delete(r.groups, groupID)
	r.builtin = removeID(r.builtin, groupID)
	r.plugin = removeID(r.plugin, groupID)

	logger.Debug("Option group unregistered", "group", groupID)
}

// Lookup returns the descriptor registered under groupID.optionID.
func (r *Registry) Lookup(groupID, optionID string) (chattypes.OptionDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.index[chattypes.OptionKey(groupID, optionID)]
	return d, ok
}

// HasGroup reports whether a group with the given id is registered.
func (r *Registry) HasGroup(groupID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.groups[groupID]
	return ok
}

// Groups returns the registered groups in listing order.
func (r *Registry) Groups(filter Filter) []chattypes.OptionGroup {
	var out []chattypes.OptionGroup
	for _, g := range r.snapshot() {
		if !filter.matchesGroup(g) {
			continue
		}
		if filter.DisplayTarget != "" {
			var kept []chattypes.OptionDescriptor
			for _, o := range g.Options {
				if filter.matches(o) {
					kept = append(kept, o)
				}
			}
			if len(kept) == 0 {
				continue
			}
			g.Options = kept
		}
		out = append(out, g)
	}
	return out
}

// ListOptions returns a lazy sequence of descriptors matching filter, built-in
// groups first and then plugin groups in activation order. The sequence can be
// ranged over any number of times; each pass reflects the registry at the
// moment that pass starts.
func (r *Registry) ListOptions(filter Filter) iter.Seq[chattypes.OptionDescriptor] {
	return func(yield func(chattypes.OptionDescriptor) bool) {
		for _, g := range r.snapshot() {
			if !filter.matchesGroup(g) {
				continue
			}
			for _, o := range g.Options {
				if !filter.matches(o) {
					continue
				}
				if !yield(o) {
					return
				}
			}
		}
	}
}

func (r *Registry) snapshot() []chattypes.OptionGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chattypes.OptionGroup, 0, len(r.builtin)+len(r.plugin))
	for _, id := range r.builtin {
		out = append(out, r.groups[id])
	}
	for _, id := range r.plugin {
		out = append(out, r.groups[id])
	}
	return out
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
