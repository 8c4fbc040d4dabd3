package plugins

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"

	"elicate/internal/logger"
	"elicate/internal/options"
	"elicate/internal/version"
	"elicate/pkg/chattypes"
)

// Option ids of the built-in option that lists the enabled plugins.
const (
	EnabledGroupID  = "plugins"
	EnabledOptionID = "enabled"
)

// Hook names reported in PluginExecutionError.
const (
	HookPreprocess  = "preprocessModelInput"
	HookPostprocess = "postprocessModelOutput"
)

// State is the lifecycle state of a plugin.
type State int

// Plugin lifecycle: Unregistered -> Enabled -> Disabled -> Enabled -> ...
const (
	StateUnregistered State = iota
	StateEnabled
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unregistered"
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHostVersion overrides the host version used for MinHostVersion checks.
func WithHostVersion(v string) ManagerOption {
	return func(m *Manager) {
		m.hostVersion = v
	}
}

type step struct {
	id     string
	plugin chattypes.Plugin
}

// Manager owns the enabled plugin instances, registers their option groups and
// runs their hooks in enable order.
type Manager struct {
	catalog     *Catalog
	facade      *options.Facade
	hostVersion string
	log         *log.Logger

	mu        sync.RWMutex
	order     []string
	instances map[string]chattypes.Plugin
	states    map[string]State
}

// NewManager creates a manager that instantiates plugins from catalog and
// registers their options in the facade's registry.
func NewManager(catalog *Catalog, facade *options.Facade, opts ...ManagerOption) *Manager {
	m := &Manager{
		catalog:     catalog,
		facade:      facade,
		hostVersion: version.GetBaseVersion(),
		log:         logger.NewStyledLogger("Plugins"),
		instances:   make(map[string]chattypes.Plugin),
		states:      make(map[string]State),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enable instantiates the plugin, registers its options as a group keyed by
// its id and appends it to the pipeline. Enabling an enabled plugin is a no-op.
func (m *Manager) Enable(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states[id] == StateEnabled {
		return nil
	}
	factory, ok := m.catalog.Factory(id)
	if !ok {
		return &chattypes.PluginNotFoundError{ID: id}
	}

	plugin, desc, err := instantiate(factory)
	if err != nil {
		m.log.Error("Plugin failed to load", "plugin", id, "error", err)
		return fmt.Errorf("plugin %s: %w", id, err)
	}
	if desc.ID != id {
		return fmt.Errorf("plugin %s describes itself as %q", id, desc.ID)
	}
	if err := m.checkCompatible(desc); err != nil {
		return err
	}
	if len(desc.Options) > 0 {
		if err := m.facade.Store().Registry().RegisterGroup(desc.Group()); err != nil {
			return fmt.Errorf("failed to register options of plugin %s: %w", id, err)
		}
	}

	m.order = append(m.order, id)
	m.instances[id] = plugin
	m.states[id] = StateEnabled

	m.log.Debug("Plugin enabled", "plugin", id, "position", len(m.order))
	return nil
}

// instantiate runs the factory and Describe, turning a panic in either into
// an error.
func instantiate(factory Factory) (plugin chattypes.Plugin, desc chattypes.PluginDescription, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while loading: %v", r)
		}
	}()

	plugin = factory()
	if plugin == nil {
		return nil, desc, fmt.Errorf("factory returned no plugin")
	}
	return plugin, plugin.Describe(), nil
}

func (m *Manager) checkCompatible(desc chattypes.PluginDescription) error {
	ok, err := version.Satisfies(m.hostVersion, desc.MinHostVersion)
	if err != nil {
		return fmt.Errorf("plugin %s: %w", desc.ID, err)
	}
	if !ok {
		return &chattypes.IncompatiblePluginError{ID: desc.ID, Constraint: desc.MinHostVersion, HostVersion: m.hostVersion}
	}
	return nil
}

// Disable removes the plugin's option group and pipeline slot and discards the
// instance. Persisted overrides of its options are kept. Disabling a plugin
// that is not enabled is a no-op.
func (m *Manager) Disable(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states[id] != StateEnabled {
		return
	}
	m.facade.Store().Registry().UnregisterGroup(id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	delete(m.instances, id)
	m.states[id] = StateDisabled

	m.log.Debug("Plugin disabled", "plugin", id)
}

// State reports the lifecycle state of id.
func (m *Manager) State(id string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[id]
}

// Enabled returns the enabled plugin ids in pipeline order.
func (m *Manager) Enabled() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Describe returns the description of an enabled plugin.
func (m *Manager) Describe(id string) (chattypes.PluginDescription, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.instances[id]
	if !ok {
		return chattypes.PluginDescription{}, false
	}
	return p.Describe(), true
}

// Reorder replaces the pipeline order. ids must be a permutation of the
// enabled plugins.
func (m *Manager) Reorder(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) != len(m.order) {
		return fmt.Errorf("reorder needs %d plugin ids, got %d", len(m.order), len(ids))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if m.states[id] != StateEnabled {
			return fmt.Errorf("plugin %s is not enabled", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("plugin %s listed twice", id)
		}
		seen[id] = struct{}{}
	}
	m.order = append([]string(nil), ids...)
	m.log.Debug("Plugins reordered", "order", m.order)
	return nil
}

// Sync enables and disables plugins so the pipeline matches the resolved
// plugins.enabled option, in the order that option lists them.
func (m *Manager) Sync(ctx context.Context) error {
	resolved, err := m.facade.Get(EnabledGroupID, EnabledOptionID)
	if err != nil {
		return err
	}
	desired, err := options.As[[]string](resolved)
	if err != nil {
		return fmt.Errorf("invalid %s.%s value: %w", EnabledGroupID, EnabledOptionID, err)
	}

	var result *multierror.Error
	current := m.Enabled()
	for i := len(current) - 1; i >= 0; i-- {
		if !slices.Contains(desired, current[i]) {
			m.Disable(current[i])
		}
	}
	for _, id := range desired {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Enable(id); err != nil {
			result = multierror.Append(result, err)
		}
	}

	var order []string
	enabled := m.Enabled()
	for _, id := range desired {
		if slices.Contains(enabled, id) && !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	if err := m.Reorder(order); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Teardown disables every plugin in reverse pipeline order.
func (m *Manager) Teardown() {
	enabled := m.Enabled()
	for i := len(enabled) - 1; i >= 0; i-- {
		m.Disable(enabled[i])
	}
}

func (m *Manager) snapshot() []step {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps := make([]step, 0, len(m.order))
	for _, id := range m.order {
		steps = append(steps, step{id: id, plugin: m.instances[id]})
	}
	return steps
}

// RunPreprocessing folds the enabled plugins' PreprocessModelInput hooks over
// a private copy of messages and params. Each hook receives the previous
// hook's output. The first failure aborts the request with a
// *chattypes.PluginExecutionError; cancellation returns ctx.Err() and
// discards partial output.
func (m *Manager) RunPreprocessing(ctx context.Context, chatID string, messages []chattypes.Message, params chattypes.Parameters) ([]chattypes.Message, chattypes.Parameters, error) {
	in := chattypes.ModelInput{
		Messages:   chattypes.CloneMessages(messages),
		Parameters: params.Clone(),
	}
	if in.Parameters == nil {
		in.Parameters = chattypes.Parameters{}
	}

	for _, st := range m.snapshot() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		pre, ok := st.plugin.(chattypes.Preprocessor)
		if !ok {
			continue
		}
		out, err := m.preprocess(ctx, st.id, pre, chatID, in)
		if err != nil {
			return nil, nil, err
		}
		logger.PluginOperation(st.id, HookPreprocess, "messages", len(out.Messages))
		in = out
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return in.Messages, in.Parameters, nil
}

func (m *Manager) preprocess(ctx context.Context, id string, pre chattypes.Preprocessor, chatID string, in chattypes.ModelInput) (out chattypes.ModelInput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.hookError(id, HookPreprocess, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err = pre.PreprocessModelInput(ctx, m.facade.ReaderFor(id, chatID), in)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return out, ctx.Err()
		}
		return out, m.hookError(id, HookPreprocess, err)
	}
	if verr := out.Validate(); verr != nil {
		return out, m.hookError(id, HookPreprocess, fmt.Errorf("malformed result: %w", verr))
	}
	return out, nil
}

// RunPostprocessing folds the enabled plugins' PostprocessModelOutput hooks
// over the model response with the same contract as RunPreprocessing.
func (m *Manager) RunPostprocessing(ctx context.Context, chatID string, output chattypes.ModelOutput) (chattypes.ModelOutput, error) {
	out := chattypes.ModelOutput{Content: output.Content, Parameters: output.Parameters.Clone()}

	for _, st := range m.snapshot() {
		if err := ctx.Err(); err != nil {
			return chattypes.ModelOutput{}, err
		}
		post, ok := st.plugin.(chattypes.Postprocessor)
		if !ok {
			continue
		}
		next, err := m.postprocess(ctx, st.id, post, chatID, out)
		if err != nil {
			return chattypes.ModelOutput{}, err
		}
		logger.PluginOperation(st.id, HookPostprocess, "content_length", len(next.Content))
		out = next
	}
	if err := ctx.Err(); err != nil {
		return chattypes.ModelOutput{}, err
	}
	return out, nil
}

func (m *Manager) postprocess(ctx context.Context, id string, post chattypes.Postprocessor, chatID string, in chattypes.ModelOutput) (out chattypes.ModelOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = m.hookError(id, HookPostprocess, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err = post.PostprocessModelOutput(ctx, m.facade.ReaderFor(id, chatID), in)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return out, ctx.Err()
		}
		return out, m.hookError(id, HookPostprocess, err)
	}
	return out, nil
}

func (m *Manager) hookError(id, hook string, cause error) error {
	m.log.Error("Plugin hook failed", "plugin", id, "hook", hook, "error", cause)
	return &chattypes.PluginExecutionError{PluginID: id, Hook: hook, Cause: cause}
}
