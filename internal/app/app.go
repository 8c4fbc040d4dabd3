// Package app wires the option store, the plugin manager and the host
// collaborators together and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"elicate/internal/config"
	"elicate/internal/dispatch"
	"elicate/internal/globaloptions"
	"elicate/internal/logger"
	"elicate/internal/options"
	"elicate/internal/plugins"
	"elicate/internal/plugins/builtin"
	"elicate/internal/storage"
	"elicate/internal/tokens"
	"elicate/pkg/chattypes"
)

// SenderFactory creates the model API collaborator for a provider.
type SenderFactory func(provider, apiKey string) (dispatch.Sender, error)

// Options configures New.
type Options struct {
	Config *config.Config
	// Backend overrides the storage backend named in Config.
	Backend storage.Backend
	// Plugins are passed to the built-in plugin constructors. A nil Counter
	// is loaded from the configured token encoding.
	Plugins builtin.Deps
	// HostVersion overrides the version plugins are checked against.
	HostVersion string
	// NewSender defaults to dispatch.NewSender.
	NewSender SenderFactory
}

// App is the composition root.
type App struct {
	Registry *options.Registry
	Store    *options.Store
	Facade   *options.Facade
	Catalog  *plugins.Catalog
	Plugins  *plugins.Manager

	cfg       *config.Config
	backend   storage.Backend
	deps      builtin.Deps
	newSender SenderFactory
	log       *log.Logger

	mu          sync.Mutex
	hydrated    map[string]struct{}
	initialized bool
}

// New opens storage and builds every component. Call Init before use and
// Teardown when done.
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("app needs a configuration")
	}
	backend := opts.Backend
	if backend == nil {
		var err error
		backend, err = storage.Open(opts.Config.Storage(), opts.Config.StorageLocation())
		if err != nil {
			return nil, fmt.Errorf("failed to open %s storage: %w", opts.Config.Storage(), err)
		}
	}
	newSender := opts.NewSender
	if newSender == nil {
		newSender = func(provider, apiKey string) (dispatch.Sender, error) {
			return dispatch.NewSender(provider, apiKey)
		}
	}

	deps := opts.Plugins
	if deps.Counter == nil {
		deps.Counter = tokens.NewCounter(opts.Config.TokenEncoding())
	}

	reg := options.NewRegistry()
	store := options.NewStore(reg, backend)
	facade := options.NewFacade(store)
	catalog := plugins.NewCatalog()

	var managerOpts []plugins.ManagerOption
	if opts.HostVersion != "" {
		managerOpts = append(managerOpts, plugins.WithHostVersion(opts.HostVersion))
	}

	return &App{
		Registry:  reg,
		Store:     store,
		Facade:    facade,
		Catalog:   catalog,
		Plugins:   plugins.NewManager(catalog, facade, managerOpts...),
		cfg:       opts.Config,
		backend:   backend,
		deps:      deps,
		newSender: newSender,
		log:       logger.NewStyledLogger("App"),
		hydrated:  make(map[string]struct{}),
	}, nil
}

// Init registers the built-in options and plugins, loads persisted user
// overrides and enables the plugins listed in plugins.enabled. Plugins that
// fail to enable are logged and skipped.
func (a *App) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return nil
	}

	err := globaloptions.Register(a.Registry, globaloptions.Defaults{
		OpenAIAPIKey:   a.cfg.APIKey(dispatch.ProviderOpenAI),
		Provider:       a.cfg.Provider(),
		Model:          a.cfg.Model(),
		EnabledPlugins: builtin.DefaultEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to register built-in options: %w", err)
	}
	if err := builtin.Register(a.Catalog, a.deps); err != nil {
		return fmt.Errorf("failed to register built-in plugins: %w", err)
	}

	if err := a.hydrate(ctx, ""); err != nil {
		return err
	}
	a.hydrated[""] = struct{}{}

	if err := a.Plugins.Sync(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warn("Some plugins could not be enabled", "error", err)
	}
	if enabled := a.Plugins.Enabled(); len(enabled) > 0 {
		if err := a.hydrate(ctx, "", enabled...); err != nil {
			return err
		}
	}

	a.initialized = true
	a.log.Debug("Initialized", "plugins", a.Plugins.Enabled(), "storage", a.cfg.Storage())
	return nil
}

// hydrate loads overrides and treats undecodable values as warnings. Storage
// failures are returned.
func (a *App) hydrate(ctx context.Context, chatID string, groupIDs ...string) error {
	err := a.Store.Hydrate(ctx, a.backend, chatID, groupIDs...)
	if err == nil {
		return nil
	}
	var invalid *chattypes.InvalidValueError
	if errors.As(err, &invalid) {
		a.log.Warn("Ignoring unreadable overrides", "chat", chatID, "error", err)
		return nil
	}
	return fmt.Errorf("failed to load overrides: %w", err)
}

func (a *App) ensureChat(ctx context.Context, chatID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.hydrated[chatID]; ok {
		return nil
	}
	if err := a.hydrate(ctx, chatID); err != nil {
		return err
	}
	a.hydrated[chatID] = struct{}{}
	return nil
}

// NewChat returns a fresh chat id.
func (a *App) NewChat() string {
	return uuid.NewString()
}

// SwitchChat loads chatID's overrides and makes it the facade's active chat.
func (a *App) SwitchChat(ctx context.Context, chatID string) error {
	if err := a.ensureChat(ctx, chatID); err != nil {
		return err
	}
	a.Facade.SetActiveChat(chatID)
	return nil
}

// EnablePlugin enables id, loads its persisted overrides and records it in
// plugins.enabled.
func (a *App) EnablePlugin(ctx context.Context, id string) error {
	if err := a.Plugins.Enable(id); err != nil {
		return err
	}

	a.mu.Lock()
	chats := make([]string, 0, len(a.hydrated))
	for chatID := range a.hydrated {
		chats = append(chats, chatID)
	}
	a.mu.Unlock()

	for _, chatID := range chats {
		if err := a.hydrate(ctx, chatID, id); err != nil {
			return err
		}
	}
	return a.persistEnabled()
}

// DisablePlugin disables id and removes it from plugins.enabled. Its
// overrides stay in storage.
func (a *App) DisablePlugin(id string) error {
	a.Plugins.Disable(id)
	return a.persistEnabled()
}

func (a *App) persistEnabled() error {
	return a.Store.SetOverride(plugins.EnabledGroupID, plugins.EnabledOptionID, a.Plugins.Enabled(), chattypes.LayerUser, "")
}

// PluginInfo describes a catalog entry for listings.
type PluginInfo struct {
	ID          string
	Name        string
	Version     string
	State       plugins.State
	Position    int
	Description chattypes.PluginDescription
}

// PluginInfos lists every catalog plugin. Enabled plugins carry their 1-based
// pipeline position.
func (a *App) PluginInfos() []PluginInfo {
	enabled := a.Plugins.Enabled()
	var out []PluginInfo
	for _, id := range a.Catalog.IDs() {
		desc, ok := a.Plugins.Describe(id)
		if !ok {
			factory, _ := a.Catalog.Factory(id)
			desc = factory().Describe()
		}
		info := PluginInfo{
			ID:          id,
			Name:        desc.Name,
			Version:     desc.Version,
			State:       a.Plugins.State(id),
			Description: desc,
		}
		for i, e := range enabled {
			if e == id {
				info.Position = i + 1
			}
		}
		out = append(out, info)
	}
	return out
}

// Parameters resolves the model request parameters for chatID. An empty
// model option selects the provider's default model.
func (a *App) Parameters(chatID string) (chattypes.Parameters, error) {
	r := a.Facade.ReaderFor(globaloptions.ParametersGroup, chatID)
	model, err := chattypes.ReadString(r, "model")
	if err != nil {
		return nil, err
	}
	if model == "" {
		provider, err := chattypes.ReadString(r, "provider")
		if err != nil {
			return nil, err
		}
		model = dispatch.DefaultModel(provider)
	}
	temperature, err := chattypes.ReadFloat(r, "temperature")
	if err != nil {
		return nil, err
	}
	return chattypes.Parameters{
		dispatch.ParamModel:       model,
		dispatch.ParamTemperature: temperature,
	}, nil
}

// Prepare runs the preprocessing pipeline for a request in chatID.
func (a *App) Prepare(ctx context.Context, chatID string, messages []chattypes.Message) ([]chattypes.Message, chattypes.Parameters, error) {
	if err := a.ensureChat(ctx, chatID); err != nil {
		return nil, nil, err
	}
	params, err := a.Parameters(chatID)
	if err != nil {
		return nil, nil, err
	}
	return a.Plugins.RunPreprocessing(ctx, chatID, messages, params)
}

// Send prepares messages, sends them to the configured provider and runs the
// postprocessing pipeline over the reply.
func (a *App) Send(ctx context.Context, chatID string, messages []chattypes.Message) (string, error) {
	prepared, params, err := a.Prepare(ctx, chatID, messages)
	if err != nil {
		return "", err
	}

	provider, err := chattypes.ReadString(a.Facade.ReaderFor(globaloptions.ParametersGroup, chatID), "provider")
	if err != nil {
		return "", err
	}
	sender, err := a.newSender(provider, a.apiKey(provider))
	if err != nil {
		return "", err
	}

	reply, err := sender.Send(ctx, prepared, params)
	if err != nil {
		return "", err
	}
	out, err := a.Plugins.RunPostprocessing(ctx, chatID, chattypes.ModelOutput{Content: reply, Parameters: params})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// apiKey prefers the openai.apiKey option, whose default is the configured
// key, and falls back to configuration for other providers.
func (a *App) apiKey(provider string) string {
	if provider == dispatch.ProviderOpenAI {
		if r, err := a.Store.Resolve(globaloptions.OpenAIGroup, "apiKey", ""); err == nil {
			if key, _ := r.Value.(string); key != "" {
				return key
			}
		}
	}
	return a.cfg.APIKey(provider)
}

// Teardown disables every plugin, flushes pending writes and closes storage.
func (a *App) Teardown(ctx context.Context) error {
	var result *multierror.Error

	a.Plugins.Teardown()
	if err := a.Store.Flush(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to flush overrides: %w", err))
	}
	a.Store.Close()
	a.Facade.Close()
	if err := a.backend.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close storage: %w", err))
	}
	return result.ErrorOrNil()
}
