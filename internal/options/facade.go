package options

import (
	"reflect"
	"sync"

	"elicate/pkg/chattypes"
)

// Facade is the single read/write entry point for UI components and plugins.
// Reads and writes are bound to the active chat; writes always target the
// narrowest layer the option's scope permits.
type Facade struct {
	store *Store

	mu         sync.RWMutex
	activeChat string
	handles    map[*Handle]struct{}

	unsubscribe func()
}

// NewFacade creates a facade over store and subscribes to its mutations.
func NewFacade(store *Store) *Facade {
	f := &Facade{
		store:   store,
		handles: make(map[*Handle]struct{}),
	}
	f.unsubscribe = store.Subscribe(f.onChange)
	return f
}

// Store returns the underlying option store.
func (f *Facade) Store() *Store {
	return f.store
}

// Close detaches the facade from the store. Open handles stop updating.
func (f *Facade) Close() {
	if f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
}

// ActiveChat returns the chat the facade is currently bound to.
func (f *Facade) ActiveChat() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.activeChat
}

// SetActiveChat rebinds the facade to chatID ("" for no chat) and re-resolves
// every open handle.
func (f *Facade) SetActiveChat(chatID string) {
	f.mu.Lock()
	if f.activeChat == chatID {
		f.mu.Unlock()
		return
	}
	f.activeChat = chatID
	handles := f.handleList()
	f.mu.Unlock()

	for _, h := range handles {
		h.refresh()
	}
}

// Get resolves groupID.optionID for the active chat.
func (f *Facade) Get(groupID, optionID string) (chattypes.ResolvedOption, error) {
	return f.store.Resolve(groupID, optionID, f.ActiveChat())
}

// Set writes value at the narrowest layer the option's scope permits for the
// active chat.
func (f *Facade) Set(groupID, optionID string, value any) error {
	layer, chatID, err := f.target(groupID, optionID)
	if err != nil {
		return err
	}
	return f.store.SetOverride(groupID, optionID, value, layer, chatID)
}

// Reset clears the override at the layer Set would write to.
func (f *Facade) Reset(groupID, optionID string) error {
	layer, chatID, err := f.target(groupID, optionID)
	if err != nil {
		return err
	}
	return f.store.ClearOverride(groupID, optionID, layer, chatID)
}

// ResolveAfterReset returns what Get would return once Reset has run,
// without clearing anything.
func (f *Facade) ResolveAfterReset(groupID, optionID string) (chattypes.ResolvedOption, error) {
	layer, _, err := f.target(groupID, optionID)
	if err != nil {
		return chattypes.ResolvedOption{}, err
	}
	return f.store.ResolveWithout(groupID, optionID, f.ActiveChat(), layer)
}

func (f *Facade) target(groupID, optionID string) (chattypes.Layer, string, error) {
	d, err := f.store.descriptor(groupID, optionID)
	if err != nil {
		return chattypes.LayerDefault, "", err
	}
	chatID := f.ActiveChat()
	layer := Narrowest(d.Scope, chatID)
	if layer != chattypes.LayerChat {
		chatID = ""
	}
	return layer, chatID, nil
}

// ReaderFor returns an OptionReader over one group, pinned to chatID rather
// than the active chat. The pipeline uses it so concurrent requests for
// different chats resolve independently.
func (f *Facade) ReaderFor(groupID, chatID string) chattypes.OptionReader {
	return &groupReader{store: f.store, groupID: groupID, chatID: chatID}
}

type groupReader struct {
	store   *Store
	groupID string
	chatID  string
}

func (r *groupReader) Resolve(optionID string) (chattypes.ResolvedOption, error) {
	return r.store.Resolve(r.groupID, optionID, r.chatID)
}

// Use returns a live handle on groupID.optionID. The handle re-resolves when
// a layer affecting the option changes or the active chat changes.
func (f *Facade) Use(groupID, optionID string) (*Handle, error) {
	resolved, err := f.Get(groupID, optionID)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		facade:   f,
		groupID:  groupID,
		optionID: optionID,
		current:  resolved,
	}

	f.mu.Lock()
	f.handles[h] = struct{}{}
	f.mu.Unlock()
	return h, nil
}

func (f *Facade) handleList() []*Handle {
	out := make([]*Handle, 0, len(f.handles))
	for h := range f.handles {
		out = append(out, h)
	}
	return out
}

func (f *Facade) onChange(c chattypes.Change) {
	f.mu.RLock()
	active := f.activeChat
	var affected []*Handle
	for h := range f.handles {
		if h.groupID == c.GroupID && h.optionID == c.OptionID {
			affected = append(affected, h)
		}
	}
	f.mu.RUnlock()

	if c.Layer == chattypes.LayerChat && c.ChatID != active {
		return
	}
	for _, h := range affected {
		h.refresh()
	}
}

// Handle is a live binding to one option for the facade's active chat.
type Handle struct {
	facade   *Facade
	groupID  string
	optionID string

	mu        sync.Mutex
	current   chattypes.ResolvedOption
	listeners []func(chattypes.ResolvedOption)
}

// Key returns "groupId.optionId".
func (h *Handle) Key() string {
	return chattypes.OptionKey(h.groupID, h.optionID)
}

// Value returns the most recently resolved value.
func (h *Handle) Value() chattypes.ResolvedOption {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Set writes v through the facade.
func (h *Handle) Set(v any) error {
	return h.facade.Set(h.groupID, h.optionID, v)
}

// Reset clears the override the handle's Set would write.
func (h *Handle) Reset() error {
	return h.facade.Reset(h.groupID, h.optionID)
}

// OnChange registers fn to run whenever the resolved value changes.
// fn runs synchronously inside the mutation and must not write options.
func (h *Handle) OnChange(fn func(chattypes.ResolvedOption)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

// Close detaches the handle from the facade.
func (h *Handle) Close() {
	h.facade.mu.Lock()
	delete(h.facade.handles, h)
	h.facade.mu.Unlock()
}

func (h *Handle) refresh() {
	resolved, err := h.facade.Get(h.groupID, h.optionID)
	if err != nil {
		// Unregistered options keep their last value.
		return
	}

	h.mu.Lock()
	if reflect.DeepEqual(resolved, h.current) {
		h.mu.Unlock()
		return
	}
	h.current = resolved
	listeners := append([]func(chattypes.ResolvedOption){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(resolved)
	}
}
